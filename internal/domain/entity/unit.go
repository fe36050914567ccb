package entity

import "strings"

// UnitType is the measurement unit of an invoice line or material
type UnitType string

const (
	UnitEach   UnitType = "each"
	UnitBox    UnitType = "box"
	UnitBag    UnitType = "bag"
	UnitSqFt   UnitType = "sqft"
	UnitSqM    UnitType = "sqm"
	UnitLinFt  UnitType = "lft"
	UnitMeter  UnitType = "m"
	UnitSheet  UnitType = "sheet"
	UnitRoll   UnitType = "roll"
	UnitGallon UnitType = "gal"
	UnitLiter  UnitType = "l"
	UnitKg     UnitType = "kg"
	UnitLb     UnitType = "lb"
	UnitHour   UnitType = "hour"
	UnitOther  UnitType = "other"
)

// UnitTypes lists every supported unit in display order
var UnitTypes = []UnitType{
	UnitEach, UnitBox, UnitBag, UnitSqFt, UnitSqM, UnitLinFt, UnitMeter, UnitSheet,
	UnitRoll, UnitGallon, UnitLiter, UnitKg, UnitLb, UnitHour, UnitOther,
}

// ParseUnitType lower-cases s and matches it against the supported units.
// The second return value is false when s was not recognized, in which case
// UnitOther is returned.
func ParseUnitType(s string) (UnitType, bool) {
	candidate := UnitType(strings.ToLower(strings.TrimSpace(s)))
	for _, u := range UnitTypes {
		if u == candidate {
			return u, true
		}
	}
	return UnitOther, false
}
