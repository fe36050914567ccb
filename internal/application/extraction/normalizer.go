// Package extraction turns vendor invoice images into trusted, itemized data.
// It drives an external vision engine in one or two passes and normalizes
// whatever JSON the engine returns into entity.ExtractedInvoice.
package extraction

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/garyjia/reno-purchases/internal/domain/entity"
)

// Decision records one coercion applied while normalizing engine output
type Decision struct {
	Field  string `json:"field"`
	Action string `json:"action"`
	Detail string `json:"detail,omitempty"`
}

var lineArrayKeys = []string{"lines", "lineItems", "items"}

// Normalize coerces an arbitrary decoded JSON value into an ExtractedInvoice.
// PassUsed and ModelUsed are left empty for the caller to fill in.
// It never fails: missing, extra or wrongly typed fields become zero values.
func Normalize(raw interface{}) entity.ExtractedInvoice {
	inv, _ := NormalizeWithDecisions(raw)
	return inv
}

// NormalizeWithDecisions is Normalize plus the list of coercions it applied
func NormalizeWithDecisions(raw interface{}) (entity.ExtractedInvoice, []Decision) {
	n := &normalizer{}
	return n.invoice(raw), n.decisions
}

type normalizer struct {
	decisions []Decision
}

func (n *normalizer) note(field, action, detail string) {
	n.decisions = append(n.decisions, Decision{Field: field, Action: action, Detail: detail})
}

func (n *normalizer) invoice(raw interface{}) entity.ExtractedInvoice {
	root, ok := raw.(map[string]interface{})
	if !ok {
		n.note("$", "not_an_object", fmt.Sprintf("%T", raw))
		root = map[string]interface{}{}
	}
	if nested, ok := root["invoice"].(map[string]interface{}); ok {
		n.note("$", "unwrapped", "invoice")
		root = nested
	}

	inv := entity.ExtractedInvoice{
		VendorName:    n.str(root, "vendorName", "vendorName", "vendor", "vendor_name"),
		InvoiceNumber: n.str(root, "invoiceNumber", "invoiceNumber", "invoiceNo", "invoice_number"),
		InvoiceDate:   n.str(root, "invoiceDate", "invoiceDate", "date", "invoice_date"),
		Currency:      n.str(root, "currency", "currency"),
	}
	if strings.TrimSpace(inv.Currency) == "" {
		n.note("currency", "defaulted", entity.DefaultCurrency)
		inv.Currency = entity.DefaultCurrency
	} else {
		inv.Currency = strings.TrimSpace(inv.Currency)
	}

	totals, ok := root["totals"].(map[string]interface{})
	if !ok {
		totals = root
	}
	inv.Totals = entity.InvoiceTotals{
		SubTotal:   n.num(totals, "totals.subTotal", "subTotal", "subtotal", "sub_total"),
		Tax:        n.num(totals, "totals.tax", "tax"),
		Shipping:   n.num(totals, "totals.shipping", "shipping"),
		OtherFees:  n.num(totals, "totals.otherFees", "otherFees", "other_fees"),
		GrandTotal: n.num(totals, "totals.grandTotal", "grandTotal", "total", "grand_total"),
	}

	inv.Lines = []entity.ExtractedInvoiceLine{}
	items, key := lineArray(root)
	if key == "" {
		n.note("lines", "missing", "")
	}
	for i, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			n.note(fmt.Sprintf("%s[%d]", key, i), "skipped", fmt.Sprintf("%T", item))
			continue
		}
		inv.Lines = append(inv.Lines, n.line(m, fmt.Sprintf("%s[%d]", key, i)))
	}

	return inv
}

func (n *normalizer) line(m map[string]interface{}, path string) entity.ExtractedInvoiceLine {
	line := entity.ExtractedInvoiceLine{
		SourceText:  n.str(m, path+".sourceText", "sourceText", "source_text"),
		Description: n.str(m, path+".description", "description", "name"),
		Quantity:    n.num(m, path+".quantity", "quantity", "qty"),
		UnitPrice:   n.num(m, path+".unitPrice", "unitPrice", "unit_price"),
		Notes:       n.str(m, path+".notes", "notes"),
	}
	if line.Quantity < 0 {
		n.note(path+".quantity", "clamped", formatFloat(line.Quantity))
		line.Quantity = 0
	}
	if line.UnitPrice < 0 {
		n.note(path+".unitPrice", "clamped", formatFloat(line.UnitPrice))
		line.UnitPrice = 0
	}

	rawUnit := n.str(m, path+".unitType", "unitType", "unit")
	unit, known := entity.ParseUnitType(rawUnit)
	if !known {
		n.note(path+".unitType", "defaulted", rawUnit)
	}
	line.UnitType = unit

	total := n.num(m, path+".lineTotal", "lineTotal", "line_total", "amount")
	if total > 0 {
		line.LineTotal = total
	} else {
		product := line.Quantity * line.UnitPrice
		line.LineTotal = finite(product)
		if line.LineTotal != product {
			n.note(path+".lineTotal", "overflow", formatFloat(product))
		} else {
			n.note(path+".lineTotal", "computed", formatFloat(line.LineTotal))
		}
	}

	confidence := n.num(m, path+".confidence", "confidence")
	switch {
	case confidence < 0:
		n.note(path+".confidence", "clamped", formatFloat(confidence))
		confidence = 0
	case confidence > 1:
		n.note(path+".confidence", "clamped", formatFloat(confidence))
		confidence = 1
	}
	line.Confidence = confidence

	line.NeedsReview = true
	if v, ok := m["needsReview"].(bool); ok && !v {
		line.NeedsReview = false
	}

	return line
}

// str returns the first present key, accepted only when it is literally a string
func (n *normalizer) str(m map[string]interface{}, field string, keys ...string) string {
	v, ok := pick(m, keys...)
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		n.note(field, "dropped_non_string", fmt.Sprintf("%T", v))
		return ""
	}
	return s
}

func (n *normalizer) num(m map[string]interface{}, field string, keys ...string) float64 {
	v, ok := pick(m, keys...)
	if !ok {
		return 0
	}
	f, exact := toNumber(v)
	if !exact {
		n.note(field, "coerced", fmt.Sprintf("%v -> %s", v, formatFloat(f)))
	}
	return f
}

func pick(m map[string]interface{}, keys ...string) (interface{}, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func lineArray(root map[string]interface{}) ([]interface{}, string) {
	for _, k := range lineArrayKeys {
		if arr, ok := root[k].([]interface{}); ok {
			return arr, k
		}
	}
	return nil, ""
}

// toNumber coerces v into a finite float. The second result is false when
// any coercion was needed.
func toNumber(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return finite(t), !math.IsNaN(t) && !math.IsInf(t, 0)
	case float32:
		return finite(float64(t)), false
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		return parseNumericString(t), false
	default:
		return 0, false
	}
}

// parseNumericString keeps only digits, '.' and '-' before parsing, so
// "$1,234.50" becomes 1234.5. Anything unparsable becomes 0.
func parseNumericString(s string) float64 {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	f, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0
	}
	return finite(f)
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
