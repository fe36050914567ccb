package extraction

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/reno-purchases/internal/domain/entity"
)

func decode(t *testing.T, s string) interface{} {
	t.Helper()
	var v interface{}
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func assertWellFormed(t *testing.T, inv entity.ExtractedInvoice) {
	t.Helper()
	assert.NotNil(t, inv.Lines)
	assert.NotEmpty(t, inv.Currency)
	for _, f := range []float64{inv.Totals.SubTotal, inv.Totals.Tax, inv.Totals.Shipping, inv.Totals.OtherFees, inv.Totals.GrandTotal} {
		assert.False(t, math.IsNaN(f) || math.IsInf(f, 0))
	}
	for _, line := range inv.Lines {
		assert.GreaterOrEqual(t, line.Confidence, 0.0)
		assert.LessOrEqual(t, line.Confidence, 1.0)
		assert.GreaterOrEqual(t, line.Quantity, 0.0)
		assert.GreaterOrEqual(t, line.UnitPrice, 0.0)
		assert.False(t, math.IsNaN(line.LineTotal) || math.IsInf(line.LineTotal, 0))
		_, known := entity.ParseUnitType(string(line.UnitType))
		assert.True(t, known, "unit %q", line.UnitType)
	}
}

func TestNormalize_MalformedInput(t *testing.T) {
	inputs := map[string]interface{}{
		"nil":          nil,
		"empty object": decode(t, `{}`),
		"array root":   decode(t, `[{"description":"x"}]`),
		"string root":  "hello",
		"number root":  42.0,
		"wrong types": decode(t, `{
			"vendorName": 12,
			"currency": false,
			"totals": "lots",
			"lines": [1, "two", null, {"quantity": {"a": 1}, "unitPrice": [3], "confidence": "very"}]
		}`),
		"lines not array": decode(t, `{"lines": {"a": 1}, "items": "nope"}`),
	}

	for name, raw := range inputs {
		t.Run(name, func(t *testing.T) {
			var inv entity.ExtractedInvoice
			assert.NotPanics(t, func() { inv = Normalize(raw) })
			assertWellFormed(t, inv)
			assert.Equal(t, "CAD", inv.Currency)
		})
	}
}

func TestNormalize_WellFormedInvoice(t *testing.T) {
	raw := decode(t, `{
		"vendorName": "Home Depot",
		"invoiceNumber": "INV-1001",
		"invoiceDate": "2026-09-30",
		"currency": "USD",
		"totals": {"subTotal": 80, "tax": 10.4, "shipping": 0, "otherFees": 0, "grandTotal": 90.4},
		"lines": [
			{"sourceText": "2x 2x4 stud", "description": "2x4 stud", "quantity": 2, "unitType": "EACH", "unitPrice": 10, "lineTotal": 20, "confidence": 0.9, "needsReview": false, "notes": ""},
			{"sourceText": "3 bags mortar", "description": "Mortar", "quantity": 3, "unitType": "bag", "unitPrice": 20, "confidence": 0.8}
		]
	}`)

	inv := Normalize(raw)

	assert.Equal(t, "Home Depot", inv.VendorName)
	assert.Equal(t, "INV-1001", inv.InvoiceNumber)
	assert.Equal(t, "2026-09-30", inv.InvoiceDate)
	assert.Equal(t, "USD", inv.Currency)
	assert.Equal(t, 80.0, inv.Totals.SubTotal)
	assert.Equal(t, 90.4, inv.Totals.GrandTotal)
	require.Len(t, inv.Lines, 2)

	assert.Equal(t, entity.UnitEach, inv.Lines[0].UnitType)
	assert.False(t, inv.Lines[0].NeedsReview)
	assert.Equal(t, 20.0, inv.Lines[0].LineTotal)

	assert.Equal(t, entity.UnitBag, inv.Lines[1].UnitType)
	assert.True(t, inv.Lines[1].NeedsReview, "needsReview defaults to true when omitted")
	assert.Equal(t, 60.0, inv.Lines[1].LineTotal)

	assert.Empty(t, inv.PassUsed)
	assert.Empty(t, inv.ModelUsed)
}

func TestNormalize_LineArrayNamesAndNesting(t *testing.T) {
	for _, key := range []string{"lines", "lineItems", "items"} {
		t.Run(key, func(t *testing.T) {
			raw := decode(t, `{"invoice": {"vendorName": "Rona", "`+key+`": [{"description": "Drywall", "quantity": 4, "unitPrice": 12.5}]}}`)

			inv := Normalize(raw)

			assert.Equal(t, "Rona", inv.VendorName)
			require.Len(t, inv.Lines, 1)
			assert.Equal(t, "Drywall", inv.Lines[0].Description)
			assert.Equal(t, 50.0, inv.Lines[0].LineTotal)
		})
	}
}

func TestNormalize_NumericCoercion(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  float64
	}{
		{"plain number", `12.5`, 12.5},
		{"currency string", `"$1,234.50"`, 1234.5},
		{"negative string", `"-3"`, -3},
		{"unparsable string", `"n/a"`, 0},
		{"double dot", `"1.2.3"`, 0},
		{"boolean", `true`, 0},
		{"object", `{"v": 1}`, 0},
		{"exponent letters are stripped", `"1e5"`, 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := decode(t, `{"totals": {"tax": `+tt.value+`}}`)
			inv := Normalize(raw)
			assert.Equal(t, tt.want, inv.Totals.Tax)
		})
	}
}

func TestNormalize_StringFieldsMustBeStrings(t *testing.T) {
	raw := decode(t, `{"vendorName": ["a"], "invoiceNumber": 1001, "invoiceDate": {"d": 1}, "lines": [{"description": 5, "notes": true}]}`)

	inv := Normalize(raw)

	assert.Empty(t, inv.VendorName)
	assert.Empty(t, inv.InvoiceNumber)
	assert.Empty(t, inv.InvoiceDate)
	require.Len(t, inv.Lines, 1)
	assert.Empty(t, inv.Lines[0].Description)
	assert.Empty(t, inv.Lines[0].Notes)
}

func TestNormalize_LineTotalFallback(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		wantTotal float64
	}{
		{"absent", `{"quantity": 3, "unitPrice": 1.25}`, 3.75},
		{"zero", `{"quantity": 3, "unitPrice": 1.25, "lineTotal": 0}`, 3.75},
		{"negative", `{"quantity": 2, "unitPrice": 7, "lineTotal": -14}`, 14},
		{"positive kept", `{"quantity": 2, "unitPrice": 7, "lineTotal": 13.99}`, 13.99},
		{"string total", `{"quantity": 2, "unitPrice": 7, "lineTotal": "$15.00"}`, 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := Normalize(decode(t, `{"lines": [`+tt.line+`]}`))
			require.Len(t, inv.Lines, 1)
			assert.Equal(t, tt.wantTotal, inv.Lines[0].LineTotal)
		})
	}
}

func TestNormalize_LineTotalOverflow(t *testing.T) {
	inv, decisions := NormalizeWithDecisions(decode(t, `{
		"totals": {"subTotal": 1e308},
		"lines": [{"quantity": 1e308, "unitPrice": 10}, {"quantity": 2, "unitPrice": 3}]
	}`))

	assertWellFormed(t, inv)
	require.Len(t, inv.Lines, 2)
	assert.Equal(t, 0.0, inv.Lines[0].LineTotal)
	assert.Equal(t, 6.0, inv.Lines[1].LineTotal)
	assert.Equal(t, 1e308, inv.Totals.SubTotal)

	actions := map[string]string{}
	for _, d := range decisions {
		actions[d.Field] = d.Action
	}
	assert.Equal(t, "overflow", actions["lines[0].lineTotal"])
	assert.Equal(t, "computed", actions["lines[1].lineTotal"])
}

func TestNormalize_ConfidenceAndUnits(t *testing.T) {
	inv := Normalize(decode(t, `{"lines": [
		{"confidence": 7, "unitType": "SqFt"},
		{"confidence": -0.5, "unitType": "pallet"},
		{"confidence": "0.4", "unitType": 3}
	]}`))

	require.Len(t, inv.Lines, 3)
	assert.Equal(t, 1.0, inv.Lines[0].Confidence)
	assert.Equal(t, entity.UnitSqFt, inv.Lines[0].UnitType)
	assert.Equal(t, 0.0, inv.Lines[1].Confidence)
	assert.Equal(t, entity.UnitOther, inv.Lines[1].UnitType)
	assert.Equal(t, 0.4, inv.Lines[2].Confidence)
	assert.Equal(t, entity.UnitOther, inv.Lines[2].UnitType)
}

func TestNormalize_NeedsReviewOnlyFalseWhenExplicit(t *testing.T) {
	inv := Normalize(decode(t, `{"lines": [{"needsReview": false}, {"needsReview": "false"}, {"needsReview": true}, {}]}`))

	require.Len(t, inv.Lines, 4)
	assert.False(t, inv.Lines[0].NeedsReview)
	assert.True(t, inv.Lines[1].NeedsReview)
	assert.True(t, inv.Lines[2].NeedsReview)
	assert.True(t, inv.Lines[3].NeedsReview)
}

func TestNormalizeWithDecisions_RecordsCoercions(t *testing.T) {
	_, decisions := NormalizeWithDecisions(decode(t, `{"lines": [{"quantity": "2", "unitPrice": 5, "unitType": "crate"}]}`))

	actions := map[string]string{}
	for _, d := range decisions {
		actions[d.Field] = d.Action
	}
	assert.Equal(t, "defaulted", actions["currency"])
	assert.Equal(t, "coerced", actions["lines[0].quantity"])
	assert.Equal(t, "defaulted", actions["lines[0].unitType"])
	assert.Equal(t, "computed", actions["lines[0].lineTotal"])
}

func TestNormalize_OutputMatchesSchema(t *testing.T) {
	inv := Normalize(decode(t, `{"vendorName": "Acme", "lines": [{"description": "Tile", "quantity": "10", "unitType": "sqft", "unitPrice": "$2.50"}]}`))

	b, err := json.Marshal(inv)
	require.NoError(t, err)
	var v interface{}
	require.NoError(t, json.Unmarshal(b, &v))

	assert.NoError(t, ValidateAgainstSchema(v))
}
