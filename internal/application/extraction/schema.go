package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/garyjia/reno-purchases/internal/domain/entity"
)

// InvoiceJSONSchema returns the invoice shape the engine is asked to produce.
// It doubles as the schema hint embedded in the prompt.
func InvoiceJSONSchema() map[string]interface{} {
	units := make([]string, 0, len(entity.UnitTypes))
	for _, u := range entity.UnitTypes {
		units = append(units, string(u))
	}

	line := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"sourceText":  map[string]interface{}{"type": "string"},
			"description": map[string]interface{}{"type": "string"},
			"quantity":    map[string]interface{}{"type": "number", "minimum": 0},
			"unitType":    map[string]interface{}{"type": "string", "enum": units},
			"unitPrice":   map[string]interface{}{"type": "number", "minimum": 0},
			"lineTotal":   map[string]interface{}{"type": "number"},
			"confidence":  map[string]interface{}{"type": "number", "minimum": 0, "maximum": 1},
			"needsReview": map[string]interface{}{"type": "boolean"},
			"notes":       map[string]interface{}{"type": "string"},
		},
		"required": []string{"description", "quantity", "unitType", "unitPrice", "lineTotal"},
	}

	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"vendorName":    map[string]interface{}{"type": "string"},
			"invoiceNumber": map[string]interface{}{"type": "string"},
			"invoiceDate":   map[string]interface{}{"type": "string"},
			"currency":      map[string]interface{}{"type": "string"},
			"totals": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"subTotal":   map[string]interface{}{"type": "number"},
					"tax":        map[string]interface{}{"type": "number"},
					"shipping":   map[string]interface{}{"type": "number"},
					"otherFees":  map[string]interface{}{"type": "number"},
					"grandTotal": map[string]interface{}{"type": "number"},
				},
				"required": []string{"subTotal", "tax", "shipping", "otherFees", "grandTotal"},
			},
			"lines": map[string]interface{}{"type": "array", "items": line},
		},
		"required": []string{"vendorName", "invoiceNumber", "invoiceDate", "currency", "totals", "lines"},
	}
}

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func invoiceSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		b, err := json.Marshal(InvoiceJSONSchema())
		if err != nil {
			schemaErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("invoice.json", bytes.NewReader(b)); err != nil {
			schemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile("invoice.json")
	})
	return compiledSchema, schemaErr
}

// ValidateAgainstSchema reports whether a decoded JSON value already matches
// the requested invoice shape. Only used for audit; normalization runs either way.
func ValidateAgainstSchema(v interface{}) error {
	schema, err := invoiceSchema()
	if err != nil {
		return err
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

// schemaHint renders the schema for embedding into prompts
func schemaHint() string {
	b, _ := json.MarshalIndent(InvoiceJSONSchema(), "", "  ")
	return string(b)
}

func unitList() string {
	units := make([]string, 0, len(entity.UnitTypes))
	for _, u := range entity.UnitTypes {
		units = append(units, string(u))
	}
	return strings.Join(units, ", ")
}
