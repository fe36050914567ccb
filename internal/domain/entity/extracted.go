package entity

// ExtractedInvoiceLine is a normalized line produced by the extraction engine
type ExtractedInvoiceLine struct {
	SourceText  string   `json:"sourceText"`
	Description string   `json:"description"`
	Quantity    float64  `json:"quantity"`
	UnitType    UnitType `json:"unitType"`
	UnitPrice   float64  `json:"unitPrice"`
	LineTotal   float64  `json:"lineTotal"`
	Confidence  float64  `json:"confidence"`
	NeedsReview bool     `json:"needsReview"`
	Notes       string   `json:"notes"`
}

// ExtractedInvoice is the transient result of one extraction call.
// It is never persisted as is; drafts are synthesized from it.
type ExtractedInvoice struct {
	VendorName    string                 `json:"vendorName"`
	InvoiceNumber string                 `json:"invoiceNumber"`
	InvoiceDate   string                 `json:"invoiceDate"`
	Currency      string                 `json:"currency"`
	Totals        InvoiceTotals          `json:"totals"`
	Lines         []ExtractedInvoiceLine `json:"lines"`
	PassUsed      ExtractionPass         `json:"passUsed"`
	ModelUsed     string                 `json:"modelUsed"`
	RawOutput     string                 `json:"rawOutput"`
}

// LineTotalSum sums the line totals of the extraction.
func (e *ExtractedInvoice) LineTotalSum() float64 {
	var sum float64
	for _, line := range e.Lines {
		sum += line.LineTotal
	}
	return sum
}
