package entity

import "time"

// InvoiceStatus is the lifecycle state of a purchase invoice.
// draft -> confirmed is the only transition and it is terminal.
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusConfirmed InvoiceStatus = "confirmed"
)

// ExtractionPass identifies which engine pass produced an invoice.
type ExtractionPass string

const (
	PassOne ExtractionPass = "pass1"
	PassTwo ExtractionPass = "pass2"
)

// InvoiceTotals holds the totals declared on the document
type InvoiceTotals struct {
	SubTotal   float64 `json:"subTotal"`
	Tax        float64 `json:"tax"`
	Shipping   float64 `json:"shipping"`
	OtherFees  float64 `json:"otherFees"`
	GrandTotal float64 `json:"grandTotal"`
}

// PurchaseInvoiceLine is an itemized line of a persisted invoice.
// MaterialID links the line to the project's material catalog and is
// empty until someone links it.
type PurchaseInvoiceLine struct {
	ID          string   `json:"id"`
	SourceText  string   `json:"sourceText"`
	Description string   `json:"description"`
	Quantity    float64  `json:"quantity"`
	UnitType    UnitType `json:"unitType"`
	UnitPrice   float64  `json:"unitPrice"`
	LineTotal   float64  `json:"lineTotal"`
	Confidence  float64  `json:"confidence"`
	NeedsReview bool     `json:"needsReview"`
	Notes       string   `json:"notes"`
	MaterialID  string   `json:"materialId,omitempty"`
}

// ExtractionRecord describes how the current content of an invoice was extracted
type ExtractionRecord struct {
	Provider    string         `json:"provider"`
	Model       string         `json:"model"`
	ExtractedAt time.Time      `json:"extractedAt"`
	PassUsed    ExtractionPass `json:"passUsed"`
	RawOutput   string         `json:"rawOutput"`
}

// InvoiceReview carries the reviewer's reconciliation decision.
type InvoiceReview struct {
	TotalsMismatchOverride bool   `json:"totalsMismatchOverride"`
	OverrideReason         string `json:"overrideReason"`
}

// PurchaseInvoice is a vendor invoice attached to a renovation project.
// Every field is mutable while Status is draft; a confirmed invoice is frozen.
type PurchaseInvoice struct {
	ID            string                `json:"id"`
	ProjectID     string                `json:"projectId"`
	AttachmentID  string                `json:"attachmentId"`
	Status        InvoiceStatus         `json:"status"`
	VendorName    string                `json:"vendorName"`
	InvoiceNumber string                `json:"invoiceNumber"`
	InvoiceDate   string                `json:"invoiceDate"`
	Currency      string                `json:"currency"`
	Totals        InvoiceTotals         `json:"totals"`
	Lines         []PurchaseInvoiceLine `json:"lines"`
	Extraction    ExtractionRecord      `json:"extraction"`
	Review        InvoiceReview         `json:"review"`
	CreatedAt     time.Time             `json:"createdAt"`
	UpdatedAt     time.Time             `json:"updatedAt"`
	ConfirmedAt   *time.Time            `json:"confirmedAt"`
}

// IsDraft returns true if the invoice can still be edited
func (i *PurchaseInvoice) IsDraft() bool {
	return i.Status == InvoiceStatusDraft
}

// DefaultCurrency is used whenever neither the document nor the user supplied one.
const DefaultCurrency = "CAD"
