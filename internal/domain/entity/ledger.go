package entity

import "time"

// EntryTypePurchase is the only entry type posted by invoice confirmation
const EntryTypePurchase = "purchase"

// PurchaseLedgerEntry is an immutable posting of one confirmed invoice line.
// Entries are append-only per project.
type PurchaseLedgerEntry struct {
	ID            string    `json:"id"`
	ProjectID     string    `json:"projectId"`
	InvoiceID     string    `json:"invoiceId"`
	InvoiceLineID string    `json:"invoiceLineId"`
	PostedAt      time.Time `json:"postedAt"`
	MaterialID    string    `json:"materialId"`
	Quantity      float64   `json:"quantity"`
	UnitType      UnitType  `json:"unitType"`
	UnitPrice     float64   `json:"unitPrice"`
	LineTotal     float64   `json:"lineTotal"`
	VendorName    string    `json:"vendorName"`
	InvoiceDate   string    `json:"invoiceDate"`
	Currency      string    `json:"currency"`
	EntryType     string    `json:"entryType"`
	Note          string    `json:"note"`
}
