package service

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/garyjia/reno-purchases/internal/domain/entity"
)

// TotalsTolerance is the largest difference between the computed line
// subtotal and the declared subtotal that still counts as a match.
var TotalsTolerance = decimal.RequireFromString("0.01")

// ReconciliationReport compares the itemized lines of an invoice with its declared subtotal
type ReconciliationReport struct {
	LineSubtotal     float64 `json:"lineSubtotal"`
	DeclaredSubtotal float64 `json:"declaredSubtotal"`
	Difference       float64 `json:"difference"`
	Mismatch         bool    `json:"mismatch"`
}

// Reconcile computes Σ(quantity × unitPrice) over the lines and compares it
// with totals.subTotal. Arithmetic is decimal so that a difference of exactly
// one cent is not misread as a mismatch.
func Reconcile(invoice *entity.PurchaseInvoice) ReconciliationReport {
	sum := decimal.Zero
	for _, line := range invoice.Lines {
		sum = sum.Add(decimal.NewFromFloat(line.Quantity).Mul(decimal.NewFromFloat(line.UnitPrice)))
	}
	declared := decimal.NewFromFloat(invoice.Totals.SubTotal)
	diff := sum.Sub(declared)

	return ReconciliationReport{
		LineSubtotal:     sum.Round(4).InexactFloat64(),
		DeclaredSubtotal: invoice.Totals.SubTotal,
		Difference:       diff.Round(4).InexactFloat64(),
		Mismatch:         diff.Abs().GreaterThan(TotalsTolerance),
	}
}

// ReconciliationError is returned by confirmation when the totals do not
// match and no override was given. It carries the report for the reviewer.
type ReconciliationError struct {
	Report ReconciliationReport
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("%v: lines sum to %.2f, invoice subtotal is %.2f (difference %.2f)",
		entity.ErrTotalsMismatch, e.Report.LineSubtotal, e.Report.DeclaredSubtotal, e.Report.Difference)
}

func (e *ReconciliationError) Unwrap() error {
	return entity.ErrTotalsMismatch
}
