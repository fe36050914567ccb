package extraction

import "github.com/garyjia/reno-purchases/internal/domain/entity"

// CoverageThreshold is the minimum share of the subtotal the extracted lines
// must explain before a single-line extraction is trusted.
const CoverageThreshold = 0.7

// Coverage is the ratio of summed line totals to the declared subtotal.
// A subtotal of zero or less counts as full coverage.
func Coverage(lineSum, subTotal float64) float64 {
	if subTotal <= 0 {
		return 1
	}
	return lineSum / subTotal
}

// ShouldEscalate decides whether a second, thorough pass is warranted.
// It targets the engine collapsing an itemized invoice into one summary line.
func ShouldEscalate(lineCount int, subTotal, lineSum float64) bool {
	return lineCount <= 1 && subTotal > 0 && Coverage(lineSum, subTotal) < CoverageThreshold
}

// ShouldEscalateInvoice applies ShouldEscalate to a normalized extraction
func ShouldEscalateInvoice(inv *entity.ExtractedInvoice) bool {
	return ShouldEscalate(len(inv.Lines), inv.Totals.SubTotal, inv.LineTotalSum())
}

// SelectPass keeps pass2 only when it itemized strictly more lines
func SelectPass(pass1, pass2 *entity.ExtractedInvoice) *entity.ExtractedInvoice {
	if pass2 != nil && len(pass2.Lines) > len(pass1.Lines) {
		return pass2
	}
	return pass1
}
