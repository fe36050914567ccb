package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/garyjia/reno-purchases/internal/domain/entity"
)

func TestCoverage(t *testing.T) {
	assert.Equal(t, 0.5, Coverage(50, 100))
	assert.Equal(t, 1.0, Coverage(50, 0))
	assert.Equal(t, 1.0, Coverage(0, -10))
	assert.Equal(t, 1.2, Coverage(120, 100))
}

func TestShouldEscalate(t *testing.T) {
	tests := []struct {
		name      string
		lineCount int
		subTotal  float64
		lineSum   float64
		want      bool
	}{
		{"single summary line with low coverage", 1, 100, 50, true},
		{"no lines at all", 0, 100, 0, true},
		{"two lines with low coverage", 2, 100, 50, false},
		{"single line fully covering", 1, 100, 100, false},
		{"coverage exactly at threshold", 1, 100, 70, false},
		{"coverage just below threshold", 1, 100, 69.99, true},
		{"no declared subtotal", 1, 0, 0, false},
		{"negative subtotal", 0, -5, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldEscalate(tt.lineCount, tt.subTotal, tt.lineSum))
		})
	}
}

func linesOf(n int) []entity.ExtractedInvoiceLine {
	return make([]entity.ExtractedInvoiceLine, n)
}

func TestSelectPass(t *testing.T) {
	pass1 := &entity.ExtractedInvoice{PassUsed: entity.PassOne, Lines: linesOf(2)}

	t.Run("pass2 with more lines wins", func(t *testing.T) {
		pass2 := &entity.ExtractedInvoice{PassUsed: entity.PassTwo, Lines: linesOf(3)}
		assert.Same(t, pass2, SelectPass(pass1, pass2))
	})

	t.Run("tie keeps pass1", func(t *testing.T) {
		pass2 := &entity.ExtractedInvoice{PassUsed: entity.PassTwo, Lines: linesOf(2)}
		assert.Same(t, pass1, SelectPass(pass1, pass2))
	})

	t.Run("fewer lines keeps pass1", func(t *testing.T) {
		pass2 := &entity.ExtractedInvoice{PassUsed: entity.PassTwo, Lines: linesOf(1)}
		assert.Same(t, pass1, SelectPass(pass1, pass2))
	})

	t.Run("missing pass2 keeps pass1", func(t *testing.T) {
		assert.Same(t, pass1, SelectPass(pass1, nil))
	})
}
