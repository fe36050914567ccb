package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/reno-purchases/internal/domain/entity"
)

func TestConfirmationService_PostsOneEntryPerLine(t *testing.T) {
	env := newTestEnv(t)
	env.seedDraft(t, "inv-1", 80,
		testLine("l1", 2, 10, "mat-1"),
		testLine("l2", 3, 20, "mat-2"),
	)

	confirmed, err := env.confirmation.Confirm(context.Background(), testProjectID, "inv-1", entity.InvoiceReview{})
	require.NoError(t, err)

	assert.Equal(t, entity.InvoiceStatusConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.ConfirmedAt)
	assert.Equal(t, testNow, *confirmed.ConfirmedAt)

	entries, err := env.ledger.List(context.Background(), testProjectID, "inv-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	totals := map[string]float64{}
	for _, e := range entries {
		assert.Equal(t, testNow, e.PostedAt)
		assert.Equal(t, entity.EntryTypePurchase, e.EntryType)
		assert.Equal(t, "Lumber Co", e.VendorName)
		assert.Equal(t, "2026-10-01", e.InvoiceDate)
		assert.Equal(t, "CAD", e.Currency)
		assert.Equal(t, "inv-1", e.InvoiceID)
		totals[e.InvoiceLineID] = e.LineTotal
	}
	assert.Equal(t, map[string]float64{"l1": 20, "l2": 60}, totals)

	stored := env.store.invoice("inv-1")
	assert.Equal(t, entity.InvoiceStatusConfirmed, stored.Status)
}

func TestConfirmationService_TotalsTolerance(t *testing.T) {
	tests := []struct {
		name         string
		subTotal     float64
		wantMismatch bool
	}{
		{"exact", 80, false},
		{"one cent over", 80.01, false},
		{"one cent under", 79.99, false},
		{"two cents over", 80.02, true},
		{"two cents under", 79.98, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.seedDraft(t, "inv-1", tt.subTotal,
				testLine("l1", 2, 10, "mat-1"),
				testLine("l2", 3, 20, "mat-2"),
			)

			_, err := env.confirmation.Confirm(context.Background(), testProjectID, "inv-1", entity.InvoiceReview{})
			if !tt.wantMismatch {
				require.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.True(t, errors.Is(err, entity.ErrTotalsMismatch))
			assert.True(t, errors.Is(err, entity.ErrReconciliation))

			var recErr *ReconciliationError
			require.True(t, errors.As(err, &recErr))
			assert.Equal(t, 80.0, recErr.Report.LineSubtotal)
			assert.Equal(t, tt.subTotal, recErr.Report.DeclaredSubtotal)
		})
	}
}

func TestConfirmationService_MismatchThenOverride(t *testing.T) {
	env := newTestEnv(t)
	env.seedDraft(t, "inv-1", 100,
		testLine("l1", 2, 10, "mat-1"),
		testLine("l2", 3, 20, "mat-2"),
	)
	ctx := context.Background()

	_, err := env.confirmation.Confirm(ctx, testProjectID, "inv-1", entity.InvoiceReview{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, entity.ErrTotalsMismatch))
	assert.Equal(t, 0, env.store.ledgerCount())
	assert.True(t, env.store.invoice("inv-1").IsDraft())

	review := entity.InvoiceReview{TotalsMismatchOverride: true, OverrideReason: "Delivery fee folded into subtotal"}
	confirmed, err := env.confirmation.Confirm(ctx, testProjectID, "inv-1", review)
	require.NoError(t, err)
	assert.Equal(t, review, confirmed.Review)
	assert.Equal(t, 2, env.store.ledgerCount())
	assert.Equal(t, review, env.store.invoice("inv-1").Review)
}

func TestConfirmationService_OverrideRequiresReason(t *testing.T) {
	for _, reason := range []string{"", "   "} {
		env := newTestEnv(t)
		env.seedDraft(t, "inv-1", 100, testLine("l1", 2, 10, "mat-1"))

		_, err := env.confirmation.Confirm(context.Background(), testProjectID, "inv-1",
			entity.InvoiceReview{TotalsMismatchOverride: true, OverrideReason: reason})

		require.Error(t, err)
		assert.True(t, errors.Is(err, entity.ErrOverrideReasonRequired))
		assert.Equal(t, 0, env.store.ledgerCount())
		assert.True(t, env.store.invoice("inv-1").IsDraft())
	}
}

func TestConfirmationService_MaterialChecks(t *testing.T) {
	t.Run("missing material", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedDraft(t, "inv-1", 80,
			testLine("l1", 2, 10, "mat-1"),
			testLine("l2", 3, 20, ""),
		)

		_, err := env.confirmation.Confirm(context.Background(), testProjectID, "inv-1", entity.InvoiceReview{})

		require.Error(t, err)
		assert.True(t, errors.Is(err, entity.ErrMaterialRequired))
		assert.Equal(t, 0, env.store.ledgerCount())
	})

	t.Run("unknown material", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedDraft(t, "inv-1", 80,
			testLine("l1", 2, 10, "mat-1"),
			testLine("l2", 3, 20, "mat-404"),
		)

		_, err := env.confirmation.Confirm(context.Background(), testProjectID, "inv-1", entity.InvoiceReview{})

		require.Error(t, err)
		assert.True(t, errors.Is(err, entity.ErrUnknownMaterial))
		assert.True(t, errors.Is(err, entity.ErrReconciliation))
		assert.Equal(t, 0, env.store.ledgerCount())
		assert.True(t, env.store.invoice("inv-1").IsDraft())
	})
}

func TestConfirmationService_RejectsNonDraft(t *testing.T) {
	env := newTestEnv(t)
	env.seedDraft(t, "inv-1", 20, testLine("l1", 2, 10, "mat-1"))
	ctx := context.Background()

	_, err := env.confirmation.Confirm(ctx, testProjectID, "inv-1", entity.InvoiceReview{})
	require.NoError(t, err)

	_, err = env.confirmation.Confirm(ctx, testProjectID, "inv-1", entity.InvoiceReview{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, entity.ErrInvalidState))
	assert.Equal(t, 1, env.store.ledgerCount())
}

func TestConfirmationService_NotFound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.confirmation.Confirm(ctx, testProjectID, "missing", entity.InvoiceReview{})
	assert.True(t, errors.Is(err, entity.ErrNotFound))

	_, err = env.confirmation.Confirm(ctx, "no-such-project", "inv-1", entity.InvoiceReview{})
	assert.True(t, errors.Is(err, entity.ErrNotFound))
}

func TestConfirmationService_LedgerFailureLeavesDraft(t *testing.T) {
	env := newTestEnv(t)
	env.seedDraft(t, "inv-1", 20, testLine("l1", 2, 10, "mat-1"))
	env.ledgerRepo.appendErr = errors.New("disk full")

	_, err := env.confirmation.Confirm(context.Background(), testProjectID, "inv-1", entity.InvoiceReview{})

	require.Error(t, err)
	assert.Equal(t, 0, env.store.ledgerCount())
	stored := env.store.invoice("inv-1")
	assert.True(t, stored.IsDraft())
	assert.Nil(t, stored.ConfirmedAt)
}

func TestConfirmationService_LockFailure(t *testing.T) {
	env := newTestEnv(t)
	env.seedDraft(t, "inv-1", 20, testLine("l1", 2, 10, "mat-1"))
	env.locker.lockErr = errors.New("lock not obtained")

	_, err := env.confirmation.Confirm(context.Background(), testProjectID, "inv-1", entity.InvoiceReview{})

	require.Error(t, err)
	assert.Equal(t, 0, env.store.ledgerCount())
	assert.True(t, env.store.invoice("inv-1").IsDraft())
}

func TestConfirmationService_ConcurrentConfirmsPostOnce(t *testing.T) {
	env := newTestEnv(t)
	env.seedDraft(t, "inv-1", 80,
		testLine("l1", 2, 10, "mat-1"),
		testLine("l2", 3, 20, "mat-2"),
	)

	const workers = 8
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.confirmation.Confirm(context.Background(), testProjectID, "inv-1", entity.InvoiceReview{})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, rejected int
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, entity.ErrInvalidState))
		rejected++
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, rejected)
	assert.Equal(t, 2, env.store.ledgerCount())
	assert.Contains(t, env.locker.keys, "invoice:inv-1")
}

func TestReconcile(t *testing.T) {
	inv := &entity.PurchaseInvoice{
		Totals: entity.InvoiceTotals{SubTotal: 10.30},
		Lines: []entity.PurchaseInvoiceLine{
			{Quantity: 3, UnitPrice: 0.1},
			{Quantity: 1, UnitPrice: 10},
		},
	}

	report := Reconcile(inv)

	assert.False(t, report.Mismatch)
	assert.Equal(t, 10.3, report.LineSubtotal)
	assert.Equal(t, 0.0, report.Difference)

	inv.Totals.SubTotal = 0
	inv.Lines = nil
	assert.False(t, Reconcile(inv).Mismatch)
}
