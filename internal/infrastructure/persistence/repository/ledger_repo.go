package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/reno-purchases/internal/application/port"
	"github.com/garyjia/reno-purchases/internal/domain/entity"
	"github.com/garyjia/reno-purchases/internal/infrastructure/persistence/sqlite"
)

// LedgerRepository implements port.LedgerRepository on an append-only table
type LedgerRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *sqlite.DB, logger *zap.Logger) port.LedgerRepository {
	return &LedgerRepository{
		db:     db,
		logger: logger,
	}
}

// Append inserts ledger entries. Callers that need all-or-nothing
// semantics run it inside a transaction.
func (r *LedgerRepository) Append(ctx context.Context, entries []*entity.PurchaseLedgerEntry) error {
	query := `
		INSERT INTO purchase_ledger (
			id, project_id, invoice_id, invoice_line_id, posted_at, material_id,
			quantity, unit_type, unit_price, line_total, vendor_name, invoice_date,
			currency, entry_type, note
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	exec := r.db.Executor(ctx)
	for _, e := range entries {
		_, err := exec.ExecContext(ctx, query,
			e.ID,
			e.ProjectID,
			e.InvoiceID,
			e.InvoiceLineID,
			e.PostedAt.UTC(),
			e.MaterialID,
			e.Quantity,
			string(e.UnitType),
			e.UnitPrice,
			e.LineTotal,
			e.VendorName,
			e.InvoiceDate,
			e.Currency,
			e.EntryType,
			e.Note,
		)
		if err != nil {
			r.logger.Error("Failed to append ledger entry",
				zap.String("invoice_id", e.InvoiceID),
				zap.String("invoice_line_id", e.InvoiceLineID),
				zap.Error(err))
			return fmt.Errorf("failed to append ledger entry: %w", err)
		}
	}
	return nil
}

// ListByProject returns entries newest first, optionally filtered by invoice
func (r *LedgerRepository) ListByProject(ctx context.Context, projectID, invoiceID string) ([]*entity.PurchaseLedgerEntry, error) {
	query := `
		SELECT id, project_id, invoice_id, invoice_line_id, posted_at, material_id,
			quantity, unit_type, unit_price, line_total, vendor_name, invoice_date,
			currency, entry_type, note
		FROM purchase_ledger
		WHERE project_id = ? AND (? = '' OR invoice_id = ?)
		ORDER BY posted_at DESC, rowid DESC
	`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, projectID, invoiceID, invoiceID)
	if err != nil {
		r.logger.Error("Failed to list ledger entries", zap.Error(err))
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	entries := []*entity.PurchaseLedgerEntry{}
	for rows.Next() {
		var e entity.PurchaseLedgerEntry
		var unit string
		err := rows.Scan(
			&e.ID,
			&e.ProjectID,
			&e.InvoiceID,
			&e.InvoiceLineID,
			&e.PostedAt,
			&e.MaterialID,
			&e.Quantity,
			&unit,
			&e.UnitPrice,
			&e.LineTotal,
			&e.VendorName,
			&e.InvoiceDate,
			&e.Currency,
			&e.EntryType,
			&e.Note,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		e.UnitType = entity.UnitType(unit)
		entries = append(entries, &e)
	}

	return entries, rows.Err()
}
