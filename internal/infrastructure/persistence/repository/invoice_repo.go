package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/reno-purchases/internal/application/port"
	"github.com/garyjia/reno-purchases/internal/domain/entity"
	"github.com/garyjia/reno-purchases/internal/infrastructure/persistence/sqlite"
)

// InvoiceRepository implements port.InvoiceRepository.
// Lines are stored as a JSON document next to the header columns.
type InvoiceRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *sqlite.DB, logger *zap.Logger) port.InvoiceRepository {
	return &InvoiceRepository{
		db:     db,
		logger: logger,
	}
}

const invoiceColumns = `
	id, project_id, attachment_id, status, vendor_name, invoice_number, invoice_date, currency,
	sub_total, tax, shipping, other_fees, grand_total, lines,
	extraction_provider, extraction_model, extracted_at, pass_used, raw_output,
	totals_mismatch_override, override_reason, created_at, updated_at, confirmed_at
`

// CreateDraft creates a new draft invoice record
func (r *InvoiceRepository) CreateDraft(ctx context.Context, invoice *entity.PurchaseInvoice) error {
	if invoice.Status != entity.InvoiceStatusDraft {
		return fmt.Errorf("%w: new invoices must be drafts", entity.ErrInvalidState)
	}

	lines, err := marshalLines(invoice.Lines)
	if err != nil {
		return err
	}

	query := `INSERT INTO purchase_invoices (` + invoiceColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.Executor(ctx).ExecContext(ctx, query,
		invoice.ID,
		invoice.ProjectID,
		invoice.AttachmentID,
		string(invoice.Status),
		invoice.VendorName,
		invoice.InvoiceNumber,
		invoice.InvoiceDate,
		invoice.Currency,
		invoice.Totals.SubTotal,
		invoice.Totals.Tax,
		invoice.Totals.Shipping,
		invoice.Totals.OtherFees,
		invoice.Totals.GrandTotal,
		lines,
		invoice.Extraction.Provider,
		invoice.Extraction.Model,
		invoice.Extraction.ExtractedAt.UTC(),
		string(invoice.Extraction.PassUsed),
		invoice.Extraction.RawOutput,
		invoice.Review.TotalsMismatchOverride,
		invoice.Review.OverrideReason,
		invoice.CreatedAt.UTC(),
		invoice.UpdatedAt.UTC(),
		nil,
	)
	if err != nil {
		r.logger.Error("Failed to create invoice", zap.Error(err))
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	return nil
}

// GetByID retrieves an invoice scoped to its project
func (r *InvoiceRepository) GetByID(ctx context.Context, projectID, id string) (*entity.PurchaseInvoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM purchase_invoices WHERE project_id = ? AND id = ?`

	invoice, err := scanInvoice(r.db.Executor(ctx).QueryRowContext(ctx, query, projectID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get invoice by ID", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return invoice, nil
}

// ListByProject returns all invoices of a project, newest first
func (r *InvoiceRepository) ListByProject(ctx context.Context, projectID string) ([]*entity.PurchaseInvoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM purchase_invoices
		WHERE project_id = ?
		ORDER BY created_at DESC, id DESC`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, projectID)
	if err != nil {
		r.logger.Error("Failed to list invoices", zap.Error(err))
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	invoices := []*entity.PurchaseInvoice{}
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, invoice)
	}

	return invoices, rows.Err()
}

// UpdateDraft replaces the editable content of a draft
func (r *InvoiceRepository) UpdateDraft(ctx context.Context, invoice *entity.PurchaseInvoice) error {
	lines, err := marshalLines(invoice.Lines)
	if err != nil {
		return err
	}

	query := `
		UPDATE purchase_invoices SET
			vendor_name = ?, invoice_number = ?, invoice_date = ?, currency = ?,
			sub_total = ?, tax = ?, shipping = ?, other_fees = ?, grand_total = ?, lines = ?,
			extraction_provider = ?, extraction_model = ?, extracted_at = ?, pass_used = ?, raw_output = ?,
			totals_mismatch_override = ?, override_reason = ?, updated_at = ?
		WHERE project_id = ? AND id = ? AND status = 'draft'
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		invoice.VendorName,
		invoice.InvoiceNumber,
		invoice.InvoiceDate,
		invoice.Currency,
		invoice.Totals.SubTotal,
		invoice.Totals.Tax,
		invoice.Totals.Shipping,
		invoice.Totals.OtherFees,
		invoice.Totals.GrandTotal,
		lines,
		invoice.Extraction.Provider,
		invoice.Extraction.Model,
		invoice.Extraction.ExtractedAt.UTC(),
		string(invoice.Extraction.PassUsed),
		invoice.Extraction.RawOutput,
		invoice.Review.TotalsMismatchOverride,
		invoice.Review.OverrideReason,
		invoice.UpdatedAt.UTC(),
		invoice.ProjectID,
		invoice.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update invoice", zap.String("id", invoice.ID), zap.Error(err))
		return fmt.Errorf("failed to update invoice: %w", err)
	}

	return r.checkDraftAffected(ctx, result, invoice.ProjectID, invoice.ID)
}

// MarkConfirmed flips a draft to confirmed. The status condition makes the
// transition happen at most once even without an outer lock.
func (r *InvoiceRepository) MarkConfirmed(ctx context.Context, projectID, id string, review entity.InvoiceReview, confirmedAt time.Time) error {
	query := `
		UPDATE purchase_invoices SET
			status = 'confirmed', totals_mismatch_override = ?, override_reason = ?,
			confirmed_at = ?, updated_at = ?
		WHERE project_id = ? AND id = ? AND status = 'draft'
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		review.TotalsMismatchOverride,
		review.OverrideReason,
		confirmedAt.UTC(),
		confirmedAt.UTC(),
		projectID,
		id,
	)
	if err != nil {
		r.logger.Error("Failed to confirm invoice", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to confirm invoice: %w", err)
	}

	return r.checkDraftAffected(ctx, result, projectID, id)
}

// DeleteDraft removes a draft
func (r *InvoiceRepository) DeleteDraft(ctx context.Context, projectID, id string) error {
	query := `DELETE FROM purchase_invoices WHERE project_id = ? AND id = ? AND status = 'draft'`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query, projectID, id)
	if err != nil {
		r.logger.Error("Failed to delete invoice", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete invoice: %w", err)
	}

	return r.checkDraftAffected(ctx, result, projectID, id)
}

// checkDraftAffected turns a zero-row draft mutation into ErrNotFound or ErrInvalidState
func (r *InvoiceRepository) checkDraftAffected(ctx context.Context, result sql.Result, projectID, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var status string
	err = r.db.Executor(ctx).QueryRowContext(ctx,
		`SELECT status FROM purchase_invoices WHERE project_id = ? AND id = ?`, projectID, id,
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: invoice %s", entity.ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("failed to get invoice status: %w", err)
	}
	return fmt.Errorf("%w: invoice %s is %s", entity.ErrInvalidState, id, status)
}

func scanInvoice(row scanner) (*entity.PurchaseInvoice, error) {
	var invoice entity.PurchaseInvoice
	var status, passUsed, lines string
	var confirmedAt sql.NullTime

	err := row.Scan(
		&invoice.ID,
		&invoice.ProjectID,
		&invoice.AttachmentID,
		&status,
		&invoice.VendorName,
		&invoice.InvoiceNumber,
		&invoice.InvoiceDate,
		&invoice.Currency,
		&invoice.Totals.SubTotal,
		&invoice.Totals.Tax,
		&invoice.Totals.Shipping,
		&invoice.Totals.OtherFees,
		&invoice.Totals.GrandTotal,
		&lines,
		&invoice.Extraction.Provider,
		&invoice.Extraction.Model,
		&invoice.Extraction.ExtractedAt,
		&passUsed,
		&invoice.Extraction.RawOutput,
		&invoice.Review.TotalsMismatchOverride,
		&invoice.Review.OverrideReason,
		&invoice.CreatedAt,
		&invoice.UpdatedAt,
		&confirmedAt,
	)
	if err != nil {
		return nil, err
	}

	invoice.Status = entity.InvoiceStatus(status)
	invoice.Extraction.PassUsed = entity.ExtractionPass(passUsed)
	if confirmedAt.Valid {
		t := confirmedAt.Time
		invoice.ConfirmedAt = &t
	}

	if err := json.Unmarshal([]byte(lines), &invoice.Lines); err != nil {
		return nil, fmt.Errorf("failed to unmarshal invoice lines: %w", err)
	}
	if invoice.Lines == nil {
		invoice.Lines = []entity.PurchaseInvoiceLine{}
	}

	return &invoice, nil
}

func marshalLines(lines []entity.PurchaseInvoiceLine) (string, error) {
	if lines == nil {
		lines = []entity.PurchaseInvoiceLine{}
	}
	data, err := json.Marshal(lines)
	if err != nil {
		return "", fmt.Errorf("failed to marshal invoice lines: %w", err)
	}
	return string(data), nil
}
