package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/reno-purchases/internal/application/port"
	"github.com/garyjia/reno-purchases/internal/domain/entity"
)

// ConfirmationService posts draft invoices to the purchase ledger
type ConfirmationService interface {
	// Confirm validates a draft, freezes it and appends one ledger entry per line.
	// Either every entry is written together with the status change or nothing is.
	Confirm(ctx context.Context, projectID, invoiceID string, review entity.InvoiceReview) (*entity.PurchaseInvoice, error)
}

type confirmationServiceImpl struct {
	projectRepo  port.ProjectRepository
	materialRepo port.MaterialRepository
	invoiceRepo  port.InvoiceRepository
	ledgerRepo   port.LedgerRepository
	txManager    port.TransactionManager
	locker       port.Locker
	logger       *zap.Logger
	now          func() time.Time
}

// NewConfirmationService creates a new ConfirmationService
func NewConfirmationService(
	projectRepo port.ProjectRepository,
	materialRepo port.MaterialRepository,
	invoiceRepo port.InvoiceRepository,
	ledgerRepo port.LedgerRepository,
	txManager port.TransactionManager,
	locker port.Locker,
	logger *zap.Logger,
) ConfirmationService {
	return &confirmationServiceImpl{
		projectRepo:  projectRepo,
		materialRepo: materialRepo,
		invoiceRepo:  invoiceRepo,
		ledgerRepo:   ledgerRepo,
		txManager:    txManager,
		locker:       locker,
		logger:       logger,
		now:          time.Now,
	}
}

func (s *confirmationServiceImpl) Confirm(ctx context.Context, projectID, invoiceID string, review entity.InvoiceReview) (*entity.PurchaseInvoice, error) {
	if _, err := requireProject(ctx, s.projectRepo, projectID); err != nil {
		return nil, err
	}
	review.OverrideReason = strings.TrimSpace(review.OverrideReason)

	// Status check and ledger append form one critical section per invoice
	release, err := s.locker.Lock(ctx, invoiceLockKey(invoiceID))
	if err != nil {
		return nil, fmt.Errorf("lock invoice: %w", err)
	}
	defer release()

	var confirmed *entity.PurchaseInvoice
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		invoice, err := requireInvoice(txCtx, s.invoiceRepo, projectID, invoiceID)
		if err != nil {
			return err
		}
		if !invoice.IsDraft() {
			return fmt.Errorf("%w: invoice %s is already %s", entity.ErrInvalidState, invoiceID, invoice.Status)
		}

		if err := s.checkReconciliation(txCtx, invoice, review); err != nil {
			return err
		}

		postedAt := s.now().UTC()
		if err := s.invoiceRepo.MarkConfirmed(txCtx, projectID, invoiceID, review, postedAt); err != nil {
			return fmt.Errorf("mark confirmed: %w", err)
		}

		entries := buildLedgerEntries(invoice, postedAt)
		if err := s.ledgerRepo.Append(txCtx, entries); err != nil {
			return fmt.Errorf("append ledger entries: %w", err)
		}

		invoice.Status = entity.InvoiceStatusConfirmed
		invoice.Review = review
		invoice.ConfirmedAt = &postedAt
		invoice.UpdatedAt = postedAt
		confirmed = invoice
		return nil
	})
	if err != nil {
		s.logger.Info("Invoice confirmation rejected",
			zap.String("project_id", projectID),
			zap.String("invoice_id", invoiceID),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("Invoice confirmed",
		zap.String("project_id", projectID),
		zap.String("invoice_id", invoiceID),
		zap.Int("ledger_entries", len(confirmed.Lines)),
		zap.Bool("totals_override", review.TotalsMismatchOverride))

	return confirmed, nil
}

// checkReconciliation applies every confirmation precondition after the status check
func (s *confirmationServiceImpl) checkReconciliation(ctx context.Context, invoice *entity.PurchaseInvoice, review entity.InvoiceReview) error {
	report := Reconcile(invoice)
	if report.Mismatch && !review.TotalsMismatchOverride {
		return &ReconciliationError{Report: report}
	}
	if review.TotalsMismatchOverride && review.OverrideReason == "" {
		return entity.ErrOverrideReasonRequired
	}

	for i, line := range invoice.Lines {
		if strings.TrimSpace(line.MaterialID) == "" {
			return fmt.Errorf("line %d (%s): %w", i+1, lineLabel(line), entity.ErrMaterialRequired)
		}
		material, err := s.materialRepo.GetByID(ctx, invoice.ProjectID, line.MaterialID)
		if err != nil {
			return fmt.Errorf("get material: %w", err)
		}
		if material == nil {
			return fmt.Errorf("%w: line %d (%s): %w: %s",
				entity.ErrReconciliation, i+1, lineLabel(line), entity.ErrUnknownMaterial, line.MaterialID)
		}
	}

	return nil
}

// buildLedgerEntries emits one purchase entry per invoice line, all sharing postedAt
func buildLedgerEntries(invoice *entity.PurchaseInvoice, postedAt time.Time) []*entity.PurchaseLedgerEntry {
	entries := make([]*entity.PurchaseLedgerEntry, 0, len(invoice.Lines))
	for _, line := range invoice.Lines {
		note := line.Notes
		if note == "" {
			note = line.Description
		}
		entries = append(entries, &entity.PurchaseLedgerEntry{
			ID:            uuid.New().String(),
			ProjectID:     invoice.ProjectID,
			InvoiceID:     invoice.ID,
			InvoiceLineID: line.ID,
			PostedAt:      postedAt,
			MaterialID:    line.MaterialID,
			Quantity:      line.Quantity,
			UnitType:      line.UnitType,
			UnitPrice:     line.UnitPrice,
			LineTotal:     line.LineTotal,
			VendorName:    invoice.VendorName,
			InvoiceDate:   invoice.InvoiceDate,
			Currency:      invoice.Currency,
			EntryType:     entity.EntryTypePurchase,
			Note:          note,
		})
	}
	return entries
}

func lineLabel(line entity.PurchaseInvoiceLine) string {
	if line.Description != "" {
		return line.Description
	}
	if line.SourceText != "" {
		return line.SourceText
	}
	return line.ID
}
