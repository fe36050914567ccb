package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/reno-purchases/internal/application/port"
	"github.com/garyjia/reno-purchases/internal/domain/entity"
)

// InvoiceService manages the draft lifecycle of purchase invoices:
// extraction into a draft, editing, forced re-extraction and deletion.
type InvoiceService interface {
	CreateFromExtraction(ctx context.Context, projectID, attachmentID string, opts ExtractOptions) (*entity.PurchaseInvoice, error)
	ForceSecondPass(ctx context.Context, projectID, invoiceID string) (*entity.PurchaseInvoice, error)
	Update(ctx context.Context, projectID, invoiceID string, update InvoiceUpdate) (*entity.PurchaseInvoice, error)
	Delete(ctx context.Context, projectID, invoiceID string) error
	Get(ctx context.Context, projectID, invoiceID string) (*entity.PurchaseInvoice, error)
	List(ctx context.Context, projectID string) ([]*entity.PurchaseInvoice, error)
}

// ExtractOptions overrides the configured provider or fast model for one extraction
type ExtractOptions struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// InvoiceUpdate carries the editable content of a draft. A nil field keeps
// the stored value; a supplied field replaces it whole, so Lines replaces
// every line and Totals every total.
type InvoiceUpdate struct {
	VendorName    *string                       `json:"vendorName"`
	InvoiceNumber *string                       `json:"invoiceNumber"`
	InvoiceDate   *string                       `json:"invoiceDate"`
	Currency      *string                       `json:"currency"`
	Totals        *entity.InvoiceTotals         `json:"totals"`
	Lines         *[]entity.PurchaseInvoiceLine `json:"lines"`
	Review        *entity.InvoiceReview         `json:"review"`
}

type invoiceServiceImpl struct {
	projectRepo  port.ProjectRepository
	materialRepo port.MaterialRepository
	invoiceRepo  port.InvoiceRepository
	attachments  AttachmentService
	extractor    port.InvoiceExtractor
	locker       port.Locker
	logger       *zap.Logger
	now          func() time.Time
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(
	projectRepo port.ProjectRepository,
	materialRepo port.MaterialRepository,
	invoiceRepo port.InvoiceRepository,
	attachments AttachmentService,
	extractor port.InvoiceExtractor,
	locker port.Locker,
	logger *zap.Logger,
) InvoiceService {
	return &invoiceServiceImpl{
		projectRepo:  projectRepo,
		materialRepo: materialRepo,
		invoiceRepo:  invoiceRepo,
		attachments:  attachments,
		extractor:    extractor,
		locker:       locker,
		logger:       logger,
		now:          time.Now,
	}
}

// CreateFromExtraction runs one extraction against an invoice attachment and stores the result as a new draft
func (s *invoiceServiceImpl) CreateFromExtraction(ctx context.Context, projectID, attachmentID string, opts ExtractOptions) (*entity.PurchaseInvoice, error) {
	file, err := s.attachments.Resolve(ctx, projectID, attachmentID)
	if err != nil {
		return nil, err
	}
	att := file.Attachment
	if !att.IsInvoice() {
		return nil, fmt.Errorf("%w: attachment %s is filed as %q, not %q",
			entity.ErrInvalidInput, attachmentID, att.Category, entity.AttachmentCategoryInvoice)
	}

	extracted, err := s.extractor.Extract(ctx, port.ExtractRequest{
		Content:  file.Content,
		MimeType: att.MimeType,
		FileName: att.FileName,
		Provider: opts.Provider,
		Model:    opts.Model,
	})
	if err != nil {
		s.logger.Error("Extraction failed",
			zap.String("project_id", projectID),
			zap.String("attachment_id", attachmentID),
			zap.Error(err))
		return nil, err
	}

	now := s.now().UTC()
	invoice := &entity.PurchaseInvoice{
		ID:           uuid.New().String(),
		ProjectID:    projectID,
		AttachmentID: attachmentID,
		Status:       entity.InvoiceStatusDraft,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.applyExtraction(invoice, att, extracted, s.extractor.ProviderName(opts.Provider), now)

	if err := s.invoiceRepo.CreateDraft(ctx, invoice); err != nil {
		s.logger.Error("Failed to store draft invoice",
			zap.String("project_id", projectID),
			zap.Error(err))
		return nil, fmt.Errorf("create draft: %w", err)
	}

	s.logger.Info("Draft invoice created",
		zap.String("project_id", projectID),
		zap.String("invoice_id", invoice.ID),
		zap.String("attachment_id", attachmentID),
		zap.String("pass", string(invoice.Extraction.PassUsed)),
		zap.Int("lines", len(invoice.Lines)))

	return invoice, nil
}

// ForceSecondPass re-extracts the original attachment with the thorough pass and replaces the draft content.
// Line edits and the review decision are discarded.
func (s *invoiceServiceImpl) ForceSecondPass(ctx context.Context, projectID, invoiceID string) (*entity.PurchaseInvoice, error) {
	if _, err := requireProject(ctx, s.projectRepo, projectID); err != nil {
		return nil, err
	}
	invoice, err := requireInvoice(ctx, s.invoiceRepo, projectID, invoiceID)
	if err != nil {
		return nil, err
	}
	if !invoice.IsDraft() {
		return nil, fmt.Errorf("%w: invoice %s is %s", entity.ErrInvalidState, invoiceID, invoice.Status)
	}

	file, err := s.attachments.Resolve(ctx, projectID, invoice.AttachmentID)
	if err != nil {
		return nil, err
	}

	// The engine call runs outside the lock; the draft is re-read and
	// re-checked before anything is written.
	provider := invoice.Extraction.Provider
	extracted, err := s.extractor.Extract(ctx, port.ExtractRequest{
		Content:         file.Content,
		MimeType:        file.Attachment.MimeType,
		FileName:        file.Attachment.FileName,
		Provider:        provider,
		ForceSecondPass: true,
	})
	if err != nil {
		s.logger.Error("Second pass extraction failed",
			zap.String("invoice_id", invoiceID),
			zap.Error(err))
		return nil, err
	}

	release, err := s.locker.Lock(ctx, invoiceLockKey(invoiceID))
	if err != nil {
		return nil, fmt.Errorf("lock invoice: %w", err)
	}
	defer release()

	current, err := requireInvoice(ctx, s.invoiceRepo, projectID, invoiceID)
	if err != nil {
		return nil, err
	}
	if !current.IsDraft() {
		return nil, fmt.Errorf("%w: invoice %s is %s", entity.ErrInvalidState, invoiceID, current.Status)
	}

	now := s.now().UTC()
	s.applyExtraction(current, file.Attachment, extracted, s.extractor.ProviderName(provider), now)
	current.Review = entity.InvoiceReview{}
	current.UpdatedAt = now

	if err := s.invoiceRepo.UpdateDraft(ctx, current); err != nil {
		return nil, fmt.Errorf("update draft: %w", err)
	}

	s.logger.Info("Draft invoice re-extracted",
		zap.String("invoice_id", invoiceID),
		zap.String("pass", string(current.Extraction.PassUsed)),
		zap.Int("lines", len(current.Lines)))

	return current, nil
}

// Update applies the supplied fields to a draft and keeps everything else
func (s *invoiceServiceImpl) Update(ctx context.Context, projectID, invoiceID string, update InvoiceUpdate) (*entity.PurchaseInvoice, error) {
	if _, err := requireProject(ctx, s.projectRepo, projectID); err != nil {
		return nil, err
	}

	release, err := s.locker.Lock(ctx, invoiceLockKey(invoiceID))
	if err != nil {
		return nil, fmt.Errorf("lock invoice: %w", err)
	}
	defer release()

	invoice, err := requireInvoice(ctx, s.invoiceRepo, projectID, invoiceID)
	if err != nil {
		return nil, err
	}
	if !invoice.IsDraft() {
		return nil, fmt.Errorf("%w: invoice %s is %s", entity.ErrInvalidState, invoiceID, invoice.Status)
	}

	var lines []entity.PurchaseInvoiceLine
	if update.Lines != nil {
		if lines, err = s.validateLines(ctx, projectID, *update.Lines); err != nil {
			return nil, err
		}
	}
	if update.Totals != nil {
		if err := validateTotals(*update.Totals); err != nil {
			return nil, err
		}
	}

	if update.Lines != nil {
		invoice.Lines = lines
	}
	if update.Totals != nil {
		invoice.Totals = *update.Totals
	}
	if update.VendorName != nil {
		invoice.VendorName = strings.TrimSpace(*update.VendorName)
	}
	if update.InvoiceNumber != nil {
		invoice.InvoiceNumber = strings.TrimSpace(*update.InvoiceNumber)
	}
	if update.InvoiceDate != nil {
		invoice.InvoiceDate = strings.TrimSpace(*update.InvoiceDate)
	}
	if update.Currency != nil {
		invoice.Currency = normalizeCurrency(*update.Currency)
	}
	if update.Review != nil {
		invoice.Review = *update.Review
	}
	invoice.UpdatedAt = s.now().UTC()

	if err := s.invoiceRepo.UpdateDraft(ctx, invoice); err != nil {
		return nil, fmt.Errorf("update draft: %w", err)
	}

	s.logger.Info("Draft invoice updated",
		zap.String("invoice_id", invoiceID),
		zap.Int("lines", len(invoice.Lines)))

	return invoice, nil
}

// Delete removes a draft. Confirmed invoices cannot be deleted.
func (s *invoiceServiceImpl) Delete(ctx context.Context, projectID, invoiceID string) error {
	if _, err := requireProject(ctx, s.projectRepo, projectID); err != nil {
		return err
	}

	release, err := s.locker.Lock(ctx, invoiceLockKey(invoiceID))
	if err != nil {
		return fmt.Errorf("lock invoice: %w", err)
	}
	defer release()

	invoice, err := requireInvoice(ctx, s.invoiceRepo, projectID, invoiceID)
	if err != nil {
		return err
	}
	if !invoice.IsDraft() {
		return fmt.Errorf("%w: invoice %s is %s", entity.ErrInvalidState, invoiceID, invoice.Status)
	}

	if err := s.invoiceRepo.DeleteDraft(ctx, projectID, invoiceID); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}

	s.logger.Info("Draft invoice deleted", zap.String("invoice_id", invoiceID))
	return nil
}

func (s *invoiceServiceImpl) Get(ctx context.Context, projectID, invoiceID string) (*entity.PurchaseInvoice, error) {
	if _, err := requireProject(ctx, s.projectRepo, projectID); err != nil {
		return nil, err
	}
	return requireInvoice(ctx, s.invoiceRepo, projectID, invoiceID)
}

// List returns the invoices of a project, newest first
func (s *invoiceServiceImpl) List(ctx context.Context, projectID string) ([]*entity.PurchaseInvoice, error) {
	if _, err := requireProject(ctx, s.projectRepo, projectID); err != nil {
		return nil, err
	}

	invoices, err := s.invoiceRepo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return invoices, nil
}

// applyExtraction copies an extraction result onto a draft. Lines get fresh
// ids and start unlinked from the material catalog.
func (s *invoiceServiceImpl) applyExtraction(
	invoice *entity.PurchaseInvoice,
	att *entity.Attachment,
	extracted *entity.ExtractedInvoice,
	provider string,
	extractedAt time.Time,
) {
	invoice.VendorName = extracted.VendorName
	invoice.InvoiceNumber = firstNonEmpty(extracted.InvoiceNumber, att.Title, att.FileName)
	invoice.InvoiceDate = extracted.InvoiceDate
	if invoice.InvoiceDate == "" {
		invoice.InvoiceDate = extractedAt.Format("2006-01-02")
	}
	invoice.Currency = normalizeCurrency(extracted.Currency)
	invoice.Totals = extracted.Totals

	invoice.Lines = make([]entity.PurchaseInvoiceLine, 0, len(extracted.Lines))
	for _, line := range extracted.Lines {
		invoice.Lines = append(invoice.Lines, entity.PurchaseInvoiceLine{
			ID:          uuid.New().String(),
			SourceText:  line.SourceText,
			Description: line.Description,
			Quantity:    line.Quantity,
			UnitType:    line.UnitType,
			UnitPrice:   line.UnitPrice,
			LineTotal:   line.LineTotal,
			Confidence:  line.Confidence,
			NeedsReview: line.NeedsReview,
			Notes:       line.Notes,
		})
	}

	invoice.Extraction = entity.ExtractionRecord{
		Provider:    provider,
		Model:       extracted.ModelUsed,
		ExtractedAt: extractedAt,
		PassUsed:    extracted.PassUsed,
		RawOutput:   extracted.RawOutput,
	}
}

// validateLines checks edited lines and fills in ids, units and missing line totals
func (s *invoiceServiceImpl) validateLines(ctx context.Context, projectID string, in []entity.PurchaseInvoiceLine) ([]entity.PurchaseInvoiceLine, error) {
	lines := make([]entity.PurchaseInvoiceLine, 0, len(in))
	seen := make(map[string]bool, len(in))

	for i, line := range in {
		if !isFiniteNonNegative(line.Quantity) || !isFiniteNonNegative(line.UnitPrice) {
			return nil, fmt.Errorf("%w: line %d: quantity and unit price must be non-negative numbers", entity.ErrInvalidInput, i+1)
		}
		if math.IsNaN(line.LineTotal) || math.IsInf(line.LineTotal, 0) {
			return nil, fmt.Errorf("%w: line %d: line total must be a number", entity.ErrInvalidInput, i+1)
		}
		if line.Confidence < 0 || line.Confidence > 1 {
			return nil, fmt.Errorf("%w: line %d: confidence must be between 0 and 1", entity.ErrInvalidInput, i+1)
		}

		unit := entity.UnitOther
		if line.UnitType != "" {
			parsed, ok := entity.ParseUnitType(string(line.UnitType))
			if !ok {
				return nil, fmt.Errorf("%w: line %d: unknown unit type %q", entity.ErrInvalidInput, i+1, line.UnitType)
			}
			unit = parsed
		}
		line.UnitType = unit

		if line.ID == "" || seen[line.ID] {
			line.ID = uuid.New().String()
		}
		seen[line.ID] = true

		if line.LineTotal <= 0 {
			line.LineTotal = line.Quantity * line.UnitPrice
			if math.IsInf(line.LineTotal, 0) {
				return nil, fmt.Errorf("%w: line %d: quantity times unit price overflows", entity.ErrInvalidInput, i+1)
			}
		}

		line.MaterialID = strings.TrimSpace(line.MaterialID)
		if line.MaterialID != "" {
			material, err := s.materialRepo.GetByID(ctx, projectID, line.MaterialID)
			if err != nil {
				return nil, fmt.Errorf("get material: %w", err)
			}
			if material == nil {
				return nil, fmt.Errorf("line %d: %w: %s", i+1, entity.ErrUnknownMaterial, line.MaterialID)
			}
		}

		lines = append(lines, line)
	}

	return lines, nil
}

func validateTotals(t entity.InvoiceTotals) error {
	for name, v := range map[string]float64{
		"subTotal":   t.SubTotal,
		"tax":        t.Tax,
		"shipping":   t.Shipping,
		"otherFees":  t.OtherFees,
		"grandTotal": t.GrandTotal,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: totals.%s must be a number", entity.ErrInvalidInput, name)
		}
	}
	return nil
}

func isFiniteNonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

func normalizeCurrency(currency string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return entity.DefaultCurrency
	}
	return currency
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
