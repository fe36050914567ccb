package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/reno-purchases/internal/application/port"
	"github.com/garyjia/reno-purchases/internal/domain/entity"
)

// LedgerService reads the append-only purchase ledger of a project
type LedgerService interface {
	// List returns entries newest first; invoiceID is an optional filter
	List(ctx context.Context, projectID, invoiceID string) ([]*entity.PurchaseLedgerEntry, error)

	// ExportXLSX renders the project ledger as a spreadsheet workbook
	ExportXLSX(ctx context.Context, projectID string) ([]byte, error)
}

const ledgerSheetName = "Ledger"

var ledgerColumns = []string{
	"Posted At", "Invoice Date", "Vendor", "Material ID", "Material", "Quantity", "Unit",
	"Unit Price", "Line Total", "Currency", "Entry Type", "Note", "Invoice ID", "Invoice Line ID",
}

type ledgerServiceImpl struct {
	projectRepo  port.ProjectRepository
	materialRepo port.MaterialRepository
	ledgerRepo   port.LedgerRepository
	logger       *zap.Logger
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(
	projectRepo port.ProjectRepository,
	materialRepo port.MaterialRepository,
	ledgerRepo port.LedgerRepository,
	logger *zap.Logger,
) LedgerService {
	return &ledgerServiceImpl{
		projectRepo:  projectRepo,
		materialRepo: materialRepo,
		ledgerRepo:   ledgerRepo,
		logger:       logger,
	}
}

func (s *ledgerServiceImpl) List(ctx context.Context, projectID, invoiceID string) ([]*entity.PurchaseLedgerEntry, error) {
	if _, err := requireProject(ctx, s.projectRepo, projectID); err != nil {
		return nil, err
	}

	entries, err := s.ledgerRepo.ListByProject(ctx, projectID, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	return entries, nil
}

func (s *ledgerServiceImpl) ExportXLSX(ctx context.Context, projectID string) ([]byte, error) {
	project, err := requireProject(ctx, s.projectRepo, projectID)
	if err != nil {
		return nil, err
	}

	entries, err := s.ledgerRepo.ListByProject(ctx, projectID, "")
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}

	materials, err := s.materialRepo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list materials: %w", err)
	}
	materialNames := make(map[string]string, len(materials))
	for _, m := range materials {
		materialNames[m.ID] = m.Name
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), ledgerSheetName); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]interface{}, len(ledgerColumns))
	for i, col := range ledgerColumns {
		header[i] = col
	}
	if err := f.SetSheetRow(ledgerSheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	for i, e := range entries {
		row := []interface{}{
			e.PostedAt.UTC().Format(time.RFC3339),
			e.InvoiceDate,
			e.VendorName,
			e.MaterialID,
			materialNames[e.MaterialID],
			e.Quantity,
			string(e.UnitType),
			e.UnitPrice,
			e.LineTotal,
			e.Currency,
			e.EntryType,
			e.Note,
			e.InvoiceID,
			e.InvoiceLineID,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("failed to address row %d: %w", i+2, err)
		}
		if err := f.SetSheetRow(ledgerSheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(ledgerSheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		s.logger.Warn("Failed to freeze ledger header", zap.Error(err))
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}

	s.logger.Info("Ledger exported",
		zap.String("project_id", projectID),
		zap.String("project_name", project.Name),
		zap.Int("entries", len(entries)))

	return buf.Bytes(), nil
}
