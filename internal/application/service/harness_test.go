package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/reno-purchases/internal/application/port"
	"github.com/garyjia/reno-purchases/internal/domain/entity"
)

const (
	testProjectID    = "proj-1"
	testAttachmentID = "att-1"
)

var testNow = time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

type mockExtractor struct {
	extractFunc func(ctx context.Context, req port.ExtractRequest) (*entity.ExtractedInvoice, error)
	calls       []port.ExtractRequest
}

func (m *mockExtractor) Extract(ctx context.Context, req port.ExtractRequest) (*entity.ExtractedInvoice, error) {
	m.calls = append(m.calls, req)
	if m.extractFunc != nil {
		return m.extractFunc(ctx, req)
	}
	return &entity.ExtractedInvoice{Currency: "CAD", PassUsed: entity.PassOne, ModelUsed: "fast"}, nil
}

func (m *mockExtractor) ProviderName(provider string) string {
	if provider == "" {
		return "openai"
	}
	return provider
}

// testEnv wires every service against the in-memory fakes
type testEnv struct {
	store       *memStore
	files       *memFileStorage
	locker      *keyedLocker
	extractor   *mockExtractor
	invoiceRepo *fakeInvoiceRepo
	ledgerRepo  *fakeLedgerRepo

	projects     ProjectService
	attachments  AttachmentService
	invoices     InvoiceService
	confirmation ConfirmationService
	ledger       LedgerService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithExtractor(t, &mockExtractor{})
}

func newTestEnvWithExtractor(t *testing.T, extractor port.InvoiceExtractor) *testEnv {
	t.Helper()

	store := newMemStore()
	files := newMemFileStorage()
	locker := newKeyedLocker()
	logger := zap.NewNop()

	projectRepo := &fakeProjectRepo{store: store}
	materialRepo := &fakeMaterialRepo{store: store}
	attachmentRepo := &fakeAttachmentRepo{store: store}
	invoiceRepo := &fakeInvoiceRepo{store: store}
	ledgerRepo := &fakeLedgerRepo{store: store}
	txManager := &memTxManager{store: store}

	attachments := NewAttachmentService(projectRepo, attachmentRepo, files, logger)

	invoices := NewInvoiceService(projectRepo, materialRepo, invoiceRepo, attachments, extractor, locker, logger)
	invoices.(*invoiceServiceImpl).now = func() time.Time { return testNow }

	confirmation := NewConfirmationService(projectRepo, materialRepo, invoiceRepo, ledgerRepo, txManager, locker, logger)
	confirmation.(*confirmationServiceImpl).now = func() time.Time { return testNow }

	env := &testEnv{
		store:        store,
		files:        files,
		locker:       locker,
		invoiceRepo:  invoiceRepo,
		ledgerRepo:   ledgerRepo,
		projects:     NewProjectService(projectRepo, materialRepo, logger),
		attachments:  attachments,
		invoices:     invoices,
		confirmation: confirmation,
		ledger:       NewLedgerService(projectRepo, materialRepo, ledgerRepo, logger),
	}
	if m, ok := extractor.(*mockExtractor); ok {
		env.extractor = m
	}

	ctx := context.Background()
	require.NoError(t, projectRepo.Create(ctx, &entity.Project{ID: testProjectID, Name: "Kitchen remodel", CreatedAt: testNow}))
	require.NoError(t, materialRepo.Create(ctx, &entity.Material{ID: "mat-1", ProjectID: testProjectID, Name: "2x4 stud", UnitType: entity.UnitEach}))
	require.NoError(t, materialRepo.Create(ctx, &entity.Material{ID: "mat-2", ProjectID: testProjectID, Name: "Drywall screws", UnitType: entity.UnitBox}))
	require.NoError(t, attachmentRepo.Create(ctx, &entity.Attachment{
		ID:         testAttachmentID,
		ProjectID:  testProjectID,
		Category:   entity.AttachmentCategoryInvoice,
		Title:      "Home Depot receipt",
		FileName:   "receipt.png",
		MimeType:   "image/png",
		StorageKey: "proj-1/att-1.png",
	}))
	require.NoError(t, files.Save(ctx, "proj-1/att-1.png", []byte{0x89, 'P', 'N', 'G'}))

	return env
}

// seedDraft stores a draft directly, bypassing extraction
func (e *testEnv) seedDraft(t *testing.T, id string, subTotal float64, lines ...entity.PurchaseInvoiceLine) *entity.PurchaseInvoice {
	t.Helper()
	inv := &entity.PurchaseInvoice{
		ID:            id,
		ProjectID:     testProjectID,
		AttachmentID:  testAttachmentID,
		Status:        entity.InvoiceStatusDraft,
		VendorName:    "Lumber Co",
		InvoiceNumber: "INV-" + id,
		InvoiceDate:   "2026-10-01",
		Currency:      "CAD",
		Totals:        entity.InvoiceTotals{SubTotal: subTotal, GrandTotal: subTotal},
		Lines:         lines,
		Extraction:    entity.ExtractionRecord{Provider: "openai", PassUsed: entity.PassOne},
		CreatedAt:     testNow,
		UpdatedAt:     testNow,
	}
	require.NoError(t, e.invoiceRepo.CreateDraft(context.Background(), inv))
	return inv
}

func testLine(id string, qty, price float64, materialID string) entity.PurchaseInvoiceLine {
	return entity.PurchaseInvoiceLine{
		ID:          id,
		Description: "item " + id,
		Quantity:    qty,
		UnitType:    entity.UnitEach,
		UnitPrice:   price,
		LineTotal:   qty * price,
		Confidence:  0.9,
		MaterialID:  materialID,
	}
}

func ptr[T any](v T) *T {
	return &v
}
