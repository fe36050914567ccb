package port

import (
	"context"
	"time"

	"github.com/garyjia/reno-purchases/internal/domain/entity"
)

// Repositories return (nil, nil) when a single record is not found. Callers
// translate that into entity.ErrNotFound.

// ProjectRepository defines persistence operations for Project
type ProjectRepository interface {
	Create(ctx context.Context, project *entity.Project) error
	GetByID(ctx context.Context, id string) (*entity.Project, error)
}

// MaterialRepository defines persistence operations for the project material catalog
type MaterialRepository interface {
	Create(ctx context.Context, material *entity.Material) error
	GetByID(ctx context.Context, projectID, id string) (*entity.Material, error)
	ListByProject(ctx context.Context, projectID string) ([]*entity.Material, error)
}

// AttachmentRepository defines persistence operations for attachment metadata
type AttachmentRepository interface {
	Create(ctx context.Context, att *entity.Attachment) error
	GetByID(ctx context.Context, projectID, id string) (*entity.Attachment, error)
}

// InvoiceRepository defines persistence operations for PurchaseInvoice.
// Every mutator only touches rows whose status is still draft and returns
// entity.ErrInvalidState otherwise.
type InvoiceRepository interface {
	// CreateDraft stores a freshly extracted draft
	CreateDraft(ctx context.Context, invoice *entity.PurchaseInvoice) error

	// GetByID retrieves an invoice scoped to its project
	GetByID(ctx context.Context, projectID, id string) (*entity.PurchaseInvoice, error)

	// ListByProject returns all invoices of a project, newest first
	ListByProject(ctx context.Context, projectID string) ([]*entity.PurchaseInvoice, error)

	// UpdateDraft replaces the editable content of a draft
	UpdateDraft(ctx context.Context, invoice *entity.PurchaseInvoice) error

	// MarkConfirmed flips a draft to confirmed and stores the review
	MarkConfirmed(ctx context.Context, projectID, id string, review entity.InvoiceReview, confirmedAt time.Time) error

	// DeleteDraft removes a draft
	DeleteDraft(ctx context.Context, projectID, id string) error
}

// LedgerRepository defines persistence operations for the append-only purchase ledger
type LedgerRepository interface {
	// Append inserts entries; existing entries are never modified
	Append(ctx context.Context, entries []*entity.PurchaseLedgerEntry) error

	// ListByProject returns entries newest first, optionally filtered by invoice
	ListByProject(ctx context.Context, projectID, invoiceID string) ([]*entity.PurchaseLedgerEntry, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
