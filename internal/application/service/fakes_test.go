package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/garyjia/reno-purchases/internal/domain/entity"
)

// memStore is an in-memory stand-in for the database shared by the fake repositories
type memStore struct {
	mu          sync.Mutex
	projects    map[string]*entity.Project
	materials   map[string]*entity.Material
	attachments map[string]*entity.Attachment
	invoices    map[string]*entity.PurchaseInvoice
	ledger      []*entity.PurchaseLedgerEntry
}

func newMemStore() *memStore {
	return &memStore{
		projects:    map[string]*entity.Project{},
		materials:   map[string]*entity.Material{},
		attachments: map[string]*entity.Attachment{},
		invoices:    map[string]*entity.PurchaseInvoice{},
	}
}

func cloneInvoice(in *entity.PurchaseInvoice) *entity.PurchaseInvoice {
	out := *in
	out.Lines = append([]entity.PurchaseInvoiceLine(nil), in.Lines...)
	if in.ConfirmedAt != nil {
		t := *in.ConfirmedAt
		out.ConfirmedAt = &t
	}
	return &out
}

type memSnapshot struct {
	invoices map[string]*entity.PurchaseInvoice
	ledger   []*entity.PurchaseLedgerEntry
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := memSnapshot{invoices: map[string]*entity.PurchaseInvoice{}}
	for id, inv := range s.invoices {
		snap.invoices[id] = cloneInvoice(inv)
	}
	snap.ledger = append(snap.ledger, s.ledger...)
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoices = snap.invoices
	s.ledger = snap.ledger
}

func (s *memStore) ledgerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ledger)
}

func (s *memStore) invoice(id string) *entity.PurchaseInvoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inv, ok := s.invoices[id]; ok {
		return cloneInvoice(inv)
	}
	return nil
}

type fakeProjectRepo struct{ store *memStore }

func (r *fakeProjectRepo) Create(ctx context.Context, p *entity.Project) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *p
	r.store.projects[p.ID] = &cp
	return nil
}

func (r *fakeProjectRepo) GetByID(ctx context.Context, id string) (*entity.Project, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if p, ok := r.store.projects[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

type fakeMaterialRepo struct{ store *memStore }

func (r *fakeMaterialRepo) Create(ctx context.Context, m *entity.Material) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *m
	r.store.materials[m.ID] = &cp
	return nil
}

func (r *fakeMaterialRepo) GetByID(ctx context.Context, projectID, id string) (*entity.Material, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if m, ok := r.store.materials[id]; ok && m.ProjectID == projectID {
		cp := *m
		return &cp, nil
	}
	return nil, nil
}

func (r *fakeMaterialRepo) ListByProject(ctx context.Context, projectID string) ([]*entity.Material, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*entity.Material
	for _, m := range r.store.materials {
		if m.ProjectID == projectID {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type fakeAttachmentRepo struct{ store *memStore }

func (r *fakeAttachmentRepo) Create(ctx context.Context, a *entity.Attachment) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *a
	r.store.attachments[a.ID] = &cp
	return nil
}

func (r *fakeAttachmentRepo) GetByID(ctx context.Context, projectID, id string) (*entity.Attachment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if a, ok := r.store.attachments[id]; ok && a.ProjectID == projectID {
		cp := *a
		return &cp, nil
	}
	return nil, nil
}

type fakeInvoiceRepo struct {
	store          *memStore
	updateDraftErr error
}

func (r *fakeInvoiceRepo) CreateDraft(ctx context.Context, inv *entity.PurchaseInvoice) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.invoices[inv.ID] = cloneInvoice(inv)
	return nil
}

func (r *fakeInvoiceRepo) GetByID(ctx context.Context, projectID, id string) (*entity.PurchaseInvoice, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if inv, ok := r.store.invoices[id]; ok && inv.ProjectID == projectID {
		return cloneInvoice(inv), nil
	}
	return nil, nil
}

func (r *fakeInvoiceRepo) ListByProject(ctx context.Context, projectID string) ([]*entity.PurchaseInvoice, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*entity.PurchaseInvoice
	for _, inv := range r.store.invoices {
		if inv.ProjectID == projectID {
			out = append(out, cloneInvoice(inv))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeInvoiceRepo) UpdateDraft(ctx context.Context, inv *entity.PurchaseInvoice) error {
	if r.updateDraftErr != nil {
		return r.updateDraftErr
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	current, ok := r.store.invoices[inv.ID]
	if !ok || current.ProjectID != inv.ProjectID {
		return fmt.Errorf("%w: invoice %s", entity.ErrNotFound, inv.ID)
	}
	if !current.IsDraft() {
		return fmt.Errorf("%w: invoice %s", entity.ErrInvalidState, inv.ID)
	}
	r.store.invoices[inv.ID] = cloneInvoice(inv)
	return nil
}

func (r *fakeInvoiceRepo) MarkConfirmed(ctx context.Context, projectID, id string, review entity.InvoiceReview, confirmedAt time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	current, ok := r.store.invoices[id]
	if !ok || current.ProjectID != projectID || !current.IsDraft() {
		return fmt.Errorf("%w: invoice %s", entity.ErrInvalidState, id)
	}
	updated := cloneInvoice(current)
	updated.Status = entity.InvoiceStatusConfirmed
	updated.Review = review
	updated.ConfirmedAt = &confirmedAt
	updated.UpdatedAt = confirmedAt
	r.store.invoices[id] = updated
	return nil
}

func (r *fakeInvoiceRepo) DeleteDraft(ctx context.Context, projectID, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	current, ok := r.store.invoices[id]
	if !ok || current.ProjectID != projectID || !current.IsDraft() {
		return fmt.Errorf("%w: invoice %s", entity.ErrInvalidState, id)
	}
	delete(r.store.invoices, id)
	return nil
}

type fakeLedgerRepo struct {
	store     *memStore
	appendErr error
}

func (r *fakeLedgerRepo) Append(ctx context.Context, entries []*entity.PurchaseLedgerEntry) error {
	if r.appendErr != nil {
		return r.appendErr
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, e := range entries {
		cp := *e
		r.store.ledger = append(r.store.ledger, &cp)
	}
	return nil
}

func (r *fakeLedgerRepo) ListByProject(ctx context.Context, projectID, invoiceID string) ([]*entity.PurchaseLedgerEntry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*entity.PurchaseLedgerEntry
	for _, e := range r.store.ledger {
		if e.ProjectID == projectID && (invoiceID == "" || e.InvoiceID == invoiceID) {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PostedAt.After(out[j].PostedAt) })
	return out, nil
}

// memTxManager restores the store when the transaction function fails
type memTxManager struct {
	store *memStore
	mu    sync.Mutex
}

func (m *memTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.store.snapshot()
	if err := fn(ctx); err != nil {
		m.store.restore(snap)
		return err
	}
	return nil
}

// keyedLocker serializes callers per key and records every key it was asked for
type keyedLocker struct {
	mu      sync.Mutex
	locks   map[string]*sync.Mutex
	keys    []string
	lockErr error
}

func newKeyedLocker() *keyedLocker {
	return &keyedLocker{locks: map[string]*sync.Mutex{}}
}

func (l *keyedLocker) Lock(ctx context.Context, key string) (func(), error) {
	if l.lockErr != nil {
		return nil, l.lockErr
	}
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.keys = append(l.keys, key)
	l.mu.Unlock()

	m.Lock()
	return m.Unlock, nil
}

type memFileStorage struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemFileStorage() *memFileStorage {
	return &memFileStorage{files: map[string][]byte{}}
}

func (s *memFileStorage) Save(ctx context.Context, path string, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = append([]byte(nil), content...)
	return nil
}

func (s *memFileStorage) Read(ctx context.Context, path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.files[path]
	if !ok {
		return nil, fmt.Errorf("%w: file %s", entity.ErrNotFound, path)
	}
	return content, nil
}

func (s *memFileStorage) Exists(ctx context.Context, path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[path]
	return ok
}

func (s *memFileStorage) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, path)
	return nil
}
