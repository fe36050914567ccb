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

// ProjectService manages projects and their material catalog
type ProjectService interface {
	CreateProject(ctx context.Context, name string) (*entity.Project, error)
	GetProject(ctx context.Context, projectID string) (*entity.Project, error)
	CreateMaterial(ctx context.Context, projectID string, req CreateMaterialRequest) (*entity.Material, error)
	ListMaterials(ctx context.Context, projectID string) ([]*entity.Material, error)
}

// CreateMaterialRequest holds the fields of a new catalog entry
type CreateMaterialRequest struct {
	Name             string  `json:"name"`
	UnitType         string  `json:"unitType"`
	DefaultUnitPrice float64 `json:"defaultUnitPrice"`
}

type projectServiceImpl struct {
	projectRepo  port.ProjectRepository
	materialRepo port.MaterialRepository
	logger       *zap.Logger
}

// NewProjectService creates a new ProjectService
func NewProjectService(
	projectRepo port.ProjectRepository,
	materialRepo port.MaterialRepository,
	logger *zap.Logger,
) ProjectService {
	return &projectServiceImpl{
		projectRepo:  projectRepo,
		materialRepo: materialRepo,
		logger:       logger,
	}
}

func (s *projectServiceImpl) CreateProject(ctx context.Context, name string) (*entity.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: project name is required", entity.ErrInvalidInput)
	}

	project := &entity.Project{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.projectRepo.Create(ctx, project); err != nil {
		s.logger.Error("Failed to create project", zap.Error(err))
		return nil, fmt.Errorf("create project: %w", err)
	}

	s.logger.Info("Project created", zap.String("project_id", project.ID))
	return project, nil
}

func (s *projectServiceImpl) GetProject(ctx context.Context, projectID string) (*entity.Project, error) {
	return requireProject(ctx, s.projectRepo, projectID)
}

func (s *projectServiceImpl) CreateMaterial(ctx context.Context, projectID string, req CreateMaterialRequest) (*entity.Material, error) {
	if _, err := requireProject(ctx, s.projectRepo, projectID); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: material name is required", entity.ErrInvalidInput)
	}
	if req.DefaultUnitPrice < 0 {
		return nil, fmt.Errorf("%w: default unit price must not be negative", entity.ErrInvalidInput)
	}
	unit := entity.UnitOther
	if req.UnitType != "" {
		parsed, ok := entity.ParseUnitType(req.UnitType)
		if !ok {
			return nil, fmt.Errorf("%w: unknown unit type %q", entity.ErrInvalidInput, req.UnitType)
		}
		unit = parsed
	}

	material := &entity.Material{
		ID:               uuid.New().String(),
		ProjectID:        projectID,
		Name:             name,
		UnitType:         unit,
		DefaultUnitPrice: req.DefaultUnitPrice,
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.materialRepo.Create(ctx, material); err != nil {
		s.logger.Error("Failed to create material",
			zap.String("project_id", projectID),
			zap.Error(err))
		return nil, fmt.Errorf("create material: %w", err)
	}

	return material, nil
}

func (s *projectServiceImpl) ListMaterials(ctx context.Context, projectID string) ([]*entity.Material, error) {
	if _, err := requireProject(ctx, s.projectRepo, projectID); err != nil {
		return nil, err
	}

	materials, err := s.materialRepo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list materials: %w", err)
	}
	return materials, nil
}

// requireProject loads a project and maps a missing row to ErrNotFound
func requireProject(ctx context.Context, repo port.ProjectRepository, projectID string) (*entity.Project, error) {
	project, err := repo.GetByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	if project == nil {
		return nil, fmt.Errorf("%w: project %s", entity.ErrNotFound, projectID)
	}
	return project, nil
}

// requireInvoice loads an invoice scoped to its project and maps a missing row to ErrNotFound
func requireInvoice(ctx context.Context, repo port.InvoiceRepository, projectID, invoiceID string) (*entity.PurchaseInvoice, error) {
	invoice, err := repo.GetByID(ctx, projectID, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	if invoice == nil {
		return nil, fmt.Errorf("%w: invoice %s", entity.ErrNotFound, invoiceID)
	}
	return invoice, nil
}

// requireAttachment loads an attachment scoped to its project and maps a missing row to ErrNotFound
func requireAttachment(ctx context.Context, repo port.AttachmentRepository, projectID, attachmentID string) (*entity.Attachment, error) {
	att, err := repo.GetByID(ctx, projectID, attachmentID)
	if err != nil {
		return nil, fmt.Errorf("get attachment: %w", err)
	}
	if att == nil {
		return nil, fmt.Errorf("%w: attachment %s", entity.ErrNotFound, attachmentID)
	}
	return att, nil
}

// invoiceLockKey names the critical section shared by every mutation of one invoice
func invoiceLockKey(invoiceID string) string {
	return "invoice:" + invoiceID
}
