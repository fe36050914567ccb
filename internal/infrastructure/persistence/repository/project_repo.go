package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/reno-purchases/internal/application/port"
	"github.com/garyjia/reno-purchases/internal/domain/entity"
	"github.com/garyjia/reno-purchases/internal/infrastructure/persistence/sqlite"
)

// ProjectRepository implements port.ProjectRepository
type ProjectRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewProjectRepository creates a new project repository
func NewProjectRepository(db *sqlite.DB, logger *zap.Logger) port.ProjectRepository {
	return &ProjectRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new project record
func (r *ProjectRepository) Create(ctx context.Context, project *entity.Project) error {
	query := `INSERT INTO projects (id, name, created_at) VALUES (?, ?, ?)`

	_, err := r.db.Executor(ctx).ExecContext(ctx, query, project.ID, project.Name, project.CreatedAt.UTC())
	if err != nil {
		r.logger.Error("Failed to create project", zap.Error(err))
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

// GetByID retrieves a project by ID
func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*entity.Project, error) {
	query := `SELECT id, name, created_at FROM projects WHERE id = ?`

	var project entity.Project
	err := r.db.Executor(ctx).QueryRowContext(ctx, query, id).Scan(
		&project.ID,
		&project.Name,
		&project.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get project by ID", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return &project, nil
}
