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

// MaterialRepository implements port.MaterialRepository
type MaterialRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewMaterialRepository creates a new material repository
func NewMaterialRepository(db *sqlite.DB, logger *zap.Logger) port.MaterialRepository {
	return &MaterialRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new catalog entry
func (r *MaterialRepository) Create(ctx context.Context, material *entity.Material) error {
	query := `
		INSERT INTO materials (id, project_id, name, unit_type, default_unit_price, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Executor(ctx).ExecContext(ctx, query,
		material.ID,
		material.ProjectID,
		material.Name,
		string(material.UnitType),
		material.DefaultUnitPrice,
		material.CreatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create material", zap.Error(err))
		return fmt.Errorf("failed to create material: %w", err)
	}
	return nil
}

// GetByID retrieves a material within a project's catalog
func (r *MaterialRepository) GetByID(ctx context.Context, projectID, id string) (*entity.Material, error) {
	query := `
		SELECT id, project_id, name, unit_type, default_unit_price, created_at
		FROM materials
		WHERE project_id = ? AND id = ?
	`

	material, err := scanMaterial(r.db.Executor(ctx).QueryRowContext(ctx, query, projectID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get material by ID", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get material: %w", err)
	}
	return material, nil
}

// ListByProject returns the catalog of a project ordered by name
func (r *MaterialRepository) ListByProject(ctx context.Context, projectID string) ([]*entity.Material, error) {
	query := `
		SELECT id, project_id, name, unit_type, default_unit_price, created_at
		FROM materials
		WHERE project_id = ?
		ORDER BY name, id
	`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, projectID)
	if err != nil {
		r.logger.Error("Failed to list materials", zap.Error(err))
		return nil, fmt.Errorf("failed to list materials: %w", err)
	}
	defer rows.Close()

	var materials []*entity.Material
	for rows.Next() {
		material, err := scanMaterial(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan material: %w", err)
		}
		materials = append(materials, material)
	}

	return materials, rows.Err()
}

func scanMaterial(row scanner) (*entity.Material, error) {
	var material entity.Material
	var unit string
	err := row.Scan(
		&material.ID,
		&material.ProjectID,
		&material.Name,
		&unit,
		&material.DefaultUnitPrice,
		&material.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	material.UnitType = entity.UnitType(unit)
	return &material, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}
