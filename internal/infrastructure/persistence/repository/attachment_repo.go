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

// AttachmentRepository implements port.AttachmentRepository
type AttachmentRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewAttachmentRepository creates a new attachment repository
func NewAttachmentRepository(db *sqlite.DB, logger *zap.Logger) port.AttachmentRepository {
	return &AttachmentRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new attachment record
func (r *AttachmentRepository) Create(ctx context.Context, att *entity.Attachment) error {
	query := `
		INSERT INTO attachments (
			id, project_id, category, title, file_name, mime_type, storage_key, size, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Executor(ctx).ExecContext(ctx, query,
		att.ID,
		att.ProjectID,
		att.Category,
		att.Title,
		att.FileName,
		att.MimeType,
		att.StorageKey,
		att.Size,
		att.CreatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create attachment", zap.Error(err))
		return fmt.Errorf("failed to create attachment: %w", err)
	}
	return nil
}

// GetByID retrieves an attachment owned by a project
func (r *AttachmentRepository) GetByID(ctx context.Context, projectID, id string) (*entity.Attachment, error) {
	query := `
		SELECT id, project_id, category, title, file_name, mime_type, storage_key, size, created_at
		FROM attachments
		WHERE project_id = ? AND id = ?
	`

	var att entity.Attachment
	err := r.db.Executor(ctx).QueryRowContext(ctx, query, projectID, id).Scan(
		&att.ID,
		&att.ProjectID,
		&att.Category,
		&att.Title,
		&att.FileName,
		&att.MimeType,
		&att.StorageKey,
		&att.Size,
		&att.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get attachment by ID", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get attachment: %w", err)
	}

	return &att, nil
}
