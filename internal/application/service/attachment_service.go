package service

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/reno-purchases/internal/application/port"
	"github.com/garyjia/reno-purchases/internal/domain/entity"
)

// AttachmentService stores uploaded files and resolves them back to bytes
type AttachmentService interface {
	Upload(ctx context.Context, projectID string, req UploadRequest) (*entity.Attachment, error)
	Get(ctx context.Context, projectID, attachmentID string) (*entity.Attachment, error)
	Resolve(ctx context.Context, projectID, attachmentID string) (*entity.AttachmentFile, error)
}

// UploadRequest is a single uploaded file
type UploadRequest struct {
	FileName string
	MimeType string // detected from content when empty
	Category string // defaults to "other"
	Title    string
	Content  []byte
}

type attachmentServiceImpl struct {
	projectRepo    port.ProjectRepository
	attachmentRepo port.AttachmentRepository
	fileStorage    port.FileStorage
	logger         *zap.Logger
}

// NewAttachmentService creates a new AttachmentService
func NewAttachmentService(
	projectRepo port.ProjectRepository,
	attachmentRepo port.AttachmentRepository,
	fileStorage port.FileStorage,
	logger *zap.Logger,
) AttachmentService {
	return &attachmentServiceImpl{
		projectRepo:    projectRepo,
		attachmentRepo: attachmentRepo,
		fileStorage:    fileStorage,
		logger:         logger,
	}
}

func (s *attachmentServiceImpl) Upload(ctx context.Context, projectID string, req UploadRequest) (*entity.Attachment, error) {
	if _, err := requireProject(ctx, s.projectRepo, projectID); err != nil {
		return nil, err
	}
	if len(req.Content) == 0 {
		return nil, fmt.Errorf("%w: attachment is empty", entity.ErrInvalidInput)
	}

	category := strings.ToLower(strings.TrimSpace(req.Category))
	switch category {
	case "":
		category = entity.AttachmentCategoryOther
	case entity.AttachmentCategoryInvoice, entity.AttachmentCategoryPhoto, entity.AttachmentCategoryOther:
	default:
		return nil, fmt.Errorf("%w: unknown attachment category %q", entity.ErrInvalidInput, req.Category)
	}

	mimeType := strings.TrimSpace(req.MimeType)
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(req.Content)
	}

	fileName := filepath.Base(strings.TrimSpace(req.FileName))
	if fileName == "." || fileName == string(filepath.Separator) {
		fileName = ""
	}

	id := uuid.New().String()
	att := &entity.Attachment{
		ID:         id,
		ProjectID:  projectID,
		Category:   category,
		Title:      strings.TrimSpace(req.Title),
		FileName:   fileName,
		MimeType:   mimeType,
		StorageKey: filepath.Join(projectID, id+strings.ToLower(filepath.Ext(fileName))),
		Size:       int64(len(req.Content)),
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.fileStorage.Save(ctx, att.StorageKey, req.Content); err != nil {
		return nil, fmt.Errorf("save attachment: %w", err)
	}
	if err := s.attachmentRepo.Create(ctx, att); err != nil {
		if delErr := s.fileStorage.Delete(ctx, att.StorageKey); delErr != nil {
			s.logger.Warn("Failed to remove orphaned attachment file",
				zap.String("storage_key", att.StorageKey),
				zap.Error(delErr))
		}
		return nil, fmt.Errorf("create attachment: %w", err)
	}

	s.logger.Info("Attachment uploaded",
		zap.String("project_id", projectID),
		zap.String("attachment_id", id),
		zap.String("category", category),
		zap.String("mime_type", mimeType),
		zap.Int64("size", att.Size))

	return att, nil
}

func (s *attachmentServiceImpl) Get(ctx context.Context, projectID, attachmentID string) (*entity.Attachment, error) {
	if _, err := requireProject(ctx, s.projectRepo, projectID); err != nil {
		return nil, err
	}
	return requireAttachment(ctx, s.attachmentRepo, projectID, attachmentID)
}

func (s *attachmentServiceImpl) Resolve(ctx context.Context, projectID, attachmentID string) (*entity.AttachmentFile, error) {
	att, err := s.Get(ctx, projectID, attachmentID)
	if err != nil {
		return nil, err
	}

	content, err := s.fileStorage.Read(ctx, att.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("read attachment %s: %w", attachmentID, err)
	}

	return &entity.AttachmentFile{Attachment: att, Content: content}, nil
}
