package entity

import (
	"strings"
	"time"
)

// Attachment category constants
const (
	AttachmentCategoryInvoice = "invoice" // Vendor invoice, eligible for extraction
	AttachmentCategoryPhoto   = "photo"
	AttachmentCategoryOther   = "other"
)

// Attachment represents an uploaded file owned by a project.
// The bytes live in file storage under StorageKey.
type Attachment struct {
	ID         string    `json:"id"`
	ProjectID  string    `json:"projectId"`
	Category   string    `json:"category"`
	Title      string    `json:"title"`
	FileName   string    `json:"fileName"`
	MimeType   string    `json:"mimeType"`
	StorageKey string    `json:"storageKey"`
	Size       int64     `json:"size"`
	CreatedAt  time.Time `json:"createdAt"`
}

// IsInvoice returns true if this attachment was filed as a vendor invoice
func (a *Attachment) IsInvoice() bool {
	return a.Category == AttachmentCategoryInvoice
}

// IsImageMimeType reports whether mimeType names an image format
func IsImageMimeType(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "image/")
}

// AttachmentFile represents attachment content resolved from storage
type AttachmentFile struct {
	Attachment *Attachment
	Content    []byte
}
