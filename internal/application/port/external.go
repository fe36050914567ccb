package port

import (
	"context"
	"fmt"

	"github.com/garyjia/reno-purchases/internal/domain/entity"
)

// EngineRequest is a single call to a vision-capable extraction engine
type EngineRequest struct {
	Model        string
	MimeType     string
	ImageDataURL string
	SystemPrompt string
	Prompt       string
}

// ExtractionEngine turns an image and a prompt into raw text that should contain JSON.
// Transport failures are reported as *EngineError.
type ExtractionEngine interface {
	Complete(ctx context.Context, req EngineRequest) (string, error)
}

// EngineError is a non-success response from the extraction engine
type EngineError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *EngineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction engine status %d: %s: %v", e.StatusCode, e.Body, e.Err)
	}
	return fmt.Sprintf("extraction engine status %d: %s", e.StatusCode, e.Body)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// ImagePreparer normalizes an image before it is sent to the engine
type ImagePreparer interface {
	Prepare(content []byte, mimeType string) ([]byte, string, error)
}

// ExtractRequest describes one extraction call
type ExtractRequest struct {
	Content         []byte
	MimeType        string
	FileName        string
	Provider        string // empty means the configured provider
	Model           string // empty means the configured fast model
	ForceSecondPass bool
}

// InvoiceExtractor drives the extraction engine and returns a normalized invoice
type InvoiceExtractor interface {
	Extract(ctx context.Context, req ExtractRequest) (*entity.ExtractedInvoice, error)

	// ProviderName returns the provider that serves req.Provider
	ProviderName(provider string) string
}
