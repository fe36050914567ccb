package extraction

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/garyjia/reno-purchases/internal/application/port"
	"github.com/garyjia/reno-purchases/internal/domain/entity"
)

// FallbackModel is reported as ModelUsed when no engine credential is configured
const FallbackModel = "fallback"

const truncatedMarker = "...[truncated]"

// Config holds the orchestrator settings. It is built once from application
// configuration; nothing below reads the process environment.
type Config struct {
	// Provider is the default engine name, e.g. "openai"
	Provider string

	// FastModel serves pass1
	FastModel string

	// ThoroughModel serves pass2
	ThoroughModel string

	// MaxRawBytes caps the raw output kept on the result; 0 keeps everything
	MaxRawBytes int
}

// Orchestrator drives one or two engine passes per extraction and
// implements port.InvoiceExtractor.
type Orchestrator struct {
	cfg      Config
	engines  map[string]port.ExtractionEngine
	preparer port.ImagePreparer
	prompts  *PromptSet
	audit    *AuditLog
	validate func(interface{}) error
	tracer   trace.Tracer
	logger   *zap.Logger
}

// NewOrchestrator creates a new extraction orchestrator.
// engines holds one engine per provider that has a usable credential; a
// provider without an entry falls back to the placeholder extractor.
// preparer, prompts and audit may be nil.
func NewOrchestrator(
	cfg Config,
	engines map[string]port.ExtractionEngine,
	preparer port.ImagePreparer,
	prompts *PromptSet,
	audit *AuditLog,
	logger *zap.Logger,
) *Orchestrator {
	if prompts == nil {
		prompts = DefaultPrompts()
	}
	if engines == nil {
		engines = map[string]port.ExtractionEngine{}
	}
	return &Orchestrator{
		cfg:      cfg,
		engines:  engines,
		preparer: preparer,
		prompts:  prompts,
		audit:    audit,
		validate: ValidateAgainstSchema,
		tracer:   otel.Tracer("github.com/garyjia/reno-purchases/extraction"),
		logger:   logger,
	}
}

// ProviderName resolves the provider that serves an optional override
func (o *Orchestrator) ProviderName(provider string) string {
	if provider == "" {
		return o.cfg.Provider
	}
	return provider
}

// Extract runs pass1, escalates to pass2 when the coverage policy asks for
// it, and returns the better of the two. ForceSecondPass goes straight to pass2.
func (o *Orchestrator) Extract(ctx context.Context, req port.ExtractRequest) (*entity.ExtractedInvoice, error) {
	requestID := uuid.New().String()
	provider := o.ProviderName(req.Provider)

	engine, ok := o.engines[provider]
	if !ok || engine == nil {
		o.logger.Warn("No usable extraction credential, using fallback extractor",
			zap.String("request_id", requestID),
			zap.String("provider", provider),
			zap.String("file_name", req.FileName))
		return FallbackInvoice(req.FileName), nil
	}

	if !entity.IsImageMimeType(req.MimeType) {
		return nil, fmt.Errorf("%w: extraction requires an image, got %q", entity.ErrInvalidInput, req.MimeType)
	}

	content, mimeType := req.Content, req.MimeType
	if o.preparer != nil {
		prepared, preparedType, err := o.preparer.Prepare(content, mimeType)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to prepare image: %v", entity.ErrInvalidInput, err)
		}
		content, mimeType = prepared, preparedType
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(content))

	ctx, span := o.tracer.Start(ctx, "extraction.Extract", trace.WithAttributes(
		attribute.String("extraction.request_id", requestID),
		attribute.String("extraction.provider", provider),
		attribute.Bool("extraction.force_second_pass", req.ForceSecondPass),
	))
	defer span.End()

	start := time.Now()
	fastModel := o.cfg.FastModel
	if req.Model != "" {
		fastModel = req.Model
	}

	if req.ForceSecondPass {
		o.audit.Escalation(requestID, 0, 0, 0, true, true)
		pass2, err := o.runPass(ctx, engine, requestID, entity.PassTwo, o.cfg.ThoroughModel, o.prompts.Pass2, dataURL, mimeType, req.FileName)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "pass2 failed")
			return nil, err
		}
		o.logExtracted(requestID, pass2, start)
		return pass2, nil
	}

	pass1, err := o.runPass(ctx, engine, requestID, entity.PassOne, fastModel, o.prompts.Pass1, dataURL, mimeType, req.FileName)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "pass1 failed")
		return nil, err
	}

	escalate := ShouldEscalateInvoice(pass1)
	o.audit.Escalation(requestID, len(pass1.Lines), pass1.Totals.SubTotal, pass1.LineTotalSum(), escalate, false)
	if !escalate {
		o.logExtracted(requestID, pass1, start)
		return pass1, nil
	}

	o.logger.Info("Low line coverage, running second extraction pass",
		zap.String("request_id", requestID),
		zap.Int("pass1_lines", len(pass1.Lines)),
		zap.Float64("coverage", Coverage(pass1.LineTotalSum(), pass1.Totals.SubTotal)))

	pass2, err := o.runPass(ctx, engine, requestID, entity.PassTwo, o.cfg.ThoroughModel, o.prompts.Pass2, dataURL, mimeType, req.FileName)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "pass2 failed")
		return nil, err
	}

	selected := SelectPass(pass1, pass2)
	o.logExtracted(requestID, selected, start)
	return selected, nil
}

// runPass performs one engine call and normalizes its output
func (o *Orchestrator) runPass(
	ctx context.Context,
	engine port.ExtractionEngine,
	requestID string,
	pass entity.ExtractionPass,
	model, promptTemplate, dataURL, mimeType, fileName string,
) (*entity.ExtractedInvoice, error) {
	ctx, span := o.tracer.Start(ctx, "extraction."+string(pass), trace.WithAttributes(
		attribute.String("extraction.model", model),
	))
	defer span.End()

	prompt, err := renderTemplate(promptTemplate, PromptData{
		Schema:   schemaHint(),
		Units:    unitList(),
		FileName: fileName,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s prompt: %v", entity.ErrExtraction, pass, err)
	}

	content, err := engine.Complete(ctx, port.EngineRequest{
		Model:        model,
		MimeType:     mimeType,
		ImageDataURL: dataURL,
		SystemPrompt: o.prompts.System,
		Prompt:       prompt,
	})
	if err != nil {
		o.logger.Error("Extraction engine call failed",
			zap.String("request_id", requestID),
			zap.String("pass", string(pass)),
			zap.String("model", model),
			zap.Error(err))
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %s engine call: %w", entity.ErrExtraction, pass, err)
	}
	o.audit.RawResponse(requestID, pass, model, content)

	raw, err := ParseResponse(content)
	if err != nil {
		o.logger.Error("Failed to parse extraction response",
			zap.String("request_id", requestID),
			zap.String("pass", string(pass)),
			zap.Int("length", len(content)),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %s response: %v", entity.ErrExtraction, pass, err)
	}
	if o.audit != nil {
		o.audit.SchemaCheck(requestID, pass, o.validate(raw))
	}

	inv, decisions := NormalizeWithDecisions(raw)
	o.audit.Decisions(requestID, pass, decisions)

	inv.PassUsed = pass
	inv.ModelUsed = model
	inv.RawOutput = capRaw(content, o.cfg.MaxRawBytes)

	span.SetAttributes(attribute.Int("extraction.lines", len(inv.Lines)))
	return &inv, nil
}

func (o *Orchestrator) logExtracted(requestID string, inv *entity.ExtractedInvoice, start time.Time) {
	o.logger.Info("Invoice extracted",
		zap.String("request_id", requestID),
		zap.String("pass", string(inv.PassUsed)),
		zap.String("model", inv.ModelUsed),
		zap.Int("lines", len(inv.Lines)),
		zap.Float64("sub_total", inv.Totals.SubTotal),
		zap.Duration("elapsed", time.Since(start)))
	o.audit.Sync()
}

// FallbackInvoice is the placeholder returned when no engine is usable.
// The file name doubles as invoice number and as the single line's source text.
func FallbackInvoice(fileName string) *entity.ExtractedInvoice {
	return &entity.ExtractedInvoice{
		InvoiceNumber: fileName,
		Currency:      entity.DefaultCurrency,
		Lines: []entity.ExtractedInvoiceLine{
			{
				SourceText:  fileName,
				Description: "Manual entry required",
				Quantity:    1,
				UnitType:    entity.UnitOther,
				NeedsReview: true,
			},
		},
		PassUsed:  entity.PassOne,
		ModelUsed: FallbackModel,
	}
}

// capRaw bounds the raw output stored with an invoice
func capRaw(content string, max int) string {
	if max <= 0 || len(content) <= max {
		return content
	}
	return strings.ToValidUTF8(content[:max], "") + truncatedMarker
}

var _ port.InvoiceExtractor = (*Orchestrator)(nil)
