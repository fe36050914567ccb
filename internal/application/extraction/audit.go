package extraction

import (
	"go.uber.org/zap"

	"github.com/garyjia/reno-purchases/internal/domain/entity"
)

// AuditLog records raw engine responses and normalization decisions.
// A nil *AuditLog is valid and records nothing. Writes are best-effort.
type AuditLog struct {
	logger *zap.Logger
}

// NewAuditLog wraps a dedicated logger, usually a JSON file sink.
// Returns nil when logger is nil so callers can pass the result through unchecked.
func NewAuditLog(logger *zap.Logger) *AuditLog {
	if logger == nil {
		return nil
	}
	return &AuditLog{logger: logger.Named("extraction_audit")}
}

// RawResponse records the unmodified text returned by the engine
func (a *AuditLog) RawResponse(requestID string, pass entity.ExtractionPass, model, content string) {
	if a == nil {
		return
	}
	a.logger.Info("engine_response",
		zap.String("request_id", requestID),
		zap.String("pass", string(pass)),
		zap.String("model", model),
		zap.Int("length", len(content)),
		zap.String("content", content))
}

// SchemaCheck records whether the decoded response matched the requested shape
func (a *AuditLog) SchemaCheck(requestID string, pass entity.ExtractionPass, err error) {
	if a == nil {
		return
	}
	fields := []zap.Field{
		zap.String("request_id", requestID),
		zap.String("pass", string(pass)),
		zap.Bool("conformant", err == nil),
	}
	if err != nil {
		fields = append(fields, zap.String("violation", err.Error()))
	}
	a.logger.Info("schema_check", fields...)
}

// Decisions records every coercion the normalizer applied
func (a *AuditLog) Decisions(requestID string, pass entity.ExtractionPass, decisions []Decision) {
	if a == nil {
		return
	}
	a.logger.Info("normalization",
		zap.String("request_id", requestID),
		zap.String("pass", string(pass)),
		zap.Int("decision_count", len(decisions)),
		zap.Any("decisions", decisions))
}

// Escalation records the pass1 -> pass2 policy outcome
func (a *AuditLog) Escalation(requestID string, lineCount int, subTotal, lineSum float64, escalate, forced bool) {
	if a == nil {
		return
	}
	a.logger.Info("escalation",
		zap.String("request_id", requestID),
		zap.Int("line_count", lineCount),
		zap.Float64("sub_total", subTotal),
		zap.Float64("line_sum", lineSum),
		zap.Float64("coverage", Coverage(lineSum, subTotal)),
		zap.Bool("escalate", escalate),
		zap.Bool("forced", forced))
}

// Sync flushes buffered entries and discards the result
func (a *AuditLog) Sync() {
	if a == nil {
		return
	}
	_ = a.logger.Sync()
}
