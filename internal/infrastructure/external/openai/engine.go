package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/garyjia/reno-purchases/internal/application/port"
)

// maxErrorBody bounds the response excerpt carried by port.EngineError
const maxErrorBody = 512

// Config holds the chat completion settings of the engine
type Config struct {
	APIKey      string
	BaseURL     string // empty means the public OpenAI endpoint
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// Engine implements port.ExtractionEngine with the OpenAI vision chat API
type Engine struct {
	client *openai.Client
	cfg    Config
	logger *zap.Logger
}

// NewEngine creates a new OpenAI extraction engine
func NewEngine(cfg Config, logger *zap.Logger) *Engine {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Engine{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
		logger: logger,
	}
}

// Complete sends one image plus prompt and returns the text of the first choice
func (e *Engine) Complete(ctx context.Context, req port.EngineRequest) (string, error) {
	e.logger.Debug("Calling extraction engine",
		zap.String("model", req.Model),
		zap.String("mime_type", req.MimeType),
		zap.Int("prompt_length", len(req.Prompt)))

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{
				Type: openai.ChatMessagePartTypeText,
				Text: req.Prompt,
			},
			{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    req.ImageDataURL,
					Detail: openai.ImageURLDetailHigh,
				},
			},
		},
	})

	start := time.Now()
	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: e.cfg.Temperature,
		Messages:    messages,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		e.logger.Error("OpenAI API call failed",
			zap.String("model", req.Model),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", toEngineError(err)
	}

	if len(resp.Choices) == 0 {
		return "", &port.EngineError{StatusCode: http.StatusBadGateway, Body: "no choices in response"}
	}

	e.logger.Debug("Extraction engine responded",
		zap.String("model", resp.Model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.String("finish_reason", string(resp.Choices[0].FinishReason)),
		zap.Duration("elapsed", time.Since(start)))

	return resp.Choices[0].Message.Content, nil
}

// toEngineError maps go-openai failures onto the status-and-body shape the
// orchestrator reports to callers
func toEngineError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &port.EngineError{
			StatusCode: apiErr.HTTPStatusCode,
			Body:       excerpt(apiErr.Message),
			Err:        err,
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		body := string(reqErr.Body)
		if body == "" && reqErr.Err != nil {
			body = reqErr.Err.Error()
		}
		return &port.EngineError{
			StatusCode: reqErr.HTTPStatusCode,
			Body:       excerpt(body),
			Err:        err,
		}
	}

	return &port.EngineError{Body: excerpt(err.Error()), Err: err}
}

func excerpt(s string) string {
	if len(s) <= maxErrorBody {
		return s
	}
	return fmt.Sprintf("%s...", s[:maxErrorBody])
}

var _ port.ExtractionEngine = (*Engine)(nil)
