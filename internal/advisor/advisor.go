package advisor

import (
	"context"
	"errors"
	"strings"
	"time"

	"signal-scanner/internal/domain"
	"signal-scanner/internal/logger"
	apperrors "signal-scanner/pkg/errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	DefaultModel       = "gpt-4o-mini"
	DefaultTimeout     = 30 * time.Second
	DefaultMaxTokens   = 300
	DefaultTemperature = 0.3
)

// LLMClient abstracts the OpenAI chat completions API for testability.
type LLMClient interface {
	CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

// RationaleService produces a short prose explanation of a computed signal.
// It never influences the signal itself.
type RationaleService struct {
	tracer      trace.Tracer
	log         *zap.Logger
	llm         LLMClient
	model       string
	timeout     time.Duration
	maxTokens   int64
	temperature float64
}

// NewRationaleService returns a provider backed by llm. A nil llm makes every
// call report the unavailable marker.
func NewRationaleService(tracer trace.Tracer, log *zap.Logger, llm LLMClient, model string, timeout time.Duration) *RationaleService {
	if model == "" {
		model = DefaultModel
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &RationaleService{
		tracer:      tracer,
		log:         logger.OrNop(log).Named("advisor"),
		llm:         llm,
		model:       model,
		timeout:     timeout,
		maxTokens:   DefaultMaxTokens,
		temperature: DefaultTemperature,
	}
}

// Available reports whether a client is configured.
func (s *RationaleService) Available() bool {
	return s != nil && s.llm != nil
}

// Explain returns the rationale text and true, or domain.RationaleUnavailable
// and false when the service is not configured, times out or fails.
func (s *RationaleService) Explain(ctx context.Context, symbol string, snap domain.IndicatorSnapshot, sig domain.Signal) (string, bool) {
	text, err := s.explain(ctx, symbol, snap, sig)
	if err != nil {
		if s != nil {
			s.log.Warn("rationale unavailable", zap.String("symbol", symbol), zap.Error(err))
		}
		return domain.RationaleUnavailable, false
	}
	return text, true
}

func (s *RationaleService) explain(ctx context.Context, symbol string, snap domain.IndicatorSnapshot, sig domain.Signal) (string, error) {
	if !s.Available() {
		return "", apperrors.New(apperrors.ErrCodeAIUnavailable, "no AI client configured")
	}

	ctx, span := s.tracer.Start(ctx, "advisor.explain")
	defer span.End()
	span.SetAttributes(
		attribute.String("symbol", symbol),
		attribute.String("signal.kind", string(sig.Kind)),
		attribute.Int("signal.strength", sig.Strength),
	)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(analystPersona),
		openai.UserMessage(BuildRationalePrompt(symbol, snap, sig)),
	}
	reply, err := s.callLLM(ctx, messages)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, context.DeadlineExceeded) {
			return "", apperrors.Wrap(apperrors.ErrCodeAIUnavailable, "rationale timed out", err)
		}
		return "", apperrors.Wrap(apperrors.ErrCodeAIUnavailable, "rationale request failed", err)
	}
	return reply, nil
}

func (s *RationaleService) callLLM(
	ctx context.Context,
	messages []openai.ChatCompletionMessageParamUnion,
) (string, error) {
	ctx, span := s.tracer.Start(ctx, "advisor.llm-call")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", s.model),
		attribute.Int("llm.message_count", len(messages)),
	)

	completion, err := s.llm.CreateChatCompletion(ctx, openai.ChatCompletionNewParams{
		Model:       s.model,
		Messages:    messages,
		MaxTokens:   openai.Int(s.maxTokens),
		Temperature: openai.Float(s.temperature),
	})
	if err != nil {
		return "", err
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("no choices in LLM response")
	}

	reply := strings.TrimSpace(completion.Choices[0].Message.Content)
	if reply == "" {
		return "", errors.New("empty LLM reply")
	}
	span.SetAttributes(attribute.Int("llm.reply_length", len(reply)))
	return reply, nil
}

// openaiClient wraps the official SDK's chat completions service.
type openaiClient struct {
	client openai.Client
}

// NewOpenAIClient returns nil when apiKey is empty so callers can pass the
// result straight to NewRationaleService.
func NewOpenAIClient(apiKey string) LLMClient {
	if strings.TrimSpace(apiKey) == "" {
		return nil
	}
	client := openai.NewClient(option.WithAPIKey(apiKey), option.WithMaxRetries(1))
	return &openaiClient{client: client}
}

func (c *openaiClient) CreateChatCompletion(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
) (*openai.ChatCompletion, error) {
	return c.client.Chat.Completions.New(ctx, params)
}
