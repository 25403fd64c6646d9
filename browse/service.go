package browse

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/apibrowse/llm"
	"github.com/BaSui01/apibrowse/rag"
)

// Fixed user-facing messages. Every failure path returns one of these; raw
// provider errors never reach the caller.
const (
	// GuidanceMessage answers a blank query.
	GuidanceMessage = "Please provide a question about the APIs (for example: " +
		`"How do I get index levels for NIFTY 50 between two dates?").`

	// NoMatchMessage answers a query with zero retrieval candidates.
	NoMatchMessage = "I could not find any API endpoints in the documentation that match your question. " +
		"Please try rephrasing your query or check if the API is documented."

	systemPrompt = "You are an AI assistant helping users browse and understand REST APIs."
)

// Classified generation failures. The HTTP layer maps these to status codes;
// their messages are safe to show to callers.
var (
	ErrGenerationTimeout = errors.New("the answer took too long to generate, please retry in a moment")
	ErrGenerationFailed  = errors.New("could not process your request right now, please try again later")
)

// AnswerCache is an optional read-through cache over successful answers.
// Implementations must be safe for concurrent use.
type AnswerCache interface {
	Get(ctx context.Context, query string) (string, bool)
	Set(ctx context.Context, query, answer string)
}

// Metrics receives per-stage pipeline measurements. Implementations must be
// safe for concurrent use.
type Metrics interface {
	RecordRetrieval(backend string, candidates int, duration time.Duration)
	RecordLLMRequest(provider, model, status string, duration time.Duration, promptTokens, completionTokens int)
	RecordCacheHit(cacheType string)
	RecordCacheMiss(cacheType string)
}

// ServiceConfig tunes the per-request pipeline.
type ServiceConfig struct {
	// Model overrides the provider's default chat model.
	Model string `json:"model" yaml:"model"`

	// Timeout bounds the generation call. Default 30s.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens"`
	Temperature float32 `json:"temperature" yaml:"temperature"`

	// VectorBackend labels retrieval metrics. Default "memory".
	VectorBackend string `json:"vector_backend" yaml:"vector_backend"`
}

// Service is the stateless per-request browse pipeline: retrieve, build the
// prompt, generate. Retrieval always completes before prompt construction,
// and prompt construction before generation.
type Service struct {
	retriever *rag.Retriever
	prompts   *PromptBuilder
	provider  llm.Provider
	cache     AnswerCache
	metrics   Metrics
	cfg       ServiceConfig
	logger    *zap.Logger

	tracer  trace.Tracer
	queries metric.Int64Counter
}

// NewService creates the pipeline. cache may be nil.
func NewService(retriever *rag.Retriever, provider llm.Provider, cache AnswerCache, cfg ServiceConfig, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.VectorBackend == "" {
		cfg.VectorBackend = "memory"
	}

	queries, err := otel.Meter("apibrowse/browse").Int64Counter("browse.queries",
		metric.WithDescription("Browse queries by outcome"))
	if err != nil {
		logger.Warn("failed to create browse query counter", zap.Error(err))
	}

	return &Service{
		retriever: retriever,
		prompts:   NewPromptBuilder(),
		provider:  provider,
		cache:     cache,
		cfg:       cfg,
		logger:    logger.With(zap.String("component", "browse_service")),
		tracer:    otel.Tracer("apibrowse/browse"),
		queries:   queries,
	}
}

// WithMetrics attaches a pipeline metrics sink and returns the service.
func (s *Service) WithMetrics(m Metrics) *Service {
	s.metrics = m
	return s
}

// Answer handles one browse query end to end and returns a plain-text answer.
// A returned error is always ErrGenerationTimeout or ErrGenerationFailed;
// everything else resolves to a normal answer string.
func (s *Service) Answer(ctx context.Context, query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		s.countQuery(ctx, "guidance")
		return GuidanceMessage, nil
	}

	if s.cache != nil {
		if answer, ok := s.cache.Get(ctx, query); ok {
			s.logger.Debug("answer cache hit", zap.String("query", query))
			s.countQuery(ctx, "cache_hit")
			if s.metrics != nil {
				s.metrics.RecordCacheHit("answer")
			}
			return answer, nil
		}
		if s.metrics != nil {
			s.metrics.RecordCacheMiss("answer")
		}
	}

	candidates, err := s.retrieve(ctx, query)
	if err != nil {
		s.logger.Error("retrieval failed", zap.String("query", query), zap.Error(err))
		s.countQuery(ctx, "error")
		return "", ErrGenerationFailed
	}

	s.logger.Info("retrieved candidate operations",
		zap.String("query", query),
		zap.Int("candidates", len(candidates)))

	if len(candidates) == 0 {
		s.countQuery(ctx, "no_match")
		return NoMatchMessage, nil
	}

	prompt := s.prompts.Build(query, candidates)

	answer, err := s.generate(ctx, query, prompt)
	if err != nil {
		return "", err
	}

	s.countQuery(ctx, "answered")
	if s.cache != nil {
		s.cache.Set(ctx, query, answer)
	}
	return answer, nil
}

func (s *Service) retrieve(ctx context.Context, query string) ([]rag.RetrievedOperation, error) {
	ctx, span := s.tracer.Start(ctx, "browse.retrieve",
		trace.WithAttributes(attribute.String("backend", s.cfg.VectorBackend)))
	defer span.End()

	start := time.Now()
	candidates, err := s.retriever.Retrieve(ctx, query)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("candidates", len(candidates)))
	if s.metrics != nil {
		s.metrics.RecordRetrieval(s.cfg.VectorBackend, len(candidates), time.Since(start))
	}
	return candidates, nil
}

func (s *Service) generate(ctx context.Context, query, prompt string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "browse.generate",
		trace.WithAttributes(
			attribute.String("provider", s.provider.Name()),
			attribute.String("model", s.cfg.Model)))
	defer span.End()

	genCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := s.provider.Completion(genCtx, &llm.ChatRequest{
		Model: s.cfg.Model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: systemPrompt},
			{Role: llm.RoleUser, Content: prompt},
		},
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		span.RecordError(err)
		if llm.IsTimeout(err) || genCtx.Err() != nil {
			s.logger.Warn("generation timed out",
				zap.String("query", query),
				zap.Duration("budget", s.cfg.Timeout))
			s.recordLLM("timeout", "", time.Since(start), nil)
			s.countQuery(ctx, "timeout")
			return "", ErrGenerationTimeout
		}
		s.logger.Error("generation failed",
			zap.String("query", query),
			zap.String("provider", s.provider.Name()),
			zap.Error(err))
		s.recordLLM("error", "", time.Since(start), nil)
		s.countQuery(ctx, "error")
		return "", ErrGenerationFailed
	}

	s.recordLLM("success", resp.Model, time.Since(start), &resp.Usage)

	answer := resp.FirstContent()
	if strings.TrimSpace(answer) == "" {
		s.logger.Error("provider returned empty answer",
			zap.String("provider", s.provider.Name()))
		s.countQuery(ctx, "error")
		return "", ErrGenerationFailed
	}

	s.logger.Info("browse answer generated",
		zap.Int("answer_length", len(answer)),
		zap.Duration("elapsed", time.Since(start)))

	return answer, nil
}

func (s *Service) recordLLM(status, respModel string, duration time.Duration, usage *llm.ChatUsage) {
	if s.metrics == nil {
		return
	}
	model := respModel
	if model == "" {
		model = s.cfg.Model
	}
	if model == "" {
		model = "default"
	}
	var prompt, completion int
	if usage != nil {
		prompt = usage.PromptTokens
		completion = usage.CompletionTokens
	}
	s.metrics.RecordLLMRequest(s.provider.Name(), model, status, duration, prompt, completion)
}

func (s *Service) countQuery(ctx context.Context, outcome string) {
	if s.queries == nil {
		return
	}
	s.queries.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
