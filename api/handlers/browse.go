package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/BaSui01/apibrowse/api"
	"github.com/BaSui01/apibrowse/browse"
	"github.com/BaSui01/apibrowse/internal/metrics"
	"go.uber.org/zap"
)

// BrowseHandler serves POST /ai/browse: a natural-language question in, an
// LLM answer grounded in the indexed operations out.
type BrowseHandler struct {
	service   *browse.Service
	collector *metrics.Collector
	logger    *zap.Logger
}

// NewBrowseHandler creates a browse handler. collector may be nil.
func NewBrowseHandler(service *browse.Service, collector *metrics.Collector, logger *zap.Logger) *BrowseHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BrowseHandler{
		service:   service,
		collector: collector,
		logger:    logger.With(zap.String("component", "browse_handler")),
	}
}

// HandleBrowse answers one browse query.
func (h *BrowseHandler) HandleBrowse(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost, h.logger) {
		return
	}
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req api.BrowseRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	start := time.Now()
	answer, err := h.service.Answer(r.Context(), req.Query)
	duration := time.Since(start)

	if err != nil {
		outcome := "error"
		status := http.StatusInternalServerError
		code := CodeGenerationFailed
		if errors.Is(err, browse.ErrGenerationTimeout) {
			outcome = "timeout"
			status = http.StatusGatewayTimeout
			code = CodeGenerationTimeout
		}
		h.record(outcome, duration)

		// Sentinel error messages are written for callers; anything else
		// stays behind a generic message.
		message := browse.ErrGenerationFailed.Error()
		if errors.Is(err, browse.ErrGenerationTimeout) || errors.Is(err, browse.ErrGenerationFailed) {
			message = err.Error()
		}
		WriteError(w, status, code, message, true, h.logger)
		return
	}

	h.record(outcomeForAnswer(answer), duration)

	h.logger.Info("browse query answered",
		zap.Int("query_len", len(req.Query)),
		zap.Int("answer_len", len(answer)),
		zap.Duration("duration", duration),
	)

	WriteSuccess(w, api.BrowseAnswer{Answer: answer})
}

func (h *BrowseHandler) record(outcome string, duration time.Duration) {
	if h.collector != nil {
		h.collector.RecordBrowseRequest(outcome, duration)
	}
}

func outcomeForAnswer(answer string) string {
	switch answer {
	case browse.GuidanceMessage:
		return "guidance"
	case browse.NoMatchMessage:
		return "no_match"
	default:
		return "answered"
	}
}
