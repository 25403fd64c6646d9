package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/BaSui01/apibrowse/api"
	"github.com/BaSui01/apibrowse/openapi"
	"go.uber.org/zap"
)

// OperationsPathPrefix is the route prefix for single-operation lookups.
const OperationsPathPrefix = "/ai/operations/"

// OperationsHandler serves read-only views over the catalog for debugging
// what got indexed.
type OperationsHandler struct {
	catalog *openapi.Catalog
	logger  *zap.Logger
}

// NewOperationsHandler creates an operations handler.
func NewOperationsHandler(catalog *openapi.Catalog, logger *zap.Logger) *OperationsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OperationsHandler{
		catalog: catalog,
		logger:  logger.With(zap.String("component", "operations_handler")),
	}
}

// HandleList serves GET /ai/operations.
func (h *OperationsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, h.logger) {
		return
	}

	all := h.catalog.All()
	summaries := make([]api.OperationSummary, 0, len(all))
	for _, op := range all {
		summaries = append(summaries, api.SummarizeOperation(op))
	}

	WriteSuccess(w, api.OperationList{
		Total:      len(summaries),
		Operations: summaries,
	})
}

// HandleGet serves GET /ai/operations/{id}. Synthesized IDs contain a space
// ("GET /orders"), so the id segment is percent-decoded before lookup.
func (h *OperationsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, h.logger) {
		return
	}

	raw := strings.TrimPrefix(r.URL.EscapedPath(), OperationsPathPrefix)
	id, err := url.PathUnescape(raw)
	if err != nil || id == "" {
		WriteError(w, http.StatusBadRequest, CodeInvalidRequest, "missing operation id", false, h.logger)
		return
	}

	op, ok := h.catalog.FindByID(id)
	if !ok {
		WriteError(w, http.StatusNotFound, CodeNotFound, "operation not found", false, h.logger)
		return
	}

	WriteSuccess(w, op)
}
