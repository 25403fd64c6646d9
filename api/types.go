// Package api defines the request and response types for the HTTP surface.
package api

import "github.com/BaSui01/apibrowse/openapi"

// BrowseRequest is the body of POST /ai/browse.
type BrowseRequest struct {
	Query string `json:"query"`
}

// BrowseAnswer is the payload of a successful browse response.
type BrowseAnswer struct {
	Answer string `json:"answer"`
}

// OperationSummary is the list view of one catalog entry served by
// GET /ai/operations.
type OperationSummary struct {
	ID         string   `json:"id"`
	HTTPMethod string   `json:"http_method"`
	Path       string   `json:"path"`
	Summary    string   `json:"summary,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	SourceName string   `json:"source_name,omitempty"`
}

// OperationList is the payload of GET /ai/operations.
type OperationList struct {
	Total      int                `json:"total"`
	Operations []OperationSummary `json:"operations"`
}

// SummarizeOperation projects a descriptor onto its list view.
func SummarizeOperation(op openapi.OperationDescriptor) OperationSummary {
	return OperationSummary{
		ID:         op.ID,
		HTTPMethod: op.HTTPMethod,
		Path:       op.Path,
		Summary:    op.Summary,
		Tags:       op.Tags,
		SourceName: op.SourceName,
	}
}
