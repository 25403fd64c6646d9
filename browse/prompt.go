// Package browse wires retrieval, prompt construction and generation into the
// "which endpoint should I call" pipeline behind the public query surface.
package browse

import (
	"strconv"
	"strings"

	"github.com/BaSui01/apibrowse/openapi"
	"github.com/BaSui01/apibrowse/rag"
)

// noOperationsSentinel replaces the candidate block when retrieval produced
// nothing. The closing instructions tell the model to treat it as "no match",
// so the exact token is part of the prompt contract.
const noOperationsSentinel = "NO_OPERATIONS_AVAILABLE"

// PromptBuilder renders the generation prompt. Building is a pure function:
// the same query and candidates always produce byte-identical text.
type PromptBuilder struct{}

// NewPromptBuilder creates a builder.
func NewPromptBuilder() *PromptBuilder { return &PromptBuilder{} }

// Build renders the full prompt for a user query and its ranked candidates.
func (b *PromptBuilder) Build(query string, candidates []rag.RetrievedOperation) string {
	var sb strings.Builder

	sb.WriteString("You are an expert API assistant.\n")
	sb.WriteString("Your job is to help the user understand WHICH HTTP API endpoint to call,\n")
	sb.WriteString("and HOW to call it (method, path, path params, query params, and request body if any).\n")
	sb.WriteString("You MUST only answer using the API operations listed below.\n")
	sb.WriteString("If none of the operations are a good match, say that clearly.\n\n")

	sb.WriteString("User question:\n")
	sb.WriteString("\"" + query + "\"\n\n")

	sb.WriteString("Here are the candidate API operations you can choose from:\n\n")

	if len(candidates) == 0 {
		sb.WriteString(noOperationsSentinel + "\n\n")
	} else {
		for i, cand := range candidates {
			b.writeOperation(&sb, i+1, cand.Operation)
		}
	}

	sb.WriteString("\nNow, based on the user's question and the operations above, ")
	sb.WriteString("explain in clear English which endpoint(s) the user should call.\n")
	sb.WriteString("For each recommended endpoint, include:\n")
	sb.WriteString("  - HTTP method (e.g., GET, POST)\n")
	sb.WriteString("  - Full path (e.g., /indices/{indexName}/levels)\n")
	sb.WriteString("  - Path parameters with example values and meaning\n")
	sb.WriteString("  - Query parameters with example values and meaning\n")
	sb.WriteString("  - Whether a JSON request body is required (and a rough JSON example if applicable)\n")
	sb.WriteString("  - A short explanation of what the endpoint returns.\n\n")

	sb.WriteString("Format your response as clear bullet points and short paragraphs. ")
	sb.WriteString("Do NOT invent endpoints that are not listed above.\n")

	return sb.String()
}

func (b *PromptBuilder) writeOperation(sb *strings.Builder, index int, op openapi.OperationDescriptor) {
	sb.WriteString(strconv.Itoa(index) + ") ")
	sb.WriteString("ID: " + op.ID + "\n")
	sb.WriteString("   Method: " + strings.ToUpper(op.HTTPMethod) + "\n")
	sb.WriteString("   Path: " + op.Path + "\n")

	if strings.TrimSpace(op.Summary) != "" {
		sb.WriteString("   Summary: " + op.Summary + "\n")
	}
	if strings.TrimSpace(op.Description) != "" {
		sb.WriteString("   Description: " + op.Description + "\n")
	}
	if len(op.Tags) > 0 {
		sb.WriteString("   Tags: " + strings.Join(op.Tags, ", ") + "\n")
	}

	if pathParams := op.PathParameters(); len(pathParams) > 0 {
		sb.WriteString("   Path parameters:\n")
		for _, p := range pathParams {
			b.writeParameter(sb, p)
		}
	}
	if queryParams := op.QueryParameters(); len(queryParams) > 0 {
		sb.WriteString("   Query parameters:\n")
		for _, p := range queryParams {
			b.writeParameter(sb, p)
		}
	}

	if op.HasRequestBody {
		sb.WriteString("   Request body: YES")
		if strings.TrimSpace(op.RequestBodySummary) != "" {
			sb.WriteString(" - " + op.RequestBodySummary)
		}
		sb.WriteString("\n")
	} else {
		sb.WriteString("   Request body: NO\n")
	}

	if strings.TrimSpace(op.SourceName) != "" {
		sb.WriteString("   Source: " + op.SourceName + "\n")
	}

	sb.WriteString("\n")
}

func (b *PromptBuilder) writeParameter(sb *strings.Builder, p openapi.ParameterDescriptor) {
	sb.WriteString("      - " + p.Name)

	if p.Required {
		sb.WriteString(" [required]")
	} else {
		sb.WriteString(" [optional]")
	}
	if p.Type != "" {
		sb.WriteString(" (type: " + p.Type + ")")
	}
	if strings.TrimSpace(p.Description) != "" {
		sb.WriteString(" - " + p.Description)
	}
	if strings.TrimSpace(p.Example) != "" {
		sb.WriteString(" (example: " + p.Example + ")")
	}

	sb.WriteString("\n")
}
