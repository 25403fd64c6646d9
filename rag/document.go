// Package rag implements the retrieval side of the browse pipeline: mapping
// operation descriptors to retrievable documents, indexing them into a vector
// store, and mapping similarity hits back to full descriptors.
package rag

import (
	"strings"

	"github.com/BaSui01/apibrowse/openapi"
)

// OperationMetadata is the fixed metadata record attached to every indexed
// document. OperationID is the join key back to the operation catalog; the
// remaining fields exist for filtering and debugging only.
//
// Deliberately a small struct rather than an open-ended map so that key typos
// fail at compile time.
type OperationMetadata struct {
	OperationID string   `json:"operationId"`
	HTTPMethod  string   `json:"httpMethod"`
	Path        string   `json:"path"`
	SourceName  string   `json:"sourceName,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Document is the derived text+metadata projection of one operation, used only
// for embedding and similarity search. The catalog remains the source of
// truth; documents are disposable.
type Document struct {
	// ID equals the operation id, which keeps store upserts idempotent.
	ID        string            `json:"id"`
	Content   string            `json:"content"`
	Metadata  OperationMetadata `json:"metadata"`
	Embedding []float64         `json:"embedding,omitempty"`
}

// VectorSearchResult is one similarity hit. Score is cosine similarity
// (higher is more relevant); Distance is 1 - Score.
type VectorSearchResult struct {
	Document Document `json:"document"`
	Score    float64  `json:"score"`
	Distance float64  `json:"distance"`
}

// DocumentMapper renders operation descriptors into documents. Rendering is
// deterministic: the same descriptor always yields byte-identical content.
type DocumentMapper struct{}

// NewDocumentMapper creates a mapper.
func NewDocumentMapper() *DocumentMapper { return &DocumentMapper{} }

// ToDocument renders one descriptor. Blank optional fields are omitted
// entirely rather than rendered as empty labeled lines.
func (m *DocumentMapper) ToDocument(op openapi.OperationDescriptor) Document {
	var sb strings.Builder

	sb.WriteString("[" + op.HTTPMethod + "] " + op.Path + "\n")

	if strings.TrimSpace(op.Summary) != "" {
		sb.WriteString("Summary: " + op.Summary + "\n")
	}
	if strings.TrimSpace(op.Description) != "" {
		sb.WriteString("Description: " + op.Description + "\n")
	}
	if len(op.Tags) > 0 {
		sb.WriteString("Tags: " + strings.Join(op.Tags, ", ") + "\n")
	}

	if len(op.Parameters) > 0 {
		sb.WriteString("Parameters:\n")
		for _, p := range op.Parameters {
			sb.WriteString("  - " + p.Name + " (" + string(p.Location) + ")")
			if p.Required {
				sb.WriteString(" [required]")
			} else {
				sb.WriteString(" [optional]")
			}
			if p.Type != "" {
				sb.WriteString(" type=" + p.Type)
			}
			if strings.TrimSpace(p.Description) != "" {
				sb.WriteString(" - " + p.Description)
			}
			if strings.TrimSpace(p.Example) != "" {
				sb.WriteString(" (example: " + p.Example + ")")
			}
			sb.WriteString("\n")
		}
	}

	if op.HasRequestBody {
		sb.WriteString("Request Body: present")
		if strings.TrimSpace(op.RequestBodySummary) != "" {
			sb.WriteString(" - " + op.RequestBodySummary)
		}
		sb.WriteString("\n")
	}

	if strings.TrimSpace(op.SourceName) != "" {
		sb.WriteString("Source: " + op.SourceName + "\n")
	}

	return Document{
		ID:      op.ID,
		Content: sb.String(),
		Metadata: OperationMetadata{
			OperationID: op.ID,
			HTTPMethod:  op.HTTPMethod,
			Path:        op.Path,
			SourceName:  op.SourceName,
			Tags:        op.Tags,
		},
	}
}

// ToDocuments maps every descriptor, dropping any whose rendering produced no
// usable join key. With well-formed catalog input this never drops anything.
func (m *DocumentMapper) ToDocuments(ops []openapi.OperationDescriptor) []Document {
	docs := make([]Document, 0, len(ops))
	for _, op := range ops {
		doc := m.ToDocument(op)
		if strings.TrimSpace(doc.Metadata.OperationID) == "" {
			continue
		}
		docs = append(docs, doc)
	}
	return docs
}
