package rag

import (
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/BaSui01/apibrowse/openapi"
)

func fullDescriptor() openapi.OperationDescriptor {
	return openapi.OperationDescriptor{
		ID:          "getIndexLevels",
		HTTPMethod:  "GET",
		Path:        "/indices/{indexName}/levels",
		Summary:     "Get index levels",
		Description: "Returns historical index levels for a date range.",
		Tags:        []string{"indices", "levels"},
		Parameters: []openapi.ParameterDescriptor{
			{Name: "indexName", Location: openapi.LocationPath, Required: true, Type: "string", Description: "Index identifier", Example: "NIFTY 50"},
			{Name: "fromDate", Location: openapi.LocationQuery, Type: "string(date)", Example: "2024-01-01"},
		},
		HasRequestBody:     false,
		RequestBodySummary: "",
		SourceName:         "indices.json",
	}
}

func TestToDocument_RendersAllSections(t *testing.T) {
	doc := NewDocumentMapper().ToDocument(fullDescriptor())

	require.Equal(t, "getIndexLevels", doc.ID)
	assert.Equal(t, "getIndexLevels", doc.Metadata.OperationID)
	assert.Equal(t, "GET", doc.Metadata.HTTPMethod)
	assert.Equal(t, "/indices/{indexName}/levels", doc.Metadata.Path)
	assert.Equal(t, "indices.json", doc.Metadata.SourceName)
	assert.Equal(t, []string{"indices", "levels"}, doc.Metadata.Tags)

	lines := strings.Split(strings.TrimRight(doc.Content, "\n"), "\n")
	require.Len(t, lines, 8)
	assert.Equal(t, "[GET] /indices/{indexName}/levels", lines[0])
	assert.Equal(t, "Summary: Get index levels", lines[1])
	assert.Equal(t, "Description: Returns historical index levels for a date range.", lines[2])
	assert.Equal(t, "Tags: indices, levels", lines[3])
	assert.Equal(t, "Parameters:", lines[4])
	assert.Equal(t, "  - indexName (path) [required] type=string - Index identifier (example: NIFTY 50)", lines[5])
	assert.Equal(t, "  - fromDate (query) [optional] type=string(date) (example: 2024-01-01)", lines[6])
	assert.Equal(t, "Source: indices.json", lines[7])
}

func TestToDocument_OmitsBlankSections(t *testing.T) {
	doc := NewDocumentMapper().ToDocument(openapi.OperationDescriptor{
		ID:         "DELETE /orders/{orderId}",
		HTTPMethod: "DELETE",
		Path:       "/orders/{orderId}",
	})

	assert.Equal(t, "[DELETE] /orders/{orderId}\n", doc.Content)
	assert.NotContains(t, doc.Content, "Summary:")
	assert.NotContains(t, doc.Content, "Description:")
	assert.NotContains(t, doc.Content, "Tags:")
	assert.NotContains(t, doc.Content, "Parameters:")
	assert.NotContains(t, doc.Content, "Request Body:")
	assert.NotContains(t, doc.Content, "Source:")
}

func TestToDocument_RequestBodyLine(t *testing.T) {
	doc := NewDocumentMapper().ToDocument(openapi.OperationDescriptor{
		ID:                 "createOrder",
		HTTPMethod:         "POST",
		Path:               "/orders",
		HasRequestBody:     true,
		RequestBodySummary: "Order payload with line items",
	})

	assert.Contains(t, doc.Content, "Request Body: present - Order payload with line items\n")
}

func TestToDocuments_DropsBlankIDs(t *testing.T) {
	docs := NewDocumentMapper().ToDocuments([]openapi.OperationDescriptor{
		{ID: "a", HTTPMethod: "GET", Path: "/a"},
		{ID: "   ", HTTPMethod: "GET", Path: "/blank"},
		{ID: "b", HTTPMethod: "GET", Path: "/b"},
	})

	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0].ID)
	assert.Equal(t, "b", docs[1].ID)
}

func TestToDocument_Deterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		op := openapi.OperationDescriptor{
			ID:          rapid.StringMatching(`[a-zA-Z0-9_ /{}-]{1,40}`).Draw(t, "id"),
			HTTPMethod:  rapid.SampledFrom([]string{"GET", "POST", "PUT", "DELETE", "PATCH"}).Draw(t, "method"),
			Path:        "/" + rapid.StringMatching(`[a-z/{}-]{0,30}`).Draw(t, "path"),
			Summary:     rapid.StringMatching(`[ -~]{0,40}`).Draw(t, "summary"),
			Description: rapid.StringMatching(`[ -~]{0,40}`).Draw(t, "description"),
			Tags:        rapid.SliceOfN(rapid.StringMatching(`[a-z]{1,10}`), 0, 4).Draw(t, "tags"),
		}

		mapper := NewDocumentMapper()
		first := mapper.ToDocument(op)
		second := mapper.ToDocument(op)

		if first.Content != second.Content {
			t.Fatalf("rendering is not deterministic:\n%q\n%q", first.Content, second.Content)
		}
		if !reflect.DeepEqual(first.Metadata, second.Metadata) {
			t.Fatalf("metadata differs between renders")
		}
	})
}
