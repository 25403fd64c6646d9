package openapi

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func loadTestFile(t *testing.T, name string) []OperationDescriptor {
	t.Helper()

	data, err := os.ReadFile("testdata/" + name)
	require.NoError(t, err)

	ops, err := NewLoader(zap.NewNop()).LoadBytes(context.Background(), data, name)
	require.NoError(t, err)
	return ops
}

func TestLoadBytes_OnePerPathMethodPair(t *testing.T) {
	t.Parallel()

	ops := loadTestFile(t, "orders.json")

	// orders.json declares GET+POST /orders and GET+DELETE /orders/{orderId}.
	require.Len(t, ops, 4)

	type pair struct{ method, path string }
	got := make([]pair, 0, len(ops))
	for _, op := range ops {
		got = append(got, pair{op.HTTPMethod, op.Path})
	}
	assert.Equal(t, []pair{
		{"GET", "/orders"},
		{"POST", "/orders"},
		{"GET", "/orders/{orderId}"},
		{"DELETE", "/orders/{orderId}"},
	}, got, "paths sorted, methods in fixed GET/POST/PUT/DELETE/PATCH order")
}

func TestLoadBytes_SynthesizesMissingOperationID(t *testing.T) {
	t.Parallel()

	ops := loadTestFile(t, "orders.json")

	var deleteOp *OperationDescriptor
	for i := range ops {
		if ops[i].HTTPMethod == "DELETE" {
			deleteOp = &ops[i]
		}
	}
	require.NotNil(t, deleteOp)
	assert.Equal(t, "DELETE /orders/{orderId}", deleteOp.ID)
}

func TestLoadBytes_PathLevelParametersComeFirst(t *testing.T) {
	t.Parallel()

	ops := loadTestFile(t, "orders.json")

	var getOrder *OperationDescriptor
	for i := range ops {
		if ops[i].ID == "getOrder" {
			getOrder = &ops[i]
		}
	}
	require.NotNil(t, getOrder)

	require.Len(t, getOrder.Parameters, 1)
	p := getOrder.Parameters[0]
	assert.Equal(t, "orderId", p.Name)
	assert.Equal(t, LocationPath, p.Location)
	assert.True(t, p.Required)
	assert.Equal(t, "integer(int64)", p.Type)
	assert.Equal(t, "1042", p.Example)
}

func TestLoadBytes_OperationLevelParameterLocations(t *testing.T) {
	t.Parallel()

	ops := loadTestFile(t, "orders.json")

	var listOrders *OperationDescriptor
	for i := range ops {
		if ops[i].ID == "listOrders" {
			listOrders = &ops[i]
		}
	}
	require.NotNil(t, listOrders)

	require.Len(t, listOrders.Parameters, 2)
	assert.Equal(t, LocationQuery, listOrders.Parameters[0].Location)
	assert.False(t, listOrders.Parameters[0].Required, "required defaults to false")
	assert.Equal(t, "string", listOrders.Parameters[0].Type)
	assert.Equal(t, LocationHeader, listOrders.Parameters[1].Location)
}

func TestLoadBytes_RequestBody(t *testing.T) {
	t.Parallel()

	ops := loadTestFile(t, "orders.json")

	var createOrder *OperationDescriptor
	for i := range ops {
		if ops[i].ID == "createOrder" {
			createOrder = &ops[i]
		}
	}
	require.NotNil(t, createOrder)
	assert.True(t, createOrder.HasRequestBody)
	assert.Equal(t, "Order payload with line items", createOrder.RequestBodySummary)
}

func TestLoadBytes_SwaggerV2Converted(t *testing.T) {
	t.Parallel()

	ops := loadTestFile(t, "legacy-v2.json")

	require.Len(t, ops, 1)
	assert.Equal(t, "getQuote", ops[0].ID)
	assert.Equal(t, "GET", ops[0].HTTPMethod)
	assert.Equal(t, "/quotes/{symbol}", ops[0].Path)
	require.Len(t, ops[0].Parameters, 1)
	assert.Equal(t, LocationPath, ops[0].Parameters[0].Location)
}

func TestLoadDir_SkipsMalformedFiles(t *testing.T) {
	t.Parallel()

	ops, err := NewLoader(zap.NewNop()).LoadDir(context.Background(), "testdata")
	require.NoError(t, err)

	// malformed.json is skipped; every operation from the valid files is kept.
	sources := make(map[string]int)
	for _, op := range ops {
		sources[op.SourceName]++
	}
	assert.Zero(t, sources["malformed.json"])
	assert.Equal(t, 2, sources["index-levels.json"])
	assert.Equal(t, 4, sources["orders.json"])
	assert.Equal(t, 1, sources["legacy-v2.json"])
}

func TestLoadDir_MissingDirectory(t *testing.T) {
	t.Parallel()

	_, err := NewLoader(zap.NewNop()).LoadDir(context.Background(), "testdata/does-not-exist")
	assert.Error(t, err)
}

func TestParseParameterLocation_DefaultsToQuery(t *testing.T) {
	t.Parallel()

	assert.Equal(t, LocationQuery, ParseParameterLocation(""))
	assert.Equal(t, LocationQuery, ParseParameterLocation("body"))
	assert.Equal(t, LocationPath, ParseParameterLocation("path"))
	assert.Equal(t, LocationHeader, ParseParameterLocation("header"))
	assert.Equal(t, LocationCookie, ParseParameterLocation("cookie"))
}
