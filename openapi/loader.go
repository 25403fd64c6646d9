package openapi

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"
	"github.com/getkin/kin-openapi/openapi3"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// supportedMethods is the fixed method order descriptors are emitted in for
// each path.
var supportedMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH"}

// Loader parses OpenAPI/Swagger documents into OperationDescriptor lists.
//
// A malformed document never aborts the overall load: the file is skipped,
// a diagnostic is logged, and loading continues with the remaining sources.
type Loader struct {
	logger *zap.Logger
}

// NewLoader creates a spec loader.
func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{logger: logger.With(zap.String("component", "spec_loader"))}
}

// LoadDir loads every *.json, *.yaml and *.yml file under dir (sorted by file
// name for determinism) and returns the flat descriptor list across all of
// them. Files that fail to parse are skipped.
func (l *Loader) LoadDir(ctx context.Context, dir string) ([]OperationDescriptor, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read spec dir %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".json", ".yaml", ".yml":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var operations []OperationDescriptor
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			l.logger.Warn("failed to read spec file, skipping",
				zap.String("source", name), zap.Error(err))
			continue
		}

		ops, err := l.LoadBytes(ctx, data, name)
		if err != nil {
			l.logger.Warn("failed to parse spec file, skipping",
				zap.String("source", name), zap.Error(err))
			continue
		}
		operations = append(operations, ops...)
	}

	l.logger.Info("spec sources loaded",
		zap.Int("files", len(names)),
		zap.Int("operations", len(operations)))
	return operations, nil
}

// LoadBytes parses a single OpenAPI v3 or Swagger v2 document and returns its
// operations. sourceName is recorded on every descriptor.
func (l *Loader) LoadBytes(ctx context.Context, data []byte, sourceName string) ([]OperationDescriptor, error) {
	doc, err := l.parseDocument(ctx, data)
	if err != nil {
		return nil, err
	}
	if doc.Paths == nil {
		return nil, nil
	}

	// Map iteration order is random; sort path keys so repeated loads of the
	// same file always yield the same descriptor order.
	pathKeys := make([]string, 0, len(doc.Paths))
	for p := range doc.Paths {
		pathKeys = append(pathKeys, p)
	}
	sort.Strings(pathKeys)

	var operations []OperationDescriptor
	for _, path := range pathKeys {
		item := doc.Paths[path]
		if item == nil {
			continue
		}

		byMethod := map[string]*openapi3.Operation{
			"GET":    item.Get,
			"POST":   item.Post,
			"PUT":    item.Put,
			"DELETE": item.Delete,
			"PATCH":  item.Patch,
		}

		for _, method := range supportedMethods {
			op := byMethod[method]
			if op == nil {
				continue
			}
			operations = append(operations, buildDescriptor(method, path, item.Parameters, op, sourceName))
		}
	}
	return operations, nil
}

// parseDocument detects the spec version, converts Swagger v2 to v3 when
// needed, and resolves all $ref pointers so descriptors never carry dangling
// references.
func (l *Loader) parseDocument(ctx context.Context, data []byte) (*openapi3.T, error) {
	version, err := detectSpecVersion(data)
	if err != nil {
		return nil, err
	}

	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = false

	var doc *openapi3.T
	switch version {
	case 3:
		doc, err = loader.LoadFromData(data)
		if err != nil {
			return nil, fmt.Errorf("parse openapi v3: %w", err)
		}
	case 2:
		var v2 openapi2.T
		if err := yaml.Unmarshal(data, &v2); err != nil {
			return nil, fmt.Errorf("parse swagger v2: %w", err)
		}
		doc, err = openapi2conv.ToV3(&v2)
		if err != nil {
			return nil, fmt.Errorf("convert swagger v2 to v3: %w", err)
		}
		if err := loader.ResolveRefsIn(doc, nil); err != nil {
			return nil, fmt.Errorf("resolve refs: %w", err)
		}
	}

	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("validate spec: %w", err)
	}
	return doc, nil
}

// detectSpecVersion returns 3 for OpenAPI v3 and 2 for Swagger v2.
func detectSpecVersion(data []byte) (int, error) {
	var root map[string]any
	if err := yaml.Unmarshal(data, &root); err != nil {
		return 0, fmt.Errorf("parse spec: %w", err)
	}
	if v, ok := root["openapi"]; ok {
		if s, _ := v.(string); strings.HasPrefix(strings.TrimSpace(s), "3.") {
			return 3, nil
		}
	}
	if v, ok := root["swagger"]; ok {
		if s, _ := v.(string); strings.HasPrefix(strings.TrimSpace(s), "2.") {
			return 2, nil
		}
	}
	return 0, fmt.Errorf("unknown or unsupported OpenAPI/Swagger version")
}

func buildDescriptor(method, path string, pathLevel openapi3.Parameters, op *openapi3.Operation, sourceName string) OperationDescriptor {
	id := strings.TrimSpace(op.OperationID)
	if id == "" {
		id = method + " " + path
	}

	// Path-level parameters first, then operation-level, both in spec order.
	// Duplicates are kept deliberately; callers see the full declared set.
	params := make([]ParameterDescriptor, 0, len(pathLevel)+len(op.Parameters))
	for _, ref := range pathLevel {
		if p := toParameterDescriptor(ref); p != nil {
			params = append(params, *p)
		}
	}
	for _, ref := range op.Parameters {
		if p := toParameterDescriptor(ref); p != nil {
			params = append(params, *p)
		}
	}

	hasBody := op.RequestBody != nil && op.RequestBody.Value != nil
	bodySummary := ""
	if hasBody {
		bodySummary = op.RequestBody.Value.Description
	}

	var tags []string
	if len(op.Tags) > 0 {
		tags = append(tags, op.Tags...)
	}

	return OperationDescriptor{
		ID:                 id,
		HTTPMethod:         method,
		Path:               path,
		Summary:            op.Summary,
		Description:        op.Description,
		Tags:               tags,
		Parameters:         params,
		HasRequestBody:     hasBody,
		RequestBodySummary: bodySummary,
		SourceName:         sourceName,
	}
}

func toParameterDescriptor(ref *openapi3.ParameterRef) *ParameterDescriptor {
	if ref == nil || ref.Value == nil {
		return nil
	}
	p := ref.Value

	desc := ParameterDescriptor{
		Name:        p.Name,
		Location:    ParseParameterLocation(p.In),
		Required:    p.Required,
		Description: p.Description,
	}

	if p.Schema != nil && p.Schema.Value != nil {
		schemaType := p.Schema.Value.Type
		schemaFormat := p.Schema.Value.Format
		switch {
		case schemaType != "" && schemaFormat != "":
			desc.Type = schemaType + "(" + schemaFormat + ")"
		case schemaType != "":
			desc.Type = schemaType
		}
	}

	if p.Example != nil {
		desc.Example = fmt.Sprint(p.Example)
	}

	return &desc
}
