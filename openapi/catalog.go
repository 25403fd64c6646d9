package openapi

import (
	"strings"

	"go.uber.org/zap"
)

// Catalog is a read-only snapshot of all loaded operations plus an id lookup
// map. It is built once at startup and never mutated afterwards, so reads
// need no locking.
type Catalog struct {
	operations []OperationDescriptor
	byID       map[string]OperationDescriptor
	logger     *zap.Logger
}

// BuildCatalog constructs the immutable catalog from loaded descriptors.
// Descriptors with a blank id stay in the ordered snapshot but are excluded
// from the id map.
func BuildCatalog(descriptors []OperationDescriptor, logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}

	snapshot := make([]OperationDescriptor, len(descriptors))
	copy(snapshot, descriptors)

	byID := make(map[string]OperationDescriptor, len(snapshot))
	for _, op := range snapshot {
		if strings.TrimSpace(op.ID) == "" {
			continue
		}
		byID[op.ID] = op
	}

	logger.Info("operation catalog built",
		zap.Int("operations", len(snapshot)),
		zap.Int("indexed_ids", len(byID)))

	return &Catalog{
		operations: snapshot,
		byID:       byID,
		logger:     logger,
	}
}

// Len returns the number of operations in the catalog.
func (c *Catalog) Len() int { return len(c.operations) }

// All returns a copy of the ordered operation snapshot.
func (c *Catalog) All() []OperationDescriptor {
	out := make([]OperationDescriptor, len(c.operations))
	copy(out, c.operations)
	return out
}

// FindByID returns the operation for the given id. The second return value
// reports whether the id exists.
func (c *Catalog) FindByID(id string) (OperationDescriptor, bool) {
	if strings.TrimSpace(id) == "" {
		return OperationDescriptor{}, false
	}
	op, ok := c.byID[id]
	return op, ok
}

// FindByTag returns every operation carrying the given tag. Tag matching is
// exact and case-sensitive. A blank tag returns an empty result.
func (c *Catalog) FindByTag(tag string) []OperationDescriptor {
	if strings.TrimSpace(tag) == "" {
		return nil
	}

	var out []OperationDescriptor
	for _, op := range c.operations {
		for _, t := range op.Tags {
			if t == tag {
				out = append(out, op)
				break
			}
		}
	}
	return out
}

// FindByPathContains returns every operation whose path contains the given
// fragment, compared case-insensitively. A blank fragment returns an empty
// result.
func (c *Catalog) FindByPathContains(fragment string) []OperationDescriptor {
	if strings.TrimSpace(fragment) == "" {
		return nil
	}

	lower := strings.ToLower(fragment)
	var out []OperationDescriptor
	for _, op := range c.operations {
		if strings.Contains(strings.ToLower(op.Path), lower) {
			out = append(out, op)
		}
	}
	return out
}
