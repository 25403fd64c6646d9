// Package openapi turns OpenAPI/Swagger documents into a normalized,
// queryable catalog of API operations.
//
// The package knows nothing about vector stores or LLMs; it only produces
// OperationDescriptor values from spec files and serves lookups over them.
package openapi

// ParameterLocation identifies where a parameter is carried in the request.
type ParameterLocation string

const (
	LocationPath   ParameterLocation = "PATH"
	LocationQuery  ParameterLocation = "QUERY"
	LocationHeader ParameterLocation = "HEADER"
	LocationCookie ParameterLocation = "COOKIE"
)

// ParseParameterLocation maps the OpenAPI "in" field to a ParameterLocation.
// Unknown or missing values fall back to QUERY.
func ParseParameterLocation(in string) ParameterLocation {
	switch in {
	case "path":
		return LocationPath
	case "header":
		return LocationHeader
	case "cookie":
		return LocationCookie
	case "query":
		return LocationQuery
	default:
		return LocationQuery
	}
}

// ParameterDescriptor is the normalized record for one operation parameter.
type ParameterDescriptor struct {
	Name     string            `json:"name"`
	Location ParameterLocation `json:"location"`
	Required bool              `json:"required"`
	// Type is "schemaType(schemaFormat)" when both are known, the bare schema
	// type when only that is known, and empty otherwise.
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
	Example     string `json:"example,omitempty"`
}

// OperationDescriptor is the normalized record for one HTTP method on one
// path. Descriptors are built once at startup and treated as immutable.
type OperationDescriptor struct {
	// ID is the spec's operationId, or "{METHOD} {PATH}" when absent.
	ID         string `json:"id"`
	HTTPMethod string `json:"http_method"`
	Path       string `json:"path"`

	Summary     string   `json:"summary,omitempty"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`

	// Parameters is path-level parameters followed by operation-level ones,
	// in spec order. Duplicate names are preserved as separate entries.
	Parameters []ParameterDescriptor `json:"parameters,omitempty"`

	HasRequestBody     bool   `json:"has_request_body"`
	RequestBodySummary string `json:"request_body_summary,omitempty"`

	// SourceName is the file name of the spec document this came from.
	SourceName string `json:"source_name,omitempty"`
}

// PathParameters returns the subset of Parameters carried in the path.
func (d OperationDescriptor) PathParameters() []ParameterDescriptor {
	return d.parametersIn(LocationPath)
}

// QueryParameters returns the subset of Parameters carried in the query string.
func (d OperationDescriptor) QueryParameters() []ParameterDescriptor {
	return d.parametersIn(LocationQuery)
}

func (d OperationDescriptor) parametersIn(loc ParameterLocation) []ParameterDescriptor {
	out := make([]ParameterDescriptor, 0, len(d.Parameters))
	for _, p := range d.Parameters {
		if p.Location == loc {
			out = append(out, p)
		}
	}
	return out
}
