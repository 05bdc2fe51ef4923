package devserver

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/artpar/code-explorer/internal/core/costs"
)

// =============================================================================
// OpenAPI Document
// =============================================================================

// OpenAPI describes the emulated API Gateway routes.
type OpenAPI struct {
	server string
	once   sync.Once
	spec   *openapi3.T
}

// NewOpenAPI creates a document generator for a server URL.
func NewOpenAPI(serverURL string) *OpenAPI {
	return &OpenAPI{server: serverURL}
}

// Generate builds the document once and returns it.
func (o *OpenAPI) Generate() *openapi3.T {
	o.once.Do(func() {
		o.spec = o.build()
	})
	return o.spec
}

// Handler returns an HTTP handler that serves the OpenAPI specification.
func (o *OpenAPI) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", costs.ContentTypeJSON)
		w.Header().Set("Access-Control-Allow-Origin", "*")

		if err := json.NewEncoder(w).Encode(o.Generate()); err != nil {
			http.Error(w, "Failed to encode OpenAPI spec", http.StatusInternalServerError)
		}
	}
}

func (o *OpenAPI) build() *openapi3.T {
	spec := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       "Code Explorer",
			Version:     "1.0.0",
			Description: "AWS cost report served through the API Gateway proxy integration",
		},
		Servers: openapi3.Servers{&openapi3.Server{URL: o.server}},
		Paths:   &openapi3.Paths{},
		Components: &openapi3.Components{
			Schemas: make(openapi3.Schemas),
		},
	}

	str := func() *openapi3.SchemaRef {
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}}
	}

	spec.Components.Schemas["CostRow"] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"Service":    str(),
				"Cost (USD)": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"number"}}},
			},
			Required: []string{"Service", "Cost (USD)"},
		},
	}
	spec.Components.Schemas["CostReport"] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"data": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type:  &openapi3.Types{"array"},
						Items: &openapi3.SchemaRef{Ref: "#/components/schemas/CostRow"},
					},
				},
				"message": str(),
			},
		},
	}
	spec.Components.Schemas["Error"] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type:       &openapi3.Types{"object"},
			Properties: openapi3.Schemas{"error": str()},
			Required:   []string{"error"},
		},
	}

	dateParam := func(name, description string) *openapi3.ParameterRef {
		return &openapi3.ParameterRef{
			Value: &openapi3.Parameter{
				Name:        name,
				In:          "query",
				Description: description,
				Schema: &openapi3.SchemaRef{
					Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: "date"},
				},
			},
		}
	}
	listParam := func(name, description string) *openapi3.ParameterRef {
		return &openapi3.ParameterRef{
			Value: &openapi3.Parameter{
				Name:        name,
				In:          "query",
				Description: description,
				Schema:      str(),
			},
		}
	}

	responses := &openapi3.Responses{}
	responses.Set("200", &openapi3.ResponseRef{
		Value: openapi3.NewResponse().
			WithDescription("Cost report").
			WithContent(openapi3.Content{
				costs.ContentTypeJSON: &openapi3.MediaType{
					Schema: &openapi3.SchemaRef{Ref: "#/components/schemas/CostReport"},
				},
				costs.ContentTypeText: &openapi3.MediaType{Schema: str()},
			}),
	})
	responses.Set("400", errorResponse("Invalid date"))
	responses.Set("500", errorResponse("Cost Explorer or internal failure"))

	spec.Paths.Set("/costs", &openapi3.PathItem{
		Get: &openapi3.Operation{
			OperationID: "getCosts",
			Summary:     "Report costs grouped by service",
			Tags:        []string{"Costs"},
			Parameters: openapi3.Parameters{
				dateParam(costs.ParamStartDate, "Inclusive start date, defaults to the first day of the month"),
				dateParam(costs.ParamEndDate, "End date, defaults to yesterday"),
				listParam(costs.ParamServices, "Comma separated SERVICE dimension values"),
				listParam(costs.ParamRegions, "Comma separated REGION dimension values"),
				&openapi3.ParameterRef{
					Value: &openapi3.Parameter{
						Name: costs.ParamFormat,
						In:   "query",
						Schema: &openapi3.SchemaRef{
							Value: &openapi3.Schema{
								Type:    &openapi3.Types{"string"},
								Enum:    []interface{}{string(costs.FormatJSON), string(costs.FormatTable)},
								Default: string(costs.FormatJSON),
							},
						},
					},
				},
			},
			Responses: responses,
		},
	})

	healthResponses := &openapi3.Responses{}
	healthResponses.Set("200", &openapi3.ResponseRef{Value: openapi3.NewResponse().WithDescription("Server is up")})
	spec.Paths.Set("/healthz", &openapi3.PathItem{
		Get: &openapi3.Operation{
			OperationID: "getHealth",
			Summary:     "Health check",
			Tags:        []string{"Health"},
			Responses:   healthResponses,
		},
	})

	return spec
}

func errorResponse(description string) *openapi3.ResponseRef {
	return &openapi3.ResponseRef{
		Value: openapi3.NewResponse().
			WithDescription(description).
			WithJSONSchemaRef(&openapi3.SchemaRef{Ref: "#/components/schemas/Error"}),
	}
}
