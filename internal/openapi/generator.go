// Package openapi generates the gateway's OpenAPI 3.1 document from the
// static resource registry. Because the allow-list is fixed at compile
// time, the document is too.
package openapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/stilehq/stile/internal/resource"
)

// Generate builds the OpenAPI document covering every allow-listed
// resource plus the discovery endpoint.
func Generate(baseURL string) *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       "Stile Resource Gateway",
			Description: "Read-only REST access to the entity-management platform's resources.",
			Version:     "1.0.0",
		},
	}
	if baseURL != "" {
		doc.Servers = openapi3.Servers{{URL: baseURL}}
	}

	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{}
	components.SecuritySchemes = openapi3.SecuritySchemes{}
	doc.Components = &components

	doc.Components.SecuritySchemes["apiKey"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type: "apiKey",
			In:   "header",
			Name: "X-API-Key",
		},
	}
	doc.Security = openapi3.SecurityRequirements{{"apiKey": {}}}

	doc.Components.Schemas["ErrorResponse"] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"error": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type: &openapi3.Types{"object"},
						Properties: openapi3.Schemas{
							"code":    &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}},
							"message": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
						},
					},
				},
			},
		},
	}

	doc.Paths = openapi3.NewPaths()

	// Discovery
	doc.Paths.Set("/api/v1", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Summary:     "List routable resources",
			OperationID: "discovery",
			Responses: newResponses("200", "Discovery payload", &openapi3.SchemaRef{
				Value: &openapi3.Schema{Type: &openapi3.Types{"object"}},
			}),
		},
	})

	for _, res := range resource.Registry {
		addResourcePaths(doc, res)
	}

	return doc
}

func addResourcePaths(doc *openapi3.T, res resource.Resource) {
	listResponseSchema := &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"data": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type:  &openapi3.Types{"array"},
						Items: &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}},
					},
				},
				"pagination": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type: &openapi3.Types{"object"},
						Properties: openapi3.Schemas{
							"total":    &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int64"}},
							"limit":    &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}},
							"offset":   &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}},
							"has_more": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"boolean"}}},
						},
					},
				},
			},
		},
	}

	singleResponseSchema := &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"data": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}},
			},
		},
	}

	doc.Paths.Set("/api/v1/"+res.Name, &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{res.Name},
			Summary:     fmt.Sprintf("List %s", res.Name),
			OperationID: "list_" + res.Name,
			Parameters:  listQueryParameters(res),
			Responses:   newResponses("200", fmt.Sprintf("Page of %s", res.Name), listResponseSchema),
		},
	})

	doc.Paths.Set("/api/v1/"+res.Name+"/{id}", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{res.Name},
			Summary:     fmt.Sprintf("Get a single %s record", res.Name),
			OperationID: "get_" + res.Name,
			Parameters: openapi3.Parameters{
				&openapi3.ParameterRef{
					Value: openapi3.NewPathParameter("id").
						WithDescription("Primary identity of the record.").
						WithSchema(openapi3.NewStringSchema()),
				},
			},
			Responses: newResponses("200", fmt.Sprintf("Single %s record", res.Name), singleResponseSchema),
		},
	})
}

func listQueryParameters(res resource.Resource) openapi3.Parameters {
	params := openapi3.Parameters{
		&openapi3.ParameterRef{
			Value: openapi3.NewQueryParameter("limit").
				WithDescription(fmt.Sprintf("Maximum number of records to return (default %d, max %d).", resource.DefaultLimit, resource.MaxLimit)).
				WithSchema(&openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}),
		},
		&openapi3.ParameterRef{
			Value: openapi3.NewQueryParameter("offset").
				WithDescription("Number of records to skip before returning results.").
				WithSchema(&openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}),
		},
		&openapi3.ParameterRef{
			Value: openapi3.NewQueryParameter("order_by").
				WithDescription("Column to sort by (default id).").
				WithSchema(openapi3.NewStringSchema()),
		},
		&openapi3.ParameterRef{
			Value: openapi3.NewQueryParameter("order").
				WithDescription("Sort direction: asc or desc (default desc).").
				WithSchema(openapi3.NewStringSchema()),
		},
	}
	if res.EntityIDColumn != "" {
		params = append(params, &openapi3.ParameterRef{
			Value: openapi3.NewQueryParameter("entity_id").
				WithDescription("Return only records belonging to this entity.").
				WithSchema(openapi3.NewStringSchema()),
		})
	}
	return params
}

func newResponses(statusCode, description string, schema *openapi3.SchemaRef) *openapi3.Responses {
	responses := openapi3.NewResponses()

	successDesc := description
	responses.Set(statusCode, &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &successDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(schema),
		},
	})

	errorRef := openapi3.NewSchemaRef("#/components/schemas/ErrorResponse", nil)

	badReqDesc := "Bad request"
	responses.Set("400", &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &badReqDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(errorRef),
		},
	})

	unauthDesc := "Unauthorized"
	responses.Set("401", &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &unauthDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(errorRef),
		},
	})

	notFoundDesc := "Not found"
	responses.Set("404", &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &notFoundDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(errorRef),
		},
	})

	return responses
}

// Handler serves the generated document as JSON. The document is built
// once; the registry cannot change at runtime.
func Handler() http.HandlerFunc {
	doc := Generate("")
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(doc)
	}
}
