package openapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stilehq/stile/internal/resource"
)

func TestGenerateCoversRegistry(t *testing.T) {
	doc := Generate("http://localhost:8080")

	if doc.OpenAPI != "3.1.0" {
		t.Errorf("got version %q, want 3.1.0", doc.OpenAPI)
	}
	if len(doc.Servers) != 1 || doc.Servers[0].URL != "http://localhost:8080" {
		t.Errorf("unexpected servers: %+v", doc.Servers)
	}

	// Discovery plus a list and a get path per resource.
	wantPaths := 1 + 2*len(resource.Registry)
	if got := doc.Paths.Len(); got != wantPaths {
		t.Errorf("got %d paths, want %d", got, wantPaths)
	}

	for _, res := range resource.Registry {
		list := doc.Paths.Find("/api/v1/" + res.Name)
		if list == nil || list.Get == nil {
			t.Errorf("missing list path for %s", res.Name)
			continue
		}
		if list.Post != nil || list.Put != nil || list.Delete != nil {
			t.Errorf("%s documents a mutating verb", res.Name)
		}

		get := doc.Paths.Find("/api/v1/" + res.Name + "/{id}")
		if get == nil || get.Get == nil {
			t.Errorf("missing get path for %s", res.Name)
		}
	}
}

func TestGenerateEntityFilterParameter(t *testing.T) {
	doc := Generate("")

	hasEntityParam := func(path string) bool {
		item := doc.Paths.Find(path)
		if item == nil || item.Get == nil {
			t.Fatalf("missing path %s", path)
		}
		for _, p := range item.Get.Parameters {
			if p.Value != nil && p.Value.Name == "entity_id" {
				return true
			}
		}
		return false
	}

	if !hasEntityParam("/api/v1/contacts") {
		t.Error("contacts list should document the entity_id filter")
	}
	if hasEntityParam("/api/v1/entities") {
		t.Error("entities list must not document an entity_id filter")
	}
}

func TestGenerateSecurityScheme(t *testing.T) {
	doc := Generate("")

	scheme, ok := doc.Components.SecuritySchemes["apiKey"]
	if !ok || scheme.Value == nil {
		t.Fatal("missing apiKey security scheme")
	}
	if scheme.Value.Type != "apiKey" || scheme.Value.In != "header" || scheme.Value.Name != "X-API-Key" {
		t.Errorf("unexpected scheme: %+v", scheme.Value)
	}
	if len(doc.Security) == 0 {
		t.Error("document carries no global security requirement")
	}
}

func TestHandlerServesJSON(t *testing.T) {
	h := Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("got content type %q", ct)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("document is not valid JSON: %v", err)
	}
	if doc["openapi"] != "3.1.0" {
		t.Errorf("got openapi %v", doc["openapi"])
	}
}
