// Package handler implements the gateway's HTTP endpoints: the read-only
// resource surface and the step-up verification surface.
package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/stilehq/stile/internal/model"
	"github.com/stilehq/stile/internal/resource"
	"github.com/stilehq/stile/internal/store"
)

// APIVersion is reported in the discovery payload.
const APIVersion = "v1"

// ResourceHandler serves the read-only allow-listed resource endpoints.
type ResourceHandler struct {
	store *store.Store
}

// NewResourceHandler creates a ResourceHandler.
func NewResourceHandler(st *store.Store) *ResourceHandler {
	return &ResourceHandler{store: st}
}

// Discovery returns the routable resource listing. It doubles as the
// response for any path that names no allow-listed resource: callers get an
// introspectable map of the API instead of a dead-end error.
// GET /api/v1
func (h *ResourceHandler) Discovery(w http.ResponseWriter, r *http.Request) {
	resources := make([]model.DiscoveryResource, 0, len(resource.Registry))
	for _, res := range resource.Registry {
		resources = append(resources, model.DiscoveryResource{
			Name:     res.Name,
			Endpoint: "/api/" + APIVersion + "/" + res.Name,
		})
	}
	writeJSON(w, http.StatusOK, model.DiscoveryResponse{
		API:       "stile",
		Version:   APIVersion,
		Resources: resources,
	})
}

// List returns a filtered, ordered, paginated page of a resource plus an
// exact total under the same filter.
// GET /api/v1/{resource}
func (h *ResourceHandler) List(w http.ResponseWriter, r *http.Request) {
	res, ok := resource.Lookup(chi.URLParam(r, "resource"))
	if !ok {
		h.Discovery(w, r)
		return
	}

	params := resource.ListParams{
		EntityID: queryString(r, "entity_id"),
		OrderBy:  queryString(r, "order_by"),
		Desc:     !strings.EqualFold(queryString(r, "order"), "asc"),
		Limit:    queryInt(r, "limit", resource.DefaultLimit),
		Offset:   queryInt(r, "offset", 0),
	}.Normalize()

	countSQL, countArgs, err := resource.BuildCount(h.store.Driver(), res, params)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid query: "+err.Error())
		return
	}
	selectSQL, selectArgs, err := resource.BuildList(h.store.Driver(), res, params)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid query: "+err.Error())
		return
	}

	db := h.store.DB()

	var total int64
	if err := db.QueryRowxContext(r.Context(), db.Rebind(countSQL), countArgs...).Scan(&total); err != nil {
		code, msg := classifyStoreError(err, "Count failed")
		writeError(w, code, msg)
		return
	}

	rows, err := db.QueryxContext(r.Context(), db.Rebind(selectSQL), selectArgs...)
	if err != nil {
		code, msg := classifyStoreError(err, "Query failed")
		writeError(w, code, msg)
		return
	}
	defer rows.Close()

	records := make([]map[string]interface{}, 0)
	for rows.Next() {
		row := make(map[string]interface{})
		if err := rows.MapScan(row); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to scan row: "+err.Error())
			return
		}
		cleanMapValues(row)
		records = append(records, row)
	}
	if err := rows.Err(); err != nil {
		writeError(w, http.StatusInternalServerError, "Row iteration error: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, model.ListResponse{
		Data: records,
		Pagination: model.Pagination{
			Total:   total,
			Limit:   params.Limit,
			Offset:  params.Offset,
			HasMore: total > int64(params.Offset)+int64(params.Limit),
		},
	})
}

// Get fetches a single record by primary identity. Absence is a first-class
// 404, never conflated with an auth or validation failure.
// GET /api/v1/{resource}/{id}
func (h *ResourceHandler) Get(w http.ResponseWriter, r *http.Request) {
	res, ok := resource.Lookup(chi.URLParam(r, "resource"))
	if !ok {
		h.Discovery(w, r)
		return
	}
	id := chi.URLParam(r, "id")

	db := h.store.DB()
	q := db.Rebind(resource.BuildGet(h.store.Driver(), res))

	row := make(map[string]interface{})
	if err := db.QueryRowxContext(r.Context(), q, id).MapScan(row); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, res.Name+" "+id+" not found")
			return
		}
		code, msg := classifyStoreError(err, "Query failed")
		writeError(w, code, msg)
		return
	}
	cleanMapValues(row)

	writeJSON(w, http.StatusOK, model.SingleResponse{Data: row})
}

// MethodNotAllowed rejects mutating verbs before routing is attempted. The
// gateway is permanently read-only.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "Method "+r.Method+" not allowed: this API is read-only")
}
