package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/stilehq/stile/internal/resource"
)

func readOnlyAnnotation() mcp.ToolAnnotation {
	return mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}
}

func boolPtr(b bool) *bool { return &b }

// registerTools registers the three gateway tools on the given server.
func (s *MCPServer) registerTools(srv *server.MCPServer) {
	srv.AddTool(
		mcp.NewTool("stile_list_resources",
			mcp.WithDescription(
				"List the resources the gateway exposes. Returns each resource's name "+
					"and whether it supports the entity_id filter. Use this first to "+
					"discover what can be queried.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
		),
		s.handleListResources,
	)

	srv.AddTool(
		mcp.NewTool("stile_query",
			mcp.WithDescription(
				"Query records from a gateway resource with optional entity filtering, "+
					"ordering, and pagination. Returns a JSON page plus the exact total "+
					"under the same filter.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("resource",
				mcp.Required(),
				mcp.Description("Name of the resource to query (see stile_list_resources)"),
			),
			mcp.WithString("entity_id",
				mcp.Description("Return only records belonging to this entity"),
			),
			mcp.WithString("order_by",
				mcp.Description("Column to sort by (default id)"),
			),
			mcp.WithString("order",
				mcp.Description("Sort direction: asc or desc (default desc)"),
			),
			mcp.WithNumber("limit",
				mcp.Description(fmt.Sprintf("Maximum records to return (default %d, max %d)", resource.DefaultLimit, resource.MaxLimit)),
			),
			mcp.WithNumber("offset",
				mcp.Description("Number of records to skip for pagination"),
			),
		),
		s.handleQuery,
	)

	srv.AddTool(
		mcp.NewTool("stile_get",
			mcp.WithDescription(
				"Fetch a single record from a gateway resource by its primary identity.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("resource",
				mcp.Required(),
				mcp.Description("Name of the resource"),
			),
			mcp.WithString("id",
				mcp.Required(),
				mcp.Description("Primary identity of the record"),
			),
		),
		s.handleGet,
	)
}

func (s *MCPServer) handleListResources(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out := make([]map[string]interface{}, 0, len(resource.Registry))
	for _, r := range resource.Registry {
		out = append(out, map[string]interface{}{
			"name":               r.Name,
			"supports_entity_id": r.EntityIDColumn != "",
		})
	}
	return successJSON(map[string]interface{}{"resources": out})
}

func (s *MCPServer) handleQuery(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("resource")
	if err != nil {
		return toolError("missing required parameter %q", "resource")
	}
	res, ok := resource.Lookup(name)
	if !ok {
		return toolError("unknown resource %q; use stile_list_resources to see what is available", name)
	}

	params := resource.ListParams{
		EntityID: request.GetString("entity_id", ""),
		OrderBy:  request.GetString("order_by", ""),
		Desc:     !strings.EqualFold(request.GetString("order", ""), "asc"),
		Limit:    request.GetInt("limit", resource.DefaultLimit),
		Offset:   request.GetInt("offset", 0),
	}.Normalize()

	driver := s.store.Driver()
	db := s.store.DB()

	countSQL, countArgs, err := resource.BuildCount(driver, res, params)
	if err != nil {
		return toolError("invalid query: %v", err)
	}
	selectSQL, selectArgs, err := resource.BuildList(driver, res, params)
	if err != nil {
		return toolError("invalid query: %v", err)
	}

	var total int64
	if err := db.QueryRowxContext(ctx, db.Rebind(countSQL), countArgs...).Scan(&total); err != nil {
		return toolError("count failed: %v", err)
	}

	rows, err := db.QueryxContext(ctx, db.Rebind(selectSQL), selectArgs...)
	if err != nil {
		return toolError("query failed: %v", err)
	}
	defer rows.Close()

	records := make([]map[string]interface{}, 0)
	for rows.Next() {
		row := make(map[string]interface{})
		if err := rows.MapScan(row); err != nil {
			return toolError("scan failed: %v", err)
		}
		cleanMapValues(row)
		records = append(records, row)
	}
	if err := rows.Err(); err != nil {
		return toolError("row iteration failed: %v", err)
	}

	return successJSON(map[string]interface{}{
		"data": records,
		"pagination": map[string]interface{}{
			"total":    total,
			"limit":    params.Limit,
			"offset":   params.Offset,
			"has_more": total > int64(params.Offset)+int64(params.Limit),
		},
	})
}

func (s *MCPServer) handleGet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("resource")
	if err != nil {
		return toolError("missing required parameter %q", "resource")
	}
	id, err := request.RequireString("id")
	if err != nil {
		return toolError("missing required parameter %q", "id")
	}

	res, ok := resource.Lookup(name)
	if !ok {
		return toolError("unknown resource %q; use stile_list_resources to see what is available", name)
	}

	db := s.store.DB()
	q := db.Rebind(resource.BuildGet(s.store.Driver(), res))

	row := make(map[string]interface{})
	if err := db.QueryRowxContext(ctx, q, id).MapScan(row); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return toolError("%s %s not found", name, id)
		}
		return toolError("query failed: %v", err)
	}
	cleanMapValues(row)

	return successJSON(map[string]interface{}{"data": row})
}

// successJSON marshals data to JSON and returns it as a tool result.
func successJSON(data interface{}) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}

// toolError returns a tool-level error result. Errors returned this way
// are visible to the client so it can self-correct; they do not terminate
// the MCP session.
func toolError(format string, args ...interface{}) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(fmt.Sprintf(format, args...)), nil
}

// cleanMapValues converts []byte scan results into strings so JSON output
// is readable instead of base64-encoded.
func cleanMapValues(m map[string]interface{}) {
	for k, v := range m {
		if b, ok := v.([]byte); ok {
			m[k] = string(b)
		}
	}
}
