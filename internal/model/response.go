package model

// ListResponse is the standard envelope for gateway list endpoints.
type ListResponse struct {
	Data       []map[string]interface{} `json:"data"`
	Pagination Pagination               `json:"pagination"`
}

// Pagination reports exact-count paging state so callers never need a second
// query to know whether more pages exist.
type Pagination struct {
	Total   int64 `json:"total"`
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
	HasMore bool  `json:"has_more"`
}

// SingleResponse is the envelope for single-record fetches.
type SingleResponse struct {
	Data map[string]interface{} `json:"data"`
}

// DiscoveryResponse is returned for the API root and for any path that does
// not match a routable resource. It lets callers introspect what the gateway
// exposes instead of guessing at an error.
type DiscoveryResponse struct {
	API       string              `json:"api"`
	Version   string              `json:"version"`
	Resources []DiscoveryResource `json:"resources"`
}

// DiscoveryResource is one entry in the discovery listing.
type DiscoveryResource struct {
	Name     string `json:"name"`
	Endpoint string `json:"endpoint"`
}

// ErrorResponse is the standard envelope for error responses.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the structured error information returned by the API.
type ErrorDetail struct {
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}
