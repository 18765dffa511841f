package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stilehq/stile/internal/model"
	"github.com/stilehq/stile/internal/service"
	"github.com/stilehq/stile/internal/store"
)

const testRawKey = "stile_servertestkey"

type testServer struct {
	srv     *Server
	store   *store.Store
	authSvc *service.AuthService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	st, err := store.Open("sqlite", "")
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	authSvc := service.NewAuthService(st, "server-test-secret", logger)
	stepupSvc := service.NewStepUpService(st, logger)

	key := &model.APIKey{
		KeyHash:   store.HashAPIKey(testRawKey),
		KeyPrefix: testRawKey[:14],
		IsActive:  true,
	}
	if err := st.CreateAPIKey(context.Background(), key); err != nil {
		t.Fatalf("CreateAPIKey: %v", err)
	}

	cfg := DefaultConfig()
	cfg.StepUpRatePerMinute = 1000 // keep rate limiting out of the way

	return &testServer{
		srv:     New(cfg, st, authSvc, stepupSvc, logger),
		store:   st,
		authSvc: authSvc,
	}
}

func (ts *testServer) do(t *testing.T, method, path, apiKey, bearer string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	ts.srv.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/healthz", "", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("healthz: got %d, want 200", rec.Code)
	}

	rec = ts.do(t, http.MethodGet, "/readyz", "", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("readyz: got %d, want 200", rec.Code)
	}
}

func TestOpenAPIUnauthenticated(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/openapi.json", "", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rec.Code)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("spec is not valid JSON: %v", err)
	}
	if _, ok := doc["openapi"]; !ok {
		t.Error("missing openapi version field")
	}
}

func TestGatewayRequiresAPIKey(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1", "", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no key: got %d, want 401", rec.Code)
	}

	rec = ts.do(t, http.MethodGet, "/api/v1", "stile_badkey", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad key: got %d, want 401", rec.Code)
	}

	rec = ts.do(t, http.MethodGet, "/api/v1", testRawKey, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid key: got %d: %s", rec.Code, rec.Body.String())
	}
	var disc model.DiscoveryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &disc); err != nil {
		t.Fatalf("decode discovery: %v", err)
	}
	if len(disc.Resources) != 30 {
		t.Errorf("got %d resources, want 30", len(disc.Resources))
	}

	// Unmatched deep paths also serve discovery rather than a bare 404.
	rec = ts.do(t, http.MethodGet, "/api/v1/users/42/extra", testRawKey, "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("deep unmatched path: got %d, want 200 discovery", rec.Code)
	}
}

func TestGatewayRejectsWrites(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/entities", testRawKey, "", map[string]string{"name": "x"})
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST: got %d, want 405", rec.Code)
	}
	rec = ts.do(t, http.MethodDelete, "/api/v1/entities/1", testRawKey, "", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("DELETE: got %d, want 405", rec.Code)
	}
}

func TestGatewayListRoundTrip(t *testing.T) {
	ts := newTestServer(t)

	if _, err := ts.store.DB().Exec(`CREATE TABLE entities (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL
	)`); err != nil {
		t.Fatalf("create entities: %v", err)
	}
	for _, name := range []string{"Acme Corp", "Globex LLC"} {
		if _, err := ts.store.DB().Exec("INSERT INTO entities (name) VALUES (?)", name); err != nil {
			t.Fatalf("insert entity: %v", err)
		}
	}

	rec := ts.do(t, http.MethodGet, "/api/v1/entities?order=asc&order_by=id", testRawKey, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d: %s", rec.Code, rec.Body.String())
	}
	var resp model.ListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Pagination.Total != 2 || len(resp.Data) != 2 {
		t.Errorf("got total=%d rows=%d, want 2/2", resp.Pagination.Total, len(resp.Data))
	}
	if resp.Data[0]["name"] != "Acme Corp" {
		t.Errorf("got first row %v", resp.Data[0]["name"])
	}

	rec = ts.do(t, http.MethodGet, "/api/v1/entities/2", testRawKey, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get by id: got %d", rec.Code)
	}
}

func TestDeviceFlow(t *testing.T) {
	ts := newTestServer(t)

	token, err := ts.authSvc.IssueIdentityToken(context.Background(), "user-9", time.Hour)
	if err != nil {
		t.Fatalf("IssueIdentityToken: %v", err)
	}

	// Unauthenticated registration is rejected.
	rec := ts.do(t, http.MethodPost, "/auth/v1/device", "", "", map[string]string{"deviceToken": "tok-9"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no bearer: got %d, want 401", rec.Code)
	}

	// Register.
	rec = ts.do(t, http.MethodPost, "/auth/v1/device", "", token,
		map[string]string{"deviceToken": "tok-9", "deviceName": "pixel"})
	if rec.Code != http.StatusOK {
		t.Fatalf("register: got %d: %s", rec.Code, rec.Body.String())
	}
	var regResp struct {
		Success   bool   `json:"success"`
		ExpiresAt string `json:"expiresAt"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &regResp); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	if !regResp.Success {
		t.Error("expected success=true")
	}
	if _, err := time.Parse(time.RFC3339, regResp.ExpiresAt); err != nil {
		t.Errorf("expiresAt not RFC3339: %q", regResp.ExpiresAt)
	}

	// Check.
	rec = ts.do(t, http.MethodPost, "/auth/v1/device/check", "", token,
		map[string]string{"deviceToken": "tok-9"})
	if rec.Code != http.StatusOK {
		t.Fatalf("check: got %d", rec.Code)
	}
	var checkResp map[string]bool
	if err := json.Unmarshal(rec.Body.Bytes(), &checkResp); err != nil {
		t.Fatalf("decode check response: %v", err)
	}
	if !checkResp["trusted"] {
		t.Error("registered device not trusted")
	}

	// Unknown token is an expected false, not an error.
	rec = ts.do(t, http.MethodPost, "/auth/v1/device/check", "", token,
		map[string]string{"deviceToken": "tok-other"})
	if rec.Code != http.StatusOK {
		t.Fatalf("check unknown: got %d", rec.Code)
	}
	json.Unmarshal(rec.Body.Bytes(), &checkResp)
	if checkResp["trusted"] {
		t.Error("unknown device reported trusted")
	}

	// List.
	rec = ts.do(t, http.MethodGet, "/auth/v1/device", "", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: got %d", rec.Code)
	}
	var listResp struct {
		Devices []model.TrustedDevice `json:"devices"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("decode list response: %v", err)
	}
	if len(listResp.Devices) != 1 {
		t.Errorf("got %d devices, want 1", len(listResp.Devices))
	}
	if len(listResp.Devices) == 1 && listResp.Devices[0].DeviceName != "pixel" {
		t.Errorf("got device name %q", listResp.Devices[0].DeviceName)
	}
}

func TestStepUpRateLimit(t *testing.T) {
	st, err := store.Open("sqlite", "")
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := DefaultConfig()
	cfg.StepUpRatePerMinute = 2
	srv := New(cfg, st,
		service.NewAuthService(st, "secret", logger),
		service.NewStepUpService(st, logger), logger)

	var limited bool
	for i := 0; i < 4; i++ {
		body := bytes.NewReader([]byte(`{"userId":"u","code":"000000"}`))
		req := httptest.NewRequest(http.MethodPost, "/auth/v1/code/verify", body)
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "203.0.113.7:4242"
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			limited = true
		}
	}
	if !limited {
		t.Error("rate limit never engaged on the step-up surface")
	}
}

func TestRequestIDOnResponses(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/healthz", "", "", nil)
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("response missing X-Request-ID")
	}
}
