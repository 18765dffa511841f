package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stilehq/stile/internal/model"
)

// postgresStore opens the database named by STILE_POSTGRES_DSN. Skipped
// unless the variable is set; the platform provisions the core tables on
// postgres, so the test creates its own.
func postgresStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv("STILE_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("set STILE_POSTGRES_DSN to run postgres integration tests")
	}

	s, err := Open("postgres", dsn)
	if err != nil {
		t.Fatalf("Open postgres: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	ddl := []string{
		`CREATE TABLE IF NOT EXISTS api_keys (
			id BIGSERIAL PRIMARY KEY,
			key_hash TEXT UNIQUE NOT NULL,
			key_prefix TEXT NOT NULL DEFAULT '',
			label TEXT NOT NULL DEFAULT '',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			expires_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_used_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS one_time_codes (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			code TEXT NOT NULL,
			used BOOLEAN NOT NULL DEFAULT FALSE,
			expires_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}
	for _, stmt := range ddl {
		if _, err := s.DB().Exec(stmt); err != nil {
			t.Fatalf("create table: %v", err)
		}
	}
	return s
}

func TestPostgresInsertReturnsID(t *testing.T) {
	s := postgresStore(t)
	ctx := context.Background()

	raw := "stile_pgintegration"
	key := &model.APIKey{
		KeyHash:   HashAPIKey(raw),
		KeyPrefix: raw[:14],
		Label:     "pg integration",
		IsActive:  true,
	}
	t.Cleanup(func() {
		s.DB().Exec("DELETE FROM api_keys WHERE key_hash = $1", key.KeyHash)
	})

	// The pgx driver has no LastInsertId; the insert path must still hand
	// back the generated id.
	if err := s.CreateAPIKey(ctx, key); err != nil {
		t.Fatalf("CreateAPIKey: %v", err)
	}
	if key.ID == 0 {
		t.Error("expected non-zero ID after create")
	}

	got, err := s.GetAPIKeyByHash(ctx, key.KeyHash)
	if err != nil {
		t.Fatalf("GetAPIKeyByHash: %v", err)
	}
	if got.ID != key.ID {
		t.Errorf("stored id %d != returned id %d", got.ID, key.ID)
	}

	c := &model.OneTimeCode{
		UserID:    "pg-user",
		Code:      "135791",
		ExpiresAt: time.Now().UTC().Add(10 * time.Minute),
	}
	t.Cleanup(func() {
		s.DB().Exec("DELETE FROM one_time_codes WHERE user_id = $1", c.UserID)
	})
	if err := s.CreateCode(ctx, c); err != nil {
		t.Fatalf("CreateCode: %v", err)
	}
	if c.ID == 0 {
		t.Error("expected non-zero code ID after create")
	}
}
