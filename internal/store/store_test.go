package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stilehq/stile/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("sqlite", "") // in-memory
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestHashAPIKeyDeterministic(t *testing.T) {
	h1 := HashAPIKey("abc123")
	h2 := HashAPIKey("abc123")
	if h1 != h2 {
		t.Errorf("same input hashed differently: %q vs %q", h1, h2)
	}
	if len(h1) != 64 {
		t.Errorf("got digest length %d, want 64 hex chars", len(h1))
	}
	if h1 == HashAPIKey("abc124") {
		t.Error("different inputs produced the same digest")
	}
}

func TestAPIKeyLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	key := &model.APIKey{
		KeyHash:   HashAPIKey("stile_deadbeef"),
		KeyPrefix: "stile_deadbeef"[:14],
		Label:     "test key",
		IsActive:  true,
	}
	if err := s.CreateAPIKey(ctx, key); err != nil {
		t.Fatalf("CreateAPIKey: %v", err)
	}
	if key.ID == 0 {
		t.Fatal("expected non-zero ID after create")
	}

	got, err := s.GetAPIKeyByHash(ctx, key.KeyHash)
	if err != nil {
		t.Fatalf("GetAPIKeyByHash: %v", err)
	}
	if got.Label != "test key" {
		t.Errorf("got label %q, want %q", got.Label, "test key")
	}
	if got.LastUsedAt != nil {
		t.Errorf("fresh key should have nil last_used_at, got %v", got.LastUsedAt)
	}

	if _, err := s.GetAPIKeyByHash(ctx, HashAPIKey("no-such-key")); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown hash, got %v", err)
	}

	if err := s.TouchAPIKey(ctx, key.ID); err != nil {
		t.Fatalf("TouchAPIKey: %v", err)
	}
	got, err = s.GetAPIKeyByHash(ctx, key.KeyHash)
	if err != nil {
		t.Fatalf("GetAPIKeyByHash after touch: %v", err)
	}
	if got.LastUsedAt == nil {
		t.Error("expected last_used_at set after touch")
	}

	list, err := s.ListAPIKeys(ctx)
	if err != nil {
		t.Fatalf("ListAPIKeys: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("got %d keys, want 1", len(list))
	}

	if err := s.RevokeAPIKeyByPrefix(ctx, key.KeyPrefix); err != nil {
		t.Fatalf("RevokeAPIKeyByPrefix: %v", err)
	}
	got, _ = s.GetAPIKeyByHash(ctx, key.KeyHash)
	if got.IsActive {
		t.Error("key still active after revoke")
	}

	// A second revoke finds no active row.
	if err := s.RevokeAPIKeyByPrefix(ctx, key.KeyPrefix); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on double revoke, got %v", err)
	}
}

func TestTouchAPIKeyUnknownID(t *testing.T) {
	s := newTestStore(t)
	if err := s.TouchAPIKey(context.Background(), 9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestReplaceDeviceRebindsToken(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	first := &model.TrustedDevice{
		UserID:      "user-1",
		DeviceToken: "tok-1",
		DeviceName:  "laptop",
		CreatedAt:   now,
		ExpiresAt:   now.Add(model.DeviceTTL),
	}
	if err := s.ReplaceDevice(ctx, first); err != nil {
		t.Fatalf("ReplaceDevice: %v", err)
	}

	// Same token registered again, different user and name. The old row
	// must be gone and the token bound to the new registration only.
	second := &model.TrustedDevice{
		UserID:      "user-2",
		DeviceToken: "tok-1",
		DeviceName:  "phone",
		CreatedAt:   now,
		ExpiresAt:   now.Add(model.DeviceTTL),
	}
	if err := s.ReplaceDevice(ctx, second); err != nil {
		t.Fatalf("ReplaceDevice (re-register): %v", err)
	}

	if _, err := s.GetDevice(ctx, "user-1", "tok-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected old binding removed, got %v", err)
	}
	d, err := s.GetDevice(ctx, "user-2", "tok-1")
	if err != nil {
		t.Fatalf("GetDevice: %v", err)
	}
	if d.DeviceName != "phone" {
		t.Errorf("got device name %q, want %q", d.DeviceName, "phone")
	}
}

func TestListDevicesExcludesExpired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	live := &model.TrustedDevice{
		UserID:      "user-1",
		DeviceToken: "tok-live",
		CreatedAt:   now,
		ExpiresAt:   now.Add(time.Hour),
	}
	lapsed := &model.TrustedDevice{
		UserID:      "user-1",
		DeviceToken: "tok-lapsed",
		CreatedAt:   now.Add(-48 * time.Hour),
		ExpiresAt:   now.Add(-time.Hour),
	}
	for _, d := range []*model.TrustedDevice{live, lapsed} {
		if err := s.ReplaceDevice(ctx, d); err != nil {
			t.Fatalf("ReplaceDevice: %v", err)
		}
	}

	devices, err := s.ListDevices(ctx, "user-1", now)
	if err != nil {
		t.Fatalf("ListDevices: %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("got %d devices, want 1", len(devices))
	}
	if devices[0].DeviceToken != "tok-live" {
		t.Errorf("got token %q, want tok-live", devices[0].DeviceToken)
	}

	removed, err := s.DeleteExpiredDevices(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpiredDevices: %v", err)
	}
	if removed != 1 {
		t.Errorf("swept %d devices, want 1", removed)
	}
}

func TestConsumeCodeSingleUse(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	c := &model.OneTimeCode{
		UserID:    "user-1",
		Code:      "482913",
		ExpiresAt: now.Add(10 * time.Minute),
	}
	if err := s.CreateCode(ctx, c); err != nil {
		t.Fatalf("CreateCode: %v", err)
	}

	ok, err := s.ConsumeCode(ctx, "user-1", "482913", now)
	if err != nil {
		t.Fatalf("ConsumeCode: %v", err)
	}
	if !ok {
		t.Fatal("first consume should succeed")
	}

	// Replay of the same code must fail: the row is gone.
	ok, err = s.ConsumeCode(ctx, "user-1", "482913", now)
	if err != nil {
		t.Fatalf("ConsumeCode (replay): %v", err)
	}
	if ok {
		t.Error("replayed code was accepted")
	}
}

func TestConsumeCodeConcurrent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	c := &model.OneTimeCode{
		UserID:    "user-1",
		Code:      "777777",
		ExpiresAt: now.Add(10 * time.Minute),
	}
	if err := s.CreateCode(ctx, c); err != nil {
		t.Fatalf("CreateCode: %v", err)
	}

	// Race the same code from many goroutines. Exactly one attempt may be
	// accepted, no matter how the deletes interleave.
	const attempts = 16
	var wg sync.WaitGroup
	var accepted int64
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.ConsumeCode(ctx, "user-1", "777777", now)
			if err != nil {
				t.Errorf("ConsumeCode: %v", err)
				return
			}
			if ok {
				atomic.AddInt64(&accepted, 1)
			}
		}()
	}
	wg.Wait()

	if accepted != 1 {
		t.Errorf("%d of %d attempts accepted, want exactly 1", accepted, attempts)
	}
}

func TestConsumeCodeRejectsWrongUserAndExpired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	expired := &model.OneTimeCode{
		UserID:    "user-1",
		Code:      "111111",
		ExpiresAt: now.Add(-time.Minute),
	}
	if err := s.CreateCode(ctx, expired); err != nil {
		t.Fatalf("CreateCode: %v", err)
	}
	fresh := &model.OneTimeCode{
		UserID:    "user-1",
		Code:      "222222",
		ExpiresAt: now.Add(10 * time.Minute),
	}
	if err := s.CreateCode(ctx, fresh); err != nil {
		t.Fatalf("CreateCode: %v", err)
	}

	if ok, _ := s.ConsumeCode(ctx, "user-1", "111111", now); ok {
		t.Error("expired code was accepted")
	}
	if ok, _ := s.ConsumeCode(ctx, "user-2", "222222", now); ok {
		t.Error("code accepted for the wrong user")
	}

	// A failed expired verification leaves the row in place; only the
	// sweep removes it.
	n, err := s.CountCodes(ctx, "user-1")
	if err != nil {
		t.Fatalf("CountCodes: %v", err)
	}
	if n != 2 {
		t.Errorf("got %d rows, want 2 (expired row retained)", n)
	}

	removed, err := s.DeleteExpiredCodes(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpiredCodes: %v", err)
	}
	if removed != 1 {
		t.Errorf("swept %d codes, want 1", removed)
	}
}

func TestConsumeCodeIgnoresUsedRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	c := &model.OneTimeCode{
		UserID:    "user-1",
		Code:      "333333",
		Used:      true,
		ExpiresAt: now.Add(10 * time.Minute),
	}
	if err := s.CreateCode(ctx, c); err != nil {
		t.Fatalf("CreateCode: %v", err)
	}

	if ok, _ := s.ConsumeCode(ctx, "user-1", "333333", now); ok {
		t.Error("row marked used was accepted")
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open("oracle", "dsn"); err == nil {
		t.Error("expected error for unsupported driver")
	}
}
