package model

import "time"

// APIKey represents an opaque bearer secret used to authenticate gateway
// requests. The raw key is never stored; only a SHA-256 hash and a short
// prefix for identification are persisted. Keys are issued out-of-band via
// the CLI and never deleted by the gateway itself.
type APIKey struct {
	ID         int64      `json:"id" db:"id"`
	KeyHash    string     `json:"-" db:"key_hash"` // SHA-256 hash, never expose
	KeyPrefix  string     `json:"key_prefix" db:"key_prefix"`
	Label      string     `json:"label" db:"label"`
	IsActive   bool       `json:"is_active" db:"is_active"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
}

// Admissible reports whether the key may be used at the given instant:
// active, and either no expiry or an expiry still in the future.
func (k *APIKey) Admissible(now time.Time) bool {
	if !k.IsActive {
		return false
	}
	if k.ExpiresAt != nil && !k.ExpiresAt.After(now) {
		return false
	}
	return true
}
