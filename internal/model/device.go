package model

import "time"

// DeviceTTL is how long a trusted-device registration stays valid.
const DeviceTTL = 30 * 24 * time.Hour

// TrustedDevice is a long-lived step-up credential bound to a user. At most
// one live row exists per device token; registration replaces any previous
// row for the same token. Expired rows are removed lazily the first time a
// check observes them.
type TrustedDevice struct {
	ID          int64      `json:"id" db:"id"`
	UserID      string     `json:"-" db:"user_id"`
	DeviceToken string     `json:"-" db:"device_token"` // opaque, never echoed back
	DeviceName  string     `json:"device_name" db:"device_name"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	ExpiresAt   time.Time  `json:"expires_at" db:"expires_at"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
}

// Expired reports whether the registration has lapsed.
func (d *TrustedDevice) Expired(now time.Time) bool {
	return !d.ExpiresAt.After(now)
}
