package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/stilehq/stile/internal/model"
)

// ReplaceDevice registers a trusted device with an upsert-by-delete: any
// existing row for the same token is removed before the fresh row is
// inserted, so a token is never associated with more than one user or name.
// Both statements run in one transaction.
func (s *Store) ReplaceDevice(ctx context.Context, d *model.TrustedDevice) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	del := s.rebind("DELETE FROM trusted_devices WHERE device_token = ?")
	if _, err := tx.ExecContext(ctx, del, d.DeviceToken); err != nil {
		return fmt.Errorf("delete existing device: %w", err)
	}

	ins := s.rebind(`INSERT INTO trusted_devices
		(user_id, device_token, device_name, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)`)
	if _, err := tx.ExecContext(ctx, ins,
		d.UserID, d.DeviceToken, d.DeviceName, d.CreatedAt, d.ExpiresAt); err != nil {
		return fmt.Errorf("insert device: %w", err)
	}

	return tx.Commit()
}

// GetDevice looks up a device by owner and token.
func (s *Store) GetDevice(ctx context.Context, userID, token string) (*model.TrustedDevice, error) {
	var d model.TrustedDevice
	q := s.rebind("SELECT * FROM trusted_devices WHERE user_id = ? AND device_token = ?")
	if err := s.db.GetContext(ctx, &d, q, userID, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get device: %w", err)
	}
	return &d, nil
}

// TouchDevice refreshes the last_used_at timestamp for a device.
func (s *Store) TouchDevice(ctx context.Context, id int64) error {
	q := s.rebind("UPDATE trusted_devices SET last_used_at = ? WHERE id = ?")
	if _, err := s.db.ExecContext(ctx, q, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("touch device: %w", err)
	}
	return nil
}

// DeleteDevice removes a device row by ID.
func (s *Store) DeleteDevice(ctx context.Context, id int64) error {
	q := s.rebind("DELETE FROM trusted_devices WHERE id = ?")
	if _, err := s.db.ExecContext(ctx, q, id); err != nil {
		return fmt.Errorf("delete device: %w", err)
	}
	return nil
}

// ListDevices returns a user's unexpired devices, newest first. Lazy
// deletion should already have removed lapsed rows, but the cutoff is
// applied at read time as well.
func (s *Store) ListDevices(ctx context.Context, userID string, now time.Time) ([]model.TrustedDevice, error) {
	var devices []model.TrustedDevice
	q := s.rebind(`SELECT * FROM trusted_devices
		WHERE user_id = ? AND expires_at > ?
		ORDER BY created_at DESC`)
	if err := s.db.SelectContext(ctx, &devices, q, userID, now); err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	return devices, nil
}

// DeleteExpiredDevices removes all devices whose expiry has passed and
// returns the number of rows removed. Used by the sweep command; the
// request path relies on lazy expiry instead.
func (s *Store) DeleteExpiredDevices(ctx context.Context, now time.Time) (int64, error) {
	q := s.rebind("DELETE FROM trusted_devices WHERE expires_at <= ?")
	result, err := s.db.ExecContext(ctx, q, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired devices: %w", err)
	}
	return result.RowsAffected()
}
