package store

import (
	"context"
	"fmt"
	"time"

	"github.com/stilehq/stile/internal/model"
)

// CreateCode inserts a one-time code row. Codes are normally written by the
// external issuance collaborator; this exists for the CLI and tests.
func (s *Store) CreateCode(ctx context.Context, c *model.OneTimeCode) error {
	c.CreatedAt = time.Now().UTC()

	id, err := s.insertRow(ctx, `INSERT INTO one_time_codes
		(user_id, code, used, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		c.UserID, c.Code, c.Used, c.ExpiresAt, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert code: %w", err)
	}
	c.ID = id
	return nil
}

// ConsumeCode atomically deletes the row matching (userID, code) if it is
// unused and unexpired, and reports whether a row was consumed. The single
// conditional DELETE is what guarantees at-most-one accepted verification
// per code under concurrent attempts. Expired rows are left in place.
func (s *Store) ConsumeCode(ctx context.Context, userID, code string, now time.Time) (bool, error) {
	q := s.rebind(`DELETE FROM one_time_codes
		WHERE user_id = ? AND code = ? AND used = ? AND expires_at > ?`)
	result, err := s.db.ExecContext(ctx, q, userID, code, false, now)
	if err != nil {
		return false, fmt.Errorf("consume code: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("consume code rows affected: %w", err)
	}
	return n > 0, nil
}

// CountCodes returns the number of code rows for a user. Test and sweep
// bookkeeping only.
func (s *Store) CountCodes(ctx context.Context, userID string) (int, error) {
	var count int
	q := s.rebind("SELECT COUNT(*) FROM one_time_codes WHERE user_id = ?")
	if err := s.db.GetContext(ctx, &count, q, userID); err != nil {
		return 0, fmt.Errorf("count codes: %w", err)
	}
	return count, nil
}

// DeleteExpiredCodes removes codes whose expiry has passed and returns the
// number of rows removed. The verify path never deletes expired rows; this
// sweep is how they are eventually pruned.
func (s *Store) DeleteExpiredCodes(ctx context.Context, now time.Time) (int64, error) {
	q := s.rebind("DELETE FROM one_time_codes WHERE expires_at <= ?")
	result, err := s.db.ExecContext(ctx, q, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired codes: %w", err)
	}
	return result.RowsAffected()
}
