package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/stilehq/stile/internal/model"
	"github.com/stilehq/stile/internal/store"
)

// StepUpService implements the two step-up mechanisms: trusted devices
// (long-lived, bound to a user) and one-time codes (consumed on first
// successful check). Both share the Issued -> Active -> Consumed/Expired
// lifecycle; expiry is evaluated lazily at read time.
type StepUpService struct {
	store  *store.Store
	logger *slog.Logger
}

// NewStepUpService creates a StepUpService.
func NewStepUpService(st *store.Store, logger *slog.Logger) *StepUpService {
	return &StepUpService{store: st, logger: logger}
}

// RegisterDevice records deviceToken as trusted for userID and returns the
// expiry. Re-registration of the same token is idempotent in intent: the
// store replaces any prior row, so the token is never bound to more than
// one user or name at a time.
func (s *StepUpService) RegisterDevice(ctx context.Context, userID, deviceToken, deviceName string) (time.Time, error) {
	now := time.Now().UTC()
	d := &model.TrustedDevice{
		UserID:      userID,
		DeviceToken: deviceToken,
		DeviceName:  deviceName,
		CreatedAt:   now,
		ExpiresAt:   now.Add(model.DeviceTTL),
	}
	if err := s.store.ReplaceDevice(ctx, d); err != nil {
		return time.Time{}, err
	}
	return d.ExpiresAt, nil
}

// CheckDevice reports whether (userID, deviceToken) names a live trusted
// device. An unknown device is an expected outcome, not an error. A lapsed
// device is deleted on observation and reported as not trusted; a live one
// has its last_used_at refreshed.
func (s *StepUpService) CheckDevice(ctx context.Context, userID, deviceToken string) (bool, error) {
	d, err := s.store.GetDevice(ctx, userID, deviceToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	now := time.Now().UTC()
	if d.Expired(now) {
		// Lazy expiry: the first check past the deadline removes the row.
		if err := s.store.DeleteDevice(ctx, d.ID); err != nil {
			s.logger.Warn("failed to delete expired device", "device_id", d.ID, "error", err)
		}
		return false, nil
	}

	if err := s.store.TouchDevice(ctx, d.ID); err != nil {
		s.logger.Warn("failed to update device last_used_at", "device_id", d.ID, "error", err)
	}
	return true, nil
}

// ListDevices returns the user's unexpired devices, newest first.
func (s *StepUpService) ListDevices(ctx context.Context, userID string) ([]model.TrustedDevice, error) {
	return s.store.ListDevices(ctx, userID, time.Now().UTC())
}

// VerifyCode checks a one-time code for the user and consumes it on
// success. Consumption is a single atomic conditional delete, so at most
// one concurrent verification of the same code can succeed. The result
// does not distinguish wrong, already-used, or expired codes.
func (s *StepUpService) VerifyCode(ctx context.Context, userID, code string) (bool, error) {
	return s.store.ConsumeCode(ctx, userID, code, time.Now().UTC())
}
