package model

import "time"

// OneTimeCode is a short-lived step-up credential consumed on first
// successful verification. Consumption deletes the row, so "used" and
// "deleted" are equivalent terminal states; the used column exists for
// rows written by issuers that mark instead of delete.
type OneTimeCode struct {
	ID        int64     `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Code      string    `json:"-" db:"code"`
	Used      bool      `json:"used" db:"used"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
