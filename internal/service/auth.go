// Package service holds the gateway's protocol logic: secret validation
// for API keys, identity-token verification, and the two step-up flows.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/stilehq/stile/internal/model"
	"github.com/stilehq/stile/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrKeyRevoked         = errors.New("api key revoked")
	ErrKeyExpired         = errors.New("api key expired")
)

// AuthService validates the two credential kinds the gateway accepts:
// opaque API keys for the resource surface, and identity bearer tokens
// minted by the surrounding identity collaborator for the step-up surface.
type AuthService struct {
	store          *store.Store
	identitySecret []byte
	logger         *slog.Logger
}

// NewAuthService creates an AuthService. identitySecret is the HMAC secret
// shared with the identity collaborator that signs bearer tokens.
func NewAuthService(st *store.Store, identitySecret string, logger *slog.Logger) *AuthService {
	return &AuthService{
		store:          st,
		identitySecret: []byte(identitySecret),
		logger:         logger,
	}
}

// ValidateAPIKey checks the provided raw API key against stored key hashes.
// The raw secret is never compared directly; only its digest is looked up.
// The distinct rejection reasons exist for callers and logs; the HTTP
// boundary collapses them all into one generic 401.
func (s *AuthService) ValidateAPIKey(ctx context.Context, rawKey string) (*model.APIKey, error) {
	hash := store.HashAPIKey(rawKey)

	key, err := s.store.GetAPIKeyByHash(ctx, hash)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if !key.Admissible(time.Now()) {
		if !key.IsActive {
			return nil, ErrKeyRevoked
		}
		return nil, ErrKeyExpired
	}

	// Update last used timestamp (fire and forget). A failure here is
	// telemetry loss, never a request failure.
	go func(id int64) {
		if err := s.store.TouchAPIKey(context.Background(), id); err != nil {
			s.logger.Warn("failed to update api key last_used_at", "key_id", id, "error", err)
		}
	}(key.ID)

	return key, nil
}

// ValidateIdentity verifies an identity bearer token and returns the
// verified user ID from its subject claim.
func (s *AuthService) ValidateIdentity(ctx context.Context, tokenStr string) (string, error) {
	claims := &jwt.RegisteredClaims{}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.identitySecret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidCredentials
	}

	if claims.Subject == "" {
		return "", ErrInvalidCredentials
	}
	return claims.Subject, nil
}

// IssueIdentityToken creates a signed identity token for the given user.
// The identity collaborator normally mints these; the gateway issues them
// only for the CLI and tests.
func (s *AuthService) IssueIdentityToken(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		Issuer:    "stile",
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.identitySecret)
}
