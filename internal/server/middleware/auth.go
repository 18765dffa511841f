package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/stilehq/stile/internal/model"
	"github.com/stilehq/stile/internal/service"
)

type contextKeyAuth string

const (
	// APIKeyContextKey is the context key for the validated API key record.
	APIKeyContextKey contextKeyAuth = "api_key"
	// UserIDContextKey is the context key for the verified identity user ID.
	UserIDContextKey contextKeyAuth = "user_id"
)

// APIKeyHeader is the fixed request header carrying the gateway secret.
const APIKeyHeader = "X-API-Key"

// RequireAPIKey returns an HTTP middleware that admits requests bearing a
// valid API key in the X-API-Key header. A missing header and a rejected
// key are distinct internally but both surface as a generic 401, so
// callers cannot probe whether a key exists, is revoked, or has expired.
// The full key record is attached to the request context on success.
func RequireAPIKey(authSvc *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawKey := r.Header.Get(APIKeyHeader)
			if rawKey == "" {
				writeAuthError(w, http.StatusUnauthorized,
					"Authentication required. Provide the "+APIKeyHeader+" header.")
				return
			}

			key, err := authSvc.ValidateAPIKey(r.Context(), rawKey)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "Invalid API key")
				return
			}

			ctx := context.WithValue(r.Context(), APIKeyContextKey, key)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireIdentity returns an HTTP middleware that admits requests bearing a
// valid identity bearer token and attaches the verified user ID to the
// request context.
func RequireIdentity(authSvc *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeAuthError(w, http.StatusUnauthorized,
					"Authentication required. Provide a Bearer identity token.")
				return
			}

			userID, err := authSvc.ValidateIdentity(r.Context(), strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "Invalid identity token")
				return
			}

			ctx := context.WithValue(r.Context(), UserIDContextKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAPIKey extracts the validated API key record from the context. Returns
// nil for unauthenticated requests.
func GetAPIKey(ctx context.Context) *model.APIKey {
	if k, ok := ctx.Value(APIKeyContextKey).(*model.APIKey); ok {
		return k
	}
	return nil
}

// GetUserID extracts the verified user ID from the context. Returns an
// empty string for unauthenticated requests.
func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(UserIDContextKey).(string); ok {
		return id
	}
	return ""
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(model.ErrorResponse{
		Error: model.ErrorDetail{
			Code:    status,
			Message: message,
		},
	})
}
