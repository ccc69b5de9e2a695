// Package middleware provides the HTTP middleware of the API: identity
// extraction from JWTs, client address resolution, request logging and gzip.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/atinyakov/linkcore/internal/app/service"
)

// ContextKey is a custom type used for keys in the context.
// It helps prevent collisions in context keys.
type ContextKey string

const (
	// CompanyIDKey stores the tenant the request acts on.
	CompanyIDKey ContextKey = "companyID"
	// UserIDKey stores the acting user.
	UserIDKey ContextKey = "userID"
)

// InjectIdentity adds the company and user to the request context, making
// them accessible for downstream handlers.
func InjectIdentity(req *http.Request, companyID, userID string) *http.Request {
	ctx := context.WithValue(req.Context(), CompanyIDKey, companyID)
	ctx = context.WithValue(ctx, UserIDKey, userID)
	return req.WithContext(ctx)
}

// Identity returns the company and user injected by WithJWT. ok is false when
// the request carries no company.
func Identity(ctx context.Context) (companyID, userID string, ok bool) {
	companyID, _ = ctx.Value(CompanyIDKey).(string)
	userID, _ = ctx.Value(UserIDKey).(string)
	return companyID, userID, companyID != ""
}

// bearerToken extracts the token of an "Authorization: Bearer" header.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}

// WithJWT is an HTTP middleware that requires a valid JWT, either as a bearer
// token or in the "token" cookie. Requests without one are rejected with 401.
// The company and user from the claims are injected into the request context.
func WithJWT(auth service.AuthIface) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var (
				claims *service.Claims
				err    error
			)

			if token := bearerToken(r); token != "" {
				claims, err = auth.ParseRawJWT(token)
			} else if cookie, cErr := r.Cookie("token"); cErr == nil {
				claims, err = auth.ParseClaims(cookie)
			} else {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}

			if err != nil || claims == nil || claims.CompanyID == "" {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, InjectIdentity(r, claims.CompanyID, claims.UserID))
		})
	}
}
