package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hearthshare/service/internal/response"
)

// contextKey is an unexported type for context keys in this package.
type contextKey string

// UserIDKey is the context key for the authenticated user's ID.
const UserIDKey contextKey = "userID"

// FamilySpaceIDKey is the context key for the user's family space.
const FamilySpaceIDKey contextKey = "familySpaceID"

// RoleKey is the context key for the user's membership role.
const RoleKey contextKey = "role"

// Identity is the authenticated caller extracted from the JWT.
type Identity struct {
	UserID        string
	FamilySpaceID string
	Role          string
}

// IdentityFrom extracts the authenticated identity from a request context.
// The second return is false when RequireAuth did not run.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	userID, _ := ctx.Value(UserIDKey).(string)
	familySpaceID, _ := ctx.Value(FamilySpaceIDKey).(string)
	role, _ := ctx.Value(RoleKey).(string)
	if userID == "" || familySpaceID == "" {
		return Identity{}, false
	}
	return Identity{UserID: userID, FamilySpaceID: familySpaceID, Role: role}, true
}

// RequireAuth returns middleware that validates a Bearer JWT and injects
// user claims into the request context.
func RequireAuth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				response.Unauthorized(w, "authorization header required")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				response.Unauthorized(w, "invalid authorization header format")
				return
			}

			token, err := jwt.Parse(parts[1], func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(jwtSecret), nil
			})
			if err != nil || !token.Valid {
				response.Unauthorized(w, "invalid or expired token")
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				response.Unauthorized(w, "invalid token claims")
				return
			}

			userID, _ := claims["userId"].(string)
			familySpaceID, _ := claims["familySpaceId"].(string)
			role, _ := claims["role"].(string)
			if userID == "" || familySpaceID == "" {
				response.Unauthorized(w, "invalid token claims")
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			ctx = context.WithValue(ctx, FamilySpaceIDKey, familySpaceID)
			ctx = context.WithValue(ctx, RoleKey, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
