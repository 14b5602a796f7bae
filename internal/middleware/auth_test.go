package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signTestToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func TestRequireAuth(t *testing.T) {
	valid := signTestToken(t, jwt.MapClaims{
		"userId":        "u-1",
		"familySpaceId": "fs-1",
		"role":          "member",
		"exp":           time.Now().Add(time.Hour).Unix(),
	})
	expired := signTestToken(t, jwt.MapClaims{
		"userId":        "u-1",
		"familySpaceId": "fs-1",
		"role":          "member",
		"exp":           time.Now().Add(-time.Hour).Unix(),
	})

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{name: "should pass a valid bearer token", header: "Bearer " + valid, wantStatus: http.StatusOK},
		{name: "should reject a missing header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "should reject a malformed header", header: "Token abc", wantStatus: http.StatusUnauthorized},
		{name: "should reject an expired token", header: "Bearer " + expired, wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var identity Identity
			handler := RequireAuth(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				id, ok := IdentityFrom(r.Context())
				require.True(t, ok, "expected identity in context")
				identity = id
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, Identity{UserID: "u-1", FamilySpaceID: "fs-1", Role: "member"}, identity)
			}
		})
	}
}
