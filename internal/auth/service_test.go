package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthshare/service/internal/config"
)

func TestSignToken(t *testing.T) {
	cfg := &config.Config{JWTSecret: "test-secret"}
	svc := NewService(nil, nil, cfg)

	parse := func(t *testing.T, raw string) jwt.MapClaims {
		t.Helper()
		token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
			require.IsType(t, &jwt.SigningMethodHMAC{}, token.Method)
			return []byte(cfg.JWTSecret), nil
		})
		require.NoError(t, err)
		require.True(t, token.Valid)
		claims, ok := token.Claims.(jwt.MapClaims)
		require.True(t, ok)
		return claims
	}

	t.Run("should embed identity claims", func(t *testing.T) {
		raw, err := svc.signToken("user-1", "space-1", "member", false)
		require.NoError(t, err)

		claims := parse(t, raw)
		assert.Equal(t, "user-1", claims["userId"])
		assert.Equal(t, "space-1", claims["familySpaceId"])
		assert.Equal(t, "member", claims["role"])
		assert.Equal(t, "hearthshare", claims["iss"])
	})

	t.Run("should expire in about seven days by default", func(t *testing.T) {
		raw, err := svc.signToken("user-1", "space-1", "owner", false)
		require.NoError(t, err)

		claims := parse(t, raw)
		exp := time.Unix(int64(claims["exp"].(float64)), 0)
		assert.WithinDuration(t, time.Now().Add(tokenTTL), exp, time.Minute)
	})

	t.Run("should expire in about thirty days with rememberMe", func(t *testing.T) {
		raw, err := svc.signToken("user-1", "space-1", "owner", true)
		require.NoError(t, err)

		claims := parse(t, raw)
		exp := time.Unix(int64(claims["exp"].(float64)), 0)
		assert.WithinDuration(t, time.Now().Add(tokenTTLExtended), exp, time.Minute)
	})

	t.Run("should reject verification with the wrong secret", func(t *testing.T) {
		raw, err := svc.signToken("user-1", "space-1", "member", false)
		require.NoError(t, err)

		_, err = jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
			return []byte("other-secret"), nil
		})
		assert.Error(t, err)
	})
}
