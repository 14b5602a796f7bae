package uploads

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentials_AccessToken(t *testing.T) {
	tests := []struct {
		name      string
		handler   http.HandlerFunc
		wantToken string
		wantErr   bool
	}{
		{
			name: "should return the token from the metadata server",
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "Google", r.Header.Get("Metadata-Flavor"))
				assert.Equal(t, "/computeMetadata/v1/instance/service-accounts/default/token", r.URL.Path)
				_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-123"})
			},
			wantToken: "tok-123",
		},
		{
			name: "should fail when the token field is missing",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(map[string]string{"expires_in": "3599"})
			},
			wantErr: true,
		},
		{
			name: "should fail on a non-200 status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			creds := NewCredentials(&Config{MetadataEndpoint: srv.URL})
			token, err := creds.AccessToken(context.Background())

			if tt.wantErr {
				assert.Error(t, err, "expected token fetch to fail")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantToken, token)
		})
	}
}

func TestCredentials_SignerEmail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/instance/service-accounts/default/email"))
		_, _ = w.Write([]byte("sa@project.iam.gserviceaccount.com"))
	}))
	defer srv.Close()

	creds := NewCredentials(&Config{MetadataEndpoint: srv.URL})
	email, err := creds.SignerEmail(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sa@project.iam.gserviceaccount.com", email)
}

func TestCredentials_Unreachable(t *testing.T) {
	creds := NewCredentials(&Config{MetadataEndpoint: "http://127.0.0.1:1"})
	_, err := creds.AccessToken(context.Background())
	assert.Error(t, err, "expected a connection error, not a hang")
}
