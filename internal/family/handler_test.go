package family

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteServiceError(t *testing.T) {
	h := NewHandler(&Service{}, nil)

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "should map a missing member to 404", err: ErrNotFound, wantStatus: http.StatusNotFound},
		{name: "should map a wrapped missing member to 404", err: fmt.Errorf("get member: %w", ErrNotFound), wantStatus: http.StatusNotFound},
		{name: "should map a denied removal to 403", err: ErrForbidden, wantStatus: http.StatusForbidden},
		{name: "should map anything else to 500", err: fmt.Errorf("connection reset"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.writeServiceError(rec, tt.err)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}
