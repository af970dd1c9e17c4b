package observability_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/mipforge/pkg/observability"
)

func serve(t *testing.T, handler http.Handler, path string) (int, map[string]string) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]string

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	return rec.Code, body
}

func TestHealthHandler_ReturnsOK(t *testing.T) {
	t.Parallel()

	code, body := serve(t, observability.HealthHandler(), "/healthz")

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestReadyHandler(t *testing.T) {
	t.Parallel()

	pass := func(_ context.Context) error { return nil }
	fail := func(_ context.Context) error { return errors.New("insufficient resources: memory") }

	tests := []struct {
		name       string
		checks     []observability.ReadyCheck
		wantCode   int
		wantStatus string
		wantReason string
	}{
		{"no checks", nil, http.StatusOK, "ok", ""},
		{"all pass", []observability.ReadyCheck{pass, pass}, http.StatusOK, "ok", ""},
		{"one fails", []observability.ReadyCheck{pass, fail}, http.StatusServiceUnavailable, "unavailable", "insufficient resources: memory"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			code, body := serve(t, observability.ReadyHandler(tt.checks...), "/readyz")

			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantStatus, body["status"])
			assert.Equal(t, tt.wantReason, body["reason"])
		})
	}
}
