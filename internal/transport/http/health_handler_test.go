package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"priceindex/internal/services"
	"priceindex/internal/shared/testutil"
)

func TestHealthHandler(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	index := services.NewIndexService(logger)
	handler := NewHealthHandler(services.NewHealthService("1.2.3", "2024-01-01", index, logger), logger)

	tests := []struct {
		name       string
		handle     http.HandlerFunc
		wantStatus int
		wantKey    string
		wantValue  interface{}
	}{
		{"health", handler.HealthCheck, http.StatusOK, "status", "ok"},
		{"readiness", handler.ReadinessCheck, http.StatusOK, "status", "ready"},
		{"liveness", handler.LivenessCheck, http.StatusOK, "status", "alive"},
		{"version", handler.Version, http.StatusOK, "version", "1.2.3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.handle(w, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, tt.wantValue, body[tt.wantKey])
		})
	}
}

func TestHealthHandler_NotReady(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	handler := NewHealthHandler(services.NewHealthService("dev", "", nil, logger), logger)

	w := httptest.NewRecorder()
	handler.ReadinessCheck(w, httptest.NewRequest(http.MethodGet, "/api/health/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "not_ready")
}

func TestMetricsHandler(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		w := httptest.NewRecorder()
		NewMetricsHandler(nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("delegates", func(t *testing.T) {
		inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("# HELP"))
		})
		w := httptest.NewRecorder()
		NewMetricsHandler(inner).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "# HELP", w.Body.String())
	})
}
