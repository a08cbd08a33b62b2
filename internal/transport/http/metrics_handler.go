package http

import (
	"net/http"

	apierrors "priceindex/internal/errors"
)

// MetricsHandler serves the Prometheus scrape endpoint
type MetricsHandler struct {
	prometheus http.Handler
}

// NewMetricsHandler wraps the exporter's handler; a nil handler answers 503
func NewMetricsHandler(prometheus http.Handler) *MetricsHandler {
	return &MetricsHandler{prometheus: prometheus}
}

// ServeHTTP handles GET /metrics
func (h *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.prometheus == nil {
		apierrors.WriteError(w, apierrors.NewWithDetails(
			http.StatusServiceUnavailable,
			"SERVICE_UNAVAILABLE",
			"Metrics exporter is disabled",
			"set telemetry.metric_exporter to prometheus",
		))
		return
	}
	h.prometheus.ServeHTTP(w, r)
}
