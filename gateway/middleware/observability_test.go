package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObservabilityLabelsByRoutePattern(t *testing.T) {
	obs := NewObservability(ObservabilityConfig{LogRequests: true}, nil)
	router := chi.NewRouter()
	router.Use(obs.Middleware)
	router.Get("/bank/{addr}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, addr := range []string{"a", "b"} {
		res := httptest.NewRecorder()
		router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/bank/"+addr, nil))
		require.Equal(t, http.StatusTeapot, res.Code)
	}

	count := testutil.ToFloat64(obs.Requests().WithLabelValues("/bank/{addr}", http.MethodGet, "418"))
	require.Equal(t, float64(2), count)
}

func TestMetricsHandlerExposesGatewaySeries(t *testing.T) {
	obs := NewObservability(ObservabilityConfig{MetricsPrefix: "edge"}, nil)
	router := chi.NewRouter()
	router.Use(obs.Middleware)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {})
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	res := httptest.NewRecorder()
	obs.MetricsHandler().ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, res.Code)
	require.True(t, strings.Contains(res.Body.String(), "counting_edge_requests_total"))
}
