package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/flowcore/internal/adapters/health"
	json "github.com/eleven-am/flowcore/internal/xjson"
)

func get(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServerHealthEndpoint(t *testing.T) {
	checker := health.NewChecker(0, nil)
	checker.Register("storage", func(context.Context) error { return nil })
	server := NewServer(DefaultConfig(), checker, nil, prometheus.NewRegistry(), nil)

	rec := get(t, server.Handler(), "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "ok", body.Components["storage"])

	checker.Register("redis", func(context.Context) error { return errors.New("down") })
	assert.Equal(t, http.StatusServiceUnavailable, get(t, server.Handler(), "/health").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, server.Handler(), "/ready").Code)
	assert.Equal(t, http.StatusOK, get(t, server.Handler(), "/live").Code)
}

func TestServerMetricsEndpoints(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "flowcore_test_total", Help: "test"})
	registry.MustRegister(counter)
	counter.Inc()

	application := func() map[string]interface{} {
		return map[string]interface{}{"workflows_started": 5}
	}
	server := NewServer(DefaultConfig(), nil, application, registry, nil)

	rec := get(t, server.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	var body MetricsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 5, body.Application["workflows_started"])
	assert.NotEmpty(t, body.Runtime.GoVersion)

	rec = get(t, server.Handler(), "/metrics/prometheus")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "flowcore_test_total 1")
}
