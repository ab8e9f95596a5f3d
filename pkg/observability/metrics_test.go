package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsRegisters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	require.NotNil(t, m)

	m.HTTPRequestsTotal.WithLabelValues("GET", "/collections", "200").Inc()
	m.TransitionsTotal.WithLabelValues("join", "ok").Inc()
	m.EventsPublishedTotal.WithLabelValues("member.joined").Inc()
	m.CollectionsTotal.Set(42)

	families, err := registry.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["gatherly_http_requests_total"])
	assert.True(t, names["gatherly_membership_transitions_total"])
	assert.True(t, names["gatherly_events_published_total"])
	assert.True(t, names["gatherly_collections_total"])
}

func TestObserveTransition(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveTransition("follow", nil, 10*time.Millisecond)
	m.ObserveTransition("follow", assert.AnError, 5*time.Millisecond)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.TransitionsTotal.WithLabelValues("follow", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.TransitionsTotal.WithLabelValues("follow", "error")))
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	handler := HTTPMetricsMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("nope"))
	}))

	req := httptest.NewRequest("GET", "/collections/c1", strings.NewReader("body"))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/collections/c1", "404")))
}

func TestRegisterMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	m.PostsTotal.Set(7)

	mux := http.NewServeMux()
	RegisterMetricsEndpoint(mux, registry)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "gatherly_posts_total 7")
}
