package telemetry

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMetricsExposition(t *testing.T) {
	m := NewMetrics()
	m.CacheHits.Inc()
	m.CacheMisses.Add(2)
	m.QueueDepth.Set(5)

	req := httptest.NewRequest("GET", "/debug/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "iris_slidecache_hits_total 1") {
		t.Fatalf("expected hit counter in exposition, got:\n%s", body)
	}
	if !strings.Contains(body, "iris_worker_queue_depth 5") {
		t.Fatalf("expected queue depth gauge in exposition, got:\n%s", body)
	}
}

func TestMetricsIndependentRegistries(t *testing.T) {
	// Creating two Metrics instances must not panic with a duplicate
	// collector registration, since each uses its own registry.
	NewMetrics()
	NewMetrics()
}
