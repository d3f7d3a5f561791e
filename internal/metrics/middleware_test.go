package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPMiddleware_RecordsKnownRoute(t *testing.T) {
	reg := NewRegistry()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusSeeOther)
	})
	wrapped := HTTPMiddleware(reg, "/run")(handler)

	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, httptest.NewRequest("POST", "/run", nil))

	if w.Code != http.StatusSeeOther {
		t.Errorf("expected 303, got %d", w.Code)
	}

	mf := findFamily(t, reg, "http_requests_total")
	if mf == nil {
		t.Fatal("expected http_requests_total to be recorded")
	}
	m := mf.GetMetric()[0]
	if !hasLabel(m, "path", "/run") || !hasLabel(m, "status", "3xx") {
		t.Errorf("unexpected labels: %v", m.GetLabel())
	}
}

func TestHTTPMiddleware_CollapsesUnknownPaths(t *testing.T) {
	reg := NewRegistry()
	wrapped := HTTPMiddleware(reg, "/")(http.NotFoundHandler())

	for _, p := range []string{"/wp-admin", "/.env", "/x/y"} {
		wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", p, nil))
	}

	mf := findFamily(t, reg, "http_requests_total")
	if len(mf.GetMetric()) != 1 {
		t.Fatalf("expected one collapsed series, got %d", len(mf.GetMetric()))
	}
	if !hasLabel(mf.GetMetric()[0], "path", otherPath) {
		t.Error("expected path label 'other'")
	}
	if mf.GetMetric()[0].GetCounter().GetValue() != 3 {
		t.Error("expected 3 requests counted")
	}
}

func TestHTTPMiddleware_InFlightReturnsToZero(t *testing.T) {
	reg := NewRegistry()

	var during float64
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mf := findFamily(t, reg, "http_requests_in_flight")
		during = mf.GetMetric()[0].GetGauge().GetValue()
	})
	HTTPMiddleware(reg)(handler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	if during != 1 {
		t.Errorf("expected 1 in flight during request, got %v", during)
	}
	mf := findFamily(t, reg, "http_requests_in_flight")
	if mf.GetMetric()[0].GetGauge().GetValue() != 0 {
		t.Error("expected 0 in flight after request")
	}
}
