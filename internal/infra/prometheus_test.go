package infra

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPromRecorder_Counters(t *testing.T) {
	r := NewPromRecorder()

	r.ObserveRequest("symbols", 10*time.Millisecond, nil)
	r.ObserveRequest("symbols", 10*time.Millisecond, errors.New("x"))
	r.ObserveRetry("symbols")
	r.ObserveBreaker("signal", true)
	r.ObserveCache(true)
	r.ObserveCache(false)
	r.ObserveCache(false)

	if got := testutil.ToFloat64(r.requests.WithLabelValues("symbols", "ok")); got != 1 {
		t.Errorf("ok requests = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.requests.WithLabelValues("symbols", "error")); got != 1 {
		t.Errorf("error requests = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.breakerOpen.WithLabelValues("signal")); got != 1 {
		t.Errorf("breaker gauge = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.cache.WithLabelValues("miss")); got != 2 {
		t.Errorf("cache misses = %v, want 2", got)
	}
}

func TestPromRecorder_Handler(t *testing.T) {
	r := NewPromRecorder()
	r.ObserveTick()

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "crypto_dash_stream_ticks_total 1") {
		t.Errorf("tick counter missing from exposition:\n%s", body)
	}
}
