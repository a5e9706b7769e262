package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gather(t *testing.T, reg *prometheus.Registry) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	out := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		out[f.GetName()] = f
	}
	return out
}

func counterSum(f *dto.MetricFamily) float64 {
	if f == nil {
		return 0
	}
	var sum float64
	for _, m := range f.GetMetric() {
		sum += m.GetCounter().GetValue()
	}
	return sum
}

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(WithRegistry(reg), WithNamespace("test"))

	m.ObserveRequest("GET", 200, 10*time.Millisecond)
	m.ObserveRequest("GET", 0, time.Millisecond)
	m.CacheLookup(true)
	m.CacheLookup(false)
	m.CacheLookup(false)
	m.DedupJoin()
	m.TokenRefresh(true)
	m.SocketReconnect()
	m.SocketMessage("out", "ping")
	m.SocketTimeout()
	m.SocketConnected(true)
	m.Navigation("committed")
	m.Render(nil)
	m.Render(errors.New("boom"))

	families := gather(t, reg)

	tests := []struct {
		name string
		want float64
	}{
		{"test_http_requests_total", 2},
		{"test_http_cache_lookups_total", 3},
		{"test_http_dedup_joins_total", 1},
		{"test_token_refreshes_total", 1},
		{"test_socket_reconnects_total", 1},
		{"test_socket_messages_total", 1},
		{"test_socket_request_timeouts_total", 1},
		{"test_navigations_total", 1},
		{"test_renders_total", 2},
	}
	for _, tt := range tests {
		if got := counterSum(families[tt.name]); got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
		}
	}

	gauge := families["test_socket_connected"]
	if gauge == nil || gauge.GetMetric()[0].GetGauge().GetValue() != 1 {
		t.Error("socket_connected gauge should be 1")
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("GET", 500, time.Second)
	m.CacheLookup(true)
	m.DedupJoin()
	m.TokenRefresh(false)
	m.SocketReconnect()
	m.SocketMessage("in", "pong")
	m.SocketTimeout()
	m.SocketConnected(false)
	m.Navigation("aborted")
	m.Render(nil)
}

func TestDiscardDoesNotCollide(t *testing.T) {
	a := Discard()
	b := Discard()
	if a == b {
		t.Fatal("Discard should return fresh collectors")
	}
	a.DedupJoin()
	b.DedupJoin()
}
