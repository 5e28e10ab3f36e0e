package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"polyevolve/internal/evo"
)

func TestCollectorObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg)
	if err != nil {
		t.Fatalf("new collector: %v", err)
	}

	c.Observe(evo.GenerationReport{Generation: 1, Accepted: true, BestFitness: 90})
	c.Observe(evo.GenerationReport{Generation: 2, BestFitness: 90, Snapshot: 1})
	c.Observe(evo.GenerationReport{Generation: 3, Accepted: true, BestFitness: 75, Snapshot: 2, SnapshotErr: errors.New("boom")})

	if got := testutil.ToFloat64(c.Generations); got != 3 {
		t.Fatalf("generations: %v", got)
	}
	if got := testutil.ToFloat64(c.Accepted); got != 2 {
		t.Fatalf("accepted: %v", got)
	}
	if got := testutil.ToFloat64(c.Snapshots); got != 2 {
		t.Fatalf("snapshots: %v", got)
	}
	if got := testutil.ToFloat64(c.SnapshotFailures); got != 1 {
		t.Fatalf("snapshot failures: %v", got)
	}
	if got := testutil.ToFloat64(c.BestFitness); got != 75 {
		t.Fatalf("best fitness: %v", got)
	}
}

func TestCollectorRejectsDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := New(reg); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := New(reg); err == nil {
		t.Fatal("expected duplicate registration error")
	}
}

func TestMetricsEndpointExposesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg)
	if err != nil {
		t.Fatalf("new collector: %v", err)
	}
	c.Observe(evo.GenerationReport{Generation: 1, BestFitness: 12})

	srv := httptest.NewServer(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(body), "polyevolve_best_fitness 12") {
		t.Fatalf("expected best fitness in exposition, got:\n%s", body)
	}
}
