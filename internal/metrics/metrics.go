package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"polyevolve/internal/evo"
)

// Collector exports hill-climber progress.
type Collector struct {
	Generations      prometheus.Counter
	Accepted         prometheus.Counter
	Snapshots        prometheus.Counter
	SnapshotFailures prometheus.Counter
	BestFitness      prometheus.Gauge
}

func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		Generations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "polyevolve_generations_total",
			Help: "Candidates evaluated.",
		}),
		Accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "polyevolve_accepted_total",
			Help: "Candidates that replaced the held genome.",
		}),
		Snapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "polyevolve_snapshots_total",
			Help: "Snapshot frames emitted.",
		}),
		SnapshotFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "polyevolve_snapshot_failures_total",
			Help: "Snapshot frames the sink failed to persist.",
		}),
		BestFitness: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "polyevolve_best_fitness",
			Help: "Fitness of the held genome (lower is better).",
		}),
	}
	for _, collector := range []prometheus.Collector{c.Generations, c.Accepted, c.Snapshots, c.SnapshotFailures, c.BestFitness} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collector) Observe(r evo.GenerationReport) {
	c.Generations.Inc()
	if r.Accepted {
		c.Accepted.Inc()
	}
	if r.Snapshot > 0 {
		c.Snapshots.Inc()
		if r.SnapshotErr != nil {
			c.SnapshotFailures.Inc()
		}
	}
	c.BestFitness.Set(r.BestFitness)
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
