package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kecskemeti/arm-hand-ai/internal/model"
)

const namespace = "armhand"

// Recorder holds the run's collectors on a private registry so that several
// runs in one process, tests included, never collide on registration.
type Recorder struct {
	registry *prometheus.Registry

	ticks              prometheus.Counter
	evaluations        prometheus.Counter
	migrations         prometheus.Counter
	checkpoints        prometheus.Counter
	checkpointFailures prometheus.Counter
	globalBest         prometheus.Gauge
	islandBest         *prometheus.GaugeVec
	islandMean         *prometheus.GaugeVec
	islandSigma        *prometheus.GaugeVec
	tickSeconds        prometheus.Histogram
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "ticks_total", Help: "Completed island scheduler ticks.",
		}),
		evaluations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "evaluations_total", Help: "Genomes scored by the scape.",
		}),
		migrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "migrations_total", Help: "Migration offspring inserted across islands.",
		}),
		checkpoints: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "checkpoints_total", Help: "Best-so-far checkpoints saved.",
		}),
		checkpointFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "checkpoint_failures_total", Help: "Checkpoint saves that failed.",
		}),
		globalBest: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "best_fitness", Help: "Best fitness seen across all islands.",
		}),
		islandBest: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "island_best_fitness", Help: "Best fitness of the island's last generation.",
		}, []string{"island"}),
		islandMean: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "island_mean_fitness", Help: "Mean fitness of the island's last generation.",
		}, []string{"island"}),
		islandSigma: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "island_sigma", Help: "Mutation sigma used for the island's last fill.",
		}, []string{"island"}),
		tickSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "tick_duration_seconds", Help: "Wall time per scheduler tick.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}
	r.registry.MustRegister(
		r.ticks, r.evaluations, r.migrations, r.checkpoints, r.checkpointFailures,
		r.globalBest, r.islandBest, r.islandMean, r.islandSigma, r.tickSeconds,
	)
	return r
}

// ObserveTick records one scheduler tick. A nil Recorder is a no-op.
func (r *Recorder) ObserveTick(islands []model.GenerationDiagnostics, evaluations, migrations int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.ticks.Inc()
	r.evaluations.Add(float64(evaluations))
	r.migrations.Add(float64(migrations))
	r.tickSeconds.Observe(elapsed.Seconds())
	for _, diag := range islands {
		label := strconv.Itoa(diag.Island)
		r.islandBest.WithLabelValues(label).Set(diag.BestFitness)
		r.islandMean.WithLabelValues(label).Set(diag.MeanFitness)
		r.islandSigma.WithLabelValues(label).Set(diag.Sigma)
	}
}

func (r *Recorder) ObserveBest(fitness float64) {
	if r == nil {
		return
	}
	r.globalBest.Set(fitness)
}

func (r *Recorder) ObserveCheckpoint(err error) {
	if r == nil {
		return
	}
	if err != nil {
		r.checkpointFailures.Inc()
		return
	}
	r.checkpoints.Inc()
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done. The returned address is
// the bound one, which differs from addr when addr asks for port 0.
func (r *Recorder) Serve(ctx context.Context, addr string) (string, <-chan error, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	done := make(chan error, 1)
	go func() {
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		done <- err
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	return ln.Addr().String(), done, nil
}
