package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rzzdr/portfolio-risk-engine/pkg/utils/logger"
)

var (
	// Metrics for the numerical core
	covarianceFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "covariance_fallbacks_total",
		Help: "Times the primary covariance estimator failed and the fallback was used",
	}, []string{"primary"})

	choleskyRegularizations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cholesky_regularizations_total",
		Help: "Cholesky factorizations that needed diagonal jitter",
	}, []string{"jitter"})

	simulationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "simulations_total",
		Help: "The total number of Monte Carlo simulations run",
	}, []string{"model"})

	simulatedPaths = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "simulated_paths_total",
		Help: "The total number of simulated paths",
	}, []string{"model"})

	simulationTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "simulation_duration_seconds",
		Help:    "The time taken to simulate a path matrix",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
	}, []string{"model"})

	benchmarksOmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "benchmarks_omitted_total",
		Help: "Benchmarks skipped because they were absent or had too little history",
	})
)

// PrometheusServer is a server that exposes Prometheus metrics
type PrometheusServer struct {
	server *http.Server
	log    *logger.Logger
}

// NewPrometheusServer creates a new Prometheus metrics server
func NewPrometheusServer(port int) *PrometheusServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &PrometheusServer{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: logger.GetLogger("metrics.prometheus"),
	}
}

// Addr returns the listen address
func (p *PrometheusServer) Addr() string {
	return p.server.Addr
}

// Start starts the Prometheus metrics server and blocks until it stops
func (p *PrometheusServer) Start() error {
	p.log.Infof("Starting Prometheus metrics server on %s", p.server.Addr)
	if err := p.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop stops the Prometheus metrics server gracefully
func (p *PrometheusServer) Stop(ctx context.Context) error {
	p.log.Info("Stopping Prometheus metrics server")
	return p.server.Shutdown(ctx)
}

// RecordCovarianceFallback records a degrade from the named primary estimator
func RecordCovarianceFallback(primary string) {
	covarianceFallbacks.WithLabelValues(primary).Inc()
}

// RecordCholeskyRegularization records a factorization that succeeded only after jitter
func RecordCholeskyRegularization(jitter float64) {
	choleskyRegularizations.WithLabelValues(fmt.Sprintf("%g", jitter)).Inc()
}

// RecordSimulation records one completed simulation
func RecordSimulation(model string, paths int, duration time.Duration) {
	simulationsTotal.WithLabelValues(model).Inc()
	simulatedPaths.WithLabelValues(model).Add(float64(paths))
	simulationTime.WithLabelValues(model).Observe(duration.Seconds())
}

// RecordBenchmarkOmitted records a benchmark left out of an estimate
func RecordBenchmarkOmitted() {
	benchmarksOmitted.Inc()
}
