package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder handles metrics for the service surface: API traffic, analysis
// runs and the most recent risk figures per scenario
type Recorder struct {
	apiRequestCounter   *prometheus.CounterVec
	apiLatencyHistogram *prometheus.HistogramVec

	analysisCounter *prometheus.CounterVec
	analysisLatency prometheus.Histogram
	varGauge        *prometheus.GaugeVec
	esGauge         *prometheus.GaugeVec

	publishCounter *prometheus.CounterVec
}

// NewRecorder creates a recorder registered with the default registry
func NewRecorder() *Recorder {
	return NewRecorderWith(prometheus.DefaultRegisterer)
}

// NewRecorderWith creates a recorder registered with reg
func NewRecorderWith(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		apiRequestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pre_api_requests_total",
				Help: "The total number of API requests",
			},
			[]string{"method", "path", "status"},
		),
		apiLatencyHistogram: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pre_api_latency_seconds",
				Help:    "API request latency distribution",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // From 1ms to ~16s
			},
			[]string{"method", "path"},
		),
		analysisCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pre_analysis_runs_total",
				Help: "Analysis runs by outcome",
			},
			[]string{"status"},
		),
		analysisLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pre_analysis_duration_seconds",
				Help:    "End-to-end analysis run duration",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
			},
		),
		varGauge: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pre_value_at_risk",
				Help: "Value at Risk of the latest analysis per scenario",
			},
			[]string{"scenario"},
		),
		esGauge: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pre_expected_shortfall",
				Help: "Expected Shortfall of the latest analysis per scenario",
			},
			[]string{"scenario"},
		),
		publishCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pre_results_published_total",
				Help: "Analysis results handed to downstream sinks",
			},
			[]string{"sink", "status"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			r.apiRequestCounter,
			r.apiLatencyHistogram,
			r.analysisCounter,
			r.analysisLatency,
			r.varGauge,
			r.esGauge,
			r.publishCounter,
		)
	}
	return r
}

// RecordAPIRequest records an HTTP request
func (r *Recorder) RecordAPIRequest(method, path string, status int, latency time.Duration) {
	r.apiRequestCounter.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	r.apiLatencyHistogram.WithLabelValues(method, path).Observe(latency.Seconds())
}

// RecordAnalysis records the outcome of an analysis run
func (r *Recorder) RecordAnalysis(err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	r.analysisCounter.WithLabelValues(status).Inc()
	r.analysisLatency.Observe(duration.Seconds())
}

// RecordScenarioRisk sets the latest VaR and ES for a scenario
func (r *Recorder) RecordScenarioRisk(scenario string, valueAtRisk, expectedShortfall float64) {
	r.varGauge.WithLabelValues(scenario).Set(valueAtRisk)
	r.esGauge.WithLabelValues(scenario).Set(expectedShortfall)
}

// RecordPublish records a delivery attempt to a result sink
func (r *Recorder) RecordPublish(sink string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	r.publishCounter.WithLabelValues(sink, status).Inc()
}
