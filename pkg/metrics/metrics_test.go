package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderAnalysisOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorderWith(reg)

	r.RecordAnalysis(nil, 20*time.Millisecond)
	r.RecordAnalysis(nil, 30*time.Millisecond)
	r.RecordAnalysis(errors.New("boom"), time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.analysisCounter.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.analysisCounter.WithLabelValues("error")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.analysisLatency))
}

func TestRecorderScenarioRiskKeepsLatest(t *testing.T) {
	r := NewRecorderWith(prometheus.NewRegistry())

	r.RecordScenarioRisk("historical", -0.02, -0.03)
	r.RecordScenarioRisk("historical", -0.04, -0.05)
	r.RecordScenarioRisk("normal_mc", -0.10, -0.12)

	assert.Equal(t, -0.04, testutil.ToFloat64(r.varGauge.WithLabelValues("historical")))
	assert.Equal(t, -0.05, testutil.ToFloat64(r.esGauge.WithLabelValues("historical")))
	assert.Equal(t, 2, testutil.CollectAndCount(r.varGauge))
}

func TestRecorderAPIAndPublish(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorderWith(reg)

	r.RecordAPIRequest("GET", "/api/v1/health", 200, time.Millisecond)
	r.RecordAPIRequest("GET", "/api/v1/health", 200, time.Millisecond)
	r.RecordAPIRequest("POST", "/api/v1/analysis", 422, time.Millisecond)
	r.RecordPublish("kafka", nil)
	r.RecordPublish("kafka", errors.New("down"))

	assert.Equal(t, 2.0, testutil.ToFloat64(r.apiRequestCounter.WithLabelValues("GET", "/api/v1/health", "200")))

	n, err := testutil.GatherAndCount(reg, "pre_results_published_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestNewRecorderWithoutRegistry(t *testing.T) {
	r := NewRecorderWith(nil)
	assert.NotPanics(t, func() {
		r.RecordAnalysis(nil, time.Second)
	})
}

func TestPrometheusServerStopBeforeStart(t *testing.T) {
	s := NewPrometheusServer(9464)
	assert.Equal(t, ":9464", s.Addr())
	assert.NoError(t, s.Stop(context.Background()))
}
