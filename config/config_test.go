package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "portfolio-risk-engine", cfg.App.Name)
	assert.Equal(t, time.Duration(0), cfg.App.ReanalysisInterval)
	assert.Equal(t, 8080, cfg.API.Port)
	assert.Equal(t, 60*time.Second, cfg.API.WriteTimeout)
	assert.Equal(t, 4, cfg.API.MaxConcurrentAnalyses)
	assert.Equal(t, "reject", cfg.API.OverloadStrategy)
	assert.Equal(t, 10000.0, cfg.Simulation.StartCapital)
	assert.Equal(t, 36, cfg.Simulation.Steps)
	assert.Equal(t, 50000, cfg.Simulation.NumPaths)
	assert.Equal(t, 0.30, cfg.Simulation.RandomnessFactor)
	assert.Equal(t, 12, cfg.Simulation.PeriodsPerYear)
	assert.Equal(t, 252, cfg.Simulation.Annualization)
	assert.Equal(t, uint64(42), cfg.Simulation.Seed)
	assert.Equal(t, 5000, cfg.Simulation.BatchSize)
	assert.Equal(t, 0.05, cfg.Simulation.JumpProbability)
	assert.Equal(t, 1200, cfg.Simulation.MaxSteps)
	assert.Equal(t, 1000000, cfg.Simulation.MaxPaths)
	assert.Equal(t, 50000000, cfg.Simulation.MaxCells)
	assert.Equal(t, 0.95, cfg.Risk.VaRConfidenceLevel)
	assert.Equal(t, 0.02, cfg.Risk.RiskFreeRate)
	assert.Equal(t, 30, cfg.Risk.BenchmarkMinObservations)
	assert.Equal(t, []float64{5, 25, 50, 75, 95}, cfg.Risk.Percentiles)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "risk-analysis-results", cfg.Kafka.Topics.Results)
	assert.False(t, cfg.Kafka.Enabled)
	assert.True(t, cfg.WebSocket.Enabled)
}

func TestLoadFileAndEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  log_level: debug
simulation:
  num_paths: 2000
  seed: 7
kafka:
  enabled: true
  producer:
    batch_timeout: 5ms
`), 0o600))

	t.Setenv("QUANT_SIMULATION_STEPS", "24")
	t.Setenv("QUANT_RISK_RISK_FREE_RATE", "0.03")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, 2000, cfg.Simulation.NumPaths)
	assert.Equal(t, uint64(7), cfg.Simulation.Seed)
	assert.Equal(t, 24, cfg.Simulation.Steps)
	assert.Equal(t, 0.03, cfg.Risk.RiskFreeRate)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, 5*time.Millisecond, cfg.Kafka.Producer.BatchTimeout)
	assert.Equal(t, 3, cfg.Kafka.Producer.MaxAttempts)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("simulation: [unclosed"), 0o600))

	_, err := LoadFrom(path)
	assert.Error(t, err)
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("QUANT_CONFIG_PATH", "/etc/risk/config.yaml")
	assert.Equal(t, "/etc/risk/config.yaml", GetConfigPath())

	t.Setenv("QUANT_CONFIG_PATH", "")
	assert.Equal(t, "./config/config.yaml", GetConfigPath())
}
