package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config for the whole application
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	API        APIConfig        `mapstructure:"api"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Risk       RiskConfig       `mapstructure:"risk"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	WebSocket  WebSocketConfig  `mapstructure:"websocket"`
}

// AppConfig is the general application configuration
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`

	// ReanalysisInterval re-runs every stored portfolio periodically; 0 disables it
	ReanalysisInterval time.Duration `mapstructure:"reanalysis_interval"`
}

// APIConfig configures the HTTP server
type APIConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// RateLimit is requests per second per client; 0 disables it
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`
	// MaxConcurrentAnalyses bounds in-flight analyses; OverloadStrategy is
	// "reject" (503) or "block"
	MaxConcurrentAnalyses int    `mapstructure:"max_concurrent_analyses"`
	OverloadStrategy      string `mapstructure:"overload_strategy"`
}

// KafkaConfig configures result publishing. ConsumeRequests also starts a
// consumer that analyzes stored portfolios on demand.
type KafkaConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Brokers         []string      `mapstructure:"brokers"`
	ConsumeRequests bool          `mapstructure:"consume_requests"`
	GroupID         string        `mapstructure:"group_id"`
	Topics          KafkaTopics   `mapstructure:"topics"`
	Producer        KafkaProducer `mapstructure:"producer"`
}

// KafkaTopics names the topics used by the service
type KafkaTopics struct {
	Results  string `mapstructure:"results"`
	Requests string `mapstructure:"requests"`
}

// KafkaProducer holds writer settings
type KafkaProducer struct {
	Acks         int           `mapstructure:"acks"`
	Compression  string        `mapstructure:"compression"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

// SimulationConfig holds the default projection parameters and the
// simulator's parallelism
type SimulationConfig struct {
	StartCapital     float64 `mapstructure:"start_capital"`
	Steps            int     `mapstructure:"steps"`
	NumPaths         int     `mapstructure:"num_paths"`
	RandomnessFactor float64 `mapstructure:"randomness_factor"`
	PeriodsPerYear   int     `mapstructure:"periods_per_year"`
	Annualization    int     `mapstructure:"annualization"`
	Seed             uint64  `mapstructure:"seed"`
	Workers          int     `mapstructure:"workers"`
	BatchSize        int     `mapstructure:"batch_size"`
	JumpProbability  float64 `mapstructure:"jump_probability"`

	// MaxSteps, MaxPaths and MaxCells bound what a request may ask for;
	// MaxCells caps (steps+1)·paths of one path matrix
	MaxSteps int `mapstructure:"max_steps"`
	MaxPaths int `mapstructure:"max_paths"`
	MaxCells int `mapstructure:"max_cells"`
}

// RiskConfig holds the risk metric settings
type RiskConfig struct {
	VaRConfidenceLevel       float64   `mapstructure:"var_confidence_level"`
	ESConfidenceLevel        float64   `mapstructure:"es_confidence_level"`
	RiskFreeRate             float64   `mapstructure:"risk_free_rate"`
	BenchmarkMinObservations int       `mapstructure:"benchmark_min_observations"`
	Percentiles              []float64 `mapstructure:"percentiles"`
}

// MetricsConfig configures Prometheus exposition
type MetricsConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// PrometheusConfig serves /metrics on the API server when Port is 0,
// otherwise on a dedicated listener
type PrometheusConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// WebSocketConfig configures the dashboard hub
type WebSocketConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load reads the configuration file at GetConfigPath and the QUANT_
// environment overrides
func Load() (*Config, error) {
	return LoadFrom(GetConfigPath())
}

// LoadFrom reads the configuration from path. A missing file leaves the
// defaults and environment overrides in effect.
func LoadFrom(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("QUANT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "portfolio-risk-engine")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.reanalysis_interval", "0s")

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.mode", "release")
	v.SetDefault("api.read_timeout", "10s")
	v.SetDefault("api.write_timeout", "60s")
	v.SetDefault("api.shutdown_timeout", "30s")
	v.SetDefault("api.rate_limit", 0)
	v.SetDefault("api.rate_burst", 20)
	v.SetDefault("api.max_concurrent_analyses", 4)
	v.SetDefault("api.overload_strategy", "reject")

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.consume_requests", false)
	v.SetDefault("kafka.group_id", "portfolio-risk-engine")
	v.SetDefault("kafka.topics.results", "risk-analysis-results")
	v.SetDefault("kafka.topics.requests", "risk-analysis-requests")
	v.SetDefault("kafka.producer.acks", -1)
	v.SetDefault("kafka.producer.compression", "gzip")
	v.SetDefault("kafka.producer.max_attempts", 3)
	v.SetDefault("kafka.producer.write_timeout", "10s")
	v.SetDefault("kafka.producer.batch_timeout", "50ms")

	// Simulation defaults
	v.SetDefault("simulation.start_capital", 10000.0)
	v.SetDefault("simulation.steps", 36)
	v.SetDefault("simulation.num_paths", 50000)
	v.SetDefault("simulation.randomness_factor", 0.30)
	v.SetDefault("simulation.periods_per_year", 12)
	v.SetDefault("simulation.annualization", 252)
	v.SetDefault("simulation.seed", 42)
	v.SetDefault("simulation.workers", 0)
	v.SetDefault("simulation.batch_size", 5000)
	v.SetDefault("simulation.jump_probability", 0.05)
	v.SetDefault("simulation.max_steps", 1200)
	v.SetDefault("simulation.max_paths", 1000000)
	v.SetDefault("simulation.max_cells", 50000000)

	// Risk defaults
	v.SetDefault("risk.var_confidence_level", 0.95)
	v.SetDefault("risk.es_confidence_level", 0.95)
	v.SetDefault("risk.risk_free_rate", 0.02)
	v.SetDefault("risk.benchmark_min_observations", 30)
	v.SetDefault("risk.percentiles", []float64{5, 25, 50, 75, 95})

	// Metrics defaults
	v.SetDefault("metrics.prometheus.enabled", true)
	v.SetDefault("metrics.prometheus.port", 0)

	// WebSocket defaults
	v.SetDefault("websocket.enabled", true)
}

// GetConfigPath returns QUANT_CONFIG_PATH or the default config location
func GetConfigPath() string {
	configPath := os.Getenv("QUANT_CONFIG_PATH")
	if configPath != "" {
		return configPath
	}

	return "./config/config.yaml"
}
