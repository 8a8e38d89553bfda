package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/rzzdr/portfolio-risk-engine/config"
	"github.com/rzzdr/portfolio-risk-engine/internal/benchmark"
	"github.com/rzzdr/portfolio-risk-engine/internal/covariance"
	"github.com/rzzdr/portfolio-risk-engine/internal/kafka"
	"github.com/rzzdr/portfolio-risk-engine/internal/portfolio"
	"github.com/rzzdr/portfolio-risk-engine/internal/risk"
	"github.com/rzzdr/portfolio-risk-engine/internal/simulation"
	"github.com/rzzdr/portfolio-risk-engine/internal/store"
	"github.com/rzzdr/portfolio-risk-engine/internal/websocket"
	"github.com/rzzdr/portfolio-risk-engine/pkg/api"
	"github.com/rzzdr/portfolio-risk-engine/pkg/metrics"
	"github.com/rzzdr/portfolio-risk-engine/pkg/models"
	"github.com/rzzdr/portfolio-risk-engine/pkg/utils/backpressure"
	"github.com/rzzdr/portfolio-risk-engine/pkg/utils/logger"
)

func main() {
	configPath := flag.String("config", config.GetConfigPath(), "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.LoadFrom(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.App.LogLevel, cfg.App.Environment)
	log := logger.GetLogger("risk-engine.main")
	log.Infof("Starting %s (%s)", cfg.App.Name, cfg.App.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	recorder := metrics.NewRecorder()

	portfolioStore := store.NewInMemoryPortfolioStore()
	priceStore := store.NewInMemoryPriceStore()

	var publishers []risk.Publisher

	var hub *websocket.Hub
	if cfg.WebSocket.Enabled {
		hub = websocket.NewHub()
		publishers = append(publishers, hub)
	}

	var producer *kafka.Producer
	kafkaConfig := kafkaClientConfig(cfg.Kafka)
	if cfg.Kafka.Enabled {
		producer, err = kafka.NewProducer(kafkaConfig)
		if err != nil {
			log.Fatalf("Failed to create Kafka producer: %v", err)
		}
		publishers = append(publishers, producer)
	}

	calculator := risk.NewCalculator(
		risk.CalculatorConfig{
			VaRConfidenceLevel: cfg.Risk.VaRConfidenceLevel,
			ESConfidenceLevel:  cfg.Risk.ESConfidenceLevel,
			RiskFreeRate:       cfg.Risk.RiskFreeRate,
			Percentiles:        cfg.Risk.Percentiles,
			Defaults:           simulationDefaults(cfg.Simulation),
			Limits: risk.Limits{
				MaxSteps: cfg.Simulation.MaxSteps,
				MaxPaths: cfg.Simulation.MaxPaths,
				MaxCells: cfg.Simulation.MaxCells,
			},
		},
		portfolio.NewCalculator(covariance.NewDefault()),
		simulation.NewSimulator(simulation.Config{
			Workers:         cfg.Simulation.Workers,
			BatchSize:       cfg.Simulation.BatchSize,
			JumpProbability: &cfg.Simulation.JumpProbability,
		}),
		benchmark.NewEstimator(cfg.Risk.BenchmarkMinObservations),
		risk.WithStores(portfolioStore, priceStore),
		risk.WithPublishers(publishers...),
		risk.WithRecorder(recorder),
	)

	deps := api.Dependencies{
		Analyzer:   calculator,
		Portfolios: portfolioStore,
		Prices:     priceStore,
		Recorder:   recorder,
	}
	if cfg.Metrics.Prometheus.Enabled && cfg.Metrics.Prometheus.Port == 0 {
		deps.Metrics = promhttp.Handler()
	}
	if hub != nil {
		deps.WebSocket = hub.HandleWebSocket
	}
	if cfg.API.RateLimit > 0 {
		deps.RateLimiter = backpressure.NewKeyedRateLimiter(cfg.API.RateLimit, cfg.API.RateBurst)
	}
	if cfg.API.MaxConcurrentAnalyses > 0 {
		deps.AnalysisLimiter = backpressure.NewLimiter(backpressure.Config{
			Name:          "analysis",
			Strategy:      backpressure.ParseStrategy(cfg.API.OverloadStrategy),
			MaxConcurrent: cfg.API.MaxConcurrentAnalyses,
		})
	}

	server := api.NewServer(api.Config{
		Host:         cfg.API.Host,
		Port:         cfg.API.Port,
		Mode:         cfg.API.Mode,
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
	}, deps)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Start()
	})

	if hub != nil {
		g.Go(func() error {
			hub.Run(ctx)
			return nil
		})
	}

	var metricsServer *metrics.PrometheusServer
	if cfg.Metrics.Prometheus.Enabled && cfg.Metrics.Prometheus.Port != 0 {
		metricsServer = metrics.NewPrometheusServer(cfg.Metrics.Prometheus.Port)
		g.Go(metricsServer.Start)
	}

	if cfg.Kafka.Enabled && cfg.Kafka.ConsumeRequests {
		consumer, err := kafka.NewConsumer(kafkaConfig)
		if err != nil {
			log.Fatalf("Failed to create Kafka consumer: %v", err)
		}
		defer consumer.Close()

		g.Go(func() error {
			return consumer.Run(ctx, func(ctx context.Context, job *models.AnalysisJob) error {
				_, err := calculator.AnalyzePortfolio(ctx, job)
				return err
			})
		})
	}

	if cfg.App.ReanalysisInterval > 0 {
		g.Go(func() error {
			reanalyze(ctx, cfg.App.ReanalysisInterval, portfolioStore, calculator, log)
			return nil
		})
	}

	log.Info("Risk engine started")

	<-ctx.Done()
	log.Info("Shutdown requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
	defer cancel()

	if err := server.Stop(shutdownCtx); err != nil {
		log.Errorf("API server shutdown error: %v", err)
	}
	if metricsServer != nil {
		if err := metricsServer.Stop(shutdownCtx); err != nil {
			log.Errorf("Metrics server shutdown error: %v", err)
		}
	}

	if err := g.Wait(); err != nil {
		log.Errorf("Risk engine stopped with error: %v", err)
	}

	if producer != nil {
		if err := producer.Close(); err != nil {
			log.Errorf("Kafka producer shutdown error: %v", err)
		}
	}

	log.Info("Shutdown complete")
}

// reanalyze runs every stored portfolio on each tick until ctx is done
func reanalyze(ctx context.Context, interval time.Duration, portfolios *store.InMemoryPortfolioStore,
	calculator *risk.Calculator, log *logger.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			all, err := portfolios.GetAllPortfolios()
			if err != nil {
				log.Errorf("Failed to get all portfolios: %v", err)
				continue
			}

			log.Infof("Running periodic analysis for %d portfolios", len(all))
			for _, p := range all {
				if _, err := calculator.AnalyzePortfolio(ctx, &models.AnalysisJob{PortfolioID: p.ID}); err != nil {
					log.Errorf("Failed to analyze portfolio %s: %v", p.ID, err)
				}
			}
		}
	}
}

func simulationDefaults(c config.SimulationConfig) models.SimulationParams {
	seed := c.Seed
	randomness := c.RandomnessFactor
	return models.SimulationParams{
		StartCapital:     c.StartCapital,
		Steps:            c.Steps,
		NumPaths:         c.NumPaths,
		RandomnessFactor: &randomness,
		PeriodsPerYear:   c.PeriodsPerYear,
		Annualization:    c.Annualization,
		Seed:             &seed,
	}
}

func kafkaClientConfig(c config.KafkaConfig) *kafka.Config {
	kc := kafka.DefaultConfig()
	kc.Brokers = c.Brokers
	kc.GroupID = c.GroupID
	kc.ResultsTopic = c.Topics.Results
	kc.RequestsTopic = c.Topics.Requests
	kc.RequiredAcks = c.Producer.Acks
	kc.Compression = c.Producer.Compression
	if c.Producer.MaxAttempts > 0 {
		kc.MaxAttempts = c.Producer.MaxAttempts
	}
	if c.Producer.WriteTimeout > 0 {
		kc.WriteTimeout = c.Producer.WriteTimeout
	}
	if c.Producer.BatchTimeout > 0 {
		kc.BatchTimeout = c.Producer.BatchTimeout
	}
	return kc
}
