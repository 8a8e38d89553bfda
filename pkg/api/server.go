package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rzzdr/portfolio-risk-engine/pkg/metrics"
	"github.com/rzzdr/portfolio-risk-engine/pkg/models"
	"github.com/rzzdr/portfolio-risk-engine/pkg/utils/backpressure"
	"github.com/rzzdr/portfolio-risk-engine/pkg/utils/logger"
)

// Config holds the configuration for the API server
type Config struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// Mode is the gin mode: debug, release or test
	Mode string
}

// Analyzer runs analyses for the API
type Analyzer interface {
	Analyze(ctx context.Context, req *models.AnalysisRequest) (*models.AnalysisResult, error)
	AnalyzePortfolio(ctx context.Context, job *models.AnalysisJob) (*models.AnalysisResult, error)
}

// PortfolioStore stores portfolio definitions
type PortfolioStore interface {
	GetPortfolio(id string) (*models.Portfolio, error)
	GetAllPortfolios() ([]*models.Portfolio, error)
	SavePortfolio(portfolio *models.Portfolio) error
	DeletePortfolio(id string) error
}

// PriceStore stores named price universes
type PriceStore interface {
	GetPrices(universe string) (*models.PriceTable, error)
	SavePrices(universe string, table *models.PriceTable) error
	Universes() []string
}

// Dependencies are the collaborators served by the API
type Dependencies struct {
	Analyzer   Analyzer
	Portfolios PortfolioStore
	Prices     PriceStore
	Recorder   *metrics.Recorder
	// Metrics serves /metrics when set
	Metrics http.Handler
	// WebSocket serves /ws when set
	WebSocket http.HandlerFunc
	// RateLimiter throttles every client when set
	RateLimiter *backpressure.KeyedRateLimiter
	// AnalysisLimiter bounds concurrent analyses when set
	AnalysisLimiter *backpressure.Limiter
}

// Server represents the API server
type Server struct {
	config     Config
	engine     *gin.Engine
	httpServer *http.Server
	handlers   *Handlers
	deps       Dependencies
	log        *logger.Logger
}

// NewServer creates a new API server
func NewServer(config Config, deps Dependencies) *Server {
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = 10 * time.Second
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 60 * time.Second
	}
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}

	server := &Server{
		config:   config,
		engine:   gin.New(),
		handlers: NewHandlers(deps.Analyzer, deps.Portfolios, deps.Prices, deps.AnalysisLimiter),
		deps:     deps,
		log:      logger.GetLogger("api.server"),
	}
	server.setupRoutes()

	return server
}

// Handler returns the routed gin engine
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start starts the API server and blocks until it stops
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.log.Infof("Starting API server on %s", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop stops the API server gracefully
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer != nil {
		s.log.Info("Stopping API server")
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}
