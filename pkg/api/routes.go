package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.engine.Use(ErrorMiddleware())
	s.engine.Use(LoggingMiddleware())
	if s.deps.Recorder != nil {
		s.engine.Use(MetricsMiddleware(s.deps.Recorder))
	}
	s.engine.Use(CORSMiddleware())
	if s.deps.RateLimiter != nil {
		s.engine.Use(RateLimitMiddleware(s.deps.RateLimiter))
	}

	analysis := []gin.HandlerFunc{}
	if s.deps.AnalysisLimiter != nil {
		analysis = append(analysis, ConcurrencyMiddleware(s.deps.AnalysisLimiter))
	}

	h := s.handlers
	api := s.engine.Group("/api/v1")
	api.GET("/health", h.HealthCheckHandler)

	prices := api.Group("/prices")
	prices.GET("", h.ListUniversesHandler)
	prices.GET("/:universe", h.GetPricesHandler)
	prices.PUT("/:universe", h.PutPricesHandler)

	portfolios := api.Group("/portfolios")
	portfolios.GET("", h.ListPortfoliosHandler)
	portfolios.POST("", h.CreatePortfolioHandler)
	portfolios.GET("/:id", h.GetPortfolioHandler)
	portfolios.DELETE("/:id", h.DeletePortfolioHandler)
	portfolios.POST("/:id/analysis", append(analysis, h.AnalyzePortfolioHandler)...)

	api.POST("/analysis", append(analysis, h.AnalyzeHandler)...)

	if s.deps.Metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.deps.Metrics))
	}
	if s.deps.WebSocket != nil {
		s.engine.GET("/ws", gin.WrapF(s.deps.WebSocket))
	}

	s.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Resource not found",
		})
	})
}
