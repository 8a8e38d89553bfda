package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rzzdr/portfolio-risk-engine/pkg/models"
	"github.com/rzzdr/portfolio-risk-engine/pkg/utils/backpressure"
	"github.com/rzzdr/portfolio-risk-engine/pkg/utils/errors"
	"github.com/rzzdr/portfolio-risk-engine/pkg/utils/logger"
)

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	analyzer   Analyzer
	portfolios PortfolioStore
	prices     PriceStore
	limiter    *backpressure.Limiter
	log        *logger.Logger
}

// PortfolioRequest creates or replaces a stored portfolio
type PortfolioRequest struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Universe string         `json:"universe" binding:"required"`
	Weights  models.Weights `json:"weights" binding:"required"`
}

// NewHandlers creates new API handlers
func NewHandlers(analyzer Analyzer, portfolios PortfolioStore, prices PriceStore, limiter *backpressure.Limiter) *Handlers {
	return &Handlers{
		analyzer:   analyzer,
		portfolios: portfolios,
		prices:     prices,
		limiter:    limiter,
		log:        logger.GetLogger("api.handlers"),
	}
}

// statusFor maps an application error to an HTTP status code
func statusFor(err error) int {
	switch errors.TypeOf(err) {
	case errors.ErrorTypeInvalidArgument:
		return http.StatusBadRequest
	case errors.ErrorTypeNotFound:
		return http.StatusNotFound
	case errors.ErrorTypeConfiguration, errors.ErrorTypeInsufficientData:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Errorf("%s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{
		"error": err.Error(),
		"type":  errors.TypeOf(err).String(),
	})
}

// HealthCheckHandler handles health check requests
func (h *Handlers) HealthCheckHandler(c *gin.Context) {
	body := gin.H{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"universes": len(h.prices.Universes()),
	}
	if h.limiter != nil {
		body["analysis"] = h.limiter.Stats()
	}
	c.JSON(http.StatusOK, body)
}

// ListUniversesHandler returns the names of the stored price universes
func (h *Handlers) ListUniversesHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"universes": h.prices.Universes(),
	})
}

// GetPricesHandler returns a stored price table
func (h *Handlers) GetPricesHandler(c *gin.Context) {
	table, err := h.prices.GetPrices(c.Param("universe"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, table)
}

// PutPricesHandler stores a price table under a universe name
func (h *Handlers) PutPricesHandler(c *gin.Context) {
	var table models.PriceTable
	if err := c.ShouldBindJSON(&table); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("Invalid price table: %v", err),
		})
		return
	}

	universe := c.Param("universe")
	if err := h.prices.SavePrices(universe, &table); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"universe": universe,
		"assets":   table.Assets,
		"rows":     table.Rows(),
	})
}

// ListPortfoliosHandler returns every stored portfolio
func (h *Handlers) ListPortfoliosHandler(c *gin.Context) {
	portfolios, err := h.portfolios.GetAllPortfolios()
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, portfolios)
}

// CreatePortfolioHandler creates or replaces a portfolio
func (h *Handlers) CreatePortfolioHandler(c *gin.Context) {
	var req PortfolioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("Invalid portfolio data: %v", err),
		})
		return
	}

	now := time.Now().UTC()
	p := &models.Portfolio{
		ID:       req.ID,
		Name:     req.Name,
		Universe: req.Universe,
		Weights:  req.Weights,
		Created:  now,
		Updated:  now,
	}
	status := http.StatusCreated
	if p.ID == "" {
		p.ID = uuid.NewString()
	} else if existing, err := h.portfolios.GetPortfolio(p.ID); err == nil {
		p.Created = existing.Created
		status = http.StatusOK
	}

	if err := h.portfolios.SavePortfolio(p); err != nil {
		h.respondError(c, err)
		return
	}

	h.log.Infof("Saved portfolio %s on universe %s", p.ID, p.Universe)
	c.JSON(status, p)
}

// GetPortfolioHandler returns a stored portfolio
func (h *Handlers) GetPortfolioHandler(c *gin.Context) {
	p, err := h.portfolios.GetPortfolio(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, p)
}

// DeletePortfolioHandler removes a stored portfolio
func (h *Handlers) DeletePortfolioHandler(c *gin.Context) {
	if err := h.portfolios.DeletePortfolio(c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// AnalyzeHandler runs an analysis on inline prices and weights
func (h *Handlers) AnalyzeHandler(c *gin.Context) {
	var req models.AnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("Invalid analysis request: %v", err),
		})
		return
	}

	result, err := h.analyzer.Analyze(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// AnalyzePortfolioHandler analyzes a stored portfolio. The body is optional
// and may carry simulation parameters and benchmarks.
func (h *Handlers) AnalyzePortfolioHandler(c *gin.Context) {
	var job models.AnalysisJob
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&job); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("Invalid analysis job: %v", err),
			})
			return
		}
	}
	job.PortfolioID = c.Param("id")

	result, err := h.analyzer.AnalyzePortfolio(c.Request.Context(), &job)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
