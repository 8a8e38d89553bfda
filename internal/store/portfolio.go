package store

import (
	"sort"
	"sync"

	"github.com/rzzdr/portfolio-risk-engine/pkg/models"
	"github.com/rzzdr/portfolio-risk-engine/pkg/utils/errors"
	"github.com/rzzdr/portfolio-risk-engine/pkg/utils/logger"
)

// InMemoryPortfolioStore keeps weight configurations keyed by ID
type InMemoryPortfolioStore struct {
	portfolios map[string]*models.Portfolio
	mu         sync.RWMutex
	log        *logger.Logger
}

// NewInMemoryPortfolioStore creates a new in-memory portfolio store
func NewInMemoryPortfolioStore() *InMemoryPortfolioStore {
	return &InMemoryPortfolioStore{
		portfolios: make(map[string]*models.Portfolio),
		log:        logger.GetLogger("store.portfolio"),
	}
}

// GetPortfolio retrieves a copy of a portfolio by ID
func (s *InMemoryPortfolioStore) GetPortfolio(id string) (*models.Portfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	portfolio, exists := s.portfolios[id]
	if !exists {
		return nil, errors.NotFound("portfolio not found: " + id)
	}

	return clonePortfolio(portfolio), nil
}

// GetAllPortfolios returns every stored portfolio ordered by creation time
func (s *InMemoryPortfolioStore) GetAllPortfolios() ([]*models.Portfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	portfolios := make([]*models.Portfolio, 0, len(s.portfolios))
	for _, p := range s.portfolios {
		portfolios = append(portfolios, clonePortfolio(p))
	}

	sort.Slice(portfolios, func(i, j int) bool {
		if portfolios[i].Created.Equal(portfolios[j].Created) {
			return portfolios[i].ID < portfolios[j].ID
		}
		return portfolios[i].Created.Before(portfolios[j].Created)
	})
	return portfolios, nil
}

// SavePortfolio saves or updates a portfolio
func (s *InMemoryPortfolioStore) SavePortfolio(portfolio *models.Portfolio) error {
	if portfolio == nil {
		return errors.InvalidArgument("cannot save nil portfolio")
	}

	if portfolio.ID == "" {
		return errors.InvalidArgument("portfolio ID cannot be empty")
	}

	if portfolio.Universe == "" {
		return errors.InvalidArgument("portfolio universe cannot be empty")
	}

	if len(portfolio.Weights) == 0 {
		return errors.InvalidArgument("portfolio needs at least one weight")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.portfolios[portfolio.ID] = clonePortfolio(portfolio)
	s.log.Debugf("Saved portfolio %s with %d weights on %s", portfolio.ID, len(portfolio.Weights), portfolio.Universe)
	return nil
}

// DeletePortfolio removes a portfolio by ID
func (s *InMemoryPortfolioStore) DeletePortfolio(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.portfolios[id]; !exists {
		return errors.NotFound("portfolio not found: " + id)
	}

	delete(s.portfolios, id)
	return nil
}

func clonePortfolio(p *models.Portfolio) *models.Portfolio {
	c := *p
	c.Weights = make(models.Weights, len(p.Weights))
	for k, v := range p.Weights {
		c.Weights[k] = v
	}
	return &c
}
