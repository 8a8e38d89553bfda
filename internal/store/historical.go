package store

import (
	"sort"
	"sync"

	"github.com/rzzdr/portfolio-risk-engine/pkg/models"
	"github.com/rzzdr/portfolio-risk-engine/pkg/utils/errors"
	"github.com/rzzdr/portfolio-risk-engine/pkg/utils/logger"
)

// InMemoryPriceStore holds aligned price tables keyed by universe name.
// Stored tables are treated as immutable once saved.
type InMemoryPriceStore struct {
	tables map[string]*models.PriceTable
	mu     sync.RWMutex
	log    *logger.Logger
}

// NewInMemoryPriceStore creates an empty price store
func NewInMemoryPriceStore() *InMemoryPriceStore {
	return &InMemoryPriceStore{
		tables: make(map[string]*models.PriceTable),
		log:    logger.GetLogger("store.historical"),
	}
}

// GetPrices returns the price table of a universe
func (s *InMemoryPriceStore) GetPrices(universe string) (*models.PriceTable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	table, exists := s.tables[universe]
	if !exists {
		return nil, errors.NotFound("price universe not found: " + universe)
	}
	return table, nil
}

// SavePrices replaces the price table of a universe
func (s *InMemoryPriceStore) SavePrices(universe string, table *models.PriceTable) error {
	if universe == "" {
		return errors.InvalidArgument("universe name cannot be empty")
	}
	if table == nil || table.Rows() == 0 {
		return errors.InvalidArgument("price table cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tables[universe] = table
	s.log.Infof("Stored %d rows x %d assets for universe %s", table.Rows(), len(table.Assets), universe)
	return nil
}

// Universes lists the stored universe names in order
func (s *InMemoryPriceStore) Universes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
