package billing

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Catalog caches the hospital service and treatment price lists. It is
// loaded once and reused until Reload.
type Catalog struct {
	repo   CatalogRepository
	logger zerolog.Logger

	mu         sync.RWMutex
	loaded     bool
	services   []CatalogEntry
	treatments []CatalogEntry
}

func NewCatalog(repo CatalogRepository, logger zerolog.Logger) *Catalog {
	return &Catalog{repo: repo, logger: logger}
}

// Entries returns the cached lists, loading them on first use.
func (c *Catalog) Entries(ctx context.Context) (services, treatments []CatalogEntry, err error) {
	c.mu.RLock()
	if c.loaded {
		services, treatments = c.services, c.treatments
		c.mu.RUnlock()
		return services, treatments, nil
	}
	c.mu.RUnlock()
	if err := c.Reload(ctx); err != nil {
		return nil, nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.services, c.treatments, nil
}

// Reload fetches both lists concurrently. A list that fails to load is kept
// empty and the other one is still cached; the error is returned only when
// both fail.
func (c *Catalog) Reload(ctx context.Context) error {
	var (
		services, treatments []CatalogEntry
		svcErr, trtErr       error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		services, svcErr = c.repo.ListHospitalServices(gctx)
		return nil
	})
	g.Go(func() error {
		treatments, trtErr = c.repo.ListTreatments(gctx)
		return nil
	})
	_ = g.Wait()

	if svcErr != nil {
		c.logger.Warn().Err(svcErr).Msg("hospital services unavailable")
	}
	if trtErr != nil {
		c.logger.Warn().Err(trtErr).Msg("treatments unavailable")
	}
	if svcErr != nil && trtErr != nil {
		return fmt.Errorf("load catalog: %w", svcErr)
	}

	c.mu.Lock()
	c.services = services
	c.treatments = treatments
	c.loaded = true
	c.mu.Unlock()
	return nil
}

// CandidateTotal sums the prices of the selected names. A name with no
// matching entry contributes nothing.
func (c *Catalog) CandidateTotal(ctx context.Context, sel Selection) (float64, error) {
	services, treatments, err := c.Entries(ctx)
	if err != nil {
		return 0, err
	}
	return RoundAmount(sumPrices(services, sel.HospitalServices) + sumPrices(treatments, sel.Treatments)), nil
}

func sumPrices(entries []CatalogEntry, names []string) float64 {
	var total float64
	for _, name := range names {
		for _, e := range entries {
			if e.Name == name {
				total += e.Price
				break
			}
		}
	}
	return total
}
