package services

import (
	"github.com/google/uuid"

	"github.com/holdsight/wealth-api/fetchers"
	"github.com/holdsight/wealth-api/models"
)

// FetcherRegistry maps native entity ids to fetcher factories. A fresh
// fetcher is built per run; instances hold per-session state and are not
// shared between runs.
type FetcherRegistry struct {
	factories map[uuid.UUID]func() fetchers.FinancialFetcher
}

func NewFetcherRegistry() *FetcherRegistry {
	return &FetcherRegistry{factories: map[uuid.UUID]func() fetchers.FinancialFetcher{}}
}

// DefaultFetcherRegistry wires every native financial institution.
func DefaultFetcherRegistry() *FetcherRegistry {
	r := NewFetcherRegistry()
	r.Register(models.MyInvestor.ID, func() fetchers.FinancialFetcher { return fetchers.NewMyInvestorFetcher() })
	r.Register(models.Unicaja.ID, func() fetchers.FinancialFetcher { return fetchers.NewUnicajaFetcher() })
	r.Register(models.Urbanitae.ID, func() fetchers.FinancialFetcher { return fetchers.NewUrbanitaeFetcher() })
	r.Register(models.Sego.ID, func() fetchers.FinancialFetcher { return fetchers.NewSegoFetcher() })
	return r
}

func (r *FetcherRegistry) Register(entityID uuid.UUID, factory func() fetchers.FinancialFetcher) {
	r.factories[entityID] = factory
}

func (r *FetcherRegistry) For(entityID uuid.UUID) (fetchers.FinancialFetcher, bool) {
	factory, ok := r.factories[entityID]
	if !ok {
		return nil, false
	}
	return factory(), true
}
