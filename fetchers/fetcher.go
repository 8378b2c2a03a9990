// Package fetchers contains the per-entity provider adapters. A fetcher
// talks to one provider, normalizes its data into the domain model and
// persists nothing; orchestrators own all writes.
package fetchers

import (
	"context"

	"github.com/holdsight/wealth-api/models"
)

// FinancialFetcher is the uniform contract every financial-institution
// adapter implements. One instance serves one entity and is called
// sequentially; instances for different entities may run interleaved.
//
// Only the features declared by the fetcher's entity are ever called, so
// adapters without HISTORIC or AUTO_CONTRIBUTIONS support keep the stub
// from UnsupportedFeatures.
type FinancialFetcher interface {
	// Login establishes or resumes a provider session. It must honor
	// LoginOptions: with AvoidNewLogin and no fresh session it returns
	// NOT_LOGGED without contacting the provider.
	Login(ctx context.Context, params models.LoginParams) (models.LoginResult, error)

	// GlobalPosition returns a full snapshot filling only the products the
	// entity declares.
	GlobalPosition(ctx context.Context) (models.GlobalPosition, error)

	// Transactions returns only transactions whose ref is not in
	// registeredRefs. Idempotent with respect to ref.
	Transactions(ctx context.Context, registeredRefs map[string]bool, options models.FetchOptions) (models.Transactions, error)

	// HistoricalPosition returns the aggregated lifecycle view of every
	// investment the provider has ever held for the user.
	HistoricalPosition(ctx context.Context) (models.HistoricalPosition, error)

	// AutoContributions returns the standing periodic orders.
	AutoContributions(ctx context.Context) (models.AutoContributions, error)
}

// CryptoFetcher reads raw balances for connected wallet addresses.
type CryptoFetcher interface {
	Fetch(ctx context.Context, request models.CryptoFetchRequest) (models.RawCryptoWallet, error)

	// FetchMultiple batches several wallets in one provider round trip.
	// Implementations without batch support loop over Fetch.
	FetchMultiple(ctx context.Context, requests []models.CryptoFetchRequest) ([]models.RawCryptoWallet, error)
}

// UnsupportedFeatures provides stubs for optional contract methods.
type UnsupportedFeatures struct{}

func (UnsupportedFeatures) HistoricalPosition(context.Context) (models.HistoricalPosition, error) {
	return models.HistoricalPosition{}, nil
}

func (UnsupportedFeatures) AutoContributions(context.Context) (models.AutoContributions, error) {
	return models.AutoContributions{}, nil
}
