package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/holdsight/wealth-api/config"
	"github.com/holdsight/wealth-api/models"
)

func newCryptoFixture(prices PriceProvider, registry *memAssetRegistry, records *memRecordStore) (*CryptoService, *memWalletStore, *memPositionStore) {
	wallets := newMemWalletStore()
	positions := &memPositionStore{}
	service := NewCryptoService(
		config.Config{CryptoCooldown: 2 * time.Minute, TargetFiat: "EUR"},
		newMemEntityStore(), wallets, positions, records, registry,
		passTx{}, NewEntityGate(), prices,
	)
	return service, wallets, positions
}

func TestCryptoFetch_UnpricedAssetRegisteredFromProviderCandidate(t *testing.T) {
	prices := &stubPrices{candidate: &models.CryptoAssetInfo{
		Symbol: "WLUNA",
		Name:   "Wrapped LUNA",
		Type:   models.CryptoToken,
	}}
	registry := &memAssetRegistry{}
	service, wallets, positions := newCryptoFixture(prices, registry, newMemRecordStore())

	connection := models.CryptoWalletConnection{
		ID:       uuid.New(),
		EntityID: models.EthereumWallet.ID,
		Address:  "0xwallet",
		Created:  time.Now(),
	}
	if err := wallets.Insert(context.Background(), connection); err != nil {
		t.Fatalf("insert connection failed: %v", err)
	}
	service.fetchers[models.EthereumWallet.ID] = &stubCryptoFetcher{wallets: []models.RawCryptoWallet{{
		ConnectionID: connection.ID,
		Address:      connection.Address,
		Assets: []models.RawCryptoAsset{{
			Symbol:          "wluna",
			Name:            "unknown token",
			Amount:          dec("10"),
			Type:            models.CryptoToken,
			ContractAddress: "0xABC",
		}},
	}}}

	entityID := models.EthereumWallet.ID
	result, err := service.Fetch(context.Background(), &entityID)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if result.Code != models.FetchCompleted {
		t.Fatalf("expected COMPLETED, got %s", result.Code)
	}

	if prices.searches != 1 {
		t.Fatalf("expected one provider lookup, got %d", prices.searches)
	}
	if len(registry.registered) != 1 {
		t.Fatalf("expected 1 registered asset, got %d", len(registry.registered))
	}
	registered := registry.registered[0]
	if registered.Symbol != "WLUNA" || registered.Name != "Wrapped LUNA" {
		t.Fatalf("expected the provider candidate's metadata, got %+v", registered)
	}
	// The candidate carried no contract, so the on-chain one is kept.
	if registered.ContractAddress != "0xABC" {
		t.Fatalf("expected the raw contract kept, got %q", registered.ContractAddress)
	}

	if len(positions.saved) != 1 {
		t.Fatalf("expected 1 saved position, got %d", len(positions.saved))
	}
	crypto, ok := positions.saved[0].Products[models.ProductCrypto].(models.CryptoCurrencies)
	if !ok {
		t.Fatalf("expected a crypto payload, got %T", positions.saved[0].Products[models.ProductCrypto])
	}
	if crypto.Entries[0].Assets[0].MarketValue != nil {
		t.Fatal("an unpriced asset must keep a nil market value")
	}
}

func TestCryptoFetch_PricedAssetSkipsRegistration(t *testing.T) {
	price := dec("2500")
	prices := &stubPrices{quotes: map[string]decimal.Decimal{"native:ETH": price}}
	registry := &memAssetRegistry{}
	service, wallets, positions := newCryptoFixture(prices, registry, newMemRecordStore())

	connection := models.CryptoWalletConnection{
		ID:       uuid.New(),
		EntityID: models.EthereumWallet.ID,
		Address:  "0xwallet",
		Created:  time.Now(),
	}
	if err := wallets.Insert(context.Background(), connection); err != nil {
		t.Fatalf("insert connection failed: %v", err)
	}
	service.fetchers[models.EthereumWallet.ID] = &stubCryptoFetcher{wallets: []models.RawCryptoWallet{{
		ConnectionID: connection.ID,
		Address:      connection.Address,
		Assets: []models.RawCryptoAsset{{
			Symbol: "ETH",
			Name:   "Ethereum",
			Amount: dec("2"),
			Type:   models.CryptoNative,
		}},
	}}}

	entityID := models.EthereumWallet.ID
	result, err := service.Fetch(context.Background(), &entityID)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if result.Code != models.FetchCompleted {
		t.Fatalf("expected COMPLETED, got %s", result.Code)
	}
	if prices.searches != 0 || len(registry.registered) != 0 {
		t.Fatal("a quoted asset must not hit the registry")
	}

	crypto := positions.saved[0].Products[models.ProductCrypto].(models.CryptoCurrencies)
	asset := crypto.Entries[0].Assets[0]
	if asset.MarketValue == nil || asset.MarketValue.String() != "5000" {
		t.Fatalf("expected market value 5000, got %v", asset.MarketValue)
	}
	if asset.Currency != "EUR" {
		t.Fatalf("expected target fiat, got %s", asset.Currency)
	}
}

func TestCryptoFetch_Cooldown(t *testing.T) {
	records := newMemRecordStore()
	records.set(models.EthereumWallet.ID, models.FeaturePosition, time.Now().Add(-time.Second))
	service, _, _ := newCryptoFixture(&stubPrices{}, &memAssetRegistry{}, records)

	entityID := models.EthereumWallet.ID
	result, err := service.Fetch(context.Background(), &entityID)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if result.Code != models.FetchCooldown {
		t.Fatalf("expected COOLDOWN, got %s", result.Code)
	}
}

func TestTruncate_RuneBoundaries(t *testing.T) {
	cases := []struct {
		in       string
		max      int
		expected string
	}{
		{"abcdef", 3, "abc"},
		{"abc", 5, "abc"},
		{"áéíóú", 3, "áéí"},
		{"日本円トークン", 4, "日本円ト"},
	}
	for _, tc := range cases {
		if got := truncate(tc.in, tc.max); got != tc.expected {
			t.Fatalf("truncate(%q, %d) expected %q, got %q", tc.in, tc.max, tc.expected, got)
		}
	}
}
