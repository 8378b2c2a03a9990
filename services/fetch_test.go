package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/holdsight/wealth-api/config"
	"github.com/holdsight/wealth-api/fetchers"
	"github.com/holdsight/wealth-api/models"
)

func fetchTestConfig() config.Config {
	return config.Config{
		PositionCooldown:     2 * time.Hour,
		TransactionsCooldown: 30 * time.Minute,
	}
}

func testEntity(name string, features ...models.Feature) models.Entity {
	return models.Entity{
		ID:       uuid.New(),
		Name:     name,
		Type:     models.EntityTypeFinancialInstitution,
		Origin:   models.EntityOriginNative,
		Features: features,
		IsReal:   true,
	}
}

type fetchFixture struct {
	service      *FetchService
	entities     *memEntityStore
	credentials  *memCredentialsStore
	positions    *memPositionStore
	transactions *memTransactionStore
	records      *memRecordStore
	registry     *FetcherRegistry
}

func newFetchFixture(entities ...models.Entity) *fetchFixture {
	f := &fetchFixture{
		entities:     newMemEntityStore(entities...),
		credentials:  newMemCredentialsStore(),
		positions:    &memPositionStore{},
		transactions: newMemTransactionStore(),
		records:      newMemRecordStore(),
		registry:     NewFetcherRegistry(),
	}
	login := NewLoginService(f.entities, f.credentials, newMemSessionStore(), f.registry)
	f.service = NewFetchService(fetchTestConfig(), f.entities, f.credentials, f.positions,
		f.transactions, &memHistoricStore{}, newMemContributionsStore(), f.records,
		passTx{}, NewEntityGate(), login, f.registry)
	return f
}

func TestFetch_CooldownShortCircuits(t *testing.T) {
	entity := testEntity("FreshBank", models.FeaturePosition)
	fix := newFetchFixture(entity)
	fix.credentials.creds[entity.ID] = models.EntityCredentials{"user": "u", "password": "p"}
	fix.records.set(entity.ID, models.FeaturePosition, time.Now().Add(-time.Minute))
	fix.registry.Register(entity.ID, func() fetchers.FinancialFetcher {
		t.Fatal("no fetcher must be built while the feature is cooling down")
		return nil
	})

	result, err := fix.service.Fetch(context.Background(), models.FetchRequest{
		EntityID: &entity.ID,
		Features: []models.Feature{models.FeaturePosition},
	})
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if result.Code != models.FetchCooldown {
		t.Fatalf("expected COOLDOWN, got %s", result.Code)
	}
	wait, ok := result.Details["wait"].(int)
	if !ok || wait <= 0 {
		t.Fatalf("expected a positive wait in details, got %v", result.Details)
	}
}

func TestFetch_PassesRegisteredRefsAndCommitsArtifacts(t *testing.T) {
	entity := testEntity("RefBank", models.FeaturePosition, models.FeatureTransactions)
	fix := newFetchFixture(entity)
	fix.credentials.creds[entity.ID] = models.EntityCredentials{"user": "u", "password": "p"}
	fix.transactions.refs[entity.ID] = map[string]bool{"seen-ref": true}

	fetcher := &scriptedFetcher{
		loginResult: models.LoginResult{Code: models.LoginResumed},
		position:    models.NewGlobalPosition(entity.ID, models.Products{}),
		txs: models.Transactions{Account: []models.AccountTx{{
			ID:       uuid.New(),
			Ref:      "new-ref",
			Name:     "Salary",
			Amount:   dec("1200"),
			Currency: "EUR",
			Type:     models.TxTransferIn,
			Date:     time.Now(),
			EntityID: entity.ID,
			Source:   models.SourceReal,
		}}},
	}
	fix.registry.Register(entity.ID, func() fetchers.FinancialFetcher { return fetcher })

	result, err := fix.service.Fetch(context.Background(), models.FetchRequest{EntityID: &entity.ID})
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if result.Code != models.FetchCompleted {
		t.Fatalf("expected COMPLETED, got %s", result.Code)
	}

	if !fetcher.seenRefs["seen-ref"] {
		t.Fatal("already-registered refs must reach the fetcher")
	}
	if len(fix.positions.saved) != 1 {
		t.Fatalf("expected 1 saved position, got %d", len(fix.positions.saved))
	}
	if len(fix.transactions.saved) != 1 {
		t.Fatalf("expected 1 saved transaction batch, got %d", len(fix.transactions.saved))
	}
	if len(fix.records.saved) != 2 {
		t.Fatalf("expected a record per fetched feature, got %d", len(fix.records.saved))
	}
}

func TestFetch_NoCredentials(t *testing.T) {
	entity := testEntity("EmptyBank", models.FeaturePosition)
	fix := newFetchFixture(entity)

	result, err := fix.service.Fetch(context.Background(), models.FetchRequest{EntityID: &entity.ID})
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if result.Code != models.FetchNoCredentials {
		t.Fatalf("expected NO_CREDENTIALS_AVAILABLE, got %s", result.Code)
	}
}

func TestFetchAll_PartialCompletion(t *testing.T) {
	good := testEntity("GoodBank", models.FeaturePosition)
	bad := testEntity("BadBank", models.FeaturePosition)
	fix := newFetchFixture(good, bad)
	fix.credentials.creds[good.ID] = models.EntityCredentials{"user": "u"}
	fix.credentials.creds[bad.ID] = models.EntityCredentials{"user": "u"}
	fix.credentials.connected = []uuid.UUID{good.ID, bad.ID}

	fix.registry.Register(good.ID, func() fetchers.FinancialFetcher {
		return &scriptedFetcher{
			loginResult: models.LoginResult{Code: models.LoginResumed},
			position:    models.NewGlobalPosition(good.ID, models.Products{}),
		}
	})
	fix.registry.Register(bad.ID, func() fetchers.FinancialFetcher {
		return &scriptedFetcher{
			loginResult: models.LoginResult{Code: models.LoginResumed},
			positionErr: errors.New("provider exploded"),
		}
	})

	result, err := fix.service.Fetch(context.Background(), models.FetchRequest{})
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if result.Code != models.FetchPartiallyCompleted {
		t.Fatalf("expected PARTIALLY_COMPLETED, got %s", result.Code)
	}
	if len(result.Errors) != 1 || result.Errors[0].EntityID != bad.ID {
		t.Fatalf("expected the failing entity reported, got %+v", result.Errors)
	}
	if _, ok := result.Data[good.ID]; !ok {
		t.Fatal("expected the healthy entity's data kept")
	}
}
