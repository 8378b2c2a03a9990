package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/holdsight/wealth-api/models"
)

// The orchestrators depend on narrow views of the persistence layer. The
// store package provides the production implementations; tests substitute
// in-memory ones.

// Transactor runs a function atomically. Nested calls join the outer
// transaction.
type Transactor interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

type EntityStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (models.Entity, error)
	GetByName(ctx context.Context, name string) (*models.Entity, error)
	GetByNaturalID(ctx context.Context, naturalID string) (*models.Entity, error)
	Insert(ctx context.Context, e models.Entity) error
	Update(ctx context.Context, e models.Entity) error
	Upsert(ctx context.Context, e models.Entity) error
}

type CredentialsStore interface {
	Save(ctx context.Context, entityID uuid.UUID, creds models.EntityCredentials) error
	Get(ctx context.Context, entityID uuid.UUID) (models.EntityCredentials, error)
	Delete(ctx context.Context, entityID uuid.UUID) error
	UpdateExpiration(ctx context.Context, entityID uuid.UUID, expiredAt *time.Time) error
	UpdateLastUsage(ctx context.Context, entityID uuid.UUID) error
	ConnectedEntities(ctx context.Context) ([]uuid.UUID, error)
}

type SessionStore interface {
	Save(ctx context.Context, entityID uuid.UUID, session models.EntitySession) error
	Get(ctx context.Context, entityID uuid.UUID) (*models.EntitySession, error)
	Delete(ctx context.Context, entityID uuid.UUID) error
}

type PositionStore interface {
	Save(ctx context.Context, position models.GlobalPosition) error
	DeleteByID(ctx context.Context, id uuid.UUID) error
}

type TransactionStore interface {
	Save(ctx context.Context, txs models.Transactions) error
	GetRegisteredRefs(ctx context.Context, entityID uuid.UUID) (map[string]bool, error)
	GetByEntity(ctx context.Context, entityID uuid.UUID) (models.Transactions, error)
	DeleteBySource(ctx context.Context, source models.DataSource) error
}

type HistoricStore interface {
	Save(ctx context.Context, entries []models.HistoricEntry) error
	DeleteByEntity(ctx context.Context, entityID uuid.UUID) error
}

type ContributionsStore interface {
	Save(ctx context.Context, entityID uuid.UUID, contributions models.AutoContributions, source models.DataSource) error
}

type FetchRecordStore interface {
	Save(ctx context.Context, records []models.FetchRecord) error
	GetLast(ctx context.Context, entityID uuid.UUID, feature models.Feature) (*models.FetchRecord, error)
}

type ExternalEntityStore interface {
	Upsert(ctx context.Context, e models.ExternalEntity) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ExternalEntity, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.ExternalEntityStatus) error
	DeleteByID(ctx context.Context, id uuid.UUID) error
}

type WalletStore interface {
	Insert(ctx context.Context, connection models.CryptoWalletConnection) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetByEntityID(ctx context.Context, entityID uuid.UUID) ([]models.CryptoWalletConnection, error)
	ConnectedEntities(ctx context.Context) (map[uuid.UUID]bool, error)
}

type AssetRegistry interface {
	Register(ctx context.Context, asset models.CryptoAssetInfo) error
	Known(ctx context.Context, asset models.CryptoAssetInfo) (bool, error)
}

type ImportJournal interface {
	Insert(ctx context.Context, entries []models.VirtualDataImport) error
	GetLastImport(ctx context.Context, source models.DataSource) ([]models.VirtualDataImport, error)
}

// PriceProvider quotes assets in the target fiat and resolves display
// metadata for assets it cannot quote.
type PriceProvider interface {
	Price(ctx context.Context, asset models.RawCryptoAsset) (*decimal.Decimal, error)
	SearchAsset(ctx context.Context, asset models.RawCryptoAsset) (*models.CryptoAssetInfo, error)
}
