package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/holdsight/wealth-api/fetchers"
	"github.com/holdsight/wealth-api/models"
)

// In-memory implementations of the orchestrator ports. They record every
// write so tests can assert on what a run committed.

type passTx struct{}

func (passTx) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memEntityStore struct {
	entities map[uuid.UUID]models.Entity
	inserted []models.Entity
}

func newMemEntityStore(entities ...models.Entity) *memEntityStore {
	m := &memEntityStore{entities: map[uuid.UUID]models.Entity{}}
	for _, e := range entities {
		m.entities[e.ID] = e
	}
	return m
}

func (m *memEntityStore) GetByID(_ context.Context, id uuid.UUID) (models.Entity, error) {
	e, ok := m.entities[id]
	if !ok {
		return models.Entity{}, &models.EntityNotFoundError{ID: id}
	}
	return e, nil
}

func (m *memEntityStore) GetByName(_ context.Context, name string) (*models.Entity, error) {
	for _, e := range m.entities {
		if e.Name == name {
			found := e
			return &found, nil
		}
	}
	return nil, nil
}

func (m *memEntityStore) GetByNaturalID(_ context.Context, naturalID string) (*models.Entity, error) {
	for _, e := range m.entities {
		if e.NaturalID == naturalID {
			found := e
			return &found, nil
		}
	}
	return nil, nil
}

func (m *memEntityStore) Insert(_ context.Context, e models.Entity) error {
	m.entities[e.ID] = e
	m.inserted = append(m.inserted, e)
	return nil
}

func (m *memEntityStore) Update(_ context.Context, e models.Entity) error {
	m.entities[e.ID] = e
	return nil
}

func (m *memEntityStore) Upsert(_ context.Context, e models.Entity) error {
	if _, ok := m.entities[e.ID]; !ok {
		m.entities[e.ID] = e
	}
	return nil
}

type memCredentialsStore struct {
	creds     map[uuid.UUID]models.EntityCredentials
	connected []uuid.UUID
}

func newMemCredentialsStore() *memCredentialsStore {
	return &memCredentialsStore{creds: map[uuid.UUID]models.EntityCredentials{}}
}

func (m *memCredentialsStore) Save(_ context.Context, entityID uuid.UUID, creds models.EntityCredentials) error {
	m.creds[entityID] = creds
	return nil
}

func (m *memCredentialsStore) Get(_ context.Context, entityID uuid.UUID) (models.EntityCredentials, error) {
	return m.creds[entityID], nil
}

func (m *memCredentialsStore) Delete(_ context.Context, entityID uuid.UUID) error {
	delete(m.creds, entityID)
	return nil
}

func (m *memCredentialsStore) UpdateExpiration(context.Context, uuid.UUID, *time.Time) error {
	return nil
}

func (m *memCredentialsStore) UpdateLastUsage(context.Context, uuid.UUID) error {
	return nil
}

func (m *memCredentialsStore) ConnectedEntities(context.Context) ([]uuid.UUID, error) {
	return m.connected, nil
}

type memSessionStore struct {
	sessions map[uuid.UUID]models.EntitySession
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{sessions: map[uuid.UUID]models.EntitySession{}}
}

func (m *memSessionStore) Save(_ context.Context, entityID uuid.UUID, session models.EntitySession) error {
	m.sessions[entityID] = session
	return nil
}

func (m *memSessionStore) Get(_ context.Context, entityID uuid.UUID) (*models.EntitySession, error) {
	session, ok := m.sessions[entityID]
	if !ok {
		return nil, nil
	}
	return &session, nil
}

func (m *memSessionStore) Delete(_ context.Context, entityID uuid.UUID) error {
	delete(m.sessions, entityID)
	return nil
}

type memPositionStore struct {
	saved   []models.GlobalPosition
	deleted []uuid.UUID
}

func (m *memPositionStore) Save(_ context.Context, position models.GlobalPosition) error {
	m.saved = append(m.saved, position)
	return nil
}

func (m *memPositionStore) DeleteByID(_ context.Context, id uuid.UUID) error {
	m.deleted = append(m.deleted, id)
	return nil
}

type memTransactionStore struct {
	saved          []models.Transactions
	refs           map[uuid.UUID]map[string]bool
	byEntity       map[uuid.UUID]models.Transactions
	deletedSources []models.DataSource
}

func newMemTransactionStore() *memTransactionStore {
	return &memTransactionStore{
		refs:     map[uuid.UUID]map[string]bool{},
		byEntity: map[uuid.UUID]models.Transactions{},
	}
}

func (m *memTransactionStore) Save(_ context.Context, txs models.Transactions) error {
	m.saved = append(m.saved, txs)
	return nil
}

func (m *memTransactionStore) GetRegisteredRefs(_ context.Context, entityID uuid.UUID) (map[string]bool, error) {
	return m.refs[entityID], nil
}

func (m *memTransactionStore) GetByEntity(_ context.Context, entityID uuid.UUID) (models.Transactions, error) {
	return m.byEntity[entityID], nil
}

func (m *memTransactionStore) DeleteBySource(_ context.Context, source models.DataSource) error {
	m.deletedSources = append(m.deletedSources, source)
	return nil
}

type memHistoricStore struct {
	saved   []models.HistoricEntry
	cleared []uuid.UUID
}

func (m *memHistoricStore) Save(_ context.Context, entries []models.HistoricEntry) error {
	m.saved = append(m.saved, entries...)
	return nil
}

func (m *memHistoricStore) DeleteByEntity(_ context.Context, entityID uuid.UUID) error {
	m.cleared = append(m.cleared, entityID)
	return nil
}

type memContributionsStore struct {
	saved map[uuid.UUID]models.AutoContributions
}

func newMemContributionsStore() *memContributionsStore {
	return &memContributionsStore{saved: map[uuid.UUID]models.AutoContributions{}}
}

func (m *memContributionsStore) Save(_ context.Context, entityID uuid.UUID, contributions models.AutoContributions, _ models.DataSource) error {
	m.saved[entityID] = contributions
	return nil
}

type recordKey struct {
	entityID uuid.UUID
	feature  models.Feature
}

type memRecordStore struct {
	last  map[recordKey]models.FetchRecord
	saved []models.FetchRecord
}

func newMemRecordStore() *memRecordStore {
	return &memRecordStore{last: map[recordKey]models.FetchRecord{}}
}

func (m *memRecordStore) set(entityID uuid.UUID, feature models.Feature, date time.Time) {
	m.last[recordKey{entityID, feature}] = models.FetchRecord{EntityID: entityID, Feature: feature, Date: date}
}

func (m *memRecordStore) Save(_ context.Context, records []models.FetchRecord) error {
	m.saved = append(m.saved, records...)
	for _, record := range records {
		m.last[recordKey{record.EntityID, record.Feature}] = record
	}
	return nil
}

func (m *memRecordStore) GetLast(_ context.Context, entityID uuid.UUID, feature models.Feature) (*models.FetchRecord, error) {
	record, ok := m.last[recordKey{entityID, feature}]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

type memExternalStore struct {
	rows map[uuid.UUID]models.ExternalEntity
}

func newMemExternalStore(rows ...models.ExternalEntity) *memExternalStore {
	m := &memExternalStore{rows: map[uuid.UUID]models.ExternalEntity{}}
	for _, row := range rows {
		m.rows[row.ID] = row
	}
	return m
}

func (m *memExternalStore) Upsert(_ context.Context, e models.ExternalEntity) error {
	m.rows[e.ID] = e
	return nil
}

func (m *memExternalStore) GetByID(_ context.Context, id uuid.UUID) (*models.ExternalEntity, error) {
	row, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (m *memExternalStore) UpdateStatus(_ context.Context, id uuid.UUID, status models.ExternalEntityStatus) error {
	row := m.rows[id]
	row.Status = status
	m.rows[id] = row
	return nil
}

func (m *memExternalStore) DeleteByID(_ context.Context, id uuid.UUID) error {
	delete(m.rows, id)
	return nil
}

type memWalletStore struct {
	connections map[uuid.UUID][]models.CryptoWalletConnection
}

func newMemWalletStore() *memWalletStore {
	return &memWalletStore{connections: map[uuid.UUID][]models.CryptoWalletConnection{}}
}

func (m *memWalletStore) Insert(_ context.Context, connection models.CryptoWalletConnection) error {
	m.connections[connection.EntityID] = append(m.connections[connection.EntityID], connection)
	return nil
}

func (m *memWalletStore) Delete(_ context.Context, id uuid.UUID) error {
	for entityID, connections := range m.connections {
		kept := connections[:0]
		for _, c := range connections {
			if c.ID != id {
				kept = append(kept, c)
			}
		}
		m.connections[entityID] = kept
	}
	return nil
}

func (m *memWalletStore) GetByEntityID(_ context.Context, entityID uuid.UUID) ([]models.CryptoWalletConnection, error) {
	return m.connections[entityID], nil
}

func (m *memWalletStore) ConnectedEntities(context.Context) (map[uuid.UUID]bool, error) {
	connected := map[uuid.UUID]bool{}
	for entityID, connections := range m.connections {
		if len(connections) > 0 {
			connected[entityID] = true
		}
	}
	return connected, nil
}

type memAssetRegistry struct {
	registered []models.CryptoAssetInfo
}

func (m *memAssetRegistry) Register(_ context.Context, asset models.CryptoAssetInfo) error {
	m.registered = append(m.registered, asset)
	return nil
}

func (m *memAssetRegistry) Known(_ context.Context, asset models.CryptoAssetInfo) (bool, error) {
	for _, have := range m.registered {
		if have.Symbol == asset.Symbol && have.ContractAddress == asset.ContractAddress {
			return true, nil
		}
	}
	return false, nil
}

type memJournal struct {
	last     []models.VirtualDataImport
	inserted [][]models.VirtualDataImport
}

func (m *memJournal) Insert(_ context.Context, entries []models.VirtualDataImport) error {
	m.inserted = append(m.inserted, entries)
	m.last = entries
	return nil
}

func (m *memJournal) GetLastImport(context.Context, models.DataSource) ([]models.VirtualDataImport, error) {
	return m.last, nil
}

// stubPrices quotes from a fixed table and hands out one search candidate.
type stubPrices struct {
	quotes    map[string]decimal.Decimal
	candidate *models.CryptoAssetInfo
	searches  int
}

func (s *stubPrices) Price(_ context.Context, asset models.RawCryptoAsset) (*decimal.Decimal, error) {
	price, ok := s.quotes[priceCacheKey(asset)]
	if !ok {
		return nil, nil
	}
	return &price, nil
}

func (s *stubPrices) SearchAsset(context.Context, models.RawCryptoAsset) (*models.CryptoAssetInfo, error) {
	s.searches++
	return s.candidate, nil
}

// scriptedFetcher plays back canned provider responses and records what the
// orchestrator asked for.
type scriptedFetcher struct {
	fetchers.UnsupportedFeatures

	loginResult models.LoginResult
	position    models.GlobalPosition
	positionErr error
	txs         models.Transactions

	seenRefs map[string]bool
}

func (f *scriptedFetcher) Login(context.Context, models.LoginParams) (models.LoginResult, error) {
	return f.loginResult, nil
}

func (f *scriptedFetcher) GlobalPosition(context.Context) (models.GlobalPosition, error) {
	if f.positionErr != nil {
		return models.GlobalPosition{}, f.positionErr
	}
	return f.position, nil
}

func (f *scriptedFetcher) Transactions(_ context.Context, registeredRefs map[string]bool, _ models.FetchOptions) (models.Transactions, error) {
	f.seenRefs = registeredRefs
	return f.txs, nil
}

type stubCryptoFetcher struct {
	wallets []models.RawCryptoWallet
	err     error
}

func (s *stubCryptoFetcher) Fetch(context.Context, models.CryptoFetchRequest) (models.RawCryptoWallet, error) {
	if s.err != nil {
		return models.RawCryptoWallet{}, s.err
	}
	if len(s.wallets) == 0 {
		return models.RawCryptoWallet{}, nil
	}
	return s.wallets[0], nil
}

func (s *stubCryptoFetcher) FetchMultiple(context.Context, []models.CryptoFetchRequest) ([]models.RawCryptoWallet, error) {
	return s.wallets, s.err
}
