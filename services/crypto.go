package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/holdsight/wealth-api/config"
	"github.com/holdsight/wealth-api/fetchers"
	"github.com/holdsight/wealth-api/models"
)

const (
	maxAssetNameLen   = 150
	maxAssetSymbolLen = 30
)

// CryptoService orchestrates crypto wallet entities: wallet connections,
// on-chain balance reads and price enrichment into positions.
type CryptoService struct {
	cfg       config.Config
	entities  EntityStore
	wallets   WalletStore
	positions PositionStore
	records   FetchRecordStore
	registry  AssetRegistry
	tx        Transactor
	gate      *EntityGate
	prices    PriceProvider
	log       *logrus.Logger
	events    EventSink

	fetchers map[uuid.UUID]fetchers.CryptoFetcher
}

func NewCryptoService(
	cfg config.Config,
	entities EntityStore,
	wallets WalletStore,
	positions PositionStore,
	records FetchRecordStore,
	registry AssetRegistry,
	tx Transactor,
	gate *EntityGate,
	prices PriceProvider,
) *CryptoService {
	return &CryptoService{
		cfg:       cfg,
		entities:  entities,
		wallets:   wallets,
		positions: positions,
		records:   records,
		registry:  registry,
		tx:        tx,
		gate:      gate,
		prices:    prices,
		log:       config.Logger(),
		events:    noopSink{},
		fetchers: map[uuid.UUID]fetchers.CryptoFetcher{
			models.EthereumWallet.ID: fetchers.NewEthereumFetcher(cfg.ChainGatewayURL, cfg.ChainGatewayAPIKey),
		},
	}
}

func (s *CryptoService) SetEventSink(sink EventSink) {
	if sink != nil {
		s.events = sink
	}
}

// ConnectWallet registers one address under a native crypto wallet entity.
func (s *CryptoService) ConnectWallet(ctx context.Context, entityID uuid.UUID, address, name string) (models.CryptoWalletConnection, error) {
	entity, ok := models.NativeByID(entityID, models.EntityTypeCryptoWallet)
	if !ok {
		return models.CryptoWalletConnection{}, &models.EntityNotFoundError{ID: entityID}
	}

	connection := models.CryptoWalletConnection{
		ID:       uuid.New(),
		EntityID: entity.ID,
		Address:  address,
		Name:     name,
		Created:  time.Now(),
	}

	err := s.tx.Do(ctx, func(ctx context.Context) error {
		if err := s.entities.Upsert(ctx, entity); err != nil {
			return err
		}
		return s.wallets.Insert(ctx, connection)
	})
	if err != nil {
		return models.CryptoWalletConnection{}, err
	}
	return connection, nil
}

func (s *CryptoService) DisconnectWallet(ctx context.Context, connectionID uuid.UUID) error {
	return s.wallets.Delete(ctx, connectionID)
}

func (s *CryptoService) Wallets(ctx context.Context, entityID uuid.UUID) ([]models.CryptoWalletConnection, error) {
	return s.wallets.GetByEntityID(ctx, entityID)
}

// Fetch refreshes one crypto entity, or every entity with connected wallets
// when entityID is nil.
func (s *CryptoService) Fetch(ctx context.Context, entityID *uuid.UUID) (models.FetchResult, error) {
	if entityID != nil {
		result, err := s.fetchEntity(ctx, *entityID)
		if err != nil {
			return models.FetchResult{}, err
		}
		return result, nil
	}

	connected, err := s.wallets.ConnectedEntities(ctx)
	if err != nil {
		return models.FetchResult{}, err
	}

	merged := models.FetchResult{
		Code: models.FetchCompleted,
		Data: map[uuid.UUID]models.FetchedData{},
	}
	for id := range connected {
		result, err := s.fetchEntity(ctx, id)
		if err != nil {
			merged.Errors = append(merged.Errors, models.EntityError{EntityID: id, Error: err.Error()})
			continue
		}
		switch result.Code {
		case models.FetchCompleted:
			for entity, data := range result.Data {
				merged.Data[entity] = data
			}
		case models.FetchCooldown:
		default:
			merged.Errors = append(merged.Errors, models.EntityError{EntityID: id, Error: string(result.Code)})
		}
	}
	if len(merged.Errors) > 0 {
		merged.Code = models.FetchPartiallyCompleted
	}
	return merged, nil
}

func (s *CryptoService) fetchEntity(ctx context.Context, entityID uuid.UUID) (models.FetchResult, error) {
	entity, ok := models.NativeByID(entityID, models.EntityTypeCryptoWallet)
	if !ok {
		return models.FetchResult{}, &models.EntityNotFoundError{ID: entityID}
	}

	fetcher, ok := s.fetchers[entity.ID]
	if !ok {
		return models.FetchResult{}, &models.EntityNotFoundError{ID: entityID}
	}

	release, err := s.gate.TryAcquire(entity.ID)
	if err != nil {
		return models.FetchResult{}, err
	}
	defer release()

	if record, err := s.records.GetLast(ctx, entity.ID, models.FeaturePosition); err == nil && record != nil {
		elapsed := time.Since(record.Date)
		if elapsed < s.cfg.CryptoCooldown {
			cooldownErr := &models.CooldownError{
				Feature:    models.FeaturePosition,
				LastUpdate: record.Date,
				Wait:       s.cfg.CryptoCooldown - elapsed,
			}
			return models.FetchResult{Code: models.FetchCooldown, Details: cooldownErr.Details()}, nil
		}
	}

	connections, err := s.wallets.GetByEntityID(ctx, entity.ID)
	if err != nil {
		return models.FetchResult{}, err
	}
	if len(connections) == 0 {
		return models.FetchResult{Code: models.FetchNotConnected}, nil
	}

	requests := make([]models.CryptoFetchRequest, 0, len(connections))
	for _, connection := range connections {
		requests = append(requests, models.CryptoFetchRequest{
			ConnectionID: connection.ID,
			Address:      connection.Address,
			Name:         connection.Name,
		})
	}

	raw, err := fetcher.FetchMultiple(ctx, requests)
	if err != nil {
		if errors.Is(err, models.ErrTooManyRequests) {
			return models.FetchResult{Code: models.FetchTooManyRequests}, nil
		}
		return models.FetchResult{
			Code:   models.FetchRemoteFailed,
			Errors: []models.EntityError{{EntityID: entity.ID, Error: err.Error()}},
		}, nil
	}

	wallets := make([]models.CryptoWallet, 0, len(raw))
	for _, rawWallet := range raw {
		wallet, err := s.enrich(ctx, rawWallet)
		if err != nil {
			return models.FetchResult{}, err
		}
		wallets = append(wallets, wallet)
	}

	position := models.NewGlobalPosition(entity.ID, models.Products{
		models.ProductCrypto: models.CryptoCurrencies{Entries: wallets},
	})

	now := time.Now()
	err = s.tx.Do(ctx, func(ctx context.Context) error {
		if err := s.positions.Save(ctx, position); err != nil {
			return err
		}
		return s.records.Save(ctx, []models.FetchRecord{
			{EntityID: entity.ID, Feature: models.FeaturePosition, Date: now},
		})
	})
	if err != nil {
		return models.FetchResult{}, err
	}

	s.log.WithFields(logrus.Fields{
		"entity":  entity.Name,
		"wallets": len(wallets),
	}).Info("crypto fetch completed")

	result := models.SingleResult(models.FetchCompleted, entity.ID, models.FetchedData{Position: &position})
	s.events.Publish(FetchEvent{
		EntityID: entity.ID,
		Code:     result.Code,
		Features: []models.Feature{models.FeaturePosition},
		Date:     now,
	})
	return result, nil
}

// enrich attaches fiat valuations to the raw balances. Assets without a
// known quote keep a nil market value but are still registered so they show
// up for manual pricing.
func (s *CryptoService) enrich(ctx context.Context, raw models.RawCryptoWallet) (models.CryptoWallet, error) {
	wallet := models.CryptoWallet{
		ID:           uuid.New(),
		ConnectionID: raw.ConnectionID,
		Address:      raw.Address,
		Name:         raw.Name,
		Assets:       []models.CryptoAssetPosition{},
	}

	for _, asset := range raw.Assets {
		position := models.CryptoAssetPosition{
			ID:              uuid.New(),
			Symbol:          truncate(asset.Symbol, maxAssetSymbolLen),
			Name:            truncate(asset.Name, maxAssetNameLen),
			Amount:          asset.Amount,
			Type:            asset.Type,
			ContractAddress: asset.ContractAddress,
		}

		if asset.Amount.IsZero() {
			value := decimal.Zero
			position.MarketValue = &value
			position.Currency = s.cfg.TargetFiat
			wallet.Assets = append(wallet.Assets, position)
			continue
		}

		price, err := s.prices.Price(ctx, asset)
		if err != nil {
			return models.CryptoWallet{}, err
		}
		if price != nil {
			value := asset.Amount.Mul(*price).Round(2)
			position.MarketValue = &value
			position.Currency = s.cfg.TargetFiat
		} else {
			if err := s.registerAsset(ctx, asset); err != nil {
				return models.CryptoWallet{}, err
			}
		}

		wallet.Assets = append(wallet.Assets, position)
	}

	return wallet, nil
}

// registerAsset records an asset the price API could not quote. The asset
// info provider resolves its display metadata; when it has no candidate the
// raw fetcher-supplied fields are kept.
func (s *CryptoService) registerAsset(ctx context.Context, asset models.RawCryptoAsset) error {
	info := models.CryptoAssetInfo{
		Symbol:          truncate(asset.Symbol, maxAssetSymbolLen),
		Name:            truncate(asset.Name, maxAssetNameLen),
		Type:            asset.Type,
		ContractAddress: asset.ContractAddress,
	}

	candidate, err := s.prices.SearchAsset(ctx, asset)
	if err != nil {
		s.log.WithField("symbol", asset.Symbol).Warn("asset info lookup failed")
	} else if candidate != nil {
		info.Symbol = truncate(candidate.Symbol, maxAssetSymbolLen)
		info.Name = truncate(candidate.Name, maxAssetNameLen)
		if candidate.ContractAddress != "" {
			info.ContractAddress = candidate.ContractAddress
		}
	}
	info.Registered = time.Now()

	known, err := s.registry.Known(ctx, info)
	if err != nil {
		return err
	}
	if known {
		return nil
	}
	s.log.WithField("symbol", info.Symbol).Debug("registering unpriced asset")
	return s.registry.Register(ctx, info)
}

func truncate(value string, max int) string {
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return string(runes[:max])
}
