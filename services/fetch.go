package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/holdsight/wealth-api/config"
	"github.com/holdsight/wealth-api/fetchers"
	"github.com/holdsight/wealth-api/models"
)

// FetchEvent is broadcast to connected clients after every finished run.
type FetchEvent struct {
	EntityID uuid.UUID              `json:"entity_id"`
	Code     models.FetchResultCode `json:"code"`
	Features []models.Feature       `json:"features,omitempty"`
	Date     time.Time              `json:"date"`
}

// EventSink receives fetch events; the websocket hub implements it.
type EventSink interface {
	Publish(event FetchEvent)
}

type noopSink struct{}

func (noopSink) Publish(FetchEvent) {}

// FetchService is the native fetch orchestrator: it gates concurrent runs,
// enforces per-feature cooldowns, drives the login flow and commits every
// artifact of a run in one transaction.
type FetchService struct {
	cfg           config.Config
	entities      EntityStore
	credentials   CredentialsStore
	positions     PositionStore
	transactions  TransactionStore
	historic      HistoricStore
	contributions ContributionsStore
	records       FetchRecordStore
	tx            Transactor
	gate          *EntityGate
	login         *LoginService
	registry      *FetcherRegistry
	log           *logrus.Logger
	events        EventSink
}

func NewFetchService(
	cfg config.Config,
	entities EntityStore,
	credentials CredentialsStore,
	positions PositionStore,
	transactions TransactionStore,
	historic HistoricStore,
	contributions ContributionsStore,
	records FetchRecordStore,
	tx Transactor,
	gate *EntityGate,
	login *LoginService,
	registry *FetcherRegistry,
) *FetchService {
	return &FetchService{
		cfg:           cfg,
		entities:      entities,
		credentials:   credentials,
		positions:     positions,
		transactions:  transactions,
		historic:      historic,
		contributions: contributions,
		records:       records,
		tx:            tx,
		gate:          gate,
		login:         login,
		registry:      registry,
		log:           config.Logger(),
		events:        noopSink{},
	}
}

// SetEventSink plugs in the websocket hub. Safe to leave unset.
func (s *FetchService) SetEventSink(sink EventSink) {
	if sink != nil {
		s.events = sink
	}
}

// Fetch refreshes one entity, or every connected entity when the request
// names none.
func (s *FetchService) Fetch(ctx context.Context, req models.FetchRequest) (models.FetchResult, error) {
	if req.EntityID == nil {
		return s.fetchAll(ctx, req)
	}

	entity, err := s.entities.GetByID(ctx, *req.EntityID)
	if err != nil {
		return models.FetchResult{}, err
	}

	release, err := s.gate.TryAcquire(entity.ID)
	if err != nil {
		return models.FetchResult{}, err
	}
	defer release()

	result, err := s.fetchEntity(ctx, entity, req.Features, req.FetchOptions, req.LoginOptions, req.TwoFactor)
	if err != nil {
		return models.FetchResult{}, err
	}
	s.publish(entity.ID, result, req.Features)
	return result, nil
}

func (s *FetchService) fetchAll(ctx context.Context, req models.FetchRequest) (models.FetchResult, error) {
	connected, err := s.credentials.ConnectedEntities(ctx)
	if err != nil {
		return models.FetchResult{}, err
	}

	merged := models.FetchResult{
		Code: models.FetchCompleted,
		Data: map[uuid.UUID]models.FetchedData{},
	}

	for _, entityID := range connected {
		entity, err := s.entities.GetByID(ctx, entityID)
		if err != nil {
			merged.Errors = append(merged.Errors, models.EntityError{EntityID: entityID, Error: err.Error()})
			continue
		}
		if entity.Disabled {
			continue
		}

		release, err := s.gate.TryAcquire(entity.ID)
		if err != nil {
			merged.Errors = append(merged.Errors, models.EntityError{EntityID: entityID, Error: err.Error()})
			continue
		}

		// Bulk runs never trigger interactive logins; stale sessions are
		// reported, not re-established.
		options := models.LoginOptions{AvoidNewLogin: true}
		result, err := s.fetchEntity(ctx, entity, req.Features, req.FetchOptions, options, nil)
		release()

		if err != nil {
			merged.Errors = append(merged.Errors, models.EntityError{EntityID: entityID, Error: err.Error()})
			continue
		}

		s.publish(entity.ID, result, req.Features)

		switch result.Code {
		case models.FetchCompleted:
			for id, data := range result.Data {
				merged.Data[id] = data
			}
		case models.FetchCooldown:
			// Still fresh; nothing to report.
		default:
			merged.Errors = append(merged.Errors, models.EntityError{EntityID: entityID, Error: string(result.Code)})
		}
	}

	if len(merged.Errors) > 0 {
		merged.Code = models.FetchPartiallyCompleted
	}
	return merged, nil
}

func (s *FetchService) fetchEntity(ctx context.Context, entity models.Entity, features []models.Feature, fetchOptions models.FetchOptions, loginOptions models.LoginOptions, twoFactor *models.TwoFactor) (models.FetchResult, error) {
	if entity.Disabled {
		return models.FetchResult{Code: models.FetchDisabled}, nil
	}

	if len(features) == 0 {
		features = entity.Features
	}
	if !entity.SupportsAll(features) {
		return models.FetchResult{Code: models.FetchFeatureNotSupported}, nil
	}

	if len(features) == 0 {
		return models.FetchResult{Code: models.FetchFeatureNotSupported}, nil
	}

	due, cooldownErr := s.dueFeatures(ctx, entity.ID, features)
	if len(due) == 0 {
		return models.FetchResult{
			Code:    models.FetchCooldown,
			Details: cooldownErr.Details(),
		}, nil
	}

	credentials, err := s.credentials.Get(ctx, entity.ID)
	if err != nil {
		return models.FetchResult{}, err
	}
	if credentials == nil {
		return models.FetchResult{Code: models.FetchNoCredentials}, nil
	}

	fetcher, ok := s.registry.For(entity.ID)
	if !ok {
		return models.FetchResult{}, &models.EntityNotFoundError{ID: entity.ID}
	}

	loginResult, err := s.login.Login(ctx, fetcher, entity, credentials, twoFactor, loginOptions)
	if err != nil {
		return s.mapRemoteError(entity, err)
	}
	if code, bad := models.FetchCodeForLogin(loginResult.Code); bad {
		details := loginResult.Details
		if loginResult.ProcessID != "" {
			if details == nil {
				details = map[string]any{}
			}
			details["processId"] = loginResult.ProcessID
		}
		return models.FetchResult{Code: code, Details: details}, nil
	}

	data, historicPosition, err := s.runFeatures(ctx, fetcher, entity, due, fetchOptions)
	if err != nil {
		return s.mapRemoteError(entity, err)
	}

	now := time.Now()
	records := make([]models.FetchRecord, 0, len(due))
	for _, feature := range due {
		records = append(records, models.FetchRecord{EntityID: entity.ID, Feature: feature, Date: now})
	}

	err = s.tx.Do(ctx, func(ctx context.Context) error {
		if data.Position != nil {
			if err := s.positions.Save(ctx, *data.Position); err != nil {
				return err
			}
		}
		if data.Transactions != nil && !data.Transactions.Empty() {
			if err := s.transactions.Save(ctx, *data.Transactions); err != nil {
				return err
			}
		}
		if historicPosition != nil {
			stored, err := s.transactions.GetByEntity(ctx, entity.ID)
			if err != nil {
				return err
			}
			entries := buildHistoricEntries(entity.ID, *historicPosition, stored.Investment)
			if err := s.historic.DeleteByEntity(ctx, entity.ID); err != nil {
				return err
			}
			if err := s.historic.Save(ctx, entries); err != nil {
				return err
			}
			data.Historic = entries
		}
		if data.AutoContributions != nil {
			if err := s.contributions.Save(ctx, entity.ID, *data.AutoContributions, models.SourceReal); err != nil {
				return err
			}
		}
		return s.records.Save(ctx, records)
	})
	if err != nil {
		return models.FetchResult{}, err
	}

	s.log.WithFields(logrus.Fields{
		"entity":   entity.Name,
		"features": due,
	}).Info("fetch completed")

	return models.SingleResult(models.FetchCompleted, entity.ID, data), nil
}

// runFeatures calls the fetcher in dispatch order so later features can rely
// on data produced by earlier ones.
func (s *FetchService) runFeatures(ctx context.Context, fetcher fetchers.FinancialFetcher, entity models.Entity, due []models.Feature, options models.FetchOptions) (models.FetchedData, *models.HistoricalPosition, error) {
	requested := map[models.Feature]bool{}
	for _, feature := range due {
		requested[feature] = true
	}

	var (
		data             models.FetchedData
		historicPosition *models.HistoricalPosition
	)
	for _, feature := range models.FeatureDispatchOrder {
		if !requested[feature] {
			continue
		}
		switch feature {
		case models.FeaturePosition:
			position, err := fetcher.GlobalPosition(ctx)
			if err != nil {
				return models.FetchedData{}, nil, err
			}
			data.Position = &position
		case models.FeatureTransactions:
			refs, err := s.transactions.GetRegisteredRefs(ctx, entity.ID)
			if err != nil {
				return models.FetchedData{}, nil, err
			}
			transactions, err := fetcher.Transactions(ctx, refs, options)
			if err != nil {
				return models.FetchedData{}, nil, err
			}
			data.Transactions = &transactions
		case models.FeatureHistoric:
			position, err := fetcher.HistoricalPosition(ctx)
			if err != nil {
				return models.FetchedData{}, nil, err
			}
			historicPosition = &position
		case models.FeatureAutoContributions:
			contributions, err := fetcher.AutoContributions(ctx)
			if err != nil {
				return models.FetchedData{}, nil, err
			}
			data.AutoContributions = &contributions
		}
	}
	return data, historicPosition, nil
}

// dueFeatures filters the requested features down to those whose cooldown
// has elapsed. When everything is still cooling the returned error carries
// the shortest remaining wait.
func (s *FetchService) dueFeatures(ctx context.Context, entityID uuid.UUID, features []models.Feature) ([]models.Feature, *models.CooldownError) {
	now := time.Now()
	var (
		due     []models.Feature
		coldest *models.CooldownError
	)
	for _, feature := range features {
		record, err := s.records.GetLast(ctx, entityID, feature)
		if err != nil || record == nil {
			due = append(due, feature)
			continue
		}
		cooldown := s.cooldownFor(feature)
		elapsed := now.Sub(record.Date)
		if elapsed >= cooldown {
			due = append(due, feature)
			continue
		}
		wait := cooldown - elapsed
		if coldest == nil || wait < coldest.Wait {
			coldest = &models.CooldownError{Feature: feature, LastUpdate: record.Date, Wait: wait}
		}
	}
	return due, coldest
}

func (s *FetchService) cooldownFor(feature models.Feature) time.Duration {
	switch feature {
	case models.FeatureTransactions:
		return s.cfg.TransactionsCooldown
	default:
		return s.cfg.PositionCooldown
	}
}

func (s *FetchService) mapRemoteError(entity models.Entity, err error) (models.FetchResult, error) {
	switch {
	case errors.Is(err, models.ErrTooManyRequests):
		return models.FetchResult{Code: models.FetchTooManyRequests}, nil
	case errors.Is(err, models.ErrInvalidCredentials):
		return models.FetchResult{Code: models.FetchInvalidCredentials}, nil
	default:
		s.log.WithFields(logrus.Fields{
			"entity": entity.Name,
			"error":  err.Error(),
		}).Warn("provider fetch failed")
		return models.FetchResult{
			Code:   models.FetchRemoteFailed,
			Errors: []models.EntityError{{EntityID: entity.ID, Error: err.Error()}},
		}, nil
	}
}

func (s *FetchService) publish(entityID uuid.UUID, result models.FetchResult, features []models.Feature) {
	s.events.Publish(FetchEvent{
		EntityID: entityID,
		Code:     result.Code,
		Features: features,
		Date:     time.Now(),
	})
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
