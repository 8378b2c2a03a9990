package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/holdsight/wealth-api/config"
	"github.com/holdsight/wealth-api/models"
)

// GoCardless requisition lifecycle statuses.
const (
	requisitionCreated = "CR"
	requisitionLinked  = "LN"
	requisitionExpired = "EX"
)

// ExternalService orchestrates externally provided entities: linking an
// institution through the PSD2 aggregator and fetching its data.
type ExternalService struct {
	cfg          config.Config
	entities     EntityStore
	external     ExternalEntityStore
	positions    PositionStore
	transactions TransactionStore
	records      FetchRecordStore
	tx           Transactor
	gate         *EntityGate
	provider     *GoCardlessService
	log          *logrus.Logger
	events       EventSink
}

func NewExternalService(
	cfg config.Config,
	entities EntityStore,
	external ExternalEntityStore,
	positions PositionStore,
	transactions TransactionStore,
	records FetchRecordStore,
	tx Transactor,
	gate *EntityGate,
	provider *GoCardlessService,
) *ExternalService {
	return &ExternalService{
		cfg:          cfg,
		entities:     entities,
		external:     external,
		positions:    positions,
		transactions: transactions,
		records:      records,
		tx:           tx,
		gate:         gate,
		provider:     provider,
		log:          config.Logger(),
		events:       noopSink{},
	}
}

func (s *ExternalService) SetEventSink(sink EventSink) {
	if sink != nil {
		s.events = sink
	}
}

func (s *ExternalService) ListInstitutions(ctx context.Context, country string) ([]models.ProviderInstitution, error) {
	return s.provider.GetInstitutions(ctx, country)
}

type externalPayload struct {
	RequisitionID string `json:"requisition_id"`
	InstitutionID string `json:"institution_id"`
}

// Connect starts (or restarts) the link flow for an institution. The caller
// is handed a provider URL to complete the consent at; CompleteLink finishes
// the flow after the redirect.
func (s *ExternalService) Connect(ctx context.Context, req models.ConnectRequest) (models.ConnectResult, error) {
	if !s.provider.Configured() {
		return models.ConnectResult{}, models.ErrIntegrationRequired
	}

	if req.ExternalEntityID != nil && !req.Relink {
		existing, err := s.external.GetByID(ctx, *req.ExternalEntityID)
		if err != nil {
			return models.ConnectResult{}, err
		}
		if existing != nil && existing.Status == models.ExternalLinked {
			return models.ConnectResult{
				Code:             models.ConnectAlreadyLinked,
				ExternalEntityID: &existing.ID,
			}, nil
		}
	}

	institution, err := s.provider.GetInstitution(ctx, req.InstitutionID)
	if err != nil {
		return models.ConnectResult{}, err
	}

	// Institutions that collide with a native integration must go through
	// the native flow instead.
	if existing, err := s.entities.GetByNaturalID(ctx, institution.ID); err != nil {
		return models.ConnectResult{}, err
	} else if existing != nil && existing.Origin == models.EntityOriginNative {
		return models.ConnectResult{}, models.ErrNativeEntityConflict
	}

	redirect := req.RedirectHost + "/external/complete"
	requisition, err := s.provider.CreateRequisition(ctx, institution.ID, redirect, req.UserLanguage)
	if err != nil {
		return models.ConnectResult{}, &models.LinkError{Err: err}
	}

	payload, _ := json.Marshal(externalPayload{
		RequisitionID: requisition.ID,
		InstitutionID: institution.ID,
	})

	externalID := uuid.New()
	if req.ExternalEntityID != nil {
		externalID = *req.ExternalEntityID
	}

	entity, err := s.resolveEntity(ctx, *institution)
	if err != nil {
		// The requisition exists at the provider but nothing references it:
		// drop it so it does not dangle.
		if delErr := s.provider.DeleteRequisition(ctx, requisition.ID); delErr != nil {
			s.log.WithField("requisition", requisition.ID).Warn("orphan requisition cleanup failed")
		}
		return models.ConnectResult{}, &models.LinkError{OrphanExternalEntity: true, Err: err}
	}

	row := models.ExternalEntity{
		ID:                 externalID,
		EntityID:           entity.ID,
		Provider:           models.ProviderGoCardless,
		ProviderInstanceID: requisition.ID,
		Status:             models.ExternalUnlinked,
		Payload:            payload,
		Date:               time.Now(),
	}
	if err := s.external.Upsert(ctx, row); err != nil {
		return models.ConnectResult{}, err
	}

	return models.ConnectResult{
		Code:               models.ConnectContinueWithLink,
		ExternalEntityID:   &externalID,
		Link:               requisition.Link,
		ProviderInstanceID: requisition.ID,
		Payload:            payload,
	}, nil
}

// resolveEntity finds or creates the entity behind an institution. A manual
// entity with the same natural id is adopted and upgraded in place so its
// virtual history stays attached.
func (s *ExternalService) resolveEntity(ctx context.Context, institution models.ProviderInstitution) (models.Entity, error) {
	existing, err := s.entities.GetByNaturalID(ctx, institution.ID)
	if err != nil {
		return models.Entity{}, err
	}
	if existing != nil {
		if existing.Origin == models.EntityOriginManual {
			existing.Origin = models.EntityOriginExternallyProvided
			existing.IsReal = true
			existing.Features = []models.Feature{models.FeaturePosition, models.FeatureTransactions}
			if err := s.entities.Update(ctx, *existing); err != nil {
				return models.Entity{}, err
			}
			s.log.WithField("entity", existing.Name).Info("manual entity adopted by external link")
		}
		return *existing, nil
	}

	entity := models.Entity{
		ID:        uuid.New(),
		Name:      institution.Name,
		NaturalID: institution.ID,
		Type:      institution.Type,
		Origin:    models.EntityOriginExternallyProvided,
		Features:  []models.Feature{models.FeaturePosition, models.FeatureTransactions},
		IsReal:    true,
	}
	if err := s.entities.Insert(ctx, entity); err != nil {
		return models.Entity{}, err
	}
	return entity, nil
}

// CompleteLink is called after the provider redirect. It checks the
// requisition reached its linked state and flips the row.
func (s *ExternalService) CompleteLink(ctx context.Context, externalEntityID uuid.UUID) (*models.ExternalEntity, error) {
	row, err := s.external.GetByID(ctx, externalEntityID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, &models.EntityNotFoundError{ID: externalEntityID}
	}

	requisition, err := s.provider.GetRequisition(ctx, row.ProviderInstanceID)
	if err != nil {
		return nil, err
	}

	switch requisition.Status {
	case requisitionLinked:
		if err := s.external.UpdateStatus(ctx, row.ID, models.ExternalLinked); err != nil {
			return nil, err
		}
		row.Status = models.ExternalLinked
		return row, nil
	case requisitionExpired:
		return nil, models.ErrLinkExpired
	default:
		return nil, fmt.Errorf("%w: requisition still in state %s", models.ErrExternalEntityFailed, requisition.Status)
	}
}

// Unlink deletes the external row and its provider-side requisition.
func (s *ExternalService) Unlink(ctx context.Context, externalEntityID uuid.UUID) error {
	row, err := s.external.GetByID(ctx, externalEntityID)
	if err != nil {
		return err
	}
	if row == nil {
		return &models.EntityNotFoundError{ID: externalEntityID}
	}
	if err := s.provider.DeleteRequisition(ctx, row.ProviderInstanceID); err != nil && !errors.Is(err, models.ErrInstitutionNotFound) {
		return err
	}
	return s.external.DeleteByID(ctx, row.ID)
}

// Fetch refreshes one linked external entity: a position snapshot from its
// account balances plus the booked transactions.
func (s *ExternalService) Fetch(ctx context.Context, req models.ExternalFetchRequest) (models.FetchResult, error) {
	row, err := s.external.GetByID(ctx, req.ExternalEntityID)
	if err != nil {
		return models.FetchResult{}, err
	}
	if row == nil {
		return models.FetchResult{}, &models.EntityNotFoundError{ID: req.ExternalEntityID}
	}
	if row.Status != models.ExternalLinked {
		return models.FetchResult{Code: models.FetchNotConnected}, nil
	}

	entity, err := s.entities.GetByID(ctx, row.EntityID)
	if err != nil {
		return models.FetchResult{}, err
	}
	if entity.Disabled {
		return models.FetchResult{Code: models.FetchDisabled}, nil
	}

	release, err := s.gate.TryAcquire(entity.ID)
	if err != nil {
		return models.FetchResult{}, err
	}
	defer release()

	if record, err := s.records.GetLast(ctx, entity.ID, models.FeaturePosition); err == nil && record != nil {
		elapsed := time.Since(record.Date)
		if elapsed < s.cfg.ExternalCooldown {
			cooldownErr := &models.CooldownError{
				Feature:    models.FeaturePosition,
				LastUpdate: record.Date,
				Wait:       s.cfg.ExternalCooldown - elapsed,
			}
			return models.FetchResult{Code: models.FetchCooldown, Details: cooldownErr.Details()}, nil
		}
	}

	data, err := s.pull(ctx, entity, row)
	if err != nil {
		return s.mapProviderError(ctx, row, err)
	}

	now := time.Now()
	records := []models.FetchRecord{
		{EntityID: entity.ID, Feature: models.FeaturePosition, Date: now},
		{EntityID: entity.ID, Feature: models.FeatureTransactions, Date: now},
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
		return s.records.Save(ctx, records)
	})
	if err != nil {
		return models.FetchResult{}, err
	}

	result := models.SingleResult(models.FetchCompleted, entity.ID, data)
	s.events.Publish(FetchEvent{
		EntityID: entity.ID,
		Code:     result.Code,
		Features: []models.Feature{models.FeaturePosition, models.FeatureTransactions},
		Date:     now,
	})
	return result, nil
}

func (s *ExternalService) pull(ctx context.Context, entity models.Entity, row *models.ExternalEntity) (models.FetchedData, error) {
	requisition, err := s.provider.GetRequisition(ctx, row.ProviderInstanceID)
	if err != nil {
		return models.FetchedData{}, err
	}
	if requisition.Status != requisitionLinked {
		return models.FetchedData{}, models.ErrLinkExpired
	}

	registeredRefs, err := s.transactions.GetRegisteredRefs(ctx, entity.ID)
	if err != nil {
		return models.FetchedData{}, err
	}

	var (
		accounts   []models.Account
		accountTxs []models.AccountTx
	)
	for _, accountID := range requisition.Accounts {
		details, err := s.provider.GetAccountDetails(ctx, accountID)
		if err != nil {
			return models.FetchedData{}, err
		}
		amount, currency, err := s.provider.GetAccountBalance(ctx, accountID)
		if err != nil {
			return models.FetchedData{}, err
		}
		balance, err := decimal.NewFromString(amount)
		if err != nil {
			return models.FetchedData{}, fmt.Errorf("parse balance of account %s: %w", accountID, err)
		}

		accounts = append(accounts, models.Account{
			ID:       uuid.New(),
			Name:     details.Name,
			IBAN:     details.IBAN,
			Total:    balance.Round(2),
			Currency: currency,
			Type:     models.AccountChecking,
			Source:   models.SourceReal,
		})

		providerTxs, err := s.provider.GetAccountTransactions(ctx, accountID)
		if err != nil {
			return models.FetchedData{}, err
		}
		for _, tx := range providerTxs {
			ref := accountID + ":" + tx.TransactionID
			if registeredRefs[ref] {
				continue
			}
			amount, err := decimal.NewFromString(tx.Amount)
			if err != nil {
				return models.FetchedData{}, fmt.Errorf("parse tx %s amount: %w", tx.TransactionID, err)
			}
			date, err := time.Parse("2006-01-02", tx.BookingDate)
			if err != nil {
				return models.FetchedData{}, fmt.Errorf("parse tx %s date: %w", tx.TransactionID, err)
			}
			txType := models.TxTransferIn
			if amount.IsNegative() {
				txType = models.TxTransferOut
			}
			accountTxs = append(accountTxs, models.AccountTx{
				ID:          uuid.New(),
				Ref:         ref,
				Name:        tx.Description,
				Amount:      amount.Abs().Round(2),
				Currency:    tx.Currency,
				Type:        txType,
				Date:        date,
				EntityID:    entity.ID,
				ProductType: models.ProductAccount,
				Source:      models.SourceReal,
			})
		}
	}

	position := models.NewGlobalPosition(entity.ID, models.Products{
		models.ProductAccount: models.Accounts{Entries: accounts},
	})
	return models.FetchedData{
		Position:     &position,
		Transactions: &models.Transactions{Account: accountTxs},
	}, nil
}

// mapProviderError turns provider failures into result codes. An expired
// link additionally flips the row back to UNLINKED so the UI offers a
// relink.
func (s *ExternalService) mapProviderError(ctx context.Context, row *models.ExternalEntity, err error) (models.FetchResult, error) {
	switch {
	case errors.Is(err, models.ErrLinkExpired):
		if updateErr := s.external.UpdateStatus(ctx, row.ID, models.ExternalUnlinked); updateErr != nil {
			return models.FetchResult{}, updateErr
		}
		return models.FetchResult{Code: models.FetchLinkExpired}, nil
	case errors.Is(err, models.ErrTooManyRequests):
		return models.FetchResult{Code: models.FetchTooManyRequests}, nil
	case errors.Is(err, models.ErrIntegrationRequired):
		return models.FetchResult{}, err
	default:
		s.log.WithField("error", err.Error()).Warn("external fetch failed")
		return models.FetchResult{
			Code:   models.FetchRemoteFailed,
			Errors: []models.EntityError{{EntityID: row.EntityID, Error: err.Error()}},
		}, nil
	}
}
