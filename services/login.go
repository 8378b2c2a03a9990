package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/holdsight/wealth-api/config"
	"github.com/holdsight/wealth-api/fetchers"
	"github.com/holdsight/wealth-api/models"
	"github.com/holdsight/wealth-api/utils"
)

// LoginService drives provider logins: it fills in TOTP codes, applies the
// per-entity state machine and keeps stored credentials and sessions in step
// with each outcome.
type LoginService struct {
	entities    EntityStore
	credentials CredentialsStore
	sessions    SessionStore
	registry    *FetcherRegistry
	log         *logrus.Logger

	mu     sync.Mutex
	states map[uuid.UUID]models.LoginState
}

func NewLoginService(entities EntityStore, credentials CredentialsStore, sessions SessionStore, registry *FetcherRegistry) *LoginService {
	return &LoginService{
		entities:    entities,
		credentials: credentials,
		sessions:    sessions,
		registry:    registry,
		log:         config.Logger(),
		states:      map[uuid.UUID]models.LoginState{},
	}
}

// State returns the entity's current position in the login state machine.
func (s *LoginService) State(entityID uuid.UUID) models.LoginState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.states[entityID]; ok {
		return state
	}
	return models.StateLoggedOut
}

func (s *LoginService) transition(entityID uuid.UUID, code models.LoginResultCode) models.LoginState {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := models.NextLoginState(s.states[entityID], code)
	s.states[entityID] = next
	return next
}

// Login runs one leg of the login flow for an already-built fetcher and
// applies every side effect: TOTP autofill, session persistence, credential
// expiry bookkeeping and the state transition.
func (s *LoginService) Login(ctx context.Context, fetcher fetchers.FinancialFetcher, entity models.Entity, credentials models.EntityCredentials, twoFactor *models.TwoFactor, options models.LoginOptions) (models.LoginResult, error) {
	params := models.LoginParams{
		Credentials: credentials.Clone(),
		TwoFactor:   twoFactor,
		Options:     options,
	}

	// Entities with a stored TOTP secret never wait for a user code.
	if secret, ok := credentials["totp_secret"]; ok && secret != "" && (twoFactor == nil || twoFactor.Code == "") {
		code, err := utils.GenerateTOTPCode(secret)
		if err != nil {
			return models.LoginResult{}, fmt.Errorf("generate totp code: %w", err)
		}
		params.TwoFactor = &models.TwoFactor{Code: code}
	}

	session, err := s.sessions.Get(ctx, entity.ID)
	if err != nil {
		return models.LoginResult{}, err
	}
	params.Session = session

	result, err := fetcher.Login(ctx, params)
	if err != nil {
		return models.LoginResult{}, err
	}

	state := s.transition(entity.ID, result.Code)
	s.log.WithFields(logrus.Fields{
		"entity": entity.Name,
		"code":   result.Code,
		"state":  state,
	}).Debug("login attempt finished")

	switch result.Code {
	case models.LoginCreated:
		if result.Session != nil {
			if err := s.sessions.Save(ctx, entity.ID, *result.Session); err != nil {
				return models.LoginResult{}, err
			}
		}
		if err := s.credentials.UpdateLastUsage(ctx, entity.ID); err != nil {
			return models.LoginResult{}, err
		}
		if err := s.credentials.UpdateExpiration(ctx, entity.ID, nil); err != nil {
			return models.LoginResult{}, err
		}
	case models.LoginResumed:
		if err := s.credentials.UpdateLastUsage(ctx, entity.ID); err != nil {
			return models.LoginResult{}, err
		}
	case models.LoginInvalidCredentials:
		now := nowUTC()
		if err := s.credentials.UpdateExpiration(ctx, entity.ID, &now); err != nil {
			return models.LoginResult{}, err
		}
		if err := s.sessions.Delete(ctx, entity.ID); err != nil {
			return models.LoginResult{}, err
		}
	case models.LoginRequired, models.LoginManual:
		if err := s.sessions.Delete(ctx, entity.ID); err != nil {
			return models.LoginResult{}, err
		}
	}

	return result, nil
}

// Connect performs a user-initiated login with fresh credentials and stores
// them once the provider accepts them. CODE_REQUESTED keeps the credentials
// in flight; the caller repeats the call with the 2FA code.
func (s *LoginService) Connect(ctx context.Context, entityID uuid.UUID, credentials models.EntityCredentials, twoFactor *models.TwoFactor) (models.LoginResult, error) {
	entity, ok := models.NativeByID(entityID, models.EntityTypeFinancialInstitution)
	if !ok {
		return models.LoginResult{}, &models.EntityNotFoundError{ID: entityID}
	}

	for field := range entity.CredentialsTemplate {
		credType := entity.CredentialsTemplate[field]
		if credType == models.CredentialInternal || credType == models.CredentialInternalTemp {
			continue
		}
		if credentials[field] == "" {
			return models.LoginResult{}, fmt.Errorf("%w: missing credential field %q", models.ErrInvalidCredentials, field)
		}
	}

	fetcher, ok := s.registry.For(entityID)
	if !ok {
		return models.LoginResult{}, &models.EntityNotFoundError{ID: entityID}
	}

	s.log.WithFields(logrus.Fields{
		"entity":      entity.Name,
		"credentials": utils.MaskSecrets(credentials),
	}).Info("connecting entity")

	result, err := s.Login(ctx, fetcher, entity, credentials, twoFactor, models.LoginOptions{ForceNewSession: true})
	if err != nil {
		return models.LoginResult{}, err
	}

	if result.Code == models.LoginCreated {
		if err := s.entities.Upsert(ctx, entity); err != nil {
			return models.LoginResult{}, err
		}
		if err := s.credentials.Save(ctx, entityID, credentials); err != nil {
			return models.LoginResult{}, err
		}
	}

	return result, nil
}

// Disconnect wipes stored credentials and any resumable session.
func (s *LoginService) Disconnect(ctx context.Context, entityID uuid.UUID) error {
	if err := s.sessions.Delete(ctx, entityID); err != nil {
		return err
	}
	if err := s.credentials.Delete(ctx, entityID); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.states, entityID)
	s.mu.Unlock()
	return nil
}
