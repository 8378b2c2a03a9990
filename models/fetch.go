package models

import (
	"github.com/google/uuid"
)

// FetchResultCode is the uniform outcome taxonomy every orchestrator
// returns to the UI.
type FetchResultCode string

const (
	FetchCompleted           FetchResultCode = "COMPLETED"
	FetchPartiallyCompleted  FetchResultCode = "PARTIALLY_COMPLETED"
	FetchCooldown            FetchResultCode = "COOLDOWN"
	FetchNotLogged           FetchResultCode = "NOT_LOGGED"
	FetchCodeRequested       FetchResultCode = "CODE_REQUESTED"
	FetchLoginRequired       FetchResultCode = "LOGIN_REQUIRED"
	FetchManualLogin         FetchResultCode = "MANUAL_LOGIN"
	FetchInvalidCode         FetchResultCode = "INVALID_CODE"
	FetchInvalidCredentials  FetchResultCode = "INVALID_CREDENTIALS"
	FetchNoCredentials       FetchResultCode = "NO_CREDENTIALS_AVAILABLE"
	FetchFeatureNotSupported FetchResultCode = "FEATURE_NOT_SUPPORTED"
	FetchNotConnected        FetchResultCode = "NOT_CONNECTED"
	FetchRemoteFailed        FetchResultCode = "REMOTE_FAILED"
	FetchLinkExpired         FetchResultCode = "LINK_EXPIRED"
	FetchTooManyRequests     FetchResultCode = "TOO_MANY_REQUESTS"
	FetchDisabled            FetchResultCode = "DISABLED"
)

// badLoginFetchCodes maps login outcomes that abort a fetch to the result
// code surfaced to the caller.
var badLoginFetchCodes = map[LoginResultCode]FetchResultCode{
	LoginNotLogged:          FetchNotLogged,
	LoginCodeRequested:      FetchCodeRequested,
	LoginInvalidCredentials: FetchInvalidCredentials,
	LoginInvalidCode:        FetchInvalidCode,
	LoginManual:             FetchManualLogin,
	LoginRequired:           FetchLoginRequired,
	LoginUnexpectedError:    FetchRemoteFailed,
}

// FetchCodeForLogin translates a non-successful login code. The second
// return is false for CREATED/RESUMED, which let the fetch proceed.
func FetchCodeForLogin(code LoginResultCode) (FetchResultCode, bool) {
	if code == LoginCreated || code == LoginResumed {
		return "", false
	}
	if mapped, ok := badLoginFetchCodes[code]; ok {
		return mapped, true
	}
	return FetchRemoteFailed, true
}

// FetchRequest asks for a refresh of one entity (EntityID set) or of every
// connected entity (EntityID nil). An empty feature list defaults to the
// entity's full declared set.
type FetchRequest struct {
	EntityID     *uuid.UUID   `json:"entity_id,omitempty"`
	Features     []Feature    `json:"features,omitempty"`
	FetchOptions FetchOptions `json:"fetch_options,omitempty"`
	LoginOptions LoginOptions `json:"login_options,omitempty"`
	TwoFactor    *TwoFactor   `json:"two_factor,omitempty"`
}

// FetchedData is everything one entity's fetch run produced.
type FetchedData struct {
	Position          *GlobalPosition    `json:"position,omitempty"`
	Transactions      *Transactions      `json:"transactions,omitempty"`
	Historic          []HistoricEntry    `json:"historic,omitempty"`
	AutoContributions *AutoContributions `json:"auto_contributions,omitempty"`
}

// EntityError records one entity's failure inside a multi-entity run.
type EntityError struct {
	EntityID uuid.UUID `json:"entity_id"`
	Error    string    `json:"error"`
}

// FetchResult is the uniform response of every fetch orchestrator.
type FetchResult struct {
	Code    FetchResultCode           `json:"code"`
	Data    map[uuid.UUID]FetchedData `json:"data,omitempty"`
	Details map[string]any            `json:"details,omitempty"`
	Errors  []EntityError             `json:"errors,omitempty"`
}

// SingleResult builds a result for one entity's fetched data.
func SingleResult(code FetchResultCode, entityID uuid.UUID, data FetchedData) FetchResult {
	return FetchResult{
		Code: code,
		Data: map[uuid.UUID]FetchedData{entityID: data},
	}
}
