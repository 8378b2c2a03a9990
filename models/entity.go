package models

import (
	"time"

	"github.com/google/uuid"
)

// Feature is a kind of data a fetcher can produce for an entity.
type Feature string

const (
	FeaturePosition          Feature = "POSITION"
	FeatureAutoContributions Feature = "AUTO_CONTRIBUTIONS"
	FeatureTransactions      Feature = "TRANSACTIONS"
	FeatureHistoric          Feature = "HISTORIC"
)

// FeatureDispatchOrder is the fixed order features are fetched in so that
// later features can rely on data produced by earlier ones.
var FeatureDispatchOrder = []Feature{
	FeaturePosition,
	FeatureTransactions,
	FeatureHistoric,
	FeatureAutoContributions,
}

type EntityType string

const (
	EntityTypeFinancialInstitution EntityType = "FINANCIAL_INSTITUTION"
	EntityTypeCryptoWallet         EntityType = "CRYPTO_WALLET"
)

type EntityOrigin string

const (
	EntityOriginNative             EntityOrigin = "NATIVE"
	EntityOriginExternallyProvided EntityOrigin = "EXTERNALLY_PROVIDED"
	EntityOriginManual             EntityOrigin = "MANUAL"
)

type SetupLoginType string

const (
	SetupLoginManual    SetupLoginType = "MANUAL"
	SetupLoginAutomated SetupLoginType = "AUTOMATED"
)

// CredentialType tags every field of an entity's credential template so the
// UI knows what to ask for. INTERNAL fields are filled by the fetchers
// themselves (e.g. anti-bot cookies) and are never requested from the user.
type CredentialType string

const (
	CredentialID           CredentialType = "ID"
	CredentialEmail        CredentialType = "EMAIL"
	CredentialPhone        CredentialType = "PHONE"
	CredentialPassword     CredentialType = "PASSWORD"
	CredentialPin          CredentialType = "PIN"
	CredentialAPIToken     CredentialType = "API_TOKEN"
	CredentialTOTPSecret   CredentialType = "TOTP_SECRET"
	CredentialInternal     CredentialType = "INTERNAL"
	CredentialInternalTemp CredentialType = "INTERNAL_TEMP"
)

// Entity is a provider (bank, broker, crypto platform) the user connects to.
// Native entities are immutable after registration; externally provided and
// manual ones are created lazily by the orchestrators.
type Entity struct {
	ID             uuid.UUID      `json:"id"`
	Name           string         `json:"name"`
	NaturalID      string         `json:"natural_id,omitempty"`
	Type           EntityType     `json:"type"`
	Origin         EntityOrigin   `json:"origin"`
	Features       []Feature      `json:"features,omitempty"`
	IsReal         bool           `json:"is_real"`
	SetupLoginType SetupLoginType `json:"setup_login_type,omitempty"`

	// CredentialsTemplate names the credential fields this entity needs.
	// Only meaningful for native entities.
	CredentialsTemplate map[string]CredentialType `json:"credentials_template,omitempty"`

	// PinPositions is the length of the 2FA pin, when the entity uses one.
	PinPositions int `json:"pin_positions,omitempty"`

	Disabled bool `json:"disabled,omitempty"`
}

func (e Entity) HasFeature(f Feature) bool {
	for _, have := range e.Features {
		if have == f {
			return true
		}
	}
	return false
}

// SupportsAll reports whether every requested feature is declared.
func (e Entity) SupportsAll(features []Feature) bool {
	for _, f := range features {
		if !e.HasFeature(f) {
			return false
		}
	}
	return true
}

// EntityCredentials is the opaque credential payload for one entity. It is
// written only by the login flow and read only when building login params.
type EntityCredentials map[string]string

// Clone returns a copy so callers can hand credentials to fetchers without
// sharing the stored map.
func (c EntityCredentials) Clone() EntityCredentials {
	out := make(EntityCredentials, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// EntitySession is a resumable provider session. Its payload is opaque to
// the core; only the fetcher that created it can interpret it.
type EntitySession struct {
	Creation   time.Time `json:"creation"`
	Expiration time.Time `json:"expiration"`
	Payload    []byte    `json:"payload,omitempty"`
}

// Fresh reports whether the session can still be resumed.
func (s *EntitySession) Fresh(now time.Time) bool {
	return s != nil && now.Before(s.Expiration)
}

// FetchRecord captures the last successful fetch of one feature for one
// entity. Dates are non-decreasing per (entity, feature).
type FetchRecord struct {
	EntityID uuid.UUID `json:"entity_id"`
	Feature  Feature   `json:"feature"`
	Date     time.Time `json:"date"`
}
