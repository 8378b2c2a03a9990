package models

import (
	"time"

	"github.com/google/uuid"
)

// ExternalProvider identifies the third-party aggregator brokering an
// externally provided entity.
type ExternalProvider string

const ProviderGoCardless ExternalProvider = "GOCARDLESS"

type ExternalEntityStatus string

const (
	ExternalUnlinked ExternalEntityStatus = "UNLINKED"
	ExternalLinked   ExternalEntityStatus = "LINKED"
)

// ExternalEntity is the link between one of our entities and a data-access
// session at an aggregator. At most one LINKED row exists per entity.
type ExternalEntity struct {
	ID                 uuid.UUID            `json:"id"`
	EntityID           uuid.UUID            `json:"entity_id"`
	Provider           ExternalProvider     `json:"provider"`
	ProviderInstanceID string               `json:"provider_instance_id,omitempty"`
	Status             ExternalEntityStatus `json:"status"`
	Payload            []byte               `json:"payload,omitempty"`
	Date               time.Time            `json:"date"`
}

// ConnectRequest starts (or restarts) the link flow for an institution.
type ConnectRequest struct {
	InstitutionID    string     `json:"institution_id"`
	ExternalEntityID *uuid.UUID `json:"external_entity_id,omitempty"`
	RedirectHost     string     `json:"redirect_host"`
	Relink           bool       `json:"relink,omitempty"`
	UserLanguage     string     `json:"user_language,omitempty"`
}

type ConnectResultCode string

const (
	ConnectContinueWithLink ConnectResultCode = "CONTINUE_WITH_LINK"
	ConnectAlreadyLinked    ConnectResultCode = "ALREADY_LINKED"
)

// ConnectResult tells the UI how to proceed: follow Link at the provider,
// or nothing because the institution is already linked.
type ConnectResult struct {
	Code               ConnectResultCode `json:"code"`
	ExternalEntityID   *uuid.UUID        `json:"external_entity_id,omitempty"`
	Link               string            `json:"link,omitempty"`
	ProviderInstanceID string            `json:"provider_instance_id,omitempty"`
	Details            map[string]any    `json:"details,omitempty"`

	// Payload is provider state to persist alongside the pending link.
	Payload []byte `json:"-"`
}

// ExternalFetchRequest targets one linked external entity.
type ExternalFetchRequest struct {
	ExternalEntityID uuid.UUID `json:"external_entity_id"`
}

// ProviderInstitution describes an institution listed by the aggregator.
type ProviderInstitution struct {
	ID   string     `json:"id"`
	Name string     `json:"name"`
	BIC  string     `json:"bic,omitempty"`
	Logo string     `json:"logo,omitempty"`
	Type EntityType `json:"type"`
}
