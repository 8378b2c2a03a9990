package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors matched with errors.Is at the orchestrator and HTTP
// boundaries.
var (
	ErrExecutionConflict     = errors.New("an execution for this target is already running")
	ErrInvalidCredentials    = errors.New("provided credentials are invalid")
	ErrTooManyRequests       = errors.New("provider rate limit hit")
	ErrLinkExpired           = errors.New("external entity link expired")
	ErrExternalEntityFailed  = errors.New("external entity provider failed")
	ErrIntegrationRequired   = errors.New("external integration not configured")
	ErrInstitutionNotFound   = errors.New("provider institution not found")
	ErrNativeEntityConflict  = errors.New("institution collides with a native entity")
	ErrUnsupportedFileFormat = errors.New("unsupported file format")
	ErrInvalidTemplate       = errors.New("invalid import template")
)

// EntityNotFoundError reports an unknown or unconnected target entity.
type EntityNotFoundError struct {
	ID uuid.UUID
}

func (e *EntityNotFoundError) Error() string {
	return fmt.Sprintf("entity %s not found", e.ID)
}

// CooldownError reports that a fetch arrived before the feature's cooldown
// elapsed. It is expected and non-fatal.
type CooldownError struct {
	Feature    Feature
	LastUpdate time.Time
	Wait       time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%s fetch on cooldown for %s", e.Feature, e.Wait)
}

// Details is the payload surfaced to the UI on COOLDOWN results.
func (e *CooldownError) Details() map[string]any {
	return map[string]any{
		"lastUpdate": e.LastUpdate.Format(time.RFC3339),
		"wait":       int(e.Wait.Seconds()),
	}
}

// LinkError reports a failed provider link creation. OrphanExternalEntity
// marks provisional rows that must be cleaned up.
type LinkError struct {
	OrphanExternalEntity bool
	Err                  error
}

func (e *LinkError) Error() string { return fmt.Sprintf("link creation failed: %v", e.Err) }
func (e *LinkError) Unwrap() error { return e.Err }
