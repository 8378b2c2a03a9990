package services

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/holdsight/wealth-api/models"
)

func TestEntityGate_ConflictWhileHeld(t *testing.T) {
	gate := NewEntityGate()
	id := uuid.New()

	release, err := gate.TryAcquire(id)
	if err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}

	if _, err := gate.TryAcquire(id); !errors.Is(err, models.ErrExecutionConflict) {
		t.Fatalf("expected ErrExecutionConflict, got %v", err)
	}

	release()
	release, err = gate.TryAcquire(id)
	if err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
	release()
}

func TestEntityGate_IndependentTargets(t *testing.T) {
	gate := NewEntityGate()

	releaseA, err := gate.TryAcquire(uuid.New())
	if err != nil {
		t.Fatalf("acquire a: %v", err)
	}
	defer releaseA()

	releaseB, err := gate.TryAcquire(uuid.New())
	if err != nil {
		t.Fatalf("acquire b: %v", err)
	}
	defer releaseB()
}
