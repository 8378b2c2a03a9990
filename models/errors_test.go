package models

import (
	"testing"
	"time"
)

func TestCooldownError_Details(t *testing.T) {
	last := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	err := &CooldownError{Feature: FeaturePosition, LastUpdate: last, Wait: 90 * time.Second}

	details := err.Details()
	if details["lastUpdate"] != "2025-03-01T10:00:00Z" {
		t.Fatalf("unexpected lastUpdate: %v", details["lastUpdate"])
	}
	if details["wait"] != 90 {
		t.Fatalf("unexpected wait: %v", details["wait"])
	}
}
