package services

import (
	"testing"

	"github.com/google/uuid"

	"github.com/holdsight/wealth-api/models"
)

func TestDefaultFetcherRegistry_CoversNativeInstitutions(t *testing.T) {
	registry := DefaultFetcherRegistry()

	for _, entity := range models.NativeEntities {
		if entity.Type != models.EntityTypeFinancialInstitution {
			continue
		}
		if _, ok := registry.For(entity.ID); !ok {
			t.Fatalf("no fetcher registered for %s", entity.Name)
		}
	}

	if _, ok := registry.For(uuid.New()); ok {
		t.Fatal("unknown entity must have no fetcher")
	}
}

func TestFetcherRegistry_FreshInstancePerRun(t *testing.T) {
	registry := DefaultFetcherRegistry()

	a, _ := registry.For(models.Urbanitae.ID)
	b, _ := registry.For(models.Urbanitae.ID)
	if a == b {
		t.Fatal("expected a fresh fetcher per run")
	}
}
