package models

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
)

func TestProducts_UnmarshalJSON_DecodesConcreteTypes(t *testing.T) {
	raw := []byte(`{
		"ACCOUNT": {"entries": [{"name": "Main", "total": "1250.50", "currency": "EUR", "type": "CHECKING", "source": "REAL"}]},
		"FACTORING": {"total": "1000", "weighted_interest_rate": "0.1", "entries": [{"name": "Invoice 1", "amount": "1000", "currency": "EUR", "interest_rate": "0.1", "state": "ACTIVE"}]}
	}`)

	var products Products
	if err := json.Unmarshal(raw, &products); err != nil {
		t.Fatalf("unmarshal products: %v", err)
	}

	accounts, ok := products[ProductAccount].(Accounts)
	if !ok {
		t.Fatalf("expected Accounts payload, got %T", products[ProductAccount])
	}
	if len(accounts.Entries) != 1 || accounts.Entries[0].Total.String() != "1250.5" {
		t.Fatalf("unexpected account entries: %+v", accounts.Entries)
	}

	factoring, ok := products[ProductFactoring].(FactoringInvestments)
	if !ok {
		t.Fatalf("expected FactoringInvestments payload, got %T", products[ProductFactoring])
	}
	if factoring.Entries[0].Name != "Invoice 1" {
		t.Fatalf("unexpected factoring entry: %+v", factoring.Entries[0])
	}
}

func TestProducts_UnmarshalJSON_RejectsUnknownType(t *testing.T) {
	var products Products
	err := json.Unmarshal([]byte(`{"REAL_ESTATE": {"entries": []}}`), &products)
	if err == nil {
		t.Fatal("expected error for unknown product type")
	}
}

func TestNewGlobalPosition_Defaults(t *testing.T) {
	position := NewGlobalPosition(uuid.New(), Products{})
	if !position.IsReal {
		t.Fatal("fetched snapshots must be real")
	}
	if position.Source != SourceReal {
		t.Fatalf("expected REAL source, got %s", position.Source)
	}
	if position.Date.IsZero() {
		t.Fatal("expected stamped date")
	}
}
