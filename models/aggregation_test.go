package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestAggregatePositions_MergesDetailLists(t *testing.T) {
	first := GlobalPosition{
		EntityID: uuid.New(),
		IsReal:   true,
		Products: Products{
			ProductAccount: Accounts{Entries: []Account{
				{ID: uuid.New(), Name: "Main", Total: dec("1000"), Currency: "EUR", Type: AccountChecking},
			}},
		},
	}
	second := GlobalPosition{
		EntityID: uuid.New(),
		IsReal:   true,
		Products: Products{
			ProductAccount: Accounts{Entries: []Account{
				{ID: uuid.New(), Name: "Wallet", Total: dec("250"), Currency: "EUR", Type: AccountVirtualWallet},
			}},
			ProductDeposit: Deposits{Entries: []Deposit{
				{ID: uuid.New(), Name: "12m", Amount: dec("5000"), Currency: "EUR", InterestRate: dec("0.03")},
			}},
		},
	}

	merged := AggregatePositions([]GlobalPosition{first, second})

	accounts, ok := merged.Products[ProductAccount].(Accounts)
	if !ok {
		t.Fatalf("expected merged ACCOUNT payload, got %T", merged.Products[ProductAccount])
	}
	if len(accounts.Entries) != 2 {
		t.Fatalf("expected 2 merged accounts, got %d", len(accounts.Entries))
	}
	deposits, ok := merged.Products[ProductDeposit].(Deposits)
	if !ok || len(deposits.Entries) != 1 {
		t.Fatalf("expected deposit entry carried over, got %+v", merged.Products[ProductDeposit])
	}
	if !merged.IsReal {
		t.Fatal("expected merged snapshot of real positions to stay real")
	}
}

func TestAggregatePositions_RecomputesWeightedRate(t *testing.T) {
	first := GlobalPosition{
		IsReal: true,
		Products: Products{
			ProductFactoring: FactoringInvestments{
				Total:                dec("1000"),
				WeightedInterestRate: dec("0.10"),
				Entries: []FactoringDetail{
					{ID: uuid.New(), Name: "A", Amount: dec("1000"), InterestRate: dec("0.10"), Currency: "EUR"},
				},
			},
		},
	}
	second := GlobalPosition{
		IsReal: false,
		Products: Products{
			ProductFactoring: FactoringInvestments{
				Total:                dec("3000"),
				WeightedInterestRate: dec("0.06"),
				Entries: []FactoringDetail{
					{ID: uuid.New(), Name: "B", Amount: dec("3000"), InterestRate: dec("0.06"), Currency: "EUR"},
				},
			},
		},
	}

	merged := AggregatePositions([]GlobalPosition{first, second})

	factoring := merged.Products[ProductFactoring].(FactoringInvestments)
	if got := factoring.Total.String(); got != "4000" {
		t.Fatalf("expected total 4000, got %s", got)
	}
	// (1000*0.10 + 3000*0.06) / 4000 = 0.07
	if got := factoring.WeightedInterestRate.String(); got != "0.07" {
		t.Fatalf("expected weighted rate 0.07, got %s", got)
	}
	if merged.IsReal {
		t.Fatal("expected mix of real and virtual positions to be flagged not real")
	}
}

func TestAggregatePositions_SkipsMismatchedPayloads(t *testing.T) {
	first := GlobalPosition{
		EntityID: uuid.New(),
		IsReal:   true,
		Products: Products{
			ProductAccount: Accounts{Entries: []Account{
				{ID: uuid.New(), Name: "Main", Total: dec("1000"), Currency: "EUR", Type: AccountChecking},
			}},
		},
	}
	// A snapshot whose ACCOUNT slot carries the wrong concrete type, as a
	// stale row deserialized under an old schema would.
	second := GlobalPosition{
		EntityID: uuid.New(),
		IsReal:   true,
		Products: Products{
			ProductAccount: Deposits{Entries: []Deposit{
				{ID: uuid.New(), Name: "Odd", Amount: dec("5000"), Currency: "EUR"},
			}},
		},
	}

	merged := AggregatePositions([]GlobalPosition{first, second})

	accounts, ok := merged.Products[ProductAccount].(Accounts)
	if !ok {
		t.Fatalf("expected the first payload kept, got %T", merged.Products[ProductAccount])
	}
	if len(accounts.Entries) != 1 {
		t.Fatalf("expected the mismatched payload skipped, got %d entries", len(accounts.Entries))
	}
}

func TestWeightedRate_ZeroTotal(t *testing.T) {
	total, rate := weightedRate([]amountRate{})
	if !total.IsZero() || !rate.IsZero() {
		t.Fatalf("expected zero total and rate, got %s / %s", total, rate)
	}
}
