package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/holdsight/wealth-api/models"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestBuildHistoricEntries_AggregatesFlows(t *testing.T) {
	entityID := uuid.New()
	position := models.HistoricalPosition{
		Products: models.Products{
			models.ProductFactoring: models.FactoringInvestments{
				Entries: []models.FactoringDetail{
					{Name: "Invoice Alpha", Currency: "EUR", InterestRate: dec("0.09"), State: "FINISHED"},
				},
			},
		},
	}
	transactions := []models.InvestmentTx{
		{
			ID: uuid.New(), Name: "invoice alpha ", Type: models.TxInvestment,
			Amount: dec("1000"), Date: day(2024, 1, 10), Fees: dec("2"),
		},
		{
			ID: uuid.New(), Name: "INVOICE ALPHA", Type: models.TxRepayment,
			Amount: dec("600"), Date: day(2024, 4, 1),
		},
		{
			ID: uuid.New(), Name: "Invoice Alpha", Type: models.TxRepayment,
			Amount: dec("400"), Date: day(2024, 6, 15),
		},
		{
			ID: uuid.New(), Name: "Invoice Alpha", Type: models.TxInterest,
			Amount: dec("45"), Retentions: dec("9"), Date: day(2024, 6, 15),
		},
	}

	entries := buildHistoricEntries(entityID, position, transactions)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	entry := entries[0]
	if entry.EntityID != entityID {
		t.Fatalf("expected entity %s, got %s", entityID, entry.EntityID)
	}
	if got := entry.Invested.String(); got != "1000" {
		t.Fatalf("invested: expected 1000, got %s", got)
	}
	if got := entry.Repaid.String(); got != "1000" {
		t.Fatalf("repaid: expected 1000, got %s", got)
	}
	if got := entry.Interests.String(); got != "45" {
		t.Fatalf("interests: expected 45, got %s", got)
	}
	if got := entry.Returned.String(); got != "1045" {
		t.Fatalf("returned: expected 1045, got %s", got)
	}
	if got := entry.NetReturn.String(); got != "45" {
		t.Fatalf("net return: expected 45, got %s", got)
	}
	if got := entry.Fees.String(); got != "2" {
		t.Fatalf("fees: expected 2, got %s", got)
	}
	if got := entry.Retentions.String(); got != "9" {
		t.Fatalf("retentions: expected 9, got %s", got)
	}
	if len(entry.RelatedTxIDs) != 4 {
		t.Fatalf("expected 4 related transactions, got %d", len(entry.RelatedTxIDs))
	}
	if !entry.LastTxDate.Equal(day(2024, 6, 15)) {
		t.Fatalf("unexpected last tx date: %s", entry.LastTxDate)
	}
	if entry.EffectiveMaturity == nil || !entry.EffectiveMaturity.Equal(day(2024, 6, 15)) {
		t.Fatalf("expected effective maturity on last repayment, got %v", entry.EffectiveMaturity)
	}
}

func TestBuildHistoricEntries_NoEffectiveMaturityWhilePending(t *testing.T) {
	position := models.HistoricalPosition{
		Products: models.Products{
			models.ProductRealEstateCF: models.RealEstateCFInvestments{
				Entries: []models.RealEstateCFDetail{
					{Name: "Calle Mayor 5", Currency: "EUR", InterestRate: dec("0.11"), State: "FUNDED"},
				},
			},
		},
	}
	transactions := []models.InvestmentTx{
		{ID: uuid.New(), Name: "Calle Mayor 5", Type: models.TxInvestment, Amount: dec("500"), Date: day(2024, 2, 1)},
		{ID: uuid.New(), Name: "Calle Mayor 5", Type: models.TxRepayment, Amount: dec("100"), Date: day(2024, 5, 1)},
	}

	entries := buildHistoricEntries(uuid.New(), position, transactions)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].EffectiveMaturity != nil {
		t.Fatalf("partially repaid investment must not carry an effective maturity, got %v", entries[0].EffectiveMaturity)
	}
	if got := entries[0].NetReturn.String(); got != "-400" {
		t.Fatalf("net return: expected -400, got %s", got)
	}
}

func TestBuildHistoricEntries_UnmatchedInvestmentStaysZero(t *testing.T) {
	position := models.HistoricalPosition{
		Products: models.Products{
			models.ProductFactoring: models.FactoringInvestments{
				Entries: []models.FactoringDetail{
					{Name: "Orphan", Currency: "EUR", InterestRate: dec("0.08"), State: "ACTIVE"},
				},
			},
		},
	}

	entries := buildHistoricEntries(uuid.New(), position, nil)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	entry := entries[0]
	if !entry.Invested.IsZero() || !entry.Returned.IsZero() {
		t.Fatalf("expected zero flows for unmatched investment, got %+v", entry)
	}
	if entry.EffectiveMaturity != nil {
		t.Fatal("zero invested must never be considered repaid")
	}
	if len(entry.RelatedTxIDs) != 0 {
		t.Fatalf("expected no related transactions, got %d", len(entry.RelatedTxIDs))
	}
}

func TestBuildHistoricEntries_InterestsOverrideGrossAmount(t *testing.T) {
	position := models.HistoricalPosition{
		Products: models.Products{
			models.ProductFactoring: models.FactoringInvestments{
				Entries: []models.FactoringDetail{
					{Name: "Invoice Beta", Currency: "EUR", State: "ACTIVE"},
				},
			},
		},
	}
	// The gross amount includes retentions; the interests field carries the
	// provider's own interest figure, which wins.
	transactions := []models.InvestmentTx{
		{
			ID: uuid.New(), Name: "Invoice Beta", Type: models.TxInterest,
			Amount: dec("50"), Interests: dec("41.5"), Date: day(2024, 3, 1),
		},
	}

	entries := buildHistoricEntries(uuid.New(), position, transactions)
	if got := entries[0].Interests.String(); got != "41.5" {
		t.Fatalf("interests: expected 41.5, got %s", got)
	}
}
