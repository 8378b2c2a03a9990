package services

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/holdsight/wealth-api/models"
)

// buildHistoricEntries folds the provider's lifecycle view together with the
// entity's stored investment transactions. Transactions are matched to
// investments by name; each entry aggregates what went in and what came back.
func buildHistoricEntries(entityID uuid.UUID, position models.HistoricalPosition, transactions []models.InvestmentTx) []models.HistoricEntry {
	byName := map[string][]models.InvestmentTx{}
	for _, tx := range transactions {
		key := normalizeName(tx.Name)
		byName[key] = append(byName[key], tx)
	}

	var entries []models.HistoricEntry
	for _, product := range position.Products {
		switch investments := product.(type) {
		case models.FactoringInvestments:
			for _, detail := range investments.Entries {
				gross := detail.GrossInterestRate
				entry := models.HistoricEntry{
					ID:                uuid.New(),
					Name:              detail.Name,
					EntityID:          entityID,
					ProductType:       models.ProductFactoring,
					InterestRate:      detail.InterestRate,
					GrossInterestRate: &gross,
					Currency:          detail.Currency,
					State:             detail.State,
					Type:              detail.Type,
					LastInvestDate:    detail.LastInvestDate,
					Maturity:          timePtr(detail.Maturity),
				}
				applyTransactions(&entry, byName[normalizeName(detail.Name)])
				entries = append(entries, entry)
			}
		case models.RealEstateCFInvestments:
			for _, detail := range investments.Entries {
				entry := models.HistoricEntry{
					ID:               uuid.New(),
					Name:             detail.Name,
					EntityID:         entityID,
					ProductType:      models.ProductRealEstateCF,
					InterestRate:     detail.InterestRate,
					Currency:         detail.Currency,
					State:            detail.State,
					Type:             detail.Type,
					BusinessType:     detail.BusinessType,
					LastInvestDate:   detail.LastInvestDate,
					Maturity:         timePtr(detail.Maturity),
					ExtendedMaturity: detail.ExtendedMaturity,
				}
				applyTransactions(&entry, byName[normalizeName(detail.Name)])
				entries = append(entries, entry)
			}
		}
	}
	return entries
}

// applyTransactions derives the money flow figures of one entry from its
// matched transactions.
func applyTransactions(entry *models.HistoricEntry, transactions []models.InvestmentTx) {
	invested := decimal.Zero
	repaid := decimal.Zero
	interests := decimal.Zero
	fees := decimal.Zero
	retentions := decimal.Zero
	var lastTx time.Time
	var lastRepayment *time.Time

	for _, tx := range transactions {
		entry.RelatedTxIDs = append(entry.RelatedTxIDs, tx.ID)
		if tx.Date.After(lastTx) {
			lastTx = tx.Date
		}
		fees = fees.Add(tx.Fees)
		retentions = retentions.Add(tx.Retentions)

		switch tx.Type {
		case models.TxInvestment:
			invested = invested.Add(tx.Amount)
			if tx.Date.After(entry.LastInvestDate) {
				entry.LastInvestDate = tx.Date
			}
		case models.TxRepayment:
			repaid = repaid.Add(tx.Amount)
			date := tx.Date
			if lastRepayment == nil || date.After(*lastRepayment) {
				lastRepayment = &date
			}
		case models.TxInterest, models.TxDividend:
			interests = interests.Add(tx.Amount)
			if !tx.Interests.IsZero() {
				interests = interests.Sub(tx.Amount).Add(tx.Interests)
			}
		}
	}

	entry.Invested = invested.Round(2)
	entry.Repaid = repaid.Round(2)
	entry.Interests = interests.Round(2)
	entry.Fees = fees.Round(2)
	entry.Retentions = retentions.Round(2)
	entry.Returned = repaid.Add(interests).Round(2)
	entry.NetReturn = entry.Returned.Sub(invested).Round(2)
	entry.LastTxDate = lastTx

	// Fully repaid investments matured the day of their last repayment even
	// when that beat the scheduled date.
	if lastRepayment != nil && repaid.GreaterThanOrEqual(invested) && !invested.IsZero() {
		entry.EffectiveMaturity = lastRepayment
	}
}

func normalizeName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
