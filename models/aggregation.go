package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AggregatePositions merges several entity snapshots into one combined view
// for display. Detail lists are concatenated per product type; summary
// figures (totals, weighted rates) are recomputed over the merged entries.
// The result is not persisted and carries a zero entity id.
func AggregatePositions(positions []GlobalPosition) GlobalPosition {
	merged := Products{}
	for _, position := range positions {
		for productType, payload := range position.Products {
			existing, ok := merged[productType]
			if !ok {
				merged[productType] = payload
				continue
			}
			merged[productType] = mergeProduct(existing, payload)
		}
	}

	for productType, payload := range merged {
		merged[productType] = recomputeSummary(payload)
	}

	return GlobalPosition{
		ID:       uuid.New(),
		Date:     time.Now(),
		Products: merged,
		IsReal:   allReal(positions),
	}
}

func allReal(positions []GlobalPosition) bool {
	for _, p := range positions {
		if !p.IsReal {
			return false
		}
	}
	return true
}

// mergeProduct concatenates two payloads of the same product type. A payload
// whose concrete type does not match the existing one is skipped.
func mergeProduct(a, b ProductPosition) ProductPosition {
	switch left := a.(type) {
	case Accounts:
		if right, ok := b.(Accounts); ok {
			return Accounts{Entries: append(append([]Account{}, left.Entries...), right.Entries...)}
		}
	case Cards:
		if right, ok := b.(Cards); ok {
			return Cards{Entries: append(append([]Card{}, left.Entries...), right.Entries...)}
		}
	case Loans:
		if right, ok := b.(Loans); ok {
			return Loans{Entries: append(append([]Loan{}, left.Entries...), right.Entries...)}
		}
	case StockInvestments:
		if right, ok := b.(StockInvestments); ok {
			return StockInvestments{Entries: append(append([]StockDetail{}, left.Entries...), right.Entries...)}
		}
	case FundInvestments:
		if right, ok := b.(FundInvestments); ok {
			return FundInvestments{Entries: append(append([]FundDetail{}, left.Entries...), right.Entries...)}
		}
	case FundPortfolios:
		if right, ok := b.(FundPortfolios); ok {
			return FundPortfolios{Entries: append(append([]FundPortfolio{}, left.Entries...), right.Entries...)}
		}
	case Deposits:
		if right, ok := b.(Deposits); ok {
			return Deposits{Entries: append(append([]Deposit{}, left.Entries...), right.Entries...)}
		}
	case FactoringInvestments:
		if right, ok := b.(FactoringInvestments); ok {
			return FactoringInvestments{Entries: append(append([]FactoringDetail{}, left.Entries...), right.Entries...)}
		}
	case RealEstateCFInvestments:
		if right, ok := b.(RealEstateCFInvestments); ok {
			return RealEstateCFInvestments{Entries: append(append([]RealEstateCFDetail{}, left.Entries...), right.Entries...)}
		}
	case Crowdlending:
		if right, ok := b.(Crowdlending); ok {
			currency := left.Currency
			if currency == "" {
				currency = right.Currency
			}
			return Crowdlending{
				Currency: currency,
				Entries:  append(append([]CrowdlendingEntry{}, left.Entries...), right.Entries...),
			}
		}
	case CryptoCurrencies:
		if right, ok := b.(CryptoCurrencies); ok {
			return CryptoCurrencies{Entries: append(append([]CryptoWallet{}, left.Entries...), right.Entries...)}
		}
	case Commodities:
		if right, ok := b.(Commodities); ok {
			return Commodities{Entries: append(append([]Commodity{}, left.Entries...), right.Entries...)}
		}
	default:
		return b
	}
	return a
}

func recomputeSummary(p ProductPosition) ProductPosition {
	switch v := p.(type) {
	case FactoringInvestments:
		total, rate := weightedRate(factoringAmounts(v.Entries))
		v.Total = total
		v.WeightedInterestRate = rate
		return v
	case RealEstateCFInvestments:
		total, rate := weightedRate(realEstateAmounts(v.Entries))
		v.Total = total
		v.WeightedInterestRate = rate
		return v
	case Crowdlending:
		total, rate := weightedRate(crowdlendingAmounts(v.Entries))
		v.Total = total
		v.WeightedInterestRate = rate
		return v
	default:
		return p
	}
}

type amountRate struct {
	amount decimal.Decimal
	rate   decimal.Decimal
}

// weightedRate returns the summed amount and the amount-weighted average
// interest rate, rounded to 4 places. A zero total yields a zero rate.
func weightedRate(entries []amountRate) (decimal.Decimal, decimal.Decimal) {
	total := decimal.Zero
	weighted := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.amount)
		weighted = weighted.Add(e.amount.Mul(e.rate))
	}
	if total.IsZero() {
		return total, decimal.Zero
	}
	return total.Round(2), weighted.Div(total).Round(4)
}

func factoringAmounts(entries []FactoringDetail) []amountRate {
	out := make([]amountRate, len(entries))
	for i, e := range entries {
		out[i] = amountRate{amount: e.Amount, rate: e.InterestRate}
	}
	return out
}

func realEstateAmounts(entries []RealEstateCFDetail) []amountRate {
	out := make([]amountRate, len(entries))
	for i, e := range entries {
		out[i] = amountRate{amount: e.Amount, rate: e.InterestRate}
	}
	return out
}

func crowdlendingAmounts(entries []CrowdlendingEntry) []amountRate {
	out := make([]amountRate, len(entries))
	for i, e := range entries {
		out[i] = amountRate{amount: e.Amount, rate: e.InterestRate}
	}
	return out
}
