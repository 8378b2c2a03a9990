package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// HistoricEntry is the aggregated lifecycle view of one lending investment
// (factoring or real-estate crowdfunding): what went in, what came back and
// in which concepts. RelatedTxIDs are weak references into the transaction
// rows the figures were derived from.
type HistoricEntry struct {
	ID                uuid.UUID        `json:"id"`
	Name              string           `json:"name"`
	EntityID          uuid.UUID        `json:"entity_id"`
	ProductType       ProductType      `json:"product_type"`
	Invested          decimal.Decimal  `json:"invested"`
	Repaid            decimal.Decimal  `json:"repaid"`
	Returned          decimal.Decimal  `json:"returned"`
	NetReturn         decimal.Decimal  `json:"net_return"`
	Fees              decimal.Decimal  `json:"fees"`
	Retentions        decimal.Decimal  `json:"retentions"`
	Interests         decimal.Decimal  `json:"interests"`
	InterestRate      decimal.Decimal  `json:"interest_rate"`
	GrossInterestRate *decimal.Decimal `json:"gross_interest_rate,omitempty"`
	Currency          string           `json:"currency"`
	State             string           `json:"state"`
	Type              string           `json:"type,omitempty"`
	BusinessType      string           `json:"business_type,omitempty"`
	LastInvestDate    time.Time        `json:"last_invest_date"`
	LastTxDate        time.Time        `json:"last_tx_date"`
	Maturity          *time.Time       `json:"maturity,omitempty"`
	ExtendedMaturity  *time.Time       `json:"extended_maturity,omitempty"`
	EffectiveMaturity *time.Time       `json:"effective_maturity,omitempty"`
	RelatedTxIDs      []uuid.UUID      `json:"related_tx_ids,omitempty"`
}

// HistoricQuery filters historic reads.
type HistoricQuery struct {
	Entities     []uuid.UUID
	ProductTypes []ProductType
}
