package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TxType string

const (
	TxBuy          TxType = "BUY"
	TxSell         TxType = "SELL"
	TxDividend     TxType = "DIVIDEND"
	TxSubscription TxType = "SUBSCRIPTION"
	TxTransferIn   TxType = "TRANSFER_IN"
	TxTransferOut  TxType = "TRANSFER_OUT"
	TxInvestment   TxType = "INVESTMENT"
	TxRepayment    TxType = "REPAYMENT"
	TxInterest     TxType = "INTEREST"
	TxFee          TxType = "FEE"
)

// AccountTx is a cash movement on an account product.
type AccountTx struct {
	ID           uuid.UUID        `json:"id"`
	Ref          string           `json:"ref"`
	Name         string           `json:"name"`
	Amount       decimal.Decimal  `json:"amount"`
	Currency     string           `json:"currency"`
	Type         TxType           `json:"type"`
	Date         time.Time        `json:"date"`
	EntityID     uuid.UUID        `json:"entity_id"`
	ProductType  ProductType      `json:"product_type"`
	Fees         decimal.Decimal  `json:"fees"`
	Retentions   decimal.Decimal  `json:"retentions"`
	InterestRate *decimal.Decimal `json:"interest_rate,omitempty"`
	NetAmount    *decimal.Decimal `json:"net_amount,omitempty"`
	Source       DataSource       `json:"source"`
}

// InvestmentTx is a movement on an investment product. Optional fields are
// populated per product type (shares/price for equity, interests/retentions
// for lending products).
type InvestmentTx struct {
	ID          uuid.UUID       `json:"id"`
	Ref         string          `json:"ref"`
	Name        string          `json:"name"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Type        TxType          `json:"type"`
	Date        time.Time       `json:"date"`
	EntityID    uuid.UUID       `json:"entity_id"`
	ProductType ProductType     `json:"product_type"`

	Fees       decimal.Decimal `json:"fees"`
	Retentions decimal.Decimal `json:"retentions"`
	Interests  decimal.Decimal `json:"interests"`

	Shares    *decimal.Decimal `json:"shares,omitempty"`
	Price     *decimal.Decimal `json:"price,omitempty"`
	NetAmount *decimal.Decimal `json:"net_amount,omitempty"`
	ISIN      string           `json:"isin,omitempty"`
	Ticker    string           `json:"ticker,omitempty"`
	Market    string           `json:"market,omitempty"`

	Source DataSource `json:"source"`
}

// Transactions bundles everything a TRANSACTIONS fetch produced.
type Transactions struct {
	Account    []AccountTx    `json:"account,omitempty"`
	Investment []InvestmentTx `json:"investment,omitempty"`
}

func (t Transactions) Empty() bool {
	return len(t.Account) == 0 && len(t.Investment) == 0
}

// EntityIDs returns the distinct entities touched by these transactions.
func (t Transactions) EntityIDs() []uuid.UUID {
	seen := map[uuid.UUID]bool{}
	var out []uuid.UUID
	for _, tx := range t.Account {
		if !seen[tx.EntityID] {
			seen[tx.EntityID] = true
			out = append(out, tx.EntityID)
		}
	}
	for _, tx := range t.Investment {
		if !seen[tx.EntityID] {
			seen[tx.EntityID] = true
			out = append(out, tx.EntityID)
		}
	}
	return out
}

// FetchOptions tunes a fetch run.
type FetchOptions struct {
	DeepHistoric bool `json:"deep_historic,omitempty"`
}
