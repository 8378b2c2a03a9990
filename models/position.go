package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DataSource marks where a row came from. Virtual importers write MANUAL or
// SHEETS rows; fetchers always write REAL ones.
type DataSource string

const (
	SourceReal   DataSource = "REAL"
	SourceManual DataSource = "MANUAL"
	SourceSheets DataSource = "SHEETS"
)

// ProductType is the closed enum of instrument families.
type ProductType string

const (
	ProductAccount       ProductType = "ACCOUNT"
	ProductCard          ProductType = "CARD"
	ProductLoan          ProductType = "LOAN"
	ProductStockEtf      ProductType = "STOCK_ETF"
	ProductFund          ProductType = "FUND"
	ProductFundPortfolio ProductType = "FUND_PORTFOLIO"
	ProductDeposit       ProductType = "DEPOSIT"
	ProductFactoring     ProductType = "FACTORING"
	ProductRealEstateCF  ProductType = "REAL_ESTATE_CF"
	ProductCrowdlending  ProductType = "CROWDLENDING"
	ProductCrypto        ProductType = "CRYPTO"
	ProductCommodity     ProductType = "COMMODITY"
)

type AccountType string

const (
	AccountChecking      AccountType = "CHECKING"
	AccountVirtualWallet AccountType = "VIRTUAL_WALLET"
	AccountBrokerage     AccountType = "BROKERAGE"
	AccountSavings       AccountType = "SAVINGS"
)

type Account struct {
	ID               uuid.UUID        `json:"id"`
	Name             string           `json:"name,omitempty"`
	IBAN             string           `json:"iban,omitempty"`
	Total            decimal.Decimal  `json:"total"`
	Currency         string           `json:"currency"`
	Type             AccountType      `json:"type"`
	Interest         *decimal.Decimal `json:"interest,omitempty"`
	Retained         *decimal.Decimal `json:"retained,omitempty"`
	PendingTransfers *decimal.Decimal `json:"pending_transfers,omitempty"`
	Source           DataSource       `json:"source"`
}

type CardType string

const (
	CardCredit CardType = "CREDIT"
	CardDebit  CardType = "DEBIT"
)

type Card struct {
	ID       uuid.UUID        `json:"id"`
	Name     string           `json:"name,omitempty"`
	Ending   string           `json:"ending,omitempty"`
	Currency string           `json:"currency"`
	Type     CardType         `json:"type"`
	Used     decimal.Decimal  `json:"used"`
	Limit    *decimal.Decimal `json:"limit,omitempty"`
	Active   bool             `json:"active"`
	Source   DataSource       `json:"source"`
}

type LoanType string

const (
	LoanMortgage LoanType = "MORTGAGE"
	LoanStandard LoanType = "STANDARD"
)

type Loan struct {
	ID                   uuid.UUID        `json:"id"`
	Name                 string           `json:"name,omitempty"`
	Type                 LoanType         `json:"type"`
	Currency             string           `json:"currency"`
	CurrentInstallment   decimal.Decimal  `json:"current_installment"`
	InterestRate         decimal.Decimal  `json:"interest_rate"`
	LoanAmount           decimal.Decimal  `json:"loan_amount"`
	PrincipalOutstanding decimal.Decimal  `json:"principal_outstanding"`
	PrincipalPaid        *decimal.Decimal `json:"principal_paid,omitempty"`
	Creation             time.Time        `json:"creation"`
	Maturity             time.Time        `json:"maturity"`
	Source               DataSource       `json:"source"`
}

type EquityType string

const (
	EquityStock EquityType = "STOCK"
	EquityETF   EquityType = "ETF"
)

type StockDetail struct {
	ID                uuid.UUID        `json:"id"`
	Name              string           `json:"name"`
	Ticker            string           `json:"ticker"`
	ISIN              string           `json:"isin"`
	Market            string           `json:"market,omitempty"`
	Shares            decimal.Decimal  `json:"shares"`
	InitialInvestment *decimal.Decimal `json:"initial_investment,omitempty"`
	AverageBuyPrice   *decimal.Decimal `json:"average_buy_price,omitempty"`
	MarketValue       decimal.Decimal  `json:"market_value"`
	Currency          string           `json:"currency"`
	Type              EquityType       `json:"type"`
	Source            DataSource       `json:"source"`
}

type FundType string

const (
	FundMutual        FundType = "MUTUAL_FUND"
	FundPrivateEquity FundType = "PRIVATE_EQUITY"
	FundPension       FundType = "PENSION_FUND"
)

type FundDetail struct {
	ID                uuid.UUID        `json:"id"`
	Name              string           `json:"name"`
	ISIN              string           `json:"isin"`
	Market            string           `json:"market,omitempty"`
	Shares            decimal.Decimal  `json:"shares"`
	InitialInvestment *decimal.Decimal `json:"initial_investment,omitempty"`
	AverageBuyPrice   *decimal.Decimal `json:"average_buy_price,omitempty"`
	MarketValue       decimal.Decimal  `json:"market_value"`
	Currency          string           `json:"currency"`
	Type              FundType         `json:"type"`
	PortfolioID       *uuid.UUID       `json:"portfolio_id,omitempty"`
	Source            DataSource       `json:"source"`
}

type FundPortfolio struct {
	ID                uuid.UUID        `json:"id"`
	Name              string           `json:"name,omitempty"`
	Currency          string           `json:"currency,omitempty"`
	InitialInvestment *decimal.Decimal `json:"initial_investment,omitempty"`
	MarketValue       *decimal.Decimal `json:"market_value,omitempty"`
	Source            DataSource       `json:"source"`
}

type Deposit struct {
	ID                uuid.UUID        `json:"id"`
	Name              string           `json:"name"`
	Amount            decimal.Decimal  `json:"amount"`
	Currency          string           `json:"currency"`
	InterestRate      decimal.Decimal  `json:"interest_rate"`
	Creation          time.Time        `json:"creation"`
	Maturity          time.Time        `json:"maturity"`
	ExpectedInterests *decimal.Decimal `json:"expected_interests,omitempty"`
	Source            DataSource       `json:"source"`
}

type FactoringDetail struct {
	ID                uuid.UUID       `json:"id"`
	Name              string          `json:"name"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	InterestRate      decimal.Decimal `json:"interest_rate"`
	GrossInterestRate decimal.Decimal `json:"gross_interest_rate"`
	LastInvestDate    time.Time       `json:"last_invest_date"`
	Maturity          time.Time       `json:"maturity"`
	Type              string          `json:"type"`
	State             string          `json:"state"`
	Source            DataSource      `json:"source"`
}

type RealEstateCFDetail struct {
	ID               uuid.UUID       `json:"id"`
	Name             string          `json:"name"`
	Amount           decimal.Decimal `json:"amount"`
	PendingAmount    decimal.Decimal `json:"pending_amount"`
	Currency         string          `json:"currency"`
	InterestRate     decimal.Decimal `json:"interest_rate"`
	LastInvestDate   time.Time       `json:"last_invest_date"`
	Maturity         time.Time       `json:"maturity"`
	ExtendedMaturity *time.Time      `json:"extended_maturity,omitempty"`
	Type             string          `json:"type"`
	BusinessType     string          `json:"business_type,omitempty"`
	State            string          `json:"state"`
	Source           DataSource      `json:"source"`
}

type CrowdlendingEntry struct {
	ID           uuid.UUID       `json:"id"`
	Name         string          `json:"name"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	InterestRate decimal.Decimal `json:"interest_rate"`
	State        string          `json:"state,omitempty"`
	Source       DataSource      `json:"source"`
}

type CommodityType string

const (
	CommodityGold      CommodityType = "GOLD"
	CommoditySilver    CommodityType = "SILVER"
	CommodityPlatinum  CommodityType = "PLATINUM"
	CommodityPalladium CommodityType = "PALLADIUM"
)

type Commodity struct {
	ID          uuid.UUID        `json:"id"`
	Name        string           `json:"name,omitempty"`
	Type        CommodityType    `json:"type"`
	Amount      decimal.Decimal  `json:"amount"`
	Unit        string           `json:"unit"`
	MarketValue *decimal.Decimal `json:"market_value,omitempty"`
	Currency    string           `json:"currency,omitempty"`
	Source      DataSource       `json:"source"`
}

type CryptoAssetType string

const (
	CryptoNative CryptoAssetType = "NATIVE"
	CryptoToken  CryptoAssetType = "TOKEN"
)

// CryptoAssetPosition is one asset held in one wallet. MarketValue is nil
// when no price was available at enrichment time.
type CryptoAssetPosition struct {
	ID              uuid.UUID        `json:"id"`
	Symbol          string           `json:"symbol"`
	Name            string           `json:"name,omitempty"`
	Amount          decimal.Decimal  `json:"amount"`
	Type            CryptoAssetType  `json:"type"`
	ContractAddress string           `json:"contract_address,omitempty"`
	MarketValue     *decimal.Decimal `json:"market_value,omitempty"`
	Currency        string           `json:"currency,omitempty"`
}

type CryptoWallet struct {
	ID           uuid.UUID             `json:"id"`
	ConnectionID uuid.UUID             `json:"connection_id"`
	Address      string                `json:"address,omitempty"`
	Name         string                `json:"name,omitempty"`
	Assets       []CryptoAssetPosition `json:"assets"`
}

// ProductPosition is the per-type payload of a GlobalPosition. Each concrete
// container knows its product type so the products map can round-trip JSON.
type ProductPosition interface {
	ProductType() ProductType
}

type Accounts struct {
	Entries []Account `json:"entries"`
}

func (Accounts) ProductType() ProductType { return ProductAccount }

type Cards struct {
	Entries []Card `json:"entries"`
}

func (Cards) ProductType() ProductType { return ProductCard }

type Loans struct {
	Entries []Loan `json:"entries"`
}

func (Loans) ProductType() ProductType { return ProductLoan }

type StockInvestments struct {
	Entries []StockDetail `json:"entries"`
}

func (StockInvestments) ProductType() ProductType { return ProductStockEtf }

type FundInvestments struct {
	Entries []FundDetail `json:"entries"`
}

func (FundInvestments) ProductType() ProductType { return ProductFund }

type FundPortfolios struct {
	Entries []FundPortfolio `json:"entries"`
}

func (FundPortfolios) ProductType() ProductType { return ProductFundPortfolio }

type Deposits struct {
	Entries []Deposit `json:"entries"`
}

func (Deposits) ProductType() ProductType { return ProductDeposit }

// FactoringInvestments is a summary plus its detail list. Total and
// WeightedInterestRate are derived from the entries.
type FactoringInvestments struct {
	Total                decimal.Decimal   `json:"total"`
	WeightedInterestRate decimal.Decimal   `json:"weighted_interest_rate"`
	Entries              []FactoringDetail `json:"entries"`
}

func (FactoringInvestments) ProductType() ProductType { return ProductFactoring }

type RealEstateCFInvestments struct {
	Total                decimal.Decimal      `json:"total"`
	WeightedInterestRate decimal.Decimal      `json:"weighted_interest_rate"`
	Entries              []RealEstateCFDetail `json:"entries"`
}

func (RealEstateCFInvestments) ProductType() ProductType { return ProductRealEstateCF }

type Crowdlending struct {
	Total                decimal.Decimal     `json:"total"`
	WeightedInterestRate decimal.Decimal     `json:"weighted_interest_rate"`
	Currency             string              `json:"currency,omitempty"`
	Entries              []CrowdlendingEntry `json:"entries"`
}

func (Crowdlending) ProductType() ProductType { return ProductCrowdlending }

type CryptoCurrencies struct {
	Entries []CryptoWallet `json:"entries"`
}

func (CryptoCurrencies) ProductType() ProductType { return ProductCrypto }

type Commodities struct {
	Entries []Commodity `json:"entries"`
}

func (Commodities) ProductType() ProductType { return ProductCommodity }

// Products maps product type to its payload within one snapshot.
type Products map[ProductType]ProductPosition

// UnmarshalJSON decodes each payload into the concrete container for its
// key. Unknown keys are rejected; the enum is closed.
func (p *Products) UnmarshalJSON(data []byte) error {
	var raw map[ProductType]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Products, len(raw))
	for productType, payload := range raw {
		var (
			pos ProductPosition
			err error
		)
		switch productType {
		case ProductAccount:
			v := Accounts{}
			err = json.Unmarshal(payload, &v)
			pos = v
		case ProductCard:
			v := Cards{}
			err = json.Unmarshal(payload, &v)
			pos = v
		case ProductLoan:
			v := Loans{}
			err = json.Unmarshal(payload, &v)
			pos = v
		case ProductStockEtf:
			v := StockInvestments{}
			err = json.Unmarshal(payload, &v)
			pos = v
		case ProductFund:
			v := FundInvestments{}
			err = json.Unmarshal(payload, &v)
			pos = v
		case ProductFundPortfolio:
			v := FundPortfolios{}
			err = json.Unmarshal(payload, &v)
			pos = v
		case ProductDeposit:
			v := Deposits{}
			err = json.Unmarshal(payload, &v)
			pos = v
		case ProductFactoring:
			v := FactoringInvestments{}
			err = json.Unmarshal(payload, &v)
			pos = v
		case ProductRealEstateCF:
			v := RealEstateCFInvestments{}
			err = json.Unmarshal(payload, &v)
			pos = v
		case ProductCrowdlending:
			v := Crowdlending{}
			err = json.Unmarshal(payload, &v)
			pos = v
		case ProductCrypto:
			v := CryptoCurrencies{}
			err = json.Unmarshal(payload, &v)
			pos = v
		case ProductCommodity:
			v := Commodities{}
			err = json.Unmarshal(payload, &v)
			pos = v
		default:
			return fmt.Errorf("unknown product type %q", productType)
		}
		if err != nil {
			return fmt.Errorf("decode %s products: %w", productType, err)
		}
		out[productType] = pos
	}
	*p = out
	return nil
}

// GlobalPosition is a full snapshot of one entity's holdings at one instant.
// Snapshots are append-only; a new one is inserted per successful POSITION
// fetch and prior ones remain for history.
type GlobalPosition struct {
	ID       uuid.UUID  `json:"id"`
	EntityID uuid.UUID  `json:"entity_id"`
	Date     time.Time  `json:"date"`
	Products Products   `json:"products"`
	IsReal   bool       `json:"is_real"`
	Source   DataSource `json:"source"`
}

// NewGlobalPosition stamps a fresh REAL snapshot for an entity.
func NewGlobalPosition(entityID uuid.UUID, products Products) GlobalPosition {
	return GlobalPosition{
		ID:       uuid.New(),
		EntityID: entityID,
		Date:     time.Now(),
		Products: products,
		IsReal:   true,
		Source:   SourceReal,
	}
}

// HistoricalPosition is the aggregated lifecycle view a fetcher returns for
// the HISTORIC feature: all investments it has ever seen, active or not.
type HistoricalPosition struct {
	Products Products `json:"products"`
}

// PositionQuery filters position reads.
type PositionQuery struct {
	Entities         []uuid.UUID
	ExcludedEntities []uuid.UUID
	Real             *bool
}
