package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ContributionFrequency string

const (
	FrequencyWeekly     ContributionFrequency = "WEEKLY"
	FrequencyBiweekly   ContributionFrequency = "BIWEEKLY"
	FrequencyMonthly    ContributionFrequency = "MONTHLY"
	FrequencyBimonthly  ContributionFrequency = "BIMONTHLY"
	FrequencyQuarterly  ContributionFrequency = "QUARTERLY"
	FrequencySemiannual ContributionFrequency = "SEMIANNUAL"
	FrequencyYearly     ContributionFrequency = "YEARLY"
)

type ContributionTargetType string

const (
	TargetStockEtf ContributionTargetType = "STOCK_ETF"
	TargetFund     ContributionTargetType = "FUND"
	TargetAccount  ContributionTargetType = "ACCOUNT"
)

// PeriodicContribution is one standing investment order at an entity.
type PeriodicContribution struct {
	ID         uuid.UUID              `json:"id"`
	Alias      string                 `json:"alias,omitempty"`
	Target     string                 `json:"target"`
	TargetType ContributionTargetType `json:"target_type"`
	Amount     decimal.Decimal        `json:"amount"`
	Currency   string                 `json:"currency"`
	Since      time.Time              `json:"since"`
	Until      *time.Time             `json:"until,omitempty"`
	Frequency  ContributionFrequency  `json:"frequency"`
	Active     bool                   `json:"active"`
	Source     DataSource             `json:"source"`
}

// AutoContributions is everything an AUTO_CONTRIBUTIONS fetch produced.
type AutoContributions struct {
	Periodic []PeriodicContribution `json:"periodic"`
}
