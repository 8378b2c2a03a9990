package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CryptoWalletConnection links a native crypto-wallet entity to one on-chain
// address the user wants tracked.
type CryptoWalletConnection struct {
	ID       uuid.UUID `json:"id"`
	EntityID uuid.UUID `json:"entity_id"`
	Address  string    `json:"address"`
	Name     string    `json:"name,omitempty"`
	Created  time.Time `json:"created"`
}

// RawCryptoAsset is what a crypto fetcher reports before enrichment: a
// balance, its symbol and, for tokens, the contract address. Prices and
// display metadata are attached by the orchestrator.
type RawCryptoAsset struct {
	Symbol          string          `json:"symbol"`
	Name            string          `json:"name,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	Type            CryptoAssetType `json:"type"`
	ContractAddress string          `json:"contract_address,omitempty"`
}

// RawCryptoWallet is the unenriched result of reading one wallet address.
type RawCryptoWallet struct {
	ConnectionID uuid.UUID        `json:"connection_id"`
	Address      string           `json:"address"`
	Name         string           `json:"name,omitempty"`
	Assets       []RawCryptoAsset `json:"assets"`
}

// CryptoFetchRequest asks a crypto fetcher for one wallet's balances.
type CryptoFetchRequest struct {
	ConnectionID uuid.UUID
	Address      string
	Name         string
}

// CryptoAssetInfo is the registry row for an asset the system has seen.
type CryptoAssetInfo struct {
	Symbol          string          `json:"symbol"`
	Name            string          `json:"name"`
	Type            CryptoAssetType `json:"type"`
	ContractAddress string          `json:"contract_address,omitempty"`
	Registered      time.Time       `json:"registered"`
}
