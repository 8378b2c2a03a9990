package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/holdsight/wealth-api/models"
)

// AssetRegistry remembers every crypto asset the system has seen, so the
// enrichment orchestrator only queries the asset-info provider for new ones.
// Tokens key by lowercase contract address, native assets by symbol.
type AssetRegistry struct {
	db *sql.DB
}

func NewAssetRegistry(db *sql.DB) *AssetRegistry {
	return &AssetRegistry{db: db}
}

func assetKey(asset models.CryptoAssetInfo) string {
	if asset.Type == models.CryptoToken && asset.ContractAddress != "" {
		return strings.ToLower(asset.ContractAddress)
	}
	return strings.ToUpper(asset.Symbol)
}

func (r *AssetRegistry) Register(ctx context.Context, asset models.CryptoAssetInfo) error {
	_, err := exec(ctx, r.db).ExecContext(ctx, `
		INSERT INTO crypto_assets (key, symbol, name, type, contract_address, registered_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
		ON CONFLICT (key) DO NOTHING
	`, assetKey(asset), asset.Symbol, asset.Name, asset.Type, strings.ToLower(asset.ContractAddress), asset.Registered)
	return err
}

// Known reports whether an asset was registered before.
func (r *AssetRegistry) Known(ctx context.Context, asset models.CryptoAssetInfo) (bool, error) {
	var exists bool
	err := exec(ctx, r.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM crypto_assets WHERE key = $1)`, assetKey(asset),
	).Scan(&exists)
	return exists, err
}
