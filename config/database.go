package config

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

func InitDB(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return db, nil
}

func RunMigrations(db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS entities (
			id UUID PRIMARY KEY,
			name VARCHAR(255) UNIQUE NOT NULL,
			natural_id VARCHAR(255),
			type VARCHAR(50) NOT NULL,
			origin VARCHAR(50) NOT NULL,
			features JSONB NOT NULL DEFAULT '[]',
			is_real BOOLEAN NOT NULL DEFAULT TRUE,
			setup_login_type VARCHAR(50),
			pin_positions INTEGER DEFAULT 0,
			disabled BOOLEAN NOT NULL DEFAULT FALSE
		)`,

		`CREATE UNIQUE INDEX IF NOT EXISTS idx_entities_natural_id
			ON entities(natural_id) WHERE natural_id IS NOT NULL`,

		`CREATE TABLE IF NOT EXISTS entity_credentials (
			entity_id UUID PRIMARY KEY REFERENCES entities(id) ON DELETE CASCADE,
			payload TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_used_at TIMESTAMPTZ,
			expired_at TIMESTAMPTZ
		)`,

		`CREATE TABLE IF NOT EXISTS entity_sessions (
			entity_id UUID PRIMARY KEY REFERENCES entities(id) ON DELETE CASCADE,
			creation TIMESTAMPTZ NOT NULL,
			expiration TIMESTAMPTZ NOT NULL,
			payload TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS global_positions (
			id UUID PRIMARY KEY,
			entity_id UUID NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
			date TIMESTAMPTZ NOT NULL,
			products JSONB NOT NULL,
			is_real BOOLEAN NOT NULL DEFAULT TRUE,
			source VARCHAR(20) NOT NULL DEFAULT 'REAL'
		)`,

		`CREATE INDEX IF NOT EXISTS idx_global_positions_entity_date
			ON global_positions(entity_id, date DESC)`,

		`CREATE TABLE IF NOT EXISTS transactions (
			id UUID PRIMARY KEY,
			entity_id UUID NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
			ref VARCHAR(255) NOT NULL,
			kind VARCHAR(20) NOT NULL,
			type VARCHAR(30) NOT NULL,
			product_type VARCHAR(30) NOT NULL,
			date TIMESTAMPTZ NOT NULL,
			source VARCHAR(20) NOT NULL DEFAULT 'REAL',
			payload JSONB NOT NULL,
			UNIQUE(entity_id, ref)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_transactions_entity_id ON transactions(entity_id)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_source ON transactions(source)`,

		`CREATE TABLE IF NOT EXISTS historic_entries (
			id UUID PRIMARY KEY,
			entity_id UUID NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
			name VARCHAR(255) NOT NULL,
			product_type VARCHAR(30) NOT NULL,
			payload JSONB NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_historic_entries_entity_id ON historic_entries(entity_id)`,

		`CREATE TABLE IF NOT EXISTS auto_contributions (
			id UUID PRIMARY KEY,
			entity_id UUID NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
			source VARCHAR(20) NOT NULL DEFAULT 'REAL',
			payload JSONB NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_auto_contributions_entity_id ON auto_contributions(entity_id)`,

		`CREATE TABLE IF NOT EXISTS fetch_records (
			entity_id UUID NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
			feature VARCHAR(30) NOT NULL,
			date TIMESTAMPTZ NOT NULL,
			PRIMARY KEY(entity_id, feature)
		)`,

		`CREATE TABLE IF NOT EXISTS external_entities (
			id UUID PRIMARY KEY,
			entity_id UUID NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
			provider VARCHAR(50) NOT NULL,
			provider_instance_id VARCHAR(255),
			status VARCHAR(20) NOT NULL,
			payload JSONB,
			date TIMESTAMPTZ NOT NULL
		)`,

		`CREATE UNIQUE INDEX IF NOT EXISTS idx_external_entities_linked
			ON external_entities(entity_id) WHERE status = 'LINKED'`,

		`CREATE TABLE IF NOT EXISTS crypto_wallet_connections (
			id UUID PRIMARY KEY,
			entity_id UUID NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
			address VARCHAR(255) NOT NULL,
			name VARCHAR(255),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE(entity_id, address)
		)`,

		`CREATE TABLE IF NOT EXISTS crypto_assets (
			key VARCHAR(255) PRIMARY KEY,
			symbol VARCHAR(30) NOT NULL,
			name VARCHAR(150) NOT NULL,
			type VARCHAR(20) NOT NULL,
			contract_address VARCHAR(255),
			registered_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS virtual_data_imports (
			import_id UUID NOT NULL,
			global_position_id UUID,
			entity_id UUID,
			feature VARCHAR(30),
			source VARCHAR(20) NOT NULL,
			date TIMESTAMPTZ NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_virtual_data_imports_source_date
			ON virtual_data_imports(source, date DESC)`,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}
