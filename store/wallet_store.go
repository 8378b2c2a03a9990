package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/holdsight/wealth-api/models"
)

// WalletConnectionStore persists tracked crypto wallet addresses.
type WalletConnectionStore struct {
	db *sql.DB
}

func NewWalletConnectionStore(db *sql.DB) *WalletConnectionStore {
	return &WalletConnectionStore{db: db}
}

func (s *WalletConnectionStore) Insert(ctx context.Context, connection models.CryptoWalletConnection) error {
	_, err := exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO crypto_wallet_connections (id, entity_id, address, name, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)
	`, connection.ID, connection.EntityID, connection.Address, connection.Name, connection.Created)
	return err
}

func (s *WalletConnectionStore) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := exec(ctx, s.db).ExecContext(ctx,
		`DELETE FROM crypto_wallet_connections WHERE id = $1`, id)
	return err
}

func (s *WalletConnectionStore) GetByEntityID(ctx context.Context, entityID uuid.UUID) ([]models.CryptoWalletConnection, error) {
	rows, err := exec(ctx, s.db).QueryContext(ctx, `
		SELECT id, entity_id, address, COALESCE(name, ''), created_at
		FROM crypto_wallet_connections WHERE entity_id = $1 ORDER BY created_at
	`, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var connections []models.CryptoWalletConnection
	for rows.Next() {
		var c models.CryptoWalletConnection
		if err := rows.Scan(&c.ID, &c.EntityID, &c.Address, &c.Name, &c.Created); err != nil {
			return nil, err
		}
		connections = append(connections, c)
	}
	return connections, rows.Err()
}

// ConnectedEntities lists entity ids having at least one wallet connection.
func (s *WalletConnectionStore) ConnectedEntities(ctx context.Context) (map[uuid.UUID]bool, error) {
	rows, err := exec(ctx, s.db).QueryContext(ctx,
		`SELECT DISTINCT entity_id FROM crypto_wallet_connections`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	connected := map[uuid.UUID]bool{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		connected[id] = true
	}
	return connected, rows.Err()
}
