package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/holdsight/wealth-api/models"
)

// HistoricStore persists aggregated investment lifecycle entries. A fetch
// replaces an entity's entries wholesale inside its transaction.
type HistoricStore struct {
	db *sql.DB
}

func NewHistoricStore(db *sql.DB) *HistoricStore {
	return &HistoricStore{db: db}
}

func (s *HistoricStore) Save(ctx context.Context, entries []models.HistoricEntry) error {
	for _, entry := range entries {
		payload, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		_, err = exec(ctx, s.db).ExecContext(ctx, `
			INSERT INTO historic_entries (id, entity_id, name, product_type, payload)
			VALUES ($1, $2, $3, $4, $5)
		`, entry.ID, entry.EntityID, entry.Name, entry.ProductType, payload)
		if err != nil {
			return fmt.Errorf("save historic entry %s: %w", entry.Name, err)
		}
	}
	return nil
}

func (s *HistoricStore) DeleteByEntity(ctx context.Context, entityID uuid.UUID) error {
	_, err := exec(ctx, s.db).ExecContext(ctx,
		`DELETE FROM historic_entries WHERE entity_id = $1`, entityID)
	return err
}

func (s *HistoricStore) GetByFilters(ctx context.Context, query models.HistoricQuery) ([]models.HistoricEntry, error) {
	rows, err := exec(ctx, s.db).QueryContext(ctx, `
		SELECT payload FROM historic_entries
		WHERE ($1::uuid[] IS NULL OR entity_id = ANY($1))
		  AND ($2::text[] IS NULL OR product_type = ANY($2))
		ORDER BY name
	`, uuidArray(query.Entities), productTypeArray(query.ProductTypes))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.HistoricEntry
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var entry models.HistoricEntry
		if err := json.Unmarshal(payload, &entry); err != nil {
			return nil, fmt.Errorf("decode historic entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func productTypeArray(types []models.ProductType) any {
	if len(types) == 0 {
		return nil
	}
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return pq.Array(out)
}
