package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/holdsight/wealth-api/models"
)

// ContributionsStore persists periodic auto-contributions. A fetch replaces
// the (entity, source) set wholesale.
type ContributionsStore struct {
	db *sql.DB
}

func NewContributionsStore(db *sql.DB) *ContributionsStore {
	return &ContributionsStore{db: db}
}

func (s *ContributionsStore) Save(ctx context.Context, entityID uuid.UUID, contributions models.AutoContributions, source models.DataSource) error {
	_, err := exec(ctx, s.db).ExecContext(ctx,
		`DELETE FROM auto_contributions WHERE entity_id = $1 AND source = $2`, entityID, source)
	if err != nil {
		return err
	}
	for _, contribution := range contributions.Periodic {
		payload, err := json.Marshal(contribution)
		if err != nil {
			return err
		}
		_, err = exec(ctx, s.db).ExecContext(ctx, `
			INSERT INTO auto_contributions (id, entity_id, source, payload)
			VALUES ($1, $2, $3, $4)
		`, contribution.ID, entityID, source, payload)
		if err != nil {
			return fmt.Errorf("save contribution %s: %w", contribution.Target, err)
		}
	}
	return nil
}

func (s *ContributionsStore) GetAllGroupedByEntity(ctx context.Context) (map[uuid.UUID]models.AutoContributions, error) {
	rows, err := exec(ctx, s.db).QueryContext(ctx,
		`SELECT entity_id, payload FROM auto_contributions`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	grouped := map[uuid.UUID]models.AutoContributions{}
	for rows.Next() {
		var (
			entityID uuid.UUID
			payload  []byte
		)
		if err := rows.Scan(&entityID, &payload); err != nil {
			return nil, err
		}
		var contribution models.PeriodicContribution
		if err := json.Unmarshal(payload, &contribution); err != nil {
			return nil, fmt.Errorf("decode contribution: %w", err)
		}
		entry := grouped[entityID]
		entry.Periodic = append(entry.Periodic, contribution)
		grouped[entityID] = entry
	}
	return grouped, rows.Err()
}

func (s *ContributionsStore) DeleteBySource(ctx context.Context, source models.DataSource) error {
	_, err := exec(ctx, s.db).ExecContext(ctx,
		`DELETE FROM auto_contributions WHERE source = $1`, source)
	return err
}
