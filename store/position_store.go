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

// PositionStore persists GlobalPosition snapshots. Snapshots are
// append-only: a new row per fetch, products as one JSONB document.
type PositionStore struct {
	db *sql.DB
}

func NewPositionStore(db *sql.DB) *PositionStore {
	return &PositionStore{db: db}
}

func (s *PositionStore) Save(ctx context.Context, position models.GlobalPosition) error {
	products, err := json.Marshal(position.Products)
	if err != nil {
		return fmt.Errorf("encode products: %w", err)
	}
	_, err = exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO global_positions (id, entity_id, date, products, is_real, source)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, position.ID, position.EntityID, position.Date, products, position.IsReal, position.Source)
	return err
}

func (s *PositionStore) GetByID(ctx context.Context, id uuid.UUID) (*models.GlobalPosition, error) {
	row := exec(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, entity_id, date, products, is_real, source
		FROM global_positions WHERE id = $1
	`, id)
	position, err := scanPosition(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &position, nil
}

// GetLastGroupedByEntity returns, per entity, the most recent snapshot
// matching the query.
func (s *PositionStore) GetLastGroupedByEntity(ctx context.Context, query models.PositionQuery) (map[uuid.UUID]models.GlobalPosition, error) {
	sqlQuery := `
		SELECT DISTINCT ON (entity_id) id, entity_id, date, products, is_real, source
		FROM global_positions
		WHERE ($1::uuid[] IS NULL OR entity_id = ANY($1))
		  AND ($2::uuid[] IS NULL OR entity_id <> ALL($2))
		  AND ($3::boolean IS NULL OR is_real = $3)
		ORDER BY entity_id, date DESC
	`
	rows, err := exec(ctx, s.db).QueryContext(ctx, sqlQuery,
		uuidArray(query.Entities), uuidArray(query.ExcludedEntities), nullBool(query.Real))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := map[uuid.UUID]models.GlobalPosition{}
	for rows.Next() {
		position, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		result[position.EntityID] = position
	}
	return result, rows.Err()
}

func (s *PositionStore) DeleteByID(ctx context.Context, id uuid.UUID) error {
	_, err := exec(ctx, s.db).ExecContext(ctx,
		`DELETE FROM global_positions WHERE id = $1`, id)
	return err
}

func scanPosition(row interface{ Scan(...any) error }) (models.GlobalPosition, error) {
	var (
		position models.GlobalPosition
		products []byte
	)
	err := row.Scan(&position.ID, &position.EntityID, &position.Date, &products, &position.IsReal, &position.Source)
	if err != nil {
		return models.GlobalPosition{}, err
	}
	if err := json.Unmarshal(products, &position.Products); err != nil {
		return models.GlobalPosition{}, fmt.Errorf("decode products: %w", err)
	}
	return position, nil
}

func uuidArray(ids []uuid.UUID) any {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return pq.Array(out)
}

func nullBool(b *bool) any {
	if b == nil {
		return nil
	}
	return *b
}
