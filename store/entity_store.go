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

type EntityStore struct {
	db *sql.DB
}

func NewEntityStore(db *sql.DB) *EntityStore {
	return &EntityStore{db: db}
}

const entityColumns = `id, name, natural_id, type, origin, features, is_real, setup_login_type, pin_positions, disabled`

func scanEntity(row interface{ Scan(...any) error }) (models.Entity, error) {
	var (
		e         models.Entity
		naturalID sql.NullString
		features  []byte
		loginType sql.NullString
		pin       sql.NullInt64
	)
	err := row.Scan(&e.ID, &e.Name, &naturalID, &e.Type, &e.Origin, &features, &e.IsReal, &loginType, &pin, &e.Disabled)
	if err != nil {
		return models.Entity{}, err
	}
	e.NaturalID = naturalID.String
	e.SetupLoginType = models.SetupLoginType(loginType.String)
	e.PinPositions = int(pin.Int64)
	if len(features) > 0 {
		if err := json.Unmarshal(features, &e.Features); err != nil {
			return models.Entity{}, fmt.Errorf("decode entity features: %w", err)
		}
	}
	return e, nil
}

func (s *EntityStore) Insert(ctx context.Context, e models.Entity) error {
	features, err := json.Marshal(e.Features)
	if err != nil {
		return err
	}
	_, err = exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO entities (id, name, natural_id, type, origin, features, is_real, setup_login_type, pin_positions, disabled)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, NULLIF($8, ''), $9, $10)
	`, e.ID, e.Name, e.NaturalID, e.Type, e.Origin, features, e.IsReal, string(e.SetupLoginType), e.PinPositions, e.Disabled)
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return fmt.Errorf("entity %s already registered: %w", e.Name, err)
	}
	return err
}

func (s *EntityStore) Update(ctx context.Context, e models.Entity) error {
	features, err := json.Marshal(e.Features)
	if err != nil {
		return err
	}
	_, err = exec(ctx, s.db).ExecContext(ctx, `
		UPDATE entities
		SET name = $2, natural_id = NULLIF($3, ''), origin = $4, features = $5, disabled = $6
		WHERE id = $1
	`, e.ID, e.Name, e.NaturalID, e.Origin, features, e.Disabled)
	return err
}

// Upsert registers a native entity at bootstrap without touching one that
// already exists (natives are immutable after registration).
func (s *EntityStore) Upsert(ctx context.Context, e models.Entity) error {
	features, err := json.Marshal(e.Features)
	if err != nil {
		return err
	}
	_, err = exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO entities (id, name, natural_id, type, origin, features, is_real, setup_login_type, pin_positions, disabled)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, NULLIF($8, ''), $9, $10)
		ON CONFLICT (id) DO NOTHING
	`, e.ID, e.Name, e.NaturalID, e.Type, e.Origin, features, e.IsReal, string(e.SetupLoginType), e.PinPositions, e.Disabled)
	return err
}

func (s *EntityStore) GetByID(ctx context.Context, id uuid.UUID) (models.Entity, error) {
	row := exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE id = $1`, id)
	e, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return models.Entity{}, &models.EntityNotFoundError{ID: id}
	}
	return e, err
}

func (s *EntityStore) GetByNaturalID(ctx context.Context, naturalID string) (*models.Entity, error) {
	row := exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE natural_id = $1`, naturalID)
	e, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *EntityStore) GetByName(ctx context.Context, name string) (*models.Entity, error) {
	row := exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE name = $1`, name)
	e, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *EntityStore) ListAll(ctx context.Context) ([]models.Entity, error) {
	return s.list(ctx, `SELECT `+entityColumns+` FROM entities ORDER BY name`)
}

func (s *EntityStore) GetDisabled(ctx context.Context) ([]models.Entity, error) {
	return s.list(ctx, `SELECT `+entityColumns+` FROM entities WHERE disabled ORDER BY name`)
}

func (s *EntityStore) list(ctx context.Context, query string, args ...any) ([]models.Entity, error) {
	rows, err := exec(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entities []models.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}
