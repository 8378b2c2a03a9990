package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/holdsight/wealth-api/models"
)

// ExternalEntityStore persists aggregator links. At most one LINKED row per
// entity is enforced by a partial unique index.
type ExternalEntityStore struct {
	db *sql.DB
}

func NewExternalEntityStore(db *sql.DB) *ExternalEntityStore {
	return &ExternalEntityStore{db: db}
}

const externalColumns = `id, entity_id, provider, provider_instance_id, status, payload, date`

func scanExternal(row interface{ Scan(...any) error }) (models.ExternalEntity, error) {
	var (
		e          models.ExternalEntity
		instanceID sql.NullString
		payload    []byte
	)
	err := row.Scan(&e.ID, &e.EntityID, &e.Provider, &instanceID, &e.Status, &payload, &e.Date)
	if err != nil {
		return models.ExternalEntity{}, err
	}
	e.ProviderInstanceID = instanceID.String
	e.Payload = payload
	return e, nil
}

func (s *ExternalEntityStore) Upsert(ctx context.Context, e models.ExternalEntity) error {
	_, err := exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO external_entities (id, entity_id, provider, provider_instance_id, status, payload, date)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET provider_instance_id = NULLIF($4, ''), status = $5, payload = $6, date = $7
	`, e.ID, e.EntityID, e.Provider, e.ProviderInstanceID, e.Status, e.Payload, e.Date)
	return err
}

func (s *ExternalEntityStore) GetByID(ctx context.Context, id uuid.UUID) (*models.ExternalEntity, error) {
	row := exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+externalColumns+` FROM external_entities WHERE id = $1`, id)
	e, err := scanExternal(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *ExternalEntityStore) GetByEntityID(ctx context.Context, entityID uuid.UUID) (*models.ExternalEntity, error) {
	row := exec(ctx, s.db).QueryRowContext(ctx, `
		SELECT `+externalColumns+` FROM external_entities
		WHERE entity_id = $1 ORDER BY date DESC LIMIT 1
	`, entityID)
	e, err := scanExternal(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *ExternalEntityStore) UpdateStatus(ctx context.Context, id uuid.UUID, status models.ExternalEntityStatus) error {
	_, err := exec(ctx, s.db).ExecContext(ctx,
		`UPDATE external_entities SET status = $2 WHERE id = $1`, id, status)
	return err
}

func (s *ExternalEntityStore) DeleteByID(ctx context.Context, id uuid.UUID) error {
	_, err := exec(ctx, s.db).ExecContext(ctx,
		`DELETE FROM external_entities WHERE id = $1`, id)
	return err
}
