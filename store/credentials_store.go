package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/holdsight/wealth-api/models"
	"github.com/holdsight/wealth-api/utils"
)

// CredentialsStore persists per-entity credential payloads encrypted at
// rest. Only the login flow writes here.
type CredentialsStore struct {
	db     *sql.DB
	cipher *utils.Cipher
}

func NewCredentialsStore(db *sql.DB, cipher *utils.Cipher) *CredentialsStore {
	return &CredentialsStore{db: db, cipher: cipher}
}

func (s *CredentialsStore) Save(ctx context.Context, entityID uuid.UUID, creds models.EntityCredentials) error {
	plain, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	encrypted, err := s.cipher.Encrypt(plain)
	if err != nil {
		return fmt.Errorf("encrypt credentials: %w", err)
	}
	_, err = exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO entity_credentials (entity_id, payload, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (entity_id) DO UPDATE SET payload = $2, updated_at = NOW(), expired_at = NULL
	`, entityID, encrypted)
	return err
}

func (s *CredentialsStore) Get(ctx context.Context, entityID uuid.UUID) (models.EntityCredentials, error) {
	var encrypted string
	err := exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT payload FROM entity_credentials WHERE entity_id = $1`, entityID,
	).Scan(&encrypted)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	plain, err := s.cipher.Decrypt(encrypted)
	if err != nil {
		return nil, fmt.Errorf("decrypt credentials: %w", err)
	}
	var creds models.EntityCredentials
	if err := json.Unmarshal(plain, &creds); err != nil {
		return nil, err
	}
	return creds, nil
}

func (s *CredentialsStore) Delete(ctx context.Context, entityID uuid.UUID) error {
	_, err := exec(ctx, s.db).ExecContext(ctx,
		`DELETE FROM entity_credentials WHERE entity_id = $1`, entityID)
	return err
}

// UpdateExpiration marks credentials as expired (LOGIN_REQUIRED) or clears
// the mark after a successful login (expiredAt nil).
func (s *CredentialsStore) UpdateExpiration(ctx context.Context, entityID uuid.UUID, expiredAt *time.Time) error {
	_, err := exec(ctx, s.db).ExecContext(ctx,
		`UPDATE entity_credentials SET expired_at = $2 WHERE entity_id = $1`, entityID, expiredAt)
	return err
}

func (s *CredentialsStore) UpdateLastUsage(ctx context.Context, entityID uuid.UUID) error {
	_, err := exec(ctx, s.db).ExecContext(ctx,
		`UPDATE entity_credentials SET last_used_at = NOW() WHERE entity_id = $1`, entityID)
	return err
}

// ConnectedEntities lists the entities the user has stored credentials for.
func (s *CredentialsStore) ConnectedEntities(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := exec(ctx, s.db).QueryContext(ctx, `SELECT entity_id FROM entity_credentials`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
