package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/holdsight/wealth-api/models"
	"github.com/holdsight/wealth-api/utils"
)

// SessionStore persists resumable provider sessions, payload encrypted.
type SessionStore struct {
	db     *sql.DB
	cipher *utils.Cipher
}

func NewSessionStore(db *sql.DB, cipher *utils.Cipher) *SessionStore {
	return &SessionStore{db: db, cipher: cipher}
}

func (s *SessionStore) Save(ctx context.Context, entityID uuid.UUID, session models.EntitySession) error {
	encrypted, err := s.cipher.Encrypt(session.Payload)
	if err != nil {
		return fmt.Errorf("encrypt session: %w", err)
	}
	_, err = exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO entity_sessions (entity_id, creation, expiration, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (entity_id) DO UPDATE SET creation = $2, expiration = $3, payload = $4
	`, entityID, session.Creation, session.Expiration, encrypted)
	return err
}

func (s *SessionStore) Get(ctx context.Context, entityID uuid.UUID) (*models.EntitySession, error) {
	var (
		session   models.EntitySession
		encrypted string
	)
	err := exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT creation, expiration, payload FROM entity_sessions WHERE entity_id = $1`, entityID,
	).Scan(&session.Creation, &session.Expiration, &encrypted)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	session.Payload, err = s.cipher.Decrypt(encrypted)
	if err != nil {
		return nil, fmt.Errorf("decrypt session: %w", err)
	}
	return &session, nil
}

func (s *SessionStore) Delete(ctx context.Context, entityID uuid.UUID) error {
	_, err := exec(ctx, s.db).ExecContext(ctx,
		`DELETE FROM entity_sessions WHERE entity_id = $1`, entityID)
	return err
}
