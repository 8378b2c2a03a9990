package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/holdsight/wealth-api/models"
)

// FetchRecordStore journals the last successful fetch per (entity, feature).
// Saves keep the newest date only, so dates are non-decreasing.
type FetchRecordStore struct {
	db *sql.DB
}

func NewFetchRecordStore(db *sql.DB) *FetchRecordStore {
	return &FetchRecordStore{db: db}
}

func (s *FetchRecordStore) Save(ctx context.Context, records []models.FetchRecord) error {
	for _, record := range records {
		_, err := exec(ctx, s.db).ExecContext(ctx, `
			INSERT INTO fetch_records (entity_id, feature, date)
			VALUES ($1, $2, $3)
			ON CONFLICT (entity_id, feature) DO UPDATE SET date = GREATEST(fetch_records.date, $3)
		`, record.EntityID, record.Feature, record.Date)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *FetchRecordStore) GetByEntityID(ctx context.Context, entityID uuid.UUID) ([]models.FetchRecord, error) {
	rows, err := exec(ctx, s.db).QueryContext(ctx, `
		SELECT entity_id, feature, date FROM fetch_records WHERE entity_id = $1
	`, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.FetchRecord
	for rows.Next() {
		var record models.FetchRecord
		if err := rows.Scan(&record.EntityID, &record.Feature, &record.Date); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// GetLast returns the record for one (entity, feature), or nil.
func (s *FetchRecordStore) GetLast(ctx context.Context, entityID uuid.UUID, feature models.Feature) (*models.FetchRecord, error) {
	var record models.FetchRecord
	err := exec(ctx, s.db).QueryRowContext(ctx, `
		SELECT entity_id, feature, date FROM fetch_records
		WHERE entity_id = $1 AND feature = $2
	`, entityID, feature).Scan(&record.EntityID, &record.Feature, &record.Date)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}
