package store

import (
	"context"
	"database/sql"

	"github.com/holdsight/wealth-api/models"
)

// VirtualImportStore journals virtual import runs so the import
// orchestrator can reconstruct the "last imported" view per feature.
type VirtualImportStore struct {
	db *sql.DB
}

func NewVirtualImportStore(db *sql.DB) *VirtualImportStore {
	return &VirtualImportStore{db: db}
}

func (s *VirtualImportStore) Insert(ctx context.Context, entries []models.VirtualDataImport) error {
	for _, entry := range entries {
		var feature any
		if entry.Feature != nil {
			feature = string(*entry.Feature)
		}
		_, err := exec(ctx, s.db).ExecContext(ctx, `
			INSERT INTO virtual_data_imports (import_id, global_position_id, entity_id, feature, source, date)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, entry.ImportID, entry.GlobalPositionID, entry.EntityID, feature, entry.Source, entry.Date)
		if err != nil {
			return err
		}
	}
	return nil
}

// GetLastImport returns the rows of the most recent import for a source,
// empty when the source was never imported.
func (s *VirtualImportStore) GetLastImport(ctx context.Context, source models.DataSource) ([]models.VirtualDataImport, error) {
	rows, err := exec(ctx, s.db).QueryContext(ctx, `
		SELECT import_id, global_position_id, entity_id, feature, source, date
		FROM virtual_data_imports
		WHERE source = $1
		  AND import_id = (
			SELECT import_id FROM virtual_data_imports
			WHERE source = $1 ORDER BY date DESC LIMIT 1
		  )
	`, source)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanVirtualImports(rows)
}

func scanVirtualImports(rows *sql.Rows) ([]models.VirtualDataImport, error) {
	var entries []models.VirtualDataImport
	for rows.Next() {
		var (
			entry   models.VirtualDataImport
			feature sql.NullString
		)
		err := rows.Scan(&entry.ImportID, &entry.GlobalPositionID, &entry.EntityID, &feature, &entry.Source, &entry.Date)
		if err != nil {
			return nil, err
		}
		if feature.Valid {
			f := models.Feature(feature.String)
			entry.Feature = &f
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
