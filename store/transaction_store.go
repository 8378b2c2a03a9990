package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/holdsight/wealth-api/models"
)

// TransactionStore persists account and investment transactions. Inserts
// are idempotent by (entity_id, ref); existing REAL rows are never deleted
// by a fetch.
type TransactionStore struct {
	db *sql.DB
}

func NewTransactionStore(db *sql.DB) *TransactionStore {
	return &TransactionStore{db: db}
}

func (s *TransactionStore) Save(ctx context.Context, txs models.Transactions) error {
	for _, tx := range txs.Account {
		payload, err := json.Marshal(tx)
		if err != nil {
			return err
		}
		_, err = exec(ctx, s.db).ExecContext(ctx, `
			INSERT INTO transactions (id, entity_id, ref, kind, type, product_type, date, source, payload)
			VALUES ($1, $2, $3, 'ACCOUNT', $4, $5, $6, $7, $8)
			ON CONFLICT (entity_id, ref) DO NOTHING
		`, tx.ID, tx.EntityID, tx.Ref, tx.Type, tx.ProductType, tx.Date, tx.Source, payload)
		if err != nil {
			return fmt.Errorf("save account tx %s: %w", tx.Ref, err)
		}
	}
	for _, tx := range txs.Investment {
		payload, err := json.Marshal(tx)
		if err != nil {
			return err
		}
		_, err = exec(ctx, s.db).ExecContext(ctx, `
			INSERT INTO transactions (id, entity_id, ref, kind, type, product_type, date, source, payload)
			VALUES ($1, $2, $3, 'INVESTMENT', $4, $5, $6, $7, $8)
			ON CONFLICT (entity_id, ref) DO NOTHING
		`, tx.ID, tx.EntityID, tx.Ref, tx.Type, tx.ProductType, tx.Date, tx.Source, payload)
		if err != nil {
			return fmt.Errorf("save investment tx %s: %w", tx.Ref, err)
		}
	}
	return nil
}

// GetRegisteredRefs returns the refs of REAL transactions already stored
// for an entity, so fetchers can prune what they return. Virtual refs are
// excluded on purpose: they must never suppress a real fetch.
func (s *TransactionStore) GetRegisteredRefs(ctx context.Context, entityID uuid.UUID) (map[string]bool, error) {
	rows, err := exec(ctx, s.db).QueryContext(ctx, `
		SELECT ref FROM transactions WHERE entity_id = $1 AND source = $2
	`, entityID, models.SourceReal)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refs := map[string]bool{}
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, err
		}
		refs[ref] = true
	}
	return refs, rows.Err()
}

func (s *TransactionStore) GetByEntity(ctx context.Context, entityID uuid.UUID) (models.Transactions, error) {
	return s.query(ctx, `
		SELECT kind, payload FROM transactions WHERE entity_id = $1 ORDER BY date
	`, entityID)
}

func (s *TransactionStore) GetAll(ctx context.Context, excludedEntities []uuid.UUID) (models.Transactions, error) {
	return s.query(ctx, `
		SELECT kind, payload FROM transactions
		WHERE ($1::uuid[] IS NULL OR entity_id <> ALL($1))
		ORDER BY date
	`, uuidArray(excludedEntities))
}

func (s *TransactionStore) DeleteBySource(ctx context.Context, source models.DataSource) error {
	_, err := exec(ctx, s.db).ExecContext(ctx,
		`DELETE FROM transactions WHERE source = $1`, source)
	return err
}

func (s *TransactionStore) query(ctx context.Context, sqlQuery string, args ...any) (models.Transactions, error) {
	rows, err := exec(ctx, s.db).QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return models.Transactions{}, err
	}
	defer rows.Close()

	var txs models.Transactions
	for rows.Next() {
		var (
			kind    string
			payload []byte
		)
		if err := rows.Scan(&kind, &payload); err != nil {
			return models.Transactions{}, err
		}
		switch kind {
		case "ACCOUNT":
			var tx models.AccountTx
			if err := json.Unmarshal(payload, &tx); err != nil {
				return models.Transactions{}, fmt.Errorf("decode account tx: %w", err)
			}
			txs.Account = append(txs.Account, tx)
		case "INVESTMENT":
			var tx models.InvestmentTx
			if err := json.Unmarshal(payload, &tx); err != nil {
				return models.Transactions{}, fmt.Errorf("decode investment tx: %w", err)
			}
			txs.Investment = append(txs.Investment, tx)
		}
	}
	return txs, rows.Err()
}
