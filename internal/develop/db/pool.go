package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rsned/kc-development-server/pkg/develop"
)

// PoolStore handles base probability table access.
type PoolStore struct {
	db *DB
}

// NewPoolStore creates a new PoolStore.
func NewPoolStore(db *DB) *PoolStore {
	return &PoolStore{db: db}
}

// ListPoolRows returns the table rows in their original order. Cells that
// were empty on import are absent from Rates.
func (s *PoolStore) ListPoolRows(ctx context.Context) ([]develop.TableRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT item_id, name FROM pool_items ORDER BY position, item_id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying pool items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var table []develop.TableRow
	index := make(map[int]int)
	for rows.Next() {
		var r develop.TableRow
		if err := rows.Scan(&r.ItemID, &r.Name); err != nil {
			return nil, fmt.Errorf("scanning pool item: %w", err)
		}
		r.Rates = make(map[develop.PartitionKey]*int)
		index[r.ItemID] = len(table)
		table = append(table, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rateRows, err := s.db.QueryContext(ctx, `
		SELECT item_id, ship_type, pool, percent FROM pool_rates
	`)
	if err != nil {
		return nil, fmt.Errorf("querying pool rates: %w", err)
	}
	defer func() { _ = rateRows.Close() }()

	for rateRows.Next() {
		var id, percent int
		var key develop.PartitionKey
		if err := rateRows.Scan(&id, &key.ShipType, &key.Pool, &percent); err != nil {
			return nil, fmt.Errorf("scanning pool rate: %w", err)
		}
		i, ok := index[id]
		if !ok {
			continue
		}
		v := percent
		table[i].Rates[key] = &v
	}

	return table, rateRows.Err()
}

// CountPoolRows returns the number of table rows.
func (s *PoolStore) CountPoolRows(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pool_items`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting pool rows: %w", err)
	}
	return count, nil
}

// ReplacePoolTable swaps the whole table for rows in one transaction.
// Row order becomes the stored position.
func (s *PoolStore) ReplacePoolTable(ctx context.Context, rows []develop.TableRow) error {
	return s.db.InTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM pool_items`); err != nil {
			return fmt.Errorf("clearing pool table: %w", err)
		}

		itemStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO pool_items (item_id, position, name) VALUES (?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("preparing pool item statement: %w", err)
		}
		defer func() { _ = itemStmt.Close() }()

		rateStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO pool_rates (item_id, ship_type, pool, percent) VALUES (?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("preparing pool rate statement: %w", err)
		}
		defer func() { _ = rateStmt.Close() }()

		for pos, r := range rows {
			if _, err := itemStmt.ExecContext(ctx, r.ItemID, pos, r.Name); err != nil {
				return fmt.Errorf("inserting pool item %d: %w", r.ItemID, err)
			}
			for _, key := range develop.PartitionKeys() {
				v, ok := r.Rate(key)
				if !ok {
					continue
				}
				if _, err := rateStmt.ExecContext(ctx, r.ItemID, string(key.ShipType), string(key.Pool), v); err != nil {
					return fmt.Errorf("inserting %s rate for %d: %w", key.Label(), r.ItemID, err)
				}
			}
		}

		return nil
	})
}
