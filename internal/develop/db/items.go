package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rsned/kc-development-server/pkg/develop"
)

// ItemStore handles item catalog data access.
type ItemStore struct {
	db *DB
}

// NewItemStore creates a new ItemStore.
func NewItemStore(db *DB) *ItemStore {
	return &ItemStore{db: db}
}

// GetItem retrieves a single item by ID with its names.
// Returns nil, nil when the item does not exist.
func (s *ItemStore) GetItem(ctx context.Context, id int) (*develop.Item, error) {
	item := &develop.Item{ID: id}
	var craftable int

	err := s.db.QueryRowContext(ctx, `
		SELECT rarity, type, craftable,
			dismantle_fuel, dismantle_ammo, dismantle_steel, dismantle_bauxite
		FROM items WHERE id = ?
	`, id).Scan(
		&item.Rarity,
		&item.Type,
		&craftable,
		&item.Dismantle[develop.Fuel],
		&item.Dismantle[develop.Ammo],
		&item.Dismantle[develop.Steel],
		&item.Dismantle[develop.Bauxite],
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying item: %w", err)
	}
	item.Craftable = craftable != 0

	rows, err := s.db.QueryContext(ctx, `
		SELECT locale, name FROM item_names WHERE item_id = ?
	`, id)
	if err != nil {
		return nil, fmt.Errorf("querying item names: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var locale, name string
		if err := rows.Scan(&locale, &name); err != nil {
			return nil, fmt.Errorf("scanning item name: %w", err)
		}
		if item.Names == nil {
			item.Names = make(map[string]string)
		}
		item.Names[locale] = name
	}

	return item, rows.Err()
}

// ListItems returns the whole catalog ordered by id.
func (s *ItemStore) ListItems(ctx context.Context) ([]develop.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, rarity, type, craftable,
			dismantle_fuel, dismantle_ammo, dismantle_steel, dismantle_bauxite
		FROM items
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []develop.Item
	index := make(map[int]int)
	for rows.Next() {
		var it develop.Item
		var craftable int
		if err := rows.Scan(
			&it.ID, &it.Rarity, &it.Type, &craftable,
			&it.Dismantle[develop.Fuel],
			&it.Dismantle[develop.Ammo],
			&it.Dismantle[develop.Steel],
			&it.Dismantle[develop.Bauxite],
		); err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		it.Craftable = craftable != 0
		index[it.ID] = len(items)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	nameRows, err := s.db.QueryContext(ctx, `SELECT item_id, locale, name FROM item_names`)
	if err != nil {
		return nil, fmt.Errorf("querying item names: %w", err)
	}
	defer func() { _ = nameRows.Close() }()

	for nameRows.Next() {
		var id int
		var locale, name string
		if err := nameRows.Scan(&id, &locale, &name); err != nil {
			return nil, fmt.Errorf("scanning item name: %w", err)
		}
		i, ok := index[id]
		if !ok {
			continue
		}
		if items[i].Names == nil {
			items[i].Names = make(map[string]string)
		}
		items[i].Names[locale] = name
	}

	return items, nameRows.Err()
}

// CountItems returns the total number of catalog items.
func (s *ItemStore) CountItems(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting items: %w", err)
	}
	return count, nil
}

// BulkInsertItems inserts or replaces multiple items in a transaction.
func (s *ItemStore) BulkInsertItems(ctx context.Context, items []develop.Item) error {
	return s.db.InTransaction(ctx, func(tx *sql.Tx) error {
		return insertItems(ctx, tx, items)
	})
}

// ReplaceItems swaps the whole catalog in one transaction. On error the
// previous catalog is kept.
func (s *ItemStore) ReplaceItems(ctx context.Context, items []develop.Item) error {
	return s.db.InTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM items`); err != nil {
			return fmt.Errorf("clearing items: %w", err)
		}
		return insertItems(ctx, tx, items)
	})
}

func insertItems(ctx context.Context, tx *sql.Tx, items []develop.Item) error {
	itemStmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO items
		(id, rarity, type, craftable, dismantle_fuel, dismantle_ammo, dismantle_steel, dismantle_bauxite)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing item statement: %w", err)
	}
	defer func() { _ = itemStmt.Close() }()

	nameStmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO item_names (item_id, locale, name)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing name statement: %w", err)
	}
	defer func() { _ = nameStmt.Close() }()

	for _, it := range items {
		if it.ID <= 0 {
			return fmt.Errorf("%w: item id %d", develop.ErrInvalidInput, it.ID)
		}
		craftable := 0
		if it.Craftable {
			craftable = 1
		}
		_, err := itemStmt.ExecContext(ctx,
			it.ID, it.Rarity, it.Type, craftable,
			it.Dismantle[develop.Fuel], it.Dismantle[develop.Ammo],
			it.Dismantle[develop.Steel], it.Dismantle[develop.Bauxite],
		)
		if err != nil {
			return fmt.Errorf("inserting item %d: %w", it.ID, err)
		}

		for locale, name := range it.Names {
			if name == "" {
				continue
			}
			if _, err := nameStmt.ExecContext(ctx, it.ID, locale, name); err != nil {
				return fmt.Errorf("inserting name for %d: %w", it.ID, err)
			}
		}
	}

	return nil
}

// ClearItems removes all catalog data (for re-sync).
func (s *ItemStore) ClearItems(ctx context.Context) error {
	return s.db.InTransaction(ctx, func(tx *sql.Tx) error {
		// Foreign keys cascade to item_names
		_, err := tx.ExecContext(ctx, `DELETE FROM items`)
		return err
	})
}
