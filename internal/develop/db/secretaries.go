package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rsned/kc-development-server/pkg/develop"
)

// ErrSecretaryNotFound is returned when a secretary rule id does not exist.
var ErrSecretaryNotFound = errors.New("secretary rule not found")

// SecretaryStore handles special secretary rule access.
type SecretaryStore struct {
	db *DB
}

// NewSecretaryStore creates a new SecretaryStore.
func NewSecretaryStore(db *DB) *SecretaryStore {
	return &SecretaryStore{db: db}
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// DefaultShortName derives a short name from a display name: the text
// before the first '/'.
func DefaultShortName(name string) string {
	short, _, _ := strings.Cut(name, "/")
	return strings.TrimSpace(short)
}

// validateRule checks a rule before it is written.
func validateRule(r develop.SecretaryRule) error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: secretary name is required", develop.ErrInvalidInput)
	}
	if !r.ShipType.IsValid() {
		return fmt.Errorf("%w: unknown ship type %q", develop.ErrInvalidInput, r.ShipType)
	}
	seen := make(map[develop.Pool]bool, len(r.Bonuses))
	for _, b := range r.Bonuses {
		if !b.Pool.IsValid() {
			return fmt.Errorf("%w: unknown pool %q", develop.ErrInvalidInput, b.Pool)
		}
		if seen[b.Pool] {
			return fmt.Errorf("%w: pool %q listed twice", develop.ErrInvalidInput, b.Pool)
		}
		seen[b.Pool] = true
	}
	return nil
}

// ListSecretaryRules returns every rule sorted by order, then id.
func (s *SecretaryStore) ListSecretaryRules(ctx context.Context) ([]develop.SecretaryRule, error) {
	return listRules(ctx, s.db)
}

func listRules(ctx context.Context, q querier) ([]develop.SecretaryRule, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, name, short_name, sort_order, ship_type
		FROM secretaries
		ORDER BY sort_order, id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying secretaries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []develop.SecretaryRule
	index := make(map[int]int)
	for rows.Next() {
		var r develop.SecretaryRule
		if err := rows.Scan(&r.ID, &r.Name, &r.ShortName, &r.Order, &r.ShipType); err != nil {
			return nil, fmt.Errorf("scanning secretary: %w", err)
		}
		index[r.ID] = len(rules)
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	adjRows, err := q.QueryContext(ctx, `
		SELECT secretary_id, pool, item_id, delta
		FROM secretary_adjustments
		ORDER BY secretary_id,
			CASE pool WHEN 'fs' THEN 0 WHEN 'am' THEN 1 ELSE 2 END,
			position
	`)
	if err != nil {
		return nil, fmt.Errorf("querying secretary adjustments: %w", err)
	}
	defer func() { _ = adjRows.Close() }()

	for adjRows.Next() {
		var id int
		var pool develop.Pool
		var adj develop.Adjustment
		if err := adjRows.Scan(&id, &pool, &adj.ItemID, &adj.Delta); err != nil {
			return nil, fmt.Errorf("scanning secretary adjustment: %w", err)
		}
		i, ok := index[id]
		if !ok {
			continue
		}
		r := &rules[i]
		if n := len(r.Bonuses); n > 0 && r.Bonuses[n-1].Pool == pool {
			r.Bonuses[n-1].Adjustments = append(r.Bonuses[n-1].Adjustments, adj)
			continue
		}
		r.Bonuses = append(r.Bonuses, develop.PoolBonus{Pool: pool, Adjustments: []develop.Adjustment{adj}})
	}

	return rules, adjRows.Err()
}

// GetSecretaryRule retrieves one rule by id.
// Returns nil, nil when the rule does not exist.
func (s *SecretaryStore) GetSecretaryRule(ctx context.Context, id int) (*develop.SecretaryRule, error) {
	rules, err := s.ListSecretaryRules(ctx)
	if err != nil {
		return nil, err
	}
	for i := range rules {
		if rules[i].ID == id {
			return &rules[i], nil
		}
	}
	return nil, nil
}

// CreateSecretaryRule appends a rule. A zero ID is replaced by the next
// free id and an explicit ID must not be taken. The rule goes to the end of
// the order, and an empty ShortName is derived from Name.
func (s *SecretaryStore) CreateSecretaryRule(ctx context.Context, r develop.SecretaryRule) (develop.SecretaryRule, error) {
	if err := validateRule(r); err != nil {
		return develop.SecretaryRule{}, err
	}
	if r.ShortName == "" {
		r.ShortName = DefaultShortName(r.Name)
	}

	err := s.db.InTransaction(ctx, func(tx *sql.Tx) error {
		var maxID, count int
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(id), 0), COUNT(*) FROM secretaries`,
		).Scan(&maxID, &count); err != nil {
			return fmt.Errorf("querying secretary ids: %w", err)
		}
		if r.ID == 0 {
			r.ID = maxID + 1
		} else {
			var exists int
			if err := tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM secretaries WHERE id = ?`, r.ID,
			).Scan(&exists); err != nil {
				return fmt.Errorf("checking secretary id: %w", err)
			}
			if exists > 0 {
				return fmt.Errorf("%w: secretary id %d already exists", develop.ErrInvalidInput, r.ID)
			}
		}
		r.Order = count
		return insertRule(ctx, tx, r)
	})
	if err != nil {
		return develop.SecretaryRule{}, err
	}
	return r, nil
}

// UpdateSecretaryRule replaces an existing rule, adjustments included.
func (s *SecretaryStore) UpdateSecretaryRule(ctx context.Context, r develop.SecretaryRule) error {
	if err := validateRule(r); err != nil {
		return err
	}
	if r.ShortName == "" {
		r.ShortName = DefaultShortName(r.Name)
	}

	return s.db.InTransaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE secretaries SET name = ?, short_name = ?, sort_order = ?, ship_type = ?
			WHERE id = ?
		`, r.Name, r.ShortName, r.Order, string(r.ShipType), r.ID)
		if err != nil {
			return fmt.Errorf("updating secretary %d: %w", r.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %d", ErrSecretaryNotFound, r.ID)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM secretary_adjustments WHERE secretary_id = ?`, r.ID); err != nil {
			return fmt.Errorf("clearing adjustments for %d: %w", r.ID, err)
		}
		return insertAdjustments(ctx, tx, r)
	})
}

// DeleteSecretaryRule removes a rule and its adjustments.
func (s *SecretaryStore) DeleteSecretaryRule(ctx context.Context, id int) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM secretaries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting secretary %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", ErrSecretaryNotFound, id)
	}
	return nil
}

// ReorderSecretaryRules rewrites Order to follow ids. Rules missing from
// ids keep their relative order after the listed ones.
func (s *SecretaryStore) ReorderSecretaryRules(ctx context.Context, ids []int) error {
	return s.db.InTransaction(ctx, func(tx *sql.Tx) error {
		current, err := listRules(ctx, tx)
		if err != nil {
			return err
		}

		known := make(map[int]bool, len(current))
		for _, r := range current {
			known[r.ID] = true
		}

		order := make([]int, 0, len(current))
		listed := make(map[int]bool, len(ids))
		for _, id := range ids {
			if !known[id] {
				return fmt.Errorf("%w: %d", ErrSecretaryNotFound, id)
			}
			if listed[id] {
				continue
			}
			listed[id] = true
			order = append(order, id)
		}
		for _, r := range current {
			if !listed[r.ID] {
				order = append(order, r.ID)
			}
		}

		for pos, id := range order {
			if _, err := tx.ExecContext(ctx, `UPDATE secretaries SET sort_order = ? WHERE id = ?`, pos, id); err != nil {
				return fmt.Errorf("reordering secretary %d: %w", id, err)
			}
		}
		return nil
	})
}

// ReplaceSecretaryRules swaps every rule for rules (for re-sync). Missing
// ShortNames are derived from Name.
func (s *SecretaryStore) ReplaceSecretaryRules(ctx context.Context, rules []develop.SecretaryRule) error {
	for _, r := range rules {
		if err := validateRule(r); err != nil {
			return fmt.Errorf("secretary %d: %w", r.ID, err)
		}
	}

	return s.db.InTransaction(ctx, func(tx *sql.Tx) error {
		// Foreign keys cascade to secretary_adjustments
		if _, err := tx.ExecContext(ctx, `DELETE FROM secretaries`); err != nil {
			return fmt.Errorf("clearing secretaries: %w", err)
		}
		for _, r := range rules {
			if r.ShortName == "" {
				r.ShortName = DefaultShortName(r.Name)
			}
			if err := insertRule(ctx, tx, r); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertRule(ctx context.Context, tx *sql.Tx, r develop.SecretaryRule) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO secretaries (id, name, short_name, sort_order, ship_type)
		VALUES (?, ?, ?, ?, ?)
	`, r.ID, r.Name, r.ShortName, r.Order, string(r.ShipType))
	if err != nil {
		return fmt.Errorf("inserting secretary %d: %w", r.ID, err)
	}
	return insertAdjustments(ctx, tx, r)
}

func insertAdjustments(ctx context.Context, tx *sql.Tx, r develop.SecretaryRule) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO secretary_adjustments (secretary_id, pool, position, item_id, delta)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing adjustment statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, b := range r.Bonuses {
		for pos, a := range b.Adjustments {
			if _, err := stmt.ExecContext(ctx, r.ID, string(b.Pool), pos, a.ItemID, a.Delta); err != nil {
				return fmt.Errorf("inserting adjustment for %d: %w", r.ID, err)
			}
		}
	}
	return nil
}
