package db

import (
	"context"

	"github.com/rsned/kc-development-server/pkg/develop"
)

// Source reads every reference table. It satisfies refdata.Source.
type Source struct {
	Items       *ItemStore
	Pool        *PoolStore
	Secretaries *SecretaryStore
}

// NewSource creates a Source over db.
func NewSource(db *DB) *Source {
	return &Source{
		Items:       NewItemStore(db),
		Pool:        NewPoolStore(db),
		Secretaries: NewSecretaryStore(db),
	}
}

func (s *Source) ListItems(ctx context.Context) ([]develop.Item, error) {
	return s.Items.ListItems(ctx)
}

func (s *Source) ListPoolRows(ctx context.Context) ([]develop.TableRow, error) {
	return s.Pool.ListPoolRows(ctx)
}

func (s *Source) ListSecretaryRules(ctx context.Context) ([]develop.SecretaryRule, error) {
	return s.Secretaries.ListSecretaryRules(ctx)
}
