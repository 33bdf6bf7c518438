// Package refdata holds the immutable reference data the development engine reads:
// the item catalog, the base probability table and the special secretary rules.
//
// A Snapshot is built once per load and never mutated afterwards, so it can be
// shared freely between goroutines. Edits to the underlying store only become
// visible through a new Snapshot.
package refdata

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/rsned/kc-development-server/pkg/develop"
)

// LandBasedShortName is the reserved short name of the conditional
// land-based aircraft rule. It is looked up by name, never by id.
const LandBasedShortName = "land-based-aircraft"

// legacyLandBasedShortName is the same rule as named in rule files exported
// by the web simulator.
const legacyLandBasedShortName = "陆攻"

// IsLandBasedShortName reports whether name marks the conditional rule.
func IsLandBasedShortName(name string) bool {
	name = strings.TrimSpace(name)
	return name == LandBasedShortName || name == legacyLandBasedShortName
}

// Source supplies the raw reference data for a Snapshot.
type Source interface {
	ListItems(ctx context.Context) ([]develop.Item, error)
	ListPoolRows(ctx context.Context) ([]develop.TableRow, error)
	ListSecretaryRules(ctx context.Context) ([]develop.SecretaryRule, error)
}

var versionSeq atomic.Uint64

// Snapshot is a read-only view of the reference data.
type Snapshot struct {
	version uint64

	items     map[int]develop.Item
	itemOrder []int

	rows       []develop.TableRow
	rowIndex   map[int]int
	partitions map[develop.PartitionKey]map[int]int

	rules       map[int]develop.SecretaryRule
	ruleOrder   []int
	conditional *develop.SecretaryRule
}

// New builds a snapshot from already-deserialized data. Inputs are copied.
func New(items []develop.Item, rows []develop.TableRow, rules []develop.SecretaryRule) *Snapshot {
	s := &Snapshot{
		version:    versionSeq.Add(1),
		items:      make(map[int]develop.Item, len(items)),
		rowIndex:   make(map[int]int, len(rows)),
		partitions: make(map[develop.PartitionKey]map[int]int, 12),
		rules:      make(map[int]develop.SecretaryRule, len(rules)),
	}

	for _, it := range items {
		if _, dup := s.items[it.ID]; !dup {
			s.itemOrder = append(s.itemOrder, it.ID)
		}
		s.items[it.ID] = copyItem(it)
	}
	sort.Ints(s.itemOrder)

	for _, key := range develop.PartitionKeys() {
		s.partitions[key] = make(map[int]int)
	}
	for _, row := range rows {
		if _, dup := s.rowIndex[row.ItemID]; dup {
			continue
		}
		s.rowIndex[row.ItemID] = len(s.rows)
		s.rows = append(s.rows, copyRow(row))
		for key, v := range row.Rates {
			if v == nil {
				continue
			}
			if part, ok := s.partitions[key]; ok {
				part[row.ItemID] = *v
			}
		}
	}

	for _, r := range rules {
		rule := copyRule(r)
		if IsLandBasedShortName(rule.ShortName) {
			if s.conditional == nil {
				s.conditional = &rule
			}
			continue
		}
		if _, dup := s.rules[rule.ID]; dup {
			continue
		}
		s.rules[rule.ID] = rule
		s.ruleOrder = append(s.ruleOrder, rule.ID)
	}
	sort.SliceStable(s.ruleOrder, func(i, j int) bool {
		a, b := s.rules[s.ruleOrder[i]], s.rules[s.ruleOrder[j]]
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return a.ID < b.ID
	})

	return s
}

// Load reads all reference data from src and builds a snapshot.
func Load(ctx context.Context, src Source) (*Snapshot, error) {
	items, err := src.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading items: %w", err)
	}
	rows, err := src.ListPoolRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading pool table: %w", err)
	}
	rules, err := src.ListSecretaryRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading secretary rules: %w", err)
	}
	return New(items, rows, rules), nil
}

// Version is unique per snapshot within the process.
func (s *Snapshot) Version() uint64 {
	return s.version
}

// Item looks up a catalog entry.
func (s *Snapshot) Item(id int) (develop.Item, bool) {
	it, ok := s.items[id]
	return it, ok
}

// Items returns the catalog ordered by id.
func (s *Snapshot) Items() []develop.Item {
	out := make([]develop.Item, 0, len(s.itemOrder))
	for _, id := range s.itemOrder {
		out = append(out, s.items[id])
	}
	return out
}

// TableItemIDs returns the item ids of the base table in row order.
func (s *Snapshot) TableItemIDs() []int {
	ids := make([]int, len(s.rows))
	for i, row := range s.rows {
		ids[i] = row.ItemID
	}
	return ids
}

// TableRows returns the base table rows in row order.
func (s *Snapshot) TableRows() []develop.TableRow {
	out := make([]develop.TableRow, len(s.rows))
	copy(out, s.rows)
	return out
}

// BasePercent returns the base percentage of an item in a partition.
// The bool is false when the cell is empty or the item has no row.
func (s *Snapshot) BasePercent(key develop.PartitionKey, itemID int) (int, bool) {
	v, ok := s.partitions[key][itemID]
	return v, ok
}

// Partition returns a copy of the itemID -> percent cells of a partition.
func (s *Snapshot) Partition(key develop.PartitionKey) map[int]int {
	part := s.partitions[key]
	out := make(map[int]int, len(part))
	for id, v := range part {
		out[id] = v
	}
	return out
}

// PartitionSize counts the non-empty cells of a partition.
func (s *Snapshot) PartitionSize(key develop.PartitionKey) int {
	return len(s.partitions[key])
}

// Rule looks up a selectable secretary rule by id.
func (s *Snapshot) Rule(id int) (develop.SecretaryRule, bool) {
	r, ok := s.rules[id]
	return r, ok
}

// Rules returns the selectable secretary rules sorted by Order then id.
func (s *Snapshot) Rules() []develop.SecretaryRule {
	out := make([]develop.SecretaryRule, 0, len(s.ruleOrder))
	for _, id := range s.ruleOrder {
		out = append(out, s.rules[id])
	}
	return out
}

// ConditionalRule returns the land-based aircraft rule, if loaded.
func (s *Snapshot) ConditionalRule() (develop.SecretaryRule, bool) {
	if s.conditional == nil {
		return develop.SecretaryRule{}, false
	}
	return *s.conditional, true
}

func copyItem(it develop.Item) develop.Item {
	if it.Names != nil {
		names := make(map[string]string, len(it.Names))
		for k, v := range it.Names {
			names[k] = v
		}
		it.Names = names
	}
	return it
}

func copyRow(row develop.TableRow) develop.TableRow {
	rates := make(map[develop.PartitionKey]*int, len(row.Rates))
	for k, v := range row.Rates {
		if v == nil {
			rates[k] = nil
			continue
		}
		n := *v
		rates[k] = &n
	}
	row.Rates = rates
	return row
}

func copyRule(r develop.SecretaryRule) develop.SecretaryRule {
	bonuses := make([]develop.PoolBonus, len(r.Bonuses))
	for i, b := range r.Bonuses {
		adj := make([]develop.Adjustment, len(b.Adjustments))
		copy(adj, b.Adjustments)
		bonuses[i] = develop.PoolBonus{Pool: b.Pool, Adjustments: adj}
	}
	r.Bonuses = bonuses
	return r
}
