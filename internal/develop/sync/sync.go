// Package sync imports reference data files into the database.
package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/rsned/kc-development-server/internal/develop/db"
	"github.com/rsned/kc-development-server/internal/develop/seed"
	"github.com/rsned/kc-development-server/pkg/develop"
)

// Syncer handles reference data imports.
type Syncer struct {
	db *db.DB
}

// NewSyncer creates a new Syncer.
func NewSyncer(database *db.DB) *Syncer {
	return &Syncer{db: database}
}

// ItemImport is one catalog entry as exported by the item database.
// Names may come as "name" (locale map) or "names".
type ItemImport struct {
	ID        int               `json:"id"`
	Rarity    int               `json:"rarity"`
	Type      json.RawMessage   `json:"type,omitempty"`
	Craftable bool              `json:"craftable"`
	Dismantle []int             `json:"dismantle"`
	Name      map[string]string `json:"name,omitempty"`
	Names     map[string]string `json:"names,omitempty"`
}

// SecretaryImport is one rule from a secretary bonus file. Order and
// shortName are optional in older files.
type SecretaryImport struct {
	ID        int                 `json:"id"`
	Name      string              `json:"name"`
	ShortName *string             `json:"shortName,omitempty"`
	Order     *int                `json:"order,omitempty"`
	ShipType  string              `json:"shipType"`
	Bonuses   []develop.PoolBonus `json:"bonuses"`
}

// ImportItemsFromFile imports the item catalog from a JSON file.
func (s *Syncer) ImportItemsFromFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading file: %w", err)
	}
	return s.ImportItems(ctx, data)
}

// ImportItems imports the item catalog. data is either a JSON array or a
// lowdb document with an "items" array.
func (s *Syncer) ImportItems(ctx context.Context, data []byte) (int, error) {
	raw := collection(data, "items")

	var imports []ItemImport
	if err := json.Unmarshal([]byte(raw), &imports); err != nil {
		return 0, fmt.Errorf("parsing JSON: %w", err)
	}

	items := make([]develop.Item, 0, len(imports))
	for _, imp := range imports {
		if imp.ID <= 0 {
			continue
		}
		items = append(items, transformItem(imp))
	}

	if err := db.NewItemStore(s.db).ReplaceItems(ctx, items); err != nil {
		return 0, fmt.Errorf("replacing items: %w", err)
	}

	return len(items), s.recordSync(ctx, "items", len(items))
}

// ImportPoolFromFile imports the base probability table from a JSON file.
func (s *Syncer) ImportPoolFromFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading file: %w", err)
	}
	return s.ImportPool(ctx, data)
}

// ImportPool imports the base probability table. Rows carry one column
// per partition label ("gunFs" ... "subBx"); a cell is a number, a numeric
// string, or "" / 0 / null for "not offered".
func (s *Syncer) ImportPool(ctx context.Context, data []byte) (int, error) {
	if !gjson.ValidBytes(data) {
		return 0, fmt.Errorf("parsing JSON: invalid document")
	}

	rows, err := parsePoolRows(collection(data, "pool"))
	if err != nil {
		return 0, err
	}

	if err := db.NewPoolStore(s.db).ReplacePoolTable(ctx, rows); err != nil {
		return 0, fmt.Errorf("inserting pool table: %w", err)
	}

	return len(rows), s.recordSync(ctx, "pool", len(rows))
}

// ImportSecretariesFromFile imports secretary bonus rules from a JSON file.
func (s *Syncer) ImportSecretariesFromFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading file: %w", err)
	}
	return s.ImportSecretaries(ctx, data)
}

// ImportSecretaries replaces every secretary bonus rule with those in data.
func (s *Syncer) ImportSecretaries(ctx context.Context, data []byte) (int, error) {
	var imports []SecretaryImport
	if err := json.Unmarshal([]byte(collection(data, "secretaries")), &imports); err != nil {
		return 0, fmt.Errorf("parsing JSON: %w", err)
	}

	rules := make([]develop.SecretaryRule, 0, len(imports))
	for i, imp := range imports {
		rules = append(rules, transformSecretary(imp, i))
	}

	if err := db.NewSecretaryStore(s.db).ReplaceSecretaryRules(ctx, rules); err != nil {
		return 0, fmt.Errorf("inserting secretaries: %w", err)
	}

	return len(rules), s.recordSync(ctx, "secretaries", len(rules))
}

// Seed loads the embedded pool table and secretary rules. Tables that
// already hold data are left alone unless force is set.
func (s *Syncer) Seed(ctx context.Context, force bool) error {
	poolCount, err := db.NewPoolStore(s.db).CountPoolRows(ctx)
	if err != nil {
		return err
	}
	if force || poolCount == 0 {
		if _, err := s.ImportPool(ctx, seed.PoolTable()); err != nil {
			return fmt.Errorf("seeding pool table: %w", err)
		}
	}

	rules, err := db.NewSecretaryStore(s.db).ListSecretaryRules(ctx)
	if err != nil {
		return err
	}
	if force || len(rules) == 0 {
		if _, err := s.ImportSecretaries(ctx, seed.SecretaryRules()); err != nil {
			return fmt.Errorf("seeding secretaries: %w", err)
		}
	}
	return nil
}

// ClearAll removes all reference data from the database.
func (s *Syncer) ClearAll(ctx context.Context) error {
	if err := db.NewItemStore(s.db).ClearItems(ctx); err != nil {
		return err
	}
	if err := db.NewPoolStore(s.db).ReplacePoolTable(ctx, nil); err != nil {
		return err
	}
	return db.NewSecretaryStore(s.db).ReplaceSecretaryRules(ctx, nil)
}

func (s *Syncer) recordSync(ctx context.Context, name string, count int) error {
	if err := s.db.SetSyncMetadata(ctx, name+"_last_sync", time.Now().Format(time.RFC3339)); err != nil {
		return err
	}
	return s.db.SetSyncMetadata(ctx, name+"_count", strconv.Itoa(count))
}

// collection returns the raw JSON array of a document that is either the
// array itself or an object holding it under key.
func collection(data []byte, key string) string {
	doc := gjson.ParseBytes(data)
	if doc.IsObject() {
		if v := doc.Get(key); v.IsArray() {
			return v.Raw
		}
	}
	return doc.Raw
}

func parsePoolRows(raw string) ([]develop.TableRow, error) {
	doc := gjson.Parse(raw)
	if !doc.IsArray() {
		return nil, fmt.Errorf("parsing JSON: pool table is not an array")
	}

	var rows []develop.TableRow
	var parseErr error
	seen := make(map[int]bool)
	doc.ForEach(func(_, v gjson.Result) bool {
		id := int(v.Get("id").Int())
		if id <= 0 || seen[id] {
			return true
		}
		seen[id] = true

		row := develop.TableRow{
			ItemID: id,
			Name:   strings.TrimSpace(v.Get("name").String()),
			Rates:  make(map[develop.PartitionKey]*int),
		}
		for _, key := range develop.PartitionKeys() {
			percent, ok, err := poolCell(v.Get(key.Label()))
			if err != nil {
				parseErr = fmt.Errorf("item %d %s: %w", id, key.Label(), err)
				return false
			}
			if ok {
				row.Rates[key] = &percent
			}
		}
		rows = append(rows, row)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return rows, nil
}

// poolCell decodes one table cell. Non-positive values mean "not offered".
func poolCell(v gjson.Result) (int, bool, error) {
	switch v.Type {
	case gjson.Null:
		return 0, false, nil
	case gjson.Number:
		n := int(v.Int())
		return n, n > 0, nil
	case gjson.String:
		str := strings.TrimSpace(v.Str)
		if str == "" {
			return 0, false, nil
		}
		n, err := strconv.Atoi(str)
		if err != nil {
			return 0, false, fmt.Errorf("invalid percentage %q", v.Str)
		}
		return n, n > 0, nil
	}
	return 0, false, fmt.Errorf("unexpected cell %s", v.Raw)
}

// transformItem converts import format to domain format.
func transformItem(imp ItemImport) develop.Item {
	item := develop.Item{
		ID:        imp.ID,
		Rarity:    imp.Rarity,
		Craftable: imp.Craftable,
		Type:      itemType(imp.Type),
	}
	for i := 0; i < develop.NumResources && i < len(imp.Dismantle); i++ {
		item.Dismantle[i] = imp.Dismantle[i]
	}

	names := imp.Names
	if len(names) == 0 {
		names = imp.Name
	}
	if len(names) > 0 {
		item.Names = make(map[string]string, len(names))
		for locale, name := range names {
			if name = strings.TrimSpace(name); name != "" {
				item.Names[strings.ToLower(locale)] = name
			}
		}
	}
	return item
}

// itemType reads the category id. Exports carry either a plain number or
// the type array whose third entry is the category.
func itemType(raw json.RawMessage) int {
	v := gjson.ParseBytes(raw)
	switch {
	case v.Type == gjson.Number:
		return int(v.Int())
	case v.IsArray():
		if arr := v.Array(); len(arr) > 2 {
			return int(arr[2].Int())
		}
	}
	return 0
}

// transformSecretary converts import format to domain format. Missing
// order falls back to the file position and missing shortName to the name
// up to the first '/'.
func transformSecretary(imp SecretaryImport, index int) develop.SecretaryRule {
	rule := develop.SecretaryRule{
		ID:       imp.ID,
		Name:     strings.TrimSpace(imp.Name),
		Order:    index,
		ShipType: develop.ShipType(strings.ToLower(strings.TrimSpace(imp.ShipType))),
		Bonuses:  imp.Bonuses,
	}
	if imp.Order != nil {
		rule.Order = *imp.Order
	}
	if imp.ShortName != nil {
		rule.ShortName = strings.TrimSpace(*imp.ShortName)
	}
	if rule.ShortName == "" {
		rule.ShortName = db.DefaultShortName(rule.Name)
	}
	return rule
}
