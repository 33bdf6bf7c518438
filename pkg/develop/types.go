// Package develop contains the core types for the equipment development server.
package develop

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors shared by the engine and its transports.
var (
	ErrItemNotFound = errors.New("item not found")
	ErrInvalidInput = errors.New("invalid input")
)

// ============================================
// INPUT TYPES
// ============================================

// Resource indices used by Resources.Get/Set and Item.Dismantle.
const (
	Fuel = iota
	Ammo
	Steel
	Bauxite
	NumResources
)

// Limits enforced by callers before a development is submitted.
const (
	MinResource = 10
	MaxResource = 300
	MinHQLevel  = 1
	MaxHQLevel  = 120
)

// Resources is the four-resource input of a development.
type Resources struct {
	Fuel    int `json:"fuel"`
	Ammo    int `json:"ammo"`
	Steel   int `json:"steel"`
	Bauxite int `json:"bauxite"`
}

// Get returns the resource at index i (Fuel, Ammo, Steel, Bauxite).
func (r Resources) Get(i int) int {
	switch i {
	case Fuel:
		return r.Fuel
	case Ammo:
		return r.Ammo
	case Steel:
		return r.Steel
	case Bauxite:
		return r.Bauxite
	}
	return 0
}

// Set returns a copy of r with resource i replaced by v.
func (r Resources) Set(i, v int) Resources {
	switch i {
	case Fuel:
		r.Fuel = v
	case Ammo:
		r.Ammo = v
	case Steel:
		r.Steel = v
	case Bauxite:
		r.Bauxite = v
	}
	return r
}

// Total is the sum of all four resources.
func (r Resources) Total() int {
	return r.Fuel + r.Ammo + r.Steel + r.Bauxite
}

// Covers reports whether every resource in r is at least the one in need.
func (r Resources) Covers(need Resources) bool {
	return r.Fuel >= need.Fuel &&
		r.Ammo >= need.Ammo &&
		r.Steel >= need.Steel &&
		r.Bauxite >= need.Bauxite
}

// Validate checks the caller-side range of a development input.
// The engine itself accepts any values.
func (r Resources) Validate() error {
	for i := 0; i < NumResources; i++ {
		if v := r.Get(i); v < MinResource || v > MaxResource {
			return fmt.Errorf("%w: resource %s = %d, want %d..%d",
				ErrInvalidInput, ResourceName(i), v, MinResource, MaxResource)
		}
	}
	return nil
}

// ResourceName returns the JSON name of resource index i.
func ResourceName(i int) string {
	switch i {
	case Fuel:
		return "fuel"
	case Ammo:
		return "ammo"
	case Steel:
		return "steel"
	case Bauxite:
		return "bauxite"
	}
	return fmt.Sprintf("resource(%d)", i)
}

// ValidateHQLevel checks the caller-side range of an HQ level.
func ValidateHQLevel(level int) error {
	if level < MinHQLevel || level > MaxHQLevel {
		return fmt.Errorf("%w: hq_level = %d, want %d..%d", ErrInvalidInput, level, MinHQLevel, MaxHQLevel)
	}
	return nil
}

// ShipType is the secretary ship category.
type ShipType string

const (
	ShipGun  ShipType = "gun"
	ShipTorp ShipType = "torp"
	ShipAir  ShipType = "air"
	ShipSub  ShipType = "sub"
)

// ShipTypes returns all ship types in table order.
func ShipTypes() []ShipType {
	return []ShipType{ShipGun, ShipTorp, ShipAir, ShipSub}
}

// IsValid checks if the ship type is known.
func (s ShipType) IsValid() bool {
	for _, valid := range ShipTypes() {
		if s == valid {
			return true
		}
	}
	return false
}

// Pool selects the probability sub-table by dominant resource.
type Pool string

const (
	PoolFS Pool = "fs" // fuel/steel
	PoolAM Pool = "am" // ammo
	PoolBX Pool = "bx" // bauxite
)

// Pools returns all pools in tie-break precedence order.
func Pools() []Pool {
	return []Pool{PoolFS, PoolAM, PoolBX}
}

// IsValid checks if the pool is known.
func (p Pool) IsValid() bool {
	return p == PoolFS || p == PoolAM || p == PoolBX
}

// Rank is the tie-break precedence of the pool; lower wins.
func (p Pool) Rank() int {
	switch p {
	case PoolFS:
		return 0
	case PoolAM:
		return 1
	case PoolBX:
		return 2
	}
	return 3
}

// PoolOf returns the pool a resource index feeds.
func PoolOf(resource int) Pool {
	switch resource {
	case Ammo:
		return PoolAM
	case Bauxite:
		return PoolBX
	}
	return PoolFS
}

// PartitionKey identifies one of the twelve base probability partitions.
type PartitionKey struct {
	ShipType ShipType `json:"ship_type"`
	Pool     Pool     `json:"pool"`
}

// Label returns the legacy column name, e.g. "gunFs".
func (k PartitionKey) Label() string {
	p := string(k.Pool)
	if p == "" {
		return string(k.ShipType)
	}
	return string(k.ShipType) + strings.ToUpper(p[:1]) + p[1:]
}

// PartitionKeys returns all twelve partitions in table column order.
func PartitionKeys() []PartitionKey {
	keys := make([]PartitionKey, 0, 12)
	for _, st := range ShipTypes() {
		for _, p := range Pools() {
			keys = append(keys, PartitionKey{ShipType: st, Pool: p})
		}
	}
	return keys
}

// ============================================
// REFERENCE DATA TYPES
// ============================================

// Item is a developable equipment entry from the catalog.
type Item struct {
	ID        int               `json:"id"`
	Rarity    int               `json:"rarity"`
	Type      int               `json:"type,omitempty"`
	Craftable bool              `json:"craftable"`
	Dismantle [4]int            `json:"dismantle"` // fuel, ammo, steel, bauxite
	Names     map[string]string `json:"names,omitempty"`
}

// RequiredResources converts dismantle units into resource points.
func (it Item) RequiredResources() Resources {
	return Resources{
		Fuel:    it.Dismantle[Fuel] * 10,
		Ammo:    it.Dismantle[Ammo] * 10,
		Steel:   it.Dismantle[Steel] * 10,
		Bauxite: it.Dismantle[Bauxite] * 10,
	}
}

// RequiredLevel is the minimum HQ level that can develop the item.
func (it Item) RequiredLevel() int {
	return it.Rarity * 10
}

// TableRow is one item row of the base probability table.
// A nil rate means the item is not offered in that partition.
type TableRow struct {
	ItemID int                   `json:"item_id"`
	Name   string                `json:"name,omitempty"`
	Rates  map[PartitionKey]*int `json:"-"`
}

// Rate returns the percentage of the row in a partition.
func (r TableRow) Rate(key PartitionKey) (int, bool) {
	v, ok := r.Rates[key]
	if !ok || v == nil {
		return 0, false
	}
	return *v, true
}

// Adjustment is a signed percentage delta for one item.
type Adjustment struct {
	ItemID int `json:"itemId"`
	Delta  int `json:"value"`
}

// PoolBonus lists the adjustments a rule applies in one pool.
type PoolBonus struct {
	Pool        Pool         `json:"pool"`
	Adjustments []Adjustment `json:"adjustments"`
}

// SecretaryRule is a special secretary bonus rule.
type SecretaryRule struct {
	ID        int         `json:"id"`
	Name      string      `json:"name"`
	ShortName string      `json:"shortName"`
	Order     int         `json:"order"`
	ShipType  ShipType    `json:"shipType"`
	Bonuses   []PoolBonus `json:"bonuses"`
}

// Bonus returns the adjustments declared for a pool.
func (r SecretaryRule) Bonus(pool Pool) ([]Adjustment, bool) {
	for _, b := range r.Bonuses {
		if b.Pool == pool {
			return b.Adjustments, true
		}
	}
	return nil, false
}

// SecretaryInfo is the lightweight rule description attached to results.
type SecretaryInfo struct {
	ID        int      `json:"id"`
	Name      string   `json:"name"`
	ShortName string   `json:"short_name"`
	ShipType  ShipType `json:"ship_type"`
}

// Info returns the rule's display info.
func (r SecretaryRule) Info() SecretaryInfo {
	return SecretaryInfo{ID: r.ID, Name: r.Name, ShortName: r.ShortName, ShipType: r.ShipType}
}

// ============================================
// RESULT TYPES
// ============================================

// FailureKind classifies why a candidate item cannot be developed.
type FailureKind string

const (
	FailureLevelInsufficient    FailureKind = "levelInsufficient"
	FailureResourceInsufficient FailureKind = "resourceInsufficient"
	FailureItemNotFound         FailureKind = "itemNotFound"
)

// ResolvedItem is an item obtainable under the query.
type ResolvedItem struct {
	ItemID            int       `json:"item_id"`
	PoolLabel         string    `json:"pool_label"`
	Probability       int       `json:"probability"`
	ItemName          string    `json:"item_name"`
	Rarity            int       `json:"rarity"`
	RequiredResources Resources `json:"required_resources"`
}

// FailureReason explains why a candidate was excluded.
type FailureReason struct {
	ItemID            int         `json:"item_id"`
	ItemName          string      `json:"item_name"`
	Reason            FailureKind `json:"reason"`
	RequiredLevel     int         `json:"required_level,omitempty"`
	RequiredResources *Resources  `json:"required_resources,omitempty"`
}

// OutcomeStatus summarises a development outcome.
type OutcomeStatus string

const (
	StatusOK     OutcomeStatus = "ok"     // at least one obtainable item
	StatusFailed OutcomeStatus = "failed" // candidates evaluated, none obtainable
	StatusEmpty  OutcomeStatus = "empty"  // nothing evaluated
)

// ItemProbability pairs an item with its percentage.
type ItemProbability struct {
	ItemID      int `json:"item_id"`
	Probability int `json:"probability"`
}

// RecipeResult is a resource allocation that reaches every target item.
type RecipeResult struct {
	Resources            Resources         `json:"resources"`
	ShipType             ShipType          `json:"ship_type"`
	Pool                 Pool              `json:"pool"`
	AggregateProbability int               `json:"aggregate_probability"`
	PerItem              []ItemProbability `json:"per_item"`
	FailureRate          int               `json:"failure_rate"`
	Secretary            *SecretaryInfo    `json:"secretary,omitempty"`
}

// ============================================
// TOOL REQUEST/RESPONSE TYPES
// ============================================

// PoolTypeResponse is the output of pool classification.
type PoolTypeResponse struct {
	Pool Pool `json:"pool"`
}

// DevelopRequest is the input for a probability computation.
type DevelopRequest struct {
	Resources   Resources `json:"resources"`
	ShipType    ShipType  `json:"ship_type"`
	HQLevel     int       `json:"hq_level,omitempty"`
	SecretaryID int       `json:"secretary_id,omitempty"`
	// LandBased is the legacy caller-computed land-based aircraft condition.
	LandBased bool   `json:"land_based,omitempty"`
	ForcePool Pool   `json:"force_pool,omitempty"`
	Language  string `json:"language,omitempty"`
}

// Validate checks a request at the transport boundary. HQLevel 0 means
// "use the maximum" and is accepted.
func (r DevelopRequest) Validate() error {
	if err := r.Resources.Validate(); err != nil {
		return err
	}
	if !r.ShipType.IsValid() {
		return fmt.Errorf("%w: unknown ship_type %q", ErrInvalidInput, r.ShipType)
	}
	if r.HQLevel != 0 {
		if err := ValidateHQLevel(r.HQLevel); err != nil {
			return err
		}
	}
	if r.ForcePool != "" && !r.ForcePool.IsValid() {
		return fmt.Errorf("%w: unknown force_pool %q", ErrInvalidInput, r.ForcePool)
	}
	return nil
}

// DevelopResponse is the output for a probability computation.
type DevelopResponse struct {
	Pool        Pool            `json:"pool"`
	PoolLabel   string          `json:"pool_label"`
	Status      OutcomeStatus   `json:"status"`
	Results     []ResolvedItem  `json:"results,omitempty"`
	Failures    []FailureReason `json:"failures,omitempty"`
	FailureRate int             `json:"failure_rate"`
	Secretary   *SecretaryInfo  `json:"secretary,omitempty"`
}

// RecipeSearchRequest is the input for recipe search.
type RecipeSearchRequest struct {
	TargetIDs          []int  `json:"target_ids"`
	HQLevel            int    `json:"hq_level,omitempty"`
	IncludeSecretaries bool   `json:"include_secretaries,omitempty"`
	MaxResource        int    `json:"max_resource,omitempty"`
	Limit              int    `json:"limit,omitempty"`
	Language           string `json:"language,omitempty"`
}

// Validate checks a request at the transport boundary.
func (r RecipeSearchRequest) Validate() error {
	if r.HQLevel != 0 {
		if err := ValidateHQLevel(r.HQLevel); err != nil {
			return err
		}
	}
	if r.MaxResource < 0 || r.Limit < 0 {
		return fmt.Errorf("%w: max_resource and limit must not be negative", ErrInvalidInput)
	}
	return nil
}

// RecipeSearchResponse is the output for recipe search.
type RecipeSearchResponse struct {
	Recipes    []RecipeResult `json:"recipes,omitempty"`
	QueryStats QueryStats     `json:"query_stats"`
}

// QueryStats contains metadata about a query execution.
type QueryStats struct {
	CandidatesChecked int   `json:"candidates_checked"`
	CandidatesMatched int   `json:"candidates_matched"`
	ProcessingTimeMs  int64 `json:"processing_time_ms"`
}

// ProbabilityTableRequest is the input for the full table view.
type ProbabilityTableRequest struct {
	ShipType ShipType `json:"ship_type,omitempty"`
	Language string   `json:"language,omitempty"`
}

// ProbabilityTableRow is one item across every partition of the table.
type ProbabilityTableRow struct {
	ItemID   int            `json:"item_id"`
	ItemName string         `json:"item_name"`
	Rates    map[string]int `json:"rates"` // keyed by partition label, empty cells omitted
}

// ProbabilityTableResponse is the output for the full table view.
type ProbabilityTableResponse struct {
	Columns []string              `json:"columns"`
	Rows    []ProbabilityTableRow `json:"rows"`
}

// ItemListRequest is the input for the catalog listing.
type ItemListRequest struct {
	CraftableOnly bool   `json:"craftable_only,omitempty"`
	Type          int    `json:"type,omitempty"`
	Language      string `json:"language,omitempty"`
}

// ItemSummary is a localized catalog entry.
type ItemSummary struct {
	ID                int       `json:"id"`
	Name              string    `json:"name"`
	Rarity            int       `json:"rarity"`
	Type              int       `json:"type,omitempty"`
	RequiredLevel     int       `json:"required_level"`
	RequiredResources Resources `json:"required_resources"`
}

// ItemListResponse is the output for the catalog listing.
type ItemListResponse struct {
	Items []ItemSummary `json:"items"`
}

// SecretaryListResponse lists the special secretary rules.
type SecretaryListResponse struct {
	Secretaries []SecretaryRule `json:"secretaries"`
}
