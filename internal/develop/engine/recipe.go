package engine

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/rsned/kc-development-server/internal/develop/refdata"
	"github.com/rsned/kc-development-server/pkg/develop"
)

// LandBasedItemID is the long-range land-based aircraft that is only
// reachable through the conditional land-based rule.
const LandBasedItemID = 168

// landBasedFloor is the minimum vector that satisfies LandBasedCondition.
var landBasedFloor = develop.Resources{
	Fuel:    landBasedFuel,
	Ammo:    landBasedAmmo,
	Steel:   develop.MinResource,
	Bauxite: landBasedBauxite,
}

// priorityOrder is the fixed order in which a resource may rise above the floor.
var priorityOrder = []int{develop.Fuel, develop.Steel, develop.Ammo, develop.Bauxite}

// SearchRequest is the input of Search.
type SearchRequest struct {
	TargetIDs          []int
	HQLevel            int
	IncludeSecretaries bool
	// MaxResource skips candidates with any resource above it; 0 disables.
	MaxResource int
	// Limit truncates the ranked list; 0 keeps everything.
	Limit   int
	Workers int
	Locale  string
}

// computeFunc evaluates one query against the snapshot.
type computeFunc func(q Query) Outcome

// candidate is one (secretary, resource vector, forced pool) combination.
type candidate struct {
	shipType  develop.ShipType
	secretary *develop.SecretaryInfo
	resources develop.Resources
	pool      develop.Pool
}

type candidateKey struct {
	shipType    develop.ShipType
	secretaryID int
	resources   develop.Resources
	pool        develop.Pool
}

type secretaryOption struct {
	shipType develop.ShipType
	info     *develop.SecretaryInfo
}

// Search finds resource allocations under which every target item is
// obtainable in a single development.
func Search(ctx context.Context, snap *refdata.Snapshot, req SearchRequest) ([]develop.RecipeResult, error) {
	recipes, _, err := search(ctx, snap, req, func(q Query) Outcome { return Compute(snap, q) })
	return recipes, err
}

func search(ctx context.Context, snap *refdata.Snapshot, req SearchRequest, compute computeFunc) ([]develop.RecipeResult, int, error) {
	targets := uniqueIDs(req.TargetIDs)
	if len(targets) == 0 {
		return nil, 0, nil
	}

	floor := develop.Resources{
		Fuel:    develop.MinResource,
		Ammo:    develop.MinResource,
		Steel:   develop.MinResource,
		Bauxite: develop.MinResource,
	}
	shipTypes := develop.ShipTypes()
	for _, id := range targets {
		item, ok := snap.Item(id)
		if !ok {
			return nil, 0, fmt.Errorf("%w: %d", develop.ErrItemNotFound, id)
		}
		floor = maxResources(floor, item.RequiredResources())
		if id == LandBasedItemID {
			floor = maxResources(floor, landBasedFloor)
			shipTypes = []develop.ShipType{develop.ShipAir}
		}
	}

	candidates := enumerateCandidates(snap, floor, shipTypes, req)
	if len(candidates) == 0 {
		return nil, 0, nil
	}

	workers := req.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	accepted := make([]*develop.RecipeResult, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, c := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			accepted[i] = evaluate(c, targets, req, compute)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, len(candidates), fmt.Errorf("searching recipes: %w", err)
	}

	var recipes []develop.RecipeResult
	for _, r := range accepted {
		if r != nil {
			recipes = append(recipes, *r)
		}
	}
	sortRecipes(recipes)

	if req.Limit > 0 && len(recipes) > req.Limit {
		recipes = recipes[:req.Limit]
	}
	return recipes, len(candidates), nil
}

// enumerateCandidates expands secretaries x priority layers into unique
// candidates within the resource cap.
func enumerateCandidates(
	snap *refdata.Snapshot,
	floor develop.Resources,
	shipTypes []develop.ShipType,
	req SearchRequest,
) []candidate {
	allowed := make(map[develop.ShipType]bool, len(shipTypes))
	options := make([]secretaryOption, 0, len(shipTypes))
	for _, st := range shipTypes {
		allowed[st] = true
		options = append(options, secretaryOption{shipType: st})
	}
	if req.IncludeSecretaries {
		for _, rule := range snap.Rules() {
			if !allowed[rule.ShipType] {
				continue
			}
			info := rule.Info()
			options = append(options, secretaryOption{shipType: rule.ShipType, info: &info})
		}
	}

	seen := make(map[candidateKey]bool)
	var out []candidate
	for _, opt := range options {
		for _, layer := range priorityOrder {
			v := AdjustForLayer(floor, layer)
			if req.MaxResource > 0 && exceeds(v, req.MaxResource) {
				continue
			}
			key := candidateKey{
				shipType:  opt.shipType,
				resources: v,
				pool:      develop.PoolOf(layer),
			}
			if opt.info != nil {
				key.secretaryID = opt.info.ID
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, candidate{
				shipType:  opt.shipType,
				secretary: opt.info,
				resources: v,
				pool:      key.pool,
			})
		}
	}
	return out
}

// AdjustForLayer raises the layer resource of floor in a single pass so
// the result classifies to the pool the layer feeds: strictly above any
// resource whose pool wins ties against it and at least equal to the rest.
// Resources feeding the same pool are left alone.
//
// Only ties that would lose the pool are broken, so the fuel and steel
// layers of a flat floor such as {10,10,10,10} both stay unchanged and are
// evaluated once, while the bauxite layer becomes {10,10,10,11}.
func AdjustForLayer(floor develop.Resources, layer int) develop.Resources {
	target := develop.PoolOf(layer)
	v := floor
	for _, i := range priorityOrder {
		if i == layer {
			continue
		}
		p := develop.PoolOf(i)
		if p == target {
			continue
		}
		if p.Rank() < target.Rank() {
			if v.Get(i) >= v.Get(layer) {
				v = v.Set(layer, v.Get(i)+1)
			}
		} else if v.Get(i) > v.Get(layer) {
			v = v.Set(layer, v.Get(i))
		}
	}
	return v
}

// evaluate runs one candidate and returns a recipe when every target is obtainable.
func evaluate(c candidate, targets []int, req SearchRequest, compute computeFunc) *develop.RecipeResult {
	q := Query{
		Resources: c.resources,
		ShipType:  c.shipType,
		HQLevel:   req.HQLevel,
		ForcePool: c.pool,
		Locale:    req.Locale,
	}
	if c.secretary != nil {
		q.SecretaryID = c.secretary.ID
	}
	outcome := compute(q)

	perItem := make([]develop.ItemProbability, 0, len(targets))
	aggregate := 0
	for _, id := range targets {
		p, ok := outcome.Probability(id)
		if !ok {
			return nil
		}
		perItem = append(perItem, develop.ItemProbability{ItemID: id, Probability: p})
		aggregate += p
	}

	return &develop.RecipeResult{
		Resources:            c.resources,
		ShipType:             c.shipType,
		Pool:                 c.pool,
		AggregateProbability: aggregate,
		PerItem:              perItem,
		FailureRate:          outcome.FailureRate,
		Secretary:            c.secretary,
	}
}

// sortRecipes ranks by aggregate probability, then cheaper and more
// reliable recipes, with a total order so parallel evaluation is stable.
func sortRecipes(recipes []develop.RecipeResult) {
	sort.Slice(recipes, func(i, j int) bool {
		a, b := recipes[i], recipes[j]
		if a.AggregateProbability != b.AggregateProbability {
			return a.AggregateProbability > b.AggregateProbability
		}
		if a.FailureRate != b.FailureRate {
			return a.FailureRate < b.FailureRate
		}
		if ta, tb := a.Resources.Total(), b.Resources.Total(); ta != tb {
			return ta < tb
		}
		if sa, sb := shipTypeIndex(a.ShipType), shipTypeIndex(b.ShipType); sa != sb {
			return sa < sb
		}
		if ia, ib := secretaryID(a.Secretary), secretaryID(b.Secretary); ia != ib {
			return ia < ib
		}
		if a.Pool != b.Pool {
			return a.Pool.Rank() < b.Pool.Rank()
		}
		for r := 0; r < develop.NumResources; r++ {
			if va, vb := a.Resources.Get(r), b.Resources.Get(r); va != vb {
				return va < vb
			}
		}
		return false
	})
}

func shipTypeIndex(st develop.ShipType) int {
	for i, s := range develop.ShipTypes() {
		if s == st {
			return i
		}
	}
	return len(develop.ShipTypes())
}

func secretaryID(info *develop.SecretaryInfo) int {
	if info == nil {
		return 0
	}
	return info.ID
}

func maxResources(a, b develop.Resources) develop.Resources {
	return develop.Resources{
		Fuel:    max(a.Fuel, b.Fuel),
		Ammo:    max(a.Ammo, b.Ammo),
		Steel:   max(a.Steel, b.Steel),
		Bauxite: max(a.Bauxite, b.Bauxite),
	}
}

func exceeds(r develop.Resources, limit int) bool {
	for i := 0; i < develop.NumResources; i++ {
		if r.Get(i) > limit {
			return true
		}
	}
	return false
}

func uniqueIDs(ids []int) []int {
	seen := make(map[int]bool, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
