package engine

import (
	"sort"

	"github.com/rsned/kc-development-server/internal/develop/i18n"
	"github.com/rsned/kc-development-server/internal/develop/refdata"
	"github.com/rsned/kc-development-server/pkg/develop"
)

// Query is the input of a single probability computation. It is comparable
// so it can key the engine's outcome cache.
type Query struct {
	Resources   develop.Resources
	ShipType    develop.ShipType
	HQLevel     int
	SecretaryID int
	// LandBasedFlag is the legacy caller override for the land-based rule.
	LandBasedFlag bool
	// ForcePool bypasses classification when set to a valid pool.
	ForcePool develop.Pool
	// Locale is a catalog locale key for item names.
	Locale string
}

// Outcome is the result of a probability computation. Results and Failures
// are independent: failures are never attached to a result entry.
type Outcome struct {
	Pool        develop.Pool
	PoolLabel   string
	Status      develop.OutcomeStatus
	Results     []develop.ResolvedItem
	Failures    []develop.FailureReason
	FailureRate int
}

// Compute resolves which items a development can yield and why the others
// cannot. It never fails for well-typed input: unknown secretaries resolve
// to no bonus and a missing partition yields an empty outcome.
func Compute(snap *refdata.Snapshot, q Query) Outcome {
	pool := q.ForcePool
	if !pool.IsValid() {
		pool = ClassifyPool(q.Resources)
	}
	key := develop.PartitionKey{ShipType: q.ShipType, Pool: pool}
	deltas := foldAdjustments(ResolveBonus(snap, q.SecretaryID, q.ShipType, pool, q.Resources, q.LandBasedFlag))

	out := Outcome{
		Pool:      pool,
		PoolLabel: key.Label(),
	}

	evaluated := 0
	for _, id := range snap.TableItemIDs() {
		base, inPartition := snap.BasePercent(key, id)
		delta, adjusted := deltas[id]
		if !inPartition && !adjusted {
			continue
		}

		percent := max(0, base+delta)
		if percent <= 0 {
			continue
		}
		evaluated++

		item, ok := snap.Item(id)
		if !ok {
			out.Failures = append(out.Failures, develop.FailureReason{
				ItemID:   id,
				ItemName: i18n.ItemName(nil, id, q.Locale),
				Reason:   develop.FailureItemNotFound,
			})
			continue
		}

		name := i18n.ItemName(item.Names, id, q.Locale)
		required := item.RequiredResources()

		if level := item.RequiredLevel(); level > q.HQLevel {
			out.Failures = append(out.Failures, develop.FailureReason{
				ItemID:        id,
				ItemName:      name,
				Reason:        develop.FailureLevelInsufficient,
				RequiredLevel: level,
			})
			continue
		}

		if !q.Resources.Covers(required) {
			need := required
			out.Failures = append(out.Failures, develop.FailureReason{
				ItemID:            id,
				ItemName:          name,
				Reason:            develop.FailureResourceInsufficient,
				RequiredResources: &need,
			})
			continue
		}

		out.Results = append(out.Results, develop.ResolvedItem{
			ItemID:            id,
			PoolLabel:         out.PoolLabel,
			Probability:       percent,
			ItemName:          name,
			Rarity:            item.Rarity,
			RequiredResources: required,
		})
	}

	sort.SliceStable(out.Results, func(i, j int) bool {
		a, b := out.Results[i], out.Results[j]
		if a.Probability != b.Probability {
			return a.Probability > b.Probability
		}
		return a.ItemID < b.ItemID
	})

	success := 0
	for _, r := range out.Results {
		success += r.Probability
	}
	out.FailureRate = 100 - success

	switch {
	case len(out.Results) > 0:
		out.Status = develop.StatusOK
	case evaluated > 0:
		out.Status = develop.StatusFailed
	default:
		out.Status = develop.StatusEmpty
	}

	return out
}

// Probability returns the result percentage of an item, if obtainable.
func (o Outcome) Probability(itemID int) (int, bool) {
	for _, r := range o.Results {
		if r.ItemID == itemID {
			return r.Probability, true
		}
	}
	return 0, false
}
