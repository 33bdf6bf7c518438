package engine

import (
	"github.com/rsned/kc-development-server/internal/develop/refdata"
	"github.com/rsned/kc-development-server/pkg/develop"
)

// Thresholds of the land-based aircraft development condition.
const (
	landBasedFuel    = 240
	landBasedAmmo    = 260
	landBasedBauxite = 250
)

// LandBasedCondition reports whether resources unlock the conditional
// land-based aircraft rule for air secretaries.
func LandBasedCondition(r develop.Resources) bool {
	return r.Fuel >= landBasedFuel && r.Ammo >= landBasedAmmo && r.Bauxite >= landBasedBauxite
}

// ResolveBonus returns the adjustments that apply to a query, in rule order:
// the selected secretary's pool bonus first, then the land-based rule when
// its condition holds. legacyFlag forces the land-based rule for air
// secretaries even when the resources do not reach the thresholds.
func ResolveBonus(
	snap *refdata.Snapshot,
	secretaryID int,
	shipType develop.ShipType,
	pool develop.Pool,
	resources develop.Resources,
	legacyFlag bool,
) []develop.Adjustment {
	var out []develop.Adjustment

	if rule, ok := snap.Rule(secretaryID); ok && rule.ShipType == shipType {
		if adj, ok := rule.Bonus(pool); ok {
			out = append(out, adj...)
		}
	}

	if shipType == develop.ShipAir && (legacyFlag || LandBasedCondition(resources)) {
		if rule, ok := snap.ConditionalRule(); ok && rule.ShipType == develop.ShipAir {
			if adj, ok := rule.Bonus(pool); ok {
				out = append(out, adj...)
			}
		}
	}

	return out
}

// foldAdjustments sums deltas per item into a new map.
func foldAdjustments(adjustments []develop.Adjustment) map[int]int {
	deltas := make(map[int]int, len(adjustments))
	for _, a := range adjustments {
		deltas[a.ItemID] += a.Delta
	}
	return deltas
}
