package engine

import "github.com/rsned/kc-development-server/pkg/develop"

// ClassifyPool picks the pool whose dominant resource is strictly greatest.
// fuel and steel both feed fs. Ties go to fs, then am, then bx.
func ClassifyPool(r develop.Resources) develop.Pool {
	best := develop.PoolFS
	bestValue := max(r.Fuel, r.Steel)

	if r.Ammo > bestValue {
		best, bestValue = develop.PoolAM, r.Ammo
	}
	if r.Bauxite > bestValue {
		best = develop.PoolBX
	}
	return best
}
