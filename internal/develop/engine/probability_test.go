package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsned/kc-development-server/internal/develop/i18n"
	"github.com/rsned/kc-development-server/pkg/develop"
)

func TestComputeGunFuelSteelScenario(t *testing.T) {
	snap := fixtureSnapshot()
	in := res(100, 10, 100, 10)

	out := Compute(snap, Query{Resources: in, ShipType: develop.ShipGun, HQLevel: 120})

	assert.Equal(t, develop.PoolFS, out.Pool)
	assert.Equal(t, "gunFs", out.PoolLabel)
	assert.Equal(t, develop.StatusOK, out.Status)
	assert.Equal(t, []int{1, 2, 5}, resultIDs(out.Results))
	assert.Equal(t, 100-(10+6+2), out.FailureRate)

	f, ok := failureFor(out.Failures, 3)
	require.True(t, ok)
	assert.Equal(t, develop.FailureLevelInsufficient, f.Reason)

	f, ok = failureFor(out.Failures, 99)
	require.True(t, ok)
	assert.Equal(t, develop.FailureItemNotFound, f.Reason)

	f, ok = failureFor(out.Failures, 11)
	require.True(t, ok)
	assert.Equal(t, develop.FailureResourceInsufficient, f.Reason)
	require.NotNil(t, f.RequiredResources)
	assert.Equal(t, res(0, 20, 0, 0), *f.RequiredResources)

	// Every non-empty gunFs cell is accounted for exactly once.
	part := snap.Partition(gunFs)
	assert.Equal(t, len(part), len(out.Results)+len(out.Failures))
	for _, r := range out.Results {
		item, ok := snap.Item(r.ItemID)
		require.True(t, ok)
		assert.LessOrEqual(t, item.RequiredLevel(), 120)
		assert.True(t, in.Covers(item.RequiredResources()))
		assert.Equal(t, part[r.ItemID], r.Probability)
		assert.Equal(t, "gunFs", r.PoolLabel)
	}
}

func TestComputeResultsSortedWithIDTieBreak(t *testing.T) {
	snap := fixtureSnapshot()
	out := Compute(snap, Query{Resources: res(240, 260, 10, 10), ShipType: develop.ShipAir, HQLevel: 120})

	require.Equal(t, develop.PoolAM, out.Pool)
	// 25:12, 23:6, 24:6, 1:2, 21:2
	assert.Equal(t, []int{25, 23, 24, 1, 21}, resultIDs(out.Results))
}

func TestComputeClampDropsItems(t *testing.T) {
	snap := fixtureSnapshot()
	out := Compute(snap, Query{
		Resources:   res(100, 20, 100, 10),
		ShipType:    develop.ShipGun,
		HQLevel:     120,
		SecretaryID: 100,
	})

	for _, r := range out.Results {
		assert.Positive(t, r.Probability)
	}
	_, inResults := out.Probability(5)
	_, inFailures := failureFor(out.Failures, 5)
	assert.False(t, inResults, "2-4 clamps to 0 and drops")
	assert.False(t, inFailures, "dropped items are not failures")

	p, ok := out.Probability(11)
	require.True(t, ok)
	assert.Equal(t, 8+2+1, p)
}

func TestComputeLevelGateFirst(t *testing.T) {
	snap := fixtureSnapshot()
	out := Compute(snap, Query{Resources: res(10, 10, 10, 10), ShipType: develop.ShipGun, HQLevel: 120})

	f, ok := failureFor(out.Failures, 3)
	require.True(t, ok)
	assert.Equal(t, develop.FailureLevelInsufficient, f.Reason)
	assert.Equal(t, 130, f.RequiredLevel)
	assert.Nil(t, f.RequiredResources, "resource gate not evaluated")
}

func TestComputeResourceBoundaryInclusive(t *testing.T) {
	snap := fixtureSnapshot()

	at := Compute(snap, Query{Resources: res(50, 10, 10, 10), ShipType: develop.ShipGun, HQLevel: 120})
	_, ok := at.Probability(2)
	assert.True(t, ok, "fuel 50 meets 5 dismantle units")

	below := Compute(snap, Query{Resources: res(49, 10, 10, 10), ShipType: develop.ShipGun, HQLevel: 120})
	_, ok = below.Probability(2)
	assert.False(t, ok)
	f, ok := failureFor(below.Failures, 2)
	require.True(t, ok)
	assert.Equal(t, develop.FailureResourceInsufficient, f.Reason)
	assert.Equal(t, res(50, 0, 0, 0), *f.RequiredResources)
}

func TestComputeLevelBoundary(t *testing.T) {
	snap := fixtureSnapshot()

	at := Compute(snap, Query{Resources: res(100, 10, 100, 10), ShipType: develop.ShipGun, HQLevel: 20})
	_, ok := at.Probability(2)
	assert.True(t, ok)

	below := Compute(snap, Query{Resources: res(100, 10, 100, 10), ShipType: develop.ShipGun, HQLevel: 19})
	f, ok := failureFor(below.Failures, 2)
	require.True(t, ok)
	assert.Equal(t, develop.FailureLevelInsufficient, f.Reason)
	assert.Equal(t, 20, f.RequiredLevel)
}

func TestComputeIsIdempotent(t *testing.T) {
	snap := fixtureSnapshot()
	q := Query{Resources: res(100, 20, 100, 10), ShipType: develop.ShipGun, HQLevel: 60, SecretaryID: 100}
	assert.Equal(t, Compute(snap, q), Compute(snap, q))
}

func TestComputeLandBasedScenario(t *testing.T) {
	snap := fixtureSnapshot()

	tests := []struct {
		name     string
		in       develop.Resources
		legacy   bool
		pool     develop.Pool
		want     map[int]int
		excluded []int
	}{
		{
			name: "ammo pool",
			in:   res(240, 260, 10, 250),
			pool: develop.PoolAM,
			want: map[int]int{168: 8, 23: 4, 24: 4, 25: 10, 1: 2},
			// 21 goes from 2 to 0
			excluded: []int{21},
		},
		{
			name: "bauxite pool",
			in:   res(240, 260, 10, 270),
			pool: develop.PoolBX,
			want: map[int]int{168: 8, 21: 6, 23: 4, 24: 4, 25: 6},
		},
		{
			name:     "below threshold",
			in:       res(239, 260, 10, 250),
			pool:     develop.PoolAM,
			want:     map[int]int{21: 2, 23: 6, 24: 6, 25: 12, 1: 2},
			excluded: []int{168},
		},
		{
			name:   "legacy flag below threshold",
			in:     res(200, 260, 10, 250),
			legacy: true,
			pool:   develop.PoolAM,
			want:   map[int]int{168: 8, 23: 4, 24: 4, 25: 10, 1: 2},
		},
		{
			name:   "legacy flag does not double apply",
			in:     res(240, 260, 10, 250),
			legacy: true,
			pool:   develop.PoolAM,
			want:   map[int]int{168: 8, 23: 4, 24: 4, 25: 10, 1: 2},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Compute(snap, Query{Resources: tt.in, ShipType: develop.ShipAir, HQLevel: 120, LandBasedFlag: tt.legacy})
			require.Equal(t, tt.pool, out.Pool)

			got := make(map[int]int, len(out.Results))
			for _, r := range out.Results {
				got[r.ItemID] = r.Probability
			}
			assert.Equal(t, tt.want, got)

			for _, id := range tt.excluded {
				_, failed := failureFor(out.Failures, id)
				assert.False(t, failed, "item %d is dropped, not failed", id)
			}
		})
	}
}

func TestComputeForcedPool(t *testing.T) {
	snap := fixtureSnapshot()
	out := Compute(snap, Query{
		Resources: res(100, 10, 100, 10),
		ShipType:  develop.ShipGun,
		HQLevel:   120,
		ForcePool: develop.PoolAM,
	})
	assert.Equal(t, develop.PoolAM, out.Pool)
	assert.Equal(t, "gunAm", out.PoolLabel)
	assert.Equal(t, []int{1}, resultIDs(out.Results))
}

func TestComputeStatus(t *testing.T) {
	snap := fixtureSnapshot()

	failed := Compute(snap, Query{Resources: res(100, 10, 100, 10), ShipType: develop.ShipGun, HQLevel: 1})
	assert.Equal(t, develop.StatusFailed, failed.Status)
	assert.Empty(t, failed.Results)
	assert.NotEmpty(t, failed.Failures)
	assert.Equal(t, 100, failed.FailureRate)

	empty := Compute(snap, Query{Resources: res(10, 10, 10, 100), ShipType: develop.ShipSub, HQLevel: 120})
	assert.Equal(t, develop.StatusEmpty, empty.Status)
	assert.Empty(t, empty.Results)
	assert.Empty(t, empty.Failures)

	unknown := Compute(snap, Query{Resources: res(100, 10, 100, 10), ShipType: "battleship", HQLevel: 120})
	assert.Equal(t, develop.StatusEmpty, unknown.Status)
}

func TestComputeLocalizedNames(t *testing.T) {
	snap := fixtureSnapshot()
	out := Compute(snap, Query{Resources: res(100, 10, 100, 10), ShipType: develop.ShipGun, HQLevel: 120, Locale: i18n.EnUS})

	require.NotEmpty(t, out.Results)
	assert.Equal(t, "small gun (en)", out.Results[0].ItemName)

	f, ok := failureFor(out.Failures, 99)
	require.True(t, ok)
	assert.Equal(t, "item 99", f.ItemName)
}
