package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rsned/kc-development-server/pkg/develop"
)

func TestResolveBonus(t *testing.T) {
	snap := fixtureSnapshot()
	low := res(10, 10, 10, 10)
	landBased := res(240, 260, 10, 250)

	tests := []struct {
		name      string
		secretary int
		shipType  develop.ShipType
		pool      develop.Pool
		resources develop.Resources
		legacy    bool
		want      []develop.Adjustment
	}{
		{
			name:      "no secretary",
			shipType:  develop.ShipGun,
			pool:      develop.PoolFS,
			resources: low,
		},
		{
			name:      "matching rule and pool",
			secretary: 100,
			shipType:  develop.ShipGun,
			pool:      develop.PoolFS,
			resources: low,
			want: []develop.Adjustment{
				{ItemID: 5, Delta: -4},
				{ItemID: 11, Delta: 2},
				{ItemID: 11, Delta: 1},
			},
		},
		{
			name:      "ship type mismatch",
			secretary: 100,
			shipType:  develop.ShipTorp,
			pool:      develop.PoolFS,
			resources: low,
		},
		{
			name:      "pool without bonus",
			secretary: 100,
			shipType:  develop.ShipGun,
			pool:      develop.PoolBX,
			resources: low,
		},
		{
			name:      "unknown secretary",
			secretary: 4242,
			shipType:  develop.ShipGun,
			pool:      develop.PoolFS,
			resources: low,
		},
		{
			name:      "conditional rule is not selectable by id",
			secretary: 1,
			shipType:  develop.ShipAir,
			pool:      develop.PoolAM,
			resources: low,
		},
		{
			name:      "land-based condition from resources",
			shipType:  develop.ShipAir,
			pool:      develop.PoolAM,
			resources: landBased,
			want:      landBasedAdjustments(),
		},
		{
			name:      "land-based condition needs every threshold",
			shipType:  develop.ShipAir,
			pool:      develop.PoolAM,
			resources: res(240, 259, 10, 250),
		},
		{
			name:      "land-based rule only in declared pools",
			shipType:  develop.ShipAir,
			pool:      develop.PoolFS,
			resources: res(300, 260, 10, 250),
		},
		{
			name:      "land-based rule only for air",
			shipType:  develop.ShipGun,
			pool:      develop.PoolAM,
			resources: landBased,
		},
		{
			name:      "legacy flag forces the rule",
			shipType:  develop.ShipAir,
			pool:      develop.PoolBX,
			resources: low,
			legacy:    true,
			want:      landBasedAdjustments(),
		},
		{
			name:      "legacy flag and condition apply once",
			shipType:  develop.ShipAir,
			pool:      develop.PoolBX,
			resources: res(240, 260, 10, 270),
			legacy:    true,
			want:      landBasedAdjustments(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveBonus(snap, tt.secretary, tt.shipType, tt.pool, tt.resources, tt.legacy)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFoldAdjustments(t *testing.T) {
	adj := []develop.Adjustment{
		{ItemID: 11, Delta: 2},
		{ItemID: 5, Delta: -4},
		{ItemID: 11, Delta: 1},
	}
	got := foldAdjustments(adj)
	assert.Equal(t, map[int]int{11: 3, 5: -4}, got)
	assert.Len(t, adj, 3, "input untouched")
}

func TestLandBasedCondition(t *testing.T) {
	assert.True(t, LandBasedCondition(res(240, 260, 10, 250)))
	assert.True(t, LandBasedCondition(res(300, 300, 300, 300)))
	assert.False(t, LandBasedCondition(res(239, 260, 10, 250)))
	assert.False(t, LandBasedCondition(res(240, 260, 10, 249)))
}
