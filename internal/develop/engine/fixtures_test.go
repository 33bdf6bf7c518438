package engine

import (
	"github.com/rsned/kc-development-server/internal/develop/refdata"
	"github.com/rsned/kc-development-server/pkg/develop"
)

func pct(v int) *int { return &v }

func key(st develop.ShipType, p develop.Pool) develop.PartitionKey {
	return develop.PartitionKey{ShipType: st, Pool: p}
}

var (
	gunFs  = key(develop.ShipGun, develop.PoolFS)
	gunAm  = key(develop.ShipGun, develop.PoolAM)
	torpAm = key(develop.ShipTorp, develop.PoolAM)
	airAm  = key(develop.ShipAir, develop.PoolAM)
	airBx  = key(develop.ShipAir, develop.PoolBX)
)

func row(id int, rates map[develop.PartitionKey]*int) develop.TableRow {
	return develop.TableRow{ItemID: id, Rates: rates}
}

func fixtureItems() []develop.Item {
	named := func(id, rarity int, dismantle [4]int, name string) develop.Item {
		return develop.Item{
			ID:        id,
			Rarity:    rarity,
			Craftable: true,
			Dismantle: dismantle,
			Names:     map[string]string{"zh_cn": name, "en_us": name + " (en)"},
		}
	}
	return []develop.Item{
		named(1, 1, [4]int{0, 1, 1, 0}, "small gun"),
		named(2, 2, [4]int{5, 0, 0, 0}, "fuel hungry"),
		named(3, 13, [4]int{30, 30, 30, 30}, "rare and expensive"),
		named(5, 1, [4]int{0, 0, 0, 0}, "fragile"),
		named(10, 1, [4]int{0, 0, 0, 0}, "torp only"),
		named(11, 1, [4]int{0, 2, 0, 0}, "needs ammo"),
		named(21, 1, [4]int{0, 0, 0, 0}, "zero fighter"),
		named(23, 1, [4]int{0, 0, 0, 0}, "dive bomber"),
		named(24, 1, [4]int{0, 0, 0, 0}, "torpedo bomber"),
		named(25, 1, [4]int{0, 0, 0, 0}, "recon"),
		named(168, 3, [4]int{0, 0, 0, 3}, "land-based attacker"),
	}
}

func fixtureRows() []develop.TableRow {
	return []develop.TableRow{
		row(1, map[develop.PartitionKey]*int{gunFs: pct(10), gunAm: pct(4), airAm: pct(2)}),
		row(2, map[develop.PartitionKey]*int{gunFs: pct(6)}),
		row(3, map[develop.PartitionKey]*int{gunFs: pct(2)}),
		row(99, map[develop.PartitionKey]*int{gunFs: pct(4)}),
		row(11, map[develop.PartitionKey]*int{gunFs: pct(8)}),
		row(5, map[develop.PartitionKey]*int{gunFs: pct(2), gunAm: nil}),
		row(10, map[develop.PartitionKey]*int{torpAm: pct(6)}),
		row(21, map[develop.PartitionKey]*int{airAm: pct(2), airBx: pct(8)}),
		row(23, map[develop.PartitionKey]*int{airAm: pct(6), airBx: pct(6)}),
		row(24, map[develop.PartitionKey]*int{airAm: pct(6), airBx: pct(6)}),
		row(25, map[develop.PartitionKey]*int{airAm: pct(12), airBx: pct(8)}),
		row(168, map[develop.PartitionKey]*int{}),
	}
}

func landBasedAdjustments() []develop.Adjustment {
	return []develop.Adjustment{
		{ItemID: 21, Delta: -2},
		{ItemID: 23, Delta: -2},
		{ItemID: 24, Delta: -2},
		{ItemID: 25, Delta: -2},
		{ItemID: 168, Delta: 8},
	}
}

func fixtureRules() []develop.SecretaryRule {
	return []develop.SecretaryRule{
		{
			ID:        1,
			Name:      "land-based attacker condition",
			ShortName: refdata.LandBasedShortName,
			ShipType:  develop.ShipAir,
			Bonuses: []develop.PoolBonus{
				{Pool: develop.PoolAM, Adjustments: landBasedAdjustments()},
				{Pool: develop.PoolBX, Adjustments: landBasedAdjustments()},
			},
		},
		{
			ID:        100,
			Name:      "Gun Secretary/Kai",
			ShortName: "Gun Secretary",
			Order:     1,
			ShipType:  develop.ShipGun,
			Bonuses: []develop.PoolBonus{{
				Pool: develop.PoolFS,
				Adjustments: []develop.Adjustment{
					{ItemID: 5, Delta: -4},
					{ItemID: 11, Delta: 2},
					{ItemID: 11, Delta: 1},
				},
			}},
		},
		{
			ID:        101,
			Name:      "Torp Secretary",
			ShortName: "Torp Secretary",
			Order:     2,
			ShipType:  develop.ShipTorp,
			Bonuses: []develop.PoolBonus{{
				Pool:        develop.PoolAM,
				Adjustments: []develop.Adjustment{{ItemID: 10, Delta: 4}},
			}},
		},
	}
}

func fixtureSnapshot() *refdata.Snapshot {
	return refdata.New(fixtureItems(), fixtureRows(), fixtureRules())
}

func res(fuel, ammo, steel, bauxite int) develop.Resources {
	return develop.Resources{Fuel: fuel, Ammo: ammo, Steel: steel, Bauxite: bauxite}
}

func resultIDs(results []develop.ResolvedItem) []int {
	ids := make([]int, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.ItemID)
	}
	return ids
}

func failureFor(failures []develop.FailureReason, id int) (develop.FailureReason, bool) {
	for _, f := range failures {
		if f.ItemID == id {
			return f, true
		}
	}
	return develop.FailureReason{}, false
}
