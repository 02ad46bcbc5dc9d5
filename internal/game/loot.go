package game

import "math/rand"

// Source yields uniform draws in [0,1). The loot engine takes two
// independent sources so tests can pin the tier and break draws separately.
type Source interface {
	Float64() float64
}

const rodBreakChance = 0.05

// LootEngine rolls catches against the cumulative tier table:
// [0,75] common, (75,95] gold, (95,99] diamond, (99,100) magma.
type LootEngine struct {
	tier Source
	brk  Source
}

// NewLootEngine builds an engine over the given draw sources.
func NewLootEngine(tier, breakSrc Source) *LootEngine {
	return &LootEngine{tier: tier, brk: breakSrc}
}

// NewSeededLootEngine builds an engine over two independently seeded PRNGs.
func NewSeededLootEngine(seed int64) *LootEngine {
	return &LootEngine{
		tier: rand.New(rand.NewSource(seed)),
		brk:  rand.New(rand.NewSource(seed + 1)),
	}
}

// Roll performs one catch: an item draw and an independent rod-break draw.
// The two draws never share a source value.
func (e *LootEngine) Roll() (Item, bool) {
	roll := e.tier.Float64() * 100
	broke := e.brk.Float64() < rodBreakChance

	var tier string
	switch {
	case roll <= 75:
		tier = TierCommon
	case roll <= 95:
		tier = TierGold
	case roll <= 99:
		tier = TierDiamond
	default:
		tier = TierMagma
	}
	it, _ := CatchItem(tier)
	return it, broke
}
