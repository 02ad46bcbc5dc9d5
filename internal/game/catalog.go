package game

// Item is an immutable catalog entry. The JSON field names are part of the
// client contract and must not change.
type Item struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Value       int64  `json:"value"`
	Description string `json:"description,omitempty"`
}

// Fish tiers, by ascending rarity.
const (
	TierCommon  = "common"
	TierGold    = "gold"
	TierDiamond = "diamond"
	TierMagma   = "magma"
)

var catch = map[string]Item{
	TierCommon: {
		ID:          "common-fish",
		Name:        "Common Fish",
		Type:        TierCommon,
		Value:       1,
		Description: "A regular fish.",
	},
	TierGold: {
		ID:          "gold-fish",
		Name:        "Gold Fish",
		Type:        TierGold,
		Value:       15000,
		Description: "A shiny golden fish.",
	},
	TierDiamond: {
		ID:          "diamond-fish",
		Name:        "Diamond Fish",
		Type:        TierDiamond,
		Value:       50000,
		Description: "A sparkling diamond fish.",
	},
	TierMagma: {
		ID:          "magma-fish",
		Name:        "Magmafish",
		Type:        TierMagma,
		Value:       100000,
		Description: "An extremely rare fish from the depths of the volcano.",
	},
}

// CatchItem returns the catalog entry for a tier.
func CatchItem(tier string) (Item, bool) {
	it, ok := catch[tier]
	return it, ok
}

// ItemByID looks up a catalog entry by item id.
func ItemByID(id string) (Item, bool) {
	for _, it := range catch {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

// ShopPrices maps purchasable pack ids to their FRENZY cost. Pack ids encode
// "<kind>-<amount>"; verification credits amount x quantity of the kind.
var ShopPrices = map[string]int64{
	"bait-1":   10000,
	"bait-5":   45000,
	"bait-25":  200000,
	"bait-100": 700000,
	"rod-1":    10000,
}
