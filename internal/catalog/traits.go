package catalog

import (
	"slices"
	"strings"

	"github.com/nidhogg/bird-zoo/internal/zoo"
)

// nocturnalKeywords flags species by name when the catalog lacks the field.
var nocturnalKeywords = []string{"フクロウ", "ズク", "ヨタカ", "ゴイサギ", "トラツグミ", "ヨシゴイ", "owl", "nightjar"}

// IsNocturnal reports whether the named bird is active at night. The catalog
// flag wins when present; otherwise the name is matched against keywords.
func IsNocturnal(sp *Species, name string) bool {
	if sp != nil && sp.Nocturnal != nil {
		return *sp.Nocturnal
	}
	lower := strings.ToLower(name)
	for _, kw := range nocturnalKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// HabitatFor maps catalog habitat tags onto a zoo area. Grassland is the
// catch-all, including when sp is nil.
func HabitatFor(sp *Species) zoo.Habitat {
	if sp == nil {
		return zoo.HabitatGrassland
	}
	for _, tag := range sp.HabitatTags {
		switch strings.ToLower(tag) {
		case "森林", "高山", "forest", "highland":
			return zoo.HabitatForest
		case "河川・湖沼", "海", "river-lake", "sea":
			return zoo.HabitatWaterside
		}
	}
	return zoo.HabitatGrassland
}

// Classify rates food for sp. A nil species rates everything acceptable.
func Classify(sp *Species, food string) zoo.Preference {
	if sp == nil {
		return zoo.PreferenceAcceptable
	}
	if slices.Contains(sp.FavoriteFoods, food) {
		return zoo.PreferenceFavorite
	}
	if slices.Contains(sp.AcceptableFoods, food) {
		return zoo.PreferenceAcceptable
	}
	return zoo.PreferenceDislike
}
