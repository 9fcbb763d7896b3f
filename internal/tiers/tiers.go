// Package tiers holds the subscription ladder and the features each rung unlocks.
package tiers

type Tier string

const (
	Free         Tier = "free"
	Enthusiast   Tier = "enthusiast"
	Professional Tier = "professional"
	Enterprise   Tier = "enterprise"
)

type Feature string

const (
	RealtimeData  Feature = "realtime_data"
	WaterQuality  Feature = "water_quality"
	Alerts        Feature = "alerts"
	WaterRights   Feature = "water_rights"
	APIAccess     Feature = "api_access"
	MultiLocation Feature = "multi_location"
)

var rank = map[Tier]int{
	Free:         0,
	Enthusiast:   1,
	Professional: 2,
	Enterprise:   3,
}

// minimum rank required per feature. Extend here when a feature is added.
var featureRank = map[Feature]int{
	RealtimeData:  1,
	WaterQuality:  1,
	Alerts:        1,
	WaterRights:   2,
	APIAccess:     2,
	MultiLocation: 2,
}

var locationLimit = map[Tier]int{
	Free:         3,
	Enthusiast:   10,
	Professional: 100,
	Enterprise:   1000,
}

// Parse accepts a tier name and reports whether it is on the ladder.
func Parse(s string) (Tier, bool) {
	t := Tier(s)
	_, ok := rank[t]
	return t, ok
}

// Rank returns the ordinal of t; unknown tiers rank as free.
func (t Tier) Rank() int {
	return rank[t]
}

// Allows reports whether tier t unlocks feature f. Unknown features are denied.
func (t Tier) Allows(f Feature) bool {
	need, ok := featureRank[f]
	if !ok {
		return false
	}
	return t.Rank() >= need
}

// MaxSavedLocations is the saved-location cap for t. Unknown tiers get the free cap.
func (t Tier) MaxSavedLocations() int {
	if n, ok := locationLimit[t]; ok {
		return n
	}
	return locationLimit[Free]
}
