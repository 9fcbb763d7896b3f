package tiers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllows(t *testing.T) {
	tests := []struct {
		tier    Tier
		feature Feature
		want    bool
	}{
		{Free, RealtimeData, false},
		{Free, Alerts, false},
		{Enthusiast, RealtimeData, true},
		{Enthusiast, WaterQuality, true},
		{Enthusiast, Alerts, true},
		{Enthusiast, WaterRights, false},
		{Enthusiast, APIAccess, false},
		{Professional, MultiLocation, true},
		{Professional, APIAccess, true},
		{Enterprise, WaterRights, true},
		{Tier("platinum"), RealtimeData, false},
		{Enterprise, Feature("teleportation"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.tier)+"/"+string(tt.feature), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.tier.Allows(tt.feature))
		})
	}
}

func TestMaxSavedLocations(t *testing.T) {
	assert.Equal(t, 3, Free.MaxSavedLocations())
	assert.Equal(t, 10, Enthusiast.MaxSavedLocations())
	assert.Equal(t, 100, Professional.MaxSavedLocations())
	assert.Equal(t, 1000, Enterprise.MaxSavedLocations())
	assert.Equal(t, 3, Tier("").MaxSavedLocations())
}

func TestParse(t *testing.T) {
	tier, ok := Parse("professional")
	assert.True(t, ok)
	assert.Equal(t, Professional, tier)

	_, ok = Parse("Professional")
	assert.False(t, ok)
}
