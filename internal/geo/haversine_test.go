package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversine_KnownDistance(t *testing.T) {
	// Two points in central Bangalore, roughly 5.2km apart.
	d := Haversine(12.9716, 77.5946, 12.9352, 77.6245)
	assert.InDelta(t, 5.18, d, 0.05)
}

func TestHaversine_SamePoint(t *testing.T) {
	assert.InDelta(t, 0.0, Haversine(12.9716, 77.5946, 12.9716, 77.5946), 1e-9)
}
