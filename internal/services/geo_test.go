package services

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHaversineMeters(t *testing.T) {
	t.Parallel()

	// Paris to London, roughly 343.5 km.
	d := haversineMeters(48.8566, 2.3522, 51.5074, -0.1278)
	require.InDelta(t, 343_500, d, 1_000)

	// Same point.
	require.Zero(t, haversineMeters(-6.2, 106.8, -6.2, 106.8))

	// Symmetry.
	require.InDelta(t,
		haversineMeters(-6.2, 106.8, -6.25, 106.85),
		haversineMeters(-6.25, 106.85, -6.2, 106.8),
		0.001)
}

func TestHaversineServiceRadius(t *testing.T) {
	t.Parallel()

	storeLat, storeLon := -6.2000, 106.8000
	const radiusKm = 5.0

	// About 3 km east of the store: inside the radius.
	near := haversineMeters(storeLat, storeLon, -6.2000, 106.8271)
	require.InDelta(t, 3_000, near, 100)
	require.Less(t, near, radiusKm*1000)

	// About 8 km east: outside.
	far := haversineMeters(storeLat, storeLon, -6.2000, 106.8723)
	require.InDelta(t, 8_000, far, 100)
	require.Greater(t, far, radiusKm*1000)
}
