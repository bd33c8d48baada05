package geo

import (
	"testing"

	"grocery-delivery-api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	bangalore = models.Coordinates{Lat: 12.9716, Lng: 77.5946}
	mysore    = models.Coordinates{Lat: 12.2958, Lng: 76.6394}
)

func TestDistance(t *testing.T) {
	// Bangalore to Mysore is roughly 126 km as the crow flies.
	d := Distance(bangalore, mysore)
	assert.InDelta(t, 126_000, d, 3_000)

	assert.Zero(t, Distance(bangalore, bangalore))

	// Symmetric.
	assert.InDelta(t, d, Distance(mysore, bangalore), 0.001)
}

func TestDistanceShortRange(t *testing.T) {
	// ~0.01 degrees of latitude is about 1.11 km.
	a := models.Coordinates{Lat: 12.9700, Lng: 77.5946}
	b := models.Coordinates{Lat: 12.9800, Lng: 77.5946}
	assert.InDelta(t, 1_112, Distance(a, b), 10)
}

func routeOf(coords ...models.Coordinates) []RoutePoint {
	pts := make([]RoutePoint, len(coords))
	for i, c := range coords {
		pts[i] = RoutePoint{Name: string(rune('A' + i)), Coordinates: c}
	}
	pts[0].Type = PointStart
	return pts
}

func TestOptimizeRouteKeepsStartAndAllStops(t *testing.T) {
	points := routeOf(
		models.Coordinates{Lat: 12.97, Lng: 77.59},
		models.Coordinates{Lat: 12.99, Lng: 77.61},
		models.Coordinates{Lat: 12.95, Lng: 77.58},
		models.Coordinates{Lat: 12.98, Lng: 77.60},
	)

	route := OptimizeRoute(points)

	require.Len(t, route, len(points))
	assert.Equal(t, points[0], route[0], "start stays first")

	// Permutation: every input point appears exactly once.
	seen := map[string]int{}
	for _, p := range route {
		seen[p.Name]++
	}
	for _, p := range points {
		assert.Equal(t, 1, seen[p.Name], p.Name)
	}
}

func TestOptimizeRoutePicksNearestFirst(t *testing.T) {
	start := models.Coordinates{Lat: 12.9700, Lng: 77.5900}
	near := models.Coordinates{Lat: 12.9710, Lng: 77.5910}
	far := models.Coordinates{Lat: 13.0500, Lng: 77.7000}

	route := OptimizeRoute(routeOf(start, far, near))

	assert.Equal(t, near, route[1].Coordinates)
	assert.Equal(t, far, route[2].Coordinates)
}

func TestOptimizeRouteTrivialInputs(t *testing.T) {
	assert.Empty(t, OptimizeRoute(nil))

	single := routeOf(bangalore)
	assert.Equal(t, single, OptimizeRoute(single))
}

func TestRouteLength(t *testing.T) {
	route := routeOf(bangalore, mysore)
	assert.InDelta(t, Distance(bangalore, mysore), RouteLength(route), 0.001)

	assert.Zero(t, RouteLength(route[:1]))
	assert.Zero(t, RouteLength(nil))
}
