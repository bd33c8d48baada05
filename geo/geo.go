// Package geo holds the great-circle math and the single-partner routing
// aid. The route walk is a greedy nearest-neighbor heuristic: no
// pickup-before-delivery ordering, no capacity limits, no optimality
// guarantee — just a reasonable visiting order.
package geo

import (
	"math"

	"grocery-delivery-api/models"
)

const earthRadiusMeters = 6371000

// Distance returns the haversine great-circle distance in meters.
func Distance(a, b models.Coordinates) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

const (
	PointStart    = "start"
	PointPickup   = "pickup"
	PointDelivery = "delivery"
)

// RoutePoint is one stop on a delivery partner's route.
type RoutePoint struct {
	Type        string             `json:"type"`
	OrderID     uint               `json:"order_id,omitempty"`
	OrderNumber string             `json:"order_number,omitempty"`
	Name        string             `json:"name"`
	Coordinates models.Coordinates `json:"coordinates"`
	Address     *models.Address    `json:"address,omitempty"`
}

// OptimizeRoute orders points with a nearest-neighbor walk. points[0] is
// the fixed start; the result is a permutation of the input.
func OptimizeRoute(points []RoutePoint) []RoutePoint {
	if len(points) <= 1 {
		return points
	}

	route := make([]RoutePoint, 0, len(points))
	route = append(route, points[0])
	unvisited := make([]RoutePoint, len(points)-1)
	copy(unvisited, points[1:])

	for len(unvisited) > 0 {
		current := route[len(route)-1]
		nearest := 0
		minDist := math.Inf(1)
		for i, p := range unvisited {
			if d := Distance(current.Coordinates, p.Coordinates); d < minDist {
				minDist = d
				nearest = i
			}
		}
		route = append(route, unvisited[nearest])
		unvisited = append(unvisited[:nearest], unvisited[nearest+1:]...)
	}
	return route
}

// RouteLength sums leg distances in meters.
func RouteLength(route []RoutePoint) float64 {
	var total float64
	for i := 0; i+1 < len(route); i++ {
		total += Distance(route[i].Coordinates, route[i+1].Coordinates)
	}
	return total
}
