// README: Great-circle distance and ordering for radius search results.
package location

import "math"

const earthRadiusKm = 6371.0

// distanceKm is the haversine distance between two positions in decimal degrees.
func distanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	rlat1, rlat2 := radians(lat1), radians(lat2)
	dLat := rlat2 - rlat1
	dLon := radians(lon2 - lon1)

	h := hav(dLat) + math.Cos(rlat1)*math.Cos(rlat2)*hav(dLon)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(math.Min(1, h)))
}

func hav(angle float64) float64 {
	s := math.Sin(angle / 2)
	return s * s
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

// sortByDistance orders items closest first, keeping the input order for ties.
func sortByDistance[T any](items []T, dist func(T) float64) {
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && dist(items[j-1]) > dist(items[j]); j-- {
			items[j-1], items[j] = items[j], items[j-1]
		}
	}
}
