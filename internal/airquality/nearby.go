package airquality

import (
	"math"
	"sort"
)

// NearbyConfig bounds a nearest-station search.
type NearbyConfig struct {
	// MaxDistance is the search radius in meters. Default: 50000 (50km).
	MaxDistance float64

	// Limit is the maximum number of stations returned. Default: 5.
	Limit int
}

// DefaultNearbyConfig returns the default search bounds.
func DefaultNearbyConfig() NearbyConfig {
	return NearbyConfig{
		MaxDistance: 50000,
		Limit:       5,
	}
}

// StationDistance pairs a station with its distance from a query point.
type StationDistance struct {
	Station  Station
	Distance float64 // meters
}

// NearestStations returns the stations within cfg.MaxDistance of (lat, lon),
// nearest first. Stations without coordinates are ignored.
func NearestStations(stations []Station, lat, lon float64, cfg NearbyConfig) []StationDistance {
	if cfg.MaxDistance <= 0 {
		cfg.MaxDistance = DefaultNearbyConfig().MaxDistance
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultNearbyConfig().Limit
	}

	var candidates []StationDistance
	for _, s := range stations {
		if s.GegrLat == 0 && s.GegrLon == 0 {
			continue
		}
		d := haversineDistance(lat, lon, s.GegrLat, s.GegrLon)
		if d <= cfg.MaxDistance {
			candidates = append(candidates, StationDistance{Station: s, Distance: d})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Distance < candidates[j].Distance
	})
	if len(candidates) > cfg.Limit {
		candidates = candidates[:cfg.Limit]
	}
	return candidates
}

// haversineDistance calculates the great-circle distance between two points in meters.
func haversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadius = 6371000 // meters

	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}
