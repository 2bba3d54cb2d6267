package geo

import (
	"math"

	"github.com/golang/geo/s2"

	"github.com/apartment-estimator/backend/internal/reference"
)

const EarthRadiusKm = 6371.0088

// Region is a latitude/longitude bounding box in degrees.
type Region struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLon float64 `json:"max_lon"`
}

// SupportedRegion covers North Rhine-Westphalia, the area the models were trained on.
var SupportedRegion = Region{MinLat: 50.56, MaxLat: 52.34, MinLon: 6.03, MaxLon: 9.37}

func (r Region) Rect() s2.Rect {
	return s2.RectFromLatLng(s2.LatLngFromDegrees(r.MinLat, r.MinLon)).
		AddPoint(s2.LatLngFromDegrees(r.MaxLat, r.MaxLon))
}

func (r Region) Contains(lat, lon float64) bool {
	return r.Rect().ContainsLatLng(s2.LatLngFromDegrees(lat, lon))
}

// DistanceKm is the great-circle distance between two points.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians() * EarthRadiusKm
}

// Nearest returns the reference city closest to the point. ok is false when
// cities is empty.
func Nearest(cities []reference.City, lat, lon float64) (city reference.City, distanceKm float64, ok bool) {
	distanceKm = math.Inf(1)
	for _, c := range cities {
		d := DistanceKm(lat, lon, c.Latitude, c.Longitude)
		if d < distanceKm {
			city, distanceKm, ok = c, d, true
		}
	}
	return city, distanceKm, ok
}
