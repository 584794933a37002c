package geo

import (
	"fmt"
	"math"
)

const EarthRadiusKm = 6371.0

// bounding box pre-filter tuning
const (
	kmPerDegreeLat = 110.574
	minCosLat      = 0.01
	// floating point slack on the exact longitude half-width
	rimSlack = 1.001
)

// Point is a WGS 84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) || p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("latitude %v out of range", p.Lat)
	}
	if math.IsNaN(p.Lng) || math.IsInf(p.Lng, 0) || p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("longitude %v out of range", p.Lng)
	}
	return nil
}

// Box is an inclusive lat/lng rectangle.
type Box struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLng float64 `json:"max_lng"`
}

func (b Box) Contains(p Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lng >= b.MinLng && p.Lng <= b.MaxLng
}

// DistanceKm returns the haversine distance between a and b.
func DistanceKm(a, b Point) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)
	lat1 := toRad(a.Lat)
	lat2 := toRad(b.Lat)

	x := math.Pow(math.Sin(dLat/2), 2) + math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(dLng/2), 2)
	if x > 1 {
		x = 1
	}
	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(x), math.Sqrt(1-x))
}

// BoundingBox over-approximates the circle of radiusKm around center.
// The longitude span widens as cos(lat) shrinks. Below a cosine of 0.01, for circles
// reaching a pole and for circles crossing the antimeridian the box spans every longitude.
func BoundingBox(center Point, radiusKm float64) Box {
	latDelta := radiusKm / kmPerDegreeLat
	box := Box{
		MinLat: math.Max(-90, center.Lat-latDelta),
		MaxLat: math.Min(90, center.Lat+latDelta),
		MinLng: -180,
		MaxLng: 180,
	}

	if math.Abs(center.Lat)+latDelta >= 90 {
		return box
	}

	cosLat := math.Cos(toRad(center.Lat))
	if cosLat < minCosLat {
		return box
	}
	s := math.Sin(radiusKm/EarthRadiusKm) / cosLat
	if s >= 1 {
		return box
	}

	lngDelta := toDeg(math.Asin(s)) * rimSlack
	if center.Lng-lngDelta < -180 || center.Lng+lngDelta > 180 {
		return box
	}
	box.MinLng = center.Lng - lngDelta
	box.MaxLng = center.Lng + lngDelta
	return box
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}
