package geotag

import "math"

// Coordinates is a WGS84 latitude/longitude pair in decimal degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether the pair is inside the representable range.
// Out-of-range values from a mangled EXIF block are treated the same
// as no location at all.
func (c Coordinates) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

func toRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// Distance returns the great-circle distance between two coordinates
// in kilometers (haversine).
func Distance(p1, p2 Coordinates) float64 {
	dLat := toRadians(p2.Latitude - p1.Latitude)
	dLon := toRadians(p2.Longitude - p1.Longitude)
	a := math.Pow(math.Sin(dLat/2.0), 2) +
		math.Cos(toRadians(p1.Latitude))*
			math.Cos(toRadians(p2.Latitude))*
			math.Pow(math.Sin(dLon/2.0), 2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1.0-a))
	return c * 6371.0
}

// KilometersToMiles converts a distance for display.
func KilometersToMiles(km float64) float64 {
	return 0.621371 * km
}
