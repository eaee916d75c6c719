package models

// Coordinates is a WGS84 point resolved by a geocoder.
type Coordinates struct {
	Longitude float64 // Longitude of the point.
	Latitude  float64 // Latitude of the point.
}
