package models

import (
	"encoding/json"
	"fmt"

	"github.com/UnknownOlympus/aquifer/internal/errs"
	"github.com/paulmach/orb"
)

// GeometryType is the GeoJSON geometry tag.
type GeometryType string

// Supported geometry types.
const (
	GeometryPoint           GeometryType = "Point"
	GeometryLineString      GeometryType = "LineString"
	GeometryPolygon         GeometryType = "Polygon"
	GeometryMultiPoint      GeometryType = "MultiPoint"
	GeometryMultiLineString GeometryType = "MultiLineString"
	GeometryMultiPolygon    GeometryType = "MultiPolygon"
)

const (
	minPositionLen = 2
	maxPositionLen = 3
	minRingLen     = 4
)

// Position is a single coordinate tuple: longitude, latitude and an optional altitude.
type Position []float64

// Lon returns the first component.
func (p Position) Lon() float64 { return p[0] }

// Lat returns the second component.
func (p Position) Lat() float64 { return p[1] }

// Altitude returns the third component and whether it is present.
func (p Position) Altitude() (float64, bool) {
	if len(p) < maxPositionLen {
		return 0, false
	}
	return p[2], true
}

// Geometry is a tagged variant: exactly the field matching Type is populated.
type Geometry struct {
	Type            GeometryType
	Point           Position
	LineString      []Position
	Polygon         [][]Position
	MultiPoint      []Position
	MultiLineString [][]Position
	MultiPolygon    [][][]Position
}

// NewPoint builds a Point geometry.
func NewPoint(coords ...float64) *Geometry {
	return &Geometry{Type: GeometryPoint, Point: Position(coords)}
}

type rawGeometry struct {
	Type        GeometryType    `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// UnmarshalJSON decodes a GeoJSON geometry and checks that the coordinate
// nesting matches the type tag.
func (g *Geometry) UnmarshalJSON(data []byte) error {
	var raw rawGeometry
	if err := json.Unmarshal(data, &raw); err != nil {
		return errs.Validation("geometry", "malformed geometry object", err)
	}
	if len(raw.Coordinates) == 0 {
		return errs.Validation("geometry.coordinates", "missing coordinates", nil)
	}

	out := Geometry{Type: raw.Type}
	var err error
	switch raw.Type {
	case GeometryPoint:
		err = decodeCoords(raw.Coordinates, &out.Point)
		if err == nil {
			err = checkPosition(out.Point)
		}
	case GeometryLineString:
		err = decodeCoords(raw.Coordinates, &out.LineString)
		if err == nil {
			err = checkLine(out.LineString)
		}
	case GeometryMultiPoint:
		err = decodeCoords(raw.Coordinates, &out.MultiPoint)
		if err == nil {
			err = checkMembers(len(out.MultiPoint), raw.Type)
		}
		if err == nil {
			err = checkPositions(out.MultiPoint)
		}
	case GeometryPolygon:
		err = decodeCoords(raw.Coordinates, &out.Polygon)
		if err == nil {
			err = checkRings(out.Polygon)
		}
	case GeometryMultiLineString:
		err = decodeCoords(raw.Coordinates, &out.MultiLineString)
		if err == nil {
			err = checkMembers(len(out.MultiLineString), raw.Type)
		}
		if err == nil {
			for _, line := range out.MultiLineString {
				if err = checkLine(line); err != nil {
					break
				}
			}
		}
	case GeometryMultiPolygon:
		err = decodeCoords(raw.Coordinates, &out.MultiPolygon)
		if err == nil {
			err = checkMembers(len(out.MultiPolygon), raw.Type)
		}
		if err == nil {
			for _, poly := range out.MultiPolygon {
				if err = checkRings(poly); err != nil {
					break
				}
			}
		}
	default:
		return errs.Validation("geometry.type", fmt.Sprintf("unsupported geometry type %q", raw.Type), nil)
	}
	if err != nil {
		return err
	}

	*g = out
	return nil
}

// MarshalJSON encodes the geometry back into GeoJSON.
func (g Geometry) MarshalJSON() ([]byte, error) {
	var coords any
	switch g.Type {
	case GeometryPoint:
		coords = g.Point
	case GeometryLineString:
		coords = g.LineString
	case GeometryPolygon:
		coords = g.Polygon
	case GeometryMultiPoint:
		coords = g.MultiPoint
	case GeometryMultiLineString:
		coords = g.MultiLineString
	case GeometryMultiPolygon:
		coords = g.MultiPolygon
	default:
		return nil, fmt.Errorf("cannot marshal geometry type %q", g.Type)
	}

	return json.Marshal(struct {
		Type        GeometryType `json:"type"`
		Coordinates any          `json:"coordinates"`
	}{g.Type, coords})
}

// Orb converts the geometry to its orb equivalent. Altitudes are dropped.
func (g *Geometry) Orb() orb.Geometry {
	switch g.Type {
	case GeometryPoint:
		return toOrbPoint(g.Point)
	case GeometryLineString:
		return orb.LineString(toOrbPoints(g.LineString))
	case GeometryMultiPoint:
		return orb.MultiPoint(toOrbPoints(g.MultiPoint))
	case GeometryPolygon:
		return toOrbPolygon(g.Polygon)
	case GeometryMultiLineString:
		mls := make(orb.MultiLineString, 0, len(g.MultiLineString))
		for _, line := range g.MultiLineString {
			mls = append(mls, orb.LineString(toOrbPoints(line)))
		}
		return mls
	case GeometryMultiPolygon:
		mp := make(orb.MultiPolygon, 0, len(g.MultiPolygon))
		for _, poly := range g.MultiPolygon {
			mp = append(mp, toOrbPolygon(poly))
		}
		return mp
	default:
		return nil
	}
}

func toOrbPoint(p Position) orb.Point { return orb.Point{p[0], p[1]} }

func toOrbPoints(ps []Position) []orb.Point {
	out := make([]orb.Point, 0, len(ps))
	for _, p := range ps {
		out = append(out, toOrbPoint(p))
	}
	return out
}

func toOrbPolygon(rings [][]Position) orb.Polygon {
	poly := make(orb.Polygon, 0, len(rings))
	for _, ring := range rings {
		poly = append(poly, orb.Ring(toOrbPoints(ring)))
	}
	return poly
}

func decodeCoords(raw json.RawMessage, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return errs.Validation("geometry.coordinates", "coordinates do not match geometry type", err)
	}
	return nil
}

func checkPosition(p Position) error {
	if len(p) < minPositionLen || len(p) > maxPositionLen {
		return errs.Validation(
			"geometry.coordinates",
			fmt.Sprintf("position must have 2 or 3 components, got %d", len(p)),
			nil,
		)
	}
	return nil
}

func checkPositions(ps []Position) error {
	for _, p := range ps {
		if err := checkPosition(p); err != nil {
			return err
		}
	}
	return nil
}

func checkLine(ps []Position) error {
	if len(ps) < minPositionLen {
		return errs.Validation("geometry.coordinates", "line string needs at least 2 positions", nil)
	}
	return checkPositions(ps)
}

// checkRings requires at least one ring of at least 4 positions, the
// GeoJSON linear ring minimum.
func checkRings(rings [][]Position) error {
	if len(rings) == 0 {
		return errs.Validation("geometry.coordinates", "polygon needs at least one ring", nil)
	}
	for _, ring := range rings {
		if len(ring) < minRingLen {
			return errs.Validation(
				"geometry.coordinates",
				fmt.Sprintf("linear ring needs at least %d positions, got %d", minRingLen, len(ring)),
				nil,
			)
		}
		if err := checkPositions(ring); err != nil {
			return err
		}
	}
	return nil
}

func checkMembers(n int, typ GeometryType) error {
	if n == 0 {
		return errs.Validation("geometry.coordinates", fmt.Sprintf("%s has no members", typ), nil)
	}
	return nil
}
