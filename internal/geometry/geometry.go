// Package geometry models corridor geometry as a closed variant over
// GeoJSON Polygon and MultiPolygon, with the bounding-box, centroid,
// and validation operations the analysis pipeline runs on it.
package geometry

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// Kind discriminates the corridor geometry variant.
type Kind int

const (
	KindPolygon Kind = iota
	KindMultiPolygon
)

// String returns the GeoJSON type name for the kind.
func (k Kind) String() string {
	if k == KindMultiPolygon {
		return "MultiPolygon"
	}
	return "Polygon"
}

// Corridor is a planning corridor: a Polygon or MultiPolygon in WGS84
// degrees. Exactly one of the two geometries is set, selected by kind;
// all operations switch exhaustively on it.
type Corridor struct {
	kind    Kind
	polygon *geom.Polygon
	multi   *geom.MultiPolygon
}

// FromGeom wraps a decoded geometry. Only Polygon and MultiPolygon are
// corridor shapes; anything else is rejected.
func FromGeom(g geom.T) (*Corridor, error) {
	switch t := g.(type) {
	case *geom.Polygon:
		return &Corridor{kind: KindPolygon, polygon: t}, nil
	case *geom.MultiPolygon:
		return &Corridor{kind: KindMultiPolygon, multi: t}, nil
	default:
		return nil, eris.Errorf("geometry: corridor must be Polygon or MultiPolygon, got %T", g)
	}
}

// ParseGeoJSON decodes a GeoJSON geometry into a Corridor.
func ParseGeoJSON(data []byte) (*Corridor, error) {
	var g geom.T
	if err := geojson.Unmarshal(data, &g); err != nil {
		return nil, eris.Wrap(err, "geometry: decode geojson")
	}
	return FromGeom(g)
}

// Kind returns the variant discriminator.
func (c *Corridor) Kind() Kind { return c.kind }

// Geom returns the underlying go-geom geometry.
func (c *Corridor) Geom() geom.T {
	switch c.kind {
	case KindMultiPolygon:
		return c.multi
	default:
		return c.polygon
	}
}

// MarshalGeoJSON encodes the corridor back to a GeoJSON geometry.
func (c *Corridor) MarshalGeoJSON() ([]byte, error) {
	data, err := geojson.Marshal(c.Geom())
	if err != nil {
		return nil, eris.Wrap(err, "geometry: encode geojson")
	}
	return data, nil
}

// rings returns all coordinate rings, indexed by polygon. A Polygon
// contributes a single polygon entry; a MultiPolygon one per member.
func (c *Corridor) rings() [][][]geom.Coord {
	switch c.kind {
	case KindMultiPolygon:
		return c.multi.Coords()
	default:
		return [][][]geom.Coord{c.polygon.Coords()}
	}
}

// Positions flattens every ring of every polygon into a position list.
func (c *Corridor) Positions() []geom.Coord {
	var out []geom.Coord
	for _, poly := range c.rings() {
		for _, ring := range poly {
			out = append(out, ring...)
		}
	}
	return out
}

// Centroid returns the arithmetic mean of all flattened positions.
//
// This is deliberately NOT an area-weighted geometric centroid: it is a
// cheap deterministic placeholder that behaves acceptably for the long,
// thin polygons corridors tend to be. Report consumers depend on its
// current value, so keep the approximation.
func (c *Corridor) Centroid() (lon, lat float64) {
	positions := c.Positions()
	if len(positions) == 0 {
		return 0, 0
	}
	var sumLon, sumLat float64
	for _, p := range positions {
		sumLon += p[0]
		sumLat += p[1]
	}
	n := float64(len(positions))
	return sumLon / n, sumLat / n
}

// BBox is a WGS84 bounding box.
type BBox struct {
	MinLon float64 `json:"minLon"`
	MinLat float64 `json:"minLat"`
	MaxLon float64 `json:"maxLon"`
	MaxLat float64 `json:"maxLat"`
}

// FallbackBBox is returned for degenerate geometry that yields no
// positions, so downstream fetchers always receive a usable region.
// It covers the Northern California coast study area.
var FallbackBBox = BBox{MinLon: -124.3, MinLat: 39.0, MaxLon: -121.8, MaxLat: 40.4}

// BBox scans every position and returns the elementwise min/max box.
// Degenerate geometry yields FallbackBBox rather than an error.
func (c *Corridor) BBox() BBox {
	positions := c.Positions()
	if len(positions) == 0 {
		return FallbackBBox
	}
	box := BBox{
		MinLon: positions[0][0], MaxLon: positions[0][0],
		MinLat: positions[0][1], MaxLat: positions[0][1],
	}
	for _, p := range positions[1:] {
		box.MinLon = math.Min(box.MinLon, p[0])
		box.MaxLon = math.Max(box.MaxLon, p[0])
		box.MinLat = math.Min(box.MinLat, p[1])
		box.MaxLat = math.Max(box.MaxLat, p[1])
	}
	return box
}

// milesPerDegree is the approximate length of one degree of latitude.
const milesPerDegree = 69.0

// AreaSqMiles approximates the box area in square miles using an
// equirectangular projection at the box's mid-latitude, floored at
// 0.01 so per-square-mile densities never divide by zero.
func (b BBox) AreaSqMiles() float64 {
	latMid := (b.MinLat + b.MaxLat) / 2
	latDist := math.Abs(b.MaxLat-b.MinLat) * milesPerDegree
	lonDist := math.Abs(b.MaxLon-b.MinLon) * milesPerDegree * math.Cos(latMid*math.Pi/180)
	return math.Max(0.01, latDist*lonDist)
}

// Contains reports whether the point lies within the box (inclusive).
func (b BBox) Contains(lon, lat float64) bool {
	return lon >= b.MinLon && lon <= b.MaxLon && lat >= b.MinLat && lat <= b.MaxLat
}

// Within reports whether b lies entirely inside outer.
func (b BBox) Within(outer BBox) bool {
	return b.MinLon >= outer.MinLon && b.MaxLon <= outer.MaxLon &&
		b.MinLat >= outer.MinLat && b.MaxLat <= outer.MaxLat
}
