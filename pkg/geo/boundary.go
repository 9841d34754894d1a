// Package geo models country boundary datasets and answers point-in-polygon
// containment queries against them.
//
// Coordinates are treated as planar (x = longitude, y = latitude); there is no
// geodesic correction. Rings are tested with even-odd ray casting using the
// half-open crossing rule (yi > y) != (yj > y), so a point exactly on an edge
// or vertex gets whatever that rule yields rather than a special case.
package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/kass/go-geofence/pkg/models"
)

// ErrMalformedBoundaryData is returned when boundary data fails load-time validation
var ErrMalformedBoundaryData = errors.New("malformed boundary data")

// GeometryType identifies the shape of a feature
type GeometryType string

const (
	Polygon      GeometryType = "Polygon"
	MultiPolygon GeometryType = "MultiPolygon"
)

// Ring is one closed boundary curve. The closing vertex may or may not repeat
// the first one.
type Ring struct {
	Vertices []models.Location

	// envelope is derived from Vertices by Dataset.prepare
	envelope models.BoundingBox
}

// Bounds returns the ring's envelope
func (r *Ring) Bounds() models.BoundingBox {
	return r.envelope
}

// Contains reports whether p lies inside the ring
func (r *Ring) Contains(p models.Location) bool {
	if !r.envelope.Contains(p) {
		return false
	}
	return pointInRing(p.Lon, p.Lat, r.Vertices)
}

// pointInRing is even-odd ray casting towards +x
func pointInRing(x, y float64, vs []models.Location) bool {
	inside := false
	for i, j := 0, len(vs)-1; i < len(vs); j, i = i, i+1 {
		xi, yi := vs[i].Lon, vs[i].Lat
		xj, yj := vs[j].Lon, vs[j].Lat
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// Poly is an outer ring followed by optional holes. Holes are kept but not
// consulted for containment.
type Poly struct {
	Rings []Ring
}

// Outer returns the polygon's outer ring
func (p *Poly) Outer() *Ring {
	return &p.Rings[0]
}

// Feature is a single Polygon or MultiPolygon geometry. A Polygon feature
// carries exactly one Poly.
type Feature struct {
	Name     string
	Type     GeometryType
	Polygons []Poly
}

// Dataset is an ordered, immutable collection of features. It is safe to
// share between goroutines once constructed.
type Dataset struct {
	Features []Feature
}

// NewPolygon builds a Polygon feature from an outer ring and optional holes
func NewPolygon(name string, outer []models.Location, holes ...[]models.Location) Feature {
	return Feature{
		Name:     name,
		Type:     Polygon,
		Polygons: []Poly{newPoly(outer, holes...)},
	}
}

// NewMultiPolygon builds a MultiPolygon feature with one polygon per outer ring
func NewMultiPolygon(name string, outers ...[]models.Location) Feature {
	polys := make([]Poly, 0, len(outers))
	for _, outer := range outers {
		polys = append(polys, newPoly(outer))
	}
	return Feature{
		Name:     name,
		Type:     MultiPolygon,
		Polygons: polys,
	}
}

func newPoly(outer []models.Location, holes ...[]models.Location) Poly {
	rings := make([]Ring, 0, 1+len(holes))
	rings = append(rings, Ring{Vertices: outer})
	for _, h := range holes {
		rings = append(rings, Ring{Vertices: h})
	}
	return Poly{Rings: rings}
}

// NewDataset validates the features and returns a dataset ready for queries
func NewDataset(features ...Feature) (*Dataset, error) {
	d := &Dataset{Features: features}
	if err := d.prepare(); err != nil {
		return nil, err
	}
	return d, nil
}

// Contains reports whether p lies inside any outer ring of the dataset
func (d *Dataset) Contains(p models.Location) bool {
	return Contains(p, d)
}

// Contains walks the features in order and stops at the first outer ring
// that contains p.
func Contains(p models.Location, d *Dataset) bool {
	for i := range d.Features {
		f := &d.Features[i]
		switch f.Type {
		case Polygon:
			if len(f.Polygons) > 0 && f.Polygons[0].Outer().Contains(p) {
				return true
			}
		case MultiPolygon:
			for j := range f.Polygons {
				if f.Polygons[j].Outer().Contains(p) {
					return true
				}
			}
		}
	}
	return false
}

// Bounds returns the envelope of every outer ring in the dataset
func (d *Dataset) Bounds() models.BoundingBox {
	box := models.EmptyBox()
	for _, ring := range d.OuterRings() {
		env := ring.Bounds()
		box = box.Extend(models.Location{Lat: env.MinLat, Lon: env.MinLon})
		box = box.Extend(models.Location{Lat: env.MaxLat, Lon: env.MaxLon})
	}
	return box
}

// OuterRings returns the rings consulted by Contains, in the order it visits them
func (d *Dataset) OuterRings() []*Ring {
	var rings []*Ring
	for i := range d.Features {
		f := &d.Features[i]
		for j := range f.Polygons {
			rings = append(rings, f.Polygons[j].Outer())
			if f.Type == Polygon {
				break
			}
		}
	}
	return rings
}

// RingCount returns the number of outer rings
func (d *Dataset) RingCount() int {
	return len(d.OuterRings())
}

// prepare validates every ring and caches its envelope
func (d *Dataset) prepare() error {
	if len(d.Features) == 0 {
		return fmt.Errorf("%w: dataset has no features", ErrMalformedBoundaryData)
	}

	for fi := range d.Features {
		f := &d.Features[fi]
		switch f.Type {
		case Polygon:
			if len(f.Polygons) != 1 {
				return fmt.Errorf("%w: feature %d: polygon feature has %d polygons",
					ErrMalformedBoundaryData, fi, len(f.Polygons))
			}
		case MultiPolygon:
			if len(f.Polygons) == 0 {
				return fmt.Errorf("%w: feature %d: multipolygon has no polygons", ErrMalformedBoundaryData, fi)
			}
		default:
			return fmt.Errorf("%w: feature %d: unsupported geometry type %q", ErrMalformedBoundaryData, fi, f.Type)
		}

		for pi := range f.Polygons {
			poly := &f.Polygons[pi]
			if len(poly.Rings) == 0 {
				return fmt.Errorf("%w: feature %d polygon %d: no rings", ErrMalformedBoundaryData, fi, pi)
			}
			for ri := range poly.Rings {
				if err := poly.Rings[ri].prepare(); err != nil {
					return fmt.Errorf("%w: feature %d polygon %d ring %d: %v",
						ErrMalformedBoundaryData, fi, pi, ri, err)
				}
			}
		}
	}
	return nil
}

func (r *Ring) prepare() error {
	distinct := make(map[models.Location]struct{}, len(r.Vertices))
	env := models.EmptyBox()
	for i, v := range r.Vertices {
		if err := checkVertex(v); err != nil {
			return fmt.Errorf("vertex %d: %v", i, err)
		}
		distinct[v] = struct{}{}
		env = env.Extend(v)
	}
	if len(distinct) < 3 {
		return fmt.Errorf("ring has %d distinct vertices, need at least 3", len(distinct))
	}
	r.envelope = env
	return nil
}

func checkVertex(v models.Location) error {
	if math.IsNaN(v.Lon) || math.IsInf(v.Lon, 0) || math.IsNaN(v.Lat) || math.IsInf(v.Lat, 0) {
		return errors.New("non-finite coordinate")
	}
	if v.Lon < -180 || v.Lon > 180 {
		return fmt.Errorf("longitude %f out of range", v.Lon)
	}
	if v.Lat < -90 || v.Lat > 90 {
		return fmt.Errorf("latitude %f out of range", v.Lat)
	}
	return nil
}
