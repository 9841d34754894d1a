package geo

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"

	"github.com/kass/go-geofence/pkg/models"
)

type rawGeometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

type rawFeature struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	Geometry   *rawGeometry   `json:"geometry"`
}

// rawDocument covers the three accepted roots: a FeatureCollection, a single
// Feature and a bare geometry.
type rawDocument struct {
	Type        string          `json:"type"`
	Features    []rawFeature    `json:"features"`
	Properties  map[string]any  `json:"properties"`
	Geometry    *rawGeometry    `json:"geometry"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// LoadFile reads and validates a GeoJSON boundary file
func LoadFile(filename string) (*Dataset, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read boundary file: %w", err)
	}
	d, err := ParseGeoJSON(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return d, nil
}

// ParseGeoJSON decodes a FeatureCollection, Feature or bare Polygon/MultiPolygon
// geometry and validates it. Features with geometry types other than Polygon
// and MultiPolygon are rejected.
func ParseGeoJSON(data []byte) (*Dataset, error) {
	var doc rawDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBoundaryData, err)
	}

	var raws []rawFeature
	switch {
	case doc.Type == "FeatureCollection" || doc.Features != nil:
		raws = doc.Features
	case doc.Type == "Feature":
		raws = []rawFeature{{Type: doc.Type, Properties: doc.Properties, Geometry: doc.Geometry}}
	case doc.Type == string(Polygon) || doc.Type == string(MultiPolygon):
		raws = []rawFeature{{Geometry: &rawGeometry{Type: doc.Type, Coordinates: doc.Coordinates}}}
	default:
		return nil, fmt.Errorf("%w: unsupported document type %q", ErrMalformedBoundaryData, doc.Type)
	}

	features := make([]Feature, 0, len(raws))
	for i, raw := range raws {
		f, err := decodeFeature(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: feature %d: %v", ErrMalformedBoundaryData, i, err)
		}
		features = append(features, f)
	}

	return NewDataset(features...)
}

func decodeFeature(raw rawFeature) (Feature, error) {
	if raw.Geometry == nil {
		return Feature{}, fmt.Errorf("missing geometry")
	}

	f := Feature{Type: GeometryType(raw.Geometry.Type)}
	if name, ok := raw.Properties["name"].(string); ok {
		f.Name = name
	}

	switch f.Type {
	case Polygon:
		var coords [][][]float64
		if err := json.Unmarshal(raw.Geometry.Coordinates, &coords); err != nil {
			return Feature{}, fmt.Errorf("polygon coordinates: %v", err)
		}
		poly, err := decodePoly(coords)
		if err != nil {
			return Feature{}, err
		}
		f.Polygons = []Poly{poly}

	case MultiPolygon:
		var coords [][][][]float64
		if err := json.Unmarshal(raw.Geometry.Coordinates, &coords); err != nil {
			return Feature{}, fmt.Errorf("multipolygon coordinates: %v", err)
		}
		for pi, pc := range coords {
			poly, err := decodePoly(pc)
			if err != nil {
				return Feature{}, fmt.Errorf("polygon %d: %v", pi, err)
			}
			f.Polygons = append(f.Polygons, poly)
		}

	default:
		return Feature{}, fmt.Errorf("unsupported geometry type %q", raw.Geometry.Type)
	}

	return f, nil
}

func decodePoly(coords [][][]float64) (Poly, error) {
	poly := Poly{Rings: make([]Ring, 0, len(coords))}
	for ri, rc := range coords {
		vertices := make([]models.Location, 0, len(rc))
		for vi, pos := range rc {
			// altitude, if present, is dropped
			if len(pos) < 2 {
				return Poly{}, fmt.Errorf("ring %d vertex %d: position has %d elements", ri, vi, len(pos))
			}
			vertices = append(vertices, models.Location{Lon: pos[0], Lat: pos[1]})
		}
		poly.Rings = append(poly.Rings, Ring{Vertices: vertices})
	}
	return poly, nil
}
