package geo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kass/go-geofence/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const collectionJSON = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"name": "mainland"},
      "geometry": {
        "type": "Polygon",
        "coordinates": [[[0, 0], [0, 1], [1, 1], [1, 0], [0, 0]]]
      }
    },
    {
      "type": "Feature",
      "properties": {},
      "geometry": {
        "type": "MultiPolygon",
        "coordinates": [
          [[[10, 10], [10, 11], [11, 11], [11, 10]]],
          [[[20, 20, 5], [20, 21, 5], [21, 21, 5], [21, 20, 5]]]
        ]
      }
    }
  ]
}`

func TestParseGeoJSONCollection(t *testing.T) {
	d, err := ParseGeoJSON([]byte(collectionJSON))
	require.NoError(t, err)

	require.Len(t, d.Features, 2)
	assert.Equal(t, "mainland", d.Features[0].Name)
	assert.Equal(t, Polygon, d.Features[0].Type)
	assert.Equal(t, MultiPolygon, d.Features[1].Type)
	assert.Len(t, d.Features[1].Polygons, 2)
	assert.Equal(t, 3, d.RingCount())

	assert.True(t, d.Contains(models.Location{Lon: 0.5, Lat: 0.5}))
	assert.True(t, d.Contains(models.Location{Lon: 20.5, Lat: 20.5}), "altitude element is dropped")
	assert.False(t, d.Contains(models.Location{Lon: 15, Lat: 15}))
}

func TestParseGeoJSONSingleFeature(t *testing.T) {
	doc := `{"type": "Feature", "properties": {"name": "solo"},
		"geometry": {"type": "Polygon", "coordinates": [[[0, 0], [0, 2], [2, 2], [2, 0]]]}}`

	d, err := ParseGeoJSON([]byte(doc))
	require.NoError(t, err)
	require.Len(t, d.Features, 1)
	assert.Equal(t, "solo", d.Features[0].Name)
	assert.True(t, d.Contains(models.Location{Lon: 1, Lat: 1}))
}

func TestParseGeoJSONBareGeometry(t *testing.T) {
	doc := `{"type": "MultiPolygon", "coordinates": [[[[0, 0], [0, 2], [2, 2], [2, 0]]]]}`

	d, err := ParseGeoJSON([]byte(doc))
	require.NoError(t, err)
	assert.True(t, d.Contains(models.Location{Lon: 1, Lat: 1}))
}

func TestParseGeoJSONMalformed(t *testing.T) {
	testCases := []struct {
		name string
		doc  string
	}{
		{"not json", `{`},
		{"unknown root", `{"type": "Topology"}`},
		{"empty collection", `{"type": "FeatureCollection", "features": []}`},
		{"missing geometry", `{"type": "FeatureCollection", "features": [{"type": "Feature"}]}`},
		{"line string", `{"type": "FeatureCollection", "features": [{"geometry": {"type": "LineString", "coordinates": [[0, 0], [1, 1]]}}]}`},
		{"string coordinate", `{"type": "Polygon", "coordinates": [[["a", 0], [0, 1], [1, 1]]]}`},
		{"short position", `{"type": "Polygon", "coordinates": [[[0], [0, 1], [1, 1]]]}`},
		{"too few vertices", `{"type": "Polygon", "coordinates": [[[0, 0], [0, 1], [0, 0]]]}`},
		{"no rings", `{"type": "Polygon", "coordinates": []}`},
		{"latitude out of range", `{"type": "Polygon", "coordinates": [[[0, 0], [0, 91], [1, 1]]]}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseGeoJSON([]byte(tc.doc))
			assert.ErrorIs(t, err, ErrMalformedBoundaryData)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boundary.geojson")
	require.NoError(t, os.WriteFile(path, []byte(collectionJSON), 0o644))

	d, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, d.RingCount())

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.geojson"))
	assert.Error(t, err)
}
