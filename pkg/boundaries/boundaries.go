// Package boundaries ships the reference boundary the photo map scatters
// markers over: a simplified outline of Australia (mainland, Tasmania and
// Kangaroo Island) together with its sampling envelope.
package boundaries

import (
	_ "embed"
	"sync"

	"github.com/kass/go-geofence/pkg/geo"
	"github.com/kass/go-geofence/pkg/models"
)

// AustraliaBox is the envelope candidates are drawn from
var AustraliaBox = models.BoundingBox{
	MinLon: 113.15957061,
	MaxLon: 153.61194445,
	MinLat: -43.6345972634,
	MaxLat: -10.6681857235,
}

//go:embed australia.geojson
var australiaGeoJSON []byte

var (
	australiaOnce sync.Once
	australia     *geo.Dataset
	australiaErr  error
)

// Australia parses the embedded boundary on first use and returns the same
// dataset to every caller
func Australia() (*geo.Dataset, error) {
	australiaOnce.Do(func() {
		australia, australiaErr = geo.ParseGeoJSON(australiaGeoJSON)
	})
	return australia, australiaErr
}

// AustraliaGeoJSON returns a copy of the embedded GeoJSON document
func AustraliaGeoJSON() []byte {
	out := make([]byte, len(australiaGeoJSON))
	copy(out, australiaGeoJSON)
	return out
}
