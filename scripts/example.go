package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kass/go-geofence/pkg/boundaries"
	"github.com/kass/go-geofence/pkg/geo"
	"github.com/kass/go-geofence/pkg/logging"
	"github.com/kass/go-geofence/pkg/models"
	"github.com/kass/go-geofence/pkg/rtree"
	"github.com/kass/go-geofence/pkg/sampler"
)

// A small custom boundary: a triangle around Sydney with Botany Bay cut out.
// Holes are parsed but sampling tests only the outer ring.
const sydneyGeoJSON = `{
  "type": "Feature",
  "properties": {"name": "Sydney triangle"},
  "geometry": {
    "type": "Polygon",
    "coordinates": [
      [[150.6, -34.2], [151.4, -34.2], [151.0, -33.5], [150.6, -34.2]],
      [[151.15, -34.05], [151.25, -34.05], [151.2, -33.95], [151.15, -34.05]]
    ]
  }
}`

func main() {
	logging.Init(logging.Config{Format: "console"})

	australia, err := boundaries.Australia()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load boundary")
	}
	index, err := rtree.NewRingIndex(australia)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to index boundary")
	}
	fmt.Printf("Indexed %d rings\n\n", index.Count())

	// Example 1: which places are on land
	fmt.Println("=== Containment ===")
	places := []struct {
		name string
		loc  models.Location
	}{
		{"Alice Springs", models.Location{Lat: -23.70, Lon: 133.87}},
		{"Hobart", models.Location{Lat: -42.88, Lon: 147.32}},
		{"Coral Sea", models.Location{Lat: -15.0, Lon: 152.0}},
		{"Bass Strait", models.Location{Lat: -39.8, Lon: 146.0}},
	}
	for _, p := range places {
		fmt.Printf("  - %-14s %s inside=%v\n", p.name, p.loc, index.Contains(p.loc))
	}

	// Example 2: a few seeded samples
	fmt.Println("\n=== Seeded samples ===")
	s := sampler.New(sampler.WithSeed(2024))
	for i := 0; i < 5; i++ {
		p, attempts, err := s.SampleWithStats(boundaries.AustraliaBox, index)
		if err != nil {
			logging.Fatal().Err(err).Msg("sampling failed")
		}
		fmt.Printf("  %d. %s after %d draws\n", i+1, p, attempts)
	}

	// Example 3: parallel batch
	fmt.Println("\n=== Parallel batch ===")
	batch, err := s.SampleN(context.Background(), boundaries.AustraliaBox, index, 10000, 0)
	if err != nil {
		logging.Fatal().Err(err).Msg("batch sampling failed")
	}
	fmt.Printf("Sampled %d points\n", len(batch))

	// Example 4: custom boundary from GeoJSON
	fmt.Println("\n=== Custom boundary ===")
	sydney, err := geo.ParseGeoJSON([]byte(sydneyGeoJSON))
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to parse GeoJSON")
	}
	p, err := s.Sample(sydney.Bounds(), sydney)
	if err != nil {
		logging.Fatal().Err(err).Msg("sampling failed")
	}
	fmt.Printf("Random point near Sydney: %s\n", p)

	// Example 5: gob cache round trip
	fmt.Println("\n=== Cache ===")
	cache := filepath.Join(os.TempDir(), "australia.gob")
	if err := australia.SaveToFile(cache); err != nil {
		logging.Fatal().Err(err).Msg("failed to save cache")
	}
	loaded, err := geo.Load(cache)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load cache")
	}
	fmt.Printf("Reloaded %d rings from %s\n", loaded.RingCount(), cache)
}
