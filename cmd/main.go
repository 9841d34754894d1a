package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kass/go-geofence/pkg/boundaries"
	"github.com/kass/go-geofence/pkg/config"
	"github.com/kass/go-geofence/pkg/geo"
	"github.com/kass/go-geofence/pkg/logging"
	"github.com/kass/go-geofence/pkg/metrics"
	"github.com/kass/go-geofence/pkg/models"
	"github.com/kass/go-geofence/pkg/rtree"
	"github.com/kass/go-geofence/pkg/sampler"
)

// app carries the state shared by every subcommand
type app struct {
	configPath   string
	boundaryPath string
	verbose      bool

	cfg config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "geofence",
		Short: "Random coordinates inside a geographic boundary",
		Long: `Rejection-samples uniformly distributed coordinates inside a polygon
boundary (the embedded Australia outline by default) and serves them as a
photo marker feed.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVarP(&a.boundaryPath, "boundary", "b", "", "GeoJSON or .gob boundary file (default: embedded Australia)")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(
		a.sampleCmd(),
		a.containsCmd(),
		a.photosCmd(),
		a.serveCmd(),
		a.cacheCmd(),
		a.benchCmd(),
		a.storeCmd(),
	)
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *app) setup() error {
	cfg := config.Default()
	if a.configPath != "" {
		var err error
		if cfg, err = config.Load(a.configPath); err != nil {
			return err
		}
	}
	if a.boundaryPath != "" {
		cfg.Boundary.File = a.boundaryPath
	}

	level := cfg.Log.Level
	if a.verbose {
		level = "debug"
	}
	logging.Init(logging.Config{Level: level, Format: cfg.Log.Format})

	a.cfg = cfg
	return nil
}

// boundary loads the configured dataset and the box candidates are drawn from
func (a *app) boundary() (*geo.Dataset, models.BoundingBox, error) {
	if a.cfg.Boundary.File == "" {
		d, err := boundaries.Australia()
		return d, boundaries.AustraliaBox, err
	}

	d, err := geo.Load(a.cfg.Boundary.File)
	if err != nil {
		return nil, models.BoundingBox{}, fmt.Errorf("failed to load boundary %s: %w", a.cfg.Boundary.File, err)
	}
	logging.Debug().
		Str("file", a.cfg.Boundary.File).
		Int("features", len(d.Features)).
		Int("rings", d.RingCount()).
		Msg("boundary loaded")
	return d, d.Bounds(), nil
}

// container picks the containment predicate per sampler.indexed
func (a *app) container(d *geo.Dataset) (sampler.Container, error) {
	if !a.cfg.Sampler.Indexed {
		return d, nil
	}
	return rtree.NewRingIndex(d)
}

func (a *app) newSampler() *sampler.Sampler {
	opts := []sampler.Option{
		sampler.WithMaxAttempts(a.cfg.Sampler.MaxAttempts),
		sampler.WithObserver(metrics.ObserveSample),
	}
	if a.cfg.Sampler.Seed != 0 {
		opts = append(opts, sampler.WithSeed(a.cfg.Sampler.Seed))
	}
	return sampler.New(opts...)
}

// target bundles everything a sampling subcommand needs
type target struct {
	dataset   *geo.Dataset
	box       models.BoundingBox
	container sampler.Container
}

func (a *app) target() (target, error) {
	d, box, err := a.boundary()
	if err != nil {
		return target{}, err
	}
	c, err := a.container(d)
	if err != nil {
		return target{}, err
	}
	return target{dataset: d, box: box, container: c}, nil
}
