package main

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/kass/go-geofence/pkg/logging"
	"github.com/kass/go-geofence/pkg/models"
	"github.com/kass/go-geofence/pkg/photos"
)

func (a *app) sampleCmd() *cobra.Command {
	var (
		n       int
		seed    int64
		workers int
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Print random locations inside the boundary",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("seed") {
				a.cfg.Sampler.Seed = seed
			}
			if cmd.Flags().Changed("workers") {
				a.cfg.Sampler.Workers = workers
			}

			t, err := a.target()
			if err != nil {
				return err
			}

			s := a.newSampler()
			start := time.Now()
			points, err := s.SampleN(cmd.Context(), t.box, t.container, n, a.cfg.Sampler.Workers)
			if err != nil {
				return err
			}
			logging.Debug().
				Int("points", len(points)).
				Int64("seed", s.Seed()).
				Dur("elapsed", time.Since(start)).
				Msg("sampled")

			out := cmd.OutOrStdout()
			if asJSON {
				return json.NewEncoder(out).Encode(points)
			}
			for _, p := range points {
				fmt.Fprintln(out, p)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&n, "number", "n", 1, "Number of locations to draw")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed (0 seeds from the clock)")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Number of worker goroutines (default from config, 0 uses one per CPU)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print a JSON array")
	return cmd
}

func (a *app) containsCmd() *cobra.Command {
	var lat, lon float64

	cmd := &cobra.Command{
		Use:   "contains",
		Short: "Report whether a location is inside the boundary",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.target()
			if err != nil {
				return err
			}

			p := models.Location{Lat: lat, Lon: lon}
			verdict := "outside"
			if t.container.Contains(p) {
				verdict = "inside"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", p, verdict)
			return nil
		},
	}

	cmd.Flags().Float64Var(&lat, "lat", 0, "Latitude in degrees")
	cmd.Flags().Float64Var(&lon, "lon", 0, "Longitude in degrees")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lon")
	return cmd
}

func (a *app) photosCmd() *cobra.Command {
	var dir, prefix string

	cmd := &cobra.Command{
		Use:   "photos",
		Short: "Print the photo feed as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir != "" {
				a.cfg.Photos.Dir = dir
			}
			if prefix != "" {
				a.cfg.Photos.URLPrefix = prefix
			}

			t, err := a.target()
			if err != nil {
				return err
			}

			feed := a.feed(t)
			result, err := feed.Build(cmd.Context())
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Photo directory (default from config)")
	cmd.Flags().StringVar(&prefix, "prefix", "", "URL prefix prepended to file names")
	return cmd
}

func (a *app) feed(t target) *photos.Feed {
	return &photos.Feed{
		Dir:       a.cfg.Photos.Dir,
		URLPrefix: a.cfg.Photos.URLPrefix,
		Box:       t.box,
		Container: t.container,
		Sampler:   a.newSampler(),
	}
}
