package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kass/go-geofence/pkg/logging"
	"github.com/kass/go-geofence/pkg/models"
	"github.com/kass/go-geofence/pkg/photos"
	"github.com/kass/go-geofence/pkg/postgis"
	"github.com/kass/go-geofence/pkg/server"
)

func (a *app) serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the photo feed and sampling API over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}

			t, err := a.target()
			if err != nil {
				return err
			}

			s := a.newSampler()
			feed := a.feed(t)
			feed.Sampler = s

			srv := server.New(server.Options{
				Box:        t.box,
				Container:  t.container,
				Sampler:    s,
				Feed:       feed,
				Features:   len(t.dataset.Features),
				MaxBatch:   a.cfg.Server.MaxBatch,
				RateLimit:  a.cfg.Server.RateLimit,
				RateWindow: a.cfg.Server.RateWindow,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logging.Info().
				Int64("seed", s.Seed()).
				Int("rings", t.dataset.RingCount()).
				Bool("indexed", a.cfg.Sampler.Indexed).
				Msg("starting server")
			return srv.Run(ctx, a.cfg.Server.Addr, a.cfg.Server.ShutdownTimeout)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	return cmd
}

func (a *app) cacheCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Write the boundary to a binary .gob cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, _, err := a.boundary()
			if err != nil {
				return err
			}
			if err := d.SaveToFile(out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cached %d features (%d rings) to %s\n", len(d.Features), d.RingCount(), out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "boundary.gob", "Cache file path")
	return cmd
}

func (a *app) storeCmd() *cobra.Command {
	var n int

	cmd := &cobra.Command{
		Use:   "store",
		Short: "Sample markers and write them to PostGIS",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.target()
			if err != nil {
				return err
			}

			points, err := a.newSampler().SampleN(cmd.Context(), t.box, t.container, n, a.cfg.Sampler.Workers)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			store, err := postgis.NewMarkerStore(ctx, a.cfg.PostGIS)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.InitSchema(ctx); err != nil {
				return err
			}
			if err := store.SaveMarkers(ctx, markers(a.cfg.Photos.URLPrefix, points)); err != nil {
				return err
			}
			return reportStore(ctx, cmd, store, t)
		},
	}

	cmd.Flags().IntVarP(&n, "number", "n", 100, "Number of markers to store")
	return cmd
}

// markers names sampled points as synthetic photos
func markers(prefix string, points []models.Location) []models.Photo {
	out := make([]models.Photo, len(points))
	for i, p := range points {
		name := fmt.Sprintf("marker-%05d.jpg", i+1)
		url := prefix + name
		out[i] = models.Photo{
			ID:        photos.PhotoID(name),
			Thumbnail: url,
			FullSize:  url,
			Alt:       fmt.Sprintf("Photo %d", i+1),
			Location:  p,
		}
	}
	return out
}

func reportStore(ctx context.Context, cmd *cobra.Command, store *postgis.MarkerStore, t target) error {
	total, err := store.Count(ctx)
	if err != nil {
		return err
	}
	inside, err := store.CountInside(ctx, t.box)
	if err != nil {
		return err
	}
	within, err := store.CountWithin(ctx, t.dataset)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Stored markers: %d (%d inside the sampling box, %d within the boundary)\n", total, inside, within)
	return nil
}
