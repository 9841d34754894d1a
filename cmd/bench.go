package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kass/go-geofence/pkg/models"
	"github.com/kass/go-geofence/pkg/rtree"
	"github.com/kass/go-geofence/pkg/sampler"
)

type benchResult struct {
	name    string
	inside  int64
	elapsed time.Duration
}

func (a *app) benchCmd() *cobra.Command {
	var (
		n       int
		workers int
		seed    int64
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Compare linear and R-Tree containment throughput",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, box, err := a.boundary()
			if err != nil {
				return err
			}
			index, err := rtree.NewRingIndex(d)
			if err != nil {
				return err
			}
			if workers <= 0 {
				workers = runtime.NumCPU()
			}

			points := candidates(box, n, seed)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Testing %d candidates against %d rings using %d workers...\n", n, d.RingCount(), workers)

			linear, err := runContains(cmd.Context(), "linear", d, points, workers)
			if err != nil {
				return err
			}
			indexed, err := runContains(cmd.Context(), "rtree", index, points, workers)
			if err != nil {
				return err
			}

			printBench(out, n, linear, indexed)
			if linear.inside != indexed.inside {
				return fmt.Errorf("linear and rtree disagree: %d vs %d inside", linear.inside, indexed.inside)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&n, "number", "n", 1000000, "Number of candidate points")
	cmd.Flags().IntVarP(&workers, "workers", "w", runtime.NumCPU(), "Number of worker goroutines")
	cmd.Flags().Int64Var(&seed, "seed", 1, "Random seed for the candidates")
	return cmd
}

// candidates draws n uniform points from box without any containment test
func candidates(box models.BoundingBox, n int, seed int64) []models.Location {
	r := rand.New(rand.NewSource(seed))
	points := make([]models.Location, n)
	for i := range points {
		points[i] = models.Location{
			Lon: box.MinLon + r.Float64()*box.Width(),
			Lat: box.MinLat + r.Float64()*box.Height(),
		}
	}
	return points
}

func runContains(ctx context.Context, name string, c sampler.Container, points []models.Location, workers int) (benchResult, error) {
	var inside atomic.Int64
	batch := (len(points) + workers - 1) / workers
	if batch < 1 {
		batch = 1
	}

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for lo := 0; lo < len(points); lo += batch {
		hi := lo + batch
		if hi > len(points) {
			hi = len(points)
		}
		chunk := points[lo:hi]
		g.Go(func() error {
			var local int64
			for i, p := range chunk {
				if i%4096 == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				if c.Contains(p) {
					local++
				}
			}
			inside.Add(local)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return benchResult{}, err
	}

	return benchResult{name: name, inside: inside.Load(), elapsed: time.Since(start)}, nil
}

func printBench(out io.Writer, n int, results ...benchResult) {
	fmt.Fprintf(out, "\nContainment Benchmark Results:\n")
	for _, r := range results {
		rate := 0.0
		if r.elapsed > 0 {
			rate = float64(n) / r.elapsed.Seconds()
		}
		ratio := 0.0
		if n > 0 {
			ratio = float64(r.inside) / float64(n)
		}
		fmt.Fprintf(out, "%-7s %12v  %10.0f points/s  inside %d (%.1f%%)\n",
			r.name, r.elapsed, rate, r.inside, ratio*100)
	}
}
