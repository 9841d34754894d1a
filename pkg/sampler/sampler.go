// Package sampler draws uniformly distributed random locations inside a
// boundary by rejection sampling against a bounding box.
//
// Candidates are drawn uniformly from [MinLon, MaxLon) x [MinLat, MaxLat) and
// discarded until one passes the containment test. The expected number of
// draws per sample is boxArea / landArea, so a sampler gives up with
// ErrSamplingExhausted after MaxAttempts rejected candidates instead of
// looping forever on a sparse or misplaced boundary.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kass/go-geofence/pkg/models"
)

// DefaultMaxAttempts bounds the candidates drawn for a single sample
const DefaultMaxAttempts = 10000

// ErrSamplingExhausted is returned when no candidate landed inside the
// boundary within the attempt cap
var ErrSamplingExhausted = errors.New("sampling exhausted")

// Container is the containment predicate candidates are tested against.
// Both *geo.Dataset and *rtree.RingIndex satisfy it.
type Container interface {
	Contains(p models.Location) bool
}

// Observer is told how many candidates each Sample call drew and whether it
// gave up
type Observer func(attempts int, exhausted bool)

// Sampler draws random locations. One Sampler may be shared by goroutines;
// its random source is guarded by a mutex. Output is reproducible only when
// a seeded Sampler is driven from a single goroutine in a fixed call order.
type Sampler struct {
	mu          sync.Mutex
	rng         *rand.Rand
	seed        int64
	maxAttempts int
	observer    Observer
}

// Option configures a Sampler
type Option func(*Sampler)

// WithSeed makes the sampler deterministic
func WithSeed(seed int64) Option {
	return func(s *Sampler) {
		s.seed = seed
	}
}

// WithMaxAttempts sets the attempt cap. Values <= 0 keep DefaultMaxAttempts.
func WithMaxAttempts(n int) Option {
	return func(s *Sampler) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithObserver registers a callback run after every Sample call
func WithObserver(o Observer) Option {
	return func(s *Sampler) {
		s.observer = o
	}
}

// New creates a sampler. Without WithSeed it is seeded from the clock.
func New(opts ...Option) *Sampler {
	s := &Sampler{
		seed:        time.Now().UnixNano(),
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.rng = rand.New(rand.NewSource(s.seed))
	return s
}

// Seed returns the seed the sampler was built with
func (s *Sampler) Seed() int64 {
	return s.seed
}

// MaxAttempts returns the attempt cap
func (s *Sampler) MaxAttempts() int {
	return s.maxAttempts
}

// Sample returns a random location inside c. The result always satisfies
// c.Contains.
func (s *Sampler) Sample(box models.BoundingBox, c Container) (models.Location, error) {
	p, _, err := s.SampleWithStats(box, c)
	return p, err
}

// SampleWithStats is Sample that also reports how many candidates were
// drawn, the accepted one included
func (s *Sampler) SampleWithStats(box models.BoundingBox, c Container) (models.Location, int, error) {
	if err := box.Validate(); err != nil {
		return models.Location{}, 0, err
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		p := s.draw(box)
		if c.Contains(p) {
			s.observe(attempt, false)
			return p, attempt, nil
		}
	}

	s.observe(s.maxAttempts, true)
	return models.Location{}, s.maxAttempts, fmt.Errorf("%w after %d attempts", ErrSamplingExhausted, s.maxAttempts)
}

// draw picks longitude then latitude, each uniform over the half-open range
func (s *Sampler) draw(box models.BoundingBox) models.Location {
	s.mu.Lock()
	defer s.mu.Unlock()

	lon := box.MinLon + s.rng.Float64()*(box.MaxLon-box.MinLon)
	lat := box.MinLat + s.rng.Float64()*(box.MaxLat-box.MinLat)
	return models.Location{Lat: lat, Lon: lon}
}

func (s *Sampler) observe(attempts int, exhausted bool) {
	if s.observer != nil {
		s.observer(attempts, exhausted)
	}
}

// SampleN draws n locations with a pool of workers. Worker w owns a source
// seeded with Seed()+w and fills a fixed contiguous slice of the result, so
// the output depends only on the seed and the worker count. Values of
// workers <= 0 use one worker per CPU.
func (s *Sampler) SampleN(ctx context.Context, box models.BoundingBox, c Container, n, workers int) ([]models.Location, error) {
	if n <= 0 {
		return []models.Location{}, nil
	}
	if err := box.Validate(); err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > n {
		workers = n
	}

	points := make([]models.Location, n)
	perWorker := n / workers
	remainder := n % workers

	g, ctx := errgroup.WithContext(ctx)
	start := 0
	for w := 0; w < workers; w++ {
		size := perWorker
		if w < remainder {
			size++
		}
		lo, hi := start, start+size
		start = hi

		worker := New(
			WithSeed(s.seed+int64(w)),
			WithMaxAttempts(s.maxAttempts),
			WithObserver(s.observer),
		)
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				p, err := worker.Sample(box, c)
				if err != nil {
					return fmt.Errorf("sample %d: %w", i, err)
				}
				points[i] = p
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return points, nil
}
