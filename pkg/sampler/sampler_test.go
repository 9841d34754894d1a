package sampler

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/kass/go-geofence/pkg/geo"
	"github.com/kass/go-geofence/pkg/models"
	"github.com/kass/go-geofence/pkg/rtree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var unitBox = models.BoundingBox{MinLon: 0, MaxLon: 10, MinLat: 0, MaxLat: 10}

func square(lon, lat, size float64) []models.Location {
	return []models.Location{
		{Lon: lon, Lat: lat},
		{Lon: lon, Lat: lat + size},
		{Lon: lon + size, Lat: lat + size},
		{Lon: lon + size, Lat: lat},
	}
}

func dataset(t testing.TB, features ...geo.Feature) *geo.Dataset {
	d, err := geo.NewDataset(features...)
	require.NoError(t, err)
	return d
}

func TestSampleLandsInside(t *testing.T) {
	d := dataset(t, geo.NewMultiPolygon("islands", square(1, 1, 2), square(6, 6, 3)))
	s := New(WithSeed(1))

	for i := 0; i < 1000; i++ {
		p, err := s.Sample(unitBox, d)
		require.NoError(t, err)
		assert.True(t, d.Contains(p), "sample %d at %v", i, p)
		assert.True(t, unitBox.Contains(p))
	}
}

func TestSampleGuaranteeOnSparseBoundary(t *testing.T) {
	// 1 x 1 square in a 10 x 10 box covers 1% of the envelope
	d := dataset(t, geo.NewPolygon("speck", square(4, 4, 1)))

	for seed := int64(0); seed < 20; seed++ {
		s := New(WithSeed(seed), WithMaxAttempts(100000))
		for i := 0; i < 10; i++ {
			p, attempts, err := s.SampleWithStats(unitBox, d)
			require.NoError(t, err, "seed %d", seed)
			assert.True(t, d.Contains(p))
			assert.GreaterOrEqual(t, attempts, 1)
			assert.LessOrEqual(t, attempts, 100000)
		}
	}
}

func TestSampleMeanAttempts(t *testing.T) {
	// quarter of the box: expected attempts 1/A = 4
	const (
		n    = 10000
		area = 0.25
	)
	d := dataset(t, geo.NewPolygon("quarter", square(0, 0, 5)))
	s := New(WithSeed(42))

	total := 0
	for i := 0; i < n; i++ {
		_, attempts, err := s.SampleWithStats(unitBox, d)
		require.NoError(t, err)
		total += attempts
	}

	mean := float64(total) / n
	expected := 1 / area
	// attempts are geometric with variance (1-p)/p^2
	stdErr := math.Sqrt((1-area)/(area*area)) / math.Sqrt(n)
	assert.InDelta(t, expected, mean, 4*stdErr, "mean attempts %.3f", mean)
}

func TestSampleDeterministicWithSeed(t *testing.T) {
	d := dataset(t, geo.NewMultiPolygon("islands", square(1, 1, 2), square(6, 6, 3)))

	run := func(seed int64) []models.Location {
		s := New(WithSeed(seed))
		out := make([]models.Location, 0, 100)
		for i := 0; i < 100; i++ {
			p, err := s.Sample(unitBox, d)
			require.NoError(t, err)
			out = append(out, p)
		}
		return out
	}

	assert.Equal(t, run(7), run(7))
	assert.NotEqual(t, run(7), run(8))
}

func TestSampleExhausted(t *testing.T) {
	// boundary entirely outside the box
	d := dataset(t, geo.NewPolygon("elsewhere", square(50, 50, 1)))

	var observed []int
	var exhaustedSeen bool
	s := New(WithSeed(3), WithMaxAttempts(50), WithObserver(func(attempts int, exhausted bool) {
		observed = append(observed, attempts)
		exhaustedSeen = exhausted
	}))

	_, attempts, err := s.SampleWithStats(unitBox, d)
	assert.ErrorIs(t, err, ErrSamplingExhausted)
	assert.Equal(t, 50, attempts)
	assert.Equal(t, []int{50}, observed)
	assert.True(t, exhaustedSeen)
}

func TestSampleInvalidBox(t *testing.T) {
	d := dataset(t, geo.NewPolygon("unit", square(0, 0, 1)))
	s := New(WithSeed(1))

	_, err := s.Sample(models.BoundingBox{MinLon: 1, MaxLon: 0, MinLat: 0, MaxLat: 1}, d)
	assert.ErrorIs(t, err, models.ErrInvalidBoundingBox)
}

func TestDefaults(t *testing.T) {
	s := New(WithMaxAttempts(0))
	assert.Equal(t, DefaultMaxAttempts, s.MaxAttempts())

	s = New(WithSeed(99), WithMaxAttempts(12))
	assert.Equal(t, int64(99), s.Seed())
	assert.Equal(t, 12, s.MaxAttempts())
}

func TestSampleWithRingIndex(t *testing.T) {
	d := dataset(t, geo.NewMultiPolygon("islands", square(1, 1, 2), square(6, 6, 3)))
	index, err := rtree.NewRingIndex(d)
	require.NoError(t, err)

	linear := New(WithSeed(5))
	indexed := New(WithSeed(5))
	for i := 0; i < 200; i++ {
		a, err := linear.Sample(unitBox, d)
		require.NoError(t, err)
		b, err := indexed.Sample(unitBox, index)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	}
}

func TestSampleN(t *testing.T) {
	d := dataset(t, geo.NewMultiPolygon("islands", square(1, 1, 2), square(6, 6, 3)))

	testCases := []struct {
		name    string
		n       int
		workers int
	}{
		{"single worker", 50, 1},
		{"uneven split", 101, 4},
		{"more workers than points", 3, 8},
		{"cpu default", 64, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := New(WithSeed(21))
			points, err := s.SampleN(context.Background(), unitBox, d, tc.n, tc.workers)
			require.NoError(t, err)
			require.Len(t, points, tc.n)
			for _, p := range points {
				assert.True(t, d.Contains(p))
			}
		})
	}
}

func TestSampleNDeterministic(t *testing.T) {
	d := dataset(t, geo.NewPolygon("quarter", square(0, 0, 5)))

	a, err := New(WithSeed(13)).SampleN(context.Background(), unitBox, d, 500, 4)
	require.NoError(t, err)
	b, err := New(WithSeed(13)).SampleN(context.Background(), unitBox, d, 500, 4)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestSampleNSingleWorkerMatchesSequential(t *testing.T) {
	d := dataset(t, geo.NewPolygon("quarter", square(0, 0, 5)))

	batch, err := New(WithSeed(17)).SampleN(context.Background(), unitBox, d, 20, 1)
	require.NoError(t, err)

	s := New(WithSeed(17))
	for i, want := range batch {
		got, err := s.Sample(unitBox, d)
		require.NoError(t, err)
		assert.Equal(t, want, got, "sample %d", i)
	}
}

func TestSampleNEdgeCases(t *testing.T) {
	d := dataset(t, geo.NewPolygon("elsewhere", square(50, 50, 1)))
	s := New(WithSeed(1), WithMaxAttempts(10))

	points, err := s.SampleN(context.Background(), unitBox, d, 0, 4)
	require.NoError(t, err)
	assert.Empty(t, points)

	_, err = s.SampleN(context.Background(), unitBox, d, 10, 2)
	assert.ErrorIs(t, err, ErrSamplingExhausted)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = New(WithSeed(1)).SampleN(ctx, unitBox, dataset(t, geo.NewPolygon("unit", square(0, 0, 5))), 10, 2)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConcurrentSample(t *testing.T) {
	d := dataset(t, geo.NewPolygon("quarter", square(0, 0, 5)))

	var samples atomic.Int64
	s := New(WithSeed(1), WithObserver(func(int, bool) { samples.Add(1) }))

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				p, err := s.Sample(unitBox, d)
				assert.NoError(t, err)
				assert.True(t, d.Contains(p))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(4000), samples.Load())
}

func BenchmarkSample(b *testing.B) {
	d := dataset(b, geo.NewMultiPolygon("islands", square(1, 1, 2), square(6, 6, 3)))
	s := New(WithSeed(1))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = s.Sample(unitBox, d)
	}
}
