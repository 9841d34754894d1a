package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kass/go-geofence/pkg/boundaries"
	"github.com/kass/go-geofence/pkg/geo"
	"github.com/kass/go-geofence/pkg/models"
	"github.com/kass/go-geofence/pkg/sampler"
)

func australia(t *testing.T) *geo.Dataset {
	t.Helper()
	d, err := boundaries.Australia()
	require.NoError(t, err)
	return d
}

func TestRunReportsProgress(t *testing.T) {
	d := australia(t)
	var reports []progressReport

	final, err := run(context.Background(), 1000, boundaries.AustraliaBox, d, sampler.New(sampler.WithSeed(2)), func(r progressReport) {
		reports = append(reports, r)
	})
	require.NoError(t, err)

	assert.Equal(t, 1000, final.accepted)
	assert.GreaterOrEqual(t, final.attempts, final.accepted)
	assert.Len(t, reports, 1000/reportEvery)
	assert.Equal(t, 1000, reports[len(reports)-1].accepted)

	cells := 0
	for _, row := range final.grid {
		for _, v := range row {
			cells += v
		}
	}
	assert.Equal(t, 1000, cells, "every accepted point lands in a cell")

	// land covers roughly half the box
	assert.InDelta(t, 0.5, final.ratio(), 0.15)
}

func TestRunStopsOnError(t *testing.T) {
	nowhere, err := geo.NewDataset(geo.NewPolygon("elsewhere", []models.Location{
		{Lon: 0, Lat: 0}, {Lon: 0, Lat: 1}, {Lon: 1, Lat: 1},
	}))
	require.NoError(t, err)

	final, err := run(context.Background(), 10, boundaries.AustraliaBox, nowhere, sampler.New(sampler.WithSeed(1), sampler.WithMaxAttempts(5)), nil)
	assert.ErrorIs(t, err, sampler.ErrSamplingExhausted)
	assert.Equal(t, 0, final.accepted)
	assert.Equal(t, 5, final.attempts)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = run(ctx, 10, boundaries.AustraliaBox, australia(t), sampler.New(sampler.WithSeed(1)), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDensityRender(t *testing.T) {
	box := models.BoundingBox{MinLon: 0, MaxLon: 1, MinLat: 0, MaxLat: 1}
	var g density
	g.add(box, models.Location{Lon: 0, Lat: 1})
	g.add(box, models.Location{Lon: 1, Lat: 0})
	g.add(box, models.Location{Lon: 1, Lat: 0})
	g.add(box, models.Location{Lon: 5, Lat: -5})
	g.add(box, models.Location{Lon: 1.5, Lat: 0.5})
	g.add(box, models.Location{Lon: 0.5, Lat: -0.1})

	assert.Equal(t, 1, g[0][0])
	assert.Equal(t, 2, g[gridRows-1][gridCols-1], "points outside the box are not counted")

	total := 0
	for _, row := range g {
		for _, v := range row {
			total += v
		}
	}
	assert.Equal(t, 3, total)

	lines := strings.Split(g.render(), "\n")
	require.Len(t, lines, gridRows)
	for _, line := range lines {
		assert.Len(t, line, gridCols)
	}
	assert.Equal(t, byte('@'), lines[gridRows-1][gridCols-1])
	assert.NotEqual(t, byte(' '), lines[0][0])
}

func TestModelUpdate(t *testing.T) {
	m := initialModel(100)

	next, _ := m.Update(progressReport{accepted: 50, attempts: 90, total: 100})
	m = next.(model)
	assert.Equal(t, 50, m.report.accepted)
	assert.False(t, m.done)
	assert.Contains(t, m.View(), "50/100")

	next, cmd := m.Update(doneMsg{report: progressReport{accepted: 100, attempts: 190, total: 100}})
	m = next.(model)
	assert.True(t, m.done)
	assert.NotNil(t, cmd)
	assert.Contains(t, m.View(), "Placed 100 points")

	next, _ = m.Update(doneMsg{err: errors.New("boom")})
	assert.Contains(t, next.(model).View(), "boom")
}

func TestRunPlain(t *testing.T) {
	var out bytes.Buffer
	err := runPlain(context.Background(), &out, 500, boundaries.AustraliaBox, australia(t), sampler.New(sampler.WithSeed(4)))
	require.NoError(t, err)
	assert.Contains(t, out.String(), "500/500 accepted")
	assert.Contains(t, out.String(), "Placed 500 points")
}
