// Package postgis persists sampled photo markers to a PostGIS table so that
// the in-process containment results can be cross-checked with ST_Contains
// against the same boundary rings.
package postgis

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/kass/go-geofence/pkg/config"
	"github.com/kass/go-geofence/pkg/geo"
	"github.com/kass/go-geofence/pkg/logging"
	"github.com/kass/go-geofence/pkg/models"
)

const batchSize = 1000

// MarkerStore writes photo markers to the photo_markers table
type MarkerStore struct {
	db *sql.DB
}

// DSN builds a lib/pq connection string from cfg
func DSN(cfg config.PostGISConfig) string {
	parts := []string{
		"host=" + quote(cfg.Host),
		fmt.Sprintf("port=%d", cfg.Port),
		"dbname=" + quote(cfg.Database),
	}
	if cfg.User != "" {
		parts = append(parts, "user="+quote(cfg.User))
	}
	if cfg.Password != "" {
		parts = append(parts, "password="+quote(cfg.Password))
	}
	sslmode := cfg.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	parts = append(parts, "sslmode="+sslmode)
	return strings.Join(parts, " ")
}

// quote escapes a keyword/value connection parameter
func quote(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// NewMarkerStore opens and pings the database
func NewMarkerStore(ctx context.Context, cfg config.PostGISConfig) (*MarkerStore, error) {
	db, err := sql.Open("postgres", DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conns := cfg.MaxConnections
	if conns <= 0 {
		conns = 25
	}
	db.SetMaxOpenConns(conns)
	db.SetMaxIdleConns(conns)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &MarkerStore{db: db}, nil
}

// InitSchema creates the extension, the table and its GIST index
func (s *MarkerStore) InitSchema(ctx context.Context) error {
	queries := []string{
		`CREATE EXTENSION IF NOT EXISTS postgis;`,
		`CREATE TABLE IF NOT EXISTS photo_markers (
			id TEXT PRIMARY KEY,
			url TEXT NOT NULL,
			alt TEXT NOT NULL,
			location GEOMETRY(POINT, 4326) NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_photo_markers_location ON photo_markers USING GIST(location);`,
	}

	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query '%s': %w", query, err)
		}
	}
	return nil
}

// SaveMarkers upserts photos in batched transactions
func (s *MarkerStore) SaveMarkers(ctx context.Context, photos []models.Photo) error {
	start := time.Now()

	for lo := 0; lo < len(photos); lo += batchSize {
		hi := lo + batchSize
		if hi > len(photos) {
			hi = len(photos)
		}
		if err := s.saveBatch(ctx, photos[lo:hi]); err != nil {
			return err
		}
	}

	logging.Info().
		Int("markers", len(photos)).
		Dur("elapsed", time.Since(start)).
		Msg("saved markers")
	return nil
}

func (s *MarkerStore) saveBatch(ctx context.Context, batch []models.Photo) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO photo_markers (id, url, alt, location)
		VALUES ($1, $2, $3, ST_SetSRID(ST_MakePoint($4, $5), 4326))
		ON CONFLICT (id) DO UPDATE SET location = EXCLUDED.location, alt = EXCLUDED.alt
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, p := range batch {
		if _, err := stmt.ExecContext(ctx, p.ID, p.FullSize, p.Alt, p.Lon, p.Lat); err != nil {
			return fmt.Errorf("failed to insert marker %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

// CountInside counts markers whose location falls inside box
func (s *MarkerStore) CountInside(ctx context.Context, box models.BoundingBox) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM photo_markers
		WHERE location && ST_MakeEnvelope($1, $2, $3, $4, 4326)
	`, box.MinLon, box.MinLat, box.MaxLon, box.MaxLat).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count markers: %w", err)
	}
	return count, nil
}

// CountWithin counts markers that PostGIS places strictly inside one of the
// dataset's outer rings. Holes are ignored, as in geo.Contains.
func (s *MarkerStore) CountWithin(ctx context.Context, d *geo.Dataset) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM photo_markers
		WHERE ST_Contains(ST_GeomFromText($1, 4326), location)
	`, MultiPolygonWKT(d)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count markers within boundary: %w", err)
	}
	return count, nil
}

// MultiPolygonWKT renders the dataset's outer rings as a WKT MULTIPOLYGON,
// closing any ring whose last vertex does not repeat the first
func MultiPolygonWKT(d *geo.Dataset) string {
	var b strings.Builder
	b.WriteString("MULTIPOLYGON(")
	for i, ring := range d.OuterRings() {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("((")
		vs := ring.Vertices
		for j, v := range vs {
			if j > 0 {
				b.WriteString(",")
			}
			fmt.Fprintf(&b, "%s %s", wktFloat(v.Lon), wktFloat(v.Lat))
		}
		if first, last := vs[0], vs[len(vs)-1]; first != last {
			fmt.Fprintf(&b, ",%s %s", wktFloat(first.Lon), wktFloat(first.Lat))
		}
		b.WriteString("))")
	}
	b.WriteString(")")
	return b.String()
}

func wktFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Count returns the number of stored markers
func (s *MarkerStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM photo_markers").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count markers: %w", err)
	}
	return count, nil
}

// Close closes the database connection
func (s *MarkerStore) Close() error {
	return s.db.Close()
}
