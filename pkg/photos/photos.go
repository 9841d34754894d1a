// Package photos builds the photo feed shown on the discovery map: one marker
// per image file, each pinned to a random location inside the boundary.
package photos

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/kass/go-geofence/pkg/models"
	"github.com/kass/go-geofence/pkg/sampler"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".gif":  true,
}

// Feed lists Dir and places every image it finds
type Feed struct {
	Dir       string
	URLPrefix string
	Box       models.BoundingBox
	Container sampler.Container
	Sampler   *sampler.Sampler
}

// Images returns the image file names in Dir, sorted by name. Hidden files,
// directories and unknown extensions are skipped.
func (f *Feed) Images() ([]string, error) {
	entries, err := os.ReadDir(f.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read photo directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if !imageExtensions[strings.ToLower(path.Ext(name))] {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// Build returns one photo per image. A sampling failure aborts the whole feed.
func (f *Feed) Build(ctx context.Context) ([]models.Photo, error) {
	names, err := f.Images()
	if err != nil {
		return nil, err
	}

	photos := make([]models.Photo, 0, len(names))
	for i, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		loc, err := f.Sampler.Sample(f.Box, f.Container)
		if err != nil {
			return nil, fmt.Errorf("failed to place %s: %w", name, err)
		}

		url := f.URLPrefix + name
		photos = append(photos, models.Photo{
			ID:        PhotoID(name),
			Thumbnail: url,
			FullSize:  url,
			Alt:       fmt.Sprintf("Photo %d", i+1),
			Location:  loc,
		})
	}
	return photos, nil
}

// PhotoID derives a stable identifier from the image file name, independent
// of the URL prefix it is served under
func PhotoID(name string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}
