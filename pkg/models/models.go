package models

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidBoundingBox is returned when a bounding box cannot be sampled from
var ErrInvalidBoundingBox = errors.New("invalid bounding box")

// Location represents a geographic location with latitude and longitude in degrees
type Location struct {
	Lat float64 `json:"latitude"`
	Lon float64 `json:"longitude"`
}

// String renders the location as "lat,lon"
func (l Location) String() string {
	return fmt.Sprintf("%.6f,%.6f", l.Lat, l.Lon)
}

// Photo represents a photo marker pinned to a location on the map
type Photo struct {
	ID        string `json:"id"`
	Thumbnail string `json:"thumbnail"`
	FullSize  string `json:"fullSize"`
	Alt       string `json:"alt"`
	Location
}

// BoundingBox represents a rectangular sampling envelope in degrees
type BoundingBox struct {
	MinLon float64 `json:"minLongitude" yaml:"min_lon"`
	MaxLon float64 `json:"maxLongitude" yaml:"max_lon"`
	MinLat float64 `json:"minLatitude" yaml:"min_lat"`
	MaxLat float64 `json:"maxLatitude" yaml:"max_lat"`
}

// Validate reports whether the box has finite, strictly ordered extremes
func (b BoundingBox) Validate() error {
	for _, v := range []float64{b.MinLon, b.MaxLon, b.MinLat, b.MaxLat} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite extreme in %+v", ErrInvalidBoundingBox, b)
		}
	}
	if b.MinLon >= b.MaxLon {
		return fmt.Errorf("%w: min longitude %f >= max longitude %f", ErrInvalidBoundingBox, b.MinLon, b.MaxLon)
	}
	if b.MinLat >= b.MaxLat {
		return fmt.Errorf("%w: min latitude %f >= max latitude %f", ErrInvalidBoundingBox, b.MinLat, b.MaxLat)
	}
	return nil
}

// Contains reports whether the location lies within the box, edges included
func (b BoundingBox) Contains(l Location) bool {
	return l.Lon >= b.MinLon && l.Lon <= b.MaxLon &&
		l.Lat >= b.MinLat && l.Lat <= b.MaxLat
}

// Width returns the longitude span in degrees
func (b BoundingBox) Width() float64 {
	return b.MaxLon - b.MinLon
}

// Height returns the latitude span in degrees
func (b BoundingBox) Height() float64 {
	return b.MaxLat - b.MinLat
}

// Area returns the planar area in square degrees
func (b BoundingBox) Area() float64 {
	return b.Width() * b.Height()
}

// Extend grows the box so that it covers l
func (b BoundingBox) Extend(l Location) BoundingBox {
	return BoundingBox{
		MinLon: math.Min(b.MinLon, l.Lon),
		MaxLon: math.Max(b.MaxLon, l.Lon),
		MinLat: math.Min(b.MinLat, l.Lat),
		MaxLat: math.Max(b.MaxLat, l.Lat),
	}
}

// EmptyBox returns a box that any call to Extend replaces entirely
func EmptyBox() BoundingBox {
	return BoundingBox{
		MinLon: math.Inf(1),
		MaxLon: math.Inf(-1),
		MinLat: math.Inf(1),
		MaxLat: math.Inf(-1),
	}
}
