// Package rtree accelerates boundary containment with an R-Tree over the
// envelopes of a dataset's outer rings
package rtree

import (
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/kass/go-geofence/pkg/geo"
	"github.com/kass/go-geofence/pkg/models"
)

const (
	tolerance   = 1e-9
	minChildren = 25
	maxChildren = 50
	dimensions  = 2
)

// spatialRing wraps an outer ring to implement rtreego.Spatial interface
type spatialRing struct {
	*geo.Ring
	ordinal int
	rect    *rtreego.Rect
}

func (sr *spatialRing) Bounds() *rtreego.Rect {
	return sr.rect
}

// RingIndex answers the same containment question as geo.Contains, but only
// runs the edge loop on rings whose envelope holds the point. It is
// read-only after construction and safe for concurrent use.
type RingIndex struct {
	tree    *rtreego.Rtree
	dataset *geo.Dataset
	count   int
}

// NewRingIndex indexes every outer ring of the dataset
func NewRingIndex(d *geo.Dataset) (*RingIndex, error) {
	rings := d.OuterRings()
	tree := rtreego.NewTree(dimensions, minChildren, maxChildren)

	for i, ring := range rings {
		env := ring.Bounds()
		rect, err := rtreego.NewRect(
			rtreego.Point{env.MinLon, env.MinLat},
			[]float64{span(env.Width()), span(env.Height())},
		)
		if err != nil {
			return nil, err
		}
		tree.Insert(&spatialRing{Ring: ring, ordinal: i, rect: rect})
	}

	return &RingIndex{
		tree:    tree,
		dataset: d,
		count:   len(rings),
	}, nil
}

// span keeps degenerate envelopes inside rtreego's positive-length rule
func span(v float64) float64 {
	if v < tolerance {
		return tolerance
	}
	return v
}

// Contains reports whether p lies inside any indexed ring. Candidates are
// tested in dataset order and the first hit wins.
func (idx *RingIndex) Contains(p models.Location) bool {
	query := rtreego.Point{p.Lon, p.Lat}.ToRect(tolerance)
	results := idx.tree.SearchIntersect(query)
	if len(results) == 0 {
		return false
	}

	candidates := make([]*spatialRing, 0, len(results))
	for _, result := range results {
		if sr, ok := result.(*spatialRing); ok {
			candidates = append(candidates, sr)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].ordinal < candidates[j].ordinal
	})

	for _, sr := range candidates {
		if sr.Ring.Contains(p) {
			return true
		}
	}
	return false
}

// Count returns the number of indexed rings
func (idx *RingIndex) Count() int {
	return idx.count
}

// Dataset returns the dataset the index was built from
func (idx *RingIndex) Dataset() *geo.Dataset {
	return idx.dataset
}
