// Package spatial answers the point-in-polygon and nearest/largest
// lookups the association steps are built from. Geometries are indexed
// once per run in an in-memory R-tree.
package spatial

import (
	"sort"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/tidwall/rtree"

	"github.com/floorheights/datamodel/internal/gis"
)

// nearbyProbe is how many box-distance neighbours are re-ranked by true
// distance when answering a nearest query.
const nearbyProbe = 8

// Candidate is one indexed polygon. Order is the insertion position and
// is what every tie-break falls back to, so lookups stay deterministic
// run over run.
type Candidate struct {
	ID      uuid.UUID
	Polygon orb.Polygon
	AreaM2  float64
	Order   int
}

// Index holds polygons for repeated spatial lookups.
type Index struct {
	tree rtree.RTreeG[*Candidate]
	n    int
}

func NewIndex() *Index {
	return &Index{}
}

// Add indexes a polygon. Insertion order is remembered for tie-breaks.
func (ix *Index) Add(id uuid.UUID, poly orb.Polygon) {
	if len(poly) == 0 {
		return
	}
	c := &Candidate{ID: id, Polygon: poly, AreaM2: gis.AreaM2(poly), Order: ix.n}
	ix.n++
	b := poly.Bound()
	ix.tree.Insert([2]float64{b.Min[0], b.Min[1]}, [2]float64{b.Max[0], b.Max[1]}, c)
}

func (ix *Index) Len() int { return ix.n }

// ContainingPoint returns every polygon containing pt, in insertion
// order. Points on a boundary count as contained.
func (ix *Index) ContainingPoint(pt orb.Point) []Candidate {
	var hits []Candidate
	p := [2]float64{pt[0], pt[1]}
	ix.tree.Search(p, p, func(_, _ [2]float64, c *Candidate) bool {
		if gis.PointInPolygon(pt, c.Polygon) {
			hits = append(hits, *c)
		}
		return true
	})
	sort.Slice(hits, func(i, j int) bool { return hits[i].Order < hits[j].Order })
	return hits
}

// Nearest returns the closest polygon to pt. A polygon containing pt is
// at distance zero and wins outright; otherwise the nearest few by
// bounding box are re-ranked by true distance. Ties fall back to
// insertion order.
func (ix *Index) Nearest(pt orb.Point) (Candidate, bool) {
	if containing := ix.ContainingPoint(pt); len(containing) > 0 {
		return containing[0], true
	}

	p := [2]float64{pt[0], pt[1]}
	var probed []*Candidate
	ix.tree.Nearby(
		rtree.BoxDist[float64, *Candidate](p, p, nil),
		func(_, _ [2]float64, c *Candidate, _ float64) bool {
			probed = append(probed, c)
			return len(probed) < nearbyProbe
		},
	)
	if len(probed) == 0 {
		return Candidate{}, false
	}

	best, bestDist := probed[0], planar.DistanceFrom(probed[0].Polygon, pt)
	for _, c := range probed[1:] {
		d := planar.DistanceFrom(c.Polygon, pt)
		if d < bestDist || (d == bestDist && c.Order < best.Order) {
			best, bestDist = c, d
		}
	}
	return *best, true
}

// BoxCandidates returns every indexed polygon whose bounding box
// intersects poly's, in insertion order. Callers refine with exact
// geometry tests.
func (ix *Index) BoxCandidates(poly orb.Polygon) []Candidate {
	if len(poly) == 0 {
		return nil
	}
	b := poly.Bound()
	var boxed []Candidate
	ix.tree.Search(
		[2]float64{b.Min[0], b.Min[1]},
		[2]float64{b.Max[0], b.Max[1]},
		func(_, _ [2]float64, c *Candidate) bool {
			boxed = append(boxed, *c)
			return true
		},
	)
	sort.Slice(boxed, func(i, j int) bool { return boxed[i].Order < boxed[j].Order })
	return boxed
}

// Intersecting returns every indexed polygon sharing interior area with
// poly, in insertion order. Boundary-touch without shared area does not
// count.
func (ix *Index) Intersecting(poly orb.Polygon) ([]Candidate, error) {
	var hits []Candidate
	for _, c := range ix.BoxCandidates(poly) {
		overlap, err := gis.OverlapM2(c.Polygon, poly)
		if err != nil {
			return nil, err
		}
		if overlap > 0 {
			hits = append(hits, c)
		}
	}
	return hits, nil
}

// LargestIntersecting returns the polygon with the greatest own area
// among those sharing interior area with poly. Equal areas resolve to
// the earliest indexed. The bool is false when nothing overlaps.
func (ix *Index) LargestIntersecting(poly orb.Polygon) (Candidate, bool, error) {
	hits, err := ix.Intersecting(poly)
	if err != nil {
		return Candidate{}, false, err
	}
	var best *Candidate
	for i := range hits {
		c := &hits[i]
		if best == nil || c.AreaM2 > best.AreaM2 {
			best = c
		}
	}
	if best == nil {
		return Candidate{}, false, nil
	}
	return *best, true, nil
}
