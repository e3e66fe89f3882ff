package spatial_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/floorheights/datamodel/internal/spatial"
)

const metersPerDegree = 111319.49079327358

// rect builds a closed rectangle w by h meters with its lower-left
// corner x, y meters from the origin.
func rect(x, y, w, h float64) orb.Polygon {
	x0, y0 := x/metersPerDegree, y/metersPerDegree
	x1, y1 := (x+w)/metersPerDegree, (y+h)/metersPerDegree
	return orb.Polygon{orb.Ring{
		{x0, y0}, {x0, y1}, {x1, y1}, {x1, y0}, {x0, y0},
	}}
}

func pointM(x, y float64) orb.Point {
	return orb.Point{x / metersPerDegree, y / metersPerDegree}
}

func id(n byte) uuid.UUID {
	return uuid.UUID{15: n}
}

// TestContainingPointInsertionOrder verifies that overlapping hits come
// back in the order their polygons were indexed, which is what keeps
// re-runs deterministic.
func TestContainingPointInsertionOrder(t *testing.T) {
	ix := spatial.NewIndex()
	ix.Add(id(1), rect(0, 0, 10, 10))
	ix.Add(id(2), rect(5, 5, 10, 10))

	hits := ix.ContainingPoint(pointM(7, 7))
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].ID != id(1) || hits[1].ID != id(2) {
		t.Errorf("expected insertion order [1 2], got [%v %v]", hits[0].ID, hits[1].ID)
	}
}

// TestContainingPointBoundary verifies a point on a shared edge is
// contained by both neighbours.
func TestContainingPointBoundary(t *testing.T) {
	ix := spatial.NewIndex()
	ix.Add(id(1), rect(0, 0, 10, 10))
	ix.Add(id(2), rect(10, 0, 10, 10))

	hits := ix.ContainingPoint(pointM(10, 5))
	if len(hits) != 2 {
		t.Errorf("expected the shared edge to hit both polygons, got %d hits", len(hits))
	}
}

// TestNearestPrefersContainment verifies a containing polygon wins over
// a nearer-by-centroid neighbour.
func TestNearestPrefersContainment(t *testing.T) {
	ix := spatial.NewIndex()
	ix.Add(id(1), rect(0, 0, 100, 100))
	ix.Add(id(2), rect(49, 101, 2, 2))

	got, ok := ix.Nearest(pointM(50, 99))
	if !ok {
		t.Fatal("expected a hit")
	}
	if got.ID != id(1) {
		t.Errorf("expected containing polygon 1, got %v", got.ID)
	}
}

// TestNearestRanksByTrueDistance verifies the bounding-box candidates
// are re-ranked by real geometry distance: a sliver whose box corner
// sits near the query must lose to a genuinely closer polygon.
func TestNearestRanksByTrueDistance(t *testing.T) {
	ix := spatial.NewIndex()
	// Diagonal sliver: box distance to origin 0.7m, true distance ~1.06m.
	ix.Add(id(1), orb.Polygon{orb.Ring{
		pointM(0.5, 1), pointM(1, 0.5), pointM(1.1, 0.6), pointM(0.6, 1.1), pointM(0.5, 1),
	}})
	// Square at true distance 0.9m.
	ix.Add(id(2), rect(0.9, 0, 0.3, 0.3))

	got, ok := ix.Nearest(pointM(0, 0))
	if !ok {
		t.Fatal("expected a hit")
	}
	if got.ID != id(2) {
		t.Errorf("expected the truly nearer polygon 2, got %v", got.ID)
	}
}

// TestNearestEmptyIndex verifies the miss shape.
func TestNearestEmptyIndex(t *testing.T) {
	ix := spatial.NewIndex()
	if _, ok := ix.Nearest(pointM(0, 0)); ok {
		t.Error("expected no hit from an empty index")
	}
}

// TestIntersectingIgnoresBoundaryTouch verifies that sharing only an
// edge does not count as intersecting; areal overlap is required.
func TestIntersectingIgnoresBoundaryTouch(t *testing.T) {
	ix := spatial.NewIndex()
	ix.Add(id(1), rect(0, 0, 10, 10))
	ix.Add(id(2), rect(10, 0, 10, 10))
	ix.Add(id(3), rect(5, 5, 10, 10))

	hits, err := ix.Intersecting(rect(0, 0, 10, 10))
	if err != nil {
		t.Fatalf("intersecting failed: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	for _, h := range hits {
		if h.ID == id(2) {
			t.Error("edge-touching polygon 2 must not count as intersecting")
		}
	}
}

// TestLargestIntersectingFirstWinsTies verifies equal-area candidates
// resolve to the earliest indexed, run after run.
func TestLargestIntersectingFirstWinsTies(t *testing.T) {
	query := rect(9, 0, 2, 10)
	for run := 0; run < 3; run++ {
		ix := spatial.NewIndex()
		ix.Add(id(1), rect(0, 0, 10, 10))
		ix.Add(id(2), rect(10, 0, 10, 10))

		got, ok, err := ix.LargestIntersecting(query)
		if err != nil {
			t.Fatalf("run %d: %v", run, err)
		}
		if !ok {
			t.Fatalf("run %d: expected a hit", run)
		}
		if got.ID != id(1) {
			t.Errorf("run %d: expected first-indexed polygon on a tie, got %v", run, got.ID)
		}
	}
}

// TestLargestIntersectingPrefersArea verifies a larger late-indexed
// polygon still beats a smaller earlier one.
func TestLargestIntersectingPrefersArea(t *testing.T) {
	ix := spatial.NewIndex()
	ix.Add(id(1), rect(8, 0, 4, 4))
	ix.Add(id(2), rect(10, 0, 20, 20))

	got, ok, err := ix.LargestIntersecting(rect(9, 0, 2, 10))
	if err != nil {
		t.Fatalf("largest failed: %v", err)
	}
	if !ok {
		t.Fatal("expected a hit")
	}
	if got.ID != id(2) {
		t.Errorf("expected the larger polygon 2, got %v", got.ID)
	}
}

// TestResolverChain verifies the full resolution ladder: containment
// first, then the nearest parcel's largest building, then a miss.
func TestResolverChain(t *testing.T) {
	buildings := spatial.NewIndex()
	buildings.Add(id(1), rect(2, 2, 4, 4))   // small building on the parcel
	buildings.Add(id(2), rect(10, 2, 8, 8))  // large building on the parcel
	parcels := spatial.NewIndex()
	parcels.Add(uuid.Nil, rect(0, 0, 20, 12))

	r := &spatial.Resolver{Buildings: buildings, Parcels: parcels}

	// Inside the small building: containment wins.
	got, ok, err := r.Resolve(pointM(3, 3))
	if err != nil || !ok {
		t.Fatalf("expected containment hit, got ok=%v err=%v", ok, err)
	}
	if got != id(1) {
		t.Errorf("expected building 1 by containment, got %v", got)
	}

	// On the parcel but in no building: largest building on the parcel.
	got, ok, err = r.Resolve(pointM(8, 1))
	if err != nil || !ok {
		t.Fatalf("expected parcel fallback hit, got ok=%v err=%v", ok, err)
	}
	if got != id(2) {
		t.Errorf("expected largest building 2 via parcel, got %v", got)
	}

	// No parcels configured: misses resolve to nothing.
	bare := &spatial.Resolver{Buildings: buildings}
	if _, ok, err := bare.Resolve(pointM(8, 1)); err != nil || ok {
		t.Errorf("expected a miss without parcels, got ok=%v err=%v", ok, err)
	}
}
