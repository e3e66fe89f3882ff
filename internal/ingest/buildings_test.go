package ingest

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/floorheights/datamodel/internal/gis"
)

const metersPerDegree = 111319.49079327358

// rectM builds a closed rectangle in degree space from metre offsets at
// the equator, where a degree is very nearly linear in metres.
func rectM(x, y, w, h float64) orb.Polygon {
	x0, y0 := x/metersPerDegree, y/metersPerDegree
	x1, y1 := (x+w)/metersPerDegree, (y+h)/metersPerDegree
	return orb.Polygon{{{x0, y0}, {x0, y1}, {x1, y1}, {x1, y0}, {x0, y0}}}
}

func newTestProcessor(minArea float64) *BuildingProcessor {
	return NewBuildingProcessor(minArea, zap.NewNop(), NewReport())
}

func assertAreaM2(t *testing.T, poly orb.Polygon, want float64) {
	t.Helper()
	if got := gis.AreaM2(poly); math.Abs(got-want) > 0.1 {
		t.Errorf("expected fragment of %g m2, got %g m2", want, got)
	}
}

// demStub is a flat elevation surface for exercising the sampling stage
// without raster files.
type demStub struct {
	bounds  orb.Bound
	dx, dy  float64
	value   float64
	defined bool
}

func (d demStub) Bounds() orb.Bound              { return d.bounds }
func (d demStub) Resolution() (float64, float64) { return d.dx, d.dy }
func (d demStub) Close() error                   { return nil }

func (d demStub) Sample(pt orb.Point) (float64, bool, error) {
	if !d.defined || !d.bounds.Contains(pt) {
		return 0, false, nil
	}
	return d.value, true, nil
}

// TestProcessBareFootprint verifies a footprint passes through whole
// when no cadastre is loaded.
func TestProcessBareFootprint(t *testing.T) {
	p := newTestProcessor(30)

	cands, err := p.Process(rectM(0, 0, 10, 5))
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if len(cands) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(cands))
	}
	assertAreaM2(t, cands[0].Outline, 50)
	if p.Report.Count("footprint fragments") != 1 {
		t.Errorf("expected 1 fragment counted, got %d", p.Report.Count("footprint fragments"))
	}
}

// TestProcessDropsSlivers verifies a 25 m2 footprint is removed under a
// 30 m2 floor.
func TestProcessDropsSlivers(t *testing.T) {
	p := newTestProcessor(30)

	cands, err := p.Process(rectM(0, 0, 5, 5))
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if len(cands) != 0 {
		t.Fatalf("expected no candidates, got %d", len(cands))
	}
	if p.Report.Count("fragments below area threshold removed") != 1 {
		t.Errorf("expected the sliver to be counted as removed, got %d",
			p.Report.Count("fragments below area threshold removed"))
	}
}

// TestProcessDecomposesAcrossParcels verifies a 10x5 m footprint split
// by a parcel boundary at 8 m keeps the 40 m2 piece and drops the
// 10 m2 one.
func TestProcessDecomposesAcrossParcels(t *testing.T) {
	p := newTestProcessor(30)
	p.SetParcels([]orb.Polygon{rectM(0, 0, 8, 5), rectM(8, 0, 2, 5)})

	cands, err := p.Process(rectM(0, 0, 10, 5))
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if len(cands) != 1 {
		t.Fatalf("expected 1 surviving candidate, got %d", len(cands))
	}
	assertAreaM2(t, cands[0].Outline, 40)
	if p.Report.Count("footprint fragments") != 2 {
		t.Errorf("expected 2 fragments, got %d", p.Report.Count("footprint fragments"))
	}
	if p.Report.Count("fragments below area threshold removed") != 1 {
		t.Errorf("expected 1 fragment removed, got %d",
			p.Report.Count("fragments below area threshold removed"))
	}
}

// TestProcessDropsAreaOutsideParcels verifies footprint area beyond
// every parcel is discarded once any parcel overlaps.
func TestProcessDropsAreaOutsideParcels(t *testing.T) {
	p := newTestProcessor(30)
	p.SetParcels([]orb.Polygon{rectM(0, 0, 8, 5)})

	cands, err := p.Process(rectM(0, 0, 10, 5))
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if len(cands) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(cands))
	}
	assertAreaM2(t, cands[0].Outline, 40)
	if p.Report.Count("footprint fragments") != 1 {
		t.Errorf("expected the outside remainder not to become a fragment, got %d",
			p.Report.Count("footprint fragments"))
	}
}

// TestProcessPassThroughDisjointParcels verifies a footprint touching
// no parcel survives whole rather than vanishing.
func TestProcessPassThroughDisjointParcels(t *testing.T) {
	p := newTestProcessor(30)
	p.SetParcels([]orb.Polygon{rectM(100, 100, 10, 10)})

	cands, err := p.Process(rectM(0, 0, 10, 5))
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if len(cands) != 1 {
		t.Fatalf("expected the whole footprint back, got %d candidates", len(cands))
	}
	assertAreaM2(t, cands[0].Outline, 50)
}

// TestProcessConservesArea verifies decomposition against a tiling
// cadastre neither loses nor invents area.
func TestProcessConservesArea(t *testing.T) {
	p := newTestProcessor(0)
	p.SetParcels([]orb.Polygon{rectM(0, 0, 4, 5), rectM(4, 0, 6, 5)})

	footprint := rectM(0, 0, 10, 5)
	cands, err := p.Process(footprint)
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if len(cands) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(cands))
	}
	sum := 0.0
	for _, c := range cands {
		sum += gis.AreaM2(c.Outline)
	}
	if whole := gis.AreaM2(footprint); math.Abs(sum-whole) > 0.01 {
		t.Errorf("expected fragment areas to sum to %g m2, got %g m2", whole, sum)
	}
}

// TestJoinZoneGreatestOverlap verifies the fragment takes the zone with
// the largest areal overlap.
func TestJoinZoneGreatestOverlap(t *testing.T) {
	p := newTestProcessor(30)
	p.SetZoning([]orb.Polygon{rectM(0, 0, 6, 5), rectM(6, 0, 4, 5)}, []string{"R2", "B4"})

	cands, err := p.Process(rectM(0, 0, 10, 5))
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if len(cands) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(cands))
	}
	if cands[0].Zone == nil || *cands[0].Zone != "R2" {
		t.Errorf("expected zone R2 with 30 m2 overlap to win, got %v", cands[0].Zone)
	}
}

// TestJoinZoneTieKeepsFirstLoaded verifies equal overlaps resolve to
// the earliest loaded zoning polygon on every run.
func TestJoinZoneTieKeepsFirstLoaded(t *testing.T) {
	zone := rectM(0, 0, 10, 5)
	for run := 0; run < 3; run++ {
		p := newTestProcessor(30)
		p.SetZoning([]orb.Polygon{zone, zone}, []string{"first", "second"})

		cands, err := p.Process(rectM(0, 0, 10, 5))
		if err != nil {
			t.Fatalf("run %d: process failed: %v", run, err)
		}
		if len(cands) != 1 || cands[0].Zone == nil || *cands[0].Zone != "first" {
			t.Fatalf("run %d: expected the first zoning polygon to win the tie, got %v", run, cands[0].Zone)
		}
	}
}

// TestJoinZoneNoOverlap verifies a fragment outside every zone keeps a
// null zone and is counted.
func TestJoinZoneNoOverlap(t *testing.T) {
	p := newTestProcessor(30)
	p.SetZoning([]orb.Polygon{rectM(100, 100, 10, 10)}, []string{"R2"})

	cands, err := p.Process(rectM(0, 0, 10, 5))
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if len(cands) != 1 || cands[0].Zone != nil {
		t.Errorf("expected a null zone, got %v", cands[0].Zone)
	}
	if p.Report.Count("fragments with zero zoning overlap") != 1 {
		t.Errorf("expected the miss to be counted, got %d",
			p.Report.Count("fragments with zero zoning overlap"))
	}
}

// TestSampleElevationEnvelope verifies the min and max come from the
// elevation surface under the fragment.
func TestSampleElevationEnvelope(t *testing.T) {
	p := newTestProcessor(30)
	p.SetDEM(demStub{
		bounds:  orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}},
		dx:      1e-5,
		dy:      1e-5,
		value:   5.5,
		defined: true,
	})

	cands, err := p.Process(rectM(0, 0, 10, 5))
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if len(cands) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(cands))
	}
	c := cands[0]
	if c.MinHeightAHD == nil || c.MaxHeightAHD == nil {
		t.Fatalf("expected the elevation envelope to be set, got %v %v", c.MinHeightAHD, c.MaxHeightAHD)
	}
	if *c.MinHeightAHD != 5.5 || *c.MaxHeightAHD != 5.5 {
		t.Errorf("expected envelope [5.5, 5.5], got [%g, %g]", *c.MinHeightAHD, *c.MaxHeightAHD)
	}
}

// TestSampleElevationEmpty verifies a fragment over no defined cell
// keeps both elevation fields unset.
func TestSampleElevationEmpty(t *testing.T) {
	p := newTestProcessor(30)
	p.SetDEM(demStub{
		bounds: orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}},
		dx:     1e-5,
		dy:     1e-5,
	})

	cands, err := p.Process(rectM(0, 0, 10, 5))
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if len(cands) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(cands))
	}
	if cands[0].MinHeightAHD != nil || cands[0].MaxHeightAHD != nil {
		t.Errorf("expected unset elevation fields, got %v %v",
			cands[0].MinHeightAHD, cands[0].MaxHeightAHD)
	}
	if p.Report.Count("fragments with empty raster sample") != 1 {
		t.Errorf("expected the empty sample to be counted, got %d",
			p.Report.Count("fragments with empty raster sample"))
	}
}
