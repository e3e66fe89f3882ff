// Package raster reads digital elevation models and samples them under
// footprint polygons. Single GeoTIFFs and VRT mosaics of GeoTIFFs are
// supported; both must already be in a geographic coordinate system
// compatible with the store CRS.
package raster

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"

	"github.com/floorheights/datamodel/internal/gis"
)

// Grid is a sampleable elevation surface.
type Grid interface {
	// Bounds is the georeferenced extent of the surface.
	Bounds() orb.Bound
	// Resolution is the cell size in CRS units; both values are
	// positive.
	Resolution() (dx, dy float64)
	// Sample reads the cell containing pt. The bool is false outside
	// the surface and on nodata cells.
	Sample(pt orb.Point) (float64, bool, error)
	Close() error
}

// OpenDEM opens an elevation source by extension.
func OpenDEM(path string) (Grid, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tif", ".tiff":
		return OpenGeoTIFF(path)
	case ".vrt":
		return OpenVRT(path)
	default:
		return nil, fmt.Errorf("open elevation source %s: no driver for %s", path, filepath.Ext(path))
	}
}

// Range is the outcome of sampling a surface under one polygon.
type Range struct {
	Min, Max float64
	// Samples counts the defined cells that contributed. Zero means
	// the polygon covered no defined cell and Min/Max are meaningless.
	Samples int
}

// RangeOverPolygon samples every cell whose center falls inside poly and
// returns the minimum and maximum defined values. Cells outside the
// surface and nodata cells do not contribute.
func RangeOverPolygon(g Grid, poly orb.Polygon) (Range, error) {
	var r Range
	if len(poly) == 0 {
		return r, nil
	}
	gb, pb := g.Bounds(), poly.Bound()
	dx, dy := g.Resolution()
	if dx <= 0 || dy <= 0 {
		return r, fmt.Errorf("elevation surface has no resolution")
	}

	minX := math.Max(gb.Min[0], pb.Min[0])
	maxX := math.Min(gb.Max[0], pb.Max[0])
	minY := math.Max(gb.Min[1], pb.Min[1])
	maxY := math.Min(gb.Max[1], pb.Max[1])
	if minX > maxX || minY > maxY {
		return r, nil
	}

	// Cell centers are anchored at the surface origin, not at the
	// polygon bound, so repeated runs sample identical cells.
	i0 := int(math.Floor((minX - gb.Min[0]) / dx))
	i1 := int(math.Ceil((maxX - gb.Min[0]) / dx))
	j0 := int(math.Floor((minY - gb.Min[1]) / dy))
	j1 := int(math.Ceil((maxY - gb.Min[1]) / dy))

	r.Min, r.Max = math.Inf(1), math.Inf(-1)
	for j := j0; j <= j1; j++ {
		y := gb.Min[1] + (float64(j)+0.5)*dy
		for i := i0; i <= i1; i++ {
			x := gb.Min[0] + (float64(i)+0.5)*dx
			pt := orb.Point{x, y}
			if !gis.PointInPolygon(pt, poly) {
				continue
			}
			v, ok, err := g.Sample(pt)
			if err != nil {
				return Range{}, err
			}
			if !ok || math.IsNaN(v) {
				continue
			}
			if v < r.Min {
				r.Min = v
			}
			if v > r.Max {
				r.Max = v
			}
			r.Samples++
		}
	}
	if r.Samples == 0 {
		r.Min, r.Max = 0, 0
	}
	return r, nil
}
