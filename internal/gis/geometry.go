// Package gis holds the geometry math shared by the loaders, the
// building processor and the spatial join engine. Geometries are
// paulmach/orb values in geographic coordinates; boolean polygon
// operations run through engelsjk/polygol.
package gis

import (
	"fmt"
	"math"

	"github.com/engelsjk/polygol"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
)

// Polygons flattens a geometry into its polygon parts. Non-areal
// geometries yield nil.
func Polygons(g orb.Geometry) []orb.Polygon {
	switch v := g.(type) {
	case orb.Polygon:
		if len(v) == 0 {
			return nil
		}
		return []orb.Polygon{v}
	case orb.MultiPolygon:
		out := make([]orb.Polygon, 0, len(v))
		for _, p := range v {
			if len(p) > 0 {
				out = append(out, p)
			}
		}
		return out
	case orb.Collection:
		var out []orb.Polygon
		for _, sub := range v {
			out = append(out, Polygons(sub)...)
		}
		return out
	default:
		return nil
	}
}

func toGeom(polys []orb.Polygon) polygol.Geom {
	g := make(polygol.Geom, 0, len(polys))
	for _, p := range polys {
		rings := make([][][]float64, 0, len(p))
		for _, r := range p {
			ring := make([][]float64, 0, len(r))
			for _, pt := range r {
				ring = append(ring, []float64{pt[0], pt[1]})
			}
			rings = append(rings, ring)
		}
		g = append(g, rings)
	}
	return g
}

func fromGeom(g polygol.Geom) []orb.Polygon {
	out := make([]orb.Polygon, 0, len(g))
	for _, poly := range g {
		p := make(orb.Polygon, 0, len(poly))
		for _, ring := range poly {
			r := make(orb.Ring, 0, len(ring))
			for _, pt := range ring {
				if len(pt) < 2 {
					continue
				}
				r = append(r, orb.Point{pt[0], pt[1]})
			}
			if len(r) >= 4 {
				p = append(p, r)
			}
		}
		if len(p) > 0 {
			out = append(out, p)
		}
	}
	return out
}

// Intersection clips a against b and returns the areal pieces. An empty
// result means the two do not overlap.
func Intersection(a, b orb.Geometry) ([]orb.Polygon, error) {
	pa, pb := Polygons(a), Polygons(b)
	if len(pa) == 0 || len(pb) == 0 {
		return nil, nil
	}
	res, err := polygol.Intersection(toGeom(pa), toGeom(pb))
	if err != nil {
		return nil, fmt.Errorf("polygon intersection: %w", err)
	}
	return fromGeom(res), nil
}

// UnionAll dissolves a set of geometries into one multipolygon. Used to
// flatten overlapping cadastral parcels before spatial joins.
func UnionAll(geoms []orb.Geometry) ([]orb.Polygon, error) {
	var all []orb.Polygon
	for _, g := range geoms {
		all = append(all, Polygons(g)...)
	}
	if len(all) == 0 {
		return nil, nil
	}
	if len(all) == 1 {
		return all, nil
	}
	subject := toGeom(all[:1])
	rest := make([]polygol.Geom, 0, len(all)-1)
	for _, p := range all[1:] {
		rest = append(rest, toGeom([]orb.Polygon{p}))
	}
	res, err := polygol.Union(subject, rest...)
	if err != nil {
		return nil, fmt.Errorf("polygon union: %w", err)
	}
	return fromGeom(res), nil
}

// AreaM2 is the geodesic area of a polygon in square metres. Holes
// subtract from the shell.
func AreaM2(p orb.Polygon) float64 {
	return math.Abs(geo.Area(p))
}

// OverlapM2 is the geodesic area shared by a and b, in square metres.
func OverlapM2(a, b orb.Geometry) (float64, error) {
	pieces, err := Intersection(a, b)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, p := range pieces {
		total += AreaM2(p)
	}
	return total, nil
}

// PointInPolygon reports whether pt falls inside p. Boundary points
// count as inside.
func PointInPolygon(pt orb.Point, p orb.Polygon) bool {
	return planar.PolygonContains(p, pt)
}

// AssemblePolygons groups a flat ring list into polygons with their
// holes. Shell rings wind clockwise in the source convention; any ring
// winding the other way is attached as a hole to the first shell that
// contains its first vertex. Files that get the winding wrong come
// through as shells rather than being dropped.
func AssemblePolygons(rings []orb.Ring) []orb.Polygon {
	var shells []orb.Polygon
	var holes []orb.Ring
	for _, r := range rings {
		if len(r) < 4 {
			continue
		}
		if r.Orientation() == orb.CW {
			shells = append(shells, orb.Polygon{r})
		} else {
			holes = append(holes, r)
		}
	}
	if len(shells) == 0 {
		for _, h := range holes {
			shells = append(shells, orb.Polygon{h})
		}
		return shells
	}
	for _, h := range holes {
		attached := false
		for i := range shells {
			if planar.RingContains(shells[i][0], h[0]) {
				shells[i] = append(shells[i], h)
				attached = true
				break
			}
		}
		if !attached {
			shells = append(shells, orb.Polygon{h})
		}
	}
	return shells
}
