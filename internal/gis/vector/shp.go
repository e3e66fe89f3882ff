package vector

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	shp "github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"golang.org/x/text/encoding/charmap"

	"github.com/floorheights/datamodel/internal/gis"
)

// loadShapefile reads an ESRI shapefile and its DBF attributes. The CRS
// comes from the .prj sidecar; without one the caller must have supplied
// an assumption.
func loadShapefile(path string, opts Options) ([]Feature, error) {
	epsg, err := shapefileEPSG(path, opts)
	if err != nil {
		return nil, err
	}

	r, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open shapefile %s: %w", path, err)
	}
	defer r.Close()

	fields := r.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.String()
	}

	var feats []Feature
	for r.Next() {
		n, shape := r.Shape()
		geom := shapeGeometry(shape)
		if geom == nil {
			continue
		}
		attrs := make(map[string]any, len(fields))
		for i := range fields {
			attrs[names[i]] = decodeDBFString(r.ReadAttribute(n, i))
		}
		feats = append(feats, Feature{Geometry: geom, Attrs: attrs})
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("read shapefile %s: %w", path, err)
	}
	return normalizeFeatures(feats, epsg)
}

func shapefileEPSG(path string, opts Options) (int, error) {
	prj := strings.TrimSuffix(path, filepath.Ext(path)) + ".prj"
	data, err := os.ReadFile(prj)
	if err != nil {
		if opts.AssumeEPSG != 0 {
			return opts.AssumeEPSG, nil
		}
		return 0, fmt.Errorf("shapefile %s: %w: no .prj sidecar", path, gis.ErrUnresolvedCRS)
	}
	return gis.EPSGFromWKT(string(data))
}

func shapeGeometry(s shp.Shape) orb.Geometry {
	switch v := s.(type) {
	case *shp.Point:
		return orb.Point{v.X, v.Y}
	case *shp.PointM:
		return orb.Point{v.X, v.Y}
	case *shp.PointZ:
		return orb.Point{v.X, v.Y}
	case *shp.Polygon:
		return polygonFromParts(v.Parts, v.Points)
	case *shp.PolygonM:
		return polygonFromParts(v.Parts, v.Points)
	case *shp.PolygonZ:
		return polygonFromParts(v.Parts, v.Points)
	default:
		return nil
	}
}

// polygonFromParts splits the flat point array at the part offsets and
// regroups the rings into shells and holes.
func polygonFromParts(parts []int32, points []shp.Point) orb.Geometry {
	if len(points) == 0 {
		return nil
	}
	if len(parts) == 0 {
		parts = []int32{0}
	}
	rings := make([]orb.Ring, 0, len(parts))
	for i, start := range parts {
		end := int32(len(points))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || end > int32(len(points)) || start >= end {
			continue
		}
		ring := make(orb.Ring, 0, end-start)
		for _, p := range points[start:end] {
			ring = append(ring, orb.Point{p.X, p.Y})
		}
		rings = append(rings, ring)
	}
	polys := gis.AssemblePolygons(rings)
	switch len(polys) {
	case 0:
		return nil
	case 1:
		return polys[0]
	default:
		return orb.MultiPolygon(polys)
	}
}

// decodeDBFString trims DBF padding and recodes Latin-1 bytes when the
// raw value is not valid UTF-8.
func decodeDBFString(s string) string {
	s = strings.TrimSpace(s)
	if utf8.ValidString(s) {
		return s
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().String(s)
	if err != nil {
		return s
	}
	return decoded
}
