package vector

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/floorheights/datamodel/internal/gis"
)

// loadCSVPoints reads a CSV point dataset. CSV carries no CRS of its
// own, so the caller must name the coordinate columns and the system
// the coordinates are in.
func loadCSVPoints(path string, opts Options) ([]Feature, error) {
	if opts.XField == "" || opts.YField == "" {
		return nil, fmt.Errorf("csv dataset %s: coordinate column names are required", path)
	}
	if opts.AssumeEPSG == 0 {
		return nil, fmt.Errorf("csv dataset %s: %w: no declared coordinate system", path, gis.ErrUnresolvedCRS)
	}

	table, err := ReadTable(path, "")
	if err != nil {
		return nil, err
	}
	idx, err := table.HeaderIndex(opts.XField, opts.YField)
	if err != nil {
		return nil, fmt.Errorf("csv dataset %s: %w", path, err)
	}
	xi := idx[strings.ToLower(opts.XField)]
	yi := idx[strings.ToLower(opts.YField)]

	feats := make([]Feature, 0, len(table.Rows))
	for n, row := range table.Rows {
		xs, ys := Field(row, idx, opts.XField), Field(row, idx, opts.YField)
		if xs == "" || ys == "" {
			continue
		}
		x, err := strconv.ParseFloat(xs, 64)
		if err != nil {
			return nil, fmt.Errorf("csv dataset %s record %d: bad %s value %q", path, n+2, opts.XField, xs)
		}
		y, err := strconv.ParseFloat(ys, 64)
		if err != nil {
			return nil, fmt.Errorf("csv dataset %s record %d: bad %s value %q", path, n+2, opts.YField, ys)
		}
		attrs := make(map[string]any, len(table.Header))
		for i, name := range table.Header {
			if i == xi || i == yi || i >= len(row) {
				continue
			}
			attrs[name] = row[i]
		}
		feats = append(feats, Feature{Geometry: orb.Point{x, y}, Attrs: attrs})
	}
	return normalizeFeatures(feats, opts.AssumeEPSG)
}
