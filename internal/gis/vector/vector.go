// Package vector loads survey vector datasets into normalized features.
// Every loader returns geometries already in the store CRS; a source
// whose coordinate system cannot be resolved is rejected rather than
// passed through untransformed.
package vector

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/paulmach/orb"

	"github.com/floorheights/datamodel/internal/gis"
)

// Feature is one record from a vector dataset: a geometry in the store
// CRS plus the source's attribute columns.
type Feature struct {
	Geometry orb.Geometry
	Attrs    map[string]any
}

// Options tune how a dataset is read.
type Options struct {
	// Layer selects a feature table when the container holds more than
	// one. Empty means the only layer, or an error if ambiguous.
	Layer string
	// XField and YField name the coordinate columns of CSV point
	// datasets.
	XField string
	YField string
	// AssumeEPSG is used when the source carries no CRS of its own
	// (CSV, or a shapefile missing its .prj sidecar). Zero means no
	// assumption, which makes such sources fail.
	AssumeEPSG int
}

// Load reads the dataset at path. Directories are treated as a dataset
// split across files; everything else dispatches on the file extension.
func Load(path string, opts Options) ([]Feature, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("open vector dataset: %w", err)
	}
	if info.IsDir() {
		if strings.EqualFold(filepath.Ext(path), ".gdb") {
			return nil, fmt.Errorf("open vector dataset %s: FileGDB driver is not supported", path)
		}
		return loadDirectory(path, opts)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		return loadGeoJSON(path)
	case ".shp":
		return loadShapefile(path, opts)
	case ".gpkg":
		return loadGeoPackage(path, opts)
	case ".parquet":
		return loadGeoParquet(path)
	case ".csv":
		return loadCSVPoints(path, opts)
	default:
		return nil, fmt.Errorf("open vector dataset %s: no driver for %s", path, filepath.Ext(path))
	}
}

// loadDirectory reads every supported file directly under dir, in name
// order, and concatenates their features.
func loadDirectory(dir string, opts Options) ([]Feature, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dataset directory: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".geojson", ".json", ".shp", ".gpkg", ".parquet":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("dataset directory %s holds no supported vector files", dir)
	}
	sort.Strings(paths)

	var all []Feature
	for _, p := range paths {
		feats, err := Load(p, opts)
		if err != nil {
			return nil, err
		}
		all = append(all, feats...)
	}
	return all, nil
}

// normalizeFeatures brings every feature into the store CRS, dropping
// records without a geometry.
func normalizeFeatures(feats []Feature, epsg int) ([]Feature, error) {
	out := feats[:0]
	for _, f := range feats {
		if f.Geometry == nil {
			continue
		}
		g, err := gis.Normalize(f.Geometry, epsg)
		if err != nil {
			return nil, err
		}
		f.Geometry = g
		out = append(out, f)
	}
	return out, nil
}
