// Package exporter writes the current model state (buildings and
// address points with their joined attributes) to vector files for GIS
// desktop interchange.
package exporter

import (
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/floorheights/datamodel/internal/datamodel"
)

// Options configure one export run.
type Options struct {
	Output string
	// BBox restricts the export to minx, miny, maxx, maxy in the store
	// CRS. Nil exports everything.
	BBox *[4]float64
}

// Counts reports what an export produced.
type Counts struct {
	Buildings     int
	AddressPoints int
}

// Export writes the model state to the format named by the output
// extension: GeoJSON (a file per layer) or GeoPackage (two layers in
// one file).
func Export(opts Options, store *datamodel.Store, log *zap.Logger) (Counts, error) {
	buildings, err := store.ExportBuildings(opts.BBox)
	if err != nil {
		return Counts{}, err
	}
	addresses, err := store.ExportAddressPoints(opts.BBox)
	if err != nil {
		return Counts{}, err
	}
	counts := Counts{Buildings: len(buildings), AddressPoints: len(addresses)}

	switch strings.ToLower(filepath.Ext(opts.Output)) {
	case ".geojson", ".json":
		err = exportGeoJSON(opts.Output, buildings, addresses)
	case ".gpkg":
		err = exportGeoPackage(opts.Output, buildings, addresses)
	default:
		return Counts{}, fmt.Errorf("export %s: no driver for %s", opts.Output, filepath.Ext(opts.Output))
	}
	if err != nil {
		return Counts{}, err
	}
	log.Info("export finished",
		zap.String("output", opts.Output),
		zap.Int("buildings", counts.Buildings),
		zap.Int("address_points", counts.AddressPoints))
	return counts, nil
}

// addressLayerPath places the address-point layer next to a
// single-layer output file.
func addressLayerPath(output string) string {
	ext := filepath.Ext(output)
	return strings.TrimSuffix(output, ext) + "_address_points" + ext
}
