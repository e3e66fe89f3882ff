package vector

import (
	"fmt"
	"os"

	"github.com/paulmach/orb/geojson"
)

// loadGeoJSON reads a FeatureCollection. GeoJSON coordinates are WGS 84
// by definition, which passes through to the store CRS unchanged.
func loadGeoJSON(path string) ([]Feature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read geojson: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse geojson %s: %w", path, err)
	}
	feats := make([]Feature, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		attrs := make(map[string]any, len(f.Properties))
		for k, v := range f.Properties {
			attrs[k] = v
		}
		feats = append(feats, Feature{Geometry: f.Geometry, Attrs: attrs})
	}
	return normalizeFeatures(feats, 4326)
}
