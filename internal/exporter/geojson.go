package exporter

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/paulmach/orb/geojson"

	"github.com/floorheights/datamodel/internal/datamodel"
)

// exportGeoJSON writes the building layer to path and the address-point
// layer to a sibling file, since the format holds one collection per
// file.
func exportGeoJSON(path string, buildings []datamodel.ExportBuilding, addresses []datamodel.ExportAddressPoint) error {
	bc := geojson.NewFeatureCollection()
	for _, b := range buildings {
		f := geojson.NewFeature(b.Outline.Polygon)
		f.Properties = buildingProperties(b)
		bc.Append(f)
	}
	if err := writeCollection(path, bc); err != nil {
		return err
	}

	ac := geojson.NewFeatureCollection()
	for _, a := range addresses {
		f := geojson.NewFeature(a.Location.Point)
		f.Properties = addressProperties(a)
		ac.Append(f)
	}
	return writeCollection(addressLayerPath(path), ac)
}

func writeCollection(path string, fc *geojson.FeatureCollection) error {
	data, err := json.Marshal(fc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func buildingProperties(b datamodel.ExportBuilding) geojson.Properties {
	props := geojson.Properties{
		"id":            b.ID.String(),
		"measure_count": b.MeasureCount,
	}
	if b.MinHeightAHD != nil {
		props["min_height_ahd"] = *b.MinHeightAHD
	}
	if b.MaxHeightAHD != nil {
		props["max_height_ahd"] = *b.MaxHeightAHD
	}
	if b.Zone != nil {
		props["zone"] = *b.Zone
	}
	if b.Addresses != nil {
		props["addresses"] = *b.Addresses
	}
	if b.MethodNames != nil {
		props["methods"] = *b.MethodNames
	}
	return props
}

func addressProperties(a datamodel.ExportAddressPoint) geojson.Properties {
	props := geojson.Properties{
		"id":             a.ID.String(),
		"gnaf_id":        a.GnafID,
		"address":        a.Address,
		"building_count": a.BuildingCount,
	}
	if a.GeocodeType != nil {
		props["geocode_type"] = *a.GeocodeType
	}
	if a.PrimarySecondary != nil {
		props["primary_secondary"] = *a.PrimarySecondary
	}
	return props
}
