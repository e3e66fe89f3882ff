package ingest

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/floorheights/datamodel/internal/datamodel"
	"github.com/floorheights/datamodel/internal/gis/vector"
)

// AddressOptions configure one address-point ingestion run.
type AddressOptions struct {
	Input string
	Layer string

	GnafField             string
	AddressField          string
	GeocodeTypeField      string
	PrimarySecondaryField string

	// CSV sources only.
	XField     string
	YField     string
	AssumeEPSG int
}

// DefaultAddressOptions carry the registry's own column names.
func DefaultAddressOptions() AddressOptions {
	return AddressOptions{
		GnafField:             "gnaf_id",
		AddressField:          "address",
		GeocodeTypeField:      "geocode_type",
		PrimarySecondaryField: "primary_secondary",
	}
}

// IngestAddressPoints loads an address registry extract and writes one
// AddressPoint per usable record.
func IngestAddressPoints(opts AddressOptions, w *datamodel.Writer, log *zap.Logger) (*Report, error) {
	feats, err := vector.Load(opts.Input, vector.Options{
		Layer:      opts.Layer,
		XField:     opts.XField,
		YField:     opts.YField,
		AssumeEPSG: opts.AssumeEPSG,
	})
	if err != nil {
		return nil, err
	}
	report := NewReport()
	report.Add("records loaded", len(feats))
	if len(feats) == 0 {
		return report, nil
	}
	if err := requireColumns(feats[0].Attrs, opts.GnafField, opts.AddressField); err != nil {
		return nil, fmt.Errorf("address source %s: %w", opts.Input, err)
	}

	report.Touch("records missing registry id or address")
	report.Touch("records without a point location")
	for _, f := range feats {
		pt, ok := featurePoint(f.Geometry)
		if !ok {
			report.Add("records without a point location", 1)
			continue
		}
		gnaf := attrString(lookupAttr(f.Attrs, opts.GnafField))
		address := attrString(lookupAttr(f.Attrs, opts.AddressField))
		if gnaf == "" || address == "" {
			report.Add("records missing registry id or address", 1)
			continue
		}
		ap := datamodel.AddressPoint{
			GnafID:   gnaf,
			Address:  address,
			Location: datamodel.NewPoint(pt),
		}
		if v := attrString(lookupAttr(f.Attrs, opts.GeocodeTypeField)); v != "" {
			ap.GeocodeType = &v
		}
		if v := attrString(lookupAttr(f.Attrs, opts.PrimarySecondaryField)); v != "" {
			ap.PrimarySecondary = &v
		}
		if err := w.AddAddressPoint(ap); err != nil {
			return nil, err
		}
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	report.Add("address points written", w.Counts().AddressPoints)
	log.Info("address ingestion finished",
		zap.Int("loaded", report.Count("records loaded")),
		zap.Int("written", w.Counts().AddressPoints))
	return report, nil
}

// featurePoint extracts a point location from a feature geometry. The
// first point of a multipoint stands in for the record.
func featurePoint(g orb.Geometry) (orb.Point, bool) {
	switch v := g.(type) {
	case orb.Point:
		return v, true
	case orb.MultiPoint:
		if len(v) > 0 {
			return v[0], true
		}
	}
	return orb.Point{}, false
}

// lookupAttr finds an attribute regardless of header casing.
func lookupAttr(attrs map[string]any, name string) any {
	if name == "" {
		return nil
	}
	if v, ok := attrs[name]; ok {
		return v
	}
	for k, v := range attrs {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return nil
}

// requireColumns fails fast when a required source column is absent
// from the attribute record.
func requireColumns(attrs map[string]any, names ...string) error {
	var missing []string
	for _, name := range names {
		if name == "" {
			continue
		}
		found := false
		for k := range attrs {
			if strings.EqualFold(k, name) {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}
	return nil
}
