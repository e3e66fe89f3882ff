package ingest

import (
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/floorheights/datamodel/internal/datamodel"
	"github.com/floorheights/datamodel/internal/spatial"
)

// AssociateOptions configure the address-building join.
type AssociateOptions struct {
	Cadastre      string
	CadastreLayer string
	AssumeEPSG    int
	// ParcelGeocodeTypes are the geocode classifications that mean the
	// point is a parcel-level centroid, eligible for parcel fallback
	// when it sits inside no building.
	ParcelGeocodeTypes []string
}

// DefaultAssociateOptions fall back on the registry's property and
// parcel centroid classifications.
func DefaultAssociateOptions() AssociateOptions {
	return AssociateOptions{ParcelGeocodeTypes: []string{"PC", "PCM"}}
}

// JoinAddressBuildings links every stored address point to the
// buildings it serves: containment first, parcel fallback for
// parcel-centroid addresses. Pairs already present in the store or
// discovered twice within the run are suppressed, not duplicated.
func JoinAddressBuildings(opts AssociateOptions, store *datamodel.Store, w *datamodel.Writer, log *zap.Logger) (*Report, error) {
	report := NewReport()

	outlines, err := store.BuildingOutlines()
	if err != nil {
		return nil, err
	}
	buildings := spatial.NewIndex()
	for _, b := range outlines {
		buildings.Add(b.ID, b.Outline.Polygon)
	}
	report.Add("buildings indexed", buildings.Len())

	addresses, err := store.AddressPointRows()
	if err != nil {
		return nil, err
	}
	report.Add("address points loaded", len(addresses))

	seen, err := store.ExistingAddressBuildingPairs()
	if err != nil {
		return nil, err
	}

	var parcels *spatial.Index
	if opts.Cadastre != "" {
		polys, err := loadPolygons(opts.Cadastre, opts.CadastreLayer, opts.AssumeEPSG)
		if err != nil {
			return nil, err
		}
		parcels = spatial.NewIndex()
		for _, p := range polys {
			parcels.Add(uuid.Nil, p)
		}
		report.Add("cadastre parcels loaded", parcels.Len())
	}

	parcelLevel := make(map[string]bool, len(opts.ParcelGeocodeTypes))
	for _, t := range opts.ParcelGeocodeTypes {
		parcelLevel[strings.ToUpper(strings.TrimSpace(t))] = true
	}

	report.Touch("pairs written")
	report.Touch("duplicate pairs suppressed")
	report.Touch("addresses with no building")
	for _, ap := range addresses {
		matches := buildings.ContainingPoint(ap.Location.Point)

		if len(matches) == 0 && parcels != nil && ap.GeocodeType != nil &&
			parcelLevel[strings.ToUpper(strings.TrimSpace(*ap.GeocodeType))] {
			if parcel, ok := parcels.Nearest(ap.Location.Point); ok {
				matches, err = buildings.Intersecting(parcel.Polygon)
				if err != nil {
					return nil, err
				}
			}
		}

		if len(matches) == 0 {
			report.Add("addresses with no building", 1)
			continue
		}
		for _, m := range matches {
			key := [2]uuid.UUID{ap.ID, m.ID}
			if _, dup := seen[key]; dup {
				report.Add("duplicate pairs suppressed", 1)
				log.Debug("duplicate address-building pair",
					zap.String("address_point_id", ap.ID.String()),
					zap.String("building_id", m.ID.String()))
				continue
			}
			seen[key] = struct{}{}
			if err := w.AddAssociation(ap.ID, m.ID); err != nil {
				return nil, err
			}
			report.Add("pairs written", 1)
		}
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	log.Info("address-building join finished",
		zap.Int("pairs", report.Count("pairs written")),
		zap.Int("unmatched", report.Count("addresses with no building")),
		zap.Int("duplicates", report.Count("duplicate pairs suppressed")))
	return report, nil
}
