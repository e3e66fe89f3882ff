package ingest

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/floorheights/datamodel/internal/datamodel"
	"github.com/floorheights/datamodel/internal/gis"
	"github.com/floorheights/datamodel/internal/gis/raster"
	"github.com/floorheights/datamodel/internal/gis/vector"
	"github.com/floorheights/datamodel/internal/spatial"
)

// DefaultMinAreaM2 is the footprint fragment area below which a
// candidate is discarded.
const DefaultMinAreaM2 = 30.0

// BuildingCandidate is one processed footprint fragment ready to become
// a Building row.
type BuildingCandidate struct {
	Outline      orb.Polygon
	Zone         *string
	MinHeightAHD *float64
	MaxHeightAHD *float64
}

// BuildingProcessor turns raw footprints into building candidates:
// decompose against parcels, drop slivers, join zoning, sample the
// elevation surface.
type BuildingProcessor struct {
	MinAreaM2 float64

	parcels *spatial.Index
	zoning  *spatial.Index
	zones   []string
	dem     raster.Grid

	Log    *zap.Logger
	Report *Report
}

func NewBuildingProcessor(minArea float64, log *zap.Logger, report *Report) *BuildingProcessor {
	if minArea < 0 {
		minArea = DefaultMinAreaM2
	}
	p := &BuildingProcessor{MinAreaM2: minArea, Log: log, Report: report}
	p.Report.Touch("footprint fragments")
	p.Report.Touch("fragments below area threshold removed")
	return p
}

// SetParcels enables footprint decomposition against a cadastre.
func (p *BuildingProcessor) SetParcels(polys []orb.Polygon) {
	p.parcels = spatial.NewIndex()
	for _, poly := range polys {
		p.parcels.Add(uuid.Nil, poly)
	}
}

// SetZoning enables the zoning join; zones runs parallel to polys.
func (p *BuildingProcessor) SetZoning(polys []orb.Polygon, zones []string) {
	p.zoning = spatial.NewIndex()
	p.zones = zones
	for _, poly := range polys {
		p.zoning.Add(uuid.Nil, poly)
	}
	p.Report.Touch("fragments with zero zoning overlap")
}

// SetDEM enables elevation sampling.
func (p *BuildingProcessor) SetDEM(g raster.Grid) {
	p.dem = g
	p.Report.Touch("fragments with empty raster sample")
}

// Process runs one footprint through the full pipeline and returns the
// surviving candidates.
func (p *BuildingProcessor) Process(footprint orb.Polygon) ([]BuildingCandidate, error) {
	fragments, err := p.decompose(footprint)
	if err != nil {
		return nil, err
	}
	p.Report.Add("footprint fragments", len(fragments))

	var out []BuildingCandidate
	for _, frag := range fragments {
		if gis.AreaM2(frag) < p.MinAreaM2 {
			p.Report.Add("fragments below area threshold removed", 1)
			continue
		}
		cand := BuildingCandidate{Outline: frag}
		if err := p.joinZone(&cand); err != nil {
			return nil, err
		}
		if err := p.sampleElevation(&cand); err != nil {
			return nil, err
		}
		out = append(out, cand)
	}
	return out, nil
}

// decompose splits a footprint into one fragment per overlapping parcel
// piece. A footprint overlapping no parcel passes through whole; area
// outside every parcel is dropped when any parcel overlaps.
func (p *BuildingProcessor) decompose(footprint orb.Polygon) ([]orb.Polygon, error) {
	if p.parcels == nil || p.parcels.Len() == 0 {
		return []orb.Polygon{footprint}, nil
	}
	var fragments []orb.Polygon
	for _, parcel := range p.parcels.BoxCandidates(footprint) {
		pieces, err := gis.Intersection(footprint, parcel.Polygon)
		if err != nil {
			return nil, fmt.Errorf("decompose footprint: %w", err)
		}
		fragments = append(fragments, pieces...)
	}
	if len(fragments) == 0 {
		return []orb.Polygon{footprint}, nil
	}
	return fragments, nil
}

// joinZone sets the fragment's zone to the value of the zoning polygon
// with greatest areal overlap; the earliest loaded zoning polygon wins
// a tie.
func (p *BuildingProcessor) joinZone(cand *BuildingCandidate) error {
	if p.zoning == nil {
		return nil
	}
	bestOverlap := 0.0
	bestOrder := -1
	for _, z := range p.zoning.BoxCandidates(cand.Outline) {
		overlap, err := gis.OverlapM2(z.Polygon, cand.Outline)
		if err != nil {
			return fmt.Errorf("zoning overlap: %w", err)
		}
		if overlap > bestOverlap {
			bestOverlap = overlap
			bestOrder = z.Order
		}
	}
	if bestOrder < 0 {
		p.Report.Add("fragments with zero zoning overlap", 1)
		p.Log.Warn("footprint fragment has no zoning overlap")
		return nil
	}
	zone := p.zones[bestOrder]
	cand.Zone = &zone
	return nil
}

// sampleElevation fills the min/max elevation envelope from the DEM.
// Fragments covering no defined cell keep both fields unset.
func (p *BuildingProcessor) sampleElevation(cand *BuildingCandidate) error {
	if p.dem == nil {
		return nil
	}
	r, err := raster.RangeOverPolygon(p.dem, cand.Outline)
	if err != nil {
		return fmt.Errorf("sample elevation: %w", err)
	}
	if r.Samples == 0 {
		p.Report.Add("fragments with empty raster sample", 1)
		p.Log.Warn("footprint fragment has no defined elevation sample")
		return nil
	}
	minV, maxV := r.Min, r.Max
	cand.MinHeightAHD = &minV
	cand.MaxHeightAHD = &maxV
	return nil
}

// BuildingOptions configure one building ingestion run.
type BuildingOptions struct {
	Footprints     string
	FootprintLayer string
	DEM            string
	Cadastre       string
	CadastreLayer  string
	Zoning         string
	ZoningLayer    string
	ZoneField      string
	MinAreaM2      float64
	AssumeEPSG     int
}

// IngestBuildings loads footprints plus the optional cadastre and
// zoning layers, processes every footprint, and writes the surviving
// fragments as Building rows.
func IngestBuildings(opts BuildingOptions, w *datamodel.Writer, log *zap.Logger) (*Report, error) {
	report := NewReport()

	feats, err := vector.Load(opts.Footprints, vector.Options{Layer: opts.FootprintLayer, AssumeEPSG: opts.AssumeEPSG})
	if err != nil {
		return nil, err
	}
	var footprints []orb.Polygon
	for _, f := range feats {
		footprints = append(footprints, gis.Polygons(f.Geometry)...)
	}
	report.Add("footprints loaded", len(footprints))

	proc := NewBuildingProcessor(opts.MinAreaM2, log, report)

	if opts.Cadastre != "" {
		parcels, err := loadPolygons(opts.Cadastre, opts.CadastreLayer, opts.AssumeEPSG)
		if err != nil {
			return nil, err
		}
		report.Add("cadastre parcels loaded", len(parcels))
		proc.SetParcels(parcels)
	}

	if opts.Zoning != "" {
		if opts.ZoneField == "" {
			return nil, fmt.Errorf("zoning layer %s: a zone attribute field is required", opts.Zoning)
		}
		zfeats, err := vector.Load(opts.Zoning, vector.Options{Layer: opts.ZoningLayer, AssumeEPSG: opts.AssumeEPSG})
		if err != nil {
			return nil, err
		}
		if len(zfeats) > 0 {
			if err := requireColumns(zfeats[0].Attrs, opts.ZoneField); err != nil {
				return nil, fmt.Errorf("zoning layer %s: %w", opts.Zoning, err)
			}
		}
		var polys []orb.Polygon
		var zones []string
		for _, f := range zfeats {
			zone := attrString(lookupAttr(f.Attrs, opts.ZoneField))
			for _, poly := range gis.Polygons(f.Geometry) {
				polys = append(polys, poly)
				zones = append(zones, zone)
			}
		}
		report.Add("zoning polygons loaded", len(polys))
		proc.SetZoning(polys, zones)
	}

	if opts.DEM != "" {
		dem, err := raster.OpenDEM(opts.DEM)
		if err != nil {
			return nil, err
		}
		defer dem.Close()
		proc.SetDEM(dem)
	}

	for _, fp := range footprints {
		candidates, err := proc.Process(fp)
		if err != nil {
			return nil, err
		}
		for _, c := range candidates {
			b := datamodel.Building{
				Outline:      datamodel.NewPolygon(c.Outline),
				MinHeightAHD: c.MinHeightAHD,
				MaxHeightAHD: c.MaxHeightAHD,
				Zone:         c.Zone,
			}
			if err := w.AddBuilding(b); err != nil {
				return nil, err
			}
		}
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	report.Add("buildings written", w.Counts().Buildings)
	log.Info("building ingestion finished",
		zap.Int("footprints", report.Count("footprints loaded")),
		zap.Int("fragments", report.Count("footprint fragments")),
		zap.Int("removed", report.Count("fragments below area threshold removed")),
		zap.Int("written", w.Counts().Buildings))
	return report, nil
}

// loadPolygons loads a vector source and flattens it to bare polygons.
func loadPolygons(path, layer string, assumeEPSG int) ([]orb.Polygon, error) {
	feats, err := vector.Load(path, vector.Options{Layer: layer, AssumeEPSG: assumeEPSG})
	if err != nil {
		return nil, err
	}
	var polys []orb.Polygon
	for _, f := range feats {
		polys = append(polys, gis.Polygons(f.Geometry)...)
	}
	return polys, nil
}
