package ingest

import (
	"fmt"
	"math"
	"strconv"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/floorheights/datamodel/internal/datamodel"
	"github.com/floorheights/datamodel/internal/gis"
	"github.com/floorheights/datamodel/internal/gis/vector"
	"github.com/floorheights/datamodel/internal/spatial"
)

// DefaultStepSize is the assumed riser height, in metres, for
// step-counted surveys.
const DefaultStepSize = 0.28

// stepTolerance absorbs binary floating point noise when testing
// whether a measured height is a whole number of steps.
const stepTolerance = 1e-9

// ValidationOptions configure ingestion of a surveyed validation
// delivery: point-located records resolved spatially to buildings.
type ValidationOptions struct {
	Input        string
	Sheet        string
	FieldMapPath string
	// StepCountField overrides the field map's step-count column.
	StepCountField string
	AssumeEPSG     int

	Cadastre        string
	CadastreLayer   string
	FlattenCadastre bool

	StepSize    float64
	SplitByStep bool

	MethodName     string
	StepMethodName string
	DatasetName    string
	DatasetDesc    string
	DatasetSource  string
}

// DefaultValidationOptions carry the canonical method labels for
// surveyed and step-counted measures.
func DefaultValidationOptions() ValidationOptions {
	return ValidationOptions{
		AssumeEPSG:     datamodel.SRID,
		StepSize:       DefaultStepSize,
		MethodName:     "Surveyed",
		StepMethodName: "Step counted",
		DatasetName:    "Validation survey",
	}
}

// IngestValidationMeasures loads a surveyed table, resolves each record
// to a building (containment, then nearest parcel's largest building)
// and writes one FloorMeasure per resolved record. With SplitByStep,
// heights that are a whole multiple of the step size are attributed to
// the step-counting method, the rest to the measured method.
func IngestValidationMeasures(opts ValidationOptions, store *datamodel.Store, w *datamodel.Writer, log *zap.Logger) (*Report, error) {
	fields, err := LoadFieldMap(opts.FieldMapPath)
	if err != nil {
		return nil, err
	}
	if opts.StepCountField != "" {
		fields.StepCount = opts.StepCountField
	}
	table, err := vector.ReadTable(opts.Input, opts.Sheet)
	if err != nil {
		return nil, err
	}
	required := []string{fields.X, fields.Y}
	if fields.Height != "" {
		required = append(required, fields.Height)
	} else {
		required = append(required, fields.StepCount)
	}
	idx, err := table.HeaderIndex(required...)
	if err != nil {
		return nil, fmt.Errorf("measurement source %s: %w", opts.Input, err)
	}

	report := NewReport()
	report.Add("records loaded", len(table.Rows))

	resolver, err := buildResolver(store, opts, report)
	if err != nil {
		return nil, err
	}

	measuredID, err := store.FindOrCreateMethod(opts.MethodName)
	if err != nil {
		return nil, err
	}
	stepID := measuredID
	if opts.SplitByStep {
		stepID, err = store.FindOrCreateMethod(opts.StepMethodName)
		if err != nil {
			return nil, err
		}
	}
	datasetID, err := store.FindOrCreateDataset(opts.DatasetName, optional(opts.DatasetDesc), optional(opts.DatasetSource))
	if err != nil {
		return nil, err
	}

	used := usedSet(fields.X, fields.Y, fields.Height, fields.StepCount,
		fields.Storey, fields.Confidence, fields.RangeLower, fields.RangeUpper)

	report.Touch("records with unusable coordinates")
	report.Touch("records with no height or step count")
	report.Touch("records matching no building")
	report.Touch("step-counted measures")
	for n, row := range table.Rows {
		pt, ok, err := recordPoint(row, idx, fields, opts.AssumeEPSG)
		if err != nil {
			return nil, fmt.Errorf("measurement source %s record %d: %w", opts.Input, n+2, err)
		}
		if !ok {
			report.Add("records with unusable coordinates", 1)
			continue
		}

		height, stepDerived, ok := recordHeight(row, idx, fields, opts.StepSize)
		if !ok {
			report.Add("records with no height or step count", 1)
			continue
		}

		buildingID, ok, err := resolver.Resolve(pt)
		if err != nil {
			return nil, err
		}
		if !ok {
			report.Add("records matching no building", 1)
			continue
		}

		methodID := measuredID
		if opts.SplitByStep && (stepDerived || wholeSteps(height, opts.StepSize)) {
			methodID = stepID
			report.Add("step-counted measures", 1)
		}

		attrs := rowAttrs(table.Header, row)
		aux, err := auxInfo(attrs, used)
		if err != nil {
			return nil, err
		}
		loc := datamodel.NewPoint(pt)
		m := datamodel.FloorMeasure{
			Storey:     1,
			Height:     height,
			AuxInfo:    aux,
			Location:   &loc,
			BuildingID: buildingID,
			MethodID:   methodID,
		}
		if v, ok := fieldFloat(row, idx, fields.Storey); ok {
			m.Storey = int(v)
		}
		if v, ok := fieldFloat(row, idx, fields.Confidence); ok {
			m.Confidence = &v
		}
		if v, ok := fieldFloat(row, idx, fields.RangeLower); ok {
			m.RangeLower = &v
		}
		if v, ok := fieldFloat(row, idx, fields.RangeUpper); ok {
			m.RangeUpper = &v
		}
		if err := w.AddMeasure(m, []uuid.UUID{datasetID}); err != nil {
			return nil, err
		}
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	report.Add("floor measures written", w.Counts().Measures)
	log.Info("validation measure ingestion finished",
		zap.Int("records", report.Count("records loaded")),
		zap.Int("written", w.Counts().Measures),
		zap.Int("unmatched", report.Count("records matching no building")))
	return report, nil
}

// buildResolver indexes the stored buildings and, when a cadastre is
// given, the parcel layer (flattened if requested) for fallback.
func buildResolver(store *datamodel.Store, opts ValidationOptions, report *Report) (*spatial.Resolver, error) {
	outlines, err := store.BuildingOutlines()
	if err != nil {
		return nil, err
	}
	buildings := spatial.NewIndex()
	for _, b := range outlines {
		buildings.Add(b.ID, b.Outline.Polygon)
	}
	report.Add("buildings indexed", buildings.Len())

	resolver := &spatial.Resolver{Buildings: buildings}
	if opts.Cadastre == "" {
		return resolver, nil
	}
	polys, err := loadPolygons(opts.Cadastre, opts.CadastreLayer, opts.AssumeEPSG)
	if err != nil {
		return nil, err
	}
	if opts.FlattenCadastre {
		geoms := make([]orb.Geometry, len(polys))
		for i, p := range polys {
			geoms[i] = p
		}
		polys, err = gis.UnionAll(geoms)
		if err != nil {
			return nil, fmt.Errorf("flatten cadastre: %w", err)
		}
	}
	parcels := spatial.NewIndex()
	for _, p := range polys {
		parcels.Add(uuid.Nil, p)
	}
	report.Add("cadastre parcels indexed", parcels.Len())
	resolver.Parcels = parcels
	return resolver, nil
}

// recordPoint reads and normalizes the record's survey point.
func recordPoint(row []string, idx map[string]int, fields FieldMap, epsg int) (orb.Point, bool, error) {
	xs, ys := vector.Field(row, idx, fields.X), vector.Field(row, idx, fields.Y)
	if xs == "" || ys == "" {
		return orb.Point{}, false, nil
	}
	x, errX := strconv.ParseFloat(xs, 64)
	y, errY := strconv.ParseFloat(ys, 64)
	if errX != nil || errY != nil {
		return orb.Point{}, false, nil
	}
	g, err := gis.Normalize(orb.Point{x, y}, epsg)
	if err != nil {
		return orb.Point{}, false, err
	}
	return g.(orb.Point), true, nil
}

// recordHeight produces the measure height: a whole number of steps
// multiplied out when the delivery counts steps, otherwise the measured
// height column.
func recordHeight(row []string, idx map[string]int, fields FieldMap, stepSize float64) (height float64, stepDerived, ok bool) {
	if fields.StepCount != "" {
		if steps, found := fieldFloat(row, idx, fields.StepCount); found {
			return steps * stepSize, true, true
		}
	}
	if fields.Height != "" {
		if h, found := fieldFloat(row, idx, fields.Height); found {
			return h, false, true
		}
	}
	return 0, false, false
}

// wholeSteps reports whether height is a whole multiple of stepSize.
func wholeSteps(height, stepSize float64) bool {
	if stepSize <= 0 {
		return false
	}
	m := math.Mod(math.Abs(height), stepSize)
	return m < stepTolerance || stepSize-m < stepTolerance
}

func fieldFloat(row []string, idx map[string]int, name string) (float64, bool) {
	if name == "" {
		return 0, false
	}
	s := vector.Field(row, idx, name)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
