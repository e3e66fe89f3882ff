package ingest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/floorheights/datamodel/internal/datamodel"
	"github.com/floorheights/datamodel/internal/gis/vector"
)

// BulkOptions configure ingestion of a pre-joined tabular delivery from
// the external modelling workflow. Rows already carry the building
// reference, so no spatial resolution runs.
type BulkOptions struct {
	Input string
	Sheet string

	BuildingField   string
	StoreyField     string
	HeightField     string
	ConfidenceField string

	MethodName    string
	DatasetName   string
	DatasetDesc   string
	DatasetSource string
}

// DefaultMainMethodOptions carry the modelling workflow's column names
// and the main-methodology labels.
func DefaultMainMethodOptions() BulkOptions {
	return BulkOptions{
		BuildingField:   "building_id",
		StoreyField:     "storey",
		HeightField:     "height",
		ConfidenceField: "accuracy_measure",
		MethodName:      "Main methodology",
		DatasetName:     "Main methodology output",
	}
}

// DefaultGapFillOptions are the same delivery shape under the gap-fill
// labels.
func DefaultGapFillOptions() BulkOptions {
	opts := DefaultMainMethodOptions()
	opts.MethodName = "Gap fill"
	opts.DatasetName = "Gap fill output"
	return opts
}

// IngestBulkMeasures loads a pre-joined measurement table and writes it
// as a straight batch. Every building reference must exist in the
// store; an unknown reference aborts before any write, because a
// pre-joined delivery pointing at missing buildings means it was
// produced against a different store.
func IngestBulkMeasures(opts BulkOptions, store *datamodel.Store, w *datamodel.Writer, log *zap.Logger) (*Report, error) {
	table, err := vector.ReadTable(opts.Input, opts.Sheet)
	if err != nil {
		return nil, err
	}
	idx, err := table.HeaderIndex(opts.BuildingField, opts.HeightField)
	if err != nil {
		return nil, fmt.Errorf("measurement source %s: %w", opts.Input, err)
	}

	report := NewReport()
	report.Add("records loaded", len(table.Rows))

	// Validate the whole delivery's building references up front.
	ids := make([]uuid.UUID, 0, len(table.Rows))
	for n, row := range table.Rows {
		raw := vector.Field(row, idx, opts.BuildingField)
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("measurement source %s record %d: bad building reference %q", opts.Input, n+2, raw)
		}
		ids = append(ids, id)
	}
	existing, err := store.ExistingBuildingIDs(ids)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, id := range ids {
		if _, ok := existing[id]; !ok {
			missing = append(missing, id.String())
			if len(missing) >= 5 {
				break
			}
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("measurement source %s references buildings not in the store (e.g. %s); was it produced against this store?",
			opts.Input, strings.Join(missing, ", "))
	}

	methodID, err := store.FindOrCreateMethod(opts.MethodName)
	if err != nil {
		return nil, err
	}
	datasetID, err := store.FindOrCreateDataset(opts.DatasetName, optional(opts.DatasetDesc), optional(opts.DatasetSource))
	if err != nil {
		return nil, err
	}

	used := usedSet(opts.BuildingField, opts.StoreyField, opts.HeightField, opts.ConfidenceField)
	report.Touch("records with unparseable height")
	for n, row := range table.Rows {
		height, err := strconv.ParseFloat(vector.Field(row, idx, opts.HeightField), 64)
		if err != nil {
			report.Add("records with unparseable height", 1)
			continue
		}
		attrs := rowAttrs(table.Header, row)
		aux, err := auxInfo(attrs, used)
		if err != nil {
			return nil, err
		}
		m := datamodel.FloorMeasure{
			Storey:     1,
			Height:     height,
			AuxInfo:    aux,
			BuildingID: ids[n],
			MethodID:   methodID,
		}
		if v, ok := fieldFloat(row, idx, opts.StoreyField); ok {
			m.Storey = int(v)
		}
		if v, ok := fieldFloat(row, idx, opts.ConfidenceField); ok {
			m.Confidence = &v
		}
		if err := w.AddMeasure(m, []uuid.UUID{datasetID}); err != nil {
			return nil, err
		}
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	report.Add("floor measures written", w.Counts().Measures)
	log.Info("bulk measure ingestion finished",
		zap.String("method", opts.MethodName),
		zap.Int("records", report.Count("records loaded")),
		zap.Int("written", w.Counts().Measures))
	return report, nil
}
