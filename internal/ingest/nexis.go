package ingest

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/floorheights/datamodel/internal/datamodel"
	"github.com/floorheights/datamodel/internal/gis/vector"
)

// NexisOptions configure ingestion of a modelled floor-height delivery
// keyed by registry id.
type NexisOptions struct {
	Input       string
	GnafField   string
	HeightField string
	Storey      int
	Confidence  *float64

	MethodName    string
	DatasetName   string
	DatasetDesc   string
	DatasetSource string
}

// DefaultNexisOptions carry the delivery's own column names and the
// canonical method/dataset labels.
func DefaultNexisOptions() NexisOptions {
	return NexisOptions{
		GnafField:   "gnaf_pid",
		HeightField: "floor_height_m",
		Storey:      1,
		MethodName:  "Modelled from NEXIS",
		DatasetName: "NEXIS",
	}
}

// IngestNexisMeasures loads a modelled measurement table and writes one
// FloorMeasure per (record, associated building). Records whose
// registry id matches no stored address, or whose address has no
// building association, are counted and skipped.
func IngestNexisMeasures(opts NexisOptions, store *datamodel.Store, w *datamodel.Writer, log *zap.Logger) (*Report, error) {
	table, err := vector.ReadTable(opts.Input, "")
	if err != nil {
		return nil, err
	}
	idx, err := table.HeaderIndex(opts.GnafField, opts.HeightField)
	if err != nil {
		return nil, fmt.Errorf("measurement source %s: %w", opts.Input, err)
	}

	report := NewReport()
	report.Add("records loaded", len(table.Rows))

	gnafIDs := make([]string, 0, len(table.Rows))
	for _, row := range table.Rows {
		if id := vector.Field(row, idx, opts.GnafField); id != "" {
			gnafIDs = append(gnafIDs, id)
		}
	}
	byGnaf, err := store.BuildingsByGnaf(gnafIDs)
	if err != nil {
		return nil, err
	}

	methodID, err := store.FindOrCreateMethod(opts.MethodName)
	if err != nil {
		return nil, err
	}
	datasetID, err := store.FindOrCreateDataset(opts.DatasetName, optional(opts.DatasetDesc), optional(opts.DatasetSource))
	if err != nil {
		return nil, err
	}

	used := usedSet(opts.GnafField, opts.HeightField)
	report.Touch("records with unparseable height")
	report.Touch("records matching no building")
	for _, row := range table.Rows {
		gnaf := vector.Field(row, idx, opts.GnafField)
		heightRaw := vector.Field(row, idx, opts.HeightField)
		height, err := strconv.ParseFloat(heightRaw, 64)
		if err != nil {
			report.Add("records with unparseable height", 1)
			continue
		}
		buildings := byGnaf[gnaf]
		if len(buildings) == 0 {
			report.Add("records matching no building", 1)
			continue
		}
		attrs := rowAttrs(table.Header, row)
		aux, err := auxInfo(attrs, used)
		if err != nil {
			return nil, err
		}
		for _, buildingID := range buildings {
			m := datamodel.FloorMeasure{
				Storey:     opts.Storey,
				Height:     height,
				Confidence: opts.Confidence,
				AuxInfo:    aux,
				BuildingID: buildingID,
				MethodID:   methodID,
			}
			if err := w.AddMeasure(m, []uuid.UUID{datasetID}); err != nil {
				return nil, err
			}
		}
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	report.Add("floor measures written", w.Counts().Measures)
	log.Info("modelled measure ingestion finished",
		zap.Int("records", report.Count("records loaded")),
		zap.Int("written", w.Counts().Measures),
		zap.Int("unmatched", report.Count("records matching no building")))
	return report, nil
}

// rowAttrs rebuilds the attribute map for one tabular record.
func rowAttrs(header []string, row []string) map[string]any {
	attrs := make(map[string]any, len(header))
	for i, name := range header {
		if i < len(row) {
			attrs[name] = row[i]
		}
	}
	return attrs
}

// optional maps an empty flag value to a null column.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
