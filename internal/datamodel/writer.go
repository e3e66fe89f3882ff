package datamodel

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultBatchSize is how many rows a Writer buffers per entity before
// flushing them in one transaction.
const DefaultBatchSize = 1000

// Counts reports what a Writer actually persisted.
type Counts struct {
	AddressPoints int
	Buildings     int
	Measures      int
	Images        int
	Associations  int
}

type pendingMeasure struct {
	measure  FloorMeasure
	datasets []uuid.UUID
}

type pendingImage struct {
	image     FloorMeasureImage
	measureID uuid.UUID
}

// Writer buffers new rows and writes them in batches. Rows receive their
// ids at flush time, so callers hand over value structs and never see an
// id until the row is durable.
type Writer struct {
	db        *gorm.DB
	log       *zap.Logger
	batchSize int

	addressPoints []AddressPoint
	buildings     []Building
	measures      []pendingMeasure
	images        []pendingImage
	pairs         []AddressPointBuilding

	counts Counts
}

func NewWriter(gdb *gorm.DB, log *zap.Logger, batchSize int) *Writer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Writer{db: gdb, log: log, batchSize: batchSize}
}

func (w *Writer) AddAddressPoint(ap AddressPoint) error {
	w.addressPoints = append(w.addressPoints, ap)
	if len(w.addressPoints) >= w.batchSize {
		return w.flushAddressPoints()
	}
	return nil
}

func (w *Writer) AddBuilding(b Building) error {
	w.buildings = append(w.buildings, b)
	if len(w.buildings) >= w.batchSize {
		return w.flushBuildings()
	}
	return nil
}

// AddMeasure buffers a floor measure together with the datasets it will
// be attributed to once it has an id.
func (w *Writer) AddMeasure(m FloorMeasure, datasetIDs []uuid.UUID) error {
	w.measures = append(w.measures, pendingMeasure{measure: m, datasets: datasetIDs})
	if len(w.measures) >= w.batchSize {
		return w.flushMeasures()
	}
	return nil
}

// AddImage buffers an image and the measure it documents.
func (w *Writer) AddImage(img FloorMeasureImage, measureID uuid.UUID) error {
	w.images = append(w.images, pendingImage{image: img, measureID: measureID})
	if len(w.images) >= w.batchSize {
		return w.flushImages()
	}
	return nil
}

// AddAssociation buffers one address-building pair. Callers are expected
// to deduplicate; the flush still runs with a conflict guard so a pair
// that already exists in the store is skipped, not an error.
func (w *Writer) AddAssociation(addressPointID, buildingID uuid.UUID) error {
	w.pairs = append(w.pairs, AddressPointBuilding{AddressPointID: addressPointID, BuildingID: buildingID})
	if len(w.pairs) >= w.batchSize {
		return w.flushPairs()
	}
	return nil
}

// Flush drains every buffer. Must be called once after the last Add; a
// Writer abandoned without Flush loses whatever is still buffered.
func (w *Writer) Flush() error {
	if err := w.flushAddressPoints(); err != nil {
		return err
	}
	if err := w.flushBuildings(); err != nil {
		return err
	}
	if err := w.flushMeasures(); err != nil {
		return err
	}
	if err := w.flushImages(); err != nil {
		return err
	}
	return w.flushPairs()
}

// Counts reports the rows persisted so far.
func (w *Writer) Counts() Counts { return w.counts }

func (w *Writer) flushAddressPoints() error {
	if len(w.addressPoints) == 0 {
		return nil
	}
	rows := w.addressPoints
	w.addressPoints = nil
	for i := range rows {
		if rows[i].ID == uuid.Nil {
			rows[i].ID = uuid.New()
		}
	}
	if err := w.db.CreateInBatches(&rows, w.batchSize).Error; err != nil {
		return fmt.Errorf("write address points: %w", err)
	}
	w.counts.AddressPoints += len(rows)
	w.log.Debug("flushed address points", zap.Int("rows", len(rows)))
	return nil
}

func (w *Writer) flushBuildings() error {
	if len(w.buildings) == 0 {
		return nil
	}
	rows := w.buildings
	w.buildings = nil
	for i := range rows {
		if rows[i].ID == uuid.Nil {
			rows[i].ID = uuid.New()
		}
	}
	if err := w.db.CreateInBatches(&rows, w.batchSize).Error; err != nil {
		return fmt.Errorf("write buildings: %w", err)
	}
	w.counts.Buildings += len(rows)
	w.log.Debug("flushed buildings", zap.Int("rows", len(rows)))
	return nil
}

func (w *Writer) flushMeasures() error {
	if len(w.measures) == 0 {
		return nil
	}
	pending := w.measures
	w.measures = nil

	rows := make([]FloorMeasure, len(pending))
	var links []FloorMeasureDataset
	for i, p := range pending {
		if p.measure.ID == uuid.Nil {
			p.measure.ID = uuid.New()
		}
		rows[i] = p.measure
		for _, ds := range p.datasets {
			links = append(links, FloorMeasureDataset{FloorMeasureID: p.measure.ID, DatasetID: ds})
		}
	}
	err := w.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.CreateInBatches(&rows, w.batchSize).Error; err != nil {
			return err
		}
		if len(links) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(&links, w.batchSize).Error
	})
	if err != nil {
		return fmt.Errorf("write floor measures: %w", err)
	}
	w.counts.Measures += len(rows)
	w.log.Debug("flushed floor measures", zap.Int("rows", len(rows)), zap.Int("dataset_links", len(links)))
	return nil
}

func (w *Writer) flushImages() error {
	if len(w.images) == 0 {
		return nil
	}
	pending := w.images
	w.images = nil

	rows := make([]FloorMeasureImage, len(pending))
	links := make([]FloorMeasureImageLink, len(pending))
	for i, p := range pending {
		if p.image.ID == uuid.Nil {
			p.image.ID = uuid.New()
		}
		rows[i] = p.image
		links[i] = FloorMeasureImageLink{FloorMeasureID: p.measureID, FloorMeasureImageID: p.image.ID}
	}
	err := w.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.CreateInBatches(&rows, w.batchSize).Error; err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(&links, w.batchSize).Error
	})
	if err != nil {
		return fmt.Errorf("write floor measure images: %w", err)
	}
	w.counts.Images += len(rows)
	w.log.Debug("flushed images", zap.Int("rows", len(rows)))
	return nil
}

func (w *Writer) flushPairs() error {
	if len(w.pairs) == 0 {
		return nil
	}
	rows := w.pairs
	w.pairs = nil
	err := w.db.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(&rows, w.batchSize).Error
	if err != nil {
		return fmt.Errorf("write address-building associations: %w", err)
	}
	w.counts.Associations += len(rows)
	w.log.Debug("flushed associations", zap.Int("rows", len(rows)))
	return nil
}
