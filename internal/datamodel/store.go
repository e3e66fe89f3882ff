package datamodel

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Store is the read/lookup side of the persistence handle. One Store is
// constructed per command and shares that command's gorm session.
type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewStore(gdb *gorm.DB, log *zap.Logger) *Store {
	return &Store{db: gdb, log: log}
}

// DB exposes the underlying gorm session for the writer.
func (s *Store) DB() *gorm.DB { return s.db }

// FindOrCreateMethod returns the id of the named method, creating the row
// the first time the name is seen. The read and the conditional write run
// in one transaction so sequential commands never duplicate a name.
func (s *Store) FindOrCreateMethod(name string) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var m Method
		err := tx.Where("name = ?", name).First(&m).Error
		if err == nil {
			id = m.ID
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		fmt.Printf("Inserting %q into method table...\n", name)
		m = Method{ID: uuid.New(), Name: name}
		if err := tx.Create(&m).Error; err != nil {
			return err
		}
		id = m.ID
		return nil
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("find or create method %q: %w", name, err)
	}
	return id, nil
}

// FindOrCreateDataset mirrors FindOrCreateMethod for dataset rows.
// Description and source are only written on first creation; an existing
// row is reused untouched.
func (s *Store) FindOrCreateDataset(name string, description, source *string) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var d Dataset
		err := tx.Where("name = ?", name).First(&d).Error
		if err == nil {
			id = d.ID
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		fmt.Printf("Inserting %q into dataset table...\n", name)
		d = Dataset{ID: uuid.New(), Name: name, Description: description, Source: source}
		if err := tx.Create(&d).Error; err != nil {
			return err
		}
		id = d.ID
		return nil
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("find or create dataset %q: %w", name, err)
	}
	return id, nil
}

// BuildingOutline is the slice of a building the spatial join engine
// indexes.
type BuildingOutline struct {
	ID      uuid.UUID
	Outline Polygon
}

// BuildingOutlines streams every building outline in insertion order.
// Insertion order is what makes the largest-building tie-break stable
// across runs.
func (s *Store) BuildingOutlines() ([]BuildingOutline, error) {
	var rows []BuildingOutline
	err := s.db.Raw(`SELECT id, outline FROM building ORDER BY id`).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load building outlines: %w", err)
	}
	return rows, nil
}

// AddressPointRow carries the fields the associator needs.
type AddressPointRow struct {
	ID          uuid.UUID
	GnafID      string  `gorm:"column:gnaf_id"`
	GeocodeType *string `gorm:"column:geocode_type"`
	Location    Point
}

// AddressPointRows loads every address point.
func (s *Store) AddressPointRows() ([]AddressPointRow, error) {
	var rows []AddressPointRow
	err := s.db.Raw(`SELECT id, gnaf_id, geocode_type, location FROM address_point ORDER BY id`).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load address points: %w", err)
	}
	return rows, nil
}

// ExistingAddressBuildingPairs returns the association pairs already in
// the store so a re-run of the join command never re-inserts one.
func (s *Store) ExistingAddressBuildingPairs() (map[[2]uuid.UUID]struct{}, error) {
	var rows []AddressPointBuilding
	if err := s.db.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load existing address-building pairs: %w", err)
	}
	pairs := make(map[[2]uuid.UUID]struct{}, len(rows))
	for _, r := range rows {
		pairs[[2]uuid.UUID{r.AddressPointID, r.BuildingID}] = struct{}{}
	}
	return pairs, nil
}

// BuildingsByGnaf maps each requested registry id to the buildings
// associated with its address points. Used by measurement sources that
// carry a registry id instead of a usable geometry.
func (s *Store) BuildingsByGnaf(gnafIDs []string) (map[string][]uuid.UUID, error) {
	if len(gnafIDs) == 0 {
		return map[string][]uuid.UUID{}, nil
	}
	type pair struct {
		GnafID     string    `gorm:"column:gnaf_id"`
		BuildingID uuid.UUID `gorm:"column:building_id"`
	}
	var rows []pair
	err := s.db.Raw(`
		SELECT ap.gnaf_id, assoc.building_id
		FROM address_point ap
		JOIN address_point_building_association assoc ON assoc.address_point_id = ap.id
		WHERE ap.gnaf_id = ANY(?::text[])
		ORDER BY ap.gnaf_id, assoc.building_id`, pq.Array(gnafIDs)).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("map gnaf ids to buildings: %w", err)
	}
	out := make(map[string][]uuid.UUID)
	for _, r := range rows {
		out[r.GnafID] = append(out[r.GnafID], r.BuildingID)
	}
	return out, nil
}

// ExistingBuildingIDs filters ids down to the ones present in the store.
// Bulk adapters validate their pre-joined building references through
// this before writing measures.
func (s *Store) ExistingBuildingIDs(ids []uuid.UUID) (map[uuid.UUID]struct{}, error) {
	out := make(map[uuid.UUID]struct{}, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}
	var found []uuid.UUID
	err := s.db.Raw(`SELECT id FROM building WHERE id = ANY(?::uuid[])`, pq.Array(strs)).Scan(&found).Error
	if err != nil {
		return nil, fmt.Errorf("check building ids: %w", err)
	}
	for _, id := range found {
		out[id] = struct{}{}
	}
	return out, nil
}

// MeasureIDsWithoutImages returns, in insertion order, the measures
// produced by the named method that have no imagery attached yet.
func (s *Store) MeasureIDsWithoutImages(methodName string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.db.Raw(`
		SELECT fm.id
		FROM floor_measure fm
		JOIN method m ON m.id = fm.method_id
		LEFT JOIN floor_measure_floor_measure_image_association link
			ON link.floor_measure_id = fm.id
		WHERE m.name = ? AND link.floor_measure_id IS NULL
		ORDER BY fm.id`, methodName).Scan(&ids).Error
	if err != nil {
		return nil, fmt.Errorf("load measures without images: %w", err)
	}
	return ids, nil
}

// ExportBuilding is one building with its joined attributes, shaped for
// the vector export.
type ExportBuilding struct {
	ID           uuid.UUID
	Outline      Polygon
	MinHeightAHD *float64 `gorm:"column:min_height_ahd"`
	MaxHeightAHD *float64 `gorm:"column:max_height_ahd"`
	Zone         *string
	Addresses    *string
	MethodNames  *string `gorm:"column:method_names"`
	MeasureCount int     `gorm:"column:measure_count"`
}

// ExportBuildings loads every building with aggregated address and
// measurement attributes, optionally restricted to a bounding box in the
// store CRS.
func (s *Store) ExportBuildings(bbox *[4]float64) ([]ExportBuilding, error) {
	query := `
		SELECT b.id, b.outline, b.min_height_ahd, b.max_height_ahd, b.zone,
			STRING_AGG(DISTINCT ap.address, '; ') AS addresses,
			STRING_AGG(DISTINCT m.name, ', ') AS method_names,
			COUNT(DISTINCT fm.id) AS measure_count
		FROM building b
		LEFT JOIN address_point_building_association assoc ON assoc.building_id = b.id
		LEFT JOIN address_point ap ON ap.id = assoc.address_point_id
		LEFT JOIN floor_measure fm ON fm.building_id = b.id
		LEFT JOIN method m ON m.id = fm.method_id`
	args := []interface{}{}
	if bbox != nil {
		query += fmt.Sprintf(` WHERE b.outline && ST_MakeEnvelope(?, ?, ?, ?, %d)`, SRID)
		args = append(args, bbox[0], bbox[1], bbox[2], bbox[3])
	}
	query += ` GROUP BY b.id ORDER BY b.id`

	var rows []ExportBuilding
	if err := s.db.Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("export buildings: %w", err)
	}
	return rows, nil
}

// ExportAddressPoint is one address point shaped for the vector export.
type ExportAddressPoint struct {
	ID               uuid.UUID
	GnafID           string `gorm:"column:gnaf_id"`
	Address          string
	GeocodeType      *string `gorm:"column:geocode_type"`
	PrimarySecondary *string `gorm:"column:primary_secondary"`
	Location         Point
	BuildingCount    int `gorm:"column:building_count"`
}

// ExportAddressPoints loads every address point with its association
// count, optionally restricted to a bounding box in the store CRS.
func (s *Store) ExportAddressPoints(bbox *[4]float64) ([]ExportAddressPoint, error) {
	query := `
		SELECT ap.id, ap.gnaf_id, ap.address, ap.geocode_type, ap.primary_secondary,
			ap.location, COUNT(assoc.building_id) AS building_count
		FROM address_point ap
		LEFT JOIN address_point_building_association assoc ON assoc.address_point_id = ap.id`
	args := []interface{}{}
	if bbox != nil {
		query += fmt.Sprintf(` WHERE ap.location && ST_MakeEnvelope(?, ?, ?, ?, %d)`, SRID)
		args = append(args, bbox[0], bbox[1], bbox[2], bbox[3])
	}
	query += ` GROUP BY ap.id ORDER BY ap.id`

	var rows []ExportAddressPoint
	if err := s.db.Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("export address points: %w", err)
	}
	return rows, nil
}
