package datamodel

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AddressPoint is one geocoded address from the national registry.
// Immutable once ingested.
type AddressPoint struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	GnafID           string    `gorm:"column:gnaf_id;type:varchar(15);not null;index"`
	Address          string    `gorm:"not null"`
	GeocodeType      *string
	PrimarySecondary *string `gorm:"type:varchar(1)"`
	Location         Point   `gorm:"not null"`

	Buildings []*Building `gorm:"many2many:address_point_building_association"`
}

func (AddressPoint) TableName() string { return "address_point" }

// Building is one post-decomposition footprint fragment. The elevation
// envelope stays nil when the raster sample over the outline is entirely
// undefined; a sentinel value is never written.
type Building struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Outline      Polygon   `gorm:"not null"`
	MinHeightAHD *float64  `gorm:"column:min_height_ahd"`
	MaxHeightAHD *float64  `gorm:"column:max_height_ahd"`
	Zone         *string

	AddressPoints []*AddressPoint `gorm:"many2many:address_point_building_association"`
	FloorMeasures []FloorMeasure  `gorm:"foreignKey:BuildingID"`
}

func (Building) TableName() string { return "building" }

// Method is a measurement technique, unique by name across the store.
type Method struct {
	ID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name string    `gorm:"not null;uniqueIndex"`
}

func (Method) TableName() string { return "method" }

// Dataset is a named source of measurements, unique by name across the
// store.
type Dataset struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name        string    `gorm:"not null;uniqueIndex"`
	Description *string
	Source      *string

	FloorMeasures []*FloorMeasure `gorm:"many2many:floor_measure_dataset_association"`
}

func (Dataset) TableName() string { return "dataset" }

// FloorMeasure is one measurement of one storey's floor height for one
// building. Rows are never updated; corrections are new rows.
type FloorMeasure struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Storey     int       `gorm:"not null"`
	Height     float64   `gorm:"not null"`
	RangeLower *float64
	RangeUpper *float64
	Confidence *float64
	AuxInfo    datatypes.JSON `gorm:"column:aux_info;type:jsonb"`
	Location   *Point

	BuildingID uuid.UUID `gorm:"type:uuid;not null;index"`
	Building   *Building
	MethodID   uuid.UUID `gorm:"type:uuid;not null"`
	Method     *Method

	Datasets []*Dataset           `gorm:"many2many:floor_measure_dataset_association"`
	Images   []*FloorMeasureImage `gorm:"many2many:floor_measure_floor_measure_image_association"`
}

func (FloorMeasure) TableName() string { return "floor_measure" }

// FloorMeasureImage is a binary imagery artifact (panorama or
// LIDAR-rendered) attached to a measurement.
type FloorMeasureImage struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Filename  string    `gorm:"not null"`
	Image     []byte    `gorm:"type:bytea;not null"`
	ImageType string    `gorm:"not null"`
}

func (FloorMeasureImage) TableName() string { return "floor_measure_image" }

// Association rows are inserted through these explicit structs so the
// writer can batch them with ON CONFLICT DO NOTHING; the entities above
// declare the same tables for reads.

type AddressPointBuilding struct {
	AddressPointID uuid.UUID `gorm:"type:uuid;primaryKey"`
	BuildingID     uuid.UUID `gorm:"type:uuid;primaryKey"`
}

func (AddressPointBuilding) TableName() string { return "address_point_building_association" }

type FloorMeasureDataset struct {
	FloorMeasureID uuid.UUID `gorm:"type:uuid;primaryKey"`
	DatasetID      uuid.UUID `gorm:"type:uuid;primaryKey"`
}

func (FloorMeasureDataset) TableName() string { return "floor_measure_dataset_association" }

type FloorMeasureImageLink struct {
	FloorMeasureID      uuid.UUID `gorm:"type:uuid;primaryKey"`
	FloorMeasureImageID uuid.UUID `gorm:"type:uuid;primaryKey"`
}

func (FloorMeasureImageLink) TableName() string {
	return "floor_measure_floor_measure_image_association"
}
