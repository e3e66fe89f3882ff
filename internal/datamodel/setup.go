package datamodel

import (
	"fmt"

	"gorm.io/gorm"
)

// Migrate creates the schema: the PostGIS extension, every entity table
// and the spatial indexes AutoMigrate cannot express.
func Migrate(gdb *gorm.DB) error {
	if err := gdb.Exec(`CREATE EXTENSION IF NOT EXISTS postgis`).Error; err != nil {
		return fmt.Errorf("enable postgis extension: %w", err)
	}

	if err := gdb.AutoMigrate(
		&AddressPoint{},
		&Building{},
		&Method{},
		&Dataset{},
		&FloorMeasure{},
		&FloorMeasureImage{},
	); err != nil {
		return fmt.Errorf("auto-migrate tables: %w", err)
	}

	// GIST indexes for the serving layer's bounding-box queries.
	spatialIndexes := []struct{ name, table, column string }{
		{"idx_address_point_location", "address_point", "location"},
		{"idx_building_outline", "building", "outline"},
		{"idx_floor_measure_location", "floor_measure", "location"},
	}
	for _, idx := range spatialIndexes {
		stmt := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING gist (%s)`,
			idx.name, idx.table, idx.column)
		if err := gdb.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create index %s: %w", idx.name, err)
		}
	}

	return nil
}
