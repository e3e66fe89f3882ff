package exporter

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	_ "modernc.org/sqlite"

	"github.com/floorheights/datamodel/internal/datamodel"
)

const gda2020WKT = `GEOGCS["GDA2020",DATUM["Geocentric_Datum_of_Australia_2020",` +
	`SPHEROID["GRS 1980",6378137,298.257222101]],PRIMEM["Greenwich",0],` +
	`UNIT["degree",0.0174532925199433],AUTHORITY["EPSG","7844"]]`

// exportGeoPackage writes both layers into one GeoPackage, creating the
// container tables a reader expects.
func exportGeoPackage(path string, buildings []datamodel.ExportBuilding, addresses []datamodel.ExportAddressPoint) error {
	// A fresh export, not an append; stale output is replaced.
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("create geopackage %s: %w", path, err)
	}
	defer db.Close()

	if err := createContainer(db); err != nil {
		return fmt.Errorf("geopackage %s: %w", path, err)
	}
	if err := writeBuildingLayer(db, buildings); err != nil {
		return fmt.Errorf("geopackage %s: %w", path, err)
	}
	if err := writeAddressLayer(db, addresses); err != nil {
		return fmt.Errorf("geopackage %s: %w", path, err)
	}
	return nil
}

func createContainer(db *sqlx.DB) error {
	stmts := []string{
		`PRAGMA application_id = 1196444487`, // "GPKG"
		`PRAGMA user_version = 10300`,
		`CREATE TABLE gpkg_spatial_ref_sys (
			srs_name TEXT NOT NULL,
			srs_id INTEGER PRIMARY KEY,
			organization TEXT NOT NULL,
			organization_coordsys_id INTEGER NOT NULL,
			definition TEXT NOT NULL,
			description TEXT)`,
		`CREATE TABLE gpkg_contents (
			table_name TEXT PRIMARY KEY,
			data_type TEXT NOT NULL,
			identifier TEXT UNIQUE,
			description TEXT DEFAULT '',
			last_change DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
			min_x DOUBLE, min_y DOUBLE, max_x DOUBLE, max_y DOUBLE,
			srs_id INTEGER)`,
		`CREATE TABLE gpkg_geometry_columns (
			table_name TEXT NOT NULL,
			column_name TEXT NOT NULL,
			geometry_type_name TEXT NOT NULL,
			srs_id INTEGER NOT NULL,
			z TINYINT NOT NULL,
			m TINYINT NOT NULL,
			PRIMARY KEY (table_name, column_name))`,
		`INSERT INTO gpkg_spatial_ref_sys VALUES
			('Undefined Cartesian', -1, 'NONE', -1, 'undefined', NULL),
			('Undefined Geographic', 0, 'NONE', 0, 'undefined', NULL),
			('WGS 84', 4326, 'EPSG', 4326,
			 'GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563]],PRIMEM["Greenwich",0],UNIT["degree",0.0174532925199433],AUTHORITY["EPSG","4326"]]',
			 NULL),
			('GDA2020', 7844, 'EPSG', 7844, '` + gda2020WKT + `', NULL)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("create container: %w", err)
		}
	}
	return nil
}

func registerLayer(tx *sqlx.Tx, table, geomType string, extent *orb.Bound) error {
	if _, err := tx.Exec(
		`INSERT INTO gpkg_geometry_columns VALUES (?, 'geom', ?, ?, 0, 0)`,
		table, geomType, datamodel.SRID); err != nil {
		return err
	}
	if extent == nil {
		_, err := tx.Exec(
			`INSERT INTO gpkg_contents (table_name, data_type, identifier, srs_id) VALUES (?, 'features', ?, ?)`,
			table, table, datamodel.SRID)
		return err
	}
	_, err := tx.Exec(
		`INSERT INTO gpkg_contents (table_name, data_type, identifier, min_x, min_y, max_x, max_y, srs_id)
		 VALUES (?, 'features', ?, ?, ?, ?, ?, ?)`,
		table, table, extent.Min[0], extent.Min[1], extent.Max[0], extent.Max[1], datamodel.SRID)
	return err
}

func writeBuildingLayer(db *sqlx.DB, buildings []datamodel.ExportBuilding) error {
	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`CREATE TABLE building (
		fid INTEGER PRIMARY KEY AUTOINCREMENT,
		geom BLOB NOT NULL,
		id TEXT NOT NULL,
		min_height_ahd REAL,
		max_height_ahd REAL,
		zone TEXT,
		addresses TEXT,
		methods TEXT,
		measure_count INTEGER)`); err != nil {
		return err
	}

	var extent *orb.Bound
	for _, b := range buildings {
		blob, err := geometryBlob(b.Outline.Polygon)
		if err != nil {
			return err
		}
		extent = extend(extent, b.Outline.Polygon.Bound())
		if _, err := tx.Exec(
			`INSERT INTO building (geom, id, min_height_ahd, max_height_ahd, zone, addresses, methods, measure_count)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			blob, b.ID.String(), b.MinHeightAHD, b.MaxHeightAHD, b.Zone, b.Addresses, b.MethodNames, b.MeasureCount); err != nil {
			return err
		}
	}
	if err := registerLayer(tx, "building", "POLYGON", extent); err != nil {
		return err
	}
	return tx.Commit()
}

func writeAddressLayer(db *sqlx.DB, addresses []datamodel.ExportAddressPoint) error {
	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`CREATE TABLE address_point (
		fid INTEGER PRIMARY KEY AUTOINCREMENT,
		geom BLOB NOT NULL,
		id TEXT NOT NULL,
		gnaf_id TEXT,
		address TEXT,
		geocode_type TEXT,
		primary_secondary TEXT,
		building_count INTEGER)`); err != nil {
		return err
	}

	var extent *orb.Bound
	for _, a := range addresses {
		blob, err := geometryBlob(a.Location.Point)
		if err != nil {
			return err
		}
		extent = extend(extent, a.Location.Point.Bound())
		if _, err := tx.Exec(
			`INSERT INTO address_point (geom, id, gnaf_id, address, geocode_type, primary_secondary, building_count)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			blob, a.ID.String(), a.GnafID, a.Address, a.GeocodeType, a.PrimarySecondary, a.BuildingCount); err != nil {
			return err
		}
	}
	if err := registerLayer(tx, "address_point", "POINT", extent); err != nil {
		return err
	}
	return tx.Commit()
}

func extend(extent *orb.Bound, b orb.Bound) *orb.Bound {
	if extent == nil {
		return &b
	}
	extent.Min[0] = math.Min(extent.Min[0], b.Min[0])
	extent.Min[1] = math.Min(extent.Min[1], b.Min[1])
	extent.Max[0] = math.Max(extent.Max[0], b.Max[0])
	extent.Max[1] = math.Max(extent.Max[1], b.Max[1])
	return extent
}

// geometryBlob wraps a geometry in the GeoPackage binary header: magic,
// little-endian flags with an XY envelope, the store SRS, then WKB.
func geometryBlob(g orb.Geometry) ([]byte, error) {
	body, err := wkb.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("encode geometry: %w", err)
	}
	b := g.Bound()
	header := make([]byte, 8+32)
	header[0], header[1] = 'G', 'P'
	header[2] = 0            // version
	header[3] = 0b00000011   // little-endian header, XY envelope
	binary.LittleEndian.PutUint32(header[4:8], uint32(datamodel.SRID))
	binary.LittleEndian.PutUint64(header[8:16], math.Float64bits(b.Min[0]))
	binary.LittleEndian.PutUint64(header[16:24], math.Float64bits(b.Max[0]))
	binary.LittleEndian.PutUint64(header[24:32], math.Float64bits(b.Min[1]))
	binary.LittleEndian.PutUint64(header[32:40], math.Float64bits(b.Max[1]))
	return append(header, body...), nil
}
