package vector

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	_ "modernc.org/sqlite"
)

type gpkgLayer struct {
	TableName  string `db:"table_name"`
	SRSID      int    `db:"srs_id"`
	GeomColumn string `db:"column_name"`
}

// loadGeoPackage reads one feature table from a GeoPackage. The layer
// option picks the table when the package holds more than one.
func loadGeoPackage(path string, opts Options) ([]Feature, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open geopackage %s: %w", path, err)
	}
	defer db.Close()

	var layers []gpkgLayer
	err = db.Select(&layers, `
		SELECT c.table_name, c.srs_id, g.column_name
		FROM gpkg_contents c
		JOIN gpkg_geometry_columns g ON g.table_name = c.table_name
		WHERE c.data_type = 'features'
		ORDER BY c.table_name`)
	if err != nil {
		return nil, fmt.Errorf("read geopackage contents %s: %w", path, err)
	}
	if len(layers) == 0 {
		return nil, fmt.Errorf("geopackage %s holds no feature tables", path)
	}

	layer, err := selectLayer(layers, opts.Layer, path)
	if err != nil {
		return nil, err
	}
	epsg := layer.SRSID
	if epsg <= 0 {
		epsg = opts.AssumeEPSG
	}

	rows, err := db.Queryx(fmt.Sprintf(`SELECT * FROM %s`, quoteIdent(layer.TableName)))
	if err != nil {
		return nil, fmt.Errorf("read geopackage layer %s: %w", layer.TableName, err)
	}
	defer rows.Close()

	var feats []Feature
	for rows.Next() {
		record := map[string]interface{}{}
		if err := rows.MapScan(record); err != nil {
			return nil, fmt.Errorf("scan geopackage row: %w", err)
		}
		var geom orb.Geometry
		attrs := make(map[string]any, len(record))
		for col, val := range record {
			if col == layer.GeomColumn {
				blob, ok := val.([]byte)
				if !ok || len(blob) == 0 {
					continue
				}
				geom, err = parseGeoPackageBlob(blob)
				if err != nil {
					return nil, fmt.Errorf("layer %s: %w", layer.TableName, err)
				}
				continue
			}
			if b, ok := val.([]byte); ok {
				attrs[col] = string(b)
			} else {
				attrs[col] = val
			}
		}
		feats = append(feats, Feature{Geometry: geom, Attrs: attrs})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read geopackage layer %s: %w", layer.TableName, err)
	}
	return normalizeFeatures(feats, epsg)
}

func selectLayer(layers []gpkgLayer, want, path string) (gpkgLayer, error) {
	if want == "" {
		if len(layers) == 1 {
			return layers[0], nil
		}
		names := make([]string, len(layers))
		for i, l := range layers {
			names[i] = l.TableName
		}
		return gpkgLayer{}, fmt.Errorf("geopackage %s holds %d feature tables (%s); pick one with the layer option",
			path, len(layers), strings.Join(names, ", "))
	}
	for _, l := range layers {
		if l.TableName == want {
			return l, nil
		}
	}
	return gpkgLayer{}, fmt.Errorf("geopackage %s has no feature table %q", path, want)
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

var envelopeSize = map[byte]int{0: 0, 1: 32, 2: 48, 3: 48, 4: 64}

// parseGeoPackageBlob unwraps the GeoPackage geometry header and decodes
// the WKB body.
func parseGeoPackageBlob(blob []byte) (orb.Geometry, error) {
	if len(blob) < 8 || blob[0] != 'G' || blob[1] != 'P' {
		return nil, fmt.Errorf("not a geopackage geometry blob")
	}
	flags := blob[3]
	if flags&(1<<4) != 0 { // empty geometry
		return nil, nil
	}
	envLen, ok := envelopeSize[(flags>>1)&7]
	if !ok {
		return nil, fmt.Errorf("geopackage geometry blob: invalid envelope indicator %d", (flags>>1)&7)
	}
	offset := 8 + envLen
	if len(blob) <= offset {
		return nil, fmt.Errorf("geopackage geometry blob truncated")
	}
	geom, err := wkb.Unmarshal(blob[offset:])
	if err != nil {
		return nil, fmt.Errorf("decode geometry wkb: %w", err)
	}
	return geom, nil
}
