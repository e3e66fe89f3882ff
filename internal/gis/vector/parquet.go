package vector

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"

	"github.com/parquet-go/parquet-go"
	"github.com/paulmach/orb/encoding/wkb"
)

type geoParquetMeta struct {
	PrimaryColumn string                     `json:"primary_column"`
	Columns       map[string]json.RawMessage `json:"columns"`
}

var crsCodeRe = regexp.MustCompile(`"code"\s*:\s*"?(\d+)"?`)

// loadGeoParquet reads a GeoParquet file with WKB-encoded geometry. The
// primary geometry column and source CRS come from the file's geo
// metadata; a file without it must still carry a "geometry" column and
// is taken as WGS 84.
func loadGeoParquet(path string) ([]Feature, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoparquet %s: %w", path, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat geoparquet %s: %w", path, err)
	}
	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("parse geoparquet %s: %w", path, err)
	}

	geomColumn, epsg := "geometry", 4326
	if raw, ok := pf.Lookup("geo"); ok {
		var meta geoParquetMeta
		if err := json.Unmarshal([]byte(raw), &meta); err != nil {
			return nil, fmt.Errorf("parse geoparquet metadata %s: %w", path, err)
		}
		if meta.PrimaryColumn != "" {
			geomColumn = meta.PrimaryColumn
		}
		if col, ok := meta.Columns[geomColumn]; ok {
			if m := crsCodeRe.FindSubmatch(col); m != nil {
				fmt.Sscanf(string(m[1]), "%d", &epsg)
			}
		}
	}

	fields := pf.Schema().Fields()
	names := make([]string, len(fields))
	geomIdx := -1
	for i, fld := range fields {
		names[i] = fld.Name()
		if fld.Name() == geomColumn {
			geomIdx = i
		}
	}
	if geomIdx < 0 {
		return nil, fmt.Errorf("geoparquet %s has no %q column", path, geomColumn)
	}

	var feats []Feature
	buf := make([]parquet.Row, 256)
	for _, rg := range pf.RowGroups() {
		rows := rg.Rows()
		for {
			n, err := rows.ReadRows(buf)
			for _, row := range buf[:n] {
				feat, convErr := parquetFeature(row, names, geomIdx)
				if convErr != nil {
					rows.Close()
					return nil, fmt.Errorf("geoparquet %s: %w", path, convErr)
				}
				feats = append(feats, feat)
			}
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("read geoparquet %s: %w", path, err)
			}
		}
		if err := rows.Close(); err != nil {
			return nil, fmt.Errorf("read geoparquet %s: %w", path, err)
		}
	}
	return normalizeFeatures(feats, epsg)
}

func parquetFeature(row parquet.Row, names []string, geomIdx int) (Feature, error) {
	feat := Feature{Attrs: make(map[string]any, len(names)-1)}
	for _, v := range row {
		ci := v.Column()
		if ci < 0 || ci >= len(names) {
			continue
		}
		if ci == geomIdx {
			if v.IsNull() {
				continue
			}
			geom, err := wkb.Unmarshal(v.ByteArray())
			if err != nil {
				return Feature{}, fmt.Errorf("decode geometry wkb: %w", err)
			}
			feat.Geometry = geom
			continue
		}
		feat.Attrs[names[ci]] = parquetValue(v)
	}
	return feat, nil
}

func parquetValue(v parquet.Value) any {
	if v.IsNull() {
		return nil
	}
	switch v.Kind() {
	case parquet.Boolean:
		return v.Boolean()
	case parquet.Int32:
		return int64(v.Int32())
	case parquet.Int64:
		return v.Int64()
	case parquet.Float:
		return float64(v.Float())
	case parquet.Double:
		return v.Double()
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	default:
		return v.String()
	}
}

// readParquetTable reads a non-spatial parquet delivery as a string
// table, for the bulk measurement ingesters.
func readParquetTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open parquet %s: %w", path, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat parquet %s: %w", path, err)
	}
	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("parse parquet %s: %w", path, err)
	}

	fields := pf.Schema().Fields()
	header := make([]string, len(fields))
	for i, fld := range fields {
		header[i] = fld.Name()
	}

	table := &Table{Header: header}
	buf := make([]parquet.Row, 256)
	for _, rg := range pf.RowGroups() {
		rows := rg.Rows()
		for {
			n, err := rows.ReadRows(buf)
			for _, row := range buf[:n] {
				record := make([]string, len(header))
				for _, v := range row {
					ci := v.Column()
					if ci < 0 || ci >= len(record) {
						continue
					}
					record[ci] = stringifyParquet(v)
				}
				table.Rows = append(table.Rows, record)
			}
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("read parquet %s: %w", path, err)
			}
		}
		if err := rows.Close(); err != nil {
			return nil, fmt.Errorf("read parquet %s: %w", path, err)
		}
	}
	return table, nil
}

func stringifyParquet(v parquet.Value) string {
	if v.IsNull() {
		return ""
	}
	switch v.Kind() {
	case parquet.Boolean:
		return strconv.FormatBool(v.Boolean())
	case parquet.Int32:
		return strconv.FormatInt(int64(v.Int32()), 10)
	case parquet.Int64:
		return strconv.FormatInt(v.Int64(), 10)
	case parquet.Float:
		return strconv.FormatFloat(float64(v.Float()), 'f', -1, 32)
	case parquet.Double:
		return strconv.FormatFloat(v.Double(), 'f', -1, 64)
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	default:
		return v.String()
	}
}
