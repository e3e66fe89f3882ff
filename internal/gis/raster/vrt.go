package raster

import (
	"encoding/xml"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/floorheights/datamodel/internal/gis"
)

type vrtDataset struct {
	XMLName      xml.Name  `xml:"VRTDataset"`
	RasterXSize  int       `xml:"rasterXSize,attr"`
	RasterYSize  int       `xml:"rasterYSize,attr"`
	SRS          string    `xml:"SRS"`
	GeoTransform string    `xml:"GeoTransform"`
	Bands        []vrtBand `xml:"VRTRasterBand"`
}

type vrtBand struct {
	Band        int         `xml:"band,attr"`
	NoDataValue string      `xml:"NoDataValue"`
	Simple      []vrtSource `xml:"SimpleSource"`
	Complex     []vrtSource `xml:"ComplexSource"`
}

type vrtSource struct {
	Filename vrtFilename `xml:"SourceFilename"`
}

type vrtFilename struct {
	RelativeToVRT int    `xml:"relativeToVRT,attr"`
	Path          string `xml:",chardata"`
}

// VRT is a virtual mosaic over GeoTIFF tiles. Samples are answered by
// the first tile that covers the point with a defined value, which
// matches mosaic semantics for non-overlapping elevation tiles.
type VRT struct {
	bounds  orb.Bound
	dx, dy  float64
	nodata  *float64
	sources []*GeoTIFF
}

// OpenVRT opens a VRT mosaic and every GeoTIFF it references.
func OpenVRT(path string) (*VRT, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open mosaic: %w", err)
	}
	var ds vrtDataset
	if err := xml.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("parse mosaic %s: %w", path, err)
	}
	if len(ds.Bands) == 0 {
		return nil, fmt.Errorf("mosaic %s declares no raster band", path)
	}

	if srs := strings.TrimSpace(ds.SRS); srs != "" {
		epsg, err := vrtEPSG(srs)
		if err != nil {
			return nil, fmt.Errorf("mosaic %s: %w", path, err)
		}
		if epsg != 0 && !gis.CompatibleEPSG(epsg) {
			return nil, fmt.Errorf("mosaic %s: %w: mosaic is EPSG:%d; reproject it to the store CRS first",
				path, gis.ErrUnresolvedCRS, epsg)
		}
	}

	band := ds.Bands[0]
	v := &VRT{}
	if s := strings.TrimSpace(band.NoDataValue); s != "" {
		if nd, err := strconv.ParseFloat(s, 64); err == nil {
			v.nodata = &nd
		}
	}

	refs := append(append([]vrtSource(nil), band.Simple...), band.Complex...)
	if len(refs) == 0 {
		return nil, fmt.Errorf("mosaic %s references no source rasters", path)
	}
	dir := filepath.Dir(path)
	for _, ref := range refs {
		name := strings.TrimSpace(ref.Filename.Path)
		if name == "" {
			continue
		}
		if ref.Filename.RelativeToVRT == 1 {
			name = filepath.Join(dir, name)
		}
		src, err := OpenGeoTIFF(name)
		if err != nil {
			v.Close()
			return nil, fmt.Errorf("mosaic %s: %w", path, err)
		}
		v.sources = append(v.sources, src)
	}
	if len(v.sources) == 0 {
		v.Close()
		return nil, fmt.Errorf("mosaic %s references no readable source rasters", path)
	}

	if err := v.georeference(ds); err != nil {
		v.Close()
		return nil, fmt.Errorf("mosaic %s: %w", path, err)
	}
	return v, nil
}

// georeference derives the mosaic extent and cell size, preferring the
// dataset's own geotransform and falling back to the union of tiles.
func (v *VRT) georeference(ds vrtDataset) error {
	if gt := strings.TrimSpace(ds.GeoTransform); gt != "" && ds.RasterXSize > 0 && ds.RasterYSize > 0 {
		parts := strings.Split(gt, ",")
		if len(parts) != 6 {
			return fmt.Errorf("malformed geotransform %q", gt)
		}
		var num [6]float64
		for i, p := range parts {
			f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return fmt.Errorf("malformed geotransform %q: %w", gt, err)
			}
			num[i] = f
		}
		if num[2] != 0 || num[4] != 0 {
			return fmt.Errorf("rotated mosaics are not supported")
		}
		x0, dx, y0, dy := num[0], num[1], num[3], -num[5]
		if dx <= 0 || dy <= 0 {
			return fmt.Errorf("degenerate geotransform %q", gt)
		}
		v.dx, v.dy = dx, dy
		v.bounds = orb.Bound{
			Min: orb.Point{x0, y0 - float64(ds.RasterYSize)*dy},
			Max: orb.Point{x0 + float64(ds.RasterXSize)*dx, y0},
		}
		return nil
	}

	v.dx, v.dy = v.sources[0].Resolution()
	b := v.sources[0].Bounds()
	for _, src := range v.sources[1:] {
		sb := src.Bounds()
		b.Min[0] = math.Min(b.Min[0], sb.Min[0])
		b.Min[1] = math.Min(b.Min[1], sb.Min[1])
		b.Max[0] = math.Max(b.Max[0], sb.Max[0])
		b.Max[1] = math.Max(b.Max[1], sb.Max[1])
	}
	v.bounds = b
	return nil
}

func vrtEPSG(srs string) (int, error) {
	if i := strings.Index(strings.ToUpper(srs), "EPSG:"); i >= 0 {
		code, err := strconv.Atoi(strings.TrimSpace(srs[i+5:]))
		if err == nil {
			return code, nil
		}
	}
	return gis.EPSGFromWKT(srs)
}

func (v *VRT) Bounds() orb.Bound { return v.bounds }

func (v *VRT) Resolution() (float64, float64) { return v.dx, v.dy }

func (v *VRT) Sample(pt orb.Point) (float64, bool, error) {
	for _, src := range v.sources {
		if !src.Bounds().Contains(pt) {
			continue
		}
		val, ok, err := src.Sample(pt)
		if err != nil {
			return 0, false, err
		}
		if !ok {
			continue
		}
		if v.nodata != nil && val == *v.nodata {
			continue
		}
		return val, true, nil
	}
	return 0, false, nil
}

func (v *VRT) Close() error {
	var first error
	for _, src := range v.sources {
		if err := src.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
