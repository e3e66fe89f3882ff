package raster

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/floorheights/datamodel/internal/gis"
)

// Tags read from the image file directory. Elevation products are
// single-band north-up rasters, which keeps the decoder small; anything
// outside that shape is rejected at open time with a reason.
const (
	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagCompression     = 259
	tagStripOffsets    = 273
	tagSamplesPerPixel = 277
	tagRowsPerStrip    = 278
	tagStripByteCounts = 279
	tagPredictor       = 317
	tagTileWidth       = 322
	tagTileLength      = 323
	tagTileOffsets     = 324
	tagTileByteCounts  = 325
	tagSampleFormat    = 339
	tagModelPixelScale = 33550
	tagModelTiepoint   = 33922
	tagGeoKeyDirectory = 34735
	tagGDALNoData      = 42113
)

const (
	compressionNone        = 1
	compressionZlib        = 8
	compressionDeflateOld  = 32946
	sampleFormatUnsigned   = 1
	sampleFormatSigned     = 2
	sampleFormatFloat      = 3
	geoKeyGeographicCRS    = 2048
	geoKeyProjectedCRS     = 3072
	geoKeyValueUserDefined = 32767
)

// maxCachedBlocks bounds the decoded strip/tile cache per raster.
const maxCachedBlocks = 64

// GeoTIFF is a single-band elevation raster backed by a file on disk.
// Strips or tiles are decoded on demand and cached.
type GeoTIFF struct {
	path  string
	f     *os.File
	order binary.ByteOrder

	width, height  int
	bits           int
	format         int
	compression    int
	predictorFixed bool

	tiled              bool
	rowsPerStrip       int
	tileWidth, tileHgt int
	offsets, counts    []int64

	originX, originY float64
	dx, dy           float64

	nodata *float64
	epsg   int

	blocks map[int][]byte
}

type ifdEntry struct {
	typ   uint16
	count uint32
	value []byte
}

var typeSize = map[uint16]int{
	1: 1, 2: 1, 3: 2, 4: 4, 5: 8, 6: 1, 7: 1, 8: 2, 9: 4, 10: 8, 11: 4, 12: 8,
}

// OpenGeoTIFF opens a single-band GeoTIFF elevation raster. The raster
// must be north-up, uncompressed or deflate-compressed, and already in
// a geographic CRS compatible with the store.
func OpenGeoTIFF(path string) (*GeoTIFF, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open raster: %w", err)
	}
	g, err := parseGeoTIFF(f, path)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("raster %s: %w", path, err)
	}
	return g, nil
}

func parseGeoTIFF(f *os.File, path string) (*GeoTIFF, error) {
	var hdr [8]byte
	if _, err := io.ReadFull(f, hdr[:]); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	var order binary.ByteOrder
	switch {
	case hdr[0] == 'I' && hdr[1] == 'I':
		order = binary.LittleEndian
	case hdr[0] == 'M' && hdr[1] == 'M':
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("not a TIFF file")
	}
	switch magic := order.Uint16(hdr[2:4]); magic {
	case 42:
	case 43:
		return nil, fmt.Errorf("BigTIFF is not supported; rewrite the raster as classic TIFF")
	default:
		return nil, fmt.Errorf("not a TIFF file (magic %d)", magic)
	}

	entries, err := readIFD(f, order, int64(order.Uint32(hdr[4:8])))
	if err != nil {
		return nil, err
	}

	g := &GeoTIFF{
		path:   path,
		f:      f,
		order:  order,
		blocks: make(map[int][]byte),
	}
	if err := g.configure(entries); err != nil {
		return nil, err
	}
	return g, nil
}

func readIFD(f *os.File, order binary.ByteOrder, offset int64) (map[uint16]ifdEntry, error) {
	var countBuf [2]byte
	if _, err := f.ReadAt(countBuf[:], offset); err != nil {
		return nil, fmt.Errorf("read IFD: %w", err)
	}
	n := int(order.Uint16(countBuf[:]))
	raw := make([]byte, n*12)
	if _, err := f.ReadAt(raw, offset+2); err != nil {
		return nil, fmt.Errorf("read IFD entries: %w", err)
	}

	entries := make(map[uint16]ifdEntry, n)
	for i := 0; i < n; i++ {
		e := raw[i*12 : i*12+12]
		tag := order.Uint16(e[0:2])
		typ := order.Uint16(e[2:4])
		count := order.Uint32(e[4:8])
		size, ok := typeSize[typ]
		if !ok {
			continue
		}
		total := size * int(count)
		var value []byte
		if total <= 4 {
			value = append([]byte(nil), e[8:8+total]...)
		} else {
			value = make([]byte, total)
			if _, err := f.ReadAt(value, int64(order.Uint32(e[8:12]))); err != nil {
				return nil, fmt.Errorf("read tag %d value: %w", tag, err)
			}
		}
		entries[tag] = ifdEntry{typ: typ, count: count, value: value}
	}
	return entries, nil
}

func (g *GeoTIFF) configure(entries map[uint16]ifdEntry) error {
	width, ok := g.uintTag(entries, tagImageWidth)
	if !ok {
		return fmt.Errorf("missing image width")
	}
	height, ok := g.uintTag(entries, tagImageLength)
	if !ok {
		return fmt.Errorf("missing image length")
	}
	g.width, g.height = int(width), int(height)

	if spp, ok := g.uintTag(entries, tagSamplesPerPixel); ok && spp != 1 {
		return fmt.Errorf("%d samples per pixel; only single-band rasters are supported", spp)
	}
	bits := uint64(1)
	if v, ok := g.uintTag(entries, tagBitsPerSample); ok {
		bits = v
	}
	g.bits = int(bits)
	g.format = sampleFormatUnsigned
	if v, ok := g.uintTag(entries, tagSampleFormat); ok {
		g.format = int(v)
	}
	if !supportedSample(g.format, g.bits) {
		return fmt.Errorf("sample format %d with %d bits is not supported", g.format, g.bits)
	}

	g.compression = compressionNone
	if v, ok := g.uintTag(entries, tagCompression); ok {
		g.compression = int(v)
	}
	switch g.compression {
	case compressionNone, compressionZlib, compressionDeflateOld:
	default:
		return fmt.Errorf("compression %d is not supported; rewrite the raster with DEFLATE or no compression", g.compression)
	}
	if v, ok := g.uintTag(entries, tagPredictor); ok && v != 1 {
		return fmt.Errorf("predictor %d is not supported", v)
	}

	if _, tiled := entries[tagTileOffsets]; tiled {
		g.tiled = true
		tw, _ := g.uintTag(entries, tagTileWidth)
		th, _ := g.uintTag(entries, tagTileLength)
		if tw == 0 || th == 0 {
			return fmt.Errorf("tiled raster missing tile dimensions")
		}
		g.tileWidth, g.tileHgt = int(tw), int(th)
		g.offsets = g.uintSliceInt64(g.uintSlice(entries, tagTileOffsets))
		g.counts = g.uintSliceInt64(g.uintSlice(entries, tagTileByteCounts))
	} else {
		g.rowsPerStrip = g.height
		if v, ok := g.uintTag(entries, tagRowsPerStrip); ok && v > 0 {
			g.rowsPerStrip = int(v)
		}
		g.offsets = g.uintSliceInt64(g.uintSlice(entries, tagStripOffsets))
		g.counts = g.uintSliceInt64(g.uintSlice(entries, tagStripByteCounts))
	}
	if len(g.offsets) == 0 {
		return fmt.Errorf("raster holds no pixel data")
	}

	scale := g.doubleSlice(entries, tagModelPixelScale)
	tiepoint := g.doubleSlice(entries, tagModelTiepoint)
	if len(scale) < 2 || len(tiepoint) < 6 {
		return fmt.Errorf("missing georeferencing (pixel scale and tiepoint)")
	}
	g.dx, g.dy = scale[0], scale[1]
	if g.dx <= 0 || g.dy <= 0 {
		return fmt.Errorf("degenerate pixel scale %g x %g", g.dx, g.dy)
	}
	// Tie the raster-space anchor back to cell (0,0) of a north-up grid.
	g.originX = tiepoint[3] - tiepoint[0]*g.dx
	g.originY = tiepoint[4] + tiepoint[1]*g.dy

	if e, ok := entries[tagGDALNoData]; ok {
		s := strings.TrimRight(string(e.value), "\x00")
		s = strings.TrimSpace(s)
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			g.nodata = &v
		} else if strings.EqualFold(s, "nan") {
			nan := math.NaN()
			g.nodata = &nan
		}
	}

	g.epsg = parseGeoKeys(g.uintSlice(entries, tagGeoKeyDirectory))
	if g.epsg != 0 && !gis.CompatibleEPSG(g.epsg) {
		return fmt.Errorf("%w: raster is EPSG:%d; reproject it to the store CRS first", gis.ErrUnresolvedCRS, g.epsg)
	}
	return nil
}

func supportedSample(format, bits int) bool {
	switch format {
	case sampleFormatFloat:
		return bits == 32 || bits == 64
	case sampleFormatSigned:
		return bits == 16 || bits == 32
	case sampleFormatUnsigned:
		return bits == 8 || bits == 16
	default:
		return false
	}
}

func (g *GeoTIFF) uintTag(entries map[uint16]ifdEntry, tag uint16) (uint64, bool) {
	vals := g.uintSlice(entries, tag)
	if len(vals) == 0 {
		return 0, false
	}
	return vals[0], true
}

func (g *GeoTIFF) uintSlice(entries map[uint16]ifdEntry, tag uint16) []uint64 {
	e, ok := entries[tag]
	if !ok {
		return nil
	}
	out := make([]uint64, 0, e.count)
	for i := 0; i < int(e.count); i++ {
		switch e.typ {
		case 1: // BYTE
			out = append(out, uint64(e.value[i]))
		case 3: // SHORT
			out = append(out, uint64(g.order.Uint16(e.value[i*2:])))
		case 4: // LONG
			out = append(out, uint64(g.order.Uint32(e.value[i*4:])))
		default:
			return nil
		}
	}
	return out
}

func (g *GeoTIFF) doubleSlice(entries map[uint16]ifdEntry, tag uint16) []float64 {
	e, ok := entries[tag]
	if !ok || e.typ != 12 {
		return nil
	}
	out := make([]float64, 0, e.count)
	for i := 0; i < int(e.count); i++ {
		out = append(out, math.Float64frombits(g.order.Uint64(e.value[i*8:])))
	}
	return out
}

func (g *GeoTIFF) uintSliceInt64(vals []uint64) []int64 {
	out := make([]int64, len(vals))
	for i, v := range vals {
		out[i] = int64(v)
	}
	return out
}

// parseGeoKeys pulls the CRS code out of the GeoTIFF key directory. A
// projected CRS key wins over a geographic one.
func parseGeoKeys(vals []uint64) int {
	if len(vals) < 4 {
		return 0
	}
	keys := int(vals[3])
	projected, geographic := 0, 0
	for k := 0; k < keys; k++ {
		base := 4 + k*4
		if base+3 >= len(vals) {
			break
		}
		keyID, location, value := vals[base], vals[base+1], vals[base+3]
		if location != 0 || value == geoKeyValueUserDefined {
			continue
		}
		switch keyID {
		case geoKeyProjectedCRS:
			projected = int(value)
		case geoKeyGeographicCRS:
			geographic = int(value)
		}
	}
	if projected != 0 {
		return projected
	}
	return geographic
}

// EPSG is the raster's declared CRS code, zero when the file has none.
func (g *GeoTIFF) EPSG() int { return g.epsg }

func (g *GeoTIFF) Bounds() orb.Bound {
	return orb.Bound{
		Min: orb.Point{g.originX, g.originY - float64(g.height)*g.dy},
		Max: orb.Point{g.originX + float64(g.width)*g.dx, g.originY},
	}
}

func (g *GeoTIFF) Resolution() (float64, float64) { return g.dx, g.dy }

func (g *GeoTIFF) Close() error { return g.f.Close() }

// Sample reads the cell containing pt.
func (g *GeoTIFF) Sample(pt orb.Point) (float64, bool, error) {
	col := int(math.Floor((pt[0] - g.originX) / g.dx))
	row := int(math.Floor((g.originY - pt[1]) / g.dy))
	if col < 0 || col >= g.width || row < 0 || row >= g.height {
		return 0, false, nil
	}
	v, err := g.at(col, row)
	if err != nil {
		return 0, false, err
	}
	if math.IsNaN(v) {
		return 0, false, nil
	}
	if g.nodata != nil {
		nd := *g.nodata
		if v == nd || (math.IsNaN(nd) && math.IsNaN(v)) {
			return 0, false, nil
		}
	}
	return v, true, nil
}

func (g *GeoTIFF) at(col, row int) (float64, error) {
	var blockIdx, cellIdx int
	if g.tiled {
		tilesAcross := (g.width + g.tileWidth - 1) / g.tileWidth
		blockIdx = (row/g.tileHgt)*tilesAcross + col/g.tileWidth
		cellIdx = (row%g.tileHgt)*g.tileWidth + col%g.tileWidth
	} else {
		blockIdx = row / g.rowsPerStrip
		cellIdx = (row%g.rowsPerStrip)*g.width + col
	}

	block, err := g.block(blockIdx)
	if err != nil {
		return 0, err
	}
	bps := g.bits / 8
	off := cellIdx * bps
	if off+bps > len(block) {
		return 0, fmt.Errorf("raster %s: pixel (%d,%d) beyond block %d", g.path, col, row, blockIdx)
	}
	return g.decodeSample(block[off : off+bps]), nil
}

func (g *GeoTIFF) decodeSample(b []byte) float64 {
	switch {
	case g.format == sampleFormatFloat && g.bits == 32:
		return float64(math.Float32frombits(g.order.Uint32(b)))
	case g.format == sampleFormatFloat && g.bits == 64:
		return math.Float64frombits(g.order.Uint64(b))
	case g.format == sampleFormatSigned && g.bits == 16:
		return float64(int16(g.order.Uint16(b)))
	case g.format == sampleFormatSigned && g.bits == 32:
		return float64(int32(g.order.Uint32(b)))
	case g.format == sampleFormatUnsigned && g.bits == 16:
		return float64(g.order.Uint16(b))
	default: // unsigned 8-bit, the only remaining accepted shape
		return float64(b[0])
	}
}

func (g *GeoTIFF) block(idx int) ([]byte, error) {
	if b, ok := g.blocks[idx]; ok {
		return b, nil
	}
	if idx < 0 || idx >= len(g.offsets) {
		return nil, fmt.Errorf("raster %s: block %d out of range", g.path, idx)
	}
	size := int64(0)
	if idx < len(g.counts) {
		size = g.counts[idx]
	}
	if size <= 0 {
		return nil, fmt.Errorf("raster %s: block %d has no byte count", g.path, idx)
	}
	raw := make([]byte, size)
	if _, err := g.f.ReadAt(raw, g.offsets[idx]); err != nil {
		return nil, fmt.Errorf("raster %s: read block %d: %w", g.path, idx, err)
	}

	var data []byte
	switch g.compression {
	case compressionNone:
		data = raw
	default:
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("raster %s: block %d: %w", g.path, idx, err)
		}
		data, err = io.ReadAll(zr)
		zr.Close()
		if err != nil {
			return nil, fmt.Errorf("raster %s: inflate block %d: %w", g.path, idx, err)
		}
	}

	if len(g.blocks) >= maxCachedBlocks {
		g.blocks = make(map[int][]byte, maxCachedBlocks)
	}
	g.blocks[idx] = data
	return data, nil
}
