package gis

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// StoreEPSG is the coordinate reference system every geometry is stored
// in: GDA2020 geographic coordinates.
const StoreEPSG = 7844

// ErrUnresolvedCRS means a source file's coordinate reference system
// could not be identified or is one we cannot bring into the store CRS.
var ErrUnresolvedCRS = errors.New("unresolved coordinate reference system")

// compatibleEPSG lists systems whose coordinates are usable as GDA2020
// longitude/latitude without transformation. The datum shifts between
// them are below the positional accuracy of the survey sources.
var compatibleEPSG = map[int]bool{
	7844: true, // GDA2020 geographic
	4283: true, // GDA94 geographic
	4326: true, // WGS 84
}

// CompatibleEPSG reports whether coordinates in the given system can be
// used as store-CRS coordinates without transformation.
func CompatibleEPSG(epsg int) bool { return compatibleEPSG[epsg] }

// Normalize brings a geometry from its source system into the store
// CRS. Geographic sources pass through, web mercator is inverted, and
// anything else fails with ErrUnresolvedCRS.
func Normalize(g orb.Geometry, epsg int) (orb.Geometry, error) {
	if compatibleEPSG[epsg] {
		return g, nil
	}
	if epsg == 3857 {
		return project.Geometry(g.Clone(), project.Mercator.ToWGS84), nil
	}
	return nil, fmt.Errorf("%w: EPSG:%d", ErrUnresolvedCRS, epsg)
}

var authorityRe = regexp.MustCompile(`(?i)AUTHORITY\[\s*"EPSG"\s*,\s*"?(\d+)"?\s*\]`)

// EPSGFromWKT extracts the EPSG code from a well-known-text CRS
// definition, as found in shapefile .prj sidecars. The trailing
// AUTHORITY node wins; when none is present the datum name is matched
// against the systems we understand.
func EPSGFromWKT(wkt string) (int, error) {
	matches := authorityRe.FindAllStringSubmatch(wkt, -1)
	if len(matches) > 0 {
		code, err := strconv.Atoi(matches[len(matches)-1][1])
		if err == nil {
			return code, nil
		}
	}
	upper := strings.ToUpper(wkt)
	switch {
	case strings.Contains(upper, "GDA2020"):
		return 7844, nil
	case strings.Contains(upper, "GDA94") || strings.Contains(upper, "GDA_1994"):
		return 4283, nil
	case strings.Contains(upper, "WGS 84") || strings.Contains(upper, "WGS84") || strings.Contains(upper, "WGS_1984"):
		return 4326, nil
	case strings.Contains(upper, "PSEUDO-MERCATOR") || strings.Contains(upper, "WEB_MERCATOR"):
		return 3857, nil
	}
	return 0, fmt.Errorf("%w: no EPSG authority in CRS definition", ErrUnresolvedCRS)
}
