package vector_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/paulmach/orb"

	"github.com/floorheights/datamodel/internal/gis"
	"github.com/floorheights/datamodel/internal/gis/vector"
)

// TestLoadCSVPoints verifies coordinate columns become geometry and the
// remaining columns become attributes.
func TestLoadCSVPoints(t *testing.T) {
	path := writeTempFile(t, "points.csv",
		"gnaf_pid,lon,lat\nGANSW1,151.2,-33.9\nGANSW2,,\nGANSW3,151.3,-33.8\n")

	feats, err := vector.Load(path, vector.Options{XField: "lon", YField: "lat", AssumeEPSG: 4326})
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(feats) != 2 {
		t.Fatalf("expected the blank-coordinate record to be skipped, got %d features", len(feats))
	}

	pt, ok := feats[0].Geometry.(orb.Point)
	if !ok {
		t.Fatalf("expected a point geometry, got %T", feats[0].Geometry)
	}
	if pt[0] != 151.2 || pt[1] != -33.9 {
		t.Errorf("expected point (151.2, -33.9), got %v", pt)
	}
	if feats[0].Attrs["gnaf_pid"] != "GANSW1" {
		t.Errorf("expected gnaf_pid attribute, got %v", feats[0].Attrs)
	}
	if _, ok := feats[0].Attrs["lon"]; ok {
		t.Errorf("expected coordinate columns to be dropped from attrs, got %v", feats[0].Attrs)
	}
}

// TestLoadCSVRequiresCoordinateColumns verifies the loader demands
// column names up front.
func TestLoadCSVRequiresCoordinateColumns(t *testing.T) {
	path := writeTempFile(t, "points.csv", "gnaf_pid,lon,lat\n")
	_, err := vector.Load(path, vector.Options{AssumeEPSG: 4326})
	if err == nil || !strings.Contains(err.Error(), "coordinate column names are required") {
		t.Errorf("expected a missing-columns error, got %v", err)
	}
}

// TestLoadCSVRequiresCRS verifies coordinates are never passed through
// without a declared system.
func TestLoadCSVRequiresCRS(t *testing.T) {
	path := writeTempFile(t, "points.csv", "gnaf_pid,lon,lat\n")
	_, err := vector.Load(path, vector.Options{XField: "lon", YField: "lat"})
	if !errors.Is(err, gis.ErrUnresolvedCRS) {
		t.Errorf("expected ErrUnresolvedCRS, got %v", err)
	}
}

// TestLoadCSVBadCoordinate verifies a malformed value names the record
// it came from.
func TestLoadCSVBadCoordinate(t *testing.T) {
	path := writeTempFile(t, "points.csv", "gnaf_pid,lon,lat\nGANSW1,abc,-33.9\n")
	_, err := vector.Load(path, vector.Options{XField: "lon", YField: "lat", AssumeEPSG: 4326})
	if err == nil || !strings.Contains(err.Error(), "record 2") || !strings.Contains(err.Error(), `"abc"`) {
		t.Errorf("expected a record-numbered parse error, got %v", err)
	}
}

// TestLoadCSVMissingColumn verifies the named coordinate column must
// exist in the header.
func TestLoadCSVMissingColumn(t *testing.T) {
	path := writeTempFile(t, "points.csv", "gnaf_pid,lat\nGANSW1,-33.9\n")
	_, err := vector.Load(path, vector.Options{XField: "lon", YField: "lat", AssumeEPSG: 4326})
	if err == nil || !strings.Contains(err.Error(), "missing required columns") {
		t.Errorf("expected a missing-column error, got %v", err)
	}
}
