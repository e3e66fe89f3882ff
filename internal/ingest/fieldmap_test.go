package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFieldMap(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fields.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write field map: %v", err)
	}
	return path
}

// TestLoadFieldMapDefaults verifies an empty path yields the canonical
// mapping.
func TestLoadFieldMapDefaults(t *testing.T) {
	m, err := LoadFieldMap("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if m != DefaultValidationFields() {
		t.Errorf("expected the default mapping, got %+v", m)
	}
}

// TestLoadFieldMapOverride verifies file values merge onto the defaults
// rather than replacing them wholesale.
func TestLoadFieldMapOverride(t *testing.T) {
	path := writeFieldMap(t, "height: FFH\nx: easting\ny: northing\n")

	m, err := LoadFieldMap(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if m.Height != "FFH" || m.X != "easting" || m.Y != "northing" {
		t.Errorf("expected file values to apply, got %+v", m)
	}
	if m.StepCount != "step_count" || m.Confidence != "accuracy_measure" {
		t.Errorf("expected untouched fields to keep their defaults, got %+v", m)
	}
}

// TestLoadFieldMapValidation verifies a mapping that cannot build a
// measure is rejected.
func TestLoadFieldMapValidation(t *testing.T) {
	path := writeFieldMap(t, "height: \"\"\nstep_count: \"\"\n")
	if _, err := LoadFieldMap(path); err == nil || !strings.Contains(err.Error(), "neither a height column") {
		t.Errorf("expected a no-height rejection, got %v", err)
	}

	path = writeFieldMap(t, "x: \"\"\n")
	if _, err := LoadFieldMap(path); err == nil || !strings.Contains(err.Error(), "coordinate columns") {
		t.Errorf("expected a missing-coordinates rejection, got %v", err)
	}
}

// TestLoadFieldMapMissingFile verifies a bad path surfaces as a read
// error.
func TestLoadFieldMapMissingFile(t *testing.T) {
	if _, err := LoadFieldMap(filepath.Join(t.TempDir(), "absent.yaml")); err == nil ||
		!strings.Contains(err.Error(), "read field map") {
		t.Errorf("expected a read error, got %v", err)
	}
}
