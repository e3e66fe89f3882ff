package vector_test

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulmach/orb"

	"github.com/floorheights/datamodel/internal/gis/vector"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func pointFeature(lon, lat float64, pid string) string {
	return fmt.Sprintf(`{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"Point","coordinates":[%g,%g]},"properties":{"gnaf_pid":%q}}]}`,
		lon, lat, pid)
}

// TestLoadUnknownExtension verifies the dispatcher names the missing
// driver instead of guessing a format.
func TestLoadUnknownExtension(t *testing.T) {
	path := writeTempFile(t, "notes.txt", "not a dataset")
	if _, err := vector.Load(path, vector.Options{}); err == nil || !strings.Contains(err.Error(), "no driver") {
		t.Errorf("expected a no-driver error, got %v", err)
	}
}

// TestLoadDirectoryConcatenates verifies a directory dataset reads its
// files in name order.
func TestLoadDirectoryConcatenates(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"b.geojson": pointFeature(151.3, -33.8, "GANSW2"),
		"a.geojson": pointFeature(151.2, -33.9, "GANSW1"),
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	feats, err := vector.Load(dir, vector.Options{})
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(feats) != 2 {
		t.Fatalf("expected 2 features, got %d", len(feats))
	}
	if got := feats[0].Attrs["gnaf_pid"]; got != "GANSW1" {
		t.Errorf("expected a.geojson features first, got %v", got)
	}
	pt, ok := feats[1].Geometry.(orb.Point)
	if !ok || pt[0] != 151.3 {
		t.Errorf("expected point from b.geojson, got %v", feats[1].Geometry)
	}
}

// TestLoadDirectoryWithoutVectors verifies an unusable directory is an
// error rather than an empty dataset.
func TestLoadDirectoryWithoutVectors(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := vector.Load(dir, vector.Options{}); err == nil || !strings.Contains(err.Error(), "no supported vector files") {
		t.Errorf("expected an unsupported-directory error, got %v", err)
	}
}

// TestLoadRejectsFileGDB verifies .gdb containers fail with a clear
// message instead of being walked as loose files.
func TestLoadRejectsFileGDB(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cadastre.gdb")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := vector.Load(dir, vector.Options{}); err == nil || !strings.Contains(err.Error(), "FileGDB") {
		t.Errorf("expected a FileGDB rejection, got %v", err)
	}
}
