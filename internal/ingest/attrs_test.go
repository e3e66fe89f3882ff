package ingest

import (
	"encoding/json"
	"testing"
)

// TestAttrString verifies the value renderings seen across source
// formats.
func TestAttrString(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"  12 Main St ", "12 Main St"},
		{3.5, "3.5"},
		{float64(4), "4"},
		{int64(7), "7"},
		{true, "true"},
	}
	for _, c := range cases {
		if got := attrString(c.in); got != c.want {
			t.Errorf("attrString(%v): expected %q, got %q", c.in, c.want, got)
		}
	}
}

// TestAttrFloat verifies numeric parsing across native and string
// carriers.
func TestAttrFloat(t *testing.T) {
	if v, ok := attrFloat(4.2); !ok || v != 4.2 {
		t.Errorf("expected 4.2, got %v (ok=%v)", v, ok)
	}
	if v, ok := attrFloat(int64(3)); !ok || v != 3 {
		t.Errorf("expected 3, got %v (ok=%v)", v, ok)
	}
	if v, ok := attrFloat(" 3.5 "); !ok || v != 3.5 {
		t.Errorf("expected 3.5 from a padded string, got %v (ok=%v)", v, ok)
	}
	for _, in := range []any{nil, "", "  ", "abc"} {
		if _, ok := attrFloat(in); ok {
			t.Errorf("attrFloat(%v): expected no value", in)
		}
	}
}

// TestAttrInt verifies storey-style values truncate the way deliveries
// write them.
func TestAttrInt(t *testing.T) {
	if v, ok := attrInt("2.0"); !ok || v != 2 {
		t.Errorf("expected 2, got %v (ok=%v)", v, ok)
	}
	if v, ok := attrInt(2.9); !ok || v != 2 {
		t.Errorf("expected truncation to 2, got %v (ok=%v)", v, ok)
	}
	if _, ok := attrInt("two"); ok {
		t.Errorf("expected no value from a word")
	}
}

// TestAuxInfo verifies unconsumed columns survive as JSON and consumed
// ones are excluded case-insensitively.
func TestAuxInfo(t *testing.T) {
	attrs := map[string]any{
		"GNAF_PID": "GANSW1",
		"notes":    "rear access",
		"height":   3.5,
	}
	used := usedSet("gnaf_pid", "Height")

	raw, err := auxInfo(attrs, used)
	if err != nil {
		t.Fatalf("auxInfo failed: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal([]byte(raw), &got); err != nil {
		t.Fatalf("decode aux info: %v", err)
	}
	if len(got) != 1 || got["notes"] != "rear access" {
		t.Errorf("expected only the notes column, got %v", got)
	}
}

// TestAuxInfoEmpty verifies fully consumed records store null rather
// than an empty object.
func TestAuxInfoEmpty(t *testing.T) {
	raw, err := auxInfo(map[string]any{"height": 1.0}, usedSet("height"))
	if err != nil {
		t.Fatalf("auxInfo failed: %v", err)
	}
	if raw != nil {
		t.Errorf("expected nil aux info, got %s", raw)
	}
}

// TestUsedSet verifies blank names are not registered.
func TestUsedSet(t *testing.T) {
	used := usedSet("Height", "", "step_count")
	if len(used) != 2 || !used["height"] || !used["step_count"] {
		t.Errorf("unexpected used set %v", used)
	}
}
