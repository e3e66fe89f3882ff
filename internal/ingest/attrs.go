package ingest

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/datatypes"
)

// attrString renders an attribute value the way it would appear in the
// source file. Nil and empty values are "".
func attrString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// attrFloat parses an attribute as a number. The bool is false for
// missing, empty or unparseable values.
func attrFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int64:
		return float64(t), true
	case nil:
		return 0, false
	default:
		s := attrString(v)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
}

// attrInt parses an attribute as an integer, truncating numeric strings
// like "2.0" the way survey deliveries write storey counts.
func attrInt(v any) (int, bool) {
	f, ok := attrFloat(v)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// auxInfo packs every source column not consumed by the canonical
// mapping into the measure's auxiliary metadata. Empty leftovers yield
// a null column rather than an empty object.
func auxInfo(attrs map[string]any, used map[string]bool) (datatypes.JSON, error) {
	leftover := make(map[string]any, len(attrs))
	for k, v := range attrs {
		if used[strings.ToLower(k)] {
			continue
		}
		leftover[k] = v
	}
	if len(leftover) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(leftover)
	if err != nil {
		return nil, fmt.Errorf("encode aux info: %w", err)
	}
	return datatypes.JSON(raw), nil
}

// usedSet builds the lower-cased set of consumed column names for
// auxInfo.
func usedSet(names ...string) map[string]bool {
	used := make(map[string]bool, len(names))
	for _, n := range names {
		if n != "" {
			used[strings.ToLower(n)] = true
		}
	}
	return used
}
