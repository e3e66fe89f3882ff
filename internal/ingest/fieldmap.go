package ingest

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// FieldMap names the source columns that carry each canonical
// floor-measure field. Validation deliveries arrive with different
// headers per supplier, so the mapping ships as a small YAML file next
// to the data rather than as code.
type FieldMap struct {
	Storey     string `yaml:"storey"`
	Height     string `yaml:"height"`
	StepCount  string `yaml:"step_count"`
	Confidence string `yaml:"confidence"`
	RangeLower string `yaml:"range_lower"`
	RangeUpper string `yaml:"range_upper"`
	X          string `yaml:"x"`
	Y          string `yaml:"y"`
}

// DefaultValidationFields is the mapping used when no file is given.
func DefaultValidationFields() FieldMap {
	return FieldMap{
		Storey:     "storey",
		Height:     "floor_height_m",
		StepCount:  "step_count",
		Confidence: "accuracy_measure",
		X:          "longitude",
		Y:          "latitude",
	}
}

// LoadFieldMap reads a YAML field mapping and checks it names the
// columns a measure cannot be built without.
func LoadFieldMap(path string) (FieldMap, error) {
	m := DefaultValidationFields()
	if path == "" {
		return m, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return FieldMap{}, fmt.Errorf("read field map: %w", err)
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return FieldMap{}, fmt.Errorf("parse field map %s: %w", path, err)
	}
	if m.Height == "" && m.StepCount == "" {
		return FieldMap{}, fmt.Errorf("field map %s names neither a height column nor a step-count column", path)
	}
	if m.X == "" || m.Y == "" {
		return FieldMap{}, fmt.Errorf("field map %s is missing the coordinate columns", path)
	}
	return m, nil
}
