package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/itohio/goadjuster/pkg/curve"
)

// CurveFile is the YAML document written by pull and read by push.
type CurveFile struct {
	Curves map[string][]float32 `yaml:"curves"`
}

// NewCurveFile returns an empty curve file.
func NewCurveFile() *CurveFile {
	return &CurveFile{Curves: make(map[string][]float32)}
}

// Set stores the points of one curve.
func (f *CurveFile) Set(name string, points curve.Points) {
	f.Curves[name] = append([]float32(nil), points[:]...)
}

// Points returns the curves of the file by id. Unknown names and
// curves with the wrong number of values are rejected.
func (f *CurveFile) Points() (map[curve.ID]curve.Points, error) {
	result := make(map[curve.ID]curve.Points, len(f.Curves))
	for name, values := range f.Curves {
		id, ok := curve.Lookup(name)
		if !ok || id.String() != name {
			return nil, fmt.Errorf("unknown curve %q", name)
		}
		if len(values) != curve.NumPoints {
			return nil, fmt.Errorf("curve %s: expected %d points, got %d", name, curve.NumPoints, len(values))
		}

		var p curve.Points
		copy(p[:], values)
		if !p.Valid() {
			return nil, fmt.Errorf("curve %s: values must be within [%g, %g]", name, curve.MinValue, curve.MaxValue)
		}
		result[id] = p
	}
	return result, nil
}

// LoadCurveFile reads a curve file.
func LoadCurveFile(filename string) (*CurveFile, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read curve file: %w", err)
	}

	f := NewCurveFile()
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("failed to parse curve file: %w", err)
	}
	return f, nil
}

// Save writes the curve file.
func (f *CurveFile) Save(filename string) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to marshal curves: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write curve file: %w", err)
	}
	return nil
}
