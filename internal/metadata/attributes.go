package metadata

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Attributes mirrors the root-level attributes written into a shot's sidecar
// document. JSON documents decode as well since JSON is valid YAML.
type Attributes struct {
	NRuns     *int `yaml:"n_runs"`
	RunNumber *int `yaml:"run number"`
}

// DecodeAttributes reads a sidecar document and returns its validated counters.
func DecodeAttributes(r io.Reader) (Runs, error) {
	var attrs Attributes
	if err := yaml.NewDecoder(r).Decode(&attrs); err != nil {
		if errors.Is(err, io.EOF) {
			return Runs{}, fmt.Errorf("%w: empty attributes document", ErrUnavailable)
		}
		return Runs{}, fmt.Errorf("%w: decode attributes: %w", ErrUnavailable, err)
	}
	if attrs.NRuns == nil {
		return Runs{}, fmt.Errorf("%w: attribute %q missing", ErrUnavailable, "n_runs")
	}
	if attrs.RunNumber == nil {
		return Runs{}, fmt.Errorf("%w: attribute %q missing", ErrUnavailable, "run number")
	}
	runs := Runs{Current: *attrs.RunNumber, Total: *attrs.NRuns}
	if err := runs.Validate(); err != nil {
		return Runs{}, err
	}
	return runs, nil
}
