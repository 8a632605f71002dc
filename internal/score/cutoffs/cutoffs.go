// Package cutoffs loads the bundled historical admission-cutoff seed used
// by the score engine's reverse search (SPEC_FULL.md §4.12).
package cutoffs

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/rlaxogns100-oss/uniroad-agent/internal/domain"
)

//go:embed seed.yaml
var seedYAML []byte

type seedFile struct {
	SchemaVersion int `yaml:"schema_version"`
	Records       []struct {
		University string  `yaml:"university"`
		Major      string  `yaml:"major"`
		Year       int     `yaml:"year"`
		Cutoff     float64 `yaml:"cutoff"`
		Scale      float64 `yaml:"scale"`
	} `yaml:"records"`
}

// Load parses the embedded seed into the in-memory corpus the reverse
// search ranks against. Pure, no I/O; callers may cache the result.
func Load() ([]domain.AdmissionCutoff, error) {
	var f seedFile
	if err := yaml.Unmarshal(seedYAML, &f); err != nil {
		return nil, fmt.Errorf("cutoffs: parse seed.yaml: %w", err)
	}
	out := make([]domain.AdmissionCutoff, 0, len(f.Records))
	for _, r := range f.Records {
		out = append(out, domain.AdmissionCutoff{
			University: r.University,
			Major:      r.Major,
			Year:       r.Year,
			Cutoff:     r.Cutoff,
			Scale:      r.Scale,
		})
	}
	return out, nil
}
