// Package score is C3: the pure, deterministic score-conversion engine. It
// has no I/O and no dependency on the generation model (spec §4.3, §9).
package score

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/rlaxogns100-oss/uniroad-agent/internal/domain"
)

//go:embed data/conversion_tables.yaml
var conversionTablesYAML []byte

//go:embed data/band_deltas.yaml
var bandDeltasYAML []byte

// GradeBand is one row of a subject's grade<->percentile<->standard_score
// conversion table. Tables are data, not code (spec §9).
type GradeBand struct {
	Grade            int     `yaml:"grade"`
	PercentileMin    float64 `yaml:"percentile_min"`
	PercentileMax    float64 `yaml:"percentile_max"`
	StandardScoreMin float64 `yaml:"standard_score_min"`
	StandardScoreMax float64 `yaml:"standard_score_max"`
}

type conversionTablesFile struct {
	SchemaVersion int                          `yaml:"schema_version"`
	ExamYear      int                          `yaml:"exam_year"`
	Subjects      map[string][]GradeBand       `yaml:"subjects"`
}

type BandDeltas struct {
	Delta1 float64 `yaml:"delta1"`
	Delta2 float64 `yaml:"delta2"`
	Delta3 float64 `yaml:"delta3"`
	Delta4 float64 `yaml:"delta4"`
}

type bandDeltasFile struct {
	SchemaVersion int        `yaml:"schema_version"`
	Deltas        BandDeltas `yaml:"deltas"`
}

// Tables is the loaded, immutable conversion-table resource. A single
// package-level instance is parsed at init time; callers never mutate it.
type Tables struct {
	SchemaVersion int
	ExamYear      int
	Subjects      map[domain.Subject][]GradeBand
	Deltas        BandDeltas
}

var loaded *Tables

func init() {
	t, err := parseTables()
	if err != nil {
		panic(fmt.Sprintf("score: failed to parse embedded conversion tables: %v", err))
	}
	loaded = t
}

func parseTables() (*Tables, error) {
	var ctf conversionTablesFile
	if err := yaml.Unmarshal(conversionTablesYAML, &ctf); err != nil {
		return nil, fmt.Errorf("parse conversion_tables.yaml: %w", err)
	}
	var bdf bandDeltasFile
	if err := yaml.Unmarshal(bandDeltasYAML, &bdf); err != nil {
		return nil, fmt.Errorf("parse band_deltas.yaml: %w", err)
	}

	subjects := make(map[domain.Subject][]GradeBand, len(ctf.Subjects))
	for name, bands := range ctf.Subjects {
		sorted := append([]GradeBand(nil), bands...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Grade < sorted[j].Grade })
		subjects[domain.Subject(name)] = sorted
	}

	return &Tables{
		SchemaVersion: ctf.SchemaVersion,
		ExamYear:      ctf.ExamYear,
		Subjects:      subjects,
		Deltas:        bdf.Deltas,
	}, nil
}

// Default returns the process-wide embedded table set.
func Default() *Tables { return loaded }

// tableKey maps the two inquiry slots onto the single bundled "Inquiry"
// table (spec §4.3 lists five subject tables, not six subjects).
func tableKey(subject domain.Subject) domain.Subject {
	if subject == domain.SubjectInquiry1 || subject == domain.SubjectInquiry2 {
		return "Inquiry"
	}
	return subject
}

func (t *Tables) bandsFor(subject domain.Subject) ([]GradeBand, error) {
	bands, ok := t.Subjects[tableKey(subject)]
	if !ok || len(bands) == 0 {
		return nil, fmt.Errorf("score: no conversion table for subject %q", subject)
	}
	return bands, nil
}

func (t *Tables) byGrade(subject domain.Subject, grade int) (GradeBand, error) {
	bands, err := t.bandsFor(subject)
	if err != nil {
		return GradeBand{}, err
	}
	for _, b := range bands {
		if b.Grade == grade {
			return b, nil
		}
	}
	return GradeBand{}, fmt.Errorf("score: grade %d out of range for subject %q", grade, subject)
}

func (t *Tables) byPercentile(subject domain.Subject, percentile float64) (GradeBand, error) {
	bands, err := t.bandsFor(subject)
	if err != nil {
		return GradeBand{}, err
	}
	for _, b := range bands {
		if percentile >= b.PercentileMin && percentile <= b.PercentileMax {
			return b, nil
		}
	}
	// Clamp to the nearest band rather than erroring on slightly out-of-range input.
	if percentile > bands[0].PercentileMax {
		return bands[0], nil
	}
	return bands[len(bands)-1], nil
}

func (t *Tables) byStandardScore(subject domain.Subject, score float64) (GradeBand, error) {
	bands, err := t.bandsFor(subject)
	if err != nil {
		return GradeBand{}, err
	}
	for _, b := range bands {
		if score >= b.StandardScoreMin && score <= b.StandardScoreMax {
			return b, nil
		}
	}
	if score > bands[0].StandardScoreMax {
		return bands[0], nil
	}
	return bands[len(bands)-1], nil
}

// interpolateWithin maps a value in [lo,hi] to a fraction in [0,1], clamped.
func interpolateWithin(lo, hi, v float64) float64 {
	if hi <= lo {
		return 0
	}
	f := (v - lo) / (hi - lo)
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func midpoint(lo, hi float64) float64 { return (lo + hi) / 2 }
