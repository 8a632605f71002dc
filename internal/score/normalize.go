package score

import (
	"fmt"

	"github.com/rlaxogns100-oss/uniroad-agent/internal/domain"
)

// Normalize fills in every subject present in snapshot with a complete
// {grade, standard_score, percentile} triple, estimating missing fields
// from the bundled conversion tables (spec §4.3). It is a total function
// over the subjects present in the input (spec §3 invariant) and is pure:
// identical input yields identical output across runs and processes
// (spec §8 property 7).
func Normalize(snapshot domain.ScoreSnapshot) (domain.NormalizedScores, error) {
	return normalizeWith(Default(), snapshot)
}

func normalizeWith(t *Tables, snapshot domain.ScoreSnapshot) (domain.NormalizedScores, error) {
	out := make(domain.NormalizedScores, len(snapshot))
	for subject, raw := range snapshot {
		if !raw.HasAny() {
			return nil, fmt.Errorf("score: subject %q has no quantitative field set", subject)
		}
		n, err := normalizeSubject(t, subject, raw)
		if err != nil {
			return nil, err
		}
		out[subject] = n
	}
	return out, nil
}

func normalizeSubject(t *Tables, subject domain.Subject, raw domain.RawScore) (domain.NormalizedScore, error) {
	switch {
	case raw.Grade != nil && raw.StandardScore != nil && raw.Percentile != nil:
		return domain.NormalizedScore{
			Grade: *raw.Grade, StandardScore: *raw.StandardScore, Percentile: *raw.Percentile,
			Elective: raw.Elective,
		}, nil

	case raw.Grade != nil:
		band, err := t.byGrade(subject, *raw.Grade)
		if err != nil {
			return domain.NormalizedScore{}, err
		}
		return fillFromBand(band, raw, *raw.Grade), nil

	case raw.Percentile != nil:
		band, err := t.byPercentile(subject, *raw.Percentile)
		if err != nil {
			return domain.NormalizedScore{}, err
		}
		ns := fillFromBand(band, raw, band.Grade)
		ns.Percentile = *raw.Percentile
		// The known percentile's position within the band carries information
		// about where the standard score likely falls too; a flat midpoint
		// throws that away, so interpolate along the same fraction instead.
		frac := interpolateWithin(band.PercentileMin, band.PercentileMax, *raw.Percentile)
		ns.StandardScore = band.StandardScoreMin + frac*(band.StandardScoreMax-band.StandardScoreMin)
		return ns, nil

	case raw.StandardScore != nil:
		band, err := t.byStandardScore(subject, *raw.StandardScore)
		if err != nil {
			return domain.NormalizedScore{}, err
		}
		ns := fillFromBand(band, raw, band.Grade)
		ns.StandardScore = *raw.StandardScore
		frac := interpolateWithin(band.StandardScoreMin, band.StandardScoreMax, *raw.StandardScore)
		ns.Percentile = band.PercentileMin + frac*(band.PercentileMax-band.PercentileMin)
		return ns, nil
	}
	return domain.NormalizedScore{}, fmt.Errorf("score: subject %q has no quantitative field set", subject)
}

// fillFromBand estimates the missing fields at the band's midpoint. When
// the caller already knows percentile or standard_score exactly, it
// overwrites that one field after calling this (interpolated, not flat).
func fillFromBand(band GradeBand, raw domain.RawScore, grade int) domain.NormalizedScore {
	ns := domain.NormalizedScore{
		Grade:         grade,
		Percentile:    midpoint(band.PercentileMin, band.PercentileMax),
		StandardScore: midpoint(band.StandardScoreMin, band.StandardScoreMax),
		Elective:      raw.Elective,
	}
	if raw.Grade != nil {
		ns.Grade = *raw.Grade
	}
	return ns
}
