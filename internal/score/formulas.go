package score

import (
	"fmt"
	"sort"

	"github.com/rlaxogns100-oss/uniroad-agent/internal/domain"
)

// ScoreTypeUsed selects which normalized field a formula weights for a
// subject (spec §4.3).
type ScoreTypeUsed string

const (
	ScoreTypeStandard  ScoreTypeUsed = "standard"
	ScoreTypePercentile ScoreTypeUsed = "percentile"
	ScoreTypeConverted ScoreTypeUsed = "converted"
)

// PenaltyBand subtracts a flat amount from the total for students below a
// given grade in a subject the university treats as a qualifying filter
// rather than a weighted contributor (e.g. English/History at many
// Korean universities).
type PenaltyBand struct {
	MinGrade int
	Penalty  float64
}

// Formula is a university's declarative score-conversion definition
// (spec §4.3): "Formulas are declarative: {subject_weights,
// score_type_used, english_penalty_table, history_penalty_table,
// selective_inquiry_conversion?}".
type Formula struct {
	University               string
	SubjectWeights           map[domain.Subject]float64
	ScoreTypeUsed            map[domain.Subject]ScoreTypeUsed
	EnglishPenaltyTable      []PenaltyBand
	HistoryPenaltyTable      []PenaltyBand
	SelectiveInquiryConvert  bool
	Scale                    float64
}

// registry is the universal formula registry keyed by a canonical
// university name, closed per spec §4.1/§4.3.
var registry = map[string]Formula{
	"서울대학교": {
		University: "서울대학교",
		SubjectWeights: map[domain.Subject]float64{
			domain.SubjectKorean: 0.25, domain.SubjectMath: 0.35,
			domain.SubjectInquiry1: 0.2, domain.SubjectInquiry2: 0.2,
		},
		ScoreTypeUsed: map[domain.Subject]ScoreTypeUsed{
			domain.SubjectKorean: ScoreTypeStandard, domain.SubjectMath: ScoreTypeStandard,
			domain.SubjectInquiry1: ScoreTypeConverted, domain.SubjectInquiry2: ScoreTypeConverted,
		},
		EnglishPenaltyTable: []PenaltyBand{
			{MinGrade: 1, Penalty: 0}, {MinGrade: 2, Penalty: 0.5}, {MinGrade: 3, Penalty: 2},
			{MinGrade: 4, Penalty: 4}, {MinGrade: 5, Penalty: 6}, {MinGrade: 9, Penalty: 12},
		},
		HistoryPenaltyTable: []PenaltyBand{
			{MinGrade: 1, Penalty: 0}, {MinGrade: 3, Penalty: 0.4}, {MinGrade: 9, Penalty: 1.2},
		},
		SelectiveInquiryConvert: true,
		Scale:                   400,
	},
	"연세대학교": {
		University: "연세대학교",
		SubjectWeights: map[domain.Subject]float64{
			domain.SubjectKorean: 0.3, domain.SubjectMath: 0.3,
			domain.SubjectEnglish: 0.15, domain.SubjectInquiry1: 0.125, domain.SubjectInquiry2: 0.125,
		},
		ScoreTypeUsed: map[domain.Subject]ScoreTypeUsed{
			domain.SubjectKorean: ScoreTypePercentile, domain.SubjectMath: ScoreTypePercentile,
			domain.SubjectEnglish: ScoreTypeStandard,
			domain.SubjectInquiry1: ScoreTypePercentile, domain.SubjectInquiry2: ScoreTypePercentile,
		},
		HistoryPenaltyTable: []PenaltyBand{
			{MinGrade: 1, Penalty: 0}, {MinGrade: 4, Penalty: 0.5}, {MinGrade: 9, Penalty: 1.5},
		},
		Scale: 1000,
	},
	"고려대학교": {
		University: "고려대학교",
		SubjectWeights: map[domain.Subject]float64{
			domain.SubjectKorean: 0.25, domain.SubjectMath: 0.3,
			domain.SubjectEnglish: 0.15, domain.SubjectInquiry1: 0.15, domain.SubjectInquiry2: 0.15,
		},
		ScoreTypeUsed: map[domain.Subject]ScoreTypeUsed{
			domain.SubjectKorean: ScoreTypeStandard, domain.SubjectMath: ScoreTypeStandard,
			domain.SubjectEnglish: ScoreTypeStandard,
			domain.SubjectInquiry1: ScoreTypeConverted, domain.SubjectInquiry2: ScoreTypeConverted,
		},
		SelectiveInquiryConvert: true,
		Scale:                   1000,
	},
	"서강대학교": {
		University: "서강대학교",
		SubjectWeights: map[domain.Subject]float64{
			domain.SubjectKorean: 0.3, domain.SubjectMath: 0.3,
			domain.SubjectEnglish: 0.2, domain.SubjectInquiry1: 0.1, domain.SubjectInquiry2: 0.1,
		},
		ScoreTypeUsed: map[domain.Subject]ScoreTypeUsed{
			domain.SubjectKorean: ScoreTypePercentile, domain.SubjectMath: ScoreTypePercentile,
			domain.SubjectEnglish: ScoreTypeStandard,
			domain.SubjectInquiry1: ScoreTypePercentile, domain.SubjectInquiry2: ScoreTypePercentile,
		},
		Scale: 1000,
	},
	"경희대학교": {
		University: "경희대학교",
		SubjectWeights: map[domain.Subject]float64{
			domain.SubjectKorean: 0.3, domain.SubjectMath: 0.3,
			domain.SubjectEnglish: 0.1, domain.SubjectInquiry1: 0.15, domain.SubjectInquiry2: 0.15,
		},
		ScoreTypeUsed: map[domain.Subject]ScoreTypeUsed{
			domain.SubjectKorean: ScoreTypePercentile, domain.SubjectMath: ScoreTypePercentile,
			domain.SubjectEnglish: ScoreTypeStandard,
			domain.SubjectInquiry1: ScoreTypePercentile, domain.SubjectInquiry2: ScoreTypePercentile,
		},
		Scale: 1000,
	},
}

// Universities lists the fixed closed set of recognized canonical
// university names (spec §4.1 "a canonical Korean university name from a
// fixed closed set").
func Universities() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// IsKnownUniversity reports whether name is in the closed university set.
func IsKnownUniversity(name string) bool {
	_, ok := registry[name]
	return ok
}

// Convert maps NormalizedScores to a per-university total via that
// university's declarative formula (spec §4.3).
func Convert(university string, ns domain.NormalizedScores) (domain.UniversityTotal, error) {
	f, ok := registry[university]
	if !ok {
		return domain.UniversityTotal{}, fmt.Errorf("score: unknown university %q", university)
	}
	breakdown := make(map[domain.Subject]float64, len(f.SubjectWeights))
	var total float64
	for subject, weight := range f.SubjectWeights {
		n, ok := ns[subject]
		if !ok {
			continue
		}
		val := valueForScoreType(n, f.ScoreTypeUsed[subject])
		contribution := val * weight
		breakdown[subject] = contribution
		total += contribution
	}
	if eng, ok := ns[domain.SubjectEnglish]; ok {
		total -= penaltyFor(f.EnglishPenaltyTable, eng.Grade)
	}
	if his, ok := ns[domain.SubjectHistory]; ok {
		total -= penaltyFor(f.HistoryPenaltyTable, his.Grade)
	}
	return domain.UniversityTotal{
		University: university,
		Total:      total,
		Scale:      f.Scale,
		Breakdown:  breakdown,
	}, nil
}

func valueForScoreType(n domain.NormalizedScore, st ScoreTypeUsed) float64 {
	switch st {
	case ScoreTypeConverted:
		if n.Converted != nil {
			return *n.Converted
		}
		return n.StandardScore
	case ScoreTypePercentile:
		return n.Percentile
	default:
		return n.StandardScore
	}
}

func penaltyFor(table []PenaltyBand, grade int) float64 {
	var penalty float64
	for _, band := range table {
		if grade >= band.MinGrade {
			penalty = band.Penalty
		}
	}
	return penalty
}
