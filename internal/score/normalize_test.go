package score

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rlaxogns100-oss/uniroad-agent/internal/domain"
)

func gradePtr(g int) *int { return &g }

func f64Ptr(f float64) *float64 { return &f }

func TestNormalizePassThroughWhenFullTriplePresent(t *testing.T) {
	snapshot := domain.ScoreSnapshot{
		domain.SubjectKorean: domain.RawScore{
			Grade:         gradePtr(2),
			StandardScore: f64Ptr(128),
			Percentile:    f64Ptr(89),
		},
	}

	ns, err := Normalize(snapshot)
	require.NoError(t, err)

	got := ns[domain.SubjectKorean]
	require.Equal(t, 2, got.Grade)
	require.Equal(t, 128.0, got.StandardScore)
	require.Equal(t, 89.0, got.Percentile)
}

func TestNormalizeFromGradeOnlyFillsBandMidpoint(t *testing.T) {
	snapshot := domain.ScoreSnapshot{
		domain.SubjectMath: domain.RawScore{Grade: gradePtr(1)},
	}

	ns, err := Normalize(snapshot)
	require.NoError(t, err)

	got := ns[domain.SubjectMath]
	require.Equal(t, 1, got.Grade)
	require.Greater(t, got.Percentile, 0.0)
	require.Greater(t, got.StandardScore, 0.0)
}

func TestNormalizeFromPercentileOnlyPreservesExactValue(t *testing.T) {
	snapshot := domain.ScoreSnapshot{
		domain.SubjectEnglish: domain.RawScore{Percentile: f64Ptr(93.4)},
	}

	ns, err := Normalize(snapshot)
	require.NoError(t, err)

	got := ns[domain.SubjectEnglish]
	require.Equal(t, 93.4, got.Percentile)
	require.Greater(t, got.Grade, 0)
}

func TestNormalizeFromStandardScoreOnlyPreservesExactValue(t *testing.T) {
	snapshot := domain.ScoreSnapshot{
		domain.SubjectInquiry1: domain.RawScore{StandardScore: f64Ptr(71)},
	}

	ns, err := Normalize(snapshot)
	require.NoError(t, err)

	got := ns[domain.SubjectInquiry1]
	require.Equal(t, 71.0, got.StandardScore)
}

func TestNormalizeRejectsEmptyRawScore(t *testing.T) {
	snapshot := domain.ScoreSnapshot{
		domain.SubjectKorean: domain.RawScore{},
	}

	_, err := Normalize(snapshot)
	require.Error(t, err)
}

func TestNormalizeClampsOutOfRangePercentile(t *testing.T) {
	snapshot := domain.ScoreSnapshot{
		domain.SubjectKorean: domain.RawScore{Percentile: f64Ptr(1000)},
	}

	ns, err := Normalize(snapshot)
	require.NoError(t, err)
	require.Equal(t, 1, ns[domain.SubjectKorean].Grade)
}

func TestNormalizeIsDeterministic(t *testing.T) {
	snapshot := domain.ScoreSnapshot{
		domain.SubjectKorean:   domain.RawScore{Grade: gradePtr(3)},
		domain.SubjectMath:     domain.RawScore{StandardScore: f64Ptr(120)},
		domain.SubjectEnglish:  domain.RawScore{Percentile: f64Ptr(88)},
		domain.SubjectInquiry1: domain.RawScore{Grade: gradePtr(2), Elective: "생활과윤리"},
	}

	first, err := Normalize(snapshot)
	require.NoError(t, err)
	second, err := Normalize(snapshot)
	require.NoError(t, err)
	require.Equal(t, first, second)
}
