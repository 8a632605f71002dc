package score

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rlaxogns100-oss/uniroad-agent/internal/domain"
)

func fullSnapshot() domain.ScoreSnapshot {
	return domain.ScoreSnapshot{
		domain.SubjectKorean:   domain.RawScore{StandardScore: f64Ptr(130), Percentile: f64Ptr(96), Grade: gradePtr(1)},
		domain.SubjectMath:     domain.RawScore{StandardScore: f64Ptr(125), Percentile: f64Ptr(93), Grade: gradePtr(1)},
		domain.SubjectEnglish:  domain.RawScore{Grade: gradePtr(2)},
		domain.SubjectInquiry1: domain.RawScore{StandardScore: f64Ptr(68), Percentile: f64Ptr(90), Grade: gradePtr(1), Elective: "생활과윤리"},
		domain.SubjectInquiry2: domain.RawScore{StandardScore: f64Ptr(65), Percentile: f64Ptr(85), Grade: gradePtr(2), Elective: "사회문화"},
		domain.SubjectHistory:  domain.RawScore{Grade: gradePtr(3)},
	}
}

func TestUniversitiesIsSorted(t *testing.T) {
	names := Universities()
	require.Len(t, names, 5)
	for i := 1; i < len(names); i++ {
		require.Less(t, names[i-1], names[i])
	}
}

func TestIsKnownUniversity(t *testing.T) {
	require.True(t, IsKnownUniversity("서울대학교"))
	require.False(t, IsKnownUniversity("미확인대학교"))
}

func TestConvertUnknownUniversityErrors(t *testing.T) {
	ns, err := Normalize(fullSnapshot())
	require.NoError(t, err)

	_, err = Convert("미확인대학교", ns)
	require.Error(t, err)
}

func TestConvertProducesPositiveTotalWithinScale(t *testing.T) {
	ns, err := Normalize(fullSnapshot())
	require.NoError(t, err)

	for _, univ := range Universities() {
		total, err := Convert(univ, ns)
		require.NoError(t, err)
		require.Greater(t, total.Total, 0.0)
		require.LessOrEqual(t, total.Total, total.Scale)
		require.NotEmpty(t, total.Breakdown)
	}
}

func TestConvertSkipsAbsentSubjects(t *testing.T) {
	ns, err := Normalize(domain.ScoreSnapshot{
		domain.SubjectKorean: domain.RawScore{Grade: gradePtr(1)},
	})
	require.NoError(t, err)

	total, err := Convert("서울대학교", ns)
	require.NoError(t, err)
	require.Contains(t, total.Breakdown, domain.SubjectKorean)
	require.NotContains(t, total.Breakdown, domain.SubjectMath)
}

func TestConvertAppliesEnglishPenaltyForLowGrade(t *testing.T) {
	base := fullSnapshot()
	lowEnglish := fullSnapshot()
	lowEnglish[domain.SubjectEnglish] = domain.RawScore{Grade: gradePtr(8)}

	nsBase, err := Normalize(base)
	require.NoError(t, err)
	nsLow, err := Normalize(lowEnglish)
	require.NoError(t, err)

	totalBase, err := Convert("서울대학교", nsBase)
	require.NoError(t, err)
	totalLow, err := Convert("서울대학교", nsLow)
	require.NoError(t, err)

	require.Less(t, totalLow.Total, totalBase.Total)
}
