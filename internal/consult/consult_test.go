package consult

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rlaxogns100-oss/uniroad-agent/internal/domain"
)

func intPtr(i int) *int          { return &i }
func floatPtr(f float64) *float64 { return &f }

func TestRunNoScoresReturnsDiagnostic(t *testing.T) {
	res := Run(Params{}, nil)
	require.Empty(t, res.Chunks)
	require.NotEmpty(t, res.Diagnostic)
}

func TestRunProducesChunksPerTargetUniversity(t *testing.T) {
	params := Params{
		Scores: domain.ScoreSnapshot{
			domain.SubjectKorean: domain.RawScore{Grade: intPtr(1)},
			domain.SubjectMath:   domain.RawScore{Grade: intPtr(2)},
		},
		TargetUniv: []string{"서울대학교", "연세대학교"},
	}

	res := Run(params, nil)
	require.NotEmpty(t, res.Chunks)
	require.NotEmpty(t, res.ExtractedScores)
	for _, c := range res.Chunks {
		require.Equal(t, "score_engine", c.Source)
	}
}

func TestRunIncludesReverseSearchChunkWhenCutoffsMatch(t *testing.T) {
	params := Params{
		Scores: domain.ScoreSnapshot{
			domain.SubjectKorean: domain.RawScore{StandardScore: floatPtr(130)},
			domain.SubjectMath:   domain.RawScore{StandardScore: floatPtr(125)},
		},
		TargetUniv: []string{"서울대학교"},
	}
	cutoffs := []domain.AdmissionCutoff{
		{University: "서울대학교", Major: "컴퓨터공학부", Cutoff: 10},
	}

	res := Run(params, cutoffs)
	require.GreaterOrEqual(t, len(res.Chunks), 2)
}

func TestRunInvalidScoreProducesDiagnostic(t *testing.T) {
	params := Params{
		Scores: domain.ScoreSnapshot{
			domain.SubjectKorean: domain.RawScore{},
		},
	}

	res := Run(params, nil)
	require.Empty(t, res.Chunks)
	require.NotEmpty(t, res.Diagnostic)
}
