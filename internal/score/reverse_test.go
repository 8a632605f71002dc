package score

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rlaxogns100-oss/uniroad-agent/internal/domain"
)

func TestClassifyBandBoundaries(t *testing.T) {
	d := Default().Deltas

	require.Equal(t, domain.BandStable, classifyBand(d, 100+d.Delta1, 100))
	require.Equal(t, domain.BandAppropriate, classifyBand(d, 100-d.Delta2, 100))
	require.Equal(t, domain.BandReach, classifyBand(d, 100-d.Delta3, 100))
	require.Equal(t, domain.BandChallenge, classifyBand(d, 100-d.Delta4, 100))
	require.Equal(t, domain.Band(""), classifyBand(d, 100-d.Delta4-1, 100))
}

func TestReverseSearchRanksByBandThenDistance(t *testing.T) {
	ns, err := Normalize(fullSnapshot())
	require.NoError(t, err)

	total, err := Convert("서울대학교", ns)
	require.NoError(t, err)

	cutoffs := []domain.AdmissionCutoff{
		{University: "서울대학교", Major: "A", Cutoff: total.Total - 100},
		{University: "서울대학교", Major: "B", Cutoff: total.Total - 1},
		{University: "서울대학교", Major: "C", Cutoff: total.Total + 1000},
	}

	hits := ReverseSearch(ns, cutoffs, ReverseSearchFilters{})
	require.NotEmpty(t, hits)
	for i := 1; i < len(hits); i++ {
		require.LessOrEqual(t, bandOrder(hits[i-1].Band), bandOrder(hits[i].Band))
	}
}

func TestReverseSearchFiltersByUniversity(t *testing.T) {
	ns, err := Normalize(fullSnapshot())
	require.NoError(t, err)

	total, err := Convert("연세대학교", ns)
	require.NoError(t, err)

	cutoffs := []domain.AdmissionCutoff{
		{University: "연세대학교", Major: "경영학과", Cutoff: total.Total},
		{University: "고려대학교", Major: "경영학과", Cutoff: total.Total},
	}

	hits := ReverseSearch(ns, cutoffs, ReverseSearchFilters{TargetUniv: []string{"연세대학교"}})
	require.Len(t, hits, 1)
	require.Equal(t, "연세대학교", hits[0].University)
}

func TestReverseSearchFiltersByBand(t *testing.T) {
	ns, err := Normalize(fullSnapshot())
	require.NoError(t, err)

	total, err := Convert("서울대학교", ns)
	require.NoError(t, err)

	cutoffs := []domain.AdmissionCutoff{
		{University: "서울대학교", Major: "멀리", Cutoff: total.Total + 10000},
		{University: "서울대학교", Major: "가까이", Cutoff: total.Total},
	}

	hits := ReverseSearch(ns, cutoffs, ReverseSearchFilters{TargetRange: []domain.Band{domain.BandAppropriate}})
	require.Len(t, hits, 1)
	require.Equal(t, "가까이", hits[0].Major)
}

func TestReverseSearchSkipsUnknownUniversity(t *testing.T) {
	ns, err := Normalize(fullSnapshot())
	require.NoError(t, err)

	cutoffs := []domain.AdmissionCutoff{
		{University: "미확인대학교", Major: "X", Cutoff: 0},
	}

	hits := ReverseSearch(ns, cutoffs, ReverseSearchFilters{})
	require.Empty(t, hits)
}
