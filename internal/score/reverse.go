package score

import (
	"math"
	"sort"

	"github.com/rlaxogns100-oss/uniroad-agent/internal/domain"
)

// ReverseSearchFilters narrows the reverse search by target school, major,
// or band (spec §4.3 "consult.params").
type ReverseSearchFilters struct {
	TargetUniv  []string
	TargetMajor []string
	TargetRange []domain.Band
}

// ReverseSearch ranks admission-history records by distance between the
// student's computed per-university total and each record's historical
// cutoff, classifying each into a band via the bundled δ parameters
// (spec §4.3).
func ReverseSearch(ns domain.NormalizedScores, cutoffs []domain.AdmissionCutoff, filters ReverseSearchFilters) []domain.ReverseSearchHit {
	return reverseSearchWith(Default(), ns, cutoffs, filters)
}

func reverseSearchWith(t *Tables, ns domain.NormalizedScores, cutoffs []domain.AdmissionCutoff, filters ReverseSearchFilters) []domain.ReverseSearchHit {
	wantUniv := toSet(filters.TargetUniv)
	wantMajor := toSet(filters.TargetMajor)
	wantBand := make(map[domain.Band]bool, len(filters.TargetRange))
	for _, b := range filters.TargetRange {
		wantBand[b] = true
	}

	var hits []domain.ReverseSearchHit
	for _, c := range cutoffs {
		if len(wantUniv) > 0 && !wantUniv[c.University] {
			continue
		}
		if len(wantMajor) > 0 && !wantMajor[c.Major] {
			continue
		}
		total, err := Convert(c.University, ns)
		if err != nil {
			continue
		}
		band := classifyBand(t.Deltas, total.Total, c.Cutoff)
		if band == "" {
			continue
		}
		if len(wantBand) > 0 && !wantBand[band] {
			continue
		}
		hits = append(hits, domain.ReverseSearchHit{
			University: c.University,
			Major:      c.Major,
			Band:       band,
			Cutoff:     c.Cutoff,
			Total:      total.Total,
			Distance:   math.Abs(total.Total - c.Cutoff),
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Band != hits[j].Band {
			return bandOrder(hits[i].Band) < bandOrder(hits[j].Band)
		}
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].University < hits[j].University
	})
	return hits
}

// classifyBand implements spec §4.3's band boundaries:
//   안정 (stable):      total >= cutoff + δ1
//   적정 (appropriate):  cutoff - δ2 <= total < cutoff + δ1  (from δ2 below the cutoff up to, not including, the stable floor)
//   소신 (reach):        cutoff - δ3 <= total < cutoff - δ2
//   도전 (challenge):    cutoff - δ4 <= total < cutoff - δ3
func classifyBand(d BandDeltas, total, cutoff float64) domain.Band {
	switch {
	case total >= cutoff+d.Delta1:
		return domain.BandStable
	case total >= cutoff-d.Delta2:
		return domain.BandAppropriate
	case total >= cutoff-d.Delta3:
		return domain.BandReach
	case total >= cutoff-d.Delta4:
		return domain.BandChallenge
	default:
		return ""
	}
}

func bandOrder(b domain.Band) int {
	for i, x := range domain.AllBands {
		if x == b {
			return i
		}
	}
	return len(domain.AllBands)
}

func toSet(items []string) map[string]bool {
	if len(items) == 0 {
		return nil
	}
	out := make(map[string]bool, len(items))
	for _, s := range items {
		out[s] = true
	}
	return out
}
