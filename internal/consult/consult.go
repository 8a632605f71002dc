// Package consult implements C5: the consult function, which invokes the
// score engine (C3) and formats its output into the citation-style chunks
// the synthesizer can quote uniformly alongside retrieval results
// (spec §4.3).
package consult

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rlaxogns100-oss/uniroad-agent/internal/domain"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/score"
)

type Params struct {
	Scores      domain.ScoreSnapshot
	TargetUniv  []string
	TargetMajor []string
	TargetRange []domain.Band
}

type Chunk struct {
	Content string `json:"content"`
	Title   string `json:"title"`
	Source  string `json:"source"`
	FileURL string `json:"file_url"`
}

type Result struct {
	Chunks          []Chunk              `json:"chunks"`
	TargetUniv      []string             `json:"target_univ"`
	TargetMajor     []string             `json:"target_major"`
	ExtractedScores domain.NormalizedScores `json:"extracted_scores"`
	Diagnostic      string               `json:"diagnostic,omitempty"`
}

// Run executes the consult function (spec §4.3). cutoffs is the reverse
// search corpus, normally loaded once at startup via score/cutoffs.
func Run(params Params, cutoffs []domain.AdmissionCutoff) Result {
	if len(params.Scores) == 0 {
		return Result{
			TargetUniv:  params.TargetUniv,
			TargetMajor: params.TargetMajor,
			Diagnostic:  "no scores present in consult call",
		}
	}

	ns, err := score.Normalize(params.Scores)
	if err != nil {
		return Result{
			TargetUniv:  params.TargetUniv,
			TargetMajor: params.TargetMajor,
			Diagnostic:  fmt.Sprintf("score normalization failed: %v", err),
		}
	}

	var chunks []Chunk

	targets := params.TargetUniv
	if len(targets) == 0 {
		targets = score.Universities()
	}
	for _, univ := range targets {
		total, err := score.Convert(univ, ns)
		if err != nil {
			continue
		}
		chunks = append(chunks, Chunk{
			Content: formatBreakdown(total),
			Title:   univ + " 환산 점수",
			Source:  "score_engine",
		})
	}

	hits := score.ReverseSearch(ns, cutoffs, score.ReverseSearchFilters{
		TargetUniv:  params.TargetUniv,
		TargetMajor: params.TargetMajor,
		TargetRange: params.TargetRange,
	})
	if len(hits) > 0 {
		chunks = append(chunks, Chunk{
			Content: formatHits(hits),
			Title:   "지원 가능 대학 분석",
			Source:  "score_engine",
		})
	}

	return Result{
		Chunks:          chunks,
		TargetUniv:      params.TargetUniv,
		TargetMajor:     params.TargetMajor,
		ExtractedScores: ns,
	}
}

func formatBreakdown(t domain.UniversityTotal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s 환산총점: %.1f / %.0f\n", t.University, t.Total, t.Scale)
	subjects := make([]string, 0, len(t.Breakdown))
	for s := range t.Breakdown {
		subjects = append(subjects, string(s))
	}
	sort.Strings(subjects)
	for _, s := range subjects {
		fmt.Fprintf(&b, "- %s: %.1f\n", s, t.Breakdown[domain.Subject(s)])
	}
	return b.String()
}

func formatHits(hits []domain.ReverseSearchHit) string {
	var b strings.Builder
	for _, h := range hits {
		fmt.Fprintf(&b, "- [%s] %s %s: 환산점수 %.1f, 예상 커트라인 %.1f (격차 %.1f)\n",
			h.Band, h.University, h.Major, h.Total, h.Cutoff, h.Distance)
	}
	return b.String()
}
