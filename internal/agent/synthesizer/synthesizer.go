// Package synthesizer implements C7: streaming the final answer as a
// sequence of citation-tagged, section-grammar-conformant text (spec
// §4.6).
package synthesizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/rlaxogns100-oss/uniroad-agent/internal/domain"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/platform/gateway"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/platform/logger"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/platform/promptstyle"
)

// Citation is one evidence descriptor the Synthesizer may quote (spec
// §4.6 "citation descriptor").
type Citation struct {
	Title   string
	Source  string
	FileURL string
	Page    *int
}

type FunctionOutput struct {
	FunctionName string
	Params       map[string]interface{}
	Output       interface{}
}

type HistoryTurn struct {
	Role    domain.Role
	Content string
}

type Params struct {
	Utterance string
	History   []HistoryTurn
	Functions []FunctionOutput
	Citations []Citation
}

// Result is the fully-collected output after streaming completes, used by
// the orchestrator to build the terminal done event (spec §4.5).
type Result struct {
	Text       string
	Sources    []string
	SourceURLs []string
}

type Agent interface {
	// Stream invokes onDelta for each emitted token/chunk and returns the
	// final collected Result once the stream ends or falls back.
	Stream(ctx context.Context, p Params, onDelta func(delta string)) (Result, error)
}

type agent struct {
	gw  gateway.Client
	log *logger.Logger
}

func New(gw gateway.Client, log *logger.Logger) Agent {
	return &agent{gw: gw, log: log.With("agent", "Synthesizer")}
}

func (a *agent) Stream(ctx context.Context, p Params, onDelta func(delta string)) (Result, error) {
	system := promptstyle.ApplySystem(systemPrompt, "text")
	user := buildUserPrompt(p)

	var buf strings.Builder
	text, err := a.gw.StreamText(ctx, system, user, func(delta string) {
		buf.WriteString(delta)
		if onDelta != nil {
			onDelta(delta)
		}
	})
	if err != nil {
		// Fallback per spec §4.6: emit a newline plus a warning section,
		// then a done summarizing whatever text and citations were
		// collected before the failure.
		a.log.Warn("synthesizer: model stream failed, falling back", "error", err.Error())
		partial := buf.String()
		if partial != "" && onDelta != nil {
			onDelta("\n")
		}
		warning := fallbackWarningSection()
		if onDelta != nil {
			onDelta(warning)
		}
		text = partial + "\n" + warning
	}

	sources, urls := extractCitedSources(text, p.Citations)
	return Result{Text: text, Sources: sources, SourceURLs: urls}, nil
}

func fallbackWarningSection() string {
	return `===SECTION_START:warning===일시적인 오류로 답변이 중단되었습니다. 다시 시도해 주세요.===SECTION_END===`
}

// extractCitedSources walks emitted <cite data-source="..."> tags in
// first-appearance order, keeping only sources present in the supplied
// citation descriptor set (spec §4.6 "Citation soundness", "Deduplication
// & aggregation").
func extractCitedSources(text string, citations []Citation) (sources, urls []string) {
	known := make(map[string]string, len(citations))
	for _, c := range citations {
		known[c.Source] = c.FileURL
	}
	seen := make(map[string]bool)

	const attr = `data-source="`
	rest := text
	for {
		idx := strings.Index(rest, attr)
		if idx < 0 {
			break
		}
		rest = rest[idx+len(attr):]
		end := strings.Index(rest, `"`)
		if end < 0 {
			break
		}
		src := rest[:end]
		rest = rest[end:]
		if _, ok := known[src]; !ok {
			continue
		}
		if seen[src] {
			continue
		}
		seen[src] = true
		sources = append(sources, src)
		urls = append(urls, known[src])
	}
	return sources, urls
}

const systemPrompt = `You are the final answer writer for a Korean university admissions counseling assistant.
Write your entire response as one or more sections using exactly this grammar, with no text outside a section:
===SECTION_START:TYPE===body===SECTION_END===
TYPE must be one of: empathy, fact_check, analysis, recommendation, warning, encouragement, next_step.
Inside a body, cite evidence using: <cite data-source="SOURCE" data-url="URL">quoted or paraphrased text</cite>.
Only cite a data-source value that was given to you in the evidence block below; never invent a source.
Never split a ===SECTION_START=== or ===SECTION_END=== marker across your output.
If no evidence was supplied, still answer with an empathy section and a next_step section; do not fabricate facts.`

func buildUserPrompt(p Params) string {
	var b strings.Builder
	if len(p.History) > 0 {
		b.WriteString("Conversation history (oldest first):\n")
		for _, t := range p.History {
			fmt.Fprintf(&b, "[%s] %s\n", t.Role, t.Content)
		}
		b.WriteString("\n")
	}

	if len(p.Functions) > 0 {
		b.WriteString("Function outputs:\n")
		for _, f := range p.Functions {
			fmt.Fprintf(&b, "- %s(%v) -> %v\n", f.FunctionName, f.Params, f.Output)
		}
		b.WriteString("\n")
	}

	if len(p.Citations) > 0 {
		b.WriteString("Evidence you may cite (data-source values you are allowed to use):\n")
		for _, c := range p.Citations {
			page := ""
			if c.Page != nil {
				page = fmt.Sprintf(" page=%d", *c.Page)
			}
			fmt.Fprintf(&b, "- source=%q url=%q title=%q%s\n", c.Source, c.FileURL, c.Title, page)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Current user message: %s", p.Utterance)
	return b.String()
}
