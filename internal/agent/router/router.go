// Package router implements C6: translating a user turn plus bounded
// history into a typed invocation plan over the univ and consult
// functions (spec §4.1).
package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/rlaxogns100-oss/uniroad-agent/internal/domain"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/platform/gateway"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/platform/logger"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/platform/promptstyle"
)

const (
	maxCalls     = 6
	contextTurns = 20
)

type Function string

const (
	FunctionUniv    Function = "univ"
	FunctionConsult Function = "consult"
)

type UnivParams struct {
	University string `json:"university"`
	Query      string `json:"query"`
}

type ConsultParams struct {
	Scores      domain.ScoreSnapshot `json:"scores"`
	TargetUniv  []string             `json:"target_univ"`
	TargetMajor []string             `json:"target_major"`
	TargetRange []string             `json:"target_range"`
}

// Call is one planned function invocation. Params is decoded generically
// and converted into UnivParams/ConsultParams by the caller once Function
// is known, since the model emits one JSON shape covering both variants.
type Call struct {
	Function Function               `json:"function"`
	Params   map[string]interface{} `json:"params"`
}

type Plan struct {
	FunctionCalls []Call `json:"function_calls"`
}

type HistoryTurn struct {
	Role    domain.Role
	Content string
}

type Params struct {
	Utterance string
	History   []HistoryTurn
	ImageDesc string
}

type Agent interface {
	Plan(ctx context.Context, p Params) (Plan, error)
}

type agent struct {
	gw  gateway.Client
	log *logger.Logger
}

func New(gw gateway.Client, log *logger.Logger) Agent {
	return &agent{gw: gw, log: log.With("agent", "Router")}
}

// Plan never returns an error for model/JSON failures (spec §4.1
// "Failure"): those degrade to an empty plan. A non-nil error only
// signals an unrecoverable caller mistake (unused currently, kept for
// interface symmetry with other agents).
func (a *agent) Plan(ctx context.Context, p Params) (Plan, error) {
	system := promptstyle.ApplySystem(systemPrompt, "json")
	user := buildUserPrompt(p)

	var plan Plan
	if err := a.gw.GenerateJSON(ctx, system, user, &plan); err != nil {
		a.log.Warn("router: model call failed, emitting empty plan", "error", err.Error())
		return Plan{FunctionCalls: nil}, nil
	}

	plan.FunctionCalls = sanitize(plan.FunctionCalls, a.log)
	return plan, nil
}

// sanitize enforces de-duplication, the max-calls bound, and silent
// dropping of unrecognized function names (spec §4.1 "Determinism &
// ordering"; SPEC_FULL §Open Questions "dropped silently, logged at Warn").
func sanitize(calls []Call, log *logger.Logger) []Call {
	seen := make(map[string]bool, len(calls))
	out := make([]Call, 0, len(calls))
	for _, c := range calls {
		if c.Function != FunctionUniv && c.Function != FunctionConsult {
			log.Warn("router: dropping unknown function from plan", "function", string(c.Function))
			continue
		}
		key := string(c.Function) + ":" + canonicalizeParams(c.Params)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
		if len(out) == maxCalls {
			break
		}
	}
	return out
}

func canonicalizeParams(params map[string]interface{}) string {
	var b strings.Builder
	for _, k := range sortedKeys(params) {
		fmt.Fprintf(&b, "%s=%v;", k, params[k])
	}
	return b.String()
}

func sortedKeys(m map[string]interface{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

const systemPrompt = `You plan which retrieval functions to call for a Korean university admissions assistant.
Decide whether to call "univ" (document retrieval for a specific university), "consult" (score-based consulting), both, or neither.
Respond with a single JSON object: {"function_calls": [{"function": "univ"|"consult", "params": {...}}]}.
univ.params = {"university": string, "query": string}. The query must be self-contained: resolve all pronouns against history yourself, never leave a pronoun for the retrieval step to resolve.
consult.params = {"scores": {...}, "target_univ": string[], "target_major": string[], "target_range": string[]}.
If nothing needs to be looked up, return {"function_calls": []}.`

func buildUserPrompt(p Params) string {
	var b strings.Builder
	if len(p.History) > 0 {
		b.WriteString("Conversation history (oldest first):\n")
		start := 0
		if len(p.History) > 2*contextTurns {
			start = len(p.History) - 2*contextTurns
		}
		for _, t := range p.History[start:] {
			fmt.Fprintf(&b, "[%s] %s\n", t.Role, t.Content)
		}
		b.WriteString("\n")
	}
	if strings.TrimSpace(p.ImageDesc) != "" {
		fmt.Fprintf(&b, "Attached image description: %s\n\n", p.ImageDesc)
	}
	fmt.Fprintf(&b, "Current user message: %s", p.Utterance)
	return b.String()
}
