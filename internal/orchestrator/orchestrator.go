// Package orchestrator implements C8: the per-turn pipeline that wires
// the quota limiter, session store, router, retrieval/consult functions,
// and synthesizer into the single event stream a client consumes over SSE
// (spec §4.5).
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/rlaxogns100-oss/uniroad-agent/internal/agent/router"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/agent/synthesizer"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/consult"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/domain"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/platform/docstore"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/platform/embedcache"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/platform/gateway"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/platform/logger"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/platform/observability"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/quota"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/retrieval"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/session"
)

// Per-step deadlines, spec §5 "Concurrency & Resource Model". No whole-turn
// deadline is applied: config.Config.TurnDeadline is loaded but neither this
// package nor its HTTP caller uses it, so a turn is bounded only by these
// per-step deadlines and the request context.
const (
	routerTimeout      = 15 * time.Second
	functionTimeout    = 20 * time.Second
	synthesizerTimeout = 60 * time.Second
	maxConcurrentCalls = 4
	persistTimeout     = 10 * time.Second
)

type EventType string

const (
	EventStatus EventType = "status"
	EventChunk  EventType = "chunk"
	EventDone   EventType = "done"
	EventError  EventType = "error"
)

// Event is the exact shape serialized onto the SSE wire (spec §4.5, §6).
type Event struct {
	Type       EventType        `json:"type"`
	Step       string           `json:"step,omitempty"`
	Detail     map[string]any   `json:"detail,omitempty"`
	Text       string           `json:"text,omitempty"`
	Sources    []string         `json:"sources,omitempty"`
	SourceURLs []string         `json:"source_urls,omitempty"`
	UsedChunks []string         `json:"used_chunks,omitempty"`
	Timing     map[string]int64 `json:"timing,omitempty"`
	Message    string           `json:"message,omitempty"`
}

type TurnInput struct {
	Principal domain.Principal
	SessionID *uuid.UUID // nil starts a new session titled from Utterance
	Utterance string
	ImageDesc string
}

type Orchestrator struct {
	quota    quota.Limiter
	sessions session.Store
	router   router.Agent
	docs     docstore.Store
	gw       gateway.Client
	cutoffs  []domain.AdmissionCutoff
	synth    synthesizer.Agent
	cache    embedcache.Cache
	log      *logger.Logger

	tokenBudget   int
	tokensPerRune float64
}

func New(
	lim quota.Limiter,
	sessions session.Store,
	rtr router.Agent,
	docs docstore.Store,
	gw gateway.Client,
	cutoffs []domain.AdmissionCutoff,
	synth synthesizer.Agent,
	cache embedcache.Cache,
	tokenBudget int,
	tokensPerRune float64,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		quota:         lim,
		sessions:      sessions,
		router:        rtr,
		docs:          docs,
		gw:            gw,
		cutoffs:       cutoffs,
		synth:         synth,
		cache:         cache,
		tokenBudget:   tokenBudget,
		tokensPerRune: tokensPerRune,
		log:           log.With("service", "Orchestrator"),
	}
}

// RunTurn executes one turn and streams its events on the returned channel,
// closing it when the turn is complete. The channel is buffered at 16 (spec
// §9 "Streaming across async boundaries") so a momentarily slow consumer
// never stalls the pipeline goroutine.
func (o *Orchestrator) RunTurn(ctx context.Context, in TurnInput) <-chan Event {
	events := make(chan Event, 16)
	go o.run(ctx, in, events)
	return events
}

func (o *Orchestrator) run(ctx context.Context, in TurnInput, events chan<- Event) {
	defer close(events)
	start := time.Now()

	decision, _ := o.quota.Admit(ctx, in.Principal)
	if !decision.Allowed {
		send(ctx, events, Event{Type: EventError, Message: "daily quota exceeded"})
		return
	}

	sess, err := o.resolveSession(ctx, in)
	if err != nil {
		o.log.Warn("orchestrator: could not resolve session", "error", err.Error())
		send(ctx, events, Event{Type: EventError, Message: "could not resolve session"})
		return
	}

	history, err := o.sessions.RecentContext(ctx, sess.ID)
	if err != nil {
		o.log.Warn("orchestrator: loading recent context failed, continuing without it", "error", err.Error())
		history = nil
	}

	send(ctx, events, Event{Type: EventStatus, Step: "router"})

	routerCtx, cancel := context.WithTimeout(ctx, routerTimeout)
	plan, err := o.router.Plan(routerCtx, router.Params{
		Utterance: in.Utterance,
		History:   toRouterHistory(history),
		ImageDesc: in.ImageDesc,
	})
	cancel()
	if err != nil {
		o.log.Warn("orchestrator: router returned an error", "error", err.Error())
		plan = router.Plan{}
	}

	dispatched := make([]string, len(plan.FunctionCalls))
	for i, call := range plan.FunctionCalls {
		dispatched[i] = string(call.Function)
	}
	send(ctx, events, Event{Type: EventStatus, Step: "functions", Detail: map[string]any{"dispatched": dispatched}})

	outputs, citations := o.dispatchFunctions(ctx, plan, events)

	send(ctx, events, Event{Type: EventStatus, Step: "synthesizer"})

	synthCtx, cancelSynth := context.WithTimeout(ctx, synthesizerTimeout)
	result, err := o.synth.Stream(synthCtx, synthesizer.Params{
		Utterance: in.Utterance,
		History:   toSynthHistory(history),
		Functions: outputs,
		Citations: citations,
	}, func(delta string) {
		send(ctx, events, Event{Type: EventChunk, Text: delta})
	})
	cancelSynth()
	if err != nil {
		o.log.Warn("orchestrator: synthesizer returned an error", "error", err.Error())
	}

	send(ctx, events, Event{
		Type:       EventDone,
		Sources:    result.Sources,
		SourceURLs: result.SourceURLs,
		UsedChunks: usedChunkTitles(outputs),
		Timing:     map[string]int64{"total_ms": time.Since(start).Milliseconds()},
	})

	o.persistAsync(sess.ID, in, result)
}

// send never blocks past ctx cancellation, so a disconnected client's
// context propagates through the pipeline within the scheduler's normal
// goroutine-wakeup latency rather than stalling on a full channel.
func send(ctx context.Context, events chan<- Event, ev Event) {
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}

func (o *Orchestrator) resolveSession(ctx context.Context, in TurnInput) (*domain.Session, error) {
	if in.SessionID == nil {
		return o.sessions.CreateSession(ctx, in.Principal.ID, in.Utterance)
	}
	sess, err := o.sessions.GetSession(ctx, *in.SessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, fmt.Errorf("orchestrator: session %s not found", in.SessionID)
	}
	return sess, nil
}

type dispatchResult struct {
	output   synthesizer.FunctionOutput
	citation []synthesizer.Citation
	ok       bool
}

// dispatchFunctions runs the router's planned calls concurrently (capped at
// maxConcurrentCalls), each under its own functionTimeout, and collects
// their outputs back in plan order so the synthesizer sees a deterministic
// prompt regardless of completion order (spec §4.2, §4.3, §4.5 step 5).
func (o *Orchestrator) dispatchFunctions(ctx context.Context, plan router.Plan, events chan<- Event) ([]synthesizer.FunctionOutput, []synthesizer.Citation) {
	ctx, span := observability.Tracer().Start(ctx, "orchestrator.dispatchFunctions")
	span.SetAttributes(attribute.Int("function_calls", len(plan.FunctionCalls)))
	defer span.End()

	results := make([]dispatchResult, len(plan.FunctionCalls))

	var eg errgroup.Group
	eg.SetLimit(maxConcurrentCalls)
	for i, call := range plan.FunctionCalls {
		i, call := i, call
		eg.Go(func() error {
			results[i] = o.runCall(ctx, call)
			send(ctx, events, Event{Type: EventStatus, Step: "function_result", Detail: map[string]any{
				"name": string(call.Function),
				"ok":   results[i].ok,
			}})
			return nil
		})
	}
	_ = eg.Wait()

	outputs := make([]synthesizer.FunctionOutput, 0, len(results))
	var citations []synthesizer.Citation
	for _, r := range results {
		outputs = append(outputs, r.output)
		citations = append(citations, r.citation...)
	}
	return outputs, citations
}

func (o *Orchestrator) runCall(ctx context.Context, call router.Call) dispatchResult {
	callCtx, cancel := context.WithTimeout(ctx, functionTimeout)
	defer cancel()

	switch call.Function {
	case router.FunctionUniv:
		return o.runUniv(callCtx, call)
	case router.FunctionConsult:
		return o.runConsult(call)
	default:
		// sanitize() already drops unrecognized functions before this
		// point; reaching here would be a programming error upstream.
		return dispatchResult{output: synthesizer.FunctionOutput{FunctionName: string(call.Function)}}
	}
}

func (o *Orchestrator) runUniv(ctx context.Context, call router.Call) dispatchResult {
	ctx, span := observability.Tracer().Start(ctx, "orchestrator.runUniv")
	defer span.End()

	var p router.UnivParams
	if err := decodeParams(call.Params, &p); err != nil {
		o.log.Warn("orchestrator: malformed univ params, skipping", "error", err.Error())
		span.SetStatus(codes.Error, err.Error())
		return dispatchResult{output: synthesizer.FunctionOutput{FunctionName: string(call.Function), Params: call.Params}}
	}

	res, err := retrieval.Run(ctx, o.docs, o.gw, o.log, retrieval.Params{
		Query:         p.Query,
		University:    p.University,
		TokenBudget:   o.tokenBudget,
		TokensPerRune: o.tokensPerRune,
		Cache:         o.cache,
	})
	if err != nil {
		o.log.Warn("orchestrator: univ call failed", "university", p.University, "error", err.Error())
		span.SetStatus(codes.Error, err.Error())
		return dispatchResult{output: synthesizer.FunctionOutput{FunctionName: string(call.Function), Params: call.Params}}
	}

	citations := make([]synthesizer.Citation, 0, len(res.Chunks))
	for _, c := range res.Chunks {
		citations = append(citations, synthesizer.Citation{Title: c.Title, Source: c.Source, FileURL: c.FileURL})
	}
	return dispatchResult{
		output:   synthesizer.FunctionOutput{FunctionName: string(call.Function), Params: call.Params, Output: res},
		citation: citations,
		ok:       true,
	}
}

func (o *Orchestrator) runConsult(call router.Call) dispatchResult {
	var p router.ConsultParams
	if err := decodeParams(call.Params, &p); err != nil {
		o.log.Warn("orchestrator: malformed consult params, skipping", "error", err.Error())
		return dispatchResult{output: synthesizer.FunctionOutput{FunctionName: string(call.Function), Params: call.Params}}
	}

	bands := make([]domain.Band, 0, len(p.TargetRange))
	for _, b := range p.TargetRange {
		bands = append(bands, domain.Band(b))
	}

	res := consult.Run(consult.Params{
		Scores:      p.Scores,
		TargetUniv:  p.TargetUniv,
		TargetMajor: p.TargetMajor,
		TargetRange: bands,
	}, o.cutoffs)

	citations := make([]synthesizer.Citation, 0, len(res.Chunks))
	for _, c := range res.Chunks {
		citations = append(citations, synthesizer.Citation{Title: c.Title, Source: c.Source, FileURL: c.FileURL})
	}
	return dispatchResult{
		output:   synthesizer.FunctionOutput{FunctionName: string(call.Function), Params: call.Params, Output: res},
		citation: citations,
		ok:       true,
	}
}

// decodeParams round-trips the router's generic params map through sonic
// into a typed struct, the same JSON library the gateway uses to decode the
// model's raw output (spec §4.1).
func decodeParams(params map[string]interface{}, out interface{}) error {
	raw, err := sonic.Marshal(params)
	if err != nil {
		return err
	}
	return sonic.Unmarshal(raw, out)
}

// usedChunkTitles lists every chunk title made available to the synthesizer
// across all function outputs, in encounter order, deduplicated. This is
// the transparency surface for the done event's used_chunks (spec §4.5,
// §6), distinct from Result.Sources which is only what the model actually
// cited.
func usedChunkTitles(outputs []synthesizer.FunctionOutput) []string {
	seen := make(map[string]bool)
	var titles []string
	add := func(title string) {
		if title == "" || seen[title] {
			return
		}
		seen[title] = true
		titles = append(titles, title)
	}
	for _, o := range outputs {
		switch out := o.Output.(type) {
		case retrieval.Result:
			for _, c := range out.Chunks {
				add(c.Title)
			}
		case consult.Result:
			for _, c := range out.Chunks {
				add(c.Title)
			}
		}
	}
	return titles
}

func toRouterHistory(msgs []*domain.Message) []router.HistoryTurn {
	out := make([]router.HistoryTurn, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, router.HistoryTurn{Role: m.Role, Content: m.Content})
	}
	return out
}

func toSynthHistory(msgs []*domain.Message) []synthesizer.HistoryTurn {
	out := make([]synthesizer.HistoryTurn, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, synthesizer.HistoryTurn{Role: m.Role, Content: m.Content})
	}
	return out
}

// persistAsync appends the turn's messages on a detached context so a
// client that disconnected (cancelling the request context) doesn't also
// cancel persistence; failures are logged, never surfaced back to the
// client whose done event has already been sent (spec §7 "Database
// unreachable (writes)").
func (o *Orchestrator) persistAsync(sessionID uuid.UUID, in TurnInput, result synthesizer.Result) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		ctx, span := observability.Tracer().Start(ctx, "orchestrator.persistAsync")
		span.SetAttributes(attribute.String("session_id", sessionID.String()))
		defer span.End()

		_, err := o.sessions.AppendMessages(ctx, sessionID,
			session.AppendInput{Role: domain.RoleUser, Content: in.Utterance},
			session.AppendInput{Role: domain.RoleAssistant, Content: result.Text, Sources: result.Sources, SourceURLs: result.SourceURLs},
		)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			o.log.Warn("orchestrator: persisting turn failed", "session_id", sessionID.String(), "error", err.Error())
		}
	}()
}
