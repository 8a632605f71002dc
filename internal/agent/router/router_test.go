package router

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rlaxogns100-oss/uniroad-agent/internal/platform/logger"
)

var errShortScript = errors.New("scriptedGateway: no more responses")

type scriptedGateway struct {
	responses []string
	calls     int
	embedErr  error
}

// GenerateJSON mimics the real gateway's decode step (unmarshal the raw
// model text into out), so a scripted "not json at all" response exercises
// a decode failure exactly like the real gateway would produce one.
func (g *scriptedGateway) GenerateText(context.Context, string, string) (string, error) { return "", nil }
func (g *scriptedGateway) GenerateJSON(_ context.Context, _ string, _ string, out interface{}) error {
	if g.calls >= len(g.responses) {
		return errShortScript
	}
	raw := g.responses[g.calls]
	g.calls++
	return json.Unmarshal([]byte(raw), out)
}
func (g *scriptedGateway) StreamText(context.Context, string, string, func(string)) (string, error) {
	return "", nil
}
func (g *scriptedGateway) Embed(context.Context, []string) ([][]float32, error) { return nil, g.embedErr }

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New("test")
	require.NoError(t, err)
	return l
}

func TestPlanParsesWellFormedCalls(t *testing.T) {
	gw := &scriptedGateway{responses: []string{
		`{"function_calls":[{"function":"univ","params":{"university":"서울대학교","query":"2026 정시 모집인원"}}]}`,
	}}
	a := New(gw, testLogger(t))

	plan, err := a.Plan(context.Background(), Params{Utterance: "서울대 모집인원 알려줘"})
	require.NoError(t, err)
	require.Len(t, plan.FunctionCalls, 1)
	require.Equal(t, FunctionUniv, plan.FunctionCalls[0].Function)
}

func TestPlanDeduplicatesIdenticalCalls(t *testing.T) {
	gw := &scriptedGateway{responses: []string{
		`{"function_calls":[
			{"function":"univ","params":{"university":"연세대학교","query":"경영학과"}},
			{"function":"univ","params":{"university":"연세대학교","query":"경영학과"}}
		]}`,
	}}
	a := New(gw, testLogger(t))

	plan, err := a.Plan(context.Background(), Params{Utterance: "연세대 경영학과"})
	require.NoError(t, err)
	require.Len(t, plan.FunctionCalls, 1)
}

func TestPlanTruncatesAtMaxCalls(t *testing.T) {
	gw := &scriptedGateway{responses: []string{
		`{"function_calls":[
			{"function":"univ","params":{"university":"A","query":"1"}},
			{"function":"univ","params":{"university":"B","query":"2"}},
			{"function":"univ","params":{"university":"C","query":"3"}},
			{"function":"univ","params":{"university":"D","query":"4"}},
			{"function":"univ","params":{"university":"E","query":"5"}},
			{"function":"univ","params":{"university":"F","query":"6"}},
			{"function":"univ","params":{"university":"G","query":"7"}}
		]}`,
	}}
	a := New(gw, testLogger(t))

	plan, err := a.Plan(context.Background(), Params{Utterance: "many"})
	require.NoError(t, err)
	require.Len(t, plan.FunctionCalls, maxCalls)
}

func TestPlanDropsUnknownFunctionSilently(t *testing.T) {
	gw := &scriptedGateway{responses: []string{
		`{"function_calls":[{"function":"delete_everything","params":{}},{"function":"univ","params":{"university":"A","query":"q"}}]}`,
	}}
	a := New(gw, testLogger(t))

	plan, err := a.Plan(context.Background(), Params{Utterance: "x"})
	require.NoError(t, err)
	require.Len(t, plan.FunctionCalls, 1)
	require.Equal(t, FunctionUniv, plan.FunctionCalls[0].Function)
}

func TestPlanEmptyOnModelError(t *testing.T) {
	gw := &scriptedGateway{responses: []string{}}
	a := New(gw, testLogger(t))

	plan, err := a.Plan(context.Background(), Params{Utterance: "오늘 뭐 먹을까?"})
	require.NoError(t, err)
	require.Empty(t, plan.FunctionCalls)
}

func TestPlanEmptyOnMalformedJSON(t *testing.T) {
	gw := &scriptedGateway{responses: []string{`not json at all`}}
	a := New(gw, testLogger(t))

	plan, err := a.Plan(context.Background(), Params{Utterance: "국어 1등급이면 어디 갈 수 있어?"})
	require.NoError(t, err)
	require.Empty(t, plan.FunctionCalls)
}
