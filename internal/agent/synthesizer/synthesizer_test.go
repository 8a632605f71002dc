package synthesizer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rlaxogns100-oss/uniroad-agent/internal/platform/logger"
)

type fakeGateway struct {
	streamText string
	streamErr  error
}

func (g *fakeGateway) GenerateText(context.Context, string, string) (string, error) { return "", nil }
func (g *fakeGateway) GenerateJSON(context.Context, string, string, interface{}) error { return nil }
func (g *fakeGateway) StreamText(_ context.Context, _ string, _ string, onDelta func(string)) (string, error) {
	if g.streamErr != nil {
		if onDelta != nil {
			onDelta("partial before fail")
		}
		return "", g.streamErr
	}
	for _, r := range []string{g.streamText[:len(g.streamText)/2], g.streamText[len(g.streamText)/2:]} {
		if onDelta != nil {
			onDelta(r)
		}
	}
	return g.streamText, nil
}
func (g *fakeGateway) Embed(context.Context, []string) ([][]float32, error) { return nil, nil }

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New("test")
	require.NoError(t, err)
	return l
}

func TestStreamExtractsCitedSourcesInOrderAndDedups(t *testing.T) {
	text := `===SECTION_START:fact_check===` +
		`<cite data-source="서울대 요강" data-url="https://snu.ac.kr/a.pdf">모집인원은 120명입니다</cite> ` +
		`and again <cite data-source="서울대 요강" data-url="https://snu.ac.kr/a.pdf">120명</cite> ` +
		`<cite data-source="연세대 요강" data-url="https://yonsei.ac.kr/b.pdf">다른 정보</cite>` +
		`===SECTION_END===`
	gw := &fakeGateway{streamText: text}
	a := New(gw, testLogger(t))

	res, err := a.Stream(context.Background(), Params{
		Utterance: "모집인원 알려줘",
		Citations: []Citation{
			{Title: "서울대 2026 요강", Source: "서울대 요강", FileURL: "https://snu.ac.kr/a.pdf"},
			{Title: "연세대 2026 요강", Source: "연세대 요강", FileURL: "https://yonsei.ac.kr/b.pdf"},
		},
	}, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"서울대 요강", "연세대 요강"}, res.Sources)
	require.Equal(t, []string{"https://snu.ac.kr/a.pdf", "https://yonsei.ac.kr/b.pdf"}, res.SourceURLs)
}

func TestStreamIgnoresCitationsNotInEvidenceSet(t *testing.T) {
	text := `===SECTION_START:fact_check===<cite data-source="모르는 출처" data-url="x">text</cite>===SECTION_END===`
	gw := &fakeGateway{streamText: text}
	a := New(gw, testLogger(t))

	res, err := a.Stream(context.Background(), Params{Utterance: "q"}, nil)
	require.NoError(t, err)
	require.Empty(t, res.Sources)
}

func TestStreamFallsBackOnModelErrorWithWarningSection(t *testing.T) {
	gw := &fakeGateway{streamErr: errors.New("upstream reset")}
	var deltas []string
	a := New(gw, testLogger(t))

	res, err := a.Stream(context.Background(), Params{Utterance: "q"}, func(d string) { deltas = append(deltas, d) })
	require.NoError(t, err)
	require.Contains(t, res.Text, "SECTION_START:warning")
	require.NotEmpty(t, deltas)
}

func TestStreamForwardsDeltasInOrder(t *testing.T) {
	gw := &fakeGateway{streamText: "hello world"}
	var got string
	a := New(gw, testLogger(t))

	_, err := a.Stream(context.Background(), Params{Utterance: "q"}, func(d string) { got += d })
	require.NoError(t, err)
	require.Equal(t, "hello world", got)
}
