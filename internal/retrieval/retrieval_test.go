package retrieval

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/rlaxogns100-oss/uniroad-agent/internal/domain"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/platform/docstore"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/platform/logger"
)

type fakeStore struct {
	chunks    []docstore.ChunkMatch
	documents []docstore.DocumentSimilarity
	chunksErr error
	docsErr   error
}

func (f *fakeStore) QueryChunks(_ context.Context, _ []float32, _ int, _ string) ([]docstore.ChunkMatch, error) {
	if f.chunksErr != nil {
		return nil, f.chunksErr
	}
	return f.chunks, nil
}

func (f *fakeStore) QueryDocuments(_ context.Context, _ []float32, _ int, _ string) ([]docstore.DocumentSimilarity, error) {
	if f.docsErr != nil {
		return nil, f.docsErr
	}
	return f.documents, nil
}

func (f *fakeStore) DocumentsByIDs(_ context.Context, _ []float32, ids []string) ([]docstore.DocumentSimilarity, error) {
	if f.docsErr != nil {
		return nil, f.docsErr
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []docstore.DocumentSimilarity
	for _, d := range f.documents {
		if want[d.Document.ID.String()] {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeStore) DocumentByID(_ context.Context, id string) (domain.DocumentMetadata, error) {
	for _, d := range f.documents {
		if d.Document.ID.String() == id {
			return d.Document, nil
		}
	}
	return domain.DocumentMetadata{}, nil
}

type fakeGateway struct {
	vec    []float32
	embErr error
}

func (f *fakeGateway) GenerateText(context.Context, string, string) (string, error) { return "", nil }
func (f *fakeGateway) GenerateJSON(context.Context, string, string, any) error       { return nil }
func (f *fakeGateway) StreamText(context.Context, string, string, func(string)) (string, error) {
	return "", nil
}
func (f *fakeGateway) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	if f.embErr != nil {
		return nil, f.embErr
	}
	out := make([][]float32, len(inputs))
	for i := range inputs {
		out[i] = f.vec
	}
	return out, nil
}

func testLogger() *logger.Logger {
	l, err := logger.New("error")
	if err != nil {
		panic(err)
	}
	return l
}

func docID(n byte) uuid.UUID {
	var id uuid.UUID
	id[0] = n
	return id
}

func TestRunNoChunksReturnsEmptyResult(t *testing.T) {
	store := &fakeStore{}
	gw := &fakeGateway{vec: []float32{0.1, 0.2}}

	res, err := Run(context.Background(), store, gw, testLogger(), Params{Query: "서울대 입시"})
	require.NoError(t, err)
	require.Equal(t, 0, res.Count)
	require.Empty(t, res.Chunks)
}

func TestRunRanksByDocumentWeightedScore(t *testing.T) {
	docA, docB := docID(1), docID(2)
	store := &fakeStore{
		chunks: []docstore.ChunkMatch{
			{Chunk: domain.DocumentChunk{ID: docID(10), DocumentID: docA, Content: "A high chunk"}, Similarity: 0.9},
			{Chunk: domain.DocumentChunk{ID: docID(11), DocumentID: docB, Content: "B low chunk"}, Similarity: 0.5},
		},
		documents: []docstore.DocumentSimilarity{
			{Document: domain.DocumentMetadata{ID: docA, SchoolName: "서울대", Title: "요강 A"}, Similarity: 0.2},
			{Document: domain.DocumentMetadata{ID: docB, SchoolName: "연세대", Title: "요강 B"}, Similarity: 0.95},
		},
	}
	gw := &fakeGateway{vec: []float32{0.1, 0.2}}

	res, err := Run(context.Background(), store, gw, testLogger(), Params{Query: "입시"})
	require.NoError(t, err)
	require.Len(t, res.Chunks, 2)
	// weighted(A) = 0.7*0.9 + 0.3*0.2 = 0.69; weighted(B) = 0.7*0.5 + 0.3*0.95 = 0.635 -> A first
	require.Equal(t, "서울대", res.Chunks[0].Source)
	require.Equal(t, "연세대", res.Chunks[1].Source)
}

func TestRunAdmitsUnderTokenBudgetAndStopsAtLimit(t *testing.T) {
	docA := docID(1)
	hugeContent := strings.Repeat("가", 50000) // far beyond the budget on its own
	store := &fakeStore{
		chunks: []docstore.ChunkMatch{
			{Chunk: domain.DocumentChunk{ID: docID(10), DocumentID: docA, Content: "short chunk one"}, Similarity: 0.9},
			{Chunk: domain.DocumentChunk{ID: docID(11), DocumentID: docA, Content: hugeContent}, Similarity: 0.8},
			{Chunk: domain.DocumentChunk{ID: docID(12), DocumentID: docA, Content: "short chunk two"}, Similarity: 0.7},
		},
		documents: []docstore.DocumentSimilarity{
			{Document: domain.DocumentMetadata{ID: docA, SchoolName: "고려대"}, Similarity: 0.5},
		},
	}
	gw := &fakeGateway{vec: []float32{0.1}}

	res, err := Run(context.Background(), store, gw, testLogger(), Params{Query: "입시"})
	require.NoError(t, err)
	require.Len(t, res.Chunks, 2)
	require.Equal(t, "short chunk one", res.Chunks[0].Content)
	require.Equal(t, "short chunk two", res.Chunks[1].Content)
}

func TestRunFallsBackWhenDocumentQueryFails(t *testing.T) {
	docA := docID(1)
	store := &fakeStore{
		chunks: []docstore.ChunkMatch{
			{Chunk: domain.DocumentChunk{ID: docID(10), DocumentID: docA, Content: "chunk"}, Similarity: 0.9},
		},
		docsErr: context.DeadlineExceeded,
	}
	gw := &fakeGateway{vec: []float32{0.1}}

	res, err := Run(context.Background(), store, gw, testLogger(), Params{Query: "입시"})
	require.NoError(t, err)
	require.Len(t, res.Chunks, 1)
}

func TestRunPropagatesEmbedError(t *testing.T) {
	store := &fakeStore{}
	gw := &fakeGateway{embErr: context.Canceled}

	_, err := Run(context.Background(), store, gw, testLogger(), Params{Query: "입시"})
	require.Error(t, err)
}
