// Package retrieval implements C4, the univ function: embed the query,
// run a vector nearest-neighbor search, rerank at the document level, and
// admit chunks under a token budget (spec §4.2).
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/rlaxogns100-oss/uniroad-agent/internal/platform/docstore"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/platform/embedcache"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/platform/gateway"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/platform/logger"
)

const (
	topK                    = 30
	documentWeight          = 0.7 // α: weight given to the chunk's own cosine score
	defaultChunkTokenBudget = 6000
	defaultTokensPerRune    = 0.3846
)

type Chunk struct {
	Content string `json:"content"`
	Title   string `json:"title"`
	Source  string `json:"source"`
	FileURL string `json:"file_url"`
}

type Result struct {
	Chunks     []Chunk `json:"chunks"`
	Count      int     `json:"count"`
	University string  `json:"university"`
	Query      string  `json:"query"`
}

type Params struct {
	Query      string
	University string // optional school_name filter

	// TokenBudget and TokensPerRune default to the spec's values (6000
	// tokens, scaled from UTF-8 rune count) when left zero; callers
	// normally thread these through from the loaded service config, where
	// TokenBudget comes from CHUNK_TOKEN_BUDGET and TokensPerRune is fixed.
	TokenBudget   int
	TokensPerRune float64

	// Cache is consulted before calling the model gateway's Embed, sparing
	// a round trip for a repeated exact query (spec §4.11). Nil skips the
	// cache entirely.
	Cache embedcache.Cache
}

func estimateTokens(s string, tokensPerRune float64) int {
	n := utf8.RuneCountInString(s)
	return int(float64(n) * tokensPerRune)
}

// embedQuery consults p.Cache before falling back to the model gateway,
// populating the cache on a successful miss (spec §4.11).
func embedQuery(ctx context.Context, gw gateway.Client, p Params) ([]float32, error) {
	if p.Cache != nil {
		if cached, ok := p.Cache.Get(ctx, p.Query); ok {
			return cached, nil
		}
	}

	embeddings, err := gw.Embed(ctx, []string{p.Query})
	if err != nil {
		return nil, fmt.Errorf("retrieval: embed query: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("retrieval: embed returned no vectors")
	}
	q := embeddings[0]

	if p.Cache != nil {
		p.Cache.Set(ctx, p.Query, q)
	}
	return q, nil
}

// rankedChunk is one candidate chunk carrying its own flat weighted score
// w = α·s_c + (1−α)·s_d (spec §4.2 steps 4-5): s_c is this chunk's own
// cosine similarity, s_d is its document's summary-embedding similarity.
type rankedChunk struct {
	chunk      Chunk
	weighted   float64
	documentID string
}

// Run executes the univ function. A deadline should already be attached to
// ctx by the caller (spec §4.2 "per-call 20s deadline").
func Run(ctx context.Context, store docstore.Store, gw gateway.Client, log *logger.Logger, p Params) (Result, error) {
	tokenBudget := p.TokenBudget
	if tokenBudget <= 0 {
		tokenBudget = defaultChunkTokenBudget
	}
	tokensPerRune := p.TokensPerRune
	if tokensPerRune <= 0 {
		tokensPerRune = defaultTokensPerRune
	}

	q, err := embedQuery(ctx, gw, p)
	if err != nil {
		return Result{}, err
	}

	chunkMatches, err := store.QueryChunks(ctx, q, topK, p.University)
	if err != nil {
		return Result{}, fmt.Errorf("retrieval: query chunks: %w", err)
	}
	if len(chunkMatches) == 0 {
		return Result{Chunks: []Chunk{}, University: p.University, Query: p.Query}, nil
	}

	touched := make([]string, 0, len(chunkMatches))
	seenDoc := make(map[string]bool, len(chunkMatches))
	for _, m := range chunkMatches {
		docID := m.Chunk.DocumentID.String()
		if !seenDoc[docID] {
			seenDoc[docID] = true
			touched = append(touched, docID)
		}
	}

	docMatches, err := store.DocumentsByIDs(ctx, q, touched)
	if err != nil {
		log.Warn("retrieval: document-level query failed; falling back to chunk-only ranking", "error", err.Error())
		docMatches = nil
	}
	docScore := make(map[string]float64, len(docMatches))
	docMeta := make(map[string]docstore.DocumentSimilarity, len(docMatches))
	for _, d := range docMatches {
		docScore[d.Document.ID.String()] = d.Similarity
		docMeta[d.Document.ID.String()] = d
	}

	ranked := make([]rankedChunk, 0, len(chunkMatches))
	for _, m := range chunkMatches {
		docID := m.Chunk.DocumentID.String()
		meta := docMeta[docID]
		w := documentWeight*m.Similarity + (1-documentWeight)*docScore[docID]
		ranked = append(ranked, rankedChunk{
			chunk: Chunk{
				Content: m.Chunk.Content,
				Title:   meta.Document.Title,
				Source:  meta.Document.SchoolName,
				FileURL: meta.Document.FileURL,
			},
			weighted:   w,
			documentID: docID,
		})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].weighted != ranked[j].weighted {
			return ranked[i].weighted > ranked[j].weighted
		}
		return ranked[i].documentID < ranked[j].documentID
	})

	var selected []Chunk
	budget := tokenBudget
	for _, rc := range ranked {
		if budget <= 0 {
			break
		}
		cost := estimateTokens(rc.chunk.Content, tokensPerRune)
		if cost > budget {
			continue
		}
		selected = append(selected, rc.chunk)
		budget -= cost
	}

	return Result{
		Chunks:     selected,
		Count:      len(selected),
		University: p.University,
		Query:      p.Query,
	}, nil
}
