// Package docstore is the C2 Document Store Adapter: typed Postgres/pgvector
// access for the retrieval function. The interface is read-only: nearest-
// neighbor queries over chunks and document summaries, optionally filtered
// by school name, plus lookups by document ID; it has no upsert or delete.
// Queries use pgvector's cosine operator reached through raw pgx, since
// GORM's query builder can't express `<=>` ranking (spec §4.2, §3).
package docstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/rlaxogns100-oss/uniroad-agent/internal/domain"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/platform/logger"
)

// ChunkMatch is one nearest-neighbor hit against document_chunks, carrying
// both the cosine similarity and the document it belongs to so the
// retrieval function can apply the document-level rerank (spec §4.2).
type ChunkMatch struct {
	Chunk      domain.DocumentChunk
	Similarity float64 // 1 - cosine distance, higher is better
}

// DocumentSimilarity is one nearest-neighbor hit against a document's
// summary embedding.
type DocumentSimilarity struct {
	Document   domain.DocumentMetadata
	Similarity float64
}

type Store interface {
	// QueryChunks ranks document_chunks by cosine similarity to q, optionally
	// restricted to a school name filter.
	QueryChunks(ctx context.Context, q []float32, topK int, schoolName string) ([]ChunkMatch, error)
	// QueryDocuments ranks documents by cosine similarity of their summary
	// embedding to q, used for the document-level weighting term s_d
	// (spec §4.2).
	QueryDocuments(ctx context.Context, q []float32, topK int, schoolName string) ([]DocumentSimilarity, error)
	// DocumentsByIDs computes the document-level similarity term s_d for
	// exactly the given document IDs — the set a chunk search touched —
	// rather than an independent top-K query that could miss one of them
	// (spec §4.2 step 4, "for each document touched").
	DocumentsByIDs(ctx context.Context, q []float32, ids []string) ([]DocumentSimilarity, error)
	// DocumentByID fetches one document's metadata for citation formatting.
	DocumentByID(ctx context.Context, id string) (domain.DocumentMetadata, error)
}

type store struct {
	pool *pgxpool.Pool
	log  *logger.Logger
	dim  int
}

// New returns a pgvector-backed Store. dim is the configured embedding
// dimensionality; every query checks its vector's length against it (the
// column's declared dimension is not inspected) (spec §4.2, SPEC_FULL §4.9
// EMBEDDING_DIM).
func New(pool *pgxpool.Pool, log *logger.Logger, dim int) Store {
	return &store{pool: pool, log: log.With("service", "DocStore"), dim: dim}
}

func (s *store) QueryChunks(ctx context.Context, q []float32, topK int, schoolName string) ([]ChunkMatch, error) {
	if err := s.assertDim(q); err != nil {
		return nil, err
	}
	vec := pgvector.NewVector(q)

	query := `
		SELECT c.id, c.document_id, c.section_id, c.page_number, c.chunk_type, c.content, c.raw_data,
		       1 - (c.embedding <=> $1) AS similarity
		FROM document_chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE ($3 = '' OR d.school_name = $3)
		ORDER BY c.embedding <=> $1
		LIMIT $2
	`
	rows, err := s.pool.Query(ctx, query, vec, topK, schoolName)
	if err != nil {
		return nil, fmt.Errorf("docstore: query chunks: %w", err)
	}
	defer rows.Close()

	var out []ChunkMatch
	for rows.Next() {
		var m ChunkMatch
		if err := rows.Scan(&m.Chunk.ID, &m.Chunk.DocumentID, &m.Chunk.SectionID, &m.Chunk.PageNumber,
			&m.Chunk.ChunkType, &m.Chunk.Content, &m.Chunk.RawData, &m.Similarity); err != nil {
			return nil, fmt.Errorf("docstore: scan chunk row: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("docstore: chunk rows: %w", err)
	}
	return out, nil
}

func (s *store) QueryDocuments(ctx context.Context, q []float32, topK int, schoolName string) ([]DocumentSimilarity, error) {
	if err := s.assertDim(q); err != nil {
		return nil, err
	}
	vec := pgvector.NewVector(q)

	query := `
		SELECT id, school_name, filename, title, summary_text, file_url,
		       1 - (summary_embedding <=> $1) AS similarity
		FROM documents
		WHERE ($3 = '' OR school_name = $3)
		ORDER BY summary_embedding <=> $1
		LIMIT $2
	`
	rows, err := s.pool.Query(ctx, query, vec, topK, schoolName)
	if err != nil {
		return nil, fmt.Errorf("docstore: query documents: %w", err)
	}
	defer rows.Close()

	var out []DocumentSimilarity
	for rows.Next() {
		var d DocumentSimilarity
		if err := rows.Scan(&d.Document.ID, &d.Document.SchoolName, &d.Document.Filename,
			&d.Document.Title, &d.Document.SummaryText, &d.Document.FileURL, &d.Similarity); err != nil {
			return nil, fmt.Errorf("docstore: scan document row: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("docstore: document rows: %w", err)
	}
	return out, nil
}

func (s *store) DocumentsByIDs(ctx context.Context, q []float32, ids []string) ([]DocumentSimilarity, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if err := s.assertDim(q); err != nil {
		return nil, err
	}
	vec := pgvector.NewVector(q)

	query := `
		SELECT id, school_name, filename, title, summary_text, file_url,
		       1 - (summary_embedding <=> $1) AS similarity
		FROM documents
		WHERE id = ANY($2::uuid[])
	`
	rows, err := s.pool.Query(ctx, query, vec, ids)
	if err != nil {
		return nil, fmt.Errorf("docstore: query documents by ids: %w", err)
	}
	defer rows.Close()

	var out []DocumentSimilarity
	for rows.Next() {
		var d DocumentSimilarity
		if err := rows.Scan(&d.Document.ID, &d.Document.SchoolName, &d.Document.Filename,
			&d.Document.Title, &d.Document.SummaryText, &d.Document.FileURL, &d.Similarity); err != nil {
			return nil, fmt.Errorf("docstore: scan document row: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("docstore: document rows: %w", err)
	}
	return out, nil
}

func (s *store) DocumentByID(ctx context.Context, id string) (domain.DocumentMetadata, error) {
	var d domain.DocumentMetadata
	row := s.pool.QueryRow(ctx, `
		SELECT id, school_name, filename, title, summary_text, file_url
		FROM documents WHERE id = $1
	`, id)
	if err := row.Scan(&d.ID, &d.SchoolName, &d.Filename, &d.Title, &d.SummaryText, &d.FileURL); err != nil {
		return domain.DocumentMetadata{}, fmt.Errorf("docstore: document by id: %w", err)
	}
	return d, nil
}

func (s *store) assertDim(q []float32) error {
	if s.dim > 0 && len(q) != s.dim {
		return fmt.Errorf("docstore: embedding dimension mismatch: want %d got %d", s.dim, len(q))
	}
	return nil
}
