// Package domain holds the persistence-shape types shared across repos,
// the score engine, and the agent pipeline (spec §3).
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// PrincipalKind distinguishes an authenticated user from an anonymous IP,
// used solely as a quota key (spec §3 "Principal").
type PrincipalKind string

const (
	PrincipalUser PrincipalKind = "user"
	PrincipalIP   PrincipalKind = "ip"
)

type Principal struct {
	Kind PrincipalKind
	ID   string
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Session struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	PrincipalID string    `gorm:"index;not null" json:"-"`
	Title       string    `json:"title"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Session) TableName() string { return "sessions" }

type Message struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID   uuid.UUID      `gorm:"type:uuid;index;not null" json:"session_id"`
	Role        Role           `gorm:"not null" json:"role"`
	Content     string         `gorm:"not null" json:"content"`
	Sources     StringSlice    `gorm:"type:jsonb" json:"sources"`
	SourceURLs  StringSlice    `gorm:"type:jsonb" json:"source_urls"`
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`
}

func (Message) TableName() string { return "messages" }

// DocumentMetadata is one row per uploaded document (spec §3).
type DocumentMetadata struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	SchoolName        string          `gorm:"index;not null" json:"school_name"`
	Filename          string          `json:"filename"`
	Title             string          `json:"title"`
	SummaryText       string          `json:"summary_text"`
	SummaryEmbedding  pgvector.Vector `gorm:"type:vector(768)" json:"-"`
	FileURL           string          `json:"file_url"`
	Tags              StringSlice     `gorm:"type:jsonb" json:"tags"`
	CreatedAt         time.Time       `json:"created_at"`
}

func (DocumentMetadata) TableName() string { return "documents" }

// ChunkType enumerates the kinds of extracted content a DocumentChunk may
// carry; mirrors the ingestion pipeline's output (out of scope, §1).
type ChunkType string

const (
	ChunkText  ChunkType = "text"
	ChunkTable ChunkType = "table"
	ChunkImage ChunkType = "image"
)

type DocumentChunk struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	DocumentID  uuid.UUID       `gorm:"type:uuid;index;not null" json:"document_id"`
	SectionID   *string         `json:"section_id,omitempty"`
	PageNumber  *int            `json:"page_number,omitempty"`
	ChunkType   ChunkType       `json:"chunk_type"`
	Content     string          `gorm:"not null" json:"content"`
	Embedding   pgvector.Vector `gorm:"type:vector(768)" json:"-"`
	RawData     *string         `json:"raw_data,omitempty"`
}

func (DocumentChunk) TableName() string { return "document_chunks" }

// UsageCounter backs the quota limiter (spec §3, §4.4). The unique index
// on (key, day) is declared both in the tags below and in the migration's
// raw SQL; the atomic increment itself bypasses GORM.
type UsageCounter struct {
	Key   string `gorm:"uniqueIndex:uq_usage_counter_key_day;not null"`
	Day   string `gorm:"uniqueIndex:uq_usage_counter_key_day;not null"` // YYYY-MM-DD in service TZ
	Count int    `gorm:"not null;default:0"`
}

func (UsageCounter) TableName() string { return "usage_counters" }

// AdmissionCutoff is the supplemented historical-cutoff corpus C3's reverse
// search ranks against (SPEC_FULL §4.12).
type AdmissionCutoff struct {
	University string  `json:"university"`
	Major      string  `json:"major"`
	Year       int     `json:"year"`
	Cutoff     float64 `json:"cutoff"`
	Scale      float64 `json:"scale"`
}

// StringSlice is a jsonb-backed []string for GORM, avoiding a hand-rolled
// Valuer/Scanner duplicated across every []string column.
type StringSlice []string
