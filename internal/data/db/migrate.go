package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/rlaxogns100-oss/uniroad-agent/internal/domain"
)

func AutoMigrateAll(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&domain.Session{},
		&domain.Message{},
		&domain.DocumentMetadata{},
		&domain.DocumentChunk{},
		&domain.UsageCounter{},
	)
}

// EnsureIndexes creates, in raw SQL, the vector similarity index, lookup
// indexes on documents, document_chunks and messages, and the quota upsert's
// unique constraint (spec §3, §4.2, §4.4). It creates no full-text index.
func EnsureIndexes(gdb *gorm.DB, vectorIndexName string) error {
	if err := gdb.Exec(fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s
		ON document_chunks
		USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);
	`, vectorIndexName)).Error; err != nil {
		return fmt.Errorf("create vector index: %w", err)
	}

	if err := gdb.Exec(`
		CREATE INDEX IF NOT EXISTS idx_documents_school_name
		ON documents (school_name);
	`).Error; err != nil {
		return fmt.Errorf("create idx_documents_school_name: %w", err)
	}

	if err := gdb.Exec(`
		CREATE INDEX IF NOT EXISTS idx_document_chunks_document_id
		ON document_chunks (document_id);
	`).Error; err != nil {
		return fmt.Errorf("create idx_document_chunks_document_id: %w", err)
	}

	if err := gdb.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS uq_usage_counter_key_day
		ON usage_counters (key, day);
	`).Error; err != nil {
		return fmt.Errorf("create uq_usage_counter_key_day: %w", err)
	}

	if err := gdb.Exec(`
		CREATE INDEX IF NOT EXISTS idx_messages_session_created
		ON messages (session_id, created_at);
	`).Error; err != nil {
		return fmt.Errorf("create idx_messages_session_created: %w", err)
	}

	return nil
}

func (s *Service) AutoMigrateAll(vectorIndexName string) error {
	s.log.Info("running postgres auto-migration")
	if err := AutoMigrateAll(s.gdb); err != nil {
		s.log.Error("auto migration failed", "error", err)
		return err
	}
	if err := EnsureIndexes(s.gdb, vectorIndexName); err != nil {
		s.log.Error("index migration failed", "error", err)
		return err
	}
	return nil
}
