package db

import (
	"context"
	"fmt"
	"regexp"
)

// schemaDDL builds the full schema for a given embedding dimension and
// BM25 text configuration. Statement order matters: extensions first,
// tables in dependency order, indexes last.
func schemaDDL(dimension int, textConfig string) []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vectorscale CASCADE`,
		`CREATE EXTENSION IF NOT EXISTS pg_textsearch CASCADE`,
		`CREATE TABLE IF NOT EXISTS documents (
			id bigserial PRIMARY KEY,
			title text NOT NULL,
			content text NOT NULL,
			content_hash text NOT NULL,
			metadata jsonb NOT NULL DEFAULT '{}',
			community_id int,
			created_at timestamptz NOT NULL DEFAULT now()
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunks (
			id bigserial PRIMARY KEY,
			text text NOT NULL,
			text_hash text NOT NULL,
			token_count int NOT NULL,
			embedding vector(%d) NOT NULL,
			created_at timestamptz NOT NULL DEFAULT now()
		)`, dimension),
		`CREATE TABLE IF NOT EXISTS chunk_sources (
			id bigserial PRIMARY KEY,
			chunk_id bigint NOT NULL REFERENCES chunks(id) ON DELETE CASCADE,
			document_id bigint NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			start_index int NOT NULL,
			end_index int NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS document_relations (
			id bigserial PRIMARY KEY,
			source_id bigint NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			target_id bigint NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			rel_type text,
			weight real DEFAULT 1.0,
			UNIQUE (source_id, target_id)
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS documents_content_hash_idx ON documents (content_hash)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS chunks_text_hash_idx ON chunks (text_hash)`,
		`CREATE INDEX IF NOT EXISTS chunk_sources_chunk_id_idx ON chunk_sources (chunk_id)`,
		`CREATE INDEX IF NOT EXISTS chunk_sources_document_id_idx ON chunk_sources (document_id)`,
		`CREATE INDEX IF NOT EXISTS document_relations_source_id_idx ON document_relations (source_id)`,
		`CREATE INDEX IF NOT EXISTS document_relations_target_id_idx ON document_relations (target_id)`,
		`CREATE INDEX IF NOT EXISTS documents_community_id_idx ON documents (community_id)`,
		`CREATE INDEX IF NOT EXISTS chunks_embedding_idx ON chunks USING diskann (embedding vector_cosine_ops)`,
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS chunks_text_bm25_idx ON chunks USING bm25 (text) WITH (text_config = '%s')`, textConfig),
	}
}

// BM25IndexName is the index name passed to to_bm25query at search time.
const BM25IndexName = "chunks_text_bm25_idx"

// textConfigRe guards the text configuration name, which is spliced into
// DDL and cannot be bound as a parameter.
var textConfigRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// InitSchema creates extensions, tables and indexes. It is idempotent.
func (db *DB) InitSchema(ctx context.Context, dimension int, textConfig string) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid embedding dimension %d", dimension)
	}
	if !textConfigRe.MatchString(textConfig) {
		return fmt.Errorf("invalid text config %q", textConfig)
	}
	for _, stmt := range schemaDDL(dimension, textConfig) {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}

// DropSchema removes all tables. Extensions are left installed.
func (db *DB) DropSchema(ctx context.Context) error {
	stmts := []string{
		`DROP TABLE IF EXISTS document_relations`,
		`DROP TABLE IF EXISTS chunk_sources`,
		`DROP TABLE IF EXISTS chunks`,
		`DROP TABLE IF EXISTS documents`,
	}
	for _, stmt := range stmts {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to drop table: %w", err)
		}
	}
	return nil
}
