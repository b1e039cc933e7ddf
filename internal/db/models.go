package db

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

// Document represents an ingested document. ContentHash is the SHA-256 of
// title followed by content and is unique across the table.
type Document struct {
	ID          int64
	Title       string
	Content     string
	ContentHash string
	Metadata    map[string]any
	CommunityID *int32
	CreatedAt   time.Time
}

// Chunk represents a deduplicated chunk text with its embedding. The same
// chunk row may back many documents through chunk_sources.
type Chunk struct {
	ID         int64
	Text       string
	TextHash   string
	TokenCount int
	Embedding  pgvector.Vector
	CreatedAt  time.Time
}

// TitledRelation is a relation edge resolved to document titles, as
// returned to callers building graph context.
type TitledRelation struct {
	SourceTitle string
	TargetTitle string
	RelType     *string
	Weight      float32
}
