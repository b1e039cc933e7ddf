package ragstore

import (
	"context"

	"github.com/ragstore/ragstore/internal/chunker"
	"github.com/ragstore/ragstore/internal/ingest"
)

// ChunkOptions re-exports the chunker knobs for ingest configuration.
type ChunkOptions = chunker.Options

// NormalizeMarkdown is the stock markdown cleanup transform for
// ChunkOptions.Normalize.
func NormalizeMarkdown(text string) string {
	return chunker.Normalize(text)
}

// IngestOptions configure one Ingest call. Embed is required.
type IngestOptions struct {
	// Embed produces chunk embeddings in batches.
	Embed EmbedFunc

	// Chunk is passed through to the chunker.
	Chunk ChunkOptions

	// TransformChunk, when set, rewrites each chunk text before hashing
	// and embedding.
	TransformChunk func(chunkText string, doc Document) string

	// BatchSize is the embedding batch size; zero means 64.
	BatchSize int

	// BackupPath, when set, appends every newly inserted document to a
	// backup file.
	BackupPath string

	// Relations maps source titles to relation targets. Supplying a
	// non-nil map, even an empty one, triggers community detection
	// after the run.
	Relations map[string][]RelationTarget

	// OnProgress fires once per input document in input order.
	OnProgress func(title string, current, total int)
}

// IngestResult reports what one Ingest call changed.
type IngestResult = ingest.Result

// Ingest runs the ingestion pipeline over docs: content-hash dedup,
// chunking, chunk-text dedup, batched embedding, relation resolution
// and, when Relations is non-nil, community recomputation. It is not a
// single transaction; a cancelled call keeps the batches that already
// landed.
func (c *Client) Ingest(ctx context.Context, docs []Document, opts IngestOptions) (*IngestResult, error) {
	database, err := c.conn(ctx)
	if err != nil {
		return nil, err
	}
	pipeline := ingest.NewPipeline(database, c.log)
	return pipeline.Run(ctx, docs, ingest.Options{
		Embed:          opts.Embed,
		Chunk:          opts.Chunk,
		TransformChunk: opts.TransformChunk,
		BatchSize:      opts.BatchSize,
		BackupPath:     opts.BackupPath,
		Relations:      opts.Relations,
		OnProgress:     opts.OnProgress,
		Dimension:      c.cfg.Dimension,
	})
}
