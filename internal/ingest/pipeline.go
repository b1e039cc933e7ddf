// Package ingest implements the document ingestion pipeline: content
// dedup, chunking, batched embedding, chunk dedup through the junction
// table, relation resolution and community recomputation.
package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/sirupsen/logrus"

	"github.com/ragstore/ragstore/internal/backup"
	"github.com/ragstore/ragstore/internal/chunker"
	"github.com/ragstore/ragstore/internal/community"
	"github.com/ragstore/ragstore/internal/db"
	"github.com/ragstore/ragstore/internal/hashutil"
)

// EmbedFunc turns a batch of texts into embedding vectors, one per
// input, in input order.
type EmbedFunc func(ctx context.Context, texts []string) ([][]float32, error)

// DefaultBatchSize is the embedding batch size.
const DefaultBatchSize = 64

// InputDocument is one document to ingest.
type InputDocument struct {
	Title    string
	Content  string
	Metadata map[string]any
}

// Options configure one ingest run. Embed is required.
type Options struct {
	Embed EmbedFunc

	// Chunk is passed through to the chunker.
	Chunk chunker.Options

	// TransformChunk, when set, rewrites each chunk text before hashing
	// and embedding. Callers typically prepend title context here.
	TransformChunk func(chunkText string, doc InputDocument) string

	// BatchSize is the embedding batch size; zero means DefaultBatchSize.
	BatchSize int

	// BackupPath, when set, appends every newly inserted document to the
	// backup file.
	BackupPath string

	// Relations maps source titles to relation targets. A non-nil map,
	// even an empty one, triggers community detection after the run.
	Relations map[string][]backup.RelationTarget

	// OnProgress, when set, fires once per input document in order.
	OnProgress func(title string, current, total int)

	// Dimension, when positive, is enforced on every embedding vector.
	Dimension int
}

// Result reports what one ingest run changed.
type Result struct {
	DocumentsInserted   int
	DuplicatesSkipped   int
	ChunksInserted      int
	ChunksReused        int
	RelationsInserted   int
	UnresolvedRelations []string
	CommunitiesDetected int
}

// chunkSource is one occurrence of a chunk text inside a document.
type chunkSource struct {
	docID      int64
	startIndex int
	endIndex   int
}

// dedupEntry collects everything known about one distinct chunk text
// within a run. Sources from several documents merge into one entry.
type dedupEntry struct {
	text       string
	tokenCount int
	sources    []chunkSource
	embedding  []float32
	chunkID    int64
	reused     bool
}

// insertedDoc remembers a newly created document for the backup pass.
type insertedDoc struct {
	id  int64
	doc InputDocument
}

// Pipeline runs ingests against one database handle.
type Pipeline struct {
	db  *db.DB
	log *logrus.Logger
}

// NewPipeline creates an ingest pipeline.
func NewPipeline(database *db.DB, log *logrus.Logger) *Pipeline {
	if log == nil {
		log = logrus.New()
		log.SetLevel(logrus.WarnLevel)
	}
	return &Pipeline{db: database, log: log}
}

// Run ingests docs. It is not a single transaction: inserts land in
// batches so a cancelled run keeps what already succeeded.
func (p *Pipeline) Run(ctx context.Context, docs []InputDocument, opts Options) (*Result, error) {
	if opts.Embed == nil {
		return nil, fmt.Errorf("ingest: embed function is required")
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	runLog := p.log.WithFields(logrus.Fields{
		"run":       uuid.NewString()[:8],
		"documents": len(docs),
	})
	runLog.Info("ingest started")

	result := &Result{}
	dedup := make(map[string]*dedupEntry)
	var dedupOrder []string
	var inserted []insertedDoc
	titleIDs := make(map[string][]int64)

	for i, doc := range docs {
		contentHash := hashutil.ContentHash(doc.Title, doc.Content)
		_, exists, err := p.db.GetDocumentIDByHash(ctx, contentHash)
		if err != nil {
			return nil, err
		}
		if exists {
			result.DuplicatesSkipped++
			if opts.OnProgress != nil {
				opts.OnProgress(doc.Title, i+1, len(docs))
			}
			continue
		}

		docID, err := p.db.InsertDocument(ctx, doc.Title, doc.Content, contentHash, doc.Metadata)
		if err != nil {
			return nil, err
		}
		result.DocumentsInserted++
		inserted = append(inserted, insertedDoc{id: docID, doc: doc})
		titleIDs[doc.Title] = append(titleIDs[doc.Title], docID)

		for _, c := range chunker.Split(doc.Content, opts.Chunk) {
			finalText := c.Text
			if opts.TransformChunk != nil {
				finalText = opts.TransformChunk(c.Text, doc)
			}
			textHash := hashutil.Sum(finalText)
			entry, ok := dedup[textHash]
			if !ok {
				entry = &dedupEntry{text: finalText, tokenCount: c.TokenCount}
				dedup[textHash] = entry
				dedupOrder = append(dedupOrder, textHash)
			}
			entry.sources = append(entry.sources, chunkSource{
				docID:      docID,
				startIndex: c.StartIndex,
				endIndex:   c.EndIndex,
			})
		}

		if opts.OnProgress != nil {
			opts.OnProgress(doc.Title, i+1, len(docs))
		}
	}

	if err := p.resolveChunks(ctx, dedup, dedupOrder, opts, batchSize, result); err != nil {
		return nil, err
	}

	if opts.BackupPath != "" {
		if err := p.appendBackups(ctx, opts.BackupPath, inserted, dedup, opts); err != nil {
			return nil, err
		}
	}

	unresolved, relCount, err := p.resolveRelations(ctx, opts.Relations, titleIDs)
	if err != nil {
		return nil, err
	}
	result.RelationsInserted = relCount
	result.UnresolvedRelations = unresolved

	if opts.Relations != nil {
		count, err := community.Detect(ctx, p.db)
		if err != nil {
			return nil, err
		}
		result.CommunitiesDetected = count
	}

	runLog.WithFields(logrus.Fields{
		"inserted":   result.DocumentsInserted,
		"duplicates": result.DuplicatesSkipped,
		"chunks_new": result.ChunksInserted,
		"chunks_old": result.ChunksReused,
	}).Info("ingest finished")
	return result, nil
}

// resolveChunks splits the dedup map into reused and new texts, embeds
// the new ones in order, inserts the chunk rows and all junction rows.
func (p *Pipeline) resolveChunks(ctx context.Context, dedup map[string]*dedupEntry, order []string, opts Options, batchSize int, result *Result) error {
	if len(order) == 0 {
		return nil
	}

	existing, err := p.db.LookupChunkIDsByHash(ctx, order)
	if err != nil {
		return err
	}
	var newHashes []string
	for _, hash := range order {
		if id, ok := existing[hash]; ok {
			dedup[hash].reused = true
			dedup[hash].chunkID = id
			result.ChunksReused++
		} else {
			newHashes = append(newHashes, hash)
		}
	}

	for start := 0; start < len(newHashes); start += batchSize {
		end := min(start+batchSize, len(newHashes))
		texts := make([]string, 0, end-start)
		for _, hash := range newHashes[start:end] {
			texts = append(texts, dedup[hash].text)
		}
		vectors, err := opts.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed chunk batch: %w", err)
		}
		if len(vectors) != len(texts) {
			return fmt.Errorf("embed returned %d vectors for %d texts", len(vectors), len(texts))
		}
		for j, vec := range vectors {
			if opts.Dimension > 0 && len(vec) != opts.Dimension {
				return fmt.Errorf("embed returned dimension %d, expected %d", len(vec), opts.Dimension)
			}
			dedup[newHashes[start+j]].embedding = vec
		}
	}

	newChunks := make([]db.Chunk, 0, len(newHashes))
	for _, hash := range newHashes {
		entry := dedup[hash]
		newChunks = append(newChunks, db.Chunk{
			Text:       entry.text,
			TextHash:   hash,
			TokenCount: entry.tokenCount,
			Embedding:  pgvector.NewVector(entry.embedding),
		})
	}
	insertedRows, err := p.db.InsertChunks(ctx, newChunks)
	if err != nil {
		return err
	}
	result.ChunksInserted = int(insertedRows)

	ids, err := p.db.LookupChunkIDsByHash(ctx, order)
	if err != nil {
		return err
	}
	var sources []db.NewChunkSource
	for _, hash := range order {
		entry := dedup[hash]
		id, ok := ids[hash]
		if !ok {
			return fmt.Errorf("chunk %s missing after insert", hash[:12])
		}
		entry.chunkID = id
		for _, s := range entry.sources {
			sources = append(sources, db.NewChunkSource{
				ChunkID:    id,
				DocumentID: s.docID,
				StartIndex: s.startIndex,
				EndIndex:   s.endIndex,
			})
		}
	}
	return p.db.InsertChunkSources(ctx, sources)
}

// appendBackups writes one backup line per newly inserted document. The
// chunker is re-run to recover ordered offsets; embeddings come from the
// dedup map, with reused chunks refetched from the store.
func (p *Pipeline) appendBackups(ctx context.Context, path string, inserted []insertedDoc, dedup map[string]*dedupEntry, opts Options) error {
	var reusedHashes []string
	for hash, entry := range dedup {
		if entry.reused && entry.embedding == nil {
			reusedHashes = append(reusedHashes, hash)
		}
	}
	if len(reusedHashes) > 0 {
		stored, err := p.db.FetchChunkEmbeddings(ctx, reusedHashes)
		if err != nil {
			return err
		}
		for hash, vec := range stored {
			dedup[hash].embedding = vec
		}
	}

	for _, ins := range inserted {
		doc := backup.Document{
			Title:       ins.doc.Title,
			Content:     ins.doc.Content,
			ContentHash: hashutil.ContentHash(ins.doc.Title, ins.doc.Content),
			Metadata:    ins.doc.Metadata,
		}
		if doc.Metadata == nil {
			doc.Metadata = map[string]any{}
		}
		for _, c := range chunker.Split(ins.doc.Content, opts.Chunk) {
			finalText := c.Text
			if opts.TransformChunk != nil {
				finalText = opts.TransformChunk(c.Text, ins.doc)
			}
			entry := dedup[hashutil.Sum(finalText)]
			if entry == nil {
				continue
			}
			doc.Chunks = append(doc.Chunks, backup.Chunk{
				Text:       finalText,
				Embedding:  entry.embedding,
				StartIndex: c.StartIndex,
				EndIndex:   c.EndIndex,
				TokenCount: c.TokenCount,
			})
		}
		doc.Relations = opts.Relations[ins.doc.Title]
		if err := backup.AppendLine(path, &doc); err != nil {
			return err
		}
	}
	return nil
}
