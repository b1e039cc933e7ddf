package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

// BatchSize bounds every bulk statement issued by this package so a
// single oversized ingest cannot produce unbounded parameter lists.
const BatchSize = 500

// GetDocumentIDByHash returns the id of the document with the given
// content hash, or false when absent.
func (db *DB) GetDocumentIDByHash(ctx context.Context, hash string) (int64, bool, error) {
	var id int64
	err := db.pool.QueryRow(ctx,
		`SELECT id FROM documents WHERE content_hash = $1`, hash,
	).Scan(&id)
	if err == pgx.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get document by hash: %w", err)
	}
	return id, true, nil
}

// InsertDocument creates a document row and returns its id.
func (db *DB) InsertDocument(ctx context.Context, title, content, contentHash string, metadata map[string]any) (int64, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	var id int64
	err := db.pool.QueryRow(ctx,
		`INSERT INTO documents (title, content, content_hash, metadata)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		title, content, contentHash, metadata,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert document: %w", err)
	}
	return id, nil
}

// LookupChunkIDsByHash maps each existing text_hash to its chunk id,
// querying in batches. Hashes with no chunk row are absent from the map.
func (db *DB) LookupChunkIDsByHash(ctx context.Context, hashes []string) (map[string]int64, error) {
	found := make(map[string]int64, len(hashes))
	for start := 0; start < len(hashes); start += BatchSize {
		end := min(start+BatchSize, len(hashes))
		rows, err := db.pool.Query(ctx,
			`SELECT text_hash, id FROM chunks WHERE text_hash = ANY($1)`,
			hashes[start:end],
		)
		if err != nil {
			return nil, fmt.Errorf("failed to look up chunk hashes: %w", err)
		}
		for rows.Next() {
			var hash string
			var id int64
			if err := rows.Scan(&hash, &id); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan chunk hash: %w", err)
			}
			found[hash] = id
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to read chunk hashes: %w", err)
		}
	}
	return found, nil
}

// InsertChunks bulk-inserts chunk rows, skipping text_hash conflicts, and
// returns how many rows were actually created. Ids and timestamps on the
// input are ignored; the database assigns them.
func (db *DB) InsertChunks(ctx context.Context, chunks []Chunk) (int64, error) {
	var inserted int64
	for start := 0; start < len(chunks); start += BatchSize {
		end := min(start+BatchSize, len(chunks))
		batch := &pgx.Batch{}
		for _, c := range chunks[start:end] {
			batch.Queue(
				`INSERT INTO chunks (text, text_hash, token_count, embedding)
				 VALUES ($1, $2, $3, $4)
				 ON CONFLICT (text_hash) DO NOTHING`,
				c.Text, c.TextHash, c.TokenCount, c.Embedding,
			)
		}
		br := db.pool.SendBatch(ctx, batch)
		for i := start; i < end; i++ {
			tag, err := br.Exec()
			if err != nil {
				br.Close()
				return inserted, fmt.Errorf("failed to insert chunk %d: %w", i, err)
			}
			inserted += tag.RowsAffected()
		}
		if err := br.Close(); err != nil {
			return inserted, fmt.Errorf("failed to close chunk batch: %w", err)
		}
	}
	return inserted, nil
}

// NewChunkSource is the insertable projection of a chunk_sources row.
type NewChunkSource struct {
	ChunkID    int64
	DocumentID int64
	StartIndex int
	EndIndex   int
}

// InsertChunkSources bulk-inserts junction rows.
func (db *DB) InsertChunkSources(ctx context.Context, sources []NewChunkSource) error {
	for start := 0; start < len(sources); start += BatchSize {
		end := min(start+BatchSize, len(sources))
		batch := &pgx.Batch{}
		for _, s := range sources[start:end] {
			batch.Queue(
				`INSERT INTO chunk_sources (chunk_id, document_id, start_index, end_index)
				 VALUES ($1, $2, $3, $4)`,
				s.ChunkID, s.DocumentID, s.StartIndex, s.EndIndex,
			)
		}
		br := db.pool.SendBatch(ctx, batch)
		for i := start; i < end; i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("failed to insert chunk source %d: %w", i, err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("failed to close chunk source batch: %w", err)
		}
	}
	return nil
}

// NewRelation is the insertable projection of a document_relations row.
type NewRelation struct {
	SourceID int64
	TargetID int64
	RelType  *string
	Weight   *float32
}

// InsertRelations bulk-inserts relation edges, skipping (source, target)
// conflicts, and returns how many rows were actually created.
func (db *DB) InsertRelations(ctx context.Context, relations []NewRelation) (int64, error) {
	var inserted int64
	for start := 0; start < len(relations); start += BatchSize {
		end := min(start+BatchSize, len(relations))
		batch := &pgx.Batch{}
		for _, r := range relations[start:end] {
			batch.Queue(
				`INSERT INTO document_relations (source_id, target_id, rel_type, weight)
				 VALUES ($1, $2, $3, COALESCE($4::real, 1.0))
				 ON CONFLICT (source_id, target_id) DO NOTHING`,
				r.SourceID, r.TargetID, r.RelType, r.Weight,
			)
		}
		br := db.pool.SendBatch(ctx, batch)
		for i := start; i < end; i++ {
			tag, err := br.Exec()
			if err != nil {
				br.Close()
				return inserted, fmt.Errorf("failed to insert relation %d: %w", i, err)
			}
			inserted += tag.RowsAffected()
		}
		if err := br.Close(); err != nil {
			return inserted, fmt.Errorf("failed to close relation batch: %w", err)
		}
	}
	return inserted, nil
}

// FetchChunkEmbeddings maps each text_hash to its stored embedding,
// querying in batches. Hashes with no chunk row are absent.
func (db *DB) FetchChunkEmbeddings(ctx context.Context, hashes []string) (map[string][]float32, error) {
	found := make(map[string][]float32, len(hashes))
	for start := 0; start < len(hashes); start += BatchSize {
		end := min(start+BatchSize, len(hashes))
		rows, err := db.pool.Query(ctx,
			`SELECT text_hash, embedding FROM chunks WHERE text_hash = ANY($1)`,
			hashes[start:end],
		)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch chunk embeddings: %w", err)
		}
		for rows.Next() {
			var hash string
			var embedding pgvector.Vector
			if err := rows.Scan(&hash, &embedding); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan chunk embedding: %w", err)
			}
			found[hash] = embedding.Slice()
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to read chunk embeddings: %w", err)
		}
	}
	return found, nil
}

// DocumentIDsByTitles maps each title to every document id carrying it.
// Titles are looked up in batches; titles with no document are absent.
func (db *DB) DocumentIDsByTitles(ctx context.Context, titles []string) (map[string][]int64, error) {
	found := make(map[string][]int64, len(titles))
	for start := 0; start < len(titles); start += BatchSize {
		end := min(start+BatchSize, len(titles))
		rows, err := db.pool.Query(ctx,
			`SELECT title, id FROM documents WHERE title = ANY($1) ORDER BY id`,
			titles[start:end],
		)
		if err != nil {
			return nil, fmt.Errorf("failed to look up titles: %w", err)
		}
		for rows.Next() {
			var title string
			var id int64
			if err := rows.Scan(&title, &id); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan title row: %w", err)
			}
			found[title] = append(found[title], id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to read title rows: %w", err)
		}
	}
	return found, nil
}

// AllDocumentIDs returns every document id in ascending order.
func (db *DB) AllDocumentIDs(ctx context.Context) ([]int64, error) {
	rows, err := db.pool.Query(ctx, `SELECT id FROM documents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list document ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan document id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AllRelationPairs returns every (source_id, target_id) edge.
func (db *DB) AllRelationPairs(ctx context.Context) ([][2]int64, error) {
	rows, err := db.pool.Query(ctx, `SELECT source_id, target_id FROM document_relations`)
	if err != nil {
		return nil, fmt.Errorf("failed to list relations: %w", err)
	}
	defer rows.Close()

	var pairs [][2]int64
	for rows.Next() {
		var src, tgt int64
		if err := rows.Scan(&src, &tgt); err != nil {
			return nil, fmt.Errorf("failed to scan relation pair: %w", err)
		}
		pairs = append(pairs, [2]int64{src, tgt})
	}
	return pairs, rows.Err()
}

// UpdateCommunityIDs writes community assignments back in batches.
func (db *DB) UpdateCommunityIDs(ctx context.Context, assignments map[int64]int32) error {
	ids := make([]int64, 0, len(assignments))
	for id := range assignments {
		ids = append(ids, id)
	}
	for start := 0; start < len(ids); start += BatchSize {
		end := min(start+BatchSize, len(ids))
		batch := &pgx.Batch{}
		for _, id := range ids[start:end] {
			batch.Queue(
				`UPDATE documents SET community_id = $1 WHERE id = $2`,
				assignments[id], id,
			)
		}
		br := db.pool.SendBatch(ctx, batch)
		for i := start; i < end; i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("failed to update community id: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("failed to close community batch: %w", err)
		}
	}
	return nil
}

// DeleteDocumentsByMetadata removes every document whose metadata key
// equals value. Chunk sources and relations cascade.
func (db *DB) DeleteDocumentsByMetadata(ctx context.Context, key, value string) (int64, error) {
	tag, err := db.pool.Exec(ctx,
		`DELETE FROM documents WHERE metadata->>$1 = $2`, key, value)
	if err != nil {
		return 0, fmt.Errorf("failed to delete documents by metadata: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DocumentsWithCommunity returns every document that has a community id
// and is not tagged with the given metadata key/value, ordered by
// community then id.
func (db *DB) DocumentsWithCommunity(ctx context.Context, excludeKey, excludeValue string) ([]Document, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, title, content, community_id
		 FROM documents
		 WHERE community_id IS NOT NULL
		   AND COALESCE(metadata->>$1, '') <> $2
		 ORDER BY community_id, id`,
		excludeKey, excludeValue,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list community documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Title, &d.Content, &d.CommunityID); err != nil {
			return nil, fmt.Errorf("failed to scan community document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// DocumentsByMetadata returns every document whose metadata key equals
// value, ordered by the integer value of orderKey in the metadata.
func (db *DB) DocumentsByMetadata(ctx context.Context, key, value, orderKey string) ([]Document, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, title, content, metadata, community_id
		 FROM documents
		 WHERE metadata->>$1 = $2
		 ORDER BY (metadata->>$3)::int, id`,
		key, value, orderKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents by metadata: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Title, &d.Content, &d.Metadata, &d.CommunityID); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// RelationsForDocuments returns, in 500-document batches over both edge
// directions, every relation touching the given documents, resolved to
// titles.
func (db *DB) RelationsForDocuments(ctx context.Context, docIDs []int64) ([]TitledRelation, error) {
	var out []TitledRelation
	seen := make(map[int64]bool)
	for start := 0; start < len(docIDs); start += BatchSize {
		end := min(start+BatchSize, len(docIDs))
		rows, err := db.pool.Query(ctx,
			`SELECT dr.id, s.title, t.title, dr.rel_type, COALESCE(dr.weight, 1.0)
			 FROM document_relations dr
			 JOIN documents s ON s.id = dr.source_id
			 JOIN documents t ON t.id = dr.target_id
			 WHERE dr.source_id = ANY($1) OR dr.target_id = ANY($1)
			 ORDER BY dr.id`,
			docIDs[start:end],
		)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch relations: %w", err)
		}
		for rows.Next() {
			var id int64
			var rel TitledRelation
			if err := rows.Scan(&id, &rel.SourceTitle, &rel.TargetTitle, &rel.RelType, &rel.Weight); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan relation: %w", err)
			}
			if seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, rel)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to read relations: %w", err)
		}
	}
	return out, nil
}

// OutgoingRelationsBySource returns, batched over source documents, the
// outgoing edges of each document keyed by source id, resolved to target
// titles. Used by backup export so every edge is written exactly once.
func (db *DB) OutgoingRelationsBySource(ctx context.Context, docIDs []int64) (map[int64][]TitledRelation, error) {
	out := make(map[int64][]TitledRelation)
	seen := make(map[int64]bool)
	for start := 0; start < len(docIDs); start += BatchSize {
		end := min(start+BatchSize, len(docIDs))
		rows, err := db.pool.Query(ctx,
			`SELECT dr.id, dr.source_id, s.title, t.title, dr.rel_type, COALESCE(dr.weight, 1.0)
			 FROM document_relations dr
			 JOIN documents s ON s.id = dr.source_id
			 JOIN documents t ON t.id = dr.target_id
			 WHERE dr.source_id = ANY($1) OR dr.target_id = ANY($1)
			 ORDER BY dr.id`,
			docIDs[start:end],
		)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch outgoing relations: %w", err)
		}
		for rows.Next() {
			var relID, sourceID int64
			var rel TitledRelation
			if err := rows.Scan(&relID, &sourceID, &rel.SourceTitle, &rel.TargetTitle, &rel.RelType, &rel.Weight); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan outgoing relation: %w", err)
			}
			if seen[relID] {
				continue
			}
			seen[relID] = true
			out[sourceID] = append(out[sourceID], rel)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to read outgoing relations: %w", err)
		}
	}
	return out, nil
}
