package backup

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/ragstore/ragstore/internal/db"
	"github.com/ragstore/ragstore/internal/hashutil"
)

// ImportResult summarizes one import.
type ImportResult struct {
	DocumentsImported int
	ChunksInserted    int
	DuplicatesSkipped int
	Warnings          []string
}

// Import restores a backup file. The whole file is validated up front;
// each document is then inserted in its own transaction, so a failure
// partway leaves previously imported documents intact. Relations are
// resolved by title across the backup after all documents exist.
func Import(ctx context.Context, database *db.DB, path string, expectedDimension int) (*ImportResult, error) {
	lines, err := ReadLines(path)
	if err != nil {
		return nil, err
	}
	validation := ValidateLines(lines)
	if !validation.Valid {
		return nil, &InvalidBackupError{Errors: validation.Errors, Dimensions: validation.Dimensions}
	}

	docs := make([]*Document, 0, len(lines))
	for _, line := range lines {
		var doc Document
		if err := json.Unmarshal(line, &doc); err != nil {
			return nil, fmt.Errorf("failed to decode backup line: %w", err)
		}
		docs = append(docs, &doc)
	}

	result := &ImportResult{}
	titleIDs := make(map[string][]int64)
	imported := make([]*Document, 0, len(docs))

	for i, doc := range docs {
		if expectedDimension > 0 && len(doc.Chunks) > 0 && len(doc.Chunks[0].Embedding) != expectedDimension {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("line %d: %q has dimension %d, expected %d; skipped",
					i+1, doc.Title, len(doc.Chunks[0].Embedding), expectedDimension))
			continue
		}

		existingID, found, err := database.GetDocumentIDByHash(ctx, doc.ContentHash)
		if err != nil {
			return nil, err
		}
		if found {
			result.DuplicatesSkipped++
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("line %d: %q already present; skipped", i+1, doc.Title))
			titleIDs[doc.Title] = append(titleIDs[doc.Title], existingID)
			imported = append(imported, doc)
			continue
		}

		docID, chunksInserted, err := importDocument(ctx, database, doc)
		if err != nil {
			return nil, fmt.Errorf("failed to import %q: %w", doc.Title, err)
		}
		result.DocumentsImported++
		result.ChunksInserted += chunksInserted
		titleIDs[doc.Title] = append(titleIDs[doc.Title], docID)
		imported = append(imported, doc)
	}

	var relations []db.NewRelation
	for _, doc := range imported {
		sourceIDs := titleIDs[doc.Title]
		for _, target := range doc.Relations {
			if target.Title == doc.Title {
				continue
			}
			weight := float32(target.WeightOrDefault())
			for _, sourceID := range sourceIDs {
				for _, targetID := range titleIDs[target.Title] {
					relations = append(relations, db.NewRelation{
						SourceID: sourceID,
						TargetID: targetID,
						RelType:  target.Type,
						Weight:   &weight,
					})
				}
			}
		}
	}
	if _, err := database.InsertRelations(ctx, relations); err != nil {
		return nil, err
	}
	return result, nil
}

// importDocument inserts one document with its chunks and junction rows
// atomically. The chunk text hash is recomputed from the chunk text so
// it matches the export-time rule.
func importDocument(ctx context.Context, database *db.DB, doc *Document) (int64, int, error) {
	tx, err := database.Pool().Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	metadata := doc.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	var docID int64
	err = tx.QueryRow(ctx,
		`INSERT INTO documents (title, content, content_hash, metadata, community_id)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		doc.Title, doc.Content, doc.ContentHash, metadata, doc.CommunityID,
	).Scan(&docID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to insert document: %w", err)
	}

	inserted := 0
	for _, chunk := range doc.Chunks {
		textHash := hashutil.Sum(chunk.Text)
		tag, err := tx.Exec(ctx,
			`INSERT INTO chunks (text, text_hash, token_count, embedding)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (text_hash) DO NOTHING`,
			chunk.Text, textHash, chunk.TokenCount, pgvector.NewVector(chunk.Embedding),
		)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to insert chunk: %w", err)
		}
		inserted += int(tag.RowsAffected())

		var chunkID int64
		if err := tx.QueryRow(ctx,
			`SELECT id FROM chunks WHERE text_hash = $1`, textHash,
		).Scan(&chunkID); err != nil {
			return 0, 0, fmt.Errorf("failed to resolve chunk id: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO chunk_sources (chunk_id, document_id, start_index, end_index)
			 VALUES ($1, $2, $3, $4)`,
			chunkID, docID, chunk.StartIndex, chunk.EndIndex,
		); err != nil {
			return 0, 0, fmt.Errorf("failed to insert chunk source: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("failed to commit document: %w", err)
	}
	return docID, inserted, nil
}
