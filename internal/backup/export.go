package backup

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/ragstore/ragstore/internal/db"
)

// ExportResult summarizes one export.
type ExportResult struct {
	DocumentsExported int
	OutputPath        string
}

// Export streams every document, its chunks and its relations to path as
// line-delimited JSON, overwriting any previous content.
func Export(ctx context.Context, database *db.DB, path string) (*ExportResult, error) {
	rows, err := database.Pool().Query(ctx,
		`SELECT d.id, d.title, d.content, d.content_hash, d.metadata, d.community_id,
		        c.text, c.embedding, cs.start_index, cs.end_index, c.token_count
		 FROM documents d
		 LEFT JOIN chunk_sources cs ON cs.document_id = d.id
		 LEFT JOIN chunks c ON c.id = cs.chunk_id
		 ORDER BY d.id, cs.start_index, cs.id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents for export: %w", err)
	}
	defer rows.Close()

	var order []int64
	docs := make(map[int64]*Document)
	for rows.Next() {
		var (
			id          int64
			title       string
			content     string
			contentHash string
			metadata    map[string]any
			communityID *int32
			chunkText   *string
			embedding   *pgvector.Vector
			startIndex  *int
			endIndex    *int
			tokenCount  *int
		)
		if err := rows.Scan(&id, &title, &content, &contentHash, &metadata, &communityID,
			&chunkText, &embedding, &startIndex, &endIndex, &tokenCount); err != nil {
			return nil, fmt.Errorf("failed to scan export row: %w", err)
		}
		doc, ok := docs[id]
		if !ok {
			doc = &Document{
				Title:       title,
				Content:     content,
				ContentHash: contentHash,
				Metadata:    metadata,
				CommunityID: communityID,
			}
			docs[id] = doc
			order = append(order, id)
		}
		if chunkText != nil && embedding != nil {
			doc.Chunks = append(doc.Chunks, Chunk{
				Text:       *chunkText,
				Embedding:  embedding.Slice(),
				StartIndex: *startIndex,
				EndIndex:   *endIndex,
				TokenCount: *tokenCount,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read export rows: %w", err)
	}

	relations, err := database.OutgoingRelationsBySource(ctx, order)
	if err != nil {
		return nil, err
	}
	for id, doc := range docs {
		for _, rel := range relations[id] {
			weight := float64(rel.Weight)
			doc.Relations = append(doc.Relations, RelationTarget{
				Title:  rel.TargetTitle,
				Type:   rel.RelType,
				Weight: &weight,
			})
		}
	}

	if err := Truncate(path); err != nil {
		return nil, err
	}
	for _, id := range order {
		if err := AppendLine(path, docs[id]); err != nil {
			return nil, err
		}
	}
	return &ExportResult{DocumentsExported: len(order), OutputPath: path}, nil
}
