package search

import (
	"context"
	"fmt"
	"sort"

	"github.com/pgvector/pgvector-go"
)

// graphTraversalSQL walks the relation graph outward from the seed
// documents, treating edges as undirected. Each row carries the product
// of edge weights and per-hop decay along its path, plus the visited
// array that guarantees termination on cyclic graphs. Depth is bounded
// by the hop limit.
const graphTraversalSQL = `
WITH RECURSIVE traversal AS (
	SELECT CASE WHEN dr.source_id = ANY($1) THEN dr.target_id ELSE dr.source_id END AS doc_id,
	       (COALESCE(dr.weight, 1.0) * $3::float8)::float8 AS path_weight,
	       dr.rel_type,
	       1 AS depth,
	       ARRAY[CASE WHEN dr.source_id = ANY($1) THEN dr.target_id ELSE dr.source_id END] AS visited
	FROM document_relations dr
	WHERE (dr.source_id = ANY($1) OR dr.target_id = ANY($1))
	  AND NOT (CASE WHEN dr.source_id = ANY($1) THEN dr.target_id ELSE dr.source_id END = ANY($1))
	UNION ALL
	SELECT CASE WHEN dr.source_id = t.doc_id THEN dr.target_id ELSE dr.source_id END,
	       t.path_weight * COALESCE(dr.weight, 1.0) * $3::float8,
	       dr.rel_type,
	       t.depth + 1,
	       t.visited || CASE WHEN dr.source_id = t.doc_id THEN dr.target_id ELSE dr.source_id END
	FROM document_relations dr
	JOIN traversal t ON dr.source_id = t.doc_id OR dr.target_id = t.doc_id
	WHERE t.depth < $2
	  AND NOT (CASE WHEN dr.source_id = t.doc_id THEN dr.target_id ELSE dr.source_id END = ANY($1))
	  AND NOT (CASE WHEN dr.source_id = t.doc_id THEN dr.target_id ELSE dr.source_id END = ANY(t.visited))
)
SELECT DISTINCT ON (doc_id) doc_id, path_weight, rel_type
FROM traversal
ORDER BY doc_id, path_weight DESC`

type reachedDoc struct {
	docID      int64
	pathWeight float64
	relType    *string
}

// expandGraph appends chunks from documents reachable within GraphHops
// of the current results. Expanded chunks score by their post-sort rank:
// graph_weight / (rrf_k + rank + 1).
func (e *Engine) expandGraph(ctx context.Context, results []Result, opts Options) ([]Result, error) {
	seedDocs := distinctDocumentIDs(results)
	if len(seedDocs) == 0 {
		return results, nil
	}

	rows, err := e.db.Pool().Query(ctx, graphTraversalSQL, seedDocs, opts.GraphHops, opts.GraphDecay)
	if err != nil {
		return nil, fmt.Errorf("failed to traverse relation graph: %w", err)
	}
	defer rows.Close()

	reached := make(map[int64]reachedDoc)
	for rows.Next() {
		var rd reachedDoc
		if err := rows.Scan(&rd.docID, &rd.pathWeight, &rd.relType); err != nil {
			return nil, fmt.Errorf("failed to scan traversal row: %w", err)
		}
		reached[rd.docID] = rd
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read traversal rows: %w", err)
	}
	if len(reached) == 0 {
		return results, nil
	}

	docIDs := make([]int64, 0, len(reached))
	for id := range reached {
		docIDs = append(docIDs, id)
	}
	expanded, err := e.fetchChunksForDocuments(ctx, docIDs, chunkIDs(results), opts.GraphChunkLimit)
	if err != nil {
		return nil, err
	}

	// Best-connected documents contribute their chunks first.
	sort.SliceStable(expanded, func(i, j int) bool {
		return reached[expanded[i].DocumentID].pathWeight > reached[expanded[j].DocumentID].pathWeight
	})
	for i := range expanded {
		rd := reached[expanded[i].DocumentID]
		expanded[i].Mode = ModeGraph
		expanded[i].RelationType = rd.relType
		expanded[i].Score = opts.GraphWeight / float64(opts.RRFK+i+1)
	}
	return append(results, expanded...), nil
}

// fetchChunksForDocuments pulls chunks belonging to the given documents
// through the junction table, skipping chunks already in the result set.
func (e *Engine) fetchChunksForDocuments(ctx context.Context, docIDs, excludeChunkIDs []int64, limit int) ([]Result, error) {
	rows, err := e.db.Pool().Query(ctx,
		`SELECT DISTINCT ON (c.id) c.id, c.text, cs.document_id, d.title, d.community_id
		 FROM chunk_sources cs
		 JOIN chunks c ON c.id = cs.chunk_id
		 JOIN documents d ON d.id = cs.document_id
		 WHERE cs.document_id = ANY($1)
		   AND NOT (c.id = ANY($2))
		 ORDER BY c.id
		 LIMIT $3`,
		docIDs, excludeChunkIDs, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch expansion chunks: %w", err)
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Text, &r.DocumentID, &r.Title, &r.CommunityID); err != nil {
			return nil, fmt.Errorf("failed to scan expansion chunk: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// boostCommunity appends chunks from the community that dominates the
// current results, ranked by similarity to the query. Ties between
// communities resolve to the smallest id so runs are deterministic.
func (e *Engine) boostCommunity(ctx context.Context, results []Result, queryVec pgvector.Vector, opts Options) ([]Result, error) {
	counts := make(map[int32]int)
	for _, r := range results {
		if r.CommunityID != nil {
			counts[*r.CommunityID]++
		}
	}
	if len(counts) == 0 {
		return results, nil
	}
	var topCommunity int32
	best := -1
	for id, n := range counts {
		if n > best || (n == best && id < topCommunity) {
			topCommunity = id
			best = n
		}
	}

	rows, err := e.db.Pool().Query(ctx,
		`SELECT q.id, q.text, q.document_id, q.title, q.community_id
		 FROM (
			SELECT DISTINCT ON (c.id) c.id, c.text, cs.document_id, d.title, d.community_id,
			       c.embedding <=> $1 AS distance
			FROM chunk_sources cs
			JOIN chunks c ON c.id = cs.chunk_id
			JOIN documents d ON d.id = cs.document_id
			WHERE d.community_id = $2
			  AND COALESCE(d.metadata->>'_ragts_type', '') <> 'community_summary'
			  AND NOT (c.id = ANY($3))
			ORDER BY c.id, distance
		 ) q
		 ORDER BY q.distance
		 LIMIT $4`,
		queryVec, topCommunity, chunkIDs(results), opts.GraphChunkLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch community chunks: %w", err)
	}
	defer rows.Close()

	var boosted []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Text, &r.DocumentID, &r.Title, &r.CommunityID); err != nil {
			return nil, fmt.Errorf("failed to scan community chunk: %w", err)
		}
		boosted = append(boosted, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read community chunks: %w", err)
	}

	for i := range boosted {
		boosted[i].Mode = ModeCommunity
		boosted[i].Score = opts.CommunityBoost / float64(opts.RRFK+i+1)
	}
	return append(results, boosted...), nil
}

func distinctDocumentIDs(results []Result) []int64 {
	seen := make(map[int64]bool, len(results))
	var out []int64
	for _, r := range results {
		if !seen[r.DocumentID] {
			seen[r.DocumentID] = true
			out = append(out, r.DocumentID)
		}
	}
	return out
}

func chunkIDs(results []Result) []int64 {
	out := make([]int64, 0, len(results))
	for _, r := range results {
		out = append(out, r.ID)
	}
	return out
}
