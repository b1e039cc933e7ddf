// Package search implements retrieval over the chunk store: vector and
// BM25 ranking, reciprocal-rank fusion, relation-graph expansion and
// community boosting.
package search

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"golang.org/x/sync/errgroup"

	"github.com/ragstore/ragstore/internal/db"
)

// EmbedFunc turns a batch of texts into embedding vectors. The engine
// calls it with a single element for query embedding.
type EmbedFunc func(ctx context.Context, texts []string) ([][]float32, error)

// Mode selects the primary ranking strategy.
type Mode string

const (
	ModeVector Mode = "vector"
	ModeBM25   Mode = "bm25"
	ModeHybrid Mode = "hybrid"

	// ModeGraph and ModeCommunity tag expansion results; they are not
	// valid primary modes.
	ModeGraph     Mode = "graph"
	ModeCommunity Mode = "community"
)

const (
	defaultLimit           = 10
	defaultRRFK            = 60
	defaultGraphChunkLimit = 200

	// fetchFactor oversizes the primary fetch so fusion and text dedup
	// still fill the requested limit.
	fetchFactor = 3
)

// Options configure one Search call. Zero values mean defaults: hybrid
// mode, limit 10, rrf_k 60, unit weights and decay, no expansion.
type Options struct {
	// Query is the BM25 query text and, unless VectorQuery is set, the
	// embedded text as well.
	Query string

	// VectorQuery, when non-empty, is embedded instead of Query. This is
	// the HyDE hook: embed a hypothetical answer, keep BM25 on the raw
	// query.
	VectorQuery string

	Mode  Mode
	Limit int

	// Threshold, when set, keeps only vector results with cosine
	// similarity strictly above it.
	Threshold *float64

	RRFK         int
	VectorWeight float64
	BM25Weight   float64

	// GraphHops enables relation expansion when positive.
	GraphHops       int
	GraphWeight     float64
	GraphDecay      float64
	GraphChunkLimit int

	// CommunityBoost enables community expansion when positive.
	CommunityBoost float64
}

func (o Options) withDefaults() Options {
	if o.Mode == "" {
		o.Mode = ModeHybrid
	}
	if o.Limit <= 0 {
		o.Limit = defaultLimit
	}
	if o.RRFK <= 0 {
		o.RRFK = defaultRRFK
	}
	if o.VectorWeight == 0 {
		o.VectorWeight = 1
	}
	if o.BM25Weight == 0 {
		o.BM25Weight = 1
	}
	if o.GraphWeight == 0 {
		o.GraphWeight = 1
	}
	if o.GraphDecay == 0 {
		o.GraphDecay = 1
	}
	if o.GraphChunkLimit <= 0 {
		o.GraphChunkLimit = defaultGraphChunkLimit
	}
	return o
}

// Result is one retrieved chunk.
type Result struct {
	ID           int64
	DocumentID   int64
	Title        string
	Text         string
	Score        float64
	Mode         Mode
	CommunityID  *int32
	RelationType *string
}

// Engine runs searches against one database handle.
type Engine struct {
	db    *db.DB
	embed EmbedFunc
}

// NewEngine creates a search engine.
func NewEngine(database *db.DB, embed EmbedFunc) *Engine {
	return &Engine{db: database, embed: embed}
}

// Search runs the primary search, dedups by text, truncates to the
// limit, then applies graph and community expansion when enabled.
func (e *Engine) Search(ctx context.Context, opts Options) ([]Result, error) {
	opts = opts.withDefaults()
	if opts.Query == "" && opts.VectorQuery == "" {
		return nil, fmt.Errorf("search: query is required")
	}

	var queryVec *pgvector.Vector
	if opts.Mode != ModeBM25 {
		vec, err := e.embedQuery(ctx, opts)
		if err != nil {
			return nil, err
		}
		queryVec = vec
	}

	fetchLimit := opts.Limit * fetchFactor
	var primary []Result
	var err error
	switch opts.Mode {
	case ModeVector:
		primary, err = e.vectorSearch(ctx, *queryVec, fetchLimit, opts.Threshold)
	case ModeBM25:
		primary, err = e.bm25Search(ctx, opts.Query, fetchLimit)
	case ModeHybrid:
		primary, err = e.hybridSearch(ctx, *queryVec, opts, fetchLimit)
	default:
		return nil, fmt.Errorf("search: unknown mode %q", opts.Mode)
	}
	if err != nil {
		return nil, err
	}

	results := dedupByText(primary)
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}

	expanded := false
	if opts.GraphHops > 0 {
		results, err = e.expandGraph(ctx, results, opts)
		if err != nil {
			return nil, err
		}
		expanded = true
	}
	if opts.CommunityBoost > 0 {
		if queryVec == nil {
			vec, err := e.embedQuery(ctx, opts)
			if err != nil {
				return nil, err
			}
			queryVec = vec
		}
		results, err = e.boostCommunity(ctx, results, *queryVec, opts)
		if err != nil {
			return nil, err
		}
		expanded = true
	}
	if expanded {
		sortByScore(results)
	}
	return results, nil
}

func (e *Engine) embedQuery(ctx context.Context, opts Options) (*pgvector.Vector, error) {
	text := opts.VectorQuery
	if text == "" {
		text = opts.Query
	}
	vecs, err := e.embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed returned %d vectors for one query", len(vecs))
	}
	v := pgvector.NewVector(vecs[0])
	return &v, nil
}

// vectorSearch ranks chunks by cosine similarity. Chunks shared by
// several documents are attributed to their newest source document.
func (e *Engine) vectorSearch(ctx context.Context, queryVec pgvector.Vector, limit int, threshold *float64) ([]Result, error) {
	rows, err := e.db.Pool().Query(ctx,
		`SELECT q.id, q.text, q.similarity, q.document_id, d.title, d.community_id
		 FROM (
			SELECT c.id, c.text,
			       1 - (c.embedding <=> $1) AS similarity,
			       MAX(cs.document_id) AS document_id
			FROM chunks c
			JOIN chunk_sources cs ON cs.chunk_id = c.id
			GROUP BY c.id, c.text, c.embedding
			ORDER BY c.embedding <=> $1
			LIMIT $2
		 ) q
		 JOIN documents d ON d.id = q.document_id
		 WHERE $3::float8 IS NULL OR q.similarity > $3
		 ORDER BY q.similarity DESC`,
		queryVec, limit, threshold,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to run vector search: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		r := Result{Mode: ModeVector}
		if err := rows.Scan(&r.ID, &r.Text, &r.Score, &r.DocumentID, &r.Title, &r.CommunityID); err != nil {
			return nil, fmt.Errorf("failed to scan vector result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// bm25Search ranks chunks by the BM25 index distance. The operator
// returns negative scores for matches; non-matches are filtered out and
// the sign is flipped for callers.
func (e *Engine) bm25Search(ctx context.Context, query string, limit int) ([]Result, error) {
	rows, err := e.db.Pool().Query(ctx,
		`SELECT q.id, q.text, q.distance, q.document_id, d.title, d.community_id
		 FROM (
			SELECT c.id, c.text,
			       c.text <&> to_bm25query('`+db.BM25IndexName+`', $1) AS distance,
			       MAX(cs.document_id) AS document_id
			FROM chunks c
			JOIN chunk_sources cs ON cs.chunk_id = c.id
			WHERE c.text <&> to_bm25query('`+db.BM25IndexName+`', $1) < 0
			GROUP BY c.id, c.text
			ORDER BY distance
			LIMIT $2
		 ) q
		 JOIN documents d ON d.id = q.document_id
		 ORDER BY q.distance`,
		query, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to run bm25 search: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		r := Result{Mode: ModeBM25}
		var distance float64
		if err := rows.Scan(&r.ID, &r.Text, &distance, &r.DocumentID, &r.Title, &r.CommunityID); err != nil {
			return nil, fmt.Errorf("failed to scan bm25 result: %w", err)
		}
		r.Score = -distance
		results = append(results, r)
	}
	return results, rows.Err()
}

// hybridSearch runs both arms concurrently and fuses them by RRF.
func (e *Engine) hybridSearch(ctx context.Context, queryVec pgvector.Vector, opts Options, fetchLimit int) ([]Result, error) {
	var vectorResults, bm25Results []Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		vectorResults, err = e.vectorSearch(gctx, queryVec, fetchLimit, opts.Threshold)
		return err
	})
	g.Go(func() error {
		var err error
		bm25Results, err = e.bm25Search(gctx, opts.Query, fetchLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return fuseRRF(vectorResults, bm25Results, opts.RRFK, opts.VectorWeight, opts.BM25Weight), nil
}

// dedupByText keeps the first result carrying each distinct text.
func dedupByText(results []Result) []Result {
	seen := make(map[string]bool, len(results))
	out := results[:0:0]
	for _, r := range results {
		if seen[r.Text] {
			continue
		}
		seen[r.Text] = true
		out = append(out, r)
	}
	return out
}
