package ragstore

import (
	"context"
	"fmt"

	"github.com/ragstore/ragstore/internal/search"
)

// Search modes.
const (
	ModeVector    = search.ModeVector
	ModeBM25      = search.ModeBM25
	ModeHybrid    = search.ModeHybrid
	ModeGraph     = search.ModeGraph
	ModeCommunity = search.ModeCommunity
)

// SearchOptions configure the search itself: query, mode, fusion
// weights, graph expansion and community boost.
type SearchOptions = search.Options

// RetrieveOptions configure one Retrieve call. Embed is required unless
// the mode is pure BM25 with no community boost.
type RetrieveOptions struct {
	SearchOptions

	// Embed produces the query embedding.
	Embed EmbedFunc
}

// Retrieve runs a search and returns the ranked chunks.
func (c *Client) Retrieve(ctx context.Context, opts RetrieveOptions) ([]SearchResult, error) {
	database, err := c.conn(ctx)
	if err != nil {
		return nil, err
	}
	if opts.Embed == nil {
		if opts.Mode != ModeBM25 || opts.CommunityBoost > 0 {
			return nil, fmt.Errorf("ragstore: embed function is required for mode %q", opts.Mode)
		}
		opts.Embed = func(context.Context, []string) ([][]float32, error) {
			return nil, fmt.Errorf("no embed function configured")
		}
	}
	engine := search.NewEngine(database, search.EmbedFunc(opts.Embed))
	return engine.Search(ctx, opts.SearchOptions)
}

// QueryOptions configure one Query call.
type QueryOptions struct {
	RetrieveOptions

	// Generate produces the answer from the built context.
	Generate GenerateFunc

	// Rerank, when set, reorders retrieved chunks before the context is
	// built.
	Rerank RerankFunc
}

// QueryResult carries the generated answer together with the retrieval
// evidence behind it.
type QueryResult struct {
	Answer  string
	Context string
	Results []SearchResult
}

// Query retrieves, builds a context block (including relation edges
// when graph expansion ran), and generates an answer.
func (c *Client) Query(ctx context.Context, opts QueryOptions) (*QueryResult, error) {
	if opts.Generate == nil {
		return nil, fmt.Errorf("ragstore: generate function is required")
	}
	results, err := c.Retrieve(ctx, opts.RetrieveOptions)
	if err != nil {
		return nil, err
	}

	if opts.Rerank != nil && len(results) > 1 {
		texts := make([]string, len(results))
		for i, r := range results {
			texts[i] = r.Text
		}
		order, err := opts.Rerank(ctx, opts.Query, texts)
		if err != nil {
			return nil, fmt.Errorf("failed to rerank results: %w", err)
		}
		reordered := make([]SearchResult, 0, len(results))
		for _, idx := range order {
			if idx >= 0 && idx < len(results) {
				reordered = append(reordered, results[idx])
			}
		}
		if len(reordered) > 0 {
			results = reordered
		}
	}

	contextText := ""
	if opts.GraphHops > 0 {
		var docIDs []int64
		seen := make(map[int64]bool)
		for _, r := range results {
			if !seen[r.DocumentID] {
				seen[r.DocumentID] = true
				docIDs = append(docIDs, r.DocumentID)
			}
		}
		relations, err := c.FetchRelations(ctx, docIDs)
		if err != nil {
			return nil, err
		}
		contextText = BuildGraphContext(results, relations)
	} else {
		contextText = BuildContext(results)
	}

	answer, err := opts.Generate(ctx, contextText, opts.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}
	return &QueryResult{Answer: answer, Context: contextText, Results: results}, nil
}
