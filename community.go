package ragstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/ragstore/ragstore/internal/community"
	"github.com/ragstore/ragstore/internal/search"
)

// CommunityMember is one document inside a community, as handed to the
// summarizer.
type CommunityMember struct {
	ID      int64
	Title   string
	Content string
}

// SummarizeFunc condenses the member documents of one community into a
// summary text.
type SummarizeFunc func(ctx context.Context, members []CommunityMember) (string, error)

// DetectCommunities recomputes the connected components of the relation
// graph and writes community ids back to every document. It returns the
// number of distinct communities.
func (c *Client) DetectCommunities(ctx context.Context) (int, error) {
	database, err := c.conn(ctx)
	if err != nil {
		return 0, err
	}
	return community.Detect(ctx, database)
}

// SummaryOptions configure BuildCommunitySummaries. Embed and Summarize
// are required.
type SummaryOptions struct {
	Embed     EmbedFunc
	Summarize SummarizeFunc

	// MinCommunitySize skips communities with fewer members; zero means
	// 2.
	MinCommunitySize int

	// Chunk is passed through to the chunker when the summaries are
	// ingested.
	Chunk ChunkOptions
}

// SummaryResult reports one BuildCommunitySummaries run.
type SummaryResult struct {
	CommunitiesProcessed int
	SummariesGenerated   int
}

// BuildCommunitySummaries replaces the synthetic community-summary
// documents: existing summaries are deleted, every community at or
// above the minimum size is summarized, and each summary is ingested as
// a document carrying the community metadata keys.
func (c *Client) BuildCommunitySummaries(ctx context.Context, opts SummaryOptions) (*SummaryResult, error) {
	if opts.Embed == nil || opts.Summarize == nil {
		return nil, fmt.Errorf("ragstore: embed and summarize functions are required")
	}
	minSize := opts.MinCommunitySize
	if minSize <= 0 {
		minSize = 2
	}

	database, err := c.conn(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := database.DeleteDocumentsByMetadata(ctx, MetaTypeKey, SummaryType); err != nil {
		return nil, err
	}

	docs, err := database.DocumentsWithCommunity(ctx, MetaTypeKey, SummaryType)
	if err != nil {
		return nil, err
	}
	grouped := make(map[int32][]CommunityMember)
	var orderIDs []int32
	for _, d := range docs {
		id := *d.CommunityID
		if _, ok := grouped[id]; !ok {
			orderIDs = append(orderIDs, id)
		}
		grouped[id] = append(grouped[id], CommunityMember{ID: d.ID, Title: d.Title, Content: d.Content})
	}

	result := &SummaryResult{}
	for _, communityID := range orderIDs {
		members := grouped[communityID]
		if len(members) < minSize {
			continue
		}
		result.CommunitiesProcessed++

		summary, err := opts.Summarize(ctx, members)
		if err != nil {
			return nil, fmt.Errorf("failed to summarize community %d: %w", communityID, err)
		}
		titles := make([]string, len(members))
		for i, m := range members {
			titles[i] = m.Title
		}
		_, err = c.Ingest(ctx, []Document{{
			Title:   fmt.Sprintf("%s%d", SummaryTitlePrefix, communityID),
			Content: summary,
			Metadata: map[string]any{
				MetaTypeKey:         SummaryType,
				MetaCommunityIDKey:  int(communityID),
				MetaMemberTitlesKey: titles,
			},
		}}, IngestOptions{Embed: opts.Embed, Chunk: opts.Chunk})
		if err != nil {
			return nil, fmt.Errorf("failed to ingest summary for community %d: %w", communityID, err)
		}
		result.SummariesGenerated++
	}
	return result, nil
}

// GlobalQueryOptions configure GlobalQuery. Embed, Generate and Query
// are required.
type GlobalQueryOptions struct {
	Embed    EmbedFunc
	Generate GenerateFunc

	// Rerank, when set, reorders each community's chunks before its
	// partial answer is generated.
	Rerank RerankFunc

	Query string

	// Limit is the per-community retrieval limit; zero means 10.
	Limit int

	// MaxCommunities bounds how many community summaries are consulted;
	// zero means all.
	MaxCommunities int
}

// PartialAnswer is one community's contribution to a global answer.
type PartialAnswer struct {
	CommunityID int32
	Answer      string
}

// GlobalQueryResult carries the combined answer and its per-community
// parts.
type GlobalQueryResult struct {
	Answer         string
	PartialAnswers []PartialAnswer
}

// GlobalQuery answers a question across the whole corpus: each
// community summary scopes a vector search to that community's
// documents, a partial answer is generated per community, and a final
// generation pass combines them.
func (c *Client) GlobalQuery(ctx context.Context, opts GlobalQueryOptions) (*GlobalQueryResult, error) {
	if opts.Embed == nil || opts.Generate == nil {
		return nil, fmt.Errorf("ragstore: embed and generate functions are required")
	}
	if opts.Query == "" {
		return nil, fmt.Errorf("ragstore: query is required")
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	database, err := c.conn(ctx)
	if err != nil {
		return nil, err
	}
	summaries, err := database.DocumentsByMetadata(ctx, MetaTypeKey, SummaryType, MetaCommunityIDKey)
	if err != nil {
		return nil, err
	}
	if opts.MaxCommunities > 0 && len(summaries) > opts.MaxCommunities {
		summaries = summaries[:opts.MaxCommunities]
	}

	engine := search.NewEngine(database, search.EmbedFunc(opts.Embed))
	result := &GlobalQueryResult{}

	for _, summary := range summaries {
		communityID := metadataInt32(summary.Metadata, MetaCommunityIDKey)
		memberTitles := metadataStrings(summary.Metadata, MetaMemberTitlesKey)
		allowed := make(map[string]bool, len(memberTitles)+1)
		for _, t := range memberTitles {
			allowed[t] = true
		}
		allowed[summary.Title] = true

		results, err := engine.Search(ctx, search.Options{
			Query: opts.Query,
			Mode:  search.ModeVector,
			Limit: limit,
		})
		if err != nil {
			return nil, err
		}
		var scoped []SearchResult
		for _, r := range results {
			if allowed[r.Title] {
				scoped = append(scoped, r)
			}
		}
		if len(scoped) == 0 {
			continue
		}

		if opts.Rerank != nil && len(scoped) > 1 {
			texts := make([]string, len(scoped))
			for i, r := range scoped {
				texts[i] = r.Text
			}
			order, err := opts.Rerank(ctx, opts.Query, texts)
			if err != nil {
				return nil, fmt.Errorf("failed to rerank community %d: %w", communityID, err)
			}
			reordered := make([]SearchResult, 0, len(scoped))
			for _, idx := range order {
				if idx >= 0 && idx < len(scoped) {
					reordered = append(reordered, scoped[idx])
				}
			}
			if len(reordered) > 0 {
				scoped = reordered
			}
		}

		partial, err := opts.Generate(ctx, BuildContext(scoped), opts.Query)
		if err != nil {
			return nil, fmt.Errorf("failed to answer for community %d: %w", communityID, err)
		}
		result.PartialAnswers = append(result.PartialAnswers, PartialAnswer{
			CommunityID: communityID,
			Answer:      partial,
		})
	}

	if len(result.PartialAnswers) == 0 {
		return result, nil
	}
	var combined strings.Builder
	for _, p := range result.PartialAnswers {
		fmt.Fprintf(&combined, "[Community %d]\n%s\n\n", p.CommunityID, p.Answer)
	}
	answer, err := opts.Generate(ctx, combined.String(), opts.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to combine answers: %w", err)
	}
	result.Answer = answer
	return result, nil
}

// metadataInt32 reads an integer metadata value; JSON decoding hands
// numbers back as float64.
func metadataInt32(metadata map[string]any, key string) int32 {
	switch v := metadata[key].(type) {
	case float64:
		return int32(v)
	case int:
		return int32(v)
	case int32:
		return v
	case int64:
		return int32(v)
	default:
		return 0
	}
}

func metadataStrings(metadata map[string]any, key string) []string {
	raw, ok := metadata[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
