package community

import (
	"context"
	"fmt"

	"github.com/ragstore/ragstore/internal/db"
)

// Detect recomputes community ids for every document from the relation
// graph and writes them back. It returns the number of distinct
// communities; isolated documents each count as their own.
func Detect(ctx context.Context, database *db.DB) (int, error) {
	ids, err := database.AllDocumentIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load documents for community detection: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	pairs, err := database.AllRelationPairs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load relations for community detection: %w", err)
	}

	uf := newUnionFind(ids)
	for _, p := range pairs {
		uf.union(p[0], p[1])
	}
	assignments, count := uf.assign(ids)

	if err := database.UpdateCommunityIDs(ctx, assignments); err != nil {
		return 0, fmt.Errorf("failed to write community ids: %w", err)
	}
	return count, nil
}
