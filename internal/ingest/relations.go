package ingest

import (
	"context"
	"sort"

	"github.com/ragstore/ragstore/internal/backup"
	"github.com/ragstore/ragstore/internal/db"
)

// resolveRelations turns the title-keyed relation map into edge rows.
// Titles ingested in this run resolve through titleIDs; anything else is
// looked up in the store in batches. A title may name several documents,
// in which case every (source, target) id pair gets an edge. Targets
// that resolve nowhere are reported back; self-references are skipped
// silently.
func (p *Pipeline) resolveRelations(ctx context.Context, relations map[string][]backup.RelationTarget, titleIDs map[string][]int64) ([]string, int, error) {
	if len(relations) == 0 {
		return nil, 0, nil
	}

	resolved := make(map[string][]int64, len(titleIDs))
	for title, ids := range titleIDs {
		resolved[title] = ids
	}
	var missing []string
	need := func(title string) {
		if _, ok := resolved[title]; !ok {
			missing = append(missing, title)
			resolved[title] = nil
		}
	}
	for sourceTitle, targets := range relations {
		need(sourceTitle)
		for _, target := range targets {
			need(target.Title)
		}
	}
	if len(missing) > 0 {
		looked, err := p.db.DocumentIDsByTitles(ctx, missing)
		if err != nil {
			return nil, 0, err
		}
		for title, ids := range looked {
			resolved[title] = ids
		}
	}

	var rows []db.NewRelation
	unresolvedSet := make(map[string]bool)
	sourceTitles := make([]string, 0, len(relations))
	for title := range relations {
		sourceTitles = append(sourceTitles, title)
	}
	sort.Strings(sourceTitles)

	for _, sourceTitle := range sourceTitles {
		sourceIDs := resolved[sourceTitle]
		for _, target := range relations[sourceTitle] {
			if target.Title == sourceTitle {
				continue
			}
			targetIDs := resolved[target.Title]
			if len(targetIDs) == 0 {
				unresolvedSet[target.Title] = true
				continue
			}
			weight := float32(target.WeightOrDefault())
			for _, sourceID := range sourceIDs {
				for _, targetID := range targetIDs {
					rows = append(rows, db.NewRelation{
						SourceID: sourceID,
						TargetID: targetID,
						RelType:  target.Type,
						Weight:   &weight,
					})
				}
			}
		}
	}

	inserted, err := p.db.InsertRelations(ctx, rows)
	if err != nil {
		return nil, 0, err
	}

	unresolved := make([]string, 0, len(unresolvedSet))
	for title := range unresolvedSet {
		unresolved = append(unresolved, title)
	}
	sort.Strings(unresolved)
	return unresolved, int(inserted), nil
}
