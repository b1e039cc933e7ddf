package search

import "sort"

// fuseRRF merges the two ranked lists by reciprocal rank fusion:
// score = vw/(k+rank_v) + bw/(k+rank_b), with a missing rank
// contributing nothing. Rows keep the fields of whichever list saw them
// first, vector list preferred; the score is rewritten and every fused
// row is tagged ModeVector, including rows only the BM25 arm matched.
func fuseRRF(vectorResults, bm25Results []Result, k int, vectorWeight, bm25Weight float64) []Result {
	type fused struct {
		result Result
		score  float64
		order  int
	}
	byID := make(map[int64]*fused, len(vectorResults)+len(bm25Results))
	order := 0

	for rank, r := range vectorResults {
		byID[r.ID] = &fused{
			result: r,
			score:  vectorWeight / float64(k+rank+1),
			order:  order,
		}
		order++
	}
	for rank, r := range bm25Results {
		contribution := bm25Weight / float64(k+rank+1)
		if f, ok := byID[r.ID]; ok {
			f.score += contribution
			continue
		}
		byID[r.ID] = &fused{result: r, score: contribution, order: order}
		order++
	}

	all := make([]*fused, 0, len(byID))
	for _, f := range byID {
		all = append(all, f)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score > all[j].score
		}
		return all[i].order < all[j].order
	})

	out := make([]Result, len(all))
	for i, f := range all {
		r := f.result
		r.Score = f.score
		r.Mode = ModeVector
		out[i] = r
	}
	return out
}

// sortByScore orders results descending by score, stably so equal-score
// expansion rows keep their insertion order.
func sortByScore(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}
