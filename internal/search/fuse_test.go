package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkResult(id int64, text string, mode Mode) Result {
	return Result{ID: id, Text: text, Mode: mode}
}

func TestFuseRRFCombinesRanks(t *testing.T) {
	vector := []Result{mkResult(1, "a", ModeVector), mkResult(2, "b", ModeVector)}
	bm25 := []Result{mkResult(2, "b", ModeBM25), mkResult(3, "c", ModeBM25)}

	fused := fuseRRF(vector, bm25, 60, 1, 1)
	require.Len(t, fused, 3)

	// Chunk 2 appears in both lists, so it must rank first.
	assert.Equal(t, int64(2), fused[0].ID)
	assert.InDelta(t, 1.0/62+1.0/61, fused[0].Score, 1e-9)

	// Chunks only present in one list contribute a single term.
	scores := map[int64]float64{}
	for _, r := range fused {
		scores[r.ID] = r.Score
	}
	assert.InDelta(t, 1.0/61, scores[1], 1e-9)
	assert.InDelta(t, 1.0/62, scores[3], 1e-9)
}

func TestFuseRRFKeepsVectorMode(t *testing.T) {
	vector := []Result{mkResult(1, "a", ModeVector)}
	bm25 := []Result{mkResult(1, "a", ModeBM25), mkResult(2, "b", ModeBM25)}

	fused := fuseRRF(vector, bm25, 60, 1, 1)
	modes := map[int64]Mode{}
	for _, r := range fused {
		modes[r.ID] = r.Mode
	}
	// Every fused row carries mode=vector, whether the vector arm, the
	// BM25 arm or both matched it.
	assert.Equal(t, ModeVector, modes[1])
	assert.Equal(t, ModeVector, modes[2])
}

func TestFuseRRFRespectsWeights(t *testing.T) {
	vector := []Result{mkResult(1, "a", ModeVector)}
	bm25 := []Result{mkResult(2, "b", ModeBM25)}

	fused := fuseRRF(vector, bm25, 60, 0.2, 2)
	require.Len(t, fused, 2)
	assert.Equal(t, int64(2), fused[0].ID)
	assert.InDelta(t, 2.0/61, fused[0].Score, 1e-9)
	assert.InDelta(t, 0.2/61, fused[1].Score, 1e-9)
}

func TestFuseRRFEmptyArms(t *testing.T) {
	assert.Empty(t, fuseRRF(nil, nil, 60, 1, 1))

	onlyVector := fuseRRF([]Result{mkResult(1, "a", ModeVector)}, nil, 60, 1, 1)
	require.Len(t, onlyVector, 1)
	assert.InDelta(t, 1.0/61, onlyVector[0].Score, 1e-9)
}

func TestDedupByTextKeepsFirst(t *testing.T) {
	in := []Result{
		{ID: 1, Text: "same", Score: 0.9},
		{ID: 2, Text: "same", Score: 0.8},
		{ID: 3, Text: "other", Score: 0.7},
	}
	out := dedupByText(in)
	require.Len(t, out, 2)
	assert.Equal(t, int64(1), out[0].ID)
	assert.Equal(t, int64(3), out[1].ID)
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	assert.Equal(t, ModeHybrid, o.Mode)
	assert.Equal(t, 10, o.Limit)
	assert.Equal(t, 60, o.RRFK)
	assert.Equal(t, 1.0, o.VectorWeight)
	assert.Equal(t, 1.0, o.BM25Weight)
	assert.Equal(t, 1.0, o.GraphWeight)
	assert.Equal(t, 1.0, o.GraphDecay)
	assert.Equal(t, 200, o.GraphChunkLimit)
}

func TestSortByScoreIsStable(t *testing.T) {
	results := []Result{
		{ID: 1, Score: 0.5},
		{ID: 2, Score: 0.9},
		{ID: 3, Score: 0.5},
	}
	sortByScore(results)
	assert.Equal(t, []int64{2, 1, 3}, []int64{results[0].ID, results[1].ID, results[2].ID})
}
