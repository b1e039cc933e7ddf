package community

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnionFindSingletons(t *testing.T) {
	ids := []int64{10, 20, 30}
	uf := newUnionFind(ids)
	assignments, count := uf.assign(ids)

	assert.Equal(t, 3, count)
	assert.Equal(t, int32(0), assignments[10])
	assert.Equal(t, int32(1), assignments[20])
	assert.Equal(t, int32(2), assignments[30])
}

func TestUnionFindMergesComponents(t *testing.T) {
	ids := []int64{1, 2, 3, 4, 5}
	uf := newUnionFind(ids)
	uf.union(1, 2)
	uf.union(2, 3)
	uf.union(4, 5)

	assignments, count := uf.assign(ids)
	assert.Equal(t, 2, count)
	assert.Equal(t, assignments[1], assignments[2])
	assert.Equal(t, assignments[2], assignments[3])
	assert.Equal(t, assignments[4], assignments[5])
	assert.NotEqual(t, assignments[1], assignments[4])

	// Canonical numbering follows first observation in id order.
	assert.Equal(t, int32(0), assignments[1])
	assert.Equal(t, int32(1), assignments[4])
}

func TestUnionFindCycleSafe(t *testing.T) {
	ids := []int64{1, 2, 3}
	uf := newUnionFind(ids)
	uf.union(1, 2)
	uf.union(2, 3)
	uf.union(3, 1)

	assignments, count := uf.assign(ids)
	assert.Equal(t, 1, count)
	assert.Equal(t, assignments[1], assignments[2])
	assert.Equal(t, assignments[1], assignments[3])
}

func TestUnionFindPathCompression(t *testing.T) {
	ids := []int64{1, 2, 3, 4}
	uf := newUnionFind(ids)
	uf.union(1, 2)
	uf.union(3, 4)
	uf.union(1, 3)

	root := uf.find(1)
	for _, id := range ids {
		assert.Equal(t, root, uf.find(id))
	}
	// After find, every node points straight at the root.
	for _, id := range ids {
		assert.Equal(t, root, uf.parent[id])
	}
}
