package search

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ragstore/ragstore/internal/db"
)

func TestBuildContext(t *testing.T) {
	results := []Result{
		{Title: "Doc A", Text: "first text"},
		{Title: "Doc B", Text: "second text"},
	}
	want := "[1] Doc A\nfirst text\n\n[2] Doc B\nsecond text"
	assert.Equal(t, want, BuildContext(results))
}

func TestBuildContextEmpty(t *testing.T) {
	assert.Equal(t, "", BuildContext(nil))
}

func TestBuildGraphContextWithRelations(t *testing.T) {
	results := []Result{{Title: "Doc A", Text: "body"}}
	typed := "cites"
	relations := []db.TitledRelation{
		{SourceTitle: "Doc A", TargetTitle: "Doc B", RelType: &typed},
		{SourceTitle: "Doc B", TargetTitle: "Doc C"},
	}
	got := BuildGraphContext(results, relations)
	want := "=== Document Relations ===\n" +
		"Doc A → Doc B [cites]\n" +
		"Doc B → Doc C\n" +
		"\n" +
		"[1] Doc A\nbody"
	assert.Equal(t, want, got)
}

func TestBuildGraphContextWithoutRelations(t *testing.T) {
	results := []Result{{Title: "Doc A", Text: "body"}}
	assert.Equal(t, BuildContext(results), BuildGraphContext(results, nil))
}
