package backup

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func line(s string) []byte { return []byte(s) }

func TestValidateLinesAcceptsGoodBackup(t *testing.T) {
	lines := [][]byte{
		line(`{"title":"A","content":"x","contentHash":"h1","metadata":{},"chunks":[{"text":"t","embedding":[0.1,0.2],"startIndex":0,"endIndex":1,"tokenCount":1}]}`),
		line(`{"title":"B","content":"y","contentHash":"h2","metadata":{},"chunks":[{"text":"u","embedding":[0.3,0.4],"startIndex":0,"endIndex":1,"tokenCount":1}]}`),
	}
	v := ValidateLines(lines)
	assert.True(t, v.Valid)
	assert.Equal(t, 2, v.TotalDocuments)
	assert.Equal(t, 2, v.TotalChunks)
	assert.Equal(t, []int{2}, v.Dimensions)
	assert.Empty(t, v.Errors)
	assert.Empty(t, v.DuplicateHashes)
}

func TestValidateLinesDetectsMixedDimensions(t *testing.T) {
	lines := [][]byte{
		line(`{"title":"A","content":"x","contentHash":"h1","metadata":{},"chunks":[{"text":"t","embedding":[0.1,0.2],"startIndex":0,"endIndex":1,"tokenCount":1}]}`),
		line(`{"title":"B","content":"y","contentHash":"h2","metadata":{},"chunks":[{"text":"u","embedding":[0.3,0.4,0.5],"startIndex":0,"endIndex":1,"tokenCount":1}]}`),
	}
	v := ValidateLines(lines)
	assert.False(t, v.Valid)
	assert.Len(t, v.Dimensions, 2)
	assert.Empty(t, v.Errors)
}

func TestValidateLinesReportsMissingFields(t *testing.T) {
	lines := [][]byte{
		line(`{"title":"","content":"","contentHash":"","metadata":{},"chunks":[]}`),
	}
	v := ValidateLines(lines)
	assert.False(t, v.Valid)
	assert.Len(t, v.Errors, 3)
}

func TestValidateLinesReportsBadJSONAndMissingEmbedding(t *testing.T) {
	lines := [][]byte{
		line(`not json at all`),
		line(`{"title":"A","content":"x","contentHash":"h1","metadata":{},"chunks":[{"text":"t","startIndex":0,"endIndex":1,"tokenCount":1}]}`),
	}
	v := ValidateLines(lines)
	assert.False(t, v.Valid)
	require.Len(t, v.Errors, 2)
	assert.Contains(t, v.Errors[0], "line 1")
	assert.Contains(t, v.Errors[1], "no embedding")
}

func TestValidateLinesReportsDuplicateHashes(t *testing.T) {
	lines := [][]byte{
		line(`{"title":"A","content":"x","contentHash":"same","metadata":{},"chunks":[]}`),
		line(`{"title":"B","content":"y","contentHash":"same","metadata":{},"chunks":[]}`),
		line(`{"title":"C","content":"z","contentHash":"same","metadata":{},"chunks":[]}`),
	}
	v := ValidateLines(lines)
	assert.Equal(t, []string{"same"}, v.DuplicateHashes)
	// Duplicate hashes alone do not fail validation.
	assert.True(t, v.Valid)
}

func TestAppendAndReadLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup.jsonl")
	doc := &Document{Title: "A", Content: "x", ContentHash: "h", Metadata: map[string]any{}}
	require.NoError(t, AppendLine(path, doc))
	require.NoError(t, AppendLine(path, doc))

	lines, err := ReadLines(path)
	require.NoError(t, err)
	assert.Len(t, lines, 2)

	require.NoError(t, Truncate(path))
	lines, err = ReadLines(path)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestValidateFileOnRealFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup.jsonl")
	doc := &Document{
		Title: "A", Content: "x", ContentHash: "h", Metadata: map[string]any{},
		Chunks: []Chunk{{Text: "t", Embedding: []float32{0.1}, EndIndex: 1, TokenCount: 1}},
	}
	require.NoError(t, AppendLine(path, doc))

	v, err := ValidateFile(path)
	require.NoError(t, err)
	assert.True(t, v.Valid)
	assert.Equal(t, []int{1}, v.Dimensions)
}

func TestInvalidBackupErrorMessage(t *testing.T) {
	err := &InvalidBackupError{Errors: []string{"line 1: missing title"}, Dimensions: []int{2, 3}}
	msg := err.Error()
	assert.Contains(t, msg, "invalid backup")
	assert.Contains(t, msg, "line 1: missing title")
	assert.Contains(t, msg, "[2 3]")
}
