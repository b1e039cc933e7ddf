package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnwrapHardBreaks(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "single newline becomes space",
			in:   "hard\nwrapped prose",
			want: "hard wrapped prose",
		},
		{
			name: "double newline preserved",
			in:   "para one\n\npara two",
			want: "para one\n\npara two",
		},
		{
			name: "newline before header preserved",
			in:   "intro text\n# Header",
			want: "intro text\n# Header",
		},
		{
			name: "newline before list marker preserved",
			in:   "intro\n- item one\n- item two",
			want: "intro\n- item one\n- item two",
		},
		{
			name: "newline before numbered item preserved",
			in:   "intro\n1. first\n2. second",
			want: "intro\n1. first\n2. second",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, unwrapHardBreaks(tt.in))
		})
	}
}

func TestSplitRespectsChunkSize(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 40; i++ {
		sb.WriteString("The quick brown fox jumps over the lazy dog near the river bank. ")
	}
	chunks := Split(sb.String(), Options{ChunkSize: 300})
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c.Text)), 300)
		assert.GreaterOrEqual(t, len([]rune(c.Text)), 50)
		assert.Equal(t, strings.TrimSpace(c.Text), c.Text)
	}
}

func TestSplitKeepsHeadersAtLineStart(t *testing.T) {
	section := strings.Repeat("Sentence about the first topic goes here. ", 10)
	text := "# First\n\n" + section + "\n\n# Second\n\n" + section
	chunks := Split(text, Options{ChunkSize: 256})
	require.True(t, len(chunks) >= 2)

	firstStarts, secondStarts := false, false
	for _, c := range chunks {
		if strings.HasPrefix(c.Text, "# First") {
			firstStarts = true
		}
		if strings.HasPrefix(c.Text, "# Second") || strings.Contains(c.Text, "\n# Second") {
			secondStarts = true
		}
	}
	assert.True(t, firstStarts, "a chunk should begin at the first header")
	assert.True(t, secondStarts, "the second header should begin a chunk or a merged line")
}

func TestSplitOffsetsStrictlyIncreasing(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 30; i++ {
		sb.WriteString("Paragraph body with a reasonable amount of words in it, enough to matter.\n\n")
	}
	chunks := Split(sb.String(), Options{ChunkSize: 200})
	require.True(t, len(chunks) >= 2)
	prev := -1
	for _, c := range chunks {
		assert.Greater(t, c.StartIndex, prev)
		assert.Equal(t, c.StartIndex+len([]rune(c.Text)), c.EndIndex)
		assert.Equal(t, len([]rune(c.Text)), c.TokenCount)
		prev = c.StartIndex
	}
}

func TestSplitDropsShortFragments(t *testing.T) {
	chunks := Split("tiny", Options{})
	assert.Empty(t, chunks)
}

func TestSplitDropsOCRGarbage(t *testing.T) {
	garbage := "Intro sentence that is fine and long enough to survive the filter. " +
		strings.Repeat("x", 250)
	chunks := Split(garbage, Options{ChunkSize: 400})
	for _, c := range chunks {
		assert.NotContains(t, c.Text, strings.Repeat("x", 200))
	}
}

func TestSplitPreservesUnicode(t *testing.T) {
	text := "Días de añoranza en el café. " + strings.Repeat("Más texto útil con acentos y eñes para llenar. ", 5)
	chunks := Split(text, Options{ChunkSize: 2048})
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].Text, "añoranza")
	assert.Contains(t, chunks[0].Text, "café")
}

func TestSplitOverlapPrefixesPreviousTail(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 20; i++ {
		sb.WriteString("Sentences that will be split into more than one chunk for sure. ")
	}
	plain := Split(sb.String(), Options{ChunkSize: 200})
	require.True(t, len(plain) >= 2)

	overlapped := Split(sb.String(), Options{ChunkSize: 200, Overlap: 20})
	require.True(t, len(overlapped) >= 2)
	tail := []rune(plain[0].Text)
	want := string(tail[len(tail)-20:])
	assert.True(t, strings.HasPrefix(overlapped[1].Text, strings.TrimSpace(want)),
		"second chunk should begin with the previous chunk's tail")
}

func TestMergeUsesNewlineBeforeHeaders(t *testing.T) {
	merged := mergePieces([]string{"intro text", "# Header"}, 100)
	require.Len(t, merged, 1)
	assert.Equal(t, "intro text\n# Header", merged[0])
}

func TestSplitEmptyInput(t *testing.T) {
	assert.Empty(t, Split("", Options{}))
	assert.Empty(t, Split("   \n\n  ", Options{}))
}
