package chunker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeKeepsHeaderMarkers(t *testing.T) {
	out := Normalize("# Title\n\nSome **bold** body text.")
	assert.Contains(t, out, "# Title")
	assert.Contains(t, out, "Some bold body text.")
	assert.NotContains(t, out, "**")
}

func TestNormalizeStripsLinkSyntax(t *testing.T) {
	out := Normalize("See [the docs](https://example.com/docs) for more.")
	assert.Contains(t, out, "See the docs for more.")
	assert.NotContains(t, out, "](")
}

func TestNormalizeKeepsListMarkers(t *testing.T) {
	out := Normalize("Intro:\n\n- first item\n- second item\n\n1. one\n2. two")
	assert.Contains(t, out, "- first item")
	assert.Contains(t, out, "- second item")
	assert.Contains(t, out, "1. one")
	assert.Contains(t, out, "2. two")
}

func TestNormalizeKeepsCodeBlockContent(t *testing.T) {
	out := Normalize("Before.\n\n```go\nfunc main() {}\n```\n\nAfter.")
	assert.Contains(t, out, "func main() {}")
	assert.NotContains(t, out, "```")
}

func TestNormalizeCollapsesExcessBlankLines(t *testing.T) {
	out := Normalize("one\n\n\n\n\ntwo")
	assert.NotContains(t, out, "\n\n\n")
}
