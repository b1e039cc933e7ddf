package search

import (
	"fmt"
	"strings"

	"github.com/ragstore/ragstore/internal/db"
)

// BuildContext renders results as a numbered context block:
//
//	[1] Title
//	text
//
//	[2] ...
func BuildContext(results []Result) string {
	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "[%d] %s\n%s\n\n", i+1, r.Title, r.Text)
	}
	return strings.TrimRight(b.String(), " \t\n")
}

// BuildGraphContext renders results preceded by the relation edges that
// connect their documents. With no relations it is exactly BuildContext.
func BuildGraphContext(results []Result, relations []db.TitledRelation) string {
	if len(relations) == 0 {
		return BuildContext(results)
	}
	var b strings.Builder
	b.WriteString("=== Document Relations ===\n")
	for _, rel := range relations {
		if rel.RelType != nil {
			fmt.Fprintf(&b, "%s → %s [%s]\n", rel.SourceTitle, rel.TargetTitle, *rel.RelType)
		} else {
			fmt.Fprintf(&b, "%s → %s\n", rel.SourceTitle, rel.TargetTitle)
		}
	}
	b.WriteString("\n")
	b.WriteString(BuildContext(results))
	return b.String()
}
