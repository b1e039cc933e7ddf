package chunker

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// markdown is the shared parser behind Normalize. goldmark parsers are
// stateless and safe for concurrent use.
var markdown = goldmark.New()

var excessBlankRe = regexp.MustCompile(`\n{3,}`)

// Normalize is the stock markdown cleanup transform for Split. It parses
// the text as CommonMark and renders it back as plain text: emphasis and
// link syntax are dropped (link and image text is kept), code blocks keep
// their raw lines, and header and list markers survive so the splitter
// can still see document structure.
func Normalize(input string) string {
	src := []byte(input)
	doc := markdown.Parser().Parse(text.NewReader(src))

	var b strings.Builder
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		renderBlock(&b, n, src, "")
	}
	out := excessBlankRe.ReplaceAllString(b.String(), "\n\n")
	return strings.TrimSpace(out)
}

func renderBlock(b *strings.Builder, n ast.Node, src []byte, prefix string) {
	switch node := n.(type) {
	case *ast.Heading:
		b.WriteString(strings.Repeat("#", node.Level))
		b.WriteByte(' ')
		b.WriteString(inlineText(node, src))
		b.WriteString("\n\n")
	case *ast.Paragraph, *ast.TextBlock:
		b.WriteString(prefix)
		b.WriteString(inlineText(n, src))
		b.WriteString("\n\n")
	case *ast.FencedCodeBlock:
		writeCodeLines(b, node, src)
	case *ast.CodeBlock:
		writeCodeLines(b, node, src)
	case *ast.List:
		renderList(b, node, src)
		b.WriteByte('\n')
	case *ast.Blockquote:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			b.WriteString("> ")
			b.WriteString(inlineText(c, src))
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	case *ast.ThematicBreak, *ast.HTMLBlock:
		// dropped
	default:
		if n.Type() == ast.TypeBlock {
			b.WriteString(inlineText(n, src))
			b.WriteString("\n\n")
		}
	}
}

func renderList(b *strings.Builder, list *ast.List, src []byte) {
	index := list.Start
	if index == 0 {
		index = 1
	}
	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		if list.IsOrdered() {
			b.WriteString(fmt.Sprintf("%d. ", index))
			index++
		} else {
			b.WriteString("- ")
		}
		first := true
		for c := item.FirstChild(); c != nil; c = c.NextSibling() {
			if nested, ok := c.(*ast.List); ok {
				b.WriteByte('\n')
				renderList(b, nested, src)
				first = true
				continue
			}
			if !first {
				b.WriteByte(' ')
			}
			b.WriteString(inlineText(c, src))
			first = false
		}
		b.WriteByte('\n')
	}
}

func writeCodeLines(b *strings.Builder, block ast.Node, src []byte) {
	lines := block.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(src))
	}
	b.WriteByte('\n')
}

// inlineText flattens an inline subtree to its visible text.
func inlineText(n ast.Node, src []byte) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		writeInline(&b, c, src)
	}
	return strings.TrimSpace(b.String())
}

func writeInline(b *strings.Builder, n ast.Node, src []byte) {
	switch node := n.(type) {
	case *ast.Text:
		b.Write(node.Segment.Value(src))
		if node.SoftLineBreak() || node.HardLineBreak() {
			b.WriteByte(' ')
		}
	case *ast.String:
		b.Write(node.Value)
	case *ast.AutoLink:
		b.Write(node.URL(src))
	case *ast.RawHTML:
		// dropped
	default:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			writeInline(b, c, src)
		}
	}
}
