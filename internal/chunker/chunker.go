// Package chunker splits document text into bounded, retrieval-sized
// chunks. The splitter is markdown-aware: it keeps headers and list
// blocks intact, unwraps hard-wrapped prose, and tracks the offset of
// every chunk in the source text.
package chunker

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	// DefaultChunkSize is the maximum chunk length in characters.
	DefaultChunkSize = 2048

	// minChunkLen drops fragments too short to be useful for retrieval.
	minChunkLen = 50

	// maxSolidRun is the longest run of non-whitespace characters a chunk
	// may contain. Longer runs are almost always OCR garbage or binary
	// junk that would poison the embedding.
	maxSolidRun = 200

	// offsetProbeLen is how many leading characters of a chunk are used
	// to locate it in the source text.
	offsetProbeLen = 80
)

var (
	headerRe      = regexp.MustCompile(`^#{1,6}\s`)
	listMarkerRe  = regexp.MustCompile(`^\s*[-*>|]`)
	numberedRe    = regexp.MustCompile(`^\d+\.\s`)
	headerCutRe   = regexp.MustCompile(`\n#{1,6}\s`)
	paragraphRe   = regexp.MustCompile(`\n\n+`)
	sentenceEndRe = regexp.MustCompile(`[.!?]\s+`)
	clauseEndRe   = regexp.MustCompile(`[;,]\s+`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
	solidRunRe    = regexp.MustCompile(`\S{` + strconv.Itoa(maxSolidRun) + `,}`)
)

// Chunk is one bounded span of the source text. StartIndex and EndIndex
// are rune offsets into the text after normalization and unwrapping.
type Chunk struct {
	Text       string
	StartIndex int
	EndIndex   int
	TokenCount int
}

// Options control the splitter.
type Options struct {
	// ChunkSize is the maximum chunk length in characters. Zero means
	// DefaultChunkSize.
	ChunkSize int

	// Overlap, when positive, prefixes every chunk after the first with
	// the trailing Overlap characters of the previous chunk.
	Overlap int

	// Normalize, when set, is applied to the text before any splitting.
	// Typical use is markdown cleanup; see Normalize in this package.
	Normalize func(string) string
}

// Split chunks text into ordered spans no longer than opts.ChunkSize.
// With a positive Overlap the prefix is added after merging, so a chunk
// after the first can exceed ChunkSize by up to Overlap+1 characters.
func Split(text string, opts Options) []Chunk {
	size := opts.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}
	if opts.Normalize != nil {
		text = opts.Normalize(text)
	}
	text = unwrapHardBreaks(text)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	pieces := splitRecursive(text, 0, size)
	merged := mergePieces(pieces, size)
	withOverlap := applyOverlap(merged, opts.Overlap)

	var kept []string
	for _, c := range withOverlap {
		c = strings.TrimSpace(c)
		if runeLen(c) < minChunkLen {
			continue
		}
		if solidRunRe.MatchString(c) {
			continue
		}
		kept = append(kept, c)
	}

	return recoverOffsets(text, kept)
}

// unwrapHardBreaks joins hard-wrapped lines with spaces. A newline
// survives only at a structural break: a blank line on either side, or a
// following line that starts a markdown header or list block.
func unwrapHardBreaks(text string) string {
	lines := strings.Split(text, "\n")
	if len(lines) == 1 {
		return text
	}
	var b strings.Builder
	b.WriteString(lines[0])
	for i := 1; i < len(lines); i++ {
		prev, next := lines[i-1], lines[i]
		if strings.TrimSpace(prev) == "" || strings.TrimSpace(next) == "" ||
			headerRe.MatchString(next) || listMarkerRe.MatchString(next) || numberedRe.MatchString(next) {
			b.WriteByte('\n')
		} else {
			b.WriteByte(' ')
		}
		b.WriteString(next)
	}
	return b.String()
}

// splitLevel is one rung of the recursive split ladder. Each returns the
// input carved at every occurrence of its boundary, or a single-element
// slice when the boundary never occurs.
type splitLevel func(string) []string

var splitLevels = []splitLevel{
	splitBeforeHeaders,
	splitDropping(paragraphRe),
	splitAfterFirstByte(sentenceEndRe),
	splitAfterFirstByte(clauseEndRe),
	func(s string) []string { return strings.Split(s, "\n") },
	splitDropping(whitespaceRe),
}

// splitBeforeHeaders cuts immediately before every "\n# ..." so each
// header starts its own piece.
func splitBeforeHeaders(s string) []string {
	matches := headerCutRe.FindAllStringIndex(s, -1)
	if len(matches) == 0 {
		return []string{s}
	}
	var out []string
	prev := 0
	for _, m := range matches {
		if m[0] > prev {
			out = append(out, s[prev:m[0]])
		}
		prev = m[0]
	}
	out = append(out, s[prev:])
	return out
}

// splitDropping splits on re, discarding the separator.
func splitDropping(re *regexp.Regexp) splitLevel {
	return func(s string) []string {
		return re.Split(s, -1)
	}
}

// splitAfterFirstByte splits on re keeping the first matched byte (the
// sentence or clause terminator) with the left piece and discarding the
// trailing whitespace.
func splitAfterFirstByte(re *regexp.Regexp) splitLevel {
	return func(s string) []string {
		matches := re.FindAllStringIndex(s, -1)
		if len(matches) == 0 {
			return []string{s}
		}
		var out []string
		prev := 0
		for _, m := range matches {
			out = append(out, s[prev:m[0]+1])
			prev = m[1]
		}
		if prev < len(s) {
			out = append(out, s[prev:])
		}
		return out
	}
}

// splitRecursive carves s at the first ladder level that actually
// divides it, then descends into any piece still over size. A piece no
// level can divide is returned as-is; the post filters discard it.
func splitRecursive(s string, level, size int) []string {
	if runeLen(s) <= size || level >= len(splitLevels) {
		return []string{s}
	}
	pieces := splitLevels[level](s)
	if len(pieces) <= 1 {
		return splitRecursive(s, level+1, size)
	}
	var out []string
	for _, p := range pieces {
		if strings.TrimSpace(p) == "" {
			continue
		}
		if runeLen(p) > size {
			out = append(out, splitRecursive(p, level+1, size)...)
		} else {
			out = append(out, p)
		}
	}
	return out
}

// joinSep picks the separator used when gluing two pieces back together:
// a newline when the left side ends one or the right side is a header,
// a single space otherwise.
func joinSep(left, right string) string {
	if strings.HasSuffix(left, "\n") || strings.HasPrefix(right, "#") {
		return "\n"
	}
	return " "
}

// mergePieces greedily recombines adjacent pieces while the result stays
// within size.
func mergePieces(pieces []string, size int) []string {
	var merged []string
	cur := ""
	for _, p := range pieces {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if cur == "" {
			cur = p
			continue
		}
		sep := joinSep(cur, p)
		if runeLen(cur)+runeLen(sep)+runeLen(p) <= size {
			cur += sep + p
		} else {
			merged = append(merged, cur)
			cur = p
		}
	}
	if cur != "" {
		merged = append(merged, cur)
	}
	return merged
}

// applyOverlap prefixes every chunk after the first with the tail of its
// predecessor.
func applyOverlap(chunks []string, overlap int) []string {
	if overlap <= 0 || len(chunks) < 2 {
		return chunks
	}
	out := make([]string, len(chunks))
	out[0] = chunks[0]
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1])
		from := len(prev) - overlap
		if from < 0 {
			from = 0
		}
		tail := string(prev[from:])
		out[i] = tail + joinSep(tail, chunks[i]) + chunks[i]
	}
	return out
}

// recoverOffsets locates each chunk in the source text by searching for
// its leading characters, starting just before where the previous chunk
// ended so repeated text resolves to increasing positions.
func recoverOffsets(text string, chunks []string) []Chunk {
	src := []rune(text)
	out := make([]Chunk, 0, len(chunks))
	prevEnd := 0
	for _, c := range chunks {
		probe := []rune(c)
		if len(probe) > offsetProbeLen {
			probe = probe[:offsetProbeLen]
		}
		from := prevEnd - 10
		if from < 0 {
			from = 0
		}
		start := runeIndex(src, probe, from)
		if start < 0 {
			start = runeIndex(src, probe, 0)
		}
		if start < 0 {
			start = prevEnd
		}
		n := runeLen(c)
		out = append(out, Chunk{
			Text:       c,
			StartIndex: start,
			EndIndex:   start + n,
			TokenCount: n,
		})
		prevEnd = start + n
	}
	return out
}

// runeIndex returns the rune offset of needle in haystack at or after
// from, or -1.
func runeIndex(haystack, needle []rune, from int) int {
	if len(needle) == 0 {
		return from
	}
	for i := from; i+len(needle) <= len(haystack); i++ {
		if haystack[i] != needle[0] {
			continue
		}
		match := true
		for j := 1; j < len(needle); j++ {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func runeLen(s string) int {
	return len([]rune(s))
}
