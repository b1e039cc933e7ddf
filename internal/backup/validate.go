package backup

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Validation is the outcome of checking a backup file. Valid is true
// only when no line failed and every chunk shares one embedding
// dimension.
type Validation struct {
	Valid           bool
	TotalDocuments  int
	TotalChunks     int
	Dimensions      []int
	Errors          []string
	DuplicateHashes []string
}

// InvalidBackupError aborts an import whose input failed validation. It
// carries every line error and the set of observed dimensions.
type InvalidBackupError struct {
	Errors     []string
	Dimensions []int
}

func (e *InvalidBackupError) Error() string {
	parts := make([]string, 0, 2)
	if len(e.Errors) > 0 {
		parts = append(parts, fmt.Sprintf("%d error(s): %s", len(e.Errors), strings.Join(e.Errors, "; ")))
	}
	if len(e.Dimensions) > 1 {
		parts = append(parts, fmt.Sprintf("inconsistent embedding dimensions %v", e.Dimensions))
	}
	return "invalid backup: " + strings.Join(parts, "; ")
}

// ValidateFile reads and validates the backup at path.
func ValidateFile(path string) (*Validation, error) {
	lines, err := ReadLines(path)
	if err != nil {
		return nil, err
	}
	return ValidateLines(lines), nil
}

// ValidateLines checks each line for required fields, collects the set
// of embedding dimensions, and reports duplicated content hashes.
func ValidateLines(lines [][]byte) *Validation {
	v := &Validation{}
	dims := make(map[int]bool)
	seenHashes := make(map[string]bool)
	dupReported := make(map[string]bool)

	for i, line := range lines {
		lineNo := i + 1
		var doc Document
		if err := json.Unmarshal(line, &doc); err != nil {
			v.Errors = append(v.Errors, fmt.Sprintf("line %d: invalid JSON: %v", lineNo, err))
			continue
		}
		v.TotalDocuments++
		if doc.Title == "" {
			v.Errors = append(v.Errors, fmt.Sprintf("line %d: missing title", lineNo))
		}
		if doc.Content == "" {
			v.Errors = append(v.Errors, fmt.Sprintf("line %d: missing content", lineNo))
		}
		if doc.ContentHash == "" {
			v.Errors = append(v.Errors, fmt.Sprintf("line %d: missing contentHash", lineNo))
		} else if seenHashes[doc.ContentHash] {
			if !dupReported[doc.ContentHash] {
				v.DuplicateHashes = append(v.DuplicateHashes, doc.ContentHash)
				dupReported[doc.ContentHash] = true
			}
		} else {
			seenHashes[doc.ContentHash] = true
		}
		for j, chunk := range doc.Chunks {
			v.TotalChunks++
			if len(chunk.Embedding) == 0 {
				v.Errors = append(v.Errors, fmt.Sprintf("line %d: chunk %d has no embedding", lineNo, j))
				continue
			}
			dims[len(chunk.Embedding)] = true
		}
	}

	for d := range dims {
		v.Dimensions = append(v.Dimensions, d)
	}
	sort.Ints(v.Dimensions)
	v.Valid = len(v.Errors) == 0 && len(dims) <= 1
	return v
}
