package backup

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
)

// maxLineSize bounds a single backup line. Lines carry full documents
// with all their embeddings, so the ceiling is generous.
const maxLineSize = 256 * 1024 * 1024

// AppendLine marshals doc and appends it to path as one newline-
// terminated JSON line. The file is opened and closed per call so every
// append is flushed; concurrent writers are not supported.
func AppendLine(path string, doc *Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal backup line: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open backup file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append backup line: %w", err)
	}
	return f.Sync()
}

// Truncate resets path to an empty file, creating it if needed.
func Truncate(path string) error {
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		return fmt.Errorf("failed to truncate backup file: %w", err)
	}
	return nil
}

// ReadLines returns every non-empty line of the file as raw bytes.
func ReadLines(path string) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open backup file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	var lines [][]byte
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		copied := make([]byte, len(line))
		copy(copied, line)
		lines = append(lines, copied)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read backup file: %w", err)
	}
	return lines, nil
}
