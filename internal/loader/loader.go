// Package loader reads documents from the filesystem for ingestion.
// PDF and EPUB files go through go-fitz; markdown and plain text are
// read directly.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gen2brain/go-fitz"

	"github.com/ragstore/ragstore/internal/ingest"
)

// supported maps file extensions to their loader type.
var supported = map[string]string{
	".pdf":  "pdf",
	".epub": "epub",
	".md":   "markdown",
	".txt":  "text",
}

// LoadFile reads one file into an ingestable document. The title is the
// file name without extension; metadata records the source path and
// type.
func LoadFile(path string) (*ingest.InputDocument, error) {
	ext := strings.ToLower(filepath.Ext(path))
	fileType, ok := supported[ext]
	if !ok {
		return nil, fmt.Errorf("unsupported file type: %s", ext)
	}

	var content string
	switch fileType {
	case "pdf", "epub":
		text, err := extractFitz(path)
		if err != nil {
			return nil, err
		}
		content = text
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		content = string(data)
	}

	title := strings.TrimSuffix(filepath.Base(path), ext)
	return &ingest.InputDocument{
		Title:   title,
		Content: content,
		Metadata: map[string]any{
			"source_path": path,
			"source_type": fileType,
		},
	}, nil
}

// LoadDir loads every supported file under dir, sorted by path so runs
// are deterministic.
func LoadDir(dir string) ([]ingest.InputDocument, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := supported[strings.ToLower(filepath.Ext(path))]; ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", dir, err)
	}
	sort.Strings(paths)

	docs := make([]ingest.InputDocument, 0, len(paths))
	for _, path := range paths {
		doc, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, nil
}

// extractFitz pulls the text of every page, joined by blank lines.
func extractFitz(path string) (string, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer doc.Close()

	var pages []string
	for i := 0; i < doc.NumPage(); i++ {
		text, err := doc.Text(i)
		if err == nil && strings.TrimSpace(text) != "" {
			pages = append(pages, text)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}
