// Package backup reads and writes the line-delimited JSON backup format:
// one document per line, UTF-8, each line carrying the document, its
// chunks with embeddings and offsets, and its outgoing relations.
package backup

import (
	"encoding/json"
	"fmt"
)

// Chunk is one chunk on a backup line.
type Chunk struct {
	Text       string    `json:"text"`
	Embedding  []float32 `json:"embedding"`
	StartIndex int       `json:"startIndex"`
	EndIndex   int       `json:"endIndex"`
	TokenCount int       `json:"tokenCount"`
}

// Document is one backup line.
type Document struct {
	Title       string           `json:"title"`
	Content     string           `json:"content"`
	ContentHash string           `json:"contentHash"`
	Metadata    map[string]any   `json:"metadata"`
	CommunityID *int32           `json:"communityId,omitempty"`
	Chunks      []Chunk          `json:"chunks"`
	Relations   []RelationTarget `json:"relations,omitempty"`
}

// RelationTarget names one outgoing relation. On the wire it is either a
// bare title string or an object {title, type?, weight?}; both forms
// decode into this struct.
type RelationTarget struct {
	Title  string
	Type   *string
	Weight *float64
}

type relationTargetJSON struct {
	Title  string   `json:"title"`
	Type   *string  `json:"type,omitempty"`
	Weight *float64 `json:"weight,omitempty"`
}

// MarshalJSON writes the object form, omitting weight when it is the
// default 1.0.
func (r RelationTarget) MarshalJSON() ([]byte, error) {
	out := relationTargetJSON{Title: r.Title, Type: r.Type, Weight: r.Weight}
	if out.Weight != nil && *out.Weight == 1.0 {
		out.Weight = nil
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts both the bare-string and the object form.
func (r *RelationTarget) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var title string
		if err := json.Unmarshal(data, &title); err != nil {
			return fmt.Errorf("failed to decode relation title: %w", err)
		}
		*r = RelationTarget{Title: title}
		return nil
	}
	var obj relationTargetJSON
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("failed to decode relation target: %w", err)
	}
	*r = RelationTarget{Title: obj.Title, Type: obj.Type, Weight: obj.Weight}
	return nil
}

// WeightOrDefault returns the explicit weight or 1.0.
func (r RelationTarget) WeightOrDefault() float64 {
	if r.Weight != nil {
		return *r.Weight
	}
	return 1.0
}
