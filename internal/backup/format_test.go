package backup

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelationTargetDecodesBareString(t *testing.T) {
	var doc Document
	line := `{"title":"A","content":"x","contentHash":"h","metadata":{},"chunks":[],"relations":["B","C"]}`
	require.NoError(t, json.Unmarshal([]byte(line), &doc))
	require.Len(t, doc.Relations, 2)
	assert.Equal(t, "B", doc.Relations[0].Title)
	assert.Nil(t, doc.Relations[0].Type)
	assert.Nil(t, doc.Relations[0].Weight)
	assert.Equal(t, 1.0, doc.Relations[0].WeightOrDefault())
}

func TestRelationTargetDecodesObject(t *testing.T) {
	var target RelationTarget
	require.NoError(t, json.Unmarshal([]byte(`{"title":"B","type":"cites","weight":0.5}`), &target))
	assert.Equal(t, "B", target.Title)
	require.NotNil(t, target.Type)
	assert.Equal(t, "cites", *target.Type)
	assert.Equal(t, 0.5, target.WeightOrDefault())
}

func TestRelationTargetOmitsDefaultWeight(t *testing.T) {
	one := 1.0
	data, err := json.Marshal(RelationTarget{Title: "B", Weight: &one})
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"B"}`, string(data))

	half := 0.5
	data, err = json.Marshal(RelationTarget{Title: "B", Weight: &half})
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"B","weight":0.5}`, string(data))
}

func TestDocumentRoundTrip(t *testing.T) {
	cid := int32(3)
	typed := "cites"
	in := Document{
		Title:       "Doc A",
		Content:     "body",
		ContentHash: "abc123",
		Metadata:    map[string]any{"k": "v"},
		CommunityID: &cid,
		Chunks: []Chunk{
			{Text: "chunk one", Embedding: []float32{0.1, 0.2}, StartIndex: 0, EndIndex: 9, TokenCount: 9},
		},
		Relations: []RelationTarget{{Title: "Doc B", Type: &typed}},
	}
	data, err := json.Marshal(&in)
	require.NoError(t, err)

	var out Document
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in.Title, out.Title)
	assert.Equal(t, in.ContentHash, out.ContentHash)
	require.NotNil(t, out.CommunityID)
	assert.Equal(t, int32(3), *out.CommunityID)
	require.Len(t, out.Chunks, 1)
	assert.Equal(t, in.Chunks[0], out.Chunks[0])
	require.Len(t, out.Relations, 1)
	assert.Equal(t, "Doc B", out.Relations[0].Title)
	assert.Equal(t, "cites", *out.Relations[0].Type)
}
