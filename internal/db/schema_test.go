package db

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchemaDDLUsesDimensionAndTextConfig(t *testing.T) {
	stmts := schemaDDL(768, "english")
	joined := strings.Join(stmts, ";\n")

	assert.Contains(t, joined, "vector(768)")
	assert.Contains(t, joined, "text_config = 'english'")
	assert.Contains(t, joined, "CREATE EXTENSION IF NOT EXISTS vectorscale")
	assert.Contains(t, joined, "CREATE EXTENSION IF NOT EXISTS pg_textsearch")
	assert.Contains(t, joined, "USING diskann (embedding vector_cosine_ops)")
	assert.Contains(t, joined, "UNIQUE (source_id, target_id)")
	assert.Contains(t, joined, "ON DELETE CASCADE")
}

func TestSchemaDDLTableOrder(t *testing.T) {
	stmts := schemaDDL(8, "simple")
	var tables []string
	for _, stmt := range stmts {
		if strings.HasPrefix(stmt, "CREATE TABLE") {
			fields := strings.Fields(stmt)
			tables = append(tables, fields[5])
		}
	}
	// Referencing tables must come after their targets.
	assert.Equal(t, []string{"documents", "chunks", "chunk_sources", "document_relations"}, tables)
}

func TestTextConfigValidation(t *testing.T) {
	assert.True(t, textConfigRe.MatchString("simple"))
	assert.True(t, textConfigRe.MatchString("english"))
	assert.False(t, textConfigRe.MatchString("english'; DROP TABLE documents; --"))
	assert.False(t, textConfigRe.MatchString(""))
}
