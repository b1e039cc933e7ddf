package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunRequiresEmbedFunc(t *testing.T) {
	p := NewPipeline(nil, nil)
	_, err := p.Run(context.Background(), nil, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embed function is required")
}
