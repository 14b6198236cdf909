package engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syezain/ragserve/internal/core/vectorstore"
)

func score(v float64) *float64 { return &v }

func TestExtractSourcesCapsAtFive(t *testing.T) {
	var results []vectorstore.Result
	for i := 0; i < 8; i++ {
		results = append(results, vectorstore.Result{
			Score: score(1.0 - float64(i)*0.1),
			Text:  strings.Repeat("a", 10),
		})
	}

	sources := extractSources(results)
	require.Len(t, sources, 5)
	// Relevance order preserved.
	for i := 1; i < len(sources); i++ {
		assert.Greater(t, *sources[i-1].Score, *sources[i].Score)
	}
}

func TestExtractSourcesTruncatesText(t *testing.T) {
	long := strings.Repeat("é", 3000)
	sources := extractSources([]vectorstore.Result{{Score: score(0.9), Text: long}})
	require.Len(t, sources, 1)
	assert.Equal(t, 1200, len([]rune(sources[0].Text)))
}

func TestExtractSourcesDropsEmptyText(t *testing.T) {
	sources := extractSources([]vectorstore.Result{
		{Score: score(0.9), Text: "useful"},
		{Score: score(0.8), Text: "   "},
		{Score: score(0.7), Text: ""},
		{Score: score(0.6), Text: "also useful"},
	})
	require.Len(t, sources, 2)
	assert.Equal(t, "useful", sources[0].Text)
	assert.Equal(t, "also useful", sources[1].Text)
}

func TestExtractSourcesNilMetadataBecomesEmptyMap(t *testing.T) {
	sources := extractSources([]vectorstore.Result{{Score: score(0.5), Text: "x"}})
	require.Len(t, sources, 1)
	assert.NotNil(t, sources[0].Metadata)
}

func TestExtractSourcesEmptyInput(t *testing.T) {
	assert.Empty(t, extractSources(nil))
}
