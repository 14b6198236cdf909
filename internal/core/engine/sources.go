package engine

import (
	"strings"

	"github.com/syezain/ragserve/internal/core/vectorstore"
)

const (
	maxSources    = 5
	maxSourceText = 1200
)

// SourceItem is one piece of retrieved evidence returned to the client.
type SourceItem struct {
	Score    *float64          `json:"score"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
}

// extractSources normalizes retrieval results into at most maxSources items,
// preserving the store's relevance ordering. Items with no underlying text
// are dropped, not padded; text is truncated to maxSourceText characters.
func extractSources(results []vectorstore.Result) []SourceItem {
	sources := make([]SourceItem, 0, maxSources)
	for _, r := range results {
		if len(sources) == maxSources {
			break
		}
		if strings.TrimSpace(r.Text) == "" {
			continue
		}
		text := r.Text
		if runes := []rune(text); len(runes) > maxSourceText {
			text = string(runes[:maxSourceText])
		}
		meta := r.Metadata
		if meta == nil {
			meta = map[string]string{}
		}
		sources = append(sources, SourceItem{
			Score:    r.Score,
			Text:     text,
			Metadata: meta,
		})
	}
	return sources
}
