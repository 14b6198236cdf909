package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/syezain/ragserve/internal/core"
	"github.com/syezain/ragserve/internal/core/vectorstore"
)

// Index is a reusable handle over the vector store's queryable view. It is
// stateless with respect to writes; ingestion upserts go straight to the
// store, so a held Index never goes stale, only cached engines do.
type Index struct {
	store vectorstore.Store
}

func (ix *Index) Search(ctx context.Context, vector []float32, topK int) ([]vectorstore.Result, error) {
	return ix.store.Query(ctx, vector, topK)
}

// Meta echoes the retrieval parameters back to the client.
type Meta struct {
	TopK      int  `json:"top_k"`
	Streaming bool `json:"streaming"`
}

// Response is the answer plus its supporting evidence.
type Response struct {
	Answer  string       `json:"answer"`
	Sources []SourceItem `json:"sources"`
	Meta    Meta         `json:"meta"`
}

// QueryEngine pairs an index with retrieval parameters and a delivery mode.
// Engines are cached per (mode, topK) and rebuilt after invalidation.
type QueryEngine struct {
	index    *Index
	embedder core.EmbeddingProvider
	llm      core.LLMProvider
	mode     Mode
	topK     int
	template string
}

// retrieve embeds the question, fetches the topK nearest spans, and fills
// the answer template verbatim.
func (qe *QueryEngine) retrieve(ctx context.Context, question string) ([]vectorstore.Result, string, error) {
	vecs, err := qe.embedder.EmbedTexts(ctx, []string{question})
	if err != nil {
		return nil, "", fmt.Errorf("embed question: %w", err)
	}
	if len(vecs) == 0 {
		return nil, "", fmt.Errorf("embed question: empty result")
	}

	results, err := qe.index.Search(ctx, vecs[0], qe.topK)
	if err != nil {
		return nil, "", fmt.Errorf("retrieve: %w", err)
	}

	spans := make([]string, 0, len(results))
	for _, r := range results {
		spans = append(spans, r.Text)
	}
	prompt := strings.NewReplacer(
		"{context_str}", strings.Join(spans, "\n\n"),
		"{query_str}", question,
	).Replace(qe.template)

	return results, prompt, nil
}

// Query runs the synchronous path: retrieve, generate once, extract sources.
func (qe *QueryEngine) Query(ctx context.Context, question string) (*Response, error) {
	results, prompt, err := qe.retrieve(ctx, question)
	if err != nil {
		return nil, err
	}
	answer, err := qe.llm.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	return &Response{
		Answer:  answer,
		Sources: extractSources(results),
		Meta:    Meta{TopK: qe.topK, Streaming: false},
	}, nil
}

// QueryStream runs the streaming path, calling onToken for every produced
// token in order. The returned Response's Answer is the in-order
// concatenation of all tokens.
func (qe *QueryEngine) QueryStream(ctx context.Context, question string, onToken func(token string) error) (*Response, error) {
	results, prompt, err := qe.retrieve(ctx, question)
	if err != nil {
		return nil, err
	}

	var full strings.Builder
	err = qe.llm.GenerateStream(ctx, prompt, func(token string) error {
		full.WriteString(token)
		return onToken(token)
	})
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	return &Response{
		Answer:  full.String(),
		Sources: extractSources(results),
		Meta:    Meta{TopK: qe.topK, Streaming: true},
	}, nil
}
