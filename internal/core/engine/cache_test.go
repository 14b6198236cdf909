package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syezain/ragserve/internal/core/vectorstore"
	"github.com/syezain/ragserve/internal/core/vectorstore/memory"
)

// stubEmbedder implements core.EmbeddingProvider for testing.
type stubEmbedder struct {
	shouldError bool
}

func (s *stubEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if s.shouldError {
		return nil, errors.New("embedder unavailable")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

// stubLLM implements core.LLMProvider for testing. It streams the configured
// tokens and can be told to fail after a number of them.
type stubLLM struct {
	answer    string
	tokens    []string
	failAfter int // -1 = never fail
}

func (s *stubLLM) Generate(ctx context.Context, prompt string) (string, error) {
	if s.failAfter == 0 {
		return "", errors.New("generation failed")
	}
	return s.answer, nil
}

func (s *stubLLM) GenerateStream(ctx context.Context, prompt string, onToken func(string) error) error {
	for i, tok := range s.tokens {
		if s.failAfter >= 0 && i == s.failAfter {
			return errors.New("generation failed")
		}
		if err := onToken(tok); err != nil {
			return err
		}
	}
	if s.failAfter >= 0 && s.failAfter >= len(s.tokens) {
		return errors.New("generation failed")
	}
	return nil
}

func seededStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	err := store.Upsert(context.Background(), []vectorstore.Record{
		{ID: "1", Vector: []float32{1, 0, 0}, Text: "the office opens at nine", Metadata: map[string]string{"file_name": "handbook.txt"}},
		{ID: "2", Vector: []float32{0, 1, 0}, Text: "lunch is at noon", Metadata: map[string]string{"file_name": "handbook.txt"}},
	})
	require.NoError(t, err)
	return store
}

func TestCacheEmptyStoreSurfacesKnowledgeBaseEmpty(t *testing.T) {
	cache := NewCache(memory.NewStore(), &stubEmbedder{}, &stubLLM{failAfter: -1}, "")

	_, err := cache.Engine(context.Background(), ModeJSON, 3)
	assert.ErrorIs(t, err, ErrKnowledgeBaseEmpty)

	_, err = cache.Index(context.Background())
	assert.ErrorIs(t, err, ErrKnowledgeBaseEmpty)
}

func TestCacheEmptyErrorIsNotSticky(t *testing.T) {
	store := memory.NewStore()
	cache := NewCache(store, &stubEmbedder{}, &stubLLM{failAfter: -1}, "")

	_, err := cache.Engine(context.Background(), ModeJSON, 3)
	require.ErrorIs(t, err, ErrKnowledgeBaseEmpty)

	// Ingest lands and the handshake fires.
	require.NoError(t, store.Upsert(context.Background(), []vectorstore.Record{
		{ID: "1", Vector: []float32{1, 0, 0}, Text: "now there is content"},
	}))
	cache.Invalidate()

	qe, err := cache.Engine(context.Background(), ModeJSON, 3)
	require.NoError(t, err)
	assert.NotNil(t, qe)
}

func TestCacheEnginePerModeAndTopK(t *testing.T) {
	cache := NewCache(seededStore(t), &stubEmbedder{}, &stubLLM{failAfter: -1}, "")
	ctx := context.Background()

	jsonEng, err := cache.Engine(ctx, ModeJSON, 3)
	require.NoError(t, err)
	streamEng, err := cache.Engine(ctx, ModeStream, 3)
	require.NoError(t, err)
	otherK, err := cache.Engine(ctx, ModeJSON, 5)
	require.NoError(t, err)

	assert.NotSame(t, jsonEng, streamEng, "modes must not share engines")
	assert.NotSame(t, jsonEng, otherK, "top-k values must not share engines")

	again, err := cache.Engine(ctx, ModeJSON, 3)
	require.NoError(t, err)
	assert.Same(t, jsonEng, again, "repeated fetch returns the cached engine")
}

func TestCacheInvalidateForcesRebuild(t *testing.T) {
	cache := NewCache(seededStore(t), &stubEmbedder{}, &stubLLM{failAfter: -1}, "")
	ctx := context.Background()

	before, err := cache.Engine(ctx, ModeStream, 3)
	require.NoError(t, err)

	cache.Invalidate()

	after, err := cache.Engine(ctx, ModeStream, 3)
	require.NoError(t, err)
	assert.NotSame(t, before, after, "invalidation must drop every cached engine")
}

func TestQueryAnswersWithSources(t *testing.T) {
	llm := &stubLLM{answer: "The office opens at nine.", failAfter: -1}
	cache := NewCache(seededStore(t), &stubEmbedder{}, llm, "")

	qe, err := cache.Engine(context.Background(), ModeJSON, 2)
	require.NoError(t, err)

	resp, err := qe.Query(context.Background(), "when does the office open?")
	require.NoError(t, err)
	assert.Equal(t, "The office opens at nine.", resp.Answer)
	require.NotEmpty(t, resp.Sources)
	assert.Equal(t, "the office opens at nine", resp.Sources[0].Text)
	assert.Equal(t, Meta{TopK: 2, Streaming: false}, resp.Meta)
}

func TestQueryEmbedderFailure(t *testing.T) {
	cache := NewCache(seededStore(t), &stubEmbedder{shouldError: true}, &stubLLM{failAfter: -1}, "")

	qe, err := cache.Engine(context.Background(), ModeJSON, 3)
	require.NoError(t, err)

	_, err = qe.Query(context.Background(), "anything")
	assert.Error(t, err)
}
