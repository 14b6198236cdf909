package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/syezain/ragserve/internal/core"
)

// OllamaProvider serves both embedding and generation from a local Ollama
// server. Two client instances because the embedding and generation models
// usually differ.
type OllamaProvider struct {
	gen *ollama.LLM
	emb *ollama.LLM
}

func NewOllamaProvider(baseURL, genModel, embedModel string) (*OllamaProvider, error) {
	if genModel == "" {
		genModel = "llama3.2"
	}
	if embedModel == "" {
		embedModel = genModel
	}

	gen, err := ollama.New(ollama.WithServerURL(baseURL), ollama.WithModel(genModel))
	if err != nil {
		return nil, fmt.Errorf("ollama gen client: %w", err)
	}
	emb, err := ollama.New(ollama.WithServerURL(baseURL), ollama.WithModel(embedModel))
	if err != nil {
		return nil, fmt.Errorf("ollama embed client: %w", err)
	}
	return &OllamaProvider{gen: gen, emb: emb}, nil
}

func (o *OllamaProvider) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vecs, err := o.emb.CreateEmbedding(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	return vecs, nil
}

func (o *OllamaProvider) Generate(ctx context.Context, prompt string) (string, error) {
	out, err := llms.GenerateFromSinglePrompt(ctx, o.gen, prompt)
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	return out, nil
}

func (o *OllamaProvider) GenerateStream(ctx context.Context, prompt string, onToken func(token string) error) error {
	_, err := llms.GenerateFromSinglePrompt(ctx, o.gen, prompt,
		llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			return onToken(string(chunk))
		}),
	)
	if err != nil {
		return fmt.Errorf("ollama stream: %w", err)
	}
	return nil
}

var (
	_ core.EmbeddingProvider = (*OllamaProvider)(nil)
	_ core.LLMProvider       = (*OllamaProvider)(nil)
)
