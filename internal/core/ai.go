package core

import "context"

type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

type LLMProvider interface {
	Generate(ctx context.Context, prompt string) (string, error)

	// GenerateStream produces the answer token by token, calling onToken for
	// each one in production order. A non-nil error from onToken aborts the
	// generation and is returned as-is.
	GenerateStream(ctx context.Context, prompt string, onToken func(token string) error) error
}
