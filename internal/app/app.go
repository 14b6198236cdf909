package app

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/syezain/ragserve/internal/config"
	"github.com/syezain/ragserve/internal/core"
	"github.com/syezain/ragserve/internal/core/engine"
	"github.com/syezain/ragserve/internal/core/ingest"
	"github.com/syezain/ragserve/internal/core/llm"
	"github.com/syezain/ragserve/internal/core/vectorstore"
	"github.com/syezain/ragserve/internal/core/vectorstore/memory"
	"github.com/syezain/ragserve/internal/core/vectorstore/pgvector"
	"github.com/syezain/ragserve/internal/core/vectorstore/qdrant"
)

type App struct {
	Store  vectorstore.Store
	Cache  *engine.Cache
	Server *Server

	closers []io.Closer
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{}

	store, err := a.newStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Store = store
	log.Printf("Vector store initialized (%s).", cfg.VectorBackend)

	embedder, llmProvider, err := a.newAIProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	log.Printf("AI provider initialized (%s).", cfg.AIProvider)

	a.Cache = engine.NewCache(store, embedder, llmProvider, cfg.QATemplate)

	ingestSvc, err := ingest.NewService(store, embedder, a.Cache, ingest.Config{
		UploadDir:    cfg.UploadDir,
		BatchBytes:   cfg.BatchBytes,
		ChunkWindow:  cfg.ChunkWindow,
		ChunkOverlap: cfg.ChunkOverlap,
	})
	if err != nil {
		return nil, fmt.Errorf("ingest service: %w", err)
	}

	a.Server = NewServer(cfg, ingestSvc, a.Cache)
	return a, nil
}

func (a *App) newStore(ctx context.Context, cfg *config.Config) (vectorstore.Store, error) {
	switch cfg.VectorBackend {
	case "qdrant":
		return qdrant.NewStore(qdrant.Config{
			URL:        cfg.QdrantURL,
			APIKey:     cfg.QdrantAPIKey,
			Collection: cfg.QdrantCollection,
		}), nil
	case "pgvector":
		store, err := pgvector.NewStore(ctx, cfg.DatabaseURL, cfg.EmbedDim)
		if err != nil {
			return nil, fmt.Errorf("pgvector store: %w", err)
		}
		a.closers = append(a.closers, store)
		return store, nil
	case "memory":
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.VectorBackend)
	}
}

func (a *App) newAIProvider(ctx context.Context, cfg *config.Config) (core.EmbeddingProvider, core.LLMProvider, error) {
	switch cfg.AIProvider {
	case "gemini":
		embedder, err := llm.NewGeminiEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbedModel)
		if err != nil {
			return nil, nil, fmt.Errorf("gemini embedder: %w", err)
		}
		a.closers = append(a.closers, embedder)

		provider, err := llm.NewGeminiLLM(ctx, cfg.GeminiAPIKey, cfg.GenModel)
		if err != nil {
			return nil, nil, fmt.Errorf("gemini llm: %w", err)
		}
		a.closers = append(a.closers, provider)
		return embedder, provider, nil
	case "ollama":
		provider, err := llm.NewOllamaProvider(cfg.OllamaBaseURL, cfg.OllamaModel, cfg.EmbedModel)
		if err != nil {
			return nil, nil, fmt.Errorf("ollama provider: %w", err)
		}
		return provider, provider, nil
	default:
		return nil, nil, fmt.Errorf("unknown AI provider %q", cfg.AIProvider)
	}
}

func (a *App) Close() {
	for _, c := range a.closers {
		_ = c.Close()
	}
}
