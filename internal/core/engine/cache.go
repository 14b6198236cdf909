package engine

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/syezain/ragserve/internal/core"
	"github.com/syezain/ragserve/internal/core/vectorstore"
)

// Mode selects how a query engine delivers its answer. JSON and streaming
// requests get separate cached engines so concurrent use never shares
// in-flight state.
type Mode string

const (
	ModeJSON   Mode = "json"
	ModeStream Mode = "stream"
)

type engineKey struct {
	mode Mode
	topK int
}

// Cache lazily materializes the index handle and per-(mode, topK) query
// engines, and drops them when new content lands. It is the only shared
// mutable state in the process; handlers receive it by reference.
//
// Builds run under singleflight so a reader either sees a fully built entry
// or participates in the one in-flight build; an invalidation racing right
// after a successful lookup is allowed to go unnoticed by that reader.
type Cache struct {
	store    vectorstore.Store
	embedder core.EmbeddingProvider
	llm      core.LLMProvider
	template string

	mu      sync.Mutex
	index   *Index
	engines map[engineKey]*QueryEngine
	group   singleflight.Group
}

func NewCache(store vectorstore.Store, embedder core.EmbeddingProvider, llm core.LLMProvider, template string) *Cache {
	if template == "" {
		template = defaultQATemplate
	}
	return &Cache{
		store:    store,
		embedder: embedder,
		llm:      llm,
		template: template,
		engines:  make(map[engineKey]*QueryEngine),
	}
}

// Index returns the cached index handle, building it on first use or after
// an invalidation. Returns ErrKnowledgeBaseEmpty when the store has no
// collection yet.
func (c *Cache) Index(ctx context.Context) (*Index, error) {
	c.mu.Lock()
	if c.index != nil {
		idx := c.index
		c.mu.Unlock()
		return idx, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do("index", func() (any, error) {
		ok, err := c.store.HasCollection(ctx)
		if err != nil {
			return nil, fmt.Errorf("check collection: %w", err)
		}
		if !ok {
			return nil, ErrKnowledgeBaseEmpty
		}
		idx := &Index{store: c.store}
		c.mu.Lock()
		c.index = idx
		c.mu.Unlock()
		return idx, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Index), nil
}

// Engine returns the cached query engine for (mode, topK), building one
// bound to the current index if absent.
func (c *Cache) Engine(ctx context.Context, mode Mode, topK int) (*QueryEngine, error) {
	key := engineKey{mode: mode, topK: topK}

	c.mu.Lock()
	if qe, ok := c.engines[key]; ok {
		c.mu.Unlock()
		return qe, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(fmt.Sprintf("engine:%s:%d", mode, topK), func() (any, error) {
		idx, err := c.Index(ctx)
		if err != nil {
			return nil, err
		}
		qe := &QueryEngine{
			index:    idx,
			embedder: c.embedder,
			llm:      c.llm,
			mode:     mode,
			topK:     topK,
			template: c.template,
		}
		c.mu.Lock()
		c.engines[key] = qe
		c.mu.Unlock()
		return qe, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*QueryEngine), nil
}

// Invalidate clears the index handle and every cached engine for all modes,
// forcing a rebuild bound to the store's latest contents on next access.
// Called by the ingestion service after each upload's terminal event.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index = nil
	c.engines = make(map[engineKey]*QueryEngine)
}
