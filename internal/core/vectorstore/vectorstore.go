package vectorstore

import "context"

// Record is one embedded text span to be written to the store.
type Record struct {
	ID       string
	Vector   []float32
	Text     string
	Metadata map[string]string
}

// Result is one retrieved span, ordered by descending relevance.
type Result struct {
	Score    *float64
	Text     string
	Metadata map[string]string
}

// Store abstracts the vector database. Upserts are additive; two concurrent
// ingestions may interleave writes safely.
type Store interface {
	Upsert(ctx context.Context, records []Record) error
	Query(ctx context.Context, vector []float32, topK int) ([]Result, error)
	HasCollection(ctx context.Context) (bool, error)
}
