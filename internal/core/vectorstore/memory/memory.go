package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/syezain/ragserve/internal/core/vectorstore"
)

// Store keeps vectors in process memory and ranks by cosine similarity.
// Useful for tests and single-node development without a vector database.
type Store struct {
	mu      sync.RWMutex
	records []vectorstore.Record
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) Upsert(ctx context.Context, records []vectorstore.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		replaced := false
		for i := range s.records {
			if s.records[i].ID == rec.ID {
				s.records[i] = rec
				replaced = true
				break
			}
		}
		if !replaced {
			s.records = append(s.records, rec)
		}
	}
	return nil
}

func (s *Store) Query(ctx context.Context, vector []float32, topK int) ([]vectorstore.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		score float64
		rec   vectorstore.Record
	}
	all := make([]scored, 0, len(s.records))
	for _, rec := range s.records {
		all = append(all, scored{score: cosine(vector, rec.Vector), rec: rec})
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].score > all[j].score })

	if topK > len(all) {
		topK = len(all)
	}
	out := make([]vectorstore.Result, 0, topK)
	for _, sc := range all[:topK] {
		score := sc.score
		out = append(out, vectorstore.Result{
			Score:    &score,
			Text:     sc.rec.Text,
			Metadata: sc.rec.Metadata,
		})
	}
	return out, nil
}

func (s *Store) HasCollection(ctx context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records) > 0, nil
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

var _ vectorstore.Store = (*Store)(nil)
