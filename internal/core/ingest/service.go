package ingest

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/syezain/ragserve/internal/core"
	"github.com/syezain/ragserve/internal/core/loader"
	"github.com/syezain/ragserve/internal/core/vectorstore"
)

// sniffLen is how many leading bytes the format sniffer gets to look at.
const sniffLen = 3072

// Invalidator is the engine cache's side of the post-ingest handshake.
type Invalidator interface {
	Invalidate()
}

// Config tunes the upload pipeline.
//
// BatchBytes:   byte threshold per loader batch.
// ChunkWindow:  runes per embedding chunk.
// ChunkOverlap: runes carried over between consecutive chunks; must be
// smaller than ChunkWindow.
type Config struct {
	UploadDir    string
	BatchBytes   int
	ChunkWindow  int
	ChunkOverlap int
}

// Service drives an upload through validate, save, and the per-batch
// chunk/embed/upsert loop, reporting progress as a consumable event stream.
type Service struct {
	store    vectorstore.Store
	embedder core.EmbeddingProvider
	cache    Invalidator
	cfg      Config
}

func NewService(store vectorstore.Store, embedder core.EmbeddingProvider, cache Invalidator, cfg Config) (*Service, error) {
	if cfg.ChunkWindow <= 0 {
		cfg.ChunkWindow = 1024
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = 0
	}
	if cfg.ChunkOverlap >= cfg.ChunkWindow {
		return nil, fmt.Errorf("chunk overlap %d must be smaller than window %d", cfg.ChunkOverlap, cfg.ChunkWindow)
	}
	if cfg.BatchBytes <= 0 {
		cfg.BatchBytes = 8 << 20
	}
	return &Service{store: store, embedder: embedder, cache: cache, cfg: cfg}, nil
}

// Run ingests one upload and returns its event stream. Events are produced
// as the caller consumes them; abandoning the channel (cancelling ctx) stops
// the pipeline. The channel carries exactly one terminal event and is closed
// after it.
func (s *Service) Run(ctx context.Context, filename, declaredType string, upload io.Reader) <-chan Event {
	out := make(chan Event)

	go func() {
		defer close(out)

		emit := func(e Event) bool {
			select {
			case out <- e:
				return true
			case <-ctx.Done():
				return false
			}
		}

		lastProgress := 0
		fail := func(class ErrorClass, err error) {
			emit(Event{Status: StatusError, Progress: lastProgress, Message: err.Error(), Class: class})
		}

		// Sniff the real content type from the leading bytes before anything
		// touches disk.
		header := make([]byte, sniffLen)
		n, err := io.ReadFull(upload, header)
		if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
			fail(ErrorIngestion, fmt.Errorf("read upload: %w", err))
			return
		}
		header = header[:n]

		kind, detected := loader.Sniff(header, declaredType)
		if kind == loader.KindUnsupported {
			fail(ErrorValidation, fmt.Errorf("unsupported file type: %s", detected))
			return
		}
		lastProgress = 5
		if !emit(Event{Status: StatusValidating, Progress: 5, Message: fmt.Sprintf("%s accepted as %s", filename, kind)}) {
			return
		}

		path, err := s.save(filename, header, upload)
		if err != nil {
			fail(ErrorIngestion, err)
			return
		}
		lastProgress = 10
		if !emit(Event{Status: StatusSaving, Progress: 10, Message: "upload saved"}) {
			return
		}

		// One batch at a time through chunk, embed, upsert. The loader's
		// producer and this consumer share an errgroup so a failure on either
		// side unwinds the other.
		g, gctx := errgroup.WithContext(ctx)
		batches := loader.Open(path, kind, s.cfg.BatchBytes).Batches(gctx, g)

		g.Go(func() error {
			for b := range batches {
				if err := s.processBatch(gctx, b); err != nil {
					return err
				}
				lastProgress = scaleProgress(b.Progress)
				ev := Event{
					Status:   StatusProcessing,
					Progress: lastProgress,
					Message:  fmt.Sprintf("indexed batch of %s", filename),
				}
				select {
				case out <- ev:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})

		err = g.Wait()

		// Mandatory handshake: the vector store and the engine cache are
		// decoupled, so queries only see the new vectors once the cached
		// engines are dropped. Fires on the error path too, since earlier
		// batches may already be upserted.
		s.cache.Invalidate()

		if err != nil {
			_ = os.Remove(path)
			fail(ErrorIngestion, err)
			return
		}
		emit(Event{Status: StatusComplete, Progress: 100, Message: fmt.Sprintf("%s ingested", filename)})
	}()

	return out
}

// save writes the upload durably under a collision-free name and returns the
// path. The partial file is removed on any failure.
func (s *Service) save(filename string, header []byte, rest io.Reader) (string, error) {
	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	dst := filepath.Join(s.cfg.UploadDir, uuid.NewString()+"_"+filepath.Base(filename))

	f, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", dst, err)
	}
	cleanup := func(err error) (string, error) {
		_ = f.Close()
		_ = os.Remove(dst)
		return "", err
	}
	if _, err := f.Write(header); err != nil {
		return cleanup(fmt.Errorf("write upload: %w", err))
	}
	if _, err := io.Copy(f, rest); err != nil {
		return cleanup(fmt.Errorf("write upload: %w", err))
	}
	if err := f.Sync(); err != nil {
		return cleanup(fmt.Errorf("sync upload: %w", err))
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(dst)
		return "", fmt.Errorf("close upload: %w", err)
	}
	return dst, nil
}

// processBatch chunks every document in the batch, embeds the chunks in one
// call, and upserts the resulting records.
func (s *Service) processBatch(ctx context.Context, b loader.Batch) error {
	var (
		texts []string
		metas []map[string]string
	)
	for _, doc := range b.Docs {
		for _, chunk := range chunkText(doc.Text, s.cfg.ChunkWindow, s.cfg.ChunkOverlap) {
			texts = append(texts, chunk)
			metas = append(metas, doc.Metadata)
		}
	}
	if len(texts) == 0 {
		return nil
	}

	vecs, err := s.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}
	if len(vecs) != len(texts) {
		return fmt.Errorf("embed size mismatch: got %d want %d", len(vecs), len(texts))
	}

	records := make([]vectorstore.Record, len(texts))
	for i := range texts {
		records[i] = vectorstore.Record{
			ID:       uuid.NewString(),
			Vector:   vecs[i],
			Text:     texts[i],
			Metadata: metas[i],
		}
	}
	if err := s.store.Upsert(ctx, records); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}

// scaleProgress maps the loader's fraction into the 15..95 band; 100 stays
// reserved for the terminal complete event.
func scaleProgress(fraction float64) int {
	p := 15 + int(math.Floor(fraction/100*80))
	if p > 95 {
		p = 95
	}
	return p
}
