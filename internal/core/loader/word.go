package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"code.sajari.com/docconv"
	"golang.org/x/sync/errgroup"
)

// wordSource extracts a word-processor document with docconv, then iterates
// its paragraphs in document order, skipping blank ones. Batches are yielded
// on threshold crossing; progress is paragraphs consumed over total
// paragraphs.
type wordSource struct {
	path       string
	batchBytes int
}

func (s *wordSource) Batches(ctx context.Context, g *errgroup.Group) <-chan Batch {
	out := make(chan Batch)

	g.Go(func() error {
		defer close(out)

		name := filepath.Base(s.path)
		f, err := os.Open(s.path)
		if err != nil {
			return fmt.Errorf("open %s: %w", name, err)
		}
		defer f.Close()

		text, _, err := docconv.ConvertDocx(f)
		if err != nil {
			return fmt.Errorf("extract %s: %w", name, err)
		}

		paragraphs := strings.Split(text, "\n")
		total := len(paragraphs)

		var sb strings.Builder
		consumed := 0

		flush := func() error {
			if sb.Len() == 0 {
				return nil
			}
			b := Batch{
				Docs: []Document{{
					Text:     sb.String(),
					Metadata: map[string]string{"file_name": name},
				}},
				Progress: float64(consumed) / float64(total) * 100,
			}
			sb.Reset()
			return send(ctx, out, b)
		}

		for _, p := range paragraphs {
			consumed++
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			sb.WriteString(p)
			sb.WriteByte('\n')
			if sb.Len() >= s.batchBytes {
				if err := flush(); err != nil {
					return err
				}
			}
		}
		// consumed == total here, so the final remainder reports 100.
		return flush()
	})

	return out
}
