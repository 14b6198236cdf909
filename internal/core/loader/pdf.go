package loader

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/sync/errgroup"
)

// pdfSource yields one batch per page with extractable text. Pages with no
// text are skipped, not yielded. Progress is pages consumed over total pages,
// counting skipped pages as consumed.
type pdfSource struct {
	path string
}

func (s *pdfSource) Batches(ctx context.Context, g *errgroup.Group) <-chan Batch {
	out := make(chan Batch)

	g.Go(func() error {
		defer close(out)

		f, r, err := pdf.Open(s.path)
		if err != nil {
			return fmt.Errorf("open pdf %s: %w", filepath.Base(s.path), err)
		}
		defer f.Close()

		total := r.NumPage()
		if total == 0 {
			return nil
		}
		name := filepath.Base(s.path)

		for i := 1; i <= total; i++ {
			page := r.Page(i)
			if page.V.IsNull() {
				continue
			}
			text, err := page.GetPlainText(nil)
			if err != nil {
				return fmt.Errorf("extract page %d of %s: %w", i, name, err)
			}
			if strings.TrimSpace(text) == "" {
				continue
			}
			b := Batch{
				Docs: []Document{{
					Text: text,
					Metadata: map[string]string{
						"file_name": name,
						"page":      strconv.Itoa(i),
					},
				}},
				Progress: float64(i) / float64(total) * 100,
			}
			if err := send(ctx, out, b); err != nil {
				return err
			}
		}
		return nil
	})

	return out
}
