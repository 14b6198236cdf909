package loader

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"context"

	"golang.org/x/sync/errgroup"
)

// textSource reads plain text and delimited tables line by line, emitting a
// batch whenever the accumulated text crosses the byte threshold. Progress is
// bytes consumed over total file bytes.
type textSource struct {
	path       string
	batchBytes int
}

func (s *textSource) Batches(ctx context.Context, g *errgroup.Group) <-chan Batch {
	out := make(chan Batch)

	g.Go(func() error {
		defer close(out)

		f, err := os.Open(s.path)
		if err != nil {
			return fmt.Errorf("open %s: %w", s.path, err)
		}
		defer f.Close()

		fi, err := f.Stat()
		if err != nil {
			return fmt.Errorf("stat %s: %w", s.path, err)
		}
		total := fi.Size()
		name := filepath.Base(s.path)

		sc := bufio.NewScanner(f)
		// Allow up to 1MB lines; the default 64K is too small for texty exports.
		sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

		var (
			sb       strings.Builder
			consumed int64
		)

		flush := func() error {
			if sb.Len() == 0 {
				return nil
			}
			progress := 100.0
			if total > 0 {
				progress = float64(consumed) / float64(total) * 100
				if progress > 100 {
					progress = 100
				}
			}
			b := Batch{
				Docs: []Document{{
					Text:     sb.String(),
					Metadata: map[string]string{"file_name": name},
				}},
				Progress: progress,
			}
			sb.Reset()
			return send(ctx, out, b)
		}

		for sc.Scan() {
			consumed += int64(len(sc.Bytes())) + 1 // account for the newline
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			sb.WriteString(line)
			sb.WriteByte('\n')
			if sb.Len() >= s.batchBytes {
				if err := flush(); err != nil {
					return err
				}
			}
		}
		if err := sc.Err(); err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}

		// Final under-threshold remainder; consumed has reached total so the
		// fraction lands on 100.
		consumed = total
		return flush()
	})

	return out
}
