package loader

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"
)

// sheetSource iterates workbook sheets in declaration order and rows within a
// sheet in row order, using excelize's streaming row reader so the workbook
// is never fully resident. A batch is yielded whenever the byte threshold is
// crossed or a sheet ends. Progress is sheet-granular: sheets consumed over
// total sheets; rows inside a sheet do not move the fraction.
type sheetSource struct {
	path       string
	batchBytes int
}

func (s *sheetSource) Batches(ctx context.Context, g *errgroup.Group) <-chan Batch {
	out := make(chan Batch)

	g.Go(func() error {
		defer close(out)

		name := filepath.Base(s.path)
		wb, err := excelize.OpenFile(s.path)
		if err != nil {
			return fmt.Errorf("open workbook %s: %w", name, err)
		}
		defer wb.Close()

		sheets := wb.GetSheetList()
		total := len(sheets)
		if total == 0 {
			return nil
		}

		for si, sheet := range sheets {
			var sb strings.Builder

			flush := func(progress float64) error {
				if sb.Len() == 0 {
					return nil
				}
				b := Batch{
					Docs: []Document{{
						Text: sb.String(),
						Metadata: map[string]string{
							"file_name": name,
							"sheet":     sheet,
						},
					}},
					Progress: progress,
				}
				sb.Reset()
				return send(ctx, out, b)
			}

			rows, err := wb.Rows(sheet)
			if err != nil {
				return fmt.Errorf("read sheet %q of %s: %w", sheet, name, err)
			}
			for rows.Next() {
				cols, err := rows.Columns()
				if err != nil {
					rows.Close()
					return fmt.Errorf("read row in sheet %q of %s: %w", sheet, name, err)
				}
				line := strings.TrimSpace(strings.Join(cols, "\t"))
				if line == "" {
					continue
				}
				sb.WriteString(line)
				sb.WriteByte('\n')
				if sb.Len() >= s.batchBytes {
					// Mid-sheet flush reports the sheets finished so far.
					if err := flush(float64(si) / float64(total) * 100); err != nil {
						rows.Close()
						return err
					}
				}
			}
			if err := rows.Close(); err != nil {
				return fmt.Errorf("close sheet %q of %s: %w", sheet, name, err)
			}
			if err := flush(float64(si+1) / float64(total) * 100); err != nil {
				return err
			}
		}
		return nil
	})

	return out
}
