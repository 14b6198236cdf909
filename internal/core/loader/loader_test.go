package loader

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func collect(t *testing.T, src Source) []Batch {
	t.Helper()
	g, gctx := errgroup.WithContext(context.Background())
	var got []Batch
	for b := range src.Batches(gctx, g) {
		got = append(got, b)
	}
	require.NoError(t, g.Wait())
	return got
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSniff(t *testing.T) {
	tests := []struct {
		name     string
		header   []byte
		declared string
		want     Kind
	}{
		{"plain text", []byte("hello world\nsecond line\n"), "text/plain", KindPlainText},
		{"csv by declared type", []byte("name,age\nalice,30\n"), "text/csv", KindTable},
		{"pdf magic", []byte("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n"), "application/pdf", KindPortableDocument},
		{"png rejected", []byte("\x89PNG\r\n\x1a\n"), "image/png", KindUnsupported},
		{"empty text upload", nil, "text/plain", KindPlainText},
		{"empty csv upload", nil, "text/csv", KindTable},
		{"empty binary upload", nil, "application/octet-stream", KindUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, detected := Sniff(tt.header, tt.declared)
			assert.Equal(t, tt.want, kind)
			assert.NotEmpty(t, detected)
		})
	}
}

func TestTextSourceSingleBatch(t *testing.T) {
	path := writeTemp(t, "notes.txt", "first line\nsecond line\n")

	batches := collect(t, Open(path, KindPlainText, 1<<20))

	require.Len(t, batches, 1)
	b := batches[0]
	require.Len(t, b.Docs, 1)
	assert.Equal(t, "first line\nsecond line\n", b.Docs[0].Text)
	assert.Equal(t, "notes.txt", b.Docs[0].Metadata["file_name"])
	assert.Equal(t, 100.0, b.Progress)
}

func TestTextSourceThresholdSplitsAndRoundTrips(t *testing.T) {
	var lines []string
	for i := 0; i < 50; i++ {
		lines = append(lines, strings.Repeat("x", 40))
	}
	content := strings.Join(lines, "\n") + "\n"
	path := writeTemp(t, "big.txt", content)

	// ~2050 bytes of content against a 256-byte threshold.
	batches := collect(t, Open(path, KindPlainText, 256))
	require.Greater(t, len(batches), 1)

	var rebuilt strings.Builder
	prev := -1.0
	for _, b := range batches {
		for _, d := range b.Docs {
			rebuilt.WriteString(d.Text)
		}
		assert.GreaterOrEqual(t, b.Progress, prev, "progress must be non-decreasing")
		prev = b.Progress
	}
	assert.Equal(t, content, rebuilt.String())
	assert.Equal(t, 100.0, batches[len(batches)-1].Progress)
}

func TestTextSourceBlankFileYieldsNothing(t *testing.T) {
	path := writeTemp(t, "blank.txt", "\n   \n\t\n")
	assert.Empty(t, collect(t, Open(path, KindPlainText, 1<<20)))
}

func TestTextSourceEmptyFileYieldsNothing(t *testing.T) {
	path := writeTemp(t, "empty.txt", "")
	assert.Empty(t, collect(t, Open(path, KindPlainText, 1<<20)))
}

func TestTableSourceReadsDelimitedRows(t *testing.T) {
	content := "name,age\nalice,30\nbob,41\n"
	path := writeTemp(t, "people.csv", content)

	batches := collect(t, Open(path, KindTable, 1<<20))

	require.Len(t, batches, 1)
	assert.Equal(t, content, batches[0].Docs[0].Text)
}

func TestUnsupportedKindYieldsNothing(t *testing.T) {
	path := writeTemp(t, "mystery.bin", "\x00\x01\x02")
	assert.Empty(t, collect(t, Open(path, KindUnsupported, 1<<20)))
}

func TestOpenMissingFileSurfacesError(t *testing.T) {
	src := Open(filepath.Join(t.TempDir(), "gone.txt"), KindPlainText, 1<<20)
	g, gctx := errgroup.WithContext(context.Background())
	for range src.Batches(gctx, g) {
	}
	assert.Error(t, g.Wait())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "plain-text", KindPlainText.String())
	assert.Equal(t, "spreadsheet", KindSpreadsheet.String())
	assert.Equal(t, "unsupported", KindUnsupported.String())
}
