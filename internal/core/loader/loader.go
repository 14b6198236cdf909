package loader

import (
	"context"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/errgroup"
)

// Document is one (text, metadata) pair inside a batch. Metadata always
// carries file_name; page and sheet are set by the formats that have them.
type Document struct {
	Text     string
	Metadata map[string]string
}

// Batch is a bounded group of documents plus the loader's progress fraction
// in [0,100]. Fractions are non-decreasing across a single file's batches.
type Batch struct {
	Docs     []Document
	Progress float64
}

// Kind is the closed set of supported input formats, selected once from the
// sniffed content type.
type Kind int

const (
	KindUnsupported Kind = iota
	KindPlainText
	KindTable
	KindPortableDocument
	KindSpreadsheet
	KindWordProcessor
)

func (k Kind) String() string {
	switch k {
	case KindPlainText:
		return "plain-text"
	case KindTable:
		return "delimited-table"
	case KindPortableDocument:
		return "pdf"
	case KindSpreadsheet:
		return "spreadsheet"
	case KindWordProcessor:
		return "word-processor"
	default:
		return "unsupported"
	}
}

const (
	mimePDF  = "application/pdf"
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// Sniff detects the format from the leading bytes of the file. The declared
// Content-Type only breaks the text/plain vs text/csv tie; content wins over
// extension and header everywhere else. Returns the kind and the detected
// MIME type for error messages.
func Sniff(header []byte, declared string) (Kind, string) {
	if len(header) == 0 {
		// A zero-byte text upload is a valid no-op, not a rejected format.
		switch {
		case strings.HasPrefix(declared, "text/csv"):
			return KindTable, "inode/x-empty"
		case strings.HasPrefix(declared, "text/"):
			return KindPlainText, "inode/x-empty"
		}
		return KindUnsupported, "inode/x-empty"
	}

	mtype := mimetype.Detect(header)
	detected := mtype.String()

	switch {
	case mtype.Is(mimePDF):
		return KindPortableDocument, detected
	case mtype.Is(mimeXLSX):
		return KindSpreadsheet, detected
	case mtype.Is(mimeDOCX):
		return KindWordProcessor, detected
	case mtype.Is("text/csv") || mtype.Is("text/tab-separated-values"):
		return KindTable, detected
	case mtype.Is("text/plain"):
		if strings.HasPrefix(declared, "text/csv") {
			return KindTable, detected
		}
		return KindPlainText, detected
	}
	return KindUnsupported, detected
}

// Source produces a lazy, finite, non-restartable sequence of batches.
//
// Batches starts the producer on g and returns an unbuffered channel: a batch
// is only built when the consumer is ready for it, so peak memory stays at
// roughly one batch. The channel is closed when the file is exhausted or the
// producer fails; the failure surfaces through g.Wait().
type Source interface {
	Batches(ctx context.Context, g *errgroup.Group) <-chan Batch
}

// Open returns the source for the given kind. An unsupported kind yields a
// source producing zero batches, not an error; callers treat "no batches" as
// a no-op.
func Open(path string, kind Kind, batchBytes int) Source {
	switch kind {
	case KindPlainText, KindTable:
		return &textSource{path: path, batchBytes: batchBytes}
	case KindPortableDocument:
		return &pdfSource{path: path}
	case KindSpreadsheet:
		return &sheetSource{path: path, batchBytes: batchBytes}
	case KindWordProcessor:
		return &wordSource{path: path, batchBytes: batchBytes}
	default:
		return emptySource{}
	}
}

type emptySource struct{}

func (emptySource) Batches(ctx context.Context, g *errgroup.Group) <-chan Batch {
	out := make(chan Batch)
	close(out)
	return out
}

// send delivers one batch, bailing out when the pipeline is cancelled.
func send(ctx context.Context, out chan<- Batch, b Batch) error {
	select {
	case out <- b:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
