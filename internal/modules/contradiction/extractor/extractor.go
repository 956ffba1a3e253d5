// Package extractor turns stored uploads into plain text. Structured parsing is
// attempted first; every failure degrades to a cruder decoding rather than an
// error, so that the analyzer always receives something to work with.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/docsentinel-backend/internal/observability"
	"github.com/yungbote/docsentinel-backend/internal/pkg/ctxutil"
	"github.com/yungbote/docsentinel-backend/internal/pkg/logger"
)

// ErrUnsupportedFileType is the only error Extract returns.
var ErrUnsupportedFileType = errors.New("unsupported file type")

type Method string

const (
	MethodPrimary  Method = "primary"
	MethodFallback Method = "fallback"
)

type Kind string

const (
	KindPDF         Kind = "pdf"
	KindWord        Kind = "word"
	KindText        Kind = "text"
	KindUnsupported Kind = "unsupported"
)

type Result struct {
	Text   string
	Method Method
	// Parser names the stage that produced Text.
	Parser string
}

// PDFParser is one structured PDF text source. Implementations live next to
// the system they wrap (local library, poppler, Document AI).
type PDFParser interface {
	Name() string
	ParsePDF(ctx context.Context, path string) (string, error)
}

type Extractor struct {
	log     *logger.Logger
	parsers []PDFParser
}

// New builds an extractor that tries parsers in order before degrading to raw
// byte decoding. With no parsers the built-in library parser is used.
func New(log *logger.Logger, parsers ...PDFParser) *Extractor {
	if len(parsers) == 0 {
		parsers = []PDFParser{LibraryPDFParser{}}
	}
	return &Extractor{log: log.With("service", "Extractor"), parsers: parsers}
}

var textExts = map[string]struct{}{
	"txt": {}, "text": {}, "csv": {}, "json": {}, "xml": {}, "html": {}, "htm": {}, "md": {}, "markdown": {},
}

// Classify maps a declared MIME type or extension onto a Kind.
func Classify(declaredType string) Kind {
	s := strings.ToLower(strings.TrimSpace(declaredType))
	if i := strings.Index(s, ";"); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	switch s {
	case "application/pdf":
		return KindPDF
	case "application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return KindWord
	case "application/json", "application/xml", "text/xml", "text/csv", "text/html", "text/markdown":
		return KindText
	}
	if strings.HasPrefix(s, "text/") {
		return KindText
	}
	s = strings.TrimPrefix(s, ".")
	if strings.ContainsAny(s, "/.") {
		s = strings.TrimPrefix(filepath.Ext(s), ".")
	}
	switch s {
	case "pdf":
		return KindPDF
	case "docx", "doc":
		return KindWord
	}
	if _, ok := textExts[s]; ok {
		return KindText
	}
	return KindUnsupported
}

// Supports reports whether Extract would attempt the declared type.
func (e *Extractor) Supports(declaredType string) bool {
	return Classify(declaredType) != KindUnsupported
}

func (e *Extractor) Extract(ctx context.Context, path, declaredType string) (Result, error) {
	ctx = ctxutil.Default(ctx)
	kind := Classify(declaredType)
	ctx, span := observability.StartSpan(ctx, "extractor.Extract",
		attribute.String("extract.kind", string(kind)),
		attribute.String("extract.file", filepath.Base(path)),
	)
	defer span.End()

	var res Result
	switch kind {
	case KindPDF:
		res = e.extractPDF(ctx, path)
	case KindWord:
		res = e.extractWord(path)
	case KindText:
		res = e.extractText(path)
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnsupportedFileType, declaredType)
	}
	span.SetAttributes(
		attribute.String("extract.method", string(res.Method)),
		attribute.String("extract.parser", res.Parser),
		attribute.Int("extract.chars", len(res.Text)),
	)
	return res, nil
}

func (e *Extractor) extractText(path string) Result {
	b, err := os.ReadFile(path)
	if err != nil {
		e.log.Warn("read text file failed", "path", path, "error", err)
		return Result{Text: placeholder(path), Method: MethodFallback, Parser: "placeholder"}
	}
	return Result{Text: strings.ToValidUTF8(string(b), ""), Method: MethodPrimary, Parser: "text"}
}

func placeholder(path string) string {
	return fmt.Sprintf("[Unreadable document: %s. No text could be extracted.]", filepath.Base(path))
}

// sanitizeRaw decodes bytes leniently: invalid UTF-8 dropped, then anything
// outside printable ASCII removed and whitespace collapsed.
func sanitizeRaw(b []byte) string {
	s := strings.ToValidUTF8(string(b), "")
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\t' || r == '\r':
			sb.WriteRune(' ')
		case r >= 0x20 && r < 0x7f && r != utf8.RuneError:
			sb.WriteRune(r)
		}
	}
	return collapseWhitespace(sb.String())
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
