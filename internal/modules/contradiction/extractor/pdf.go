package extractor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	pdf "github.com/ledongthuc/pdf"
)

// LibraryPDFParser reads the text layer with github.com/ledongthuc/pdf.
type LibraryPDFParser struct{}

func (LibraryPDFParser) Name() string { return "pdf_text_layer" }

func (LibraryPDFParser) ParsePDF(ctx context.Context, path string) (text string, err error) {
	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf parser panic: %v", r)
		}
	}()
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	rd, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(rd); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

func (e *Extractor) extractPDF(ctx context.Context, path string) Result {
	for _, p := range e.parsers {
		text, err := p.ParsePDF(ctx, path)
		if err != nil {
			e.log.Warn("pdf parser failed", "path", path, "parser", p.Name(), "error", err)
			continue
		}
		if strings.TrimSpace(text) == "" {
			e.log.Warn("pdf parser returned no text", "path", path, "parser", p.Name())
			continue
		}
		return Result{Text: text, Method: MethodPrimary, Parser: p.Name()}
	}

	b, err := os.ReadFile(path)
	if err != nil {
		e.log.Warn("read pdf bytes failed", "path", path, "error", err)
		return Result{Text: placeholder(path), Method: MethodFallback, Parser: "placeholder"}
	}
	if text := sanitizeRaw(b); text != "" {
		return Result{Text: text, Method: MethodFallback, Parser: "raw_bytes"}
	}
	e.log.Warn("pdf raw decode empty", "path", path)
	return Result{Text: placeholder(path), Method: MethodFallback, Parser: "placeholder"}
}
