package extractor

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"
)

const documentXML = "word/document.xml"

var (
	tagRe    = regexp.MustCompile(`<[^>]*>`)
	entityRe = regexp.MustCompile(`&#?[A-Za-z0-9]+;`)
)

func (e *Extractor) extractWord(path string) Result {
	raw, err := readDocumentXML(path)
	if err != nil {
		e.log.Warn("word archive unreadable", "path", path, "error", err)
		return Result{Text: placeholder(path), Method: MethodFallback, Parser: "placeholder"}
	}

	text, err := walkDocumentXML(raw)
	if err == nil && strings.TrimSpace(text) != "" {
		return Result{Text: text, Method: MethodPrimary, Parser: "docx_xml"}
	}
	e.log.Warn("word structured parse failed", "path", path, "error", err)

	if text := stripMarkup(raw); text != "" {
		return Result{Text: text, Method: MethodFallback, Parser: "docx_strip"}
	}
	return Result{Text: placeholder(path), Method: MethodFallback, Parser: "placeholder"}
}

func readDocumentXML(path string) ([]byte, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	defer zr.Close()
	for _, f := range zr.File {
		if f.Name != documentXML {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", documentXML, err)
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("%s not found", documentXML)
}

// walkDocumentXML collects w:t runs, emitting tabs, breaks and paragraph ends.
func walkDocumentXML(raw []byte) (string, error) {
	dec := xml.NewDecoder(strings.NewReader(string(raw)))
	var (
		sb     strings.Builder
		inText bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("decode document xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br", "cr":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	lines := strings.Split(sb.String(), "\n")
	out := lines[:0]
	for _, ln := range lines {
		if ln = strings.TrimSpace(ln); ln != "" {
			out = append(out, ln)
		}
	}
	return strings.Join(out, "\n"), nil
}

func stripMarkup(raw []byte) string {
	s := tagRe.ReplaceAllString(strings.ToValidUTF8(string(raw), ""), " ")
	s = entityRe.ReplaceAllStringFunc(s, func(m string) string {
		if u := html.UnescapeString(m); u != m {
			return u
		}
		return " "
	})
	return collapseWhitespace(s)
}
