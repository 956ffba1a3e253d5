package heuristics

import (
	"math"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Locate maps a byte offset onto a synthetic page/line pair. Pages are fixed-size
// character windows; lines count newlines since the start of that window.
func (r *Rules) Locate(text string, idx int) (page, line int) {
	if idx < 0 {
		idx = 0
	}
	if idx > len(text) {
		idx = len(text)
	}
	page = idx/r.CharsPerPage + 1
	start := (page - 1) * r.CharsPerPage
	line = strings.Count(text[start:idx], "\n") + 1
	return page, line
}

// Snippet returns the text around [idx, idx+n) with whitespace collapsed.
func (r *Rules) Snippet(text string, idx, n int) string {
	start := idx - r.SnippetRadius
	if start < 0 {
		start = 0
	}
	end := idx + n + r.SnippetRadius
	if end > len(text) {
		end = len(text)
	}
	for start > 0 && !utf8.RuneStart(text[start]) {
		start--
	}
	for end < len(text) && !utf8.RuneStart(text[end]) {
		end++
	}
	return strings.Join(strings.Fields(text[start:end]), " ")
}

var printer = message.NewPrinter(language.English)

// FormatMoney renders v with thousands separators, e.g. "$15,000" or "$1,250.50".
func FormatMoney(unit string, v float64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	if v == math.Trunc(v) && v < 1e15 {
		return sign + unit + printer.Sprintf("%d", int64(v))
	}
	return sign + unit + printer.Sprintf("%.2f", v)
}
