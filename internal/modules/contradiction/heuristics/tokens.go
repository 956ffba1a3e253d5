package heuristics

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Amount is a currency or percentage token found in text.
type Amount struct {
	Raw     string
	Key     string
	Unit    string
	Value   float64
	Numeric bool
	Percent bool
	Index   int
}

// DateToken is a calendar date found in text. Time is set when Parsed.
type DateToken struct {
	Raw    string
	Key    string
	Time   time.Time
	Parsed bool
	Index  int
}

// Entity is an organization-like name found in text.
type Entity struct {
	Raw   string
	Key   string
	Index int
}

var (
	amountRe = regexp.MustCompile(`(?i)(?:[$€£¥][ \t]?\d[\d,]*(?:\.\d+)?(?:[ \t]?(?:k|m|bn|thousand|million|billion)\b)?|\b\d[\d,]*(?:\.\d+)?[ \t]?(?:%|percent\b|(?:usd|eur|gbp|dollars)\b))`)

	monthPat = `(?:jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)`
	dateRe   = regexp.MustCompile(`(?i)\b(?:` + monthPat + `\.?[ \t]+\d{1,2}(?:st|nd|rd|th)?,?[ \t]+\d{4}|\d{1,2}(?:st|nd|rd|th)?[ \t]+` + monthPat + `\.?,?[ \t]+\d{4}|\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{2,4})\b`)

	ordinalRe = regexp.MustCompile(`(?i)(\d)(st|nd|rd|th)\b`)

	dateLayouts = []string{
		"January 2 2006",
		"Jan 2 2006",
		"2 January 2006",
		"2 Jan 2006",
		"2006-01-02",
		"1/2/2006",
		"1/2/06",
	}

	currencyCodes = map[string]string{"usd": "$", "dollars": "$", "eur": "€", "gbp": "£"}
	magnitudes    = map[string]float64{"k": 1e3, "thousand": 1e3, "m": 1e6, "million": 1e6, "bn": 1e9, "billion": 1e9}
)

// Amounts returns currency and percentage tokens in order of appearance.
func Amounts(text string) []Amount {
	locs := amountRe.FindAllStringIndex(text, -1)
	out := make([]Amount, 0, len(locs))
	for _, loc := range locs {
		raw := strings.TrimRight(text[loc[0]:loc[1]], ",")
		if a, ok := parseAmount(raw); ok {
			a.Index = loc[0]
			out = append(out, a)
		}
	}
	return out
}

func parseAmount(raw string) (Amount, bool) {
	a := Amount{Raw: strings.TrimSpace(raw)}
	s := strings.ToLower(a.Raw)

	switch {
	case strings.HasSuffix(s, "%"):
		a.Percent = true
		s = strings.TrimSuffix(s, "%")
	case strings.HasSuffix(s, "percent"):
		a.Percent = true
		s = strings.TrimSuffix(s, "percent")
	}
	if !a.Percent {
		for _, sym := range []string{"$", "€", "£", "¥"} {
			if strings.HasPrefix(s, sym) {
				a.Unit = sym
				s = strings.TrimPrefix(s, sym)
				break
			}
		}
		for code, sym := range currencyCodes {
			if strings.HasSuffix(s, code) {
				a.Unit = sym
				s = strings.TrimSuffix(s, code)
				break
			}
		}
	}

	mult := 1.0
	s = strings.TrimSpace(s)
	for word, m := range magnitudes {
		if strings.HasSuffix(s, word) {
			head := strings.TrimSpace(strings.TrimSuffix(s, word))
			if head != "" && unicode.IsDigit(rune(head[len(head)-1])) {
				mult = m
				s = head
				break
			}
		}
	}
	digits := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if digits == "" {
		return a, false
	}
	v, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		a.Key = strings.ToLower(strings.Join(strings.Fields(a.Raw), ""))
		return a, true
	}
	a.Value = v * mult
	a.Numeric = true
	if a.Percent {
		a.Key = strconv.FormatFloat(a.Value, 'f', -1, 64) + "%"
	} else {
		a.Key = a.Unit + strconv.FormatFloat(a.Value, 'f', -1, 64)
	}
	return a, true
}

// Comparable reports whether a and b measure the same kind of quantity.
func (a Amount) Comparable(b Amount) bool {
	return a.Numeric && b.Numeric && a.Percent == b.Percent && a.Unit == b.Unit
}

// Dates returns date tokens in order of appearance.
func Dates(text string) []DateToken {
	locs := dateRe.FindAllStringIndex(text, -1)
	out := make([]DateToken, 0, len(locs))
	for _, loc := range locs {
		raw := text[loc[0]:loc[1]]
		d := DateToken{Raw: raw, Index: loc[0]}
		if t, ok := parseDate(raw); ok {
			d.Time = t
			d.Parsed = true
			d.Key = t.Format("2006-01-02")
		} else {
			d.Key = strings.ToLower(strings.Join(strings.Fields(raw), " "))
		}
		out = append(out, d)
	}
	return out
}

func parseDate(raw string) (time.Time, bool) {
	s := ordinalRe.ReplaceAllString(raw, "$1")
	s = strings.NewReplacer(",", " ", ".", " ").Replace(s)
	s = strings.Join(strings.Fields(s), " ")
	fields := strings.Fields(s)
	for i, f := range fields {
		if strings.EqualFold(f, "sept") {
			fields[i] = "Sep"
		}
	}
	s = strings.Join(fields, " ")
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Entities returns organization-like names in order of appearance.
func (r *Rules) Entities(text string) []Entity {
	locs := r.orgRe.FindAllStringIndex(text, -1)
	out := make([]Entity, 0, len(locs))
	for _, loc := range locs {
		raw := strings.TrimSpace(text[loc[0]:loc[1]])
		start := loc[0]
		words := strings.Fields(raw)
		for len(words) > 2 {
			if _, stop := r.stopwords[strings.ToLower(words[0])]; !stop {
				break
			}
			start = start + strings.Index(text[start:], words[1])
			words = words[1:]
		}
		raw = strings.Join(words, " ")
		out = append(out, Entity{Raw: raw, Key: entityKey(raw), Index: start})
	}
	return out
}

func entityKey(raw string) string {
	s := strings.ToLower(raw)
	s = strings.NewReplacer(".", "", ",", "").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// stems returns the significant word stems of an entity name in order.
func (r *Rules) stems(e Entity) []string {
	var out []string
	for _, w := range strings.Fields(e.Key) {
		if _, ok := r.suffixes[w]; ok {
			continue
		}
		if _, ok := r.stopwords[w]; ok {
			continue
		}
		st := stem(w)
		if len([]rune(st)) < r.MinStemLength {
			continue
		}
		out = append(out, st)
	}
	return out
}

func stem(w string) string {
	for _, suf := range []string{"ies", "ing", "es", "ed", "s"} {
		if strings.HasSuffix(w, suf) && len(w)-len(suf) >= 3 {
			base := strings.TrimSuffix(w, suf)
			if suf == "ies" {
				base += "y"
			}
			return base
		}
	}
	return w
}

// SharedStem returns the first stem of b that also occurs in a, or "".
func (r *Rules) SharedStem(a, b Entity) string {
	sa := map[string]struct{}{}
	for _, st := range r.stems(a) {
		sa[st] = struct{}{}
	}
	for _, st := range r.stems(b) {
		if _, ok := sa[st]; ok {
			return st
		}
	}
	return ""
}

// ComplianceMentions returns keyword matches as [start,end] pairs.
func (r *Rules) ComplianceMentions(text string) [][]int {
	return r.complianceRe.FindAllStringIndex(text, -1)
}

func distinctAmounts(in []Amount) []Amount {
	seen := map[string]struct{}{}
	out := make([]Amount, 0, len(in))
	for _, a := range in {
		if _, ok := seen[a.Key]; ok {
			continue
		}
		seen[a.Key] = struct{}{}
		out = append(out, a)
	}
	return out
}

func distinctDates(in []DateToken) []DateToken {
	seen := map[string]struct{}{}
	out := make([]DateToken, 0, len(in))
	for _, d := range in {
		if _, ok := seen[d.Key]; ok {
			continue
		}
		seen[d.Key] = struct{}{}
		out = append(out, d)
	}
	return out
}
