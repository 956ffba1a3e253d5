package heuristics

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

type Rules struct {
	CharsPerPage         int      `yaml:"chars_per_page"`
	SnippetRadius        int      `yaml:"snippet_radius"`
	ComplianceWindow     int      `yaml:"compliance_window"`
	MinStemLength        int      `yaml:"min_stem_length"`
	PerDayPenalty        float64  `yaml:"per_day_penalty"`
	PenaltyCurrency      string   `yaml:"penalty_currency"`
	ComplianceKeywords   []string `yaml:"compliance_keywords"`
	OrganizationSuffixes []string `yaml:"organization_suffixes"`
	LeadingStopwords     []string `yaml:"leading_stopwords"`

	complianceRe *regexp.Regexp
	orgRe        *regexp.Regexp
	suffixes     map[string]struct{}
	stopwords    map[string]struct{}
}

var (
	defaultOnce  sync.Once
	defaultRules *Rules
)

// DefaultRules returns the embedded rule tables.
func DefaultRules() *Rules {
	defaultOnce.Do(func() {
		r, err := LoadRules(defaultRulesYAML)
		if err != nil {
			panic(fmt.Sprintf("heuristics: embedded rules: %v", err))
		}
		defaultRules = r
	})
	return defaultRules
}

// LoadRules parses a YAML rules document, fills defaults and compiles the matchers.
func LoadRules(data []byte) (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	if r.CharsPerPage <= 0 {
		r.CharsPerPage = 3000
	}
	if r.SnippetRadius <= 0 {
		r.SnippetRadius = 80
	}
	if r.ComplianceWindow <= 0 {
		r.ComplianceWindow = 300
	}
	if r.MinStemLength <= 0 {
		r.MinStemLength = 3
	}
	if r.PerDayPenalty <= 0 {
		r.PerDayPenalty = 1000
	}
	if strings.TrimSpace(r.PenaltyCurrency) == "" {
		r.PenaltyCurrency = "$"
	}
	if len(r.ComplianceKeywords) == 0 {
		return nil, fmt.Errorf("compliance_keywords required")
	}
	if len(r.OrganizationSuffixes) == 0 {
		return nil, fmt.Errorf("organization_suffixes required")
	}

	kw := make([]string, 0, len(r.ComplianceKeywords))
	for _, k := range r.ComplianceKeywords {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		wildcard := strings.HasSuffix(k, "*")
		k = strings.TrimSuffix(k, "*")
		pat := strings.ReplaceAll(regexp.QuoteMeta(k), " ", `[\s-]*`)
		if wildcard {
			pat += `\w*`
		}
		kw = append(kw, pat)
	}
	re, err := regexp.Compile(`(?i)\b(?:` + strings.Join(kw, "|") + `)\b`)
	if err != nil {
		return nil, fmt.Errorf("compile compliance keywords: %w", err)
	}
	r.complianceRe = re

	r.suffixes = map[string]struct{}{}
	suf := make([]string, 0, len(r.OrganizationSuffixes))
	for _, s := range r.OrganizationSuffixes {
		s = strings.TrimSpace(strings.TrimSuffix(s, "."))
		if s == "" {
			continue
		}
		r.suffixes[strings.ToLower(s)] = struct{}{}
		suf = append(suf, regexp.QuoteMeta(s))
	}
	word := `[A-Z][A-Za-z0-9&'\-]*`
	orgRe, err := regexp.Compile(`\b(?:` + word + `[ \t]+){0,3}` + word + `(?:,[ \t]*|[ \t]+)(?:` + strings.Join(suf, "|") + `)\b\.?`)
	if err != nil {
		return nil, fmt.Errorf("compile organization pattern: %w", err)
	}
	r.orgRe = orgRe

	r.stopwords = map[string]struct{}{}
	for _, s := range r.LeadingStopwords {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			r.stopwords[s] = struct{}{}
		}
	}
	return &r, nil
}
