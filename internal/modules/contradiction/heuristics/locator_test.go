package heuristics

import "testing"

func TestLocate(t *testing.T) {
	r, err := LoadRules([]byte("chars_per_page: 10\ncompliance_keywords: [audit]\norganization_suffixes: [Inc]\n"))
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	text := "ab\ncd\nef\ngh\nij\nkl"
	cases := []struct {
		idx        int
		page, line int
	}{
		{0, 1, 1},
		{6, 1, 3},
		{12, 2, 2},
		{-5, 1, 1},
		{1000, 2, 3},
	}
	for _, tc := range cases {
		page, line := r.Locate(text, tc.idx)
		if page != tc.page || line != tc.line {
			t.Fatalf("Locate(%d)=(%d,%d) want (%d,%d)", tc.idx, page, line, tc.page, tc.line)
		}
	}
}

func TestSnippetIsRuneSafe(t *testing.T) {
	r, err := LoadRules([]byte("snippet_radius: 2\ncompliance_keywords: [audit]\norganization_suffixes: [Inc]\n"))
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	got := r.Snippet("€€ pay   $5 now", 7, 2)
	if got != "€ pay" {
		t.Fatalf("snippet=%q", got)
	}
}

func TestFormatMoney(t *testing.T) {
	cases := []struct {
		unit string
		v    float64
		want string
	}{
		{"$", 15000, "$15,000"},
		{"$", 1250.5, "$1,250.50"},
		{"€", -42, "-€42"},
	}
	for _, tc := range cases {
		if got := FormatMoney(tc.unit, tc.v); got != tc.want {
			t.Fatalf("FormatMoney(%q,%v)=%q want %q", tc.unit, tc.v, got, tc.want)
		}
	}
}

func TestLoadRulesRequiresKeywords(t *testing.T) {
	if _, err := LoadRules([]byte("organization_suffixes: [Inc]\n")); err == nil {
		t.Fatalf("expected error")
	}
}
