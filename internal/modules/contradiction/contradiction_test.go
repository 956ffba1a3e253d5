package contradiction

import (
	"math"
	"testing"
)

func TestParseTypeDefaults(t *testing.T) {
	if got, ok := ParseType(" Budget "); got != TypeBudget || !ok {
		t.Fatalf("ParseType(Budget)=%q,%v", got, ok)
	}
	for _, in := range []string{"", "financial", "BUDGETS", "42"} {
		if got, ok := ParseType(in); got != TypeData || ok {
			t.Fatalf("ParseType(%q)=%q,%v want data,false", in, got, ok)
		}
	}
}

func TestParseSeverityDefaults(t *testing.T) {
	if got, ok := ParseSeverity("CRITICAL"); got != SeverityCritical || !ok {
		t.Fatalf("ParseSeverity(CRITICAL)=%q,%v", got, ok)
	}
	for _, in := range []string{"", "severe", "urgent"} {
		if got, ok := ParseSeverity(in); got != SeverityMedium || ok {
			t.Fatalf("ParseSeverity(%q)=%q,%v want medium,false", in, got, ok)
		}
	}
}

func TestClampConfidence(t *testing.T) {
	cases := map[float64]float64{-5: 0, 500: 1, 0.42: 0.42, 0: 0, 1: 1}
	for in, want := range cases {
		if got := ClampConfidence(in); got != want {
			t.Fatalf("ClampConfidence(%v)=%v want %v", in, got, want)
		}
	}
	if got := ClampConfidence(math.NaN()); got != DefaultConfidence {
		t.Fatalf("ClampConfidence(NaN)=%v", got)
	}
}

func TestMaxSeverity(t *testing.T) {
	fs := []Finding{{Severity: SeverityLow}, {Severity: SeverityCritical}, {Severity: SeverityMedium}}
	if got := MaxSeverity(fs, SeverityLow); got != SeverityCritical {
		t.Fatalf("MaxSeverity=%q", got)
	}
	if got := MaxSeverity(nil, SeverityMedium); got != SeverityMedium {
		t.Fatalf("MaxSeverity(nil)=%q", got)
	}
}
