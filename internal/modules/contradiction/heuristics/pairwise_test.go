package heuristics

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/docsentinel-backend/internal/modules/contradiction"
)

func pair(a, b string) []Document {
	return []Document{
		{ID: uuid.New(), Name: "a.pdf", Text: a},
		{ID: uuid.New(), Name: "b.pdf", Text: b},
	}
}

func TestPairwiseBudgetMismatch(t *testing.T) {
	docs := pair("Approved budget: $180,000", "Invoice amount: $165,000")
	f := DefaultRules().Pairwise(docs)
	if f == nil {
		t.Fatalf("expected finding")
	}
	if f.Type != contradiction.TypeBudget || f.Severity != contradiction.SeverityCritical {
		t.Fatalf("got %s/%s", f.Type, f.Severity)
	}
	if !strings.Contains(f.SuggestedFix, "$180,000") || !strings.Contains(f.SuggestedFix, "$165,000") {
		t.Fatalf("suggested fix=%q", f.SuggestedFix)
	}
	if f.FinancialImpact == nil || *f.FinancialImpact != "$15,000" {
		t.Fatalf("financial impact=%v", f.FinancialImpact)
	}
	if !strings.Contains(f.Description, "8.3%") {
		t.Fatalf("description=%q", f.Description)
	}
	if len(f.Documents) != 2 || f.Documents[0].ID != docs[0].ID || f.Documents[1].ID != docs[1].ID {
		t.Fatalf("documents=%+v", f.Documents)
	}
}

func TestPairwiseDeadlineMismatch(t *testing.T) {
	f := DefaultRules().Pairwise(pair("Delivery due March 1, 2025", "Delivery due March 31, 2025"))
	if f == nil || f.Type != contradiction.TypeDeadline || f.Severity != contradiction.SeverityHigh {
		t.Fatalf("got %+v", f)
	}
	if !strings.Contains(f.Description, "30 days") {
		t.Fatalf("description=%q", f.Description)
	}
	if f.FinancialImpact == nil || *f.FinancialImpact != "$30,000" {
		t.Fatalf("financial impact=%v", f.FinancialImpact)
	}
}

func TestPairwiseEntityMismatch(t *testing.T) {
	f := DefaultRules().Pairwise(pair("Services provided by Acme Widgets Inc.", "Payment to Acme Widget LLC."))
	if f == nil || f.Type != contradiction.TypeCompliance || f.Severity != contradiction.SeverityHigh {
		t.Fatalf("got %+v", f)
	}
	if !strings.Contains(f.Description, `"acme"`) {
		t.Fatalf("description=%q", f.Description)
	}
}

func TestPairwiseNothingToReport(t *testing.T) {
	r := DefaultRules()
	docs := pair("Fee: $100", "Fee: $100")
	if f := r.Pairwise(docs); f != nil {
		t.Fatalf("expected nil, got %+v", f)
	}
	f := r.CrossReviewRequired(docs)
	if f.Severity != contradiction.SeverityMedium || len(f.Documents) != 2 {
		t.Fatalf("got %+v", f)
	}
}

func TestPairwiseStopsAtFirstPair(t *testing.T) {
	docs := []Document{
		{ID: uuid.New(), Text: "Fee: $100"},
		{ID: uuid.New(), Text: "Fee: $100"},
		{ID: uuid.New(), Text: "Fee: $250"},
	}
	f := DefaultRules().Pairwise(docs)
	if f == nil || len(f.Documents) != 2 {
		t.Fatalf("got %+v", f)
	}
	if f.Documents[0].ID != docs[0].ID || f.Documents[1].ID != docs[2].ID {
		t.Fatalf("unexpected pair %+v", f.Documents)
	}
}
