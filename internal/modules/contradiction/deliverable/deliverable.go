// Package deliverable turns a finding into a ready-to-edit draft artifact.
package deliverable

import (
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/docsentinel-backend/internal/modules/contradiction"
)

const filingWindow = 30 * 24 * time.Hour

// Generate is keyed purely on f.Type. Unknown types fall through to a compliance filing.
func Generate(f contradiction.Finding, now time.Time) contradiction.Deliverable {
	switch f.Type {
	case contradiction.TypeBudget:
		return contradiction.Deliverable{Kind: contradiction.DeliverableEmailDraft, Email: emailDraft(f)}
	case contradiction.TypeDeadline:
		return contradiction.Deliverable{Kind: contradiction.DeliverableRevisedDeck, Deck: revisedDeck(f)}
	default:
		return contradiction.Deliverable{Kind: contradiction.DeliverableComplianceFiling, Filing: complianceFiling(f, now)}
	}
}

func emailDraft(f contradiction.Finding) *contradiction.EmailDraft {
	impact := "an unquantified amount"
	if f.FinancialImpact != nil && strings.TrimSpace(*f.FinancialImpact) != "" {
		impact = strings.TrimSpace(*f.FinancialImpact)
	}
	var b strings.Builder
	b.WriteString("Hello,\n\n")
	fmt.Fprintf(&b, "During review we found a budget discrepancy: %s\n\n", orDefault(f.Description, f.Title))
	fmt.Fprintf(&b, "Financial impact: %s.\n", impact)
	if f.PreventedLoss != nil && strings.TrimSpace(*f.PreventedLoss) != "" {
		fmt.Fprintf(&b, "Resolving this before signature avoids a potential loss of %s.\n", strings.TrimSpace(*f.PreventedLoss))
	}
	if s := strings.TrimSpace(f.SuggestedFix); s != "" {
		fmt.Fprintf(&b, "\nProposed correction: %s\n", s)
	}
	b.WriteString("\nCould you confirm the correct figure and send an updated version?\n\nThank you.")
	return &contradiction.EmailDraft{
		Subject:     "Action required: " + orDefault(f.Title, "budget discrepancy"),
		Body:        b.String(),
		Attachments: attachments(f),
		Priority:    "HIGH",
	}
}

func attachments(f contradiction.Finding) []string {
	if len(f.Documents) == 0 {
		return []string{"[attach source document]", "[attach marked-up excerpt]"}
	}
	out := make([]string, 0, len(f.Documents))
	for _, d := range f.Documents {
		out = append(out, fmt.Sprintf("[attach %s]", orDefault(d.Name, d.ID.String())))
	}
	return out
}

func revisedDeck(f contradiction.Finding) *contradiction.RevisedDeck {
	changes := []string{
		"Timeline slide: align all milestone dates with the confirmed schedule",
		"Risks slide: " + orDefault(f.Description, "note the conflicting dates"),
	}
	if s := strings.TrimSpace(f.SuggestedFix); s != "" {
		changes = append(changes, "Next steps slide: "+s)
	}
	return &contradiction.RevisedDeck{
		Title:        "Revised timeline: " + orDefault(f.Title, "schedule correction"),
		SlideChanges: changes,
		DownloadURL:  "[download link pending]",
	}
}

func complianceFiling(f contradiction.Finding, now time.Time) *contradiction.ComplianceFiling {
	form := "Vendor Compliance Attestation Request"
	switch f.Type {
	case contradiction.TypeLegal:
		form = "Legal Clarification Request"
	case contradiction.TypeVersion:
		form = "Document Version Reconciliation"
	case contradiction.TypeData:
		form = "Data Correction Request"
	}
	return &contradiction.ComplianceFiling{
		FormType:    form,
		Title:       orDefault(f.Title, form),
		Description: orDefault(f.Description, f.Recommendation),
		Status:      "DRAFT",
		DueDate:     now.UTC().Add(filingWindow).Format(time.RFC3339),
		Urgency:     "CRITICAL",
	}
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return strings.TrimSpace(s)
}
