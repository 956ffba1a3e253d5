// Package heuristics implements the deterministic passes that guarantee an
// actionable finding when the reasoning backend reports none.
package heuristics

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/docsentinel-backend/internal/modules/contradiction"
	"github.com/yungbote/docsentinel-backend/internal/pkg/pointers"
)

// Document is the input of the pattern passes.
type Document struct {
	ID   uuid.UUID
	Name string
	Text string
}

// Detector is one single-document strategy. Detect returns nil when it has nothing to report.
type Detector struct {
	Name   string
	Detect func(doc Document) *contradiction.Finding
}

// Detectors returns the single-document strategies in priority order.
func (r *Rules) Detectors() []Detector {
	return []Detector{
		{Name: "amount", Detect: r.detectAmounts},
		{Name: "date", Detect: r.detectDates},
		{Name: "compliance", Detect: r.detectCompliance},
	}
}

// ScanDocument runs every single-document strategy and collects what they report.
func (r *Rules) ScanDocument(doc Document) []contradiction.Finding {
	var out []contradiction.Finding
	for _, d := range r.Detectors() {
		if f := d.Detect(doc); f != nil {
			out = append(out, *f)
		}
	}
	return out
}

func (r *Rules) locate(f *contradiction.Finding, text string, idx, n int) {
	page, line := r.Locate(text, idx)
	f.PageNumber = pointers.Int(page)
	f.LineNumber = pointers.Int(line)
	f.TextSnippet = r.Snippet(text, idx, n)
}

func (r *Rules) detectAmounts(doc Document) *contradiction.Finding {
	amounts := distinctAmounts(Amounts(doc.Text))
	if len(amounts) < 2 {
		return nil
	}
	a, b := amounts[0], amounts[1]
	name := docLabel(doc.Name)

	f := &contradiction.Finding{
		Type:     contradiction.TypeBudget,
		Severity: contradiction.SeverityHigh,
		Title:    fmt.Sprintf("Conflicting figures: %s vs %s", a.Raw, b.Raw),
		Description: fmt.Sprintf(
			"%s cites both %s and %s. If they describe the same obligation, only one of them can be correct.",
			name, a.Raw, b.Raw),
		PotentialImpact: "Approving or invoicing against the wrong figure creates a budget gap.",
		Recommendation:  "Confirm the authoritative amount with the document owner and update every reference to it.",
		SuggestedFix: fmt.Sprintf(
			"Email template:\nSubject: Please confirm the amount in %s\n\nHi,\n\n%s lists %s in one place and %s in another. "+
				"Could you confirm which figure is correct so we can update all references before approval?\n\nThanks",
			name, name, a.Raw, b.Raw),
		Source: "heuristic:amount",
	}
	if a.Comparable(b) && !a.Percent {
		diff := FormatMoney(a.Unit, math.Abs(a.Value-b.Value))
		f.FinancialImpact = pointers.String(diff)
		f.PotentialImpact = fmt.Sprintf("Approving or invoicing against the wrong figure creates a %s budget gap.", diff)
	}
	r.locate(f, doc.Text, a.Index, len(a.Raw))
	return f
}

func (r *Rules) detectDates(doc Document) *contradiction.Finding {
	dates := distinctDates(Dates(doc.Text))
	if len(dates) < 2 {
		return nil
	}
	a, b := dates[0], dates[1]
	name := docLabel(doc.Name)
	desc := fmt.Sprintf("%s references %s and %s, which may describe the same milestone.", name, a.Raw, b.Raw)
	if a.Parsed && b.Parsed {
		desc = fmt.Sprintf("%s references %s and %s (%d days apart), which may describe the same milestone.",
			name, a.Raw, b.Raw, dayGap(a, b))
	}
	f := &contradiction.Finding{
		Type:            contradiction.TypeDeadline,
		Severity:        contradiction.SeverityMedium,
		Title:           fmt.Sprintf("Inconsistent dates: %s vs %s", a.Raw, b.Raw),
		Description:     desc,
		PotentialImpact: "Teams working from different dates can miss the contractual deadline.",
		Recommendation:  "Confirm the governing date and align every schedule reference to it.",
		SuggestedFix:    fmt.Sprintf("Replace %s and %s with the single agreed deadline and circulate the corrected schedule.", a.Raw, b.Raw),
		Source:          "heuristic:date",
	}
	r.locate(f, doc.Text, a.Index, len(a.Raw))
	return f
}

func (r *Rules) detectCompliance(doc Document) *contradiction.Finding {
	mentions := r.ComplianceMentions(doc.Text)
	if len(mentions) == 0 {
		return nil
	}
	entities := r.Entities(doc.Text)
	if len(entities) == 0 {
		return nil
	}
	for _, m := range mentions {
		for _, e := range entities {
			if abs(e.Index-m[0]) > r.ComplianceWindow {
				continue
			}
			keyword := doc.Text[m[0]:m[1]]
			f := &contradiction.Finding{
				Type:     contradiction.TypeCompliance,
				Severity: contradiction.SeverityHigh,
				Title:    fmt.Sprintf("%s claim by %s needs attestation", keyword, e.Raw),
				Description: fmt.Sprintf(
					"%s is referenced alongside a %s claim, but no supporting attestation accompanies the document.",
					e.Raw, keyword),
				PotentialImpact: "Relying on an unverified compliance claim can breach regulatory or customer obligations.",
				Recommendation:  fmt.Sprintf("Request current %s evidence from %s before relying on this claim.", keyword, e.Raw),
				SuggestedFix: fmt.Sprintf(
					"Send %s a vendor attestation request for their latest %s report or certificate and attach it to %s.",
					e.Raw, keyword, docLabel(doc.Name)),
				Source: "heuristic:compliance",
			}
			r.locate(f, doc.Text, m[0], m[1]-m[0])
			return f
		}
	}
	return nil
}

// ReviewRequired is emitted when neither the backend nor any detector produced a finding.
func (r *Rules) ReviewRequired(doc Document) contradiction.Finding {
	f := contradiction.Finding{
		Type:            contradiction.TypeCompliance,
		Severity:        contradiction.SeverityMedium,
		Title:           "Manual review required",
		Description:     fmt.Sprintf("No contradictions were detected automatically in %s. A manual review is recommended before relying on it.", docLabel(doc.Name)),
		PotentialImpact: "Issues that automated checks cannot see may remain unaddressed.",
		Recommendation:  "Have a reviewer confirm key figures, dates and obligations against the source agreements.",
		SuggestedFix:    "Schedule a manual review and record its outcome on this finding.",
		Source:          "heuristic:review_required",
	}
	r.locate(&f, doc.Text, 0, 0)
	return f
}

func docLabel(name string) string {
	if strings.TrimSpace(name) == "" {
		return "The document"
	}
	return strings.TrimSpace(name)
}

func dayGap(a, b DateToken) int {
	d := b.Time.Sub(a.Time).Hours() / 24
	return int(math.Round(math.Abs(d)))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
