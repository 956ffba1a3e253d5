package heuristics

import (
	"fmt"
	"math"

	"github.com/yungbote/docsentinel-backend/internal/modules/contradiction"
	"github.com/yungbote/docsentinel-backend/internal/pkg/pointers"
)

// Pairwise compares every unordered pair of documents and returns the first
// structural difference it can explain, or nil.
func (r *Rules) Pairwise(docs []Document) *contradiction.Finding {
	for i := 0; i < len(docs); i++ {
		for j := i + 1; j < len(docs); j++ {
			if f := r.comparePair(docs[i], docs[j]); f != nil {
				return f
			}
		}
	}
	return nil
}

func (r *Rules) comparePair(a, b Document) *contradiction.Finding {
	if f := r.compareAmounts(a, b); f != nil {
		return f
	}
	if f := r.compareDates(a, b); f != nil {
		return f
	}
	return r.compareEntities(a, b)
}

func (r *Rules) ref(doc Document, idx, n int) contradiction.DocumentRef {
	return contradiction.DocumentRef{ID: doc.ID, Name: doc.Name, Snippet: r.Snippet(doc.Text, idx, n)}
}

func (r *Rules) compareAmounts(a, b Document) *contradiction.Finding {
	aa, ba := Amounts(a.Text), Amounts(b.Text)
	if len(aa) == 0 || len(ba) == 0 {
		return nil
	}
	x, y := aa[0], ba[0]
	if x.Key == y.Key {
		return nil
	}
	nameA, nameB := docLabel(a.Name), docLabel(b.Name)

	f := &contradiction.Finding{
		Type:     contradiction.TypeBudget,
		Severity: contradiction.SeverityCritical,
		Title:    fmt.Sprintf("Budget mismatch: %s vs %s", x.Raw, y.Raw),
		Recommendation: fmt.Sprintf(
			"Reconcile the figure in %s with %s before approval and confirm which one is contractually binding.", nameA, nameB),
		SuggestedFix: fmt.Sprintf(
			"Update %s to match %s (%s vs %s), or issue an amendment that states the agreed amount explicitly.",
			nameA, nameB, x.Raw, y.Raw),
		Documents: []contradiction.DocumentRef{r.ref(a, x.Index, len(x.Raw)), r.ref(b, y.Index, len(y.Raw))},
		Source:    "heuristic:pairwise_amount",
	}
	if x.Comparable(y) {
		variance := math.Abs(x.Value - y.Value)
		pct := 0.0
		if x.Value != 0 {
			pct = variance / math.Abs(x.Value) * 100
		}
		var diff string
		if x.Percent {
			diff = fmt.Sprintf("%s percentage points", trimFloat(variance))
		} else {
			diff = FormatMoney(x.Unit, variance)
			f.FinancialImpact = pointers.String(diff)
			f.PreventedLoss = pointers.String(diff)
		}
		f.Description = fmt.Sprintf(
			"%s states %s while %s states %s, a variance of %s (%.1f%%).",
			nameA, x.Raw, nameB, y.Raw, diff, pct)
		f.PotentialImpact = fmt.Sprintf(
			"Paying or committing against the wrong figure exposes the organization to %s of unplanned spend or penalty.", diff)
	} else {
		f.Description = fmt.Sprintf("%s states %s while %s states %s.", nameA, x.Raw, nameB, y.Raw)
		f.PotentialImpact = "The documents disagree on a committed amount, exposing the organization to unplanned spend or penalty."
	}
	r.locate(f, a.Text, x.Index, len(x.Raw))
	return f
}

func (r *Rules) compareDates(a, b Document) *contradiction.Finding {
	ad, bd := Dates(a.Text), Dates(b.Text)
	if len(ad) == 0 || len(bd) == 0 {
		return nil
	}
	x, y := ad[0], bd[0]
	if x.Key == y.Key {
		return nil
	}
	nameA, nameB := docLabel(a.Name), docLabel(b.Name)

	f := &contradiction.Finding{
		Type:            contradiction.TypeDeadline,
		Severity:        contradiction.SeverityHigh,
		Title:           fmt.Sprintf("Deadline mismatch: %s vs %s", x.Raw, y.Raw),
		Description:     fmt.Sprintf("%s sets %s while %s sets %s.", nameA, x.Raw, nameB, y.Raw),
		PotentialImpact: "Working to the later date risks missing the binding deadline.",
		Recommendation:  "Agree on the governing deadline and update the schedule in both documents.",
		SuggestedFix: fmt.Sprintf(
			"Align %s and %s on a single date (%s or %s) and circulate the revised timeline.", nameA, nameB, x.Raw, y.Raw),
		Documents: []contradiction.DocumentRef{r.ref(a, x.Index, len(x.Raw)), r.ref(b, y.Index, len(y.Raw))},
		Source:    "heuristic:pairwise_date",
	}
	if x.Parsed && y.Parsed {
		days := dayGap(x, y)
		exposure := FormatMoney(r.PenaltyCurrency, float64(days)*r.PerDayPenalty)
		f.Description = fmt.Sprintf("%s sets %s while %s sets %s, a difference of %d days.", nameA, x.Raw, nameB, y.Raw, days)
		f.PotentialImpact = fmt.Sprintf(
			"At %s per day of delay, missing the earlier deadline could cost %s.",
			FormatMoney(r.PenaltyCurrency, r.PerDayPenalty), exposure)
		f.FinancialImpact = pointers.String(exposure)
	}
	r.locate(f, a.Text, x.Index, len(x.Raw))
	return f
}

func (r *Rules) compareEntities(a, b Document) *contradiction.Finding {
	ae, be := r.Entities(a.Text), r.Entities(b.Text)
	if len(ae) == 0 || len(be) == 0 {
		return nil
	}
	for _, x := range ae {
		for _, y := range be {
			if x.Key == y.Key {
				continue
			}
			shared := r.SharedStem(x, y)
			if shared == "" {
				continue
			}
			nameA, nameB := docLabel(a.Name), docLabel(b.Name)
			f := &contradiction.Finding{
				Type:     contradiction.TypeCompliance,
				Severity: contradiction.SeverityHigh,
				Title:    fmt.Sprintf("Vendor name mismatch: %s vs %s", x.Raw, y.Raw),
				Description: fmt.Sprintf(
					"%s names %s while %s names %s. They share %q but are not the same legal entity name.",
					nameA, x.Raw, nameB, y.Raw, shared),
				PotentialImpact: "Contracting with or paying the wrong legal entity can void obligations and fail vendor due diligence.",
				Recommendation:  "Ask the vendor to confirm its exact legal entity name and correct the documents.",
				SuggestedFix: fmt.Sprintf(
					"Request written clarification from the vendor on whether %s and %s are the same entity, then amend the non-matching document.",
					x.Raw, y.Raw),
				Documents: []contradiction.DocumentRef{r.ref(a, x.Index, len(x.Raw)), r.ref(b, y.Index, len(y.Raw))},
				Source:    "heuristic:pairwise_entity",
			}
			r.locate(f, a.Text, x.Index, len(x.Raw))
			return f
		}
	}
	return nil
}

// CrossReviewRequired is emitted when neither the backend nor the pairwise pass found anything.
func (r *Rules) CrossReviewRequired(docs []Document) contradiction.Finding {
	refs := make([]contradiction.DocumentRef, 0, len(docs))
	for _, d := range docs {
		refs = append(refs, r.ref(d, 0, 0))
	}
	f := contradiction.Finding{
		Type:     contradiction.TypeCompliance,
		Severity: contradiction.SeverityMedium,
		Title:    "Cross-document review required",
		Description: fmt.Sprintf(
			"No contradictions were detected automatically across %d documents. A manual cross-check is recommended.", len(docs)),
		PotentialImpact: "Inconsistencies between related documents may remain undetected.",
		Recommendation:  "Have a reviewer compare amounts, dates and party names across the documents.",
		SuggestedFix:    "Schedule a side-by-side review of the documents and record the outcome on this finding.",
		Documents:       refs,
		Source:          "heuristic:cross_review_required",
	}
	if len(docs) > 0 {
		r.locate(&f, docs[0].Text, 0, 0)
	}
	return f
}

func trimFloat(v float64) string {
	return fmt.Sprintf("%g", math.Round(v*100)/100)
}
