package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/docsentinel-backend/internal/modules/contradiction"
	"github.com/yungbote/docsentinel-backend/internal/modules/contradiction/heuristics"
	"github.com/yungbote/docsentinel-backend/internal/observability"
	"github.com/yungbote/docsentinel-backend/internal/pkg/ctxutil"
)

const crossReviewSummary = "No cross-document contradictions were detected automatically; manual review recommended."

// AnalyzeCrossDocument compares a batch. Documents without text are dropped
// first; fewer than two remaining is ErrInsufficientDocuments.
func (a *Analyzer) AnalyzeCrossDocument(ctx context.Context, docs []DocumentText) (res *CrossResult, err error) {
	ctx = ctxutil.Default(ctx)
	members := make([]DocumentText, 0, len(docs))
	for _, d := range docs {
		if strings.TrimSpace(d.Text) != "" {
			members = append(members, d)
		}
	}
	if len(members) < 2 {
		return nil, ErrInsufficientDocuments
	}

	ctx, span := observability.StartSpan(ctx, "analysis.AnalyzeCrossDocument", attribute.Int("batch.size", len(members)))
	defer func() { observability.EndSpan(span, err) }()

	start := time.Now()
	raw, err := a.backend.Complete(ctx, crossSystemPrompt(), crossUserPrompt(members, a.cfg.MaxCrossExcerptChars), a.cfg.MaxTokens)
	if err != nil {
		return nil, fmt.Errorf("backend complete: %w", err)
	}

	out := CrossResult{Result: a.repairCross(raw, members), Documents: members}

	if len(out.Findings) == 0 {
		// The backend's own risk assessment described an empty result.
		out.RiskLevel = ""
		hdocs := make([]heuristics.Document, len(members))
		for i, m := range members {
			hdocs[i] = heuristics.Document{ID: m.ID, Name: m.Name, Text: m.Text}
		}
		if f := a.cfg.Rules.Pairwise(hdocs); f != nil {
			out.Findings = []contradiction.Finding{*f}
			out.Diagnostics.Fallback = "pairwise"
			out.Summary = fmt.Sprintf("Structural comparison flagged a %s mismatch between %s and %s.",
				f.Type, f.Documents[0].Name, f.Documents[1].Name)
		} else {
			out.Findings = []contradiction.Finding{a.cfg.Rules.CrossReviewRequired(hdocs)}
			out.Diagnostics.Fallback = "cross_review_required"
			out.Summary = crossReviewSummary
		}
		a.log.Info("backend reported no cross-document contradictions, used fallback",
			"documents", len(members), "fallback", out.Diagnostics.Fallback)
	}
	if out.RiskLevel == "" {
		out.RiskLevel = contradiction.MaxSeverity(out.Findings, contradiction.DefaultSeverity)
	}

	a.finalize(out.Findings)
	out.Model = a.backend.Model()
	out.RawResponse = raw
	out.Duration = time.Since(start)
	span.SetAttributes(attribute.Int("analysis.findings", len(out.Findings)))
	return &out, nil
}

func (a *Analyzer) repairCross(raw string, members []DocumentText) Result {
	payload, ok := decodeObject(raw)
	if !ok {
		a.log.Warn("backend response is not JSON, using generic finding", "raw_response", raw)
		res := unparseableResult(raw)
		for i := range res.Findings {
			res.Findings[i].Documents = allRefs(members)
		}
		return res
	}
	var out Result
	out.Diagnostics.SchemaViolations = violations(a.crossShape, payload)

	items := payload["crossDocumentContradictions"]
	if items == nil {
		items = payload["contradictions"]
	}
	for i, item := range objects(items, "crossDocumentContradictions", &out.Diagnostics) {
		f := repairFinding(item, i, &out.Diagnostics)
		f.Documents = resolveRefs(item, members, i, &out.Diagnostics)
		if f.TextSnippet == "" {
			for _, r := range f.Documents {
				if r.Snippet != "" {
					f.TextSnippet = r.Snippet
					break
				}
			}
		}
		if len(f.Documents) > 0 {
			for _, m := range members {
				if m.ID == f.Documents[0].ID {
					locateSnippet(a.cfg.Rules, &f, m.Text)
				}
			}
		}
		out.Findings = append(out.Findings, f)
	}
	out.Summary, out.RiskLevel, out.Confidence = repairEnvelope(payload, &out.Diagnostics)
	return out
}

// resolveRefs keeps only references to batch members, matching by id first and
// by name second. No valid reference means the whole batch participates.
func resolveRefs(item map[string]any, members []DocumentText, idx int, diag *Diagnostics) []contradiction.DocumentRef {
	type cand struct{ id, name, snippet string }
	var cands []cand
	for _, d := range objects(item["documents"], "documents", diag) {
		cands = append(cands, cand{
			id:      str(d["documentId"]),
			name:    str(d["documentName"]),
			snippet: str(d["snippet"]),
		})
	}
	if ids, ok := item["documentIds"].([]any); ok {
		for _, v := range ids {
			cands = append(cands, cand{id: str(v)})
		}
	}

	var refs []contradiction.DocumentRef
	seen := map[uuid.UUID]bool{}
	for _, c := range cands {
		m, ok := matchMember(c.id, c.name, members)
		if !ok {
			diag.repair("item %d: dropped reference %q", idx, firstNonEmpty(c.id, c.name))
			continue
		}
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		refs = append(refs, contradiction.DocumentRef{ID: m.ID, Name: m.Name, Snippet: c.snippet})
	}
	if len(refs) == 0 {
		diag.repair("item %d: no valid document references, using whole batch", idx)
		return allRefs(members)
	}
	return refs
}

func matchMember(id, name string, members []DocumentText) (DocumentText, bool) {
	if u, err := uuid.Parse(id); err == nil {
		for _, m := range members {
			if m.ID == u {
				return m, true
			}
		}
	}
	for _, key := range []string{name, id} {
		if key == "" {
			continue
		}
		for _, m := range members {
			if strings.EqualFold(strings.TrimSpace(m.Name), key) {
				return m, true
			}
		}
	}
	return DocumentText{}, false
}

func allRefs(members []DocumentText) []contradiction.DocumentRef {
	refs := make([]contradiction.DocumentRef, len(members))
	for i, m := range members {
		refs[i] = contradiction.DocumentRef{ID: m.ID, Name: m.Name}
	}
	return refs
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
