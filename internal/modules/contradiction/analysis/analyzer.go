package analysis

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/docsentinel-backend/internal/modules/contradiction"
	"github.com/yungbote/docsentinel-backend/internal/modules/contradiction/heuristics"
	"github.com/yungbote/docsentinel-backend/internal/observability"
	"github.com/yungbote/docsentinel-backend/internal/pkg/ctxutil"
)

const reviewSummary = "No contradictions were detected automatically; manual review recommended."

// Analyze runs the single-document analysis. Only backend transport errors
// are returned; malformed replies are repaired into findings.
func (a *Analyzer) Analyze(ctx context.Context, text string, dc DocumentContext) (res *Result, err error) {
	ctx = ctxutil.Default(ctx)
	ctx, span := observability.StartSpan(ctx, "analysis.Analyze",
		attribute.String("document.id", dc.DocumentID.String()),
		attribute.Int("document.chars", len(text)),
	)
	defer func() { observability.EndSpan(span, err) }()

	start := time.Now()
	raw, err := a.backend.Complete(ctx, singleSystemPrompt(), singleUserPrompt(dc.DocumentName, text, a.cfg.MaxDocumentChars), a.cfg.MaxTokens)
	if err != nil {
		return nil, fmt.Errorf("backend complete: %w", err)
	}

	out := a.repairSingle(raw, text)
	doc := heuristics.Document{ID: dc.DocumentID, Name: dc.DocumentName, Text: text}

	if len(out.Findings) == 0 {
		// The backend's own risk assessment described an empty result.
		out.RiskLevel = ""
		out.Findings = a.cfg.Rules.ScanDocument(doc)
		if len(out.Findings) > 0 {
			out.Diagnostics.Fallback = "detectors"
			out.Summary = fmt.Sprintf("Pattern checks flagged %d potential issue(s) that need confirmation.", len(out.Findings))
		} else {
			out.Findings = []contradiction.Finding{a.cfg.Rules.ReviewRequired(doc)}
			out.Diagnostics.Fallback = "review_required"
			out.Summary = reviewSummary
		}
		a.log.Info("backend reported no contradictions, used fallback",
			"document_id", dc.DocumentID, "fallback", out.Diagnostics.Fallback, "findings", len(out.Findings))
	}
	if out.RiskLevel == "" {
		out.RiskLevel = contradiction.MaxSeverity(out.Findings, contradiction.DefaultSeverity)
	}

	a.finalize(out.Findings)
	out.Model = a.backend.Model()
	out.RawResponse = raw
	out.Duration = time.Since(start)
	span.SetAttributes(attribute.Int("analysis.findings", len(out.Findings)), attribute.String("analysis.risk", string(out.RiskLevel)))
	return &out, nil
}

func (a *Analyzer) repairSingle(raw, text string) Result {
	payload, ok := decodeObject(raw)
	if !ok {
		a.log.Warn("backend response is not JSON, using generic finding", "raw_response", raw)
		return unparseableResult(raw)
	}
	var out Result
	out.Diagnostics.SchemaViolations = violations(a.singleShape, payload)

	items := payload["contradictions"]
	if items == nil {
		items = payload["findings"]
	}
	for i, item := range objects(items, "contradictions", &out.Diagnostics) {
		f := repairFinding(item, i, &out.Diagnostics)
		locateSnippet(a.cfg.Rules, &f, text)
		out.Findings = append(out.Findings, f)
	}
	out.Summary, out.RiskLevel, out.Confidence = repairEnvelope(payload, &out.Diagnostics)
	return out
}
