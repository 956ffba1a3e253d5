package analysis

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/yungbote/docsentinel-backend/internal/modules/contradiction"
	"github.com/yungbote/docsentinel-backend/internal/modules/contradiction/deliverable"
	"github.com/yungbote/docsentinel-backend/internal/modules/contradiction/heuristics"
	"github.com/yungbote/docsentinel-backend/internal/pkg/pointers"
)

const (
	rawDescriptionLimit = 500

	fallbackSummary        = "Analysis completed"
	placeholderDescription = "The analysis flagged this item without further detail."
	placeholderImpact      = "Unresolved inconsistencies can lead to disputes, delays or unplanned cost."
	placeholderRecommend   = "Review the flagged section with the document owner and confirm the correct terms."
	placeholderFix         = "Correct the inconsistent statement so that every reference agrees."
)

var deliverableFor = deliverable.Generate

// decodeObject extracts the JSON object embedded in a model reply. Code fences
// and any prose before the first '{' or after the last '}' are ignored.
func decodeObject(raw string) (map[string]any, bool) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return nil, false
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(s[start:end+1]), &out); err != nil {
		return nil, false
	}
	return out, true
}

// unparseableResult is what a non-JSON reply turns into.
func unparseableResult(raw string) Result {
	desc := strings.TrimSpace(truncateRunes(raw, rawDescriptionLimit))
	if desc == "" {
		desc = "The reasoning backend returned an empty response."
	}
	return Result{
		Findings: []contradiction.Finding{{
			Type:            contradiction.DefaultType,
			Severity:        contradiction.DefaultSeverity,
			Title:           "Unstructured analysis response",
			Description:     desc,
			PotentialImpact: placeholderImpact,
			Recommendation:  placeholderRecommend,
			SuggestedFix:    placeholderFix,
			Source:          "fallback_parse",
		}},
		Summary:     fallbackSummary,
		RiskLevel:   contradiction.SeverityMedium,
		Confidence:  contradiction.DefaultConfidence,
		Diagnostics: Diagnostics{ParseFailed: true},
	}
}

// repairFinding maps one backend item onto the taxonomy, filling placeholders.
func repairFinding(item map[string]any, idx int, diag *Diagnostics) contradiction.Finding {
	f := contradiction.Finding{Source: "backend"}

	var ok bool
	if f.Type, ok = contradiction.ParseType(str(item["type"])); !ok {
		diag.repair("item %d: type %q -> %s", idx, str(item["type"]), f.Type)
	}
	if f.Severity, ok = contradiction.ParseSeverity(str(item["severity"])); !ok {
		diag.repair("item %d: severity %q -> %s", idx, str(item["severity"]), f.Severity)
	}

	f.Title = str(item["title"])
	if f.Title == "" {
		f.Title = fmt.Sprintf("Possible %s contradiction", f.Type)
		diag.repair("item %d: title placeholder", idx)
	}
	f.Description = orPlaceholder(str(item["description"]), placeholderDescription, idx, "description", diag)
	f.PotentialImpact = orPlaceholder(str(item["potentialImpact"]), placeholderImpact, idx, "potentialImpact", diag)
	f.Recommendation = orPlaceholder(str(item["recommendation"]), placeholderRecommend, idx, "recommendation", diag)
	f.SuggestedFix = orPlaceholder(str(item["suggestedFix"]), placeholderFix, idx, "suggestedFix", diag)
	f.TextSnippet = str(item["textSnippet"])

	if n, ok := positiveInt(item["pageNumber"]); ok {
		f.PageNumber = pointers.Int(n)
	}
	if n, ok := positiveInt(item["lineNumber"]); ok {
		f.LineNumber = pointers.Int(n)
	}
	f.FinancialImpact = money(item["financialImpact"])
	f.PreventedLoss = money(item["preventedLoss"])
	return f
}

func orPlaceholder(v, placeholder string, idx int, field string, diag *Diagnostics) string {
	if v != "" {
		return v
	}
	diag.repair("item %d: %s placeholder", idx, field)
	return placeholder
}

// repairEnvelope reads summary, risk and confidence. Risk is left empty when
// missing so that it can be derived from the final findings.
func repairEnvelope(payload map[string]any, diag *Diagnostics) (summary string, risk contradiction.RiskLevel, confidence float64) {
	summary = str(payload["summary"])
	if summary == "" {
		summary = fallbackSummary
		diag.repair("summary placeholder")
	}

	if raw := str(payload["riskLevel"]); raw != "" {
		if r, ok := contradiction.ParseSeverity(raw); ok {
			risk = r
		} else {
			diag.repair("riskLevel %q dropped", raw)
		}
	}

	confidence = contradiction.DefaultConfidence
	v, ok := number(payload["confidenceScore"])
	if !ok {
		v, ok = number(payload["confidence"])
	}
	if ok {
		c := contradiction.ClampConfidence(v)
		if c != v {
			diag.repair("confidence %v clamped to %v", v, c)
		}
		confidence = c
	} else {
		diag.repair("confidence defaulted")
	}
	return summary, risk, confidence
}

// objects returns the object members of a JSON array value, noting anything else.
func objects(v any, key string, diag *Diagnostics) []map[string]any {
	if v == nil {
		return nil
	}
	list, ok := v.([]any)
	if !ok {
		diag.repair("%s is %T, not a list", key, v)
		return nil
	}
	out := make([]map[string]any, 0, len(list))
	for i, it := range list {
		m, ok := it.(map[string]any)
		if !ok {
			diag.repair("%s[%d] is %T, skipped", key, i, it)
			continue
		}
		out = append(out, m)
	}
	return out
}

// locateSnippet fills a missing page/line from the snippet's position in text.
func locateSnippet(rules *heuristics.Rules, f *contradiction.Finding, text string) {
	if f.PageNumber != nil || f.TextSnippet == "" {
		return
	}
	idx := strings.Index(text, f.TextSnippet)
	if idx < 0 {
		return
	}
	page, line := rules.Locate(text, idx)
	f.PageNumber = pointers.Int(page)
	if f.LineNumber == nil {
		f.LineNumber = pointers.Int(line)
	}
}

func str(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

func number(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, !math.IsNaN(t)
	case string:
		s := strings.TrimSuffix(strings.TrimSpace(t), "%")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		if strings.HasSuffix(strings.TrimSpace(t), "%") {
			f /= 100
		}
		return f, true
	}
	return 0, false
}

func positiveInt(v any) (int, bool) {
	f, ok := number(v)
	if !ok || f < 1 || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

// money keeps text as given and renders bare numbers as dollars.
func money(v any) *string {
	switch t := v.(type) {
	case string:
		if s := strings.TrimSpace(t); s != "" && !strings.EqualFold(s, "null") {
			return pointers.String(s)
		}
	case float64:
		return pointers.String(heuristics.FormatMoney("$", t))
	}
	return nil
}
