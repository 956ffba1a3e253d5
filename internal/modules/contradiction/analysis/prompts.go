package analysis

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/yungbote/docsentinel-backend/internal/modules/contradiction"
)

const findingShape = `{
  "type": one of [%s],
  "severity": one of ["low","medium","high","critical"],
  "title": short headline,
  "description": what contradicts what,
  "pageNumber": integer or null,
  "lineNumber": integer or null,
  "textSnippet": exact quote from the document,
  "potentialImpact": business consequence,
  "recommendation": what the reader should do,
  "suggestedFix": concrete corrected wording or action,
  "financialImpact": money at stake as text or null,
  "preventedLoss": money saved by fixing it as text or null%s
}`

func taxonomy() string {
	parts := make([]string, len(contradiction.Types))
	for i, t := range contradiction.Types {
		parts[i] = fmt.Sprintf("%q", t)
	}
	return strings.Join(parts, ",")
}

func singleSystemPrompt() string {
	return `You review business documents (contracts, invoices, proposals, policies) for contradictions and risky inconsistencies.
Contradiction types:
- budget: conflicting amounts, totals, rates or percentages
- legal: conflicting obligations, terms or governing clauses
- compliance: unsupported or conflicting certification, audit or regulatory claims
- version: references to superseded versions, drafts or mismatched revisions
- deadline: conflicting dates, durations or milestones
- data: conflicting facts, names, quantities or identifiers
Respond with a single JSON object and nothing else.`
}

func singleUserPrompt(name, text string, maxChars int) string {
	shape := fmt.Sprintf(findingShape, taxonomy(), "")
	if strings.TrimSpace(name) == "" {
		name = "untitled"
	}
	return fmt.Sprintf(`Analyze the document %q.

Return JSON of the form:
{
  "contradictions": [%s],
  "summary": one paragraph overview,
  "riskLevel": one of ["low","medium","high","critical"],
  "confidenceScore": number between 0 and 1
}

Document text:
"""
%s
"""`, name, shape, truncateRunes(text, maxChars))
}

func crossSystemPrompt() string {
	return singleSystemPrompt() + `
You are comparing several documents from the same deal. Report only contradictions BETWEEN documents, never issues inside a single document.`
}

func crossUserPrompt(docs []DocumentText, maxChars int) string {
	shape := fmt.Sprintf(findingShape, taxonomy(), `,
  "documents": [{"documentId": id from the list below, "documentName": name, "snippet": exact quote from that document}]`)
	var sb strings.Builder
	fmt.Fprintf(&sb, "Compare the following %d documents.\n\nReturn JSON of the form:\n{\n  \"crossDocumentContradictions\": [%s],\n", len(docs), shape)
	sb.WriteString("  \"summary\": one paragraph overview,\n  \"riskLevel\": one of [\"low\",\"medium\",\"high\",\"critical\"],\n  \"confidenceScore\": number between 0 and 1\n}\n")
	for i, d := range docs {
		fmt.Fprintf(&sb, "\n=== Document %d ===\ndocumentId: %s\ndocumentName: %s\n\"\"\"\n%s\n\"\"\"\n", i+1, d.ID, d.Name, truncateRunes(d.Text, maxChars))
	}
	return sb.String()
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
