// Package contradiction holds the closed taxonomy shared by the extraction,
// analysis and deliverable stages. Values coming from the reasoning backend are
// mapped onto these types before any other component sees them.
package contradiction

import (
	"math"
	"strings"

	"github.com/google/uuid"
)

type Type string

const (
	TypeBudget     Type = "budget"
	TypeLegal      Type = "legal"
	TypeCompliance Type = "compliance"
	TypeVersion    Type = "version"
	TypeDeadline   Type = "deadline"
	TypeData       Type = "data"
)

// Types lists the taxonomy in prompt order.
var Types = []Type{TypeBudget, TypeLegal, TypeCompliance, TypeVersion, TypeDeadline, TypeData}

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// RiskLevel shares the severity scale.
type RiskLevel = Severity

const (
	DefaultType       = TypeData
	DefaultSeverity   = SeverityMedium
	DefaultConfidence = 0.8
)

// ParseType maps s onto the taxonomy. ok is false when the default was substituted.
func ParseType(s string) (Type, bool) {
	switch t := Type(strings.ToLower(strings.TrimSpace(s))); t {
	case TypeBudget, TypeLegal, TypeCompliance, TypeVersion, TypeDeadline, TypeData:
		return t, true
	}
	return DefaultType, false
}

// ParseSeverity maps s onto the severity scale. ok is false when the default was substituted.
func ParseSeverity(s string) (Severity, bool) {
	switch v := Severity(strings.ToLower(strings.TrimSpace(s))); v {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return v, true
	}
	return DefaultSeverity, false
}

func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

// MaxSeverity returns the highest severity among findings, or fallback when there are none.
func MaxSeverity(findings []Finding, fallback Severity) Severity {
	out := Severity("")
	for _, f := range findings {
		if f.Severity.Rank() > out.Rank() {
			out = f.Severity
		}
	}
	if out == "" {
		return fallback
	}
	return out
}

// ClampConfidence bounds v to [0,1]; NaN becomes the default confidence.
func ClampConfidence(v float64) float64 {
	if math.IsNaN(v) {
		return DefaultConfidence
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// DocumentRef identifies one participant of a cross-document finding.
type DocumentRef struct {
	ID      uuid.UUID `json:"documentId"`
	Name    string    `json:"documentName"`
	Snippet string    `json:"snippet,omitempty"`
}

type Highlight struct {
	Page   int     `json:"page"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Finding is a repaired contradiction. Type and Severity are always members of the taxonomy.
type Finding struct {
	Type            Type
	Severity        Severity
	Title           string
	Description     string
	PageNumber      *int
	LineNumber      *int
	TextSnippet     string
	PotentialImpact string
	Recommendation  string
	SuggestedFix    string
	FinancialImpact *string
	PreventedLoss   *string

	// Documents is set for cross-document findings.
	Documents []DocumentRef

	Deliverable *Deliverable
	Highlight   *Highlight

	// Source names the producer: "backend", "fallback_parse" or a heuristic detector.
	Source string
}

type DeliverableKind string

const (
	DeliverableEmailDraft       DeliverableKind = "email_draft"
	DeliverableRevisedDeck      DeliverableKind = "revised_deck"
	DeliverableComplianceFiling DeliverableKind = "compliance_filing"
)

// Deliverable is a tagged union; exactly one payload matches Kind.
type Deliverable struct {
	Kind   DeliverableKind   `json:"kind"`
	Email  *EmailDraft       `json:"email,omitempty"`
	Deck   *RevisedDeck      `json:"deck,omitempty"`
	Filing *ComplianceFiling `json:"filing,omitempty"`
}

type EmailDraft struct {
	Subject     string   `json:"subject"`
	Body        string   `json:"body"`
	Attachments []string `json:"attachments"`
	Priority    string   `json:"priority"`
}

type RevisedDeck struct {
	Title        string   `json:"title"`
	SlideChanges []string `json:"slideChanges"`
	DownloadURL  string   `json:"downloadUrl"`
}

type ComplianceFiling struct {
	FormType    string `json:"formType"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	DueDate     string `json:"dueDate"`
	Urgency     string `json:"urgency"`
}
