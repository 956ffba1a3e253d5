// Package analysis asks the reasoning backend for contradictions, repairs
// whatever comes back into the closed taxonomy, and falls back to the
// deterministic heuristics when the backend reports nothing.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/yungbote/docsentinel-backend/internal/modules/contradiction"
	"github.com/yungbote/docsentinel-backend/internal/modules/contradiction/heuristics"
	"github.com/yungbote/docsentinel-backend/internal/pkg/logger"
)

// ErrInsufficientDocuments is returned when fewer than two documents carry text.
var ErrInsufficientDocuments = errors.New("cross-document analysis needs at least two documents with text")

// Backend is the reasoning service. Complete returns the raw model text.
type Backend interface {
	Complete(ctx context.Context, system, user string, maxTokens int) (string, error)
	Model() string
}

type Config struct {
	MaxDocumentChars     int
	MaxCrossExcerptChars int
	MaxTokens            int
	Rules                *heuristics.Rules
	Now                  func() time.Time
}

func (c Config) withDefaults() Config {
	if c.MaxDocumentChars <= 0 {
		c.MaxDocumentChars = 60000
	}
	if c.MaxCrossExcerptChars <= 0 {
		c.MaxCrossExcerptChars = 15000
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 4000
	}
	if c.Rules == nil {
		c.Rules = heuristics.DefaultRules()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// DocumentContext identifies the document a single analysis is about.
type DocumentContext struct {
	DocumentID   uuid.UUID
	DocumentName string
}

// DocumentText is one member of a cross-document batch.
type DocumentText struct {
	ID   uuid.UUID
	Name string
	Text string
}

// Diagnostics records everything the repair layer had to do. It is persisted
// next to the raw response and never shown as an error.
type Diagnostics struct {
	ParseFailed      bool     `json:"parseFailed,omitempty"`
	SchemaViolations []string `json:"schemaViolations,omitempty"`
	Repairs          []string `json:"repairs,omitempty"`
	Fallback         string   `json:"fallback,omitempty"`
}

func (d *Diagnostics) repair(format string, args ...any) {
	d.Repairs = append(d.Repairs, fmt.Sprintf(format, args...))
}

type Result struct {
	Findings    []contradiction.Finding
	Summary     string
	RiskLevel   contradiction.RiskLevel
	Confidence  float64
	Model       string
	RawResponse string
	Diagnostics Diagnostics
	Duration    time.Duration
}

type CrossResult struct {
	Result
	// Documents are the batch members that took part, in input order.
	Documents []DocumentText
}

type Analyzer struct {
	log         *logger.Logger
	backend     Backend
	cfg         Config
	singleShape *jsonschema.Schema
	crossShape  *jsonschema.Schema
}

func New(log *logger.Logger, backend Backend, cfg Config) (*Analyzer, error) {
	if backend == nil {
		return nil, fmt.Errorf("analysis: backend is required")
	}
	single, err := compileSchema("single.json", singleSchema())
	if err != nil {
		return nil, err
	}
	cross, err := compileSchema("cross.json", crossSchema())
	if err != nil {
		return nil, err
	}
	return &Analyzer{
		log:         log.With("service", "Analyzer"),
		backend:     backend,
		cfg:         cfg.withDefaults(),
		singleShape: single,
		crossShape:  cross,
	}, nil
}

// Model names the backend model recorded on analyses.
func (a *Analyzer) Model() string { return a.backend.Model() }

// finalize attaches the deliverable and placeholder highlight to every finding.
func (a *Analyzer) finalize(findings []contradiction.Finding) {
	now := a.cfg.Now()
	for i := range findings {
		d := deliverableFor(findings[i], now)
		findings[i].Deliverable = &d
		h := placeholderHighlight(findings[i])
		findings[i].Highlight = &h
	}
}

// placeholderHighlight is a page-relative box derived from the synthetic locator.
func placeholderHighlight(f contradiction.Finding) contradiction.Highlight {
	page, line := 1, 1
	if f.PageNumber != nil && *f.PageNumber > 0 {
		page = *f.PageNumber
	}
	if f.LineNumber != nil && *f.LineNumber > 0 {
		line = *f.LineNumber
	}
	y := 72 + float64((line-1)%48)*14
	return contradiction.Highlight{Page: page, X: 72, Y: y, Width: 468, Height: 14}
}
