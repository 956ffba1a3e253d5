package gcp

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"

	"github.com/yungbote/docsentinel-backend/internal/pkg/ctxutil"
	"github.com/yungbote/docsentinel-backend/internal/pkg/envutil"
	"github.com/yungbote/docsentinel-backend/internal/pkg/logger"
)

// Online processing rejects larger payloads.
const maxOnlineBytes = 20 << 20

type DocAIConfig struct {
	ProjectID        string
	Location         string
	ProcessorID      string
	ProcessorVersion string
	Timeout          time.Duration
}

func DocAIConfigFromEnv() DocAIConfig {
	return DocAIConfig{
		ProjectID:        envutil.String("DOCUMENTAI_PROJECT_ID", ""),
		Location:         envutil.String("DOCUMENTAI_LOCATION", "us"),
		ProcessorID:      envutil.String("DOCUMENTAI_PROCESSOR_ID", ""),
		ProcessorVersion: envutil.String("DOCUMENTAI_PROCESSOR_VERSION", ""),
		Timeout:          envutil.Seconds("DOCUMENTAI_TIMEOUT_SECONDS", 3*time.Minute),
	}
}

func (c DocAIConfig) Enabled() bool {
	return processorName(c.ProjectID, c.Location, c.ProcessorID, c.ProcessorVersion) != ""
}

type processFunc func(ctx context.Context, req *documentaipb.ProcessRequest) (*documentaipb.ProcessResponse, error)

// DocAIParser is the primary PDF parser when a Document AI processor is configured.
type DocAIParser struct {
	log     *logger.Logger
	name    string
	timeout time.Duration
	client  *documentai.DocumentProcessorClient
	process processFunc
}

func NewDocAIParser(ctx context.Context, log *logger.Logger, cfg DocAIConfig) (*DocAIParser, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	name := processorName(cfg.ProjectID, cfg.Location, cfg.ProcessorID, cfg.ProcessorVersion)
	if name == "" {
		return nil, fmt.Errorf("documentai processor not configured")
	}
	endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", strings.TrimSpace(cfg.Location))
	opts := append([]option.ClientOption{option.WithEndpoint(endpoint)}, ClientOptionsFromEnv()...)
	c, err := documentai.NewDocumentProcessorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("documentai client: %w", err)
	}
	p := newDocAIParser(log, name, cfg.Timeout, func(ctx context.Context, req *documentaipb.ProcessRequest) (*documentaipb.ProcessResponse, error) {
		return c.ProcessDocument(ctx, req)
	})
	p.client = c
	p.log.Info("Document AI initialized", "endpoint", endpoint, "processor", name)
	return p, nil
}

func newDocAIParser(log *logger.Logger, name string, timeout time.Duration, fn processFunc) *DocAIParser {
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	return &DocAIParser{
		log:     log.With("service", "gcp.DocAIParser"),
		name:    name,
		timeout: timeout,
		process: fn,
	}
}

func (p *DocAIParser) Name() string { return "documentai" }

func (p *DocAIParser) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}

func (p *DocAIParser) ParsePDF(ctx context.Context, path string) (string, error) {
	ctx = ctxutil.Default(ctx)
	fi, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if fi.Size() > maxOnlineBytes {
		return "", fmt.Errorf("pdf too large for online processing (%d bytes)", fi.Size())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.process(ctx, &documentaipb.ProcessRequest{
		Name: p.name,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{Content: data, MimeType: "application/pdf"},
		},
	})
	if err != nil {
		return "", fmt.Errorf("documentai ProcessDocument: %w", err)
	}
	if resp == nil || resp.Document == nil {
		return "", nil
	}
	return documentText(resp.Document), nil
}

// documentText rebuilds page-ordered text from paragraphs and appends tables as
// markdown so figures stay adjacent to their headers. Falls back to doc.Text.
func documentText(doc *documentaipb.Document) string {
	var b strings.Builder
	for _, page := range doc.GetPages() {
		if page == nil {
			continue
		}
		var pageText strings.Builder
		for _, para := range page.GetParagraphs() {
			t := strings.TrimSpace(textFromAnchor(doc.Text, para.GetLayout().GetTextAnchor()))
			if t == "" {
				continue
			}
			pageText.WriteString(t)
			pageText.WriteString("\n")
		}
		for _, table := range page.GetTables() {
			if md := tableToMarkdown(doc.Text, table); md != "" {
				pageText.WriteString(md)
			}
		}
		if s := strings.TrimSpace(pageText.String()); s != "" {
			if b.Len() > 0 {
				b.WriteString("\n\n")
			}
			b.WriteString(s)
		}
	}
	if b.Len() == 0 {
		return strings.TrimSpace(doc.Text)
	}
	return b.String()
}

func textFromAnchor(full string, anchor *documentaipb.Document_TextAnchor) string {
	if anchor == nil || len(anchor.TextSegments) == 0 || full == "" {
		return ""
	}
	var b strings.Builder
	for _, seg := range anchor.TextSegments {
		if seg == nil {
			continue
		}
		start, end := int(seg.StartIndex), int(seg.EndIndex)
		if start < 0 {
			start = 0
		}
		if end > len(full) {
			end = len(full)
		}
		if start >= end {
			continue
		}
		b.WriteString(full[start:end])
	}
	return b.String()
}

func tableToMarkdown(full string, t *documentaipb.Document_Page_Table) string {
	if t == nil {
		return ""
	}
	var rows [][]string
	for _, r := range t.HeaderRows {
		rows = append(rows, rowCells(full, r))
	}
	for _, r := range t.BodyRows {
		rows = append(rows, rowCells(full, r))
	}
	if len(rows) == 0 {
		return ""
	}
	cols := 0
	for _, r := range rows {
		if len(r) > cols {
			cols = len(r)
		}
	}
	if cols == 0 {
		return ""
	}

	var out strings.Builder
	for i, r := range rows {
		for len(r) < cols {
			r = append(r, "")
		}
		out.WriteString("| " + strings.Join(r, " | ") + " |\n")
		if i == 0 {
			out.WriteString("|" + strings.Repeat(" --- |", cols) + "\n")
		}
	}
	return out.String()
}

func rowCells(full string, r *documentaipb.Document_Page_Table_TableRow) []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.Cells))
	for _, c := range r.Cells {
		cell := strings.TrimSpace(textFromAnchor(full, c.GetLayout().GetTextAnchor()))
		out = append(out, strings.ReplaceAll(cell, "|", "\\|"))
	}
	return out
}

func processorName(project, location, processorID, version string) string {
	project = strings.TrimSpace(project)
	location = strings.TrimSpace(location)
	processorID = strings.TrimSpace(processorID)
	version = strings.TrimSpace(version)

	if project == "" || location == "" || processorID == "" {
		return ""
	}
	base := fmt.Sprintf("projects/%s/locations/%s/processors/%s", project, location, processorID)
	if version != "" {
		return base + "/processorVersions/" + version
	}
	return base
}
