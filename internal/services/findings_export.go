package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	types "github.com/yungbote/docsentinel-backend/internal/domain"
	"github.com/yungbote/docsentinel-backend/internal/pkg/logger"
)

const findingsSheet = "Findings"

var findingsHeaders = []string{
	"Severity",
	"Type",
	"Title",
	"Description",
	"Page",
	"Line",
	"Snippet",
	"Potential Impact",
	"Recommendation",
	"Suggested Fix",
	"Financial Impact",
	"Status",
	"Resolved By",
	"Detected At",
}

// FindingsExporter renders a document's findings as an XLSX workbook.
type FindingsExporter interface {
	ExportDocumentFindings(ctx context.Context, userID, documentID uuid.UUID) ([]byte, string, error)
}

type findingsExporter struct {
	log       *logger.Logger
	documents DocumentService
}

func NewFindingsExporter(baseLog *logger.Logger, documents DocumentService) FindingsExporter {
	return &findingsExporter{log: baseLog.With("service", "FindingsExporter"), documents: documents}
}

// ExportDocumentFindings returns the workbook bytes and a download filename.
func (fe *findingsExporter) ExportDocumentFindings(ctx context.Context, userID, documentID uuid.UUID) ([]byte, string, error) {
	start := time.Now()
	doc, err := fe.documents.GetDocument(ctx, userID, documentID)
	if err != nil {
		return nil, "", err
	}
	findings, err := fe.documents.ListFindingsByDocument(ctx, userID, documentID)
	if err != nil {
		return nil, "", err
	}
	b, err := renderFindings(findings)
	if err != nil {
		return nil, "", err
	}
	fe.log.Info("findings exported", "document_id", documentID, "rows", len(findings), "elapsed_ms", time.Since(start).Milliseconds())
	return b, exportFilename(doc), nil
}

func renderFindings(findings []*types.Finding) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", findingsSheet); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}
	for i, h := range findingsHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(findingsSheet, cell, h)
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		last, _ := excelize.CoordinatesToCellName(len(findingsHeaders), 1)
		_ = f.SetCellStyle(findingsSheet, "A1", last, style)
	}

	for i, fd := range findings {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(findingsSheet, cell, v)
		}
		write(1, fd.Severity)
		write(2, fd.Type)
		write(3, fd.Title)
		write(4, fd.Description)
		write(5, intOrBlank(fd.PageNumber))
		write(6, intOrBlank(fd.LineNumber))
		write(7, fd.TextSnippet)
		write(8, fd.PotentialImpact)
		write(9, fd.Recommendation)
		write(10, fd.SuggestedFix)
		write(11, stringOrBlank(fd.FinancialImpact))
		write(12, string(fd.Status))
		write(13, stringOrBlank(fd.ResolvedBy))
		write(14, fd.CreatedAt.UTC().Format(time.RFC3339))
	}

	_ = f.SetColWidth(findingsSheet, "A", "B", 12)
	_ = f.SetColWidth(findingsSheet, "C", "C", 36)
	_ = f.SetColWidth(findingsSheet, "D", "D", 60)
	_ = f.SetColWidth(findingsSheet, "G", "J", 40)
	_ = f.SetPanes(findingsSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func exportFilename(doc *types.Document) string {
	name := doc.OriginalFilename
	if name == "" {
		name = doc.ID.String()
	}
	return name + "-findings.xlsx"
}

func intOrBlank(v *int) any {
	if v == nil {
		return ""
	}
	return *v
}

func stringOrBlank(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
