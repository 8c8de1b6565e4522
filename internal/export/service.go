package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/legal-simplifier/constants"
	"github.com/joseph-ayodele/legal-simplifier/internal/common"
	"github.com/joseph-ayodele/legal-simplifier/internal/entity"
	"github.com/joseph-ayodele/legal-simplifier/internal/repository"
)

// Supported export formats.
const (
	FormatJSON = "json"
	FormatText = "txt"
	FormatXLSX = "xlsx"
)

// Options selects the sections included in JSON and text exports.
type Options struct {
	Original   bool
	Simplified bool
	Entities   bool
	Analytics  bool
}

func DefaultOptions() Options {
	return Options{Original: true, Simplified: true, Entities: true, Analytics: true}
}

// DocumentExport is the JSON export shape.
type DocumentExport struct {
	ID             uuid.UUID       `json:"id"`
	Filename       string          `json:"filename"`
	Status         string          `json:"status"`
	Timestamp      time.Time       `json:"timestamp"`
	Degraded       bool            `json:"degraded"`
	OriginalText   *string         `json:"originalText,omitempty"`
	SummaryText    *string         `json:"summaryText,omitempty"`
	SimplifiedText *string         `json:"simplifiedText,omitempty"`
	Entities       []entity.Entity `json:"entities,omitempty"`
	Analytics      *Analytics      `json:"analytics,omitempty"`
}

// File is a rendered export.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Service renders processed documents as JSON, text or XLSX.
type Service struct {
	docs   repository.DocumentRepository
	logger *slog.Logger
	now    func() time.Time
}

func NewService(docs repository.DocumentRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{docs: docs, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Export loads a processed document and renders it in format.
func (s *Service) Export(ctx context.Context, id uuid.UUID, format string, opts Options) (File, error) {
	doc, err := s.load(ctx, id)
	if err != nil {
		return File{}, err
	}
	base := strings.TrimSuffix(doc.Filename, "."+fileExt(doc.Filename))
	switch strings.ToLower(format) {
	case "", FormatJSON:
		data, err := s.RenderJSON(doc, opts)
		return File{Name: base + "_analysis.json", ContentType: "application/json", Data: data}, err
	case FormatText:
		return File{Name: base + "_analysis.txt", ContentType: "text/plain; charset=utf-8", Data: s.RenderText(doc, opts)}, nil
	case FormatXLSX:
		data, err := s.RenderXLSX(doc)
		return File{Name: base + "_analysis.xlsx", ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", Data: data}, err
	default:
		return File{}, common.NewAppError("UNSUPPORTED_EXPORT", fmt.Sprintf("export format %q is not supported", format), common.ErrInvalidInput)
	}
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*entity.Document, error) {
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Status != constants.StatusProcessed {
		return nil, common.NewAppError("NOT_PROCESSED", fmt.Sprintf("document %s is %s", id, doc.Status), common.ErrConflict)
	}
	return doc, nil
}

// RenderJSON builds the JSON export and validates it against the export schema.
func (s *Service) RenderJSON(doc *entity.Document, opts Options) ([]byte, error) {
	out := DocumentExport{
		ID:        doc.ID,
		Filename:  doc.Filename,
		Status:    string(doc.Status),
		Timestamp: s.now(),
		Degraded:  doc.Degraded,
	}
	if opts.Original {
		out.OriginalText = &doc.OriginalText
	}
	if opts.Simplified {
		out.SummaryText = &doc.SummaryText
		out.SimplifiedText = &doc.SimplifiedText
	}
	if opts.Entities {
		out.Entities = doc.Entities
	}
	if opts.Analytics {
		a := Analyze(doc)
		out.Analytics = &a
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal export: %w", err)
	}
	if err := ValidateDocumentJSON(data); err != nil {
		s.logger.Error("export.json.invalid", "document_id", doc.ID, "error", err)
		return nil, err
	}
	s.logger.Info("export.json.ok", "document_id", doc.ID, "bytes", len(data))
	return data, nil
}

// RenderText builds a plain text report.
func (s *Service) RenderText(doc *entity.Document, opts Options) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "Document Analysis: %s\n", doc.Filename)
	fmt.Fprintf(&b, "Generated: %s\n\n", s.now().Format(time.RFC1123))
	if opts.Original && doc.OriginalText != "" {
		fmt.Fprintf(&b, "ORIGINAL TEXT:\n%s\n\n", doc.OriginalText)
	}
	if opts.Simplified && doc.SimplifiedText != "" {
		fmt.Fprintf(&b, "SIMPLIFIED TEXT:\n%s\n\n", doc.SimplifiedText)
	}
	if opts.Entities && len(doc.Entities) > 0 {
		b.WriteString("ENTITIES:\n")
		for _, e := range doc.Entities {
			fmt.Fprintf(&b, "- %s: %s\n", e.Type, e.Value)
		}
	}
	if opts.Analytics {
		a := Analyze(doc)
		fmt.Fprintf(&b, "\nANALYTICS:\nwords=%d sentences=%d complexity=%d risk=%d reduction=%d%%\n",
			a.WordCount, a.SentenceCount, a.ComplexityScore, a.RiskScore, a.ReductionPercent)
	}
	return []byte(b.String())
}

// RenderXLSX returns a workbook with a Summary sheet and an Entities sheet.
func (s *Service) RenderXLSX(doc *entity.Document) ([]byte, error) {
	start := time.Now()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	const summarySheet = "Summary"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	a := Analyze(doc)
	rows := [][]any{
		{"Field", "Value"},
		{"Filename", doc.Filename},
		{"Format", doc.DeclaredFormat},
		{"Status", string(doc.Status)},
		{"Degraded", doc.Degraded},
		{"Summary", truncate(doc.SummaryText, 32000)},
		{"Simplified", truncate(doc.SimplifiedText, 32000)},
		{"Words", a.WordCount},
		{"Sentences", a.SentenceCount},
		{"Complexity", a.ComplexityScore},
		{"Risk", a.RiskScore},
		{"Reduction %", a.ReductionPercent},
	}
	for _, t := range constants.EntityTypes {
		rows = append(rows, []any{string(t) + " entities", a.EntityCounts[string(t)]})
	}
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &r); err != nil {
			return nil, fmt.Errorf("write summary row: %w", err)
		}
	}
	_ = f.SetColWidth(summarySheet, "A", "A", 18)
	_ = f.SetColWidth(summarySheet, "B", "B", 80)

	const entitySheet = "Entities"
	if _, err := f.NewSheet(entitySheet); err != nil {
		return nil, err
	}
	headers := []string{"Type", "Value", "Start", "End"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(entitySheet, cell, h)
	}
	for i, e := range doc.Entities {
		row := []any{string(e.Type), e.Value, e.Start, e.End}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(entitySheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write entity row: %w", err)
		}
	}
	_ = f.SetColWidth(entitySheet, "A", "A", 14)
	_ = f.SetColWidth(entitySheet, "B", "B", 48)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("export.xlsx.ok",
		"document_id", doc.ID.String(),
		"entities", len(doc.Entities),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func fileExt(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return ""
}

// Excel cells hold at most 32767 characters.
func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	cut := n - 1
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
