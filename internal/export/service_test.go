package export

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/legal-simplifier/constants"
	"github.com/joseph-ayodele/legal-simplifier/internal/common"
	"github.com/joseph-ayodele/legal-simplifier/internal/entity"
	"github.com/joseph-ayodele/legal-simplifier/internal/repository"
)

func processedDoc() *entity.Document {
	d := &entity.Document{
		Filename:       "lease.txt",
		DeclaredFormat: constants.FormatPlainText,
		SourcePath:     "1-lease.txt",
		Status:         constants.StatusUploaded,
	}
	d.Complete(entity.Artifacts{
		OriginalText:   "Acme Inc. shall deliver goods by 01/12/2024.",
		SummaryText:    "Acme Inc. shall deliver goods by 01/12/2024.",
		SimplifiedText: "Acme Inc. will deliver goods by 01/12/2024.",
		Entities: []entity.Entity{
			{Type: constants.EntityDate, Value: "01/12/2024", Start: 33, End: 43},
			{Type: constants.EntityParty, Value: "Acme Inc.", Start: 0, End: 9},
			{Type: constants.EntityObligation, Value: "shall deliver", Start: 10, End: 23},
		},
	}, time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC))
	return d
}

func newTestService(t *testing.T) (*Service, repository.DocumentRepository) {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := repository.Open(ctx, repository.Config{DSN: filepath.Join(t.TempDir(), "export.db")}, logger)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(ctx))
	docs := repository.NewDocumentRepository(db, logger)
	svc := NewService(docs, logger)
	svc.now = func() time.Time { return time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC) }
	return svc, docs
}

func storeProcessed(t *testing.T, docs repository.DocumentRepository) *entity.Document {
	t.Helper()
	d := processedDoc()
	require.NoError(t, docs.Create(context.Background(), d))
	return d
}

func TestExportJSON(t *testing.T) {
	ctx := context.Background()

	t.Run("Should render a schema-valid JSON export", func(t *testing.T) {
		svc, docs := newTestService(t)
		d := storeProcessed(t, docs)

		f, err := svc.Export(ctx, d.ID, FormatJSON, DefaultOptions())
		require.NoError(t, err)
		assert.Equal(t, "lease_analysis.json", f.Name)
		require.NoError(t, ValidateDocumentJSON(f.Data))

		var got DocumentExport
		require.NoError(t, json.Unmarshal(f.Data, &got))
		assert.Equal(t, d.ID, got.ID)
		require.NotNil(t, got.SimplifiedText)
		assert.Equal(t, "Acme Inc. will deliver goods by 01/12/2024.", *got.SimplifiedText)
		assert.Len(t, got.Entities, 3)
		require.NotNil(t, got.Analytics)
		assert.Equal(t, 7, got.Analytics.WordCount)
		assert.Equal(t, 3, got.Analytics.EntityCount)
		assert.Equal(t, 1, got.Analytics.EntityCounts["PARTY"])
	})

	t.Run("Should omit sections that are not selected", func(t *testing.T) {
		svc, docs := newTestService(t)
		d := storeProcessed(t, docs)

		f, err := svc.Export(ctx, d.ID, FormatJSON, Options{Entities: true})
		require.NoError(t, err)
		var raw map[string]any
		require.NoError(t, json.Unmarshal(f.Data, &raw))
		assert.NotContains(t, raw, "originalText")
		assert.NotContains(t, raw, "analytics")
		assert.Contains(t, raw, "entities")
	})

	t.Run("Should reject documents that are not processed", func(t *testing.T) {
		svc, docs := newTestService(t)
		d := &entity.Document{Filename: "new.txt", DeclaredFormat: constants.FormatPlainText}
		require.NoError(t, docs.Create(ctx, d))

		_, err := svc.Export(ctx, d.ID, FormatJSON, DefaultOptions())
		assert.ErrorIs(t, err, common.ErrConflict)
	})

	t.Run("Should reject unknown formats", func(t *testing.T) {
		svc, docs := newTestService(t)
		d := storeProcessed(t, docs)
		_, err := svc.Export(ctx, d.ID, "pdf", DefaultOptions())
		assert.ErrorIs(t, err, common.ErrInvalidInput)
	})

	t.Run("Should return ErrNotFound for unknown documents", func(t *testing.T) {
		svc, _ := newTestService(t)
		_, err := svc.Export(ctx, uuid.New(), FormatJSON, DefaultOptions())
		assert.ErrorIs(t, err, common.ErrNotFound)
	})
}

func TestValidateDocumentJSON(t *testing.T) {
	t.Run("Should reject unknown entity types", func(t *testing.T) {
		bad := `{"id":"` + uuid.NewString() + `","filename":"a","status":"processed","timestamp":"2024-01-01T00:00:00Z",` +
			`"entities":[{"type":"MONEY","value":"x","start":0,"end":1}]}`
		assert.Error(t, ValidateDocumentJSON([]byte(bad)))
	})
}

func TestExportText(t *testing.T) {
	t.Run("Should list entities by type and value", func(t *testing.T) {
		svc, docs := newTestService(t)
		d := storeProcessed(t, docs)
		f, err := svc.Export(context.Background(), d.ID, FormatText, DefaultOptions())
		require.NoError(t, err)
		assert.Contains(t, string(f.Data), "Document Analysis: lease.txt")
		assert.Contains(t, string(f.Data), "- PARTY: Acme Inc.")
		assert.Contains(t, string(f.Data), "SIMPLIFIED TEXT:\nAcme Inc. will deliver")
	})
}

func TestExportXLSX(t *testing.T) {
	t.Run("Should write summary and entity sheets", func(t *testing.T) {
		svc, docs := newTestService(t)
		d := storeProcessed(t, docs)
		f, err := svc.Export(context.Background(), d.ID, FormatXLSX, DefaultOptions())
		require.NoError(t, err)

		wb, err := excelize.OpenReader(bytes.NewReader(f.Data))
		require.NoError(t, err)
		defer func() { _ = wb.Close() }()

		assert.Equal(t, []string{"Summary", "Entities"}, wb.GetSheetList())

		filename, err := wb.GetCellValue("Summary", "B2")
		require.NoError(t, err)
		assert.Equal(t, "lease.txt", filename)

		rows, err := wb.GetRows("Entities")
		require.NoError(t, err)
		require.Len(t, rows, 4)
		assert.Equal(t, []string{"Type", "Value", "Start", "End"}, rows[0])
		assert.Equal(t, []string{"PARTY", "Acme Inc.", "0", "9"}, rows[2])
	})
}

func TestAnalyze(t *testing.T) {
	t.Run("Should score risk terms and clamp", func(t *testing.T) {
		d := processedDoc()
		d.OriginalText = "Breach leads to termination and damages. The court decides any dispute."
		d.SimplifiedText = "Breach ends it."
		a := Analyze(d)
		assert.Equal(t, 6, a.RiskScore)
		assert.Equal(t, 2, a.SentenceCount)
		assert.Equal(t, 1, a.ParagraphCount)
		assert.Equal(t, 73, a.ReductionPercent)
		assert.GreaterOrEqual(t, a.ComplexityScore, 1)
	})

	t.Run("Should handle empty text", func(t *testing.T) {
		a := Analyze(&entity.Document{})
		assert.Equal(t, 0, a.WordCount)
		assert.Equal(t, 1, a.ComplexityScore)
		assert.Equal(t, 1, a.RiskScore)
		assert.Equal(t, 0, a.ReductionPercent)
	})
}
