package pipeline

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/legal-simplifier/constants"
	"github.com/joseph-ayodele/legal-simplifier/internal/common"
	"github.com/joseph-ayodele/legal-simplifier/internal/entity"
	"github.com/joseph-ayodele/legal-simplifier/internal/repository"
	"github.com/joseph-ayodele/legal-simplifier/internal/storage"
)

type processorFixture struct {
	docs  repository.DocumentRepository
	store *storage.FileStore
	proc  *Processor
}

func newProcessorFixture(t *testing.T) processorFixture {
	t.Helper()
	ctx := context.Background()
	db, err := repository.Open(ctx, repository.Config{DSN: filepath.Join(t.TempDir(), "docs.db")}, discardLogger())
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(ctx))

	docs := repository.NewDocumentRepository(db, discardLogger())
	store := storage.NewFileStore(afero.NewMemMapFs(), discardLogger())
	return processorFixture{
		docs:  docs,
		store: store,
		proc:  NewProcessor(docs, store, newTestPipeline(), discardLogger()),
	}
}

func (f processorFixture) upload(t *testing.T, name, format string, data []byte) *entity.Document {
	t.Helper()
	key, err := f.store.Save(name, data)
	require.NoError(t, err)
	doc := &entity.Document{Filename: name, DeclaredFormat: format, SourcePath: key, FileSize: int64(len(data))}
	require.NoError(t, f.docs.Create(context.Background(), doc))
	return doc
}

func TestProcessDocument(t *testing.T) {
	ctx := context.Background()

	t.Run("Should persist processed artifacts", func(t *testing.T) {
		f := newProcessorFixture(t)
		doc := f.upload(t, "notice.txt", constants.FormatPlainText, []byte("Lessor shall provide notice."))

		out, err := f.proc.ProcessDocument(ctx, doc.ID, false)
		require.NoError(t, err)
		assert.Equal(t, constants.StatusProcessed, out.Status)

		stored, err := f.docs.GetByID(ctx, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, constants.StatusProcessed, stored.Status)
		assert.Equal(t, "Lessor will provide notice.", stored.SimplifiedText)
		assert.Len(t, stored.Entities, 2)
		assert.NotNil(t, stored.ProcessedAt)
	})

	t.Run("Should persist failures for corrupt office documents", func(t *testing.T) {
		f := newProcessorFixture(t)
		doc := f.upload(t, "bad.doc", constants.FormatMSWord, []byte("garbage"))

		_, err := f.proc.ProcessDocument(ctx, doc.ID, false)
		require.Error(t, err)

		stored, err := f.docs.GetByID(ctx, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, constants.StatusFailed, stored.Status)
		assert.Empty(t, stored.OriginalText)
		assert.NotEmpty(t, stored.ErrorMessage)
	})

	t.Run("Should fail documents whose upload is missing", func(t *testing.T) {
		f := newProcessorFixture(t)
		doc := f.upload(t, "gone.txt", constants.FormatPlainText, []byte("x"))
		require.NoError(t, f.store.Delete(doc.SourcePath))

		_, err := f.proc.ProcessDocument(ctx, doc.ID, false)
		require.Error(t, err)

		stored, err := f.docs.GetByID(ctx, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, constants.StatusFailed, stored.Status)
	})

	t.Run("Should not reprocess terminal documents without force", func(t *testing.T) {
		f := newProcessorFixture(t)
		doc := f.upload(t, "a.txt", constants.FormatPlainText, []byte("Buyer must pay."))
		_, err := f.proc.ProcessDocument(ctx, doc.ID, false)
		require.NoError(t, err)

		_, err = f.proc.ProcessDocument(ctx, doc.ID, false)
		assert.ErrorIs(t, err, entity.ErrTerminalState)

		out, err := f.proc.ProcessDocument(ctx, doc.ID, true)
		require.NoError(t, err)
		assert.Equal(t, constants.StatusProcessed, out.Status)
	})

	t.Run("Should return ErrNotFound for unknown documents", func(t *testing.T) {
		f := newProcessorFixture(t)
		_, err := f.proc.ProcessDocument(ctx, uuid.New(), false)
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("Should reject concurrent runs for the same document", func(t *testing.T) {
		f := newProcessorFixture(t)
		doc := f.upload(t, "busy.txt", constants.FormatPlainText, []byte("x"))
		release, err := f.proc.Pipeline.Registry.Acquire(doc.ID)
		require.NoError(t, err)
		defer release()

		_, err = f.proc.ProcessDocument(ctx, doc.ID, false)
		assert.ErrorIs(t, err, ErrInFlight)
	})

	t.Run("Should log the trace and document ids carried by the context", func(t *testing.T) {
		f := newProcessorFixture(t)
		var buf bytes.Buffer
		f.proc.Logger = slog.New(slog.NewTextHandler(&buf, nil))
		doc := f.upload(t, "traced.txt", constants.FormatPlainText, []byte("Seller will ship."))

		_, err := f.proc.ProcessDocument(common.WithTraceID(ctx, "trace-42"), doc.ID, false)
		require.NoError(t, err)
		assert.Contains(t, buf.String(), "msg=processor.ok")
		assert.Contains(t, buf.String(), "trace_id=trace-42")
		assert.Contains(t, buf.String(), "document_id="+doc.ID.String())
	})
}
