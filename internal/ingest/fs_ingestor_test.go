package ingest

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/legal-simplifier/constants"
	"github.com/joseph-ayodele/legal-simplifier/internal/common"
	"github.com/joseph-ayodele/legal-simplifier/internal/repository"
	"github.com/joseph-ayodele/legal-simplifier/internal/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestIngestor(t *testing.T, maxBytes int64) (*FSIngestor, repository.DocumentRepository, *storage.FileStore) {
	t.Helper()
	ctx := context.Background()
	db, err := repository.Open(ctx, repository.Config{DSN: filepath.Join(t.TempDir(), "ingest.db")}, discardLogger())
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(ctx))

	docs := repository.NewDocumentRepository(db, discardLogger())
	store := storage.NewFileStore(afero.NewMemMapFs(), discardLogger())
	return NewFSIngestor(docs, store, maxBytes, discardLogger()), docs, store
}

func TestIngestBytes(t *testing.T) {
	ctx := context.Background()

	t.Run("Should store the upload and create an uploaded document", func(t *testing.T) {
		ing, docs, store := newTestIngestor(t, 0)
		res, err := ing.IngestBytes(ctx, Upload{
			Filename:       "lease.txt",
			DeclaredFormat: "text/plain",
			Data:           []byte("Lessor shall provide notice."),
		})
		require.NoError(t, err)
		assert.Len(t, res.HashHex, 64)
		assert.Equal(t, constants.FormatPlainText, res.DeclaredFormat)
		assert.Empty(t, res.Warnings)

		doc, err := docs.GetByID(ctx, res.DocumentID)
		require.NoError(t, err)
		assert.Equal(t, constants.StatusUploaded, doc.Status)
		assert.Equal(t, res.SourcePath, doc.SourcePath)

		data, err := store.Read(doc.SourcePath)
		require.NoError(t, err)
		assert.Equal(t, "Lessor shall provide notice.", string(data))
	})

	t.Run("Should reject files over the size limit", func(t *testing.T) {
		ing, _, _ := newTestIngestor(t, 8)
		_, err := ing.IngestBytes(ctx, Upload{Filename: "big.txt", DeclaredFormat: "text/plain", Data: []byte("123456789")})
		assert.ErrorIs(t, err, ErrTooLarge)
		assert.ErrorIs(t, err, common.ErrInvalidInput)
	})

	t.Run("Should reject unsupported formats", func(t *testing.T) {
		ing, _, _ := newTestIngestor(t, 0)
		_, err := ing.IngestBytes(ctx, Upload{Filename: "pic.png", DeclaredFormat: "image/png", Data: []byte("x")})
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})

	t.Run("Should reject empty uploads", func(t *testing.T) {
		ing, _, _ := newTestIngestor(t, 0)
		_, err := ing.IngestBytes(ctx, Upload{Filename: "empty.txt", DeclaredFormat: "text/plain"})
		assert.ErrorIs(t, err, common.ErrValidation)
	})

	t.Run("Should infer the format when none is declared", func(t *testing.T) {
		ing, _, _ := newTestIngestor(t, 0)
		res, err := ing.IngestBytes(ctx, Upload{Filename: "notes.txt", Data: []byte("Buyer must pay.")})
		require.NoError(t, err)
		assert.Equal(t, constants.FormatPlainText, res.DeclaredFormat)
	})

	t.Run("Should warn when content does not match the declared format", func(t *testing.T) {
		ing, _, _ := newTestIngestor(t, 0)
		res, err := ing.IngestBytes(ctx, Upload{Filename: "fake.pdf", DeclaredFormat: "application/pdf", Data: []byte("just text")})
		require.NoError(t, err)
		assert.Equal(t, constants.FormatPDF, res.DeclaredFormat)
		assert.NotEmpty(t, res.Warnings)
	})

	t.Run("Should reuse documents with identical content when deduplicating", func(t *testing.T) {
		ing, _, _ := newTestIngestor(t, 0)
		ing.Deduplicate = true
		up := Upload{Filename: "a.txt", DeclaredFormat: "text/plain", Data: []byte("same")}
		first, err := ing.IngestBytes(ctx, up)
		require.NoError(t, err)
		second, err := ing.IngestBytes(ctx, up)
		require.NoError(t, err)
		assert.True(t, second.Deduplicated)
		assert.Equal(t, first.DocumentID, second.DocumentID)
	})
}

func TestIngestDirectory(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("First Party shall pay."), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "skip.png"), []byte("x"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(root, ".hidden"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".hidden", "b.txt"), []byte("hidden"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "empty.txt"), nil, 0o600))

	t.Run("Should ingest accepted files and collect failures", func(t *testing.T) {
		ing, _, _ := newTestIngestor(t, 0)
		results, stats, err := ing.IngestDirectory(ctx, root, true)
		require.NoError(t, err)
		assert.Equal(t, uint32(2), stats.Matched)
		assert.Equal(t, uint32(1), stats.Succeeded)
		assert.Equal(t, uint32(1), stats.Failed)
		assert.Len(t, results, 2)
	})

	t.Run("Should require a root", func(t *testing.T) {
		ing, _, _ := newTestIngestor(t, 0)
		_, _, err := ing.IngestDirectory(ctx, " ", false)
		assert.ErrorIs(t, err, common.ErrInvalidInput)
	})
}

func TestWatcher(t *testing.T) {
	t.Run("Should emit existing and new accepted files", func(t *testing.T) {
		root := t.TempDir()
		existing := filepath.Join(root, "old.txt")
		require.NoError(t, os.WriteFile(existing, []byte("x"), 0o600))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		events, _, err := StartWatcher(ctx, WatchConfig{Roots: []string{root}, InitialScan: true, Debounce: 20 * time.Millisecond, Logger: discardLogger()})
		require.NoError(t, err)

		select {
		case p := <-events:
			assert.Equal(t, existing, p)
		case <-time.After(2 * time.Second):
			t.Fatal("no initial event")
		}

		created := filepath.Join(root, "new.docx")
		require.NoError(t, os.WriteFile(created, []byte("x"), 0o600))
		require.NoError(t, os.WriteFile(filepath.Join(root, "ignored.png"), []byte("x"), 0o600))

		select {
		case p := <-events:
			assert.Equal(t, created, p)
		case <-time.After(5 * time.Second):
			t.Fatal("no event for new file")
		}
	})

	t.Run("Should emit a path once even when it is written again", func(t *testing.T) {
		root := t.TempDir()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		events, _, err := StartWatcher(ctx, WatchConfig{Roots: []string{root}, Debounce: 20 * time.Millisecond, Logger: discardLogger()})
		require.NoError(t, err)

		lease := filepath.Join(root, "lease.txt")
		require.NoError(t, os.WriteFile(lease, []byte("v1"), 0o600))
		select {
		case p := <-events:
			assert.Equal(t, lease, p)
		case <-time.After(5 * time.Second):
			t.Fatal("no event for new file")
		}

		for i := 0; i < 3; i++ {
			time.Sleep(60 * time.Millisecond)
			require.NoError(t, os.WriteFile(lease, []byte("v2"), 0o600))
		}
		marker := filepath.Join(root, "marker.txt")
		require.NoError(t, os.WriteFile(marker, []byte("x"), 0o600))

		select {
		case p := <-events:
			assert.Equal(t, marker, p)
		case <-time.After(5 * time.Second):
			t.Fatal("no event for marker file")
		}
	})

	t.Run("Should require roots", func(t *testing.T) {
		_, _, err := StartWatcher(context.Background(), WatchConfig{})
		assert.Error(t, err)
	})
}
