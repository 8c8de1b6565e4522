package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/legal-simplifier/constants"
	"github.com/joseph-ayodele/legal-simplifier/internal/common"
	"github.com/joseph-ayodele/legal-simplifier/internal/entity"
	"github.com/joseph-ayodele/legal-simplifier/internal/repository"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrTooLarge          = errors.New("file too large")
)

// UploadStore persists raw upload bytes.
type UploadStore interface {
	Save(original string, data []byte) (string, error)
	Delete(key string) error
}

// FSIngestor stores uploads and registers them as documents.
type FSIngestor struct {
	Docs        repository.DocumentRepository
	Store       UploadStore
	MaxBytes    int64
	Deduplicate bool // return the existing document for identical content
	Logger      *slog.Logger
}

func NewFSIngestor(docs repository.DocumentRepository, store UploadStore, maxBytes int64, logger *slog.Logger) *FSIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	if maxBytes <= 0 {
		maxBytes = constants.MaxUploadBytes
	}
	return &FSIngestor{Docs: docs, Store: store, MaxBytes: maxBytes, Logger: logger}
}

func (i *FSIngestor) IngestBytes(ctx context.Context, u Upload) (IngestionResult, error) {
	out := IngestionResult{Filename: u.Filename, Size: int64(len(u.Data))}

	if int64(len(u.Data)) > i.MaxBytes {
		i.Logger.Warn("ingest.too_large", "filename", u.Filename, "bytes", len(u.Data), "max", i.MaxBytes)
		return out, common.NewAppError("FILE_TOO_LARGE",
			fmt.Sprintf("%s is %d bytes, limit is %d", u.Filename, len(u.Data), i.MaxBytes),
			errors.Join(ErrTooLarge, common.ErrInvalidInput))
	}
	v := common.NewValidator().
		Field("filename", u.Filename, common.Required, common.MaxLength(255)).
		Field("data", u.Data, common.Required)
	if err := v.Err(); err != nil {
		return out, err
	}

	out.DetectedFormat = DetectFormat(u.Data)
	format := resolveFormat(u.DeclaredFormat, out.DetectedFormat, u.Filename)
	if !constants.IsAllowedFormat(format) {
		i.Logger.Warn("ingest.unsupported", "filename", u.Filename, "declared", u.DeclaredFormat, "detected", out.DetectedFormat)
		return out, common.NewAppError("UNSUPPORTED_FORMAT",
			fmt.Sprintf("%s: format %q is not accepted", u.Filename, u.DeclaredFormat),
			errors.Join(ErrUnsupportedFormat, common.ErrInvalidInput))
	}
	out.DeclaredFormat = format
	if out.DetectedFormat != "" && out.DetectedFormat != format {
		w := fmt.Sprintf("declared %s but content looks like %s", format, out.DetectedFormat)
		out.Warnings = append(out.Warnings, w)
		i.Logger.Warn("ingest.format_mismatch", "filename", u.Filename, "declared", format, "detected", out.DetectedFormat)
	}

	sum := sha256.Sum256(u.Data)
	out.HashHex = hex.EncodeToString(sum[:])

	if i.Deduplicate {
		existing, err := i.Docs.GetByHash(ctx, out.HashHex)
		switch {
		case err == nil:
			out.DocumentID = existing.ID
			out.SourcePath = existing.SourcePath
			out.UploadedAt = existing.CreatedAt
			out.Deduplicated = true
			i.Logger.Info("ingest.deduplicated", "filename", u.Filename, "document_id", existing.ID)
			return out, nil
		case !errors.Is(err, common.ErrNotFound):
			return out, err
		}
	}

	key, err := i.Store.Save(u.Filename, u.Data)
	if err != nil {
		return out, err
	}
	doc := &entity.Document{
		Filename:       u.Filename,
		DeclaredFormat: format,
		SourcePath:     key,
		ContentHash:    out.HashHex,
		FileSize:       int64(len(u.Data)),
		Status:         constants.StatusUploaded,
		CreatedAt:      time.Now().UTC(),
	}
	if err := i.Docs.Create(ctx, doc); err != nil {
		if derr := i.Store.Delete(key); derr != nil {
			i.Logger.Error("ingest.cleanup.failed", "key", key, "error", derr)
		}
		return out, err
	}

	out.DocumentID = doc.ID
	out.SourcePath = key
	out.UploadedAt = doc.CreatedAt
	i.Logger.Info("ingest.ok",
		"document_id", doc.ID,
		"filename", u.Filename,
		"format", format,
		"bytes", len(u.Data),
	)
	return out, nil
}

// IngestPath reads a local file and ingests it under its base name.
func (i *FSIngestor) IngestPath(ctx context.Context, path, declaredFormat string) (IngestionResult, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return IngestionResult{Filename: path}, err
	}
	st, err := os.Stat(abs)
	if err != nil {
		return IngestionResult{Filename: path}, err
	}
	if st.Size() > i.MaxBytes {
		return IngestionResult{Filename: path, Size: st.Size()}, common.NewAppError("FILE_TOO_LARGE",
			fmt.Sprintf("%s is %d bytes, limit is %d", path, st.Size(), i.MaxBytes),
			errors.Join(ErrTooLarge, common.ErrInvalidInput))
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return IngestionResult{Filename: path}, err
	}
	return i.IngestBytes(ctx, Upload{
		Filename:       filepath.Base(abs),
		DeclaredFormat: declaredFormat,
		Data:           data,
	})
}

// IngestDirectory walks root, skips hidden entries if requested, and ingests
// each file with an accepted extension. Per-file failures are collected.
func (i *FSIngestor) IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]IngestionResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, fmt.Errorf("%w: root path is required", common.ErrInvalidInput)
	}

	var (
		results []IngestionResult
		stats   DirStats
	)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, IngestionResult{Filename: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && IsHidden(path) && path != root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		r, err := i.IngestPath(ctx, path, "")
		if err != nil {
			r.Err = err.Error()
			results = append(results, r)
			stats.Failed++
			return nil
		}
		results = append(results, r)
		stats.Succeeded++
		if r.Deduplicated {
			stats.Deduplicated++
		}
		return nil
	})
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	return results, stats, nil
}
