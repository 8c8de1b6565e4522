package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Upload is one file offered for ingestion.
type Upload struct {
	Filename       string
	DeclaredFormat string // empty: sniffed from content, then extension
	Data           []byte
}

// IngestionResult is the per-file ingest outcome.
type IngestionResult struct {
	DocumentID     uuid.UUID
	Filename       string
	SourcePath     string
	DeclaredFormat string
	DetectedFormat string
	HashHex        string
	Size           int64
	Deduplicated   bool
	UploadedAt     time.Time
	Warnings       []string
	Err            string
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
}

// Ingestor is the behavior the service depends on.
type Ingestor interface {
	IngestBytes(ctx context.Context, u Upload) (IngestionResult, error)
	IngestPath(ctx context.Context, path, declaredFormat string) (IngestionResult, error)
	IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]IngestionResult, DirStats, error)
}
