package extract

import (
	"context"
	"fmt"
	"time"
)

// TextExtractor turns raw upload bytes of a declared format into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, raw []byte, declaredFormat string) (Result, error)
}

type Result struct {
	Text     string
	Format   string
	Method   string // "plain" | "pdf-text" | "pdf-fallback" | "docx-xml" | "doc-piece-table"
	Pages    int
	Degraded bool // true when Text is the PDF fallback notice
	Duration time.Duration
	Warnings []string
}

// ExtractionError reports that an office document could not be decoded or
// that the declared format is not supported.
type ExtractionError struct {
	Format string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Format, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }
