package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/joseph-ayodele/legal-simplifier/constants"
)

// ErrUnsupportedFormat is wrapped in an ExtractionError for unknown formats.
var ErrUnsupportedFormat = errors.New("unsupported format")

type Config struct {
	// MaxConcurrent bounds simultaneous decodes; default 4.
	MaxConcurrent int
	// MaxPDFPages skips text decoding of larger PDFs (fallback instead); 0 = no limit.
	MaxPDFPages int
}

type Extractor struct {
	cfg    Config
	sem    *semaphore.Weighted
	logger *slog.Logger

	// decodePDF is swapped in tests.
	decodePDF func(raw []byte) (string, error)
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	return &Extractor{
		cfg:       cfg,
		sem:       semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		logger:    logger,
		decodePDF: pdfPlainText,
	}
}

// Extract dispatches on the declared format. Only office formats and unknown
// formats return an error; PDF problems yield the fallback text.
func (e *Extractor) Extract(ctx context.Context, raw []byte, declaredFormat string) (Result, error) {
	format := constants.NormalizeFormat(declaredFormat)
	if !constants.IsAllowedFormat(format) {
		e.logger.Error("extract.unsupported", "format", declaredFormat)
		return Result{Format: format}, &ExtractionError{Format: declaredFormat, Err: ErrUnsupportedFormat}
	}

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return Result{Format: format}, err
	}
	defer e.sem.Release(1)

	start := time.Now()
	e.logger.Debug("extract.start", "format", format, "bytes", len(raw))

	var (
		res Result
		err error
	)
	switch format {
	case constants.FormatPlainText:
		res = e.extractPlain(raw)
	case constants.FormatPDF:
		res = e.extractPDF(raw)
	case constants.FormatDOCX:
		res, err = decodeOffice(e.extractDOCX, raw)
	case constants.FormatMSWord:
		res, err = decodeOffice(e.extractDOC, raw)
	}
	res.Format = format
	res.Duration = time.Since(start)
	if err != nil {
		e.logger.Error("extract.failed", "format", format, "err", err)
		return res, &ExtractionError{Format: format, Err: err}
	}
	e.logger.Info("extract.ok",
		"format", format,
		"method", res.Method,
		"chars", len(res.Text),
		"degraded", res.Degraded,
		"duration", res.Duration,
	)
	return res, nil
}

// decodeOffice runs an office decoder over uploaded bytes; a panic becomes a
// corrupt document error.
func decodeOffice(decode func([]byte) (Result, error), raw []byte) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{}
			err = fmt.Errorf("%w: decoder panic: %v", errCorruptDoc, r)
		}
	}()
	return decode(raw)
}
