package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/legal-simplifier/internal/common"
	"github.com/joseph-ayodele/legal-simplifier/internal/entity"
	"github.com/joseph-ayodele/legal-simplifier/internal/repository"
)

// UploadReader loads stored upload bytes by key.
type UploadReader interface {
	Read(key string) ([]byte, error)
}

// Processor loads a document, runs the pipeline and persists the outcome.
type Processor struct {
	Docs     repository.DocumentRepository
	Uploads  UploadReader
	Pipeline *Pipeline
	Logger   *slog.Logger
}

func NewProcessor(docs repository.DocumentRepository, uploads UploadReader, p *Pipeline, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{Docs: docs, Uploads: uploads, Pipeline: p, Logger: logger}
}

// ProcessDocument returns the document in its new state. When the pipeline
// fails the document is persisted as failed and the cause is returned.
func (p *Processor) ProcessDocument(ctx context.Context, id uuid.UUID, force bool) (*entity.Document, error) {
	if _, ok := common.DocumentIDFromContext(ctx); !ok {
		ctx = common.WithDocumentID(ctx, id)
	}
	log := p.Logger.With(common.LogAttrs(ctx)...)

	release, err := p.Pipeline.Registry.Acquire(id)
	if err != nil {
		log.Warn("processor.in_flight")
		return nil, err
	}
	defer release()

	doc, err := p.Docs.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	if err := doc.CanProcess(force); err != nil {
		log.Warn("processor.terminal", "status", doc.Status)
		return doc, err
	}

	raw, err := p.Uploads.Read(doc.SourcePath)
	if err != nil {
		log.Error("processor.read_upload.failed", "source_path", doc.SourcePath, "err", err)
		doc.Fail(err, p.Pipeline.now())
		if perr := p.Docs.MarkFailed(ctx, doc); perr != nil {
			return doc, errors.Join(err, perr)
		}
		return doc, err
	}

	runErr := p.Pipeline.process(ctx, doc, raw, force)
	switch {
	case errors.Is(runErr, entity.ErrTerminalState):
		return doc, runErr
	case runErr != nil && ctx.Err() != nil:
		return doc, runErr
	case runErr != nil:
		if err := p.Docs.MarkFailed(ctx, doc); err != nil {
			log.Error("processor.persist.failed", "err", err)
			return doc, errors.Join(runErr, err)
		}
		return doc, runErr
	}

	if err := p.Docs.MarkProcessed(ctx, doc); err != nil {
		log.Error("processor.persist.failed", "err", err)
		return doc, fmt.Errorf("persist artifacts: %w", err)
	}
	log.Info("processor.ok",
		"status", doc.Status,
		"entities", len(doc.Entities),
		"degraded", doc.Degraded,
	)
	return doc, nil
}
