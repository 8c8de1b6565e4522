// Package pipeline turns uploaded document bytes into summary, plain-language
// and entity artifacts, and drives the document status transitions.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/legal-simplifier/internal/entity"
	"github.com/joseph-ayodele/legal-simplifier/internal/extract"
	"github.com/joseph-ayodele/legal-simplifier/internal/simplify"
	"github.com/joseph-ayodele/legal-simplifier/internal/summarize"
	"github.com/joseph-ayodele/legal-simplifier/internal/tagger"
)

// ErrStageFailure wraps a panic recovered from a text stage.
var ErrStageFailure = errors.New("pipeline stage failure")

type Summarizer interface {
	Summarize(text string, maxSentences int) string
}

type Simplifier interface {
	Simplify(text string) string
}

type Tagger interface {
	Tag(text string) []entity.Entity
}

type Pipeline struct {
	Extractor    extract.TextExtractor
	Summarizer   Summarizer
	Simplifier   Simplifier
	Tagger       Tagger
	Registry     *Registry
	MaxSentences int
	Log          *slog.Logger

	now func() time.Time
}

// New wires the default stages around tx. A nil simplifier uses the built-in rules.
func New(tx extract.TextExtractor, simp *simplify.Simplifier, maxSentences int, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	if simp == nil {
		simp = simplify.MustDefault()
	}
	if maxSentences <= 0 {
		maxSentences = summarize.DefaultMaxSentences
	}
	return &Pipeline{
		Extractor:    tx,
		Summarizer:   summarize.New(),
		Simplifier:   simp,
		Tagger:       tagger.New(),
		Registry:     NewRegistry(),
		MaxSentences: maxSentences,
		Log:          log,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Run extracts text, then summarizes and simplifies it while tagging the
// original text. Artifacts are only returned when every stage succeeds.
func (p *Pipeline) Run(ctx context.Context, raw []byte, declaredFormat string) (entity.Artifacts, error) {
	var (
		res extract.Result
		err error
	)
	if serr := p.stage("extract", func() {
		res, err = p.Extractor.Extract(ctx, raw, declaredFormat)
	}); serr != nil {
		err = serr
	}
	if err != nil {
		p.Log.Error("pipeline.extract.failed", "format", declaredFormat, "err", err)
		return entity.Artifacts{}, err
	}
	text := res.Text

	var (
		summary, simplified string
		entities            []entity.Entity
	)
	var g errgroup.Group
	g.Go(func() error {
		return p.stage("summarize", func() {
			summary = p.Summarizer.Summarize(text, p.MaxSentences)
			simplified = p.Simplifier.Simplify(summary)
		})
	})
	g.Go(func() error {
		return p.stage("tag", func() {
			entities = p.Tagger.Tag(text)
		})
	})
	if err := g.Wait(); err != nil {
		return entity.Artifacts{}, err
	}
	if entities == nil {
		entities = []entity.Entity{}
	}

	p.Log.Info("pipeline.run.ok",
		"format", res.Format,
		"method", res.Method,
		"degraded", res.Degraded,
		"chars", len(text),
		"summary_chars", len(summary),
		"entities", len(entities),
	)
	return entity.Artifacts{
		OriginalText:   text,
		SummaryText:    summary,
		SimplifiedText: simplified,
		Entities:       entities,
		Degraded:       res.Degraded,
		Method:         res.Method,
	}, nil
}

func (p *Pipeline) stage(name string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.Log.Error("pipeline.stage.panic", "stage", name, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("%w: %s: %v", ErrStageFailure, name, r)
		}
	}()
	fn()
	return nil
}

// Process runs the pipeline for doc and applies the outcome to it: all
// artifacts and status processed on success, status failed with no artifacts
// otherwise. Cancellation leaves doc untouched.
func (p *Pipeline) Process(ctx context.Context, doc *entity.Document, raw []byte, force bool) error {
	release, err := p.Registry.Acquire(doc.ID)
	if err != nil {
		p.Log.Warn("pipeline.process.in_flight", "document_id", doc.ID)
		return err
	}
	defer release()
	return p.process(ctx, doc, raw, force)
}

func (p *Pipeline) process(ctx context.Context, doc *entity.Document, raw []byte, force bool) error {
	if err := doc.CanProcess(force); err != nil {
		return err
	}

	start := time.Now()
	arts, err := p.Run(ctx, raw, doc.DeclaredFormat)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		doc.Fail(err, p.now())
		p.Log.Error("pipeline.process.failed", "document_id", doc.ID, "filename", doc.Filename, "err", err)
		return err
	}
	doc.Complete(arts, p.now())
	p.Log.Info("pipeline.process.ok",
		"document_id", doc.ID,
		"filename", doc.Filename,
		"degraded", arts.Degraded,
		"duration", time.Since(start),
	)
	return nil
}
