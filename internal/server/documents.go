package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/legal-simplifier/constants"
	"github.com/joseph-ayodele/legal-simplifier/internal/async"
	"github.com/joseph-ayodele/legal-simplifier/internal/common"
	"github.com/joseph-ayodele/legal-simplifier/internal/entity"
	"github.com/joseph-ayodele/legal-simplifier/internal/export"
	"github.com/joseph-ayodele/legal-simplifier/internal/ingest"
	"github.com/joseph-ayodele/legal-simplifier/internal/pipeline"
	"github.com/joseph-ayodele/legal-simplifier/internal/repository"
)

// UploadRemover deletes stored uploads.
type UploadRemover interface {
	Delete(key string) error
}

// DocumentsService implements DocumentsServer.
type DocumentsService struct {
	ingestor  ingest.Ingestor
	docs      repository.DocumentRepository
	uploads   UploadRemover
	processor *pipeline.Processor
	queue     async.Queue // nil: async requests are processed inline
	exporter  *export.Service
	logger    *slog.Logger
}

var _ DocumentsServer = (*DocumentsService)(nil)

func NewDocumentsService(
	ingestor ingest.Ingestor,
	docs repository.DocumentRepository,
	uploads UploadRemover,
	processor *pipeline.Processor,
	queue async.Queue,
	exporter *export.Service,
	logger *slog.Logger,
) *DocumentsService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentsService{
		ingestor:  ingestor,
		docs:      docs,
		uploads:   uploads,
		processor: processor,
		queue:     queue,
		exporter:  exporter,
		logger:    logger,
	}
}

// UploadDocument stores a base64 encoded file and optionally processes it.
// Request: filename, format, content_base64, process, async.
func (s *DocumentsService) UploadDocument(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	filename := stringField(req, "filename")
	encoded := stringField(req, "content_base64")
	if err := common.NewValidator().
		Field("filename", filename, common.Required).
		Field("content_base64", encoded, common.Required).
		Err(); err != nil {
		s.logger.Error("upload request invalid", "error", err)
		return nil, common.InvalidArgumentError(err.Error())
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		s.logger.Error("upload content is not base64", "filename", filename, "error", err)
		return nil, common.InvalidArgumentError("content_base64 must be standard base64")
	}

	res, err := s.ingestor.IngestBytes(ctx, ingest.Upload{
		Filename:       filename,
		DeclaredFormat: stringField(req, "format"),
		Data:           data,
	})
	if err != nil {
		s.logger.Error("upload.failed", "filename", filename, "err", err)
		return nil, toStatus(err)
	}
	s.logger.Info("upload.ok", "document_id", res.DocumentID, "filename", filename, "size", res.Size, "deduplicated", res.Deduplicated)

	out := map[string]any{
		"document_id":     res.DocumentID.String(),
		"declared_format": res.DeclaredFormat,
		"detected_format": res.DetectedFormat,
		"content_hash":    res.HashHex,
		"size":            res.Size,
		"deduplicated":    res.Deduplicated,
		"uploaded_at":     res.UploadedAt.UTC().Format(time.RFC3339),
		"warnings":        stringsToAny(res.Warnings),
	}
	if boolField(req, "process", false) && !res.Deduplicated {
		outcome, err := s.dispatch(ctx, res.DocumentID, false, boolField(req, "async", false))
		if err != nil {
			return nil, err
		}
		for k, v := range outcome {
			out[k] = v
		}
	}
	return structpb.NewStruct(out)
}

// ProcessDocument runs the pipeline for an uploaded document.
// Request: id, force, async.
func (s *DocumentsService) ProcessDocument(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := documentID(req)
	if err != nil {
		return nil, err
	}
	out, err := s.dispatch(ctx, id, boolField(req, "force", false), boolField(req, "async", false))
	if err != nil {
		return nil, err
	}
	return structpb.NewStruct(out)
}

// dispatch queues the document or processes it inline. A pipeline failure is a
// valid outcome: the failed document is returned with its error message.
func (s *DocumentsService) dispatch(ctx context.Context, id uuid.UUID, force, background bool) (map[string]any, error) {
	traceID := uuid.NewString()
	ctx = common.WithDocumentID(common.WithTraceID(ctx, traceID), id)

	if background && s.queue != nil {
		job := async.Job{DocumentID: id, Force: force, SubmittedAt: time.Now().UTC(), TraceID: traceID}
		if err := s.queue.Enqueue(ctx, job); err != nil {
			s.logger.Error("process.enqueue.failed", append(common.LogAttrs(ctx), "err", err)...)
			return nil, toStatus(err)
		}
		s.logger.Info("process.queued", common.LogAttrs(ctx)...)
		return map[string]any{"queued": true, "trace_id": traceID}, nil
	}

	doc, err := s.processor.ProcessDocument(ctx, id, force)
	if err != nil && !persistedFailure(doc, err) {
		return nil, toStatus(err)
	}
	m, cerr := documentMap(doc)
	if cerr != nil {
		return nil, common.InternalError(cerr.Error())
	}
	return map[string]any{"queued": false, "document": m, "trace_id": traceID}, nil
}

// persistedFailure reports whether err is a pipeline failure already recorded on doc.
func persistedFailure(doc *entity.Document, err error) bool {
	if doc == nil || doc.Status != constants.StatusFailed {
		return false
	}
	return !errors.Is(err, entity.ErrTerminalState) &&
		!errors.Is(err, common.ErrDatabase) &&
		!errors.Is(err, common.ErrNotFound) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

// GetDocument returns one document. Request: id.
func (s *DocumentsService) GetDocument(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := documentID(req)
	if err != nil {
		return nil, err
	}
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	m, err := documentMap(doc)
	if err != nil {
		return nil, common.InternalError(err.Error())
	}
	return structpb.NewStruct(map[string]any{"document": m})
}

// ListDocuments returns the newest documents first. Request: limit.
// Extracted texts are omitted from list items.
func (s *DocumentsService) ListDocuments(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	limit := intField(req, "limit", repository.DefaultListLimit)
	if limit < 0 {
		return nil, common.InvalidArgumentErrorf("limit must not be negative, got %d", limit)
	}
	docs, err := s.docs.List(ctx, limit)
	if err != nil {
		return nil, toStatus(err)
	}
	items := make([]any, 0, len(docs))
	for _, d := range docs {
		items = append(items, map[string]any{
			"id":              d.ID.String(),
			"filename":        d.Filename,
			"declared_format": d.DeclaredFormat,
			"status":          string(d.Status),
			"degraded":        d.Degraded,
			"entity_count":    len(d.Entities),
			"created_at":      d.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return structpb.NewStruct(map[string]any{"documents": items, "count": len(items)})
}

// ExportDocument renders a processed document.
// Request: id, format (json|txt|xlsx), include_original, include_simplified,
// include_entities, include_analytics.
func (s *DocumentsService) ExportDocument(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := documentID(req)
	if err != nil {
		return nil, err
	}
	format := stringField(req, "format")
	if format == "" {
		format = export.FormatJSON
	}
	if err := common.NewValidator().
		Field("format", format, common.OneOf(export.FormatJSON, export.FormatText, export.FormatXLSX)).
		Err(); err != nil {
		return nil, common.InvalidArgumentError(err.Error())
	}
	opts := export.Options{
		Original:   boolField(req, "include_original", true),
		Simplified: boolField(req, "include_simplified", true),
		Entities:   boolField(req, "include_entities", true),
		Analytics:  boolField(req, "include_analytics", true),
	}
	file, err := s.exporter.Export(ctx, id, format, opts)
	if err != nil {
		s.logger.Error("export.failed", "document_id", id, "format", format, "err", err)
		return nil, toStatus(err)
	}
	s.logger.Info("export.ok", "document_id", id, "format", format, "bytes", len(file.Data))
	return structpb.NewStruct(map[string]any{
		"filename":       file.Name,
		"content_type":   file.ContentType,
		"content_base64": base64.StdEncoding.EncodeToString(file.Data),
		"size":           len(file.Data),
	})
}

// DeleteDocument removes a document and its stored upload. Request: id.
func (s *DocumentsService) DeleteDocument(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := documentID(req)
	if err != nil {
		return nil, err
	}
	release, err := s.processor.Pipeline.Registry.Acquire(id)
	if err != nil {
		return nil, toStatus(err)
	}
	defer release()

	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	if err := s.docs.Delete(ctx, id); err != nil {
		return nil, toStatus(err)
	}
	if s.uploads != nil && doc.SourcePath != "" {
		if err := s.uploads.Delete(doc.SourcePath); err != nil {
			s.logger.Warn("delete.upload.failed", "document_id", id, "source_path", doc.SourcePath, "err", err)
		}
	}
	s.logger.Info("delete.ok", "document_id", id)
	return structpb.NewStruct(map[string]any{"deleted": true, "id": id.String()})
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, pipeline.ErrInFlight):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, entity.ErrTerminalState):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, async.ErrQueueClosed):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return common.StatusFromError(err)
}

func documentID(req *structpb.Struct) (uuid.UUID, error) {
	raw := stringField(req, "id")
	if err := common.NewValidator().Field("id", raw, common.Required, common.UUID).Err(); err != nil {
		return uuid.Nil, common.InvalidArgumentError(err.Error())
	}
	return uuid.MustParse(raw), nil
}

// documentMap converts a document through its JSON shape into Struct-compatible values.
func documentMap(doc *entity.Document) (map[string]any, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}
