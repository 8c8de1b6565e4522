package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/legal-simplifier/constants"
	"github.com/joseph-ayodele/legal-simplifier/internal/common"
	"github.com/joseph-ayodele/legal-simplifier/internal/entity"
)

// DefaultListLimit caps List when no limit is given.
const DefaultListLimit = 100

type DocumentRepository interface {
	Create(ctx context.Context, doc *entity.Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Document, error)
	GetByHash(ctx context.Context, hash string) (*entity.Document, error)
	List(ctx context.Context, limit int) ([]*entity.Document, error)
	// MarkProcessed writes every artifact and the status in one statement.
	MarkProcessed(ctx context.Context, doc *entity.Document) error
	MarkFailed(ctx context.Context, doc *entity.Document) error
	Delete(ctx context.Context, id uuid.UUID) error
}

var documentColumns = []string{
	"id",
	"filename",
	"declared_format",
	"source_path",
	"content_hash",
	"file_size",
	"status",
	"original_text",
	"summary_text",
	"simplified_text",
	"entities",
	"degraded",
	"error_message",
	"created_at",
	"updated_at",
	"processed_at",
}

type documentRepo struct {
	db     *DB
	logger *slog.Logger
}

func NewDocumentRepository(db *DB, logger *slog.Logger) DocumentRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &documentRepo{db: db, logger: logger}
}

func (r *documentRepo) Create(ctx context.Context, doc *entity.Document) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = doc.CreatedAt
	if doc.Status == "" {
		doc.Status = constants.StatusUploaded
	}
	if doc.Entities == nil {
		doc.Entities = []entity.Entity{}
	}
	entitiesJSON, err := json.Marshal(doc.Entities)
	if err != nil {
		return fmt.Errorf("encode entities: %w", err)
	}

	query, args, err := r.db.builder().
		Insert("documents").
		Columns(documentColumns...).
		Values(
			doc.ID.String(),
			doc.Filename,
			doc.DeclaredFormat,
			doc.SourcePath,
			doc.ContentHash,
			doc.FileSize,
			string(doc.Status),
			doc.OriginalText,
			doc.SummaryText,
			doc.SimplifiedText,
			string(entitiesJSON),
			doc.Degraded,
			doc.ErrorMessage,
			doc.CreatedAt.UTC(),
			doc.UpdatedAt.UTC(),
			nullableTime(doc.ProcessedAt),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.db.SQL.ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("failed to create document", "document_id", doc.ID, "filename", doc.Filename, "error", err)
		return fmt.Errorf("create document: %w: %v", common.ErrDatabase, err)
	}
	r.logger.Debug("document created", "document_id", doc.ID, "filename", doc.Filename)
	return nil
}

func (r *documentRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Document, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id.String()})
}

func (r *documentRepo) GetByHash(ctx context.Context, hash string) (*entity.Document, error) {
	return r.getOne(ctx, squirrel.Eq{"content_hash": hash})
}

func (r *documentRepo) getOne(ctx context.Context, where squirrel.Eq) (*entity.Document, error) {
	query, args, err := r.db.builder().
		Select(documentColumns...).
		From("documents").
		Where(where).
		OrderBy("created_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	doc, err := scanDocument(r.db.SQL.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %v: %w", where, common.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("failed to get document", "where", where, "error", err)
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	return doc, nil
}

// List returns documents newest first.
func (r *documentRepo) List(ctx context.Context, limit int) ([]*entity.Document, error) {
	if limit <= 0 || limit > DefaultListLimit {
		limit = DefaultListLimit
	}
	query, args, err := r.db.builder().
		Select(documentColumns...).
		From("documents").
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	rows, err := r.db.SQL.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to list documents", "error", err)
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]*entity.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	return out, nil
}

func (r *documentRepo) MarkProcessed(ctx context.Context, doc *entity.Document) error {
	if doc.Status != constants.StatusProcessed {
		return fmt.Errorf("%w: document %s has status %s", common.ErrInvalidInput, doc.ID, doc.Status)
	}
	return r.writeOutcome(ctx, doc)
}

func (r *documentRepo) MarkFailed(ctx context.Context, doc *entity.Document) error {
	if doc.Status != constants.StatusFailed {
		return fmt.Errorf("%w: document %s has status %s", common.ErrInvalidInput, doc.ID, doc.Status)
	}
	return r.writeOutcome(ctx, doc)
}

func (r *documentRepo) writeOutcome(ctx context.Context, doc *entity.Document) error {
	entities := doc.Entities
	if entities == nil {
		entities = []entity.Entity{}
	}
	entitiesJSON, err := json.Marshal(entities)
	if err != nil {
		return fmt.Errorf("encode entities: %w", err)
	}
	query, args, err := r.db.builder().
		Update("documents").
		SetMap(map[string]any{
			"status":          string(doc.Status),
			"original_text":   doc.OriginalText,
			"summary_text":    doc.SummaryText,
			"simplified_text": doc.SimplifiedText,
			"entities":        string(entitiesJSON),
			"degraded":        doc.Degraded,
			"error_message":   doc.ErrorMessage,
			"updated_at":      doc.UpdatedAt.UTC(),
			"processed_at":    nullableTime(doc.ProcessedAt),
		}).
		Where(squirrel.Eq{"id": doc.ID.String()}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	res, err := r.db.SQL.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to update document", "document_id", doc.ID, "status", doc.Status, "error", err)
		return fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("document %s: %w", doc.ID, common.ErrNotFound)
	}
	r.logger.Debug("document updated", "document_id", doc.ID, "status", doc.Status)
	return nil
}

func (r *documentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	query, args, err := r.db.builder().
		Delete("documents").
		Where(squirrel.Eq{"id": id.String()}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	res, err := r.db.SQL.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to delete document", "document_id", id, "error", err)
		return fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("document %s: %w", id, common.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*entity.Document, error) {
	var (
		doc          entity.Document
		id           string
		status       string
		entitiesJSON string
		processedAt  sql.NullTime
	)
	if err := row.Scan(
		&id,
		&doc.Filename,
		&doc.DeclaredFormat,
		&doc.SourcePath,
		&doc.ContentHash,
		&doc.FileSize,
		&status,
		&doc.OriginalText,
		&doc.SummaryText,
		&doc.SimplifiedText,
		&entitiesJSON,
		&doc.Degraded,
		&doc.ErrorMessage,
		&doc.CreatedAt,
		&doc.UpdatedAt,
		&processedAt,
	); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse document id %q: %w", id, err)
	}
	doc.ID = parsed
	doc.Status = constants.DocumentStatus(status)
	if err := json.Unmarshal([]byte(entitiesJSON), &doc.Entities); err != nil {
		return nil, fmt.Errorf("decode entities: %w", err)
	}
	if doc.Entities == nil {
		doc.Entities = []entity.Entity{}
	}
	if processedAt.Valid {
		t := processedAt.Time
		doc.ProcessedAt = &t
	}
	return &doc, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
