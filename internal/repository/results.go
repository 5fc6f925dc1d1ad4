package repository

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/receipts-extractor/internal/common"
	"github.com/joseph-ayodele/receipts-extractor/internal/entity"
	"github.com/joseph-ayodele/receipts-extractor/internal/ocr"
)

// StoredResult is a cached extraction keyed by the hash of its input.
type StoredResult struct {
	ContentHash       string
	SourceRef         string
	Result            entity.ExtractionResult
	Confidence        float64
	NeedsVerification bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type ResultRepository interface {
	Get(ctx context.Context, hash string) (*StoredResult, error)
	Put(ctx context.Context, hash, sourceRef string, res entity.ExtractionResult) (*StoredResult, error)
	Delete(ctx context.Context, hash string) error
	ListNeedingVerification(ctx context.Context, limit int) ([]*StoredResult, error)
}

type resultRepo struct {
	db     *DB
	clock  func() time.Time
	logger *slog.Logger
}

func NewResultRepository(db *DB, logger *slog.Logger) ResultRepository {
	return &resultRepo{
		db:     db,
		clock:  time.Now,
		logger: logger,
	}
}

var resultColumns = []string{
	"content_hash", "source_ref", "result", "confidence", "needs_verification", "created_at", "updated_at",
}

func (r *resultRepo) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.db.Dialect())
}

// Get returns the cached result or an error wrapping common.ErrNotFound.
func (r *resultRepo) Get(ctx context.Context, hash string) (*StoredResult, error) {
	b := r.builder()
	query, args := b.Select(resultColumns...).
		From(b.Table(resultsTable)).
		Where(entsql.EQ("content_hash", hash)).
		Limit(1).
		Query()

	rows, err := r.query(ctx, query, args)
	if err != nil {
		r.logger.Error("failed to get stored result", "content_hash", hash, "error", err)
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("stored result %s: %w", hash, common.ErrNotFound)
	}
	return rows[0], nil
}

// Put inserts or replaces the result for hash. CreatedAt survives a replace.
func (r *resultRepo) Put(ctx context.Context, hash, sourceRef string, res entity.ExtractionResult) (*StoredResult, error) {
	payload, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	now := r.clock().UTC()
	ms := now.UnixMilli()

	query, args := r.builder().Insert(resultsTable).
		Columns(resultColumns...).
		Values(hash, sourceRef, string(payload), res.Confidence, res.NeedsVerification, ms, ms).
		OnConflict(
			entsql.ConflictColumns("content_hash"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				u.SetExcluded("source_ref")
				u.SetExcluded("result")
				u.SetExcluded("confidence")
				u.SetExcluded("needs_verification")
				u.SetExcluded("updated_at")
			}),
		).
		Query()
	if err := r.db.Driver.Exec(ctx, query, args, nil); err != nil {
		r.logger.Error("failed to store result", "content_hash", hash, "source_ref", sourceRef, "error", err)
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	r.logger.Debug("stored result", "content_hash", hash, "source_ref", sourceRef, "confidence", res.Confidence)
	return r.Get(ctx, hash)
}

func (r *resultRepo) Delete(ctx context.Context, hash string) error {
	query, args := r.builder().Delete(resultsTable).
		Where(entsql.EQ("content_hash", hash)).
		Query()
	var out sql.Result
	if err := r.db.Driver.Exec(ctx, query, args, &out); err != nil {
		r.logger.Error("failed to delete stored result", "content_hash", hash, "error", err)
		return fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	if n, err := out.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("stored result %s: %w", hash, common.ErrNotFound)
	}
	return nil
}

// ListNeedingVerification returns flagged results, most recently updated first.
func (r *resultRepo) ListNeedingVerification(ctx context.Context, limit int) ([]*StoredResult, error) {
	b := r.builder()
	sel := b.Select(resultColumns...).
		From(b.Table(resultsTable)).
		Where(entsql.EQ("needs_verification", true)).
		OrderBy(entsql.Desc("updated_at"), "content_hash")
	if limit > 0 {
		sel.Limit(limit)
	}
	query, args := sel.Query()
	rows, err := r.query(ctx, query, args)
	if err != nil {
		r.logger.Error("failed to list results needing verification", "error", err)
		return nil, err
	}
	return rows, nil
}

func (r *resultRepo) query(ctx context.Context, query string, args []any) ([]*StoredResult, error) {
	var rows entsql.Rows
	if err := r.db.Driver.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []*StoredResult
	for rows.Next() {
		var (
			s                StoredResult
			payload          string
			created, updated int64
		)
		if err := rows.Scan(&s.ContentHash, &s.SourceRef, &payload, &s.Confidence, &s.NeedsVerification, &created, &updated); err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
		}
		if err := json.Unmarshal([]byte(payload), &s.Result); err != nil {
			return nil, fmt.Errorf("decode stored result %s: %w", s.ContentHash, err)
		}
		s.CreatedAt = time.UnixMilli(created).UTC()
		s.UpdatedAt = time.UnixMilli(updated).UTC()
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(common.ErrDatabase, err)
	}
	return out, nil
}

// ContentHash identifies an OCR result for caching. The salt should change
// whenever the engine configuration does. Processing time is ignored.
func ContentHash(r ocr.Result, salt string) (string, error) {
	r.ProcessingTime = 0
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("hash OCR result: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(salt))
	h.Write([]byte{0})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}
