package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/quillview/litsynth/internal/domain"
	"github.com/quillview/litsynth/internal/export"
)

// Compile-time interface verification.
var _ RunRepository = (*PgRunRepository)(nil)

// PgRunRepository is a PostgreSQL implementation of RunRepository.
type PgRunRepository struct {
	db DBTX
}

// NewPgRunRepository creates a new PostgreSQL run repository.
func NewPgRunRepository(db DBTX) *PgRunRepository {
	return &PgRunRepository{db: db}
}

// SaveSnapshot stores or replaces the snapshot for a run. The upsert keeps
// retried persistence activities idempotent.
func (r *PgRunRepository) SaveSnapshot(ctx context.Context, doc export.Document) error {
	if doc.Run == nil {
		return &domain.ValidationError{Field: "run", Message: "snapshot run cannot be nil"}
	}
	if doc.Run.ID == uuid.Nil {
		return &domain.ValidationError{Field: "run_id", Message: "run ID is required"}
	}

	snapshot, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal run snapshot: %w", err)
	}

	query := `
		INSERT INTO session_snapshots (run_id, query, status, snapshot, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (run_id) DO UPDATE
		SET query = EXCLUDED.query,
			status = EXCLUDED.status,
			snapshot = EXCLUDED.snapshot,
			updated_at = now()`

	_, err = r.db.Exec(ctx, query, doc.Run.ID, doc.Run.Query, string(doc.Run.Status), snapshot)
	if err != nil {
		return fmt.Errorf("failed to save run snapshot: %w", err)
	}

	return nil
}

// GetSnapshot retrieves a run snapshot by run ID.
func (r *PgRunRepository) GetSnapshot(ctx context.Context, runID uuid.UUID) (export.Document, error) {
	query := `SELECT snapshot FROM session_snapshots WHERE run_id = $1`

	var raw []byte
	if err := r.db.QueryRow(ctx, query, runID).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return export.Document{}, domain.ErrRunNotFound
		}
		return export.Document{}, fmt.Errorf("failed to get run snapshot: %w", err)
	}

	var doc export.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return export.Document{}, fmt.Errorf("failed to unmarshal run snapshot: %w", err)
	}

	return doc, nil
}

// ListRuns returns run summaries ordered by creation time, newest first.
func (r *PgRunRepository) ListRuns(ctx context.Context, limit, offset int) ([]RunSummary, error) {
	applyPaginationDefaults(&limit, &offset)

	query := `
		SELECT run_id, query, status, created_at
		FROM session_snapshots
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	summaries := make([]RunSummary, 0, limit)
	for rows.Next() {
		var s RunSummary
		var status string
		if err := rows.Scan(&s.RunID, &s.Query, &status, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run summary: %w", err)
		}
		s.Status = domain.Status(status)
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate run summaries: %w", err)
	}

	return summaries, nil
}

// DeleteSnapshot removes a run snapshot.
func (r *PgRunRepository) DeleteSnapshot(ctx context.Context, runID uuid.UUID) error {
	query := `DELETE FROM session_snapshots WHERE run_id = $1`

	tag, err := r.db.Exec(ctx, query, runID)
	if err != nil {
		return fmt.Errorf("failed to delete run snapshot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRunNotFound
	}

	return nil
}
