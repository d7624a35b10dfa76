// Package repository provides data access for persisted synthesis runs.
//
// The single RunRepository stores a terminal run as one JSONB snapshot row.
// Snapshots are immutable once a run reaches a terminal status; SaveSnapshot
// is an upsert so retried persistence activities stay idempotent.
//
// All methods return domain errors where they apply (domain.ErrRunNotFound)
// and wrap database errors with fmt.Errorf %w otherwise. Implementations are
// safe for concurrent use; the underlying pgxpool handles synchronization.
//
// Repositories accept DBTX so they work with both a connection pool and a
// transaction obtained from database.DB.WithTransaction:
//
//	err := db.WithTransaction(ctx, func(tx pgx.Tx) error {
//	    txRepo := repository.NewPgRunRepository(tx)
//	    return txRepo.SaveSnapshot(ctx, doc)
//	})
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/quillview/litsynth/internal/database"
	"github.com/quillview/litsynth/internal/domain"
	"github.com/quillview/litsynth/internal/export"
)

// DBTX is the database interface supporting both pool and transaction contexts.
type DBTX = database.DBTX

// RunSummary is a lightweight listing row for a persisted run.
type RunSummary struct {
	RunID     uuid.UUID     `json:"run_id"`
	Query     string        `json:"query"`
	Status    domain.Status `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}

// RunRepository persists terminal run snapshots.
type RunRepository interface {
	// SaveSnapshot stores or replaces the snapshot for a run.
	SaveSnapshot(ctx context.Context, doc export.Document) error
	// GetSnapshot retrieves a run snapshot by run ID. Returns
	// domain.ErrRunNotFound when no snapshot exists.
	GetSnapshot(ctx context.Context, runID uuid.UUID) (export.Document, error)
	// ListRuns returns run summaries ordered by creation time, newest first.
	ListRuns(ctx context.Context, limit, offset int) ([]RunSummary, error)
	// DeleteSnapshot removes a run snapshot. Returns domain.ErrRunNotFound
	// when no snapshot exists.
	DeleteSnapshot(ctx context.Context, runID uuid.UUID) error
}

// Listing pagination defaults and limits.
const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// applyPaginationDefaults clamps limit to [1, maxListLimit] and offset to >= 0.
func applyPaginationDefaults(limit, offset *int) {
	if *limit <= 0 {
		*limit = defaultListLimit
	}
	if *limit > maxListLimit {
		*limit = maxListLimit
	}
	if *offset < 0 {
		*offset = 0
	}
}
