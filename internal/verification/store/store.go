// Package store persists verification records.
//
// Implementations must make Execute a single atomic validate-then-mutate: the
// lock (mutex or SELECT ... FOR UPDATE) is held across both callbacks so two
// delivery paths can never both commit a transition out of pending.
package store

import (
	"context"
	"time"

	"veristamp/internal/verification/models"
)

// Store is the durable keyed storage for verification records.
type Store interface {
	// Create persists a new record. Returns sentinel.ErrConflict when the id
	// already exists.
	Create(ctx context.Context, record *models.VerificationRecord) error

	// FindByID returns a copy of the record or sentinel.ErrNotFound.
	FindByID(ctx context.Context, id models.VerificationID) (*models.VerificationRecord, error)

	// Execute atomically loads the record, runs validate, and if validate
	// returns nil applies mutate and persists the result. The record is locked
	// for the duration. Returns the updated record, sentinel.ErrNotFound for an
	// unknown id, or the validate error unchanged.
	Execute(
		ctx context.Context,
		id models.VerificationID,
		validate func(*models.VerificationRecord) error,
		mutate func(*models.VerificationRecord),
	) (*models.VerificationRecord, error)

	// ListStale returns pending records created before the cutoff. An external
	// scheduler uses this to drive operator retry or manual rejection; this
	// core runs no timeout clock of its own.
	ListStale(ctx context.Context, cutoff time.Time) ([]*models.VerificationRecord, error)
}
