package database

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/denisAlshanov/mediagrab/internal/models"
)

// ErrNotFound is returned by DeleteAcquisition for unknown IDs.
var ErrNotFound = errors.New("acquisition not found")

// HistoryStore persists acquisition records.
type HistoryStore interface {
	// SaveAcquisition inserts the record or replaces the one with the same ID.
	SaveAcquisition(ctx context.Context, acq *models.Acquisition) error
	// GetAcquisition returns nil, nil when the ID is unknown.
	GetAcquisition(ctx context.Context, id uuid.UUID) (*models.Acquisition, error)
	// ListAcquisitions returns one page, newest first, and the total count.
	ListAcquisitions(ctx context.Context, opts models.PaginationOptions) ([]models.Acquisition, int, error)
	DeleteAcquisition(ctx context.Context, id uuid.UUID) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
