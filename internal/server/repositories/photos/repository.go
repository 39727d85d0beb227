// Package photos persists photo metadata rows.
package photos

import (
	"context"

	"github.com/darkroomapp/darkroom/internal/server/models"
)

// Repository describes the metadata operations the photo service needs.
type Repository interface {
	// Create inserts a new, unconfirmed photo row.
	Create(ctx context.Context, p *models.Photo) error

	// Confirm flips the row to confirmed once the object landed in storage.
	Confirm(ctx context.Context, id string) error

	// GetByID returns the row, confirmed or not.
	GetByID(ctx context.Context, id string) (*models.Photo, error)

	// ListByEvent returns confirmed rows for the event ordered by
	// captured_at ascending (id ascending as tiebreak), offset/limit
	// paginated.
	ListByEvent(ctx context.Context, eventID string, offset, limit int) ([]*models.Photo, error)
}
