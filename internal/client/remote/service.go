// Package remote is the client-side integration with the remote photo
// service. The service itself is opaque: bytes go in through presigned PUT
// URLs, metadata comes back as JSON, storage references resolve to
// time-limited fetch URLs.
package remote

import (
	"context"
	"time"

	"github.com/darkroomapp/darkroom/internal/client/models"
)

// PhotoService is everything the client core needs from the backend.
type PhotoService interface {
	// UploadPhoto stores the processed image bytes and returns the storage
	// reference. Every call uses a fresh storage key, so retrying a failed
	// attempt can never corrupt an earlier write.
	UploadPhoto(ctx context.Context, eventID string, capturedAt time.Time, data []byte) (string, error)

	// ListPhotos returns confirmed photo rows for the event ordered by
	// capture time ascending, offset/limit paginated.
	ListPhotos(ctx context.Context, eventID string, offset, limit int) ([]models.PhotoItem, error)

	// IssueURL returns a fetch URL for the storage reference valid for at
	// least ttl.
	IssueURL(ctx context.Context, storageKey string, ttl time.Duration) (string, error)
}
