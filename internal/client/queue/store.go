// Package queue implements the durable offline upload queue. Records are
// persisted as a single JSON record list; every save is atomic
// (write-to-temp-then-rename) so an interrupted process never leaves a
// half-written queue file behind.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/darkroomapp/darkroom/internal/client/models"
	"github.com/darkroomapp/darkroom/internal/common"
	"github.com/darkroomapp/darkroom/internal/filex"
	"github.com/darkroomapp/darkroom/internal/logging"
)

const (
	queueFileName = "queue.json"
	uploadsDir    = "uploads"
)

// Store owns the queue record list. All mutation goes through its methods
// under a single mutex, which is what serializes per-record status
// transitions for concurrent upload workers.
type Store struct {
	mu         sync.Mutex
	records    []*models.QueuedUpload
	path       string
	uploadsDir string
	retryLimit int
	logger     logging.Logger
	now        func() time.Time
}

// NewStore creates the data layout under dataDir and loads any records left
// over from a previous run.
func NewStore(dataDir string, retryLimit int, logger logging.Logger) (*Store, error) {
	if err := filex.EnsureDir(dataDir); err != nil {
		return nil, err
	}
	ud, err := filex.EnsureSubDir(dataDir, uploadsDir)
	if err != nil {
		return nil, err
	}

	s := &Store{
		path:       filepath.Join(dataDir, queueFileName),
		uploadsDir: ud,
		retryLimit: retryLimit,
		logger:     logger.With("component", "queue"),
		now:        time.Now,
	}

	if err := s.load(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// load reads the record list from disk and repairs crash artifacts: records
// still marked uploading are reset to pending (the attempt cannot be trusted
// to have completed), and records whose local file vanished are dropped with
// a warning since that upload is unrecoverable.
func (s *Store) load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.records = nil
			return nil
		}
		return fmt.Errorf("read queue file: %w", err)
	}

	var records []*models.QueuedUpload
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("decode queue file: %w", err)
	}

	changed := false
	kept := records[:0]
	for _, rec := range records {
		if !filex.Exists(rec.LocalPath) {
			s.logger.Warn(ctx, "dropping queue record with missing local file",
				"id", rec.ID, "path", rec.LocalPath)
			changed = true
			continue
		}
		if rec.Status == models.StatusUploading {
			rec.Status = models.StatusPending
			changed = true
		}
		kept = append(kept, rec)
	}
	s.records = kept

	if changed {
		return s.saveLocked()
	}
	return nil
}

// Enqueue persists the image bytes under the new record's id and appends a
// pending record. The record is on disk before Enqueue returns, so a crash
// right after capture never silently loses the photo.
func (s *Store) Enqueue(imageBytes []byte, eventID string) (models.QueuedUpload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	localPath := filepath.Join(s.uploadsDir, id+".jpg")

	if err := filex.WriteFileAtomic(localPath, imageBytes, 0o660); err != nil {
		return models.QueuedUpload{}, fmt.Errorf("save image: %w", err)
	}

	rec := &models.QueuedUpload{
		ID:        id,
		EventID:   eventID,
		LocalPath: localPath,
		Status:    models.StatusPending,
		QueuedAt:  s.now(),
	}
	s.records = append(s.records, rec)

	if err := s.saveLocked(); err != nil {
		// Roll the append back so memory and disk stay in sync.
		s.records = s.records[:len(s.records)-1]
		os.Remove(localPath)
		return models.QueuedUpload{}, err
	}
	return *rec, nil
}

// Retryable returns copies of all records eligible for an automatic upload
// attempt: pending records, plus failed ones still under the retry limit.
func (s *Store) Retryable() []models.QueuedUpload {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []models.QueuedUpload
	for _, rec := range s.records {
		if s.retryableLocked(rec) {
			result = append(result, *rec)
		}
	}
	return result
}

func (s *Store) retryableLocked(rec *models.QueuedUpload) bool {
	switch rec.Status {
	case models.StatusPending:
		return true
	case models.StatusFailed:
		return rec.RetryCount < s.retryLimit
	default:
		return false
	}
}

// MarkUploading claims a record for an attempt. It fails with
// ErrQueueItemNotFound if the record is gone or no longer eligible (for
// example when a concurrent drain already claimed it), which is what keeps
// at most one attempt in flight per id.
func (s *Store) MarkUploading(id string) (models.QueuedUpload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.findLocked(id)
	if rec == nil || !s.retryableLocked(rec) {
		return models.QueuedUpload{}, common.ErrQueueItemNotFound
	}

	rec.Status = models.StatusUploading
	rec.LastAttemptAt = s.now()
	if err := s.saveLocked(); err != nil {
		return models.QueuedUpload{}, err
	}
	return *rec, nil
}

// MarkCompleted deletes the local file and prunes the record. The file is
// only removed here, after the remote write was confirmed.
func (s *Store) MarkCompleted(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.findLocked(id)
	if rec == nil {
		return common.ErrQueueItemNotFound
	}

	if err := os.Remove(rec.LocalPath); err != nil && !os.IsNotExist(err) {
		s.logger.Warn(ctx, "could not remove uploaded file", "id", id, "error", err)
	}

	kept := s.records[:0]
	for _, r := range s.records {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	s.records = kept

	return s.saveLocked()
}

// MarkFailed transitions uploading -> failed and increments RetryCount.
// Permanent failures jump straight to the retry limit so they never burn
// retries meant for network blips.
func (s *Store) MarkFailed(id string, errMsg string, permanent bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.findLocked(id)
	if rec == nil {
		return common.ErrQueueItemNotFound
	}

	rec.Status = models.StatusFailed
	rec.RetryCount++
	if permanent && rec.RetryCount < s.retryLimit {
		rec.RetryCount = s.retryLimit
	}
	rec.ErrorMessage = errMsg

	return s.saveLocked()
}

// ResetExhausted puts permanently failed records back into pending with a
// fresh retry budget. This backs the user-facing "retry failed uploads"
// action. Returns how many records were reset.
func (s *Store) ResetExhausted() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, rec := range s.records {
		if rec.Status == models.StatusFailed && rec.RetryCount >= s.retryLimit {
			rec.Status = models.StatusPending
			rec.RetryCount = 0
			rec.ErrorMessage = ""
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return n, s.saveLocked()
}

// Snapshot returns a read-only copy of all records.
func (s *Store) Snapshot() []models.QueuedUpload {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]models.QueuedUpload, 0, len(s.records))
	for _, rec := range s.records {
		result = append(result, *rec)
	}
	return result
}

// ExhaustedCount reports how many records failed past the retry limit and
// are waiting on a manual retry.
func (s *Store) ExhaustedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, rec := range s.records {
		if rec.Status == models.StatusFailed && rec.RetryCount >= s.retryLimit {
			n++
		}
	}
	return n
}

func (s *Store) findLocked(id string) *models.QueuedUpload {
	for _, rec := range s.records {
		if rec.ID == id {
			return rec
		}
	}
	return nil
}

func (s *Store) saveLocked() error {
	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode queue file: %w", err)
	}
	if err := filex.WriteFileAtomic(s.path, data, 0o660); err != nil {
		return fmt.Errorf("save queue file: %w", err)
	}
	return nil
}
