package queue

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darkroomapp/darkroom/internal/client/models"
	"github.com/darkroomapp/darkroom/internal/common"
	"github.com/darkroomapp/darkroom/internal/logging"
)

const testRetryLimit = 3

func newTestLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newTestStore(t *testing.T, dir string) *Store {
	t.Helper()
	s, err := NewStore(dir, testRetryLimit, newTestLogger())
	require.NoError(t, err)
	return s
}

func TestEnqueue_PersistsSynchronously(t *testing.T) {
	dir := t.TempDir()
	s := newTestStore(t, dir)

	rec, err := s.Enqueue([]byte("jpeg-bytes"), "event-1")
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "event-1", rec.EventID)
	assert.Equal(t, models.StatusPending, rec.Status)
	assert.False(t, rec.QueuedAt.IsZero())

	// The image file and the queue file are both on disk before Enqueue
	// returned.
	data, err := os.ReadFile(rec.LocalPath)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), data)

	raw, err := os.ReadFile(filepath.Join(dir, "queue.json"))
	require.NoError(t, err)
	var onDisk []models.QueuedUpload
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	require.Len(t, onDisk, 1)
	assert.Equal(t, rec.ID, onDisk[0].ID)
}

func TestLoad_ResetsUploadingToPending(t *testing.T) {
	dir := t.TempDir()
	s := newTestStore(t, dir)

	rec, err := s.Enqueue([]byte("x"), "e")
	require.NoError(t, err)
	_, err = s.MarkUploading(rec.ID)
	require.NoError(t, err)

	// Simulate a crash mid-upload: a fresh store over the same directory.
	restarted := newTestStore(t, dir)

	snap := restarted.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, models.StatusPending, snap[0].Status)
}

func TestLoad_DropsRecordsWithMissingFiles(t *testing.T) {
	dir := t.TempDir()
	s := newTestStore(t, dir)

	keep, err := s.Enqueue([]byte("keep"), "e")
	require.NoError(t, err)
	orphan, err := s.Enqueue([]byte("orphan"), "e")
	require.NoError(t, err)

	require.NoError(t, os.Remove(orphan.LocalPath))

	restarted := newTestStore(t, dir)
	snap := restarted.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, keep.ID, snap[0].ID)

	// The drop is persisted: another load does not resurrect the orphan.
	again := newTestStore(t, dir)
	require.Len(t, again.Snapshot(), 1)
}

func TestMarkUploading_ClaimsOnlyOnce(t *testing.T) {
	dir := t.TempDir()
	s := newTestStore(t, dir)

	rec, err := s.Enqueue([]byte("x"), "e")
	require.NoError(t, err)

	claimed, err := s.MarkUploading(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusUploading, claimed.Status)
	assert.False(t, claimed.LastAttemptAt.IsZero())

	// Second claim while in flight must fail.
	_, err = s.MarkUploading(rec.ID)
	assert.ErrorIs(t, err, common.ErrQueueItemNotFound)
}

func TestMarkFailed_IncrementsRetryCount(t *testing.T) {
	dir := t.TempDir()
	s := newTestStore(t, dir)

	rec, err := s.Enqueue([]byte("x"), "e")
	require.NoError(t, err)

	for i := 1; i <= testRetryLimit; i++ {
		_, err = s.MarkUploading(rec.ID)
		require.NoError(t, err)
		require.NoError(t, s.MarkFailed(rec.ID, "timeout", false))

		snap := s.Snapshot()
		require.Len(t, snap, 1)
		assert.Equal(t, models.StatusFailed, snap[0].Status)
		assert.Equal(t, i, snap[0].RetryCount)
		assert.Equal(t, "timeout", snap[0].ErrorMessage)
	}

	// Ceiling reached: no longer claimable, counted as exhausted.
	_, err = s.MarkUploading(rec.ID)
	assert.ErrorIs(t, err, common.ErrQueueItemNotFound)
	assert.Empty(t, s.Retryable())
	assert.Equal(t, 1, s.ExhaustedCount())
}

func TestMarkFailed_PermanentJumpsToCeiling(t *testing.T) {
	dir := t.TempDir()
	s := newTestStore(t, dir)

	rec, err := s.Enqueue([]byte("x"), "e")
	require.NoError(t, err)
	_, err = s.MarkUploading(rec.ID)
	require.NoError(t, err)

	require.NoError(t, s.MarkFailed(rec.ID, "payload rejected", true))

	snap := s.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, testRetryLimit, snap[0].RetryCount)
	assert.Empty(t, s.Retryable())
}

func TestMarkCompleted_DeletesFileAndPrunesRecord(t *testing.T) {
	dir := t.TempDir()
	s := newTestStore(t, dir)

	rec, err := s.Enqueue([]byte("x"), "e")
	require.NoError(t, err)
	_, err = s.MarkUploading(rec.ID)
	require.NoError(t, err)

	require.NoError(t, s.MarkCompleted(context.Background(), rec.ID))

	assert.Empty(t, s.Snapshot())
	assert.NoFileExists(t, rec.LocalPath)

	// Pruning is durable.
	restarted := newTestStore(t, dir)
	assert.Empty(t, restarted.Snapshot())
}

func TestResetExhausted_MakesRecordsRetryableAgain(t *testing.T) {
	dir := t.TempDir()
	s := newTestStore(t, dir)

	rec, err := s.Enqueue([]byte("x"), "e")
	require.NoError(t, err)
	_, err = s.MarkUploading(rec.ID)
	require.NoError(t, err)
	require.NoError(t, s.MarkFailed(rec.ID, "rejected", true))
	require.Equal(t, 1, s.ExhaustedCount())

	n, err := s.ResetExhausted()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, s.ExhaustedCount())

	snap := s.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, models.StatusPending, snap[0].Status)
	assert.Equal(t, 0, snap[0].RetryCount)
	assert.Empty(t, snap[0].ErrorMessage)
}

func TestRetryable_SelectsPendingAndFailedUnderLimit(t *testing.T) {
	dir := t.TempDir()
	s := newTestStore(t, dir)

	pending, err := s.Enqueue([]byte("a"), "e")
	require.NoError(t, err)

	failedOnce, err := s.Enqueue([]byte("b"), "e")
	require.NoError(t, err)
	_, err = s.MarkUploading(failedOnce.ID)
	require.NoError(t, err)
	require.NoError(t, s.MarkFailed(failedOnce.ID, "net", false))

	inFlight, err := s.Enqueue([]byte("c"), "e")
	require.NoError(t, err)
	_, err = s.MarkUploading(inFlight.ID)
	require.NoError(t, err)

	ids := make(map[string]struct{})
	for _, rec := range s.Retryable() {
		ids[rec.ID] = struct{}{}
	}
	assert.Equal(t, map[string]struct{}{pending.ID: {}, failedOnce.ID: {}}, ids)
}
