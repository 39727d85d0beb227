package uploader

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darkroomapp/darkroom/internal/client/models"
	"github.com/darkroomapp/darkroom/internal/client/queue"
	"github.com/darkroomapp/darkroom/internal/common"
	"github.com/darkroomapp/darkroom/internal/logging"
)

func newTestLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newTestStore(t *testing.T, dir string) *queue.Store {
	t.Helper()
	s, err := queue.NewStore(dir, 3, newTestLogger())
	require.NoError(t, err)
	return s
}

// fakeRemote is a scriptable RemoteUploader that tracks call counts and the
// maximum number of concurrent in-flight uploads.
type fakeRemote struct {
	mu       sync.Mutex
	calls    int
	inFlight int32
	maxSeen  int32
	delay    time.Duration

	// fail returns the error for the n-th call (1-based); nil means success.
	fail func(call int) error
}

func (f *fakeRemote) UploadPhoto(ctx context.Context, eventID string, capturedAt time.Time, data []byte) (string, error) {
	cur := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		max := atomic.LoadInt32(&f.maxSeen)
		if cur <= max || atomic.CompareAndSwapInt32(&f.maxSeen, max, cur) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()

	if f.fail != nil {
		if err := f.fail(call); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("events/e/%d", call), nil
}

func newTestPool(store *queue.Store, remote RemoteUploader, workers int) *Pool {
	return NewPool(store, remote, newTestLogger(), Options{
		Workers:     workers,
		RetryLimit:  3,
		BackoffBase: time.Millisecond,
	})
}

func TestProcessQueue_UploadsEverything(t *testing.T) {
	store := newTestStore(t, t.TempDir())
	for i := 0; i < 5; i++ {
		_, err := store.Enqueue([]byte("img"), "event-1")
		require.NoError(t, err)
	}

	remote := &fakeRemote{}
	pool := newTestPool(store, remote, 3)

	pool.ProcessQueue(context.Background())

	assert.Equal(t, 5, remote.calls)
	assert.Empty(t, store.Snapshot())
}

func TestProcessQueue_NeverExceedsWorkerBound(t *testing.T) {
	store := newTestStore(t, t.TempDir())
	for i := 0; i < 12; i++ {
		_, err := store.Enqueue([]byte("img"), "e")
		require.NoError(t, err)
	}

	remote := &fakeRemote{delay: 20 * time.Millisecond}
	pool := newTestPool(store, remote, 3)

	pool.ProcessQueue(context.Background())

	assert.Equal(t, 12, remote.calls)
	assert.LessOrEqual(t, remote.maxSeen, int32(3))
	assert.Empty(t, store.Snapshot())
}

func TestProcessQueue_TransientFailureConsumesRetryBudget(t *testing.T) {
	store := newTestStore(t, t.TempDir())
	rec, err := store.Enqueue([]byte("img"), "e")
	require.NoError(t, err)

	remote := &fakeRemote{fail: func(int) error {
		return fmt.Errorf("%w: connection reset", common.ErrTransient)
	}}
	pool := newTestPool(store, remote, 3)

	pool.ProcessQueue(context.Background())

	// Exactly the retry ceiling worth of attempts, then left failed.
	assert.Equal(t, 3, remote.calls)
	snap := store.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, rec.ID, snap[0].ID)
	assert.Equal(t, models.StatusFailed, snap[0].Status)
	assert.Equal(t, 3, snap[0].RetryCount)

	// Local file stays: only confirmed success deletes it.
	assert.FileExists(t, rec.LocalPath)

	// Another drain does not touch the exhausted record.
	pool.ProcessQueue(context.Background())
	assert.Equal(t, 3, remote.calls)
}

func TestProcessQueue_TransientThenSuccess(t *testing.T) {
	store := newTestStore(t, t.TempDir())
	rec, err := store.Enqueue([]byte("img"), "e")
	require.NoError(t, err)

	remote := &fakeRemote{fail: func(call int) error {
		if call == 1 {
			return fmt.Errorf("%w: timeout", common.ErrTransient)
		}
		return nil
	}}
	pool := newTestPool(store, remote, 3)

	pool.ProcessQueue(context.Background())

	assert.Equal(t, 2, remote.calls)
	assert.Empty(t, store.Snapshot())
	assert.NoFileExists(t, rec.LocalPath)
}

func TestProcessQueue_PermanentFailureDoesNotRetry(t *testing.T) {
	store := newTestStore(t, t.TempDir())
	_, err := store.Enqueue([]byte("img"), "e")
	require.NoError(t, err)

	remote := &fakeRemote{fail: func(int) error {
		return fmt.Errorf("%w: payload rejected", common.ErrPermanent)
	}}
	pool := newTestPool(store, remote, 3)

	pool.ProcessQueue(context.Background())

	assert.Equal(t, 1, remote.calls)
	snap := store.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, models.StatusFailed, snap[0].Status)
	assert.Equal(t, 3, snap[0].RetryCount)
	assert.Equal(t, 1, store.ExhaustedCount())
}

func TestProcessQueue_ConcurrentDrainsDoNotDuplicate(t *testing.T) {
	store := newTestStore(t, t.TempDir())
	for i := 0; i < 8; i++ {
		_, err := store.Enqueue([]byte("img"), "e")
		require.NoError(t, err)
	}

	remote := &fakeRemote{delay: 5 * time.Millisecond}
	pool := newTestPool(store, remote, 3)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pool.ProcessQueue(context.Background())
		}()
	}
	wg.Wait()

	// Every record uploaded exactly once despite overlapping drains.
	assert.Equal(t, 8, remote.calls)
	assert.LessOrEqual(t, remote.maxSeen, int32(3))
	assert.Empty(t, store.Snapshot())
}

func TestProcessQueue_AfterRestart_UploadsExactlyOnce(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore(t, dir)
	for i := 0; i < 5; i++ {
		_, err := store.Enqueue([]byte("img"), "event-E")
		require.NoError(t, err)
	}

	// Kill the process before any upload completed; a fresh store loads the
	// same queue file.
	restarted := newTestStore(t, dir)

	remote := &fakeRemote{}
	pool := newTestPool(restarted, remote, 3)
	pool.ProcessQueue(context.Background())

	assert.Equal(t, 5, remote.calls)
	assert.Empty(t, restarted.Snapshot())
}

func TestProcessQueue_MissingLocalFileIsPermanent(t *testing.T) {
	store := newTestStore(t, t.TempDir())
	rec, err := store.Enqueue([]byte("img"), "e")
	require.NoError(t, err)

	// The file vanishes while the record is still queued (load would have
	// dropped it, but this models a mid-run deletion).
	require.NoError(t, os.Remove(rec.LocalPath))

	remote := &fakeRemote{}
	pool := newTestPool(store, remote, 3)
	pool.ProcessQueue(context.Background())

	assert.Equal(t, 0, remote.calls)
	snap := store.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, models.StatusFailed, snap[0].Status)
	assert.Equal(t, common.ErrLocalFileMissing.Error(), snap[0].ErrorMessage)
}
