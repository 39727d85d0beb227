// Package uploader drains the offline queue with a bounded worker pool.
package uploader

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/semaphore"

	"github.com/darkroomapp/darkroom/internal/client/models"
	"github.com/darkroomapp/darkroom/internal/client/queue"
	"github.com/darkroomapp/darkroom/internal/common"
	"github.com/darkroomapp/darkroom/internal/logging"
)

// RemoteUploader pushes processed image bytes to the remote photo service
// and returns the storage reference of the stored object. Implementations
// must use a fresh storage key per call so retried attempts stay idempotent.
type RemoteUploader interface {
	UploadPhoto(ctx context.Context, eventID string, capturedAt time.Time, data []byte) (string, error)
}

// Pool uploads queued records with at most Workers attempts in flight at any
// moment, across overlapping ProcessQueue invocations. The bound covers both
// device network usage and the memory held for in-flight payloads.
type Pool struct {
	store   *queue.Store
	remote  RemoteUploader
	logger  logging.Logger
	sem     *semaphore.Weighted
	retries int
	backoff time.Duration
}

// Options tune the pool. Zero values fall back to the defaults used by the
// application composition root.
type Options struct {
	// Workers is K, the maximum number of concurrent upload attempts.
	Workers int
	// RetryLimit caps automatic attempts per record.
	RetryLimit int
	// BackoffBase is the base delay between attempts for the same record.
	BackoffBase time.Duration
}

const (
	DefaultWorkers     = 3
	DefaultRetryLimit  = 3
	DefaultBackoffBase = 500 * time.Millisecond
)

func NewPool(store *queue.Store, remote RemoteUploader, logger logging.Logger, opts Options) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.RetryLimit <= 0 {
		opts.RetryLimit = DefaultRetryLimit
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = DefaultBackoffBase
	}
	return &Pool{
		store:   store,
		remote:  remote,
		logger:  logger.With("component", "uploader"),
		sem:     semaphore.NewWeighted(int64(opts.Workers)),
		retries: opts.RetryLimit,
		backoff: opts.BackoffBase,
	}
}

// ProcessQueue selects every record eligible for an automatic attempt and
// drives each to a terminal outcome for this drain. Safe to call
// concurrently: records are claimed one by one, so overlapping drains never
// double-upload, and the semaphore bounds attempts globally.
//
// The passed context is only honored between attempts; an attempt already
// in flight runs to completion, since abandoning a partial upload wastes
// the retry budget.
func (p *Pool) ProcessQueue(ctx context.Context) {
	candidates := p.store.Retryable()
	if len(candidates) == 0 {
		return
	}
	p.logger.Debug(ctx, "draining queue", "candidates", len(candidates))

	done := make(chan struct{}, len(candidates))
	for _, rec := range candidates {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			done <- struct{}{}
			continue
		}
		go func(id string) {
			defer p.sem.Release(1)
			defer func() { done <- struct{}{} }()
			p.processRecord(ctx, id)
		}(rec.ID)
	}
	for range candidates {
		<-done
	}
}

// Kick starts a fire-and-forget drain. Used right after an enqueue so a user
// who leaves the screen immediately still gets their photo uploaded; the
// drain deliberately detaches from the caller's context.
func (p *Pool) Kick() {
	go p.ProcessQueue(context.Background())
}

// processRecord runs up to the record's remaining retry budget of attempts,
// with exponential backoff between them. Each attempt claims the record
// (pending|failed -> uploading) and releases it into completed or failed.
func (p *Pool) processRecord(ctx context.Context, id string) {
	b := retry.WithJitter(p.backoff/4, retry.NewExponential(p.backoff))
	b = retry.WithMaxRetries(uint64(p.retries), b)

	_ = retry.Do(ctx, b, func(ctx context.Context) error {
		rec, err := p.store.MarkUploading(id)
		if err != nil {
			// Gone, claimed elsewhere, or out of budget.
			return nil
		}
		if err := p.attempt(ctx, rec); err != nil {
			if errors.Is(err, common.ErrTransient) && rec.RetryCount+1 < p.retries {
				return retry.RetryableError(err)
			}
			return nil
		}
		return nil
	})
}

// attempt performs a single upload attempt and records its outcome.
func (p *Pool) attempt(ctx context.Context, rec models.QueuedUpload) error {
	data, err := os.ReadFile(rec.LocalPath)
	if err != nil {
		// Local resource failure: no retry is going to bring the file back.
		p.logger.Error(ctx, "queued file unreadable", "id", rec.ID, "error", err)
		if markErr := p.store.MarkFailed(rec.ID, common.ErrLocalFileMissing.Error(), true); markErr != nil {
			p.logger.Error(ctx, "mark failed", "id", rec.ID, "error", markErr)
		}
		return common.ErrPermanent
	}

	key, err := p.remote.UploadPhoto(ctx, rec.EventID, rec.QueuedAt, data)
	if err != nil {
		permanent := errors.Is(err, common.ErrPermanent)
		p.logger.Warn(ctx, "upload attempt failed",
			"id", rec.ID, "attempt", rec.RetryCount+1, "permanent", permanent, "error", err)
		if markErr := p.store.MarkFailed(rec.ID, err.Error(), permanent); markErr != nil {
			p.logger.Error(ctx, "mark failed", "id", rec.ID, "error", markErr)
		}
		return err
	}

	if err := p.store.MarkCompleted(ctx, rec.ID); err != nil {
		p.logger.Error(ctx, "mark completed", "id", rec.ID, "error", err)
		return nil
	}
	p.logger.Info(ctx, "upload finished", "id", rec.ID, "storage_key", key)
	return nil
}
