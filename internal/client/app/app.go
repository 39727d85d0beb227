// Package app is the client's composition root: it wires the queue store,
// the upload pool, the capture path, the image cache and the reveal fetcher
// together from a Config, and exposes the small command surface the CLI
// binary drives.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/darkroomapp/darkroom/internal/client/capture"
	"github.com/darkroomapp/darkroom/internal/client/config"
	"github.com/darkroomapp/darkroom/internal/client/imagecache"
	"github.com/darkroomapp/darkroom/internal/client/models"
	"github.com/darkroomapp/darkroom/internal/client/queue"
	"github.com/darkroomapp/darkroom/internal/client/remote"
	"github.com/darkroomapp/darkroom/internal/client/reveal"
	"github.com/darkroomapp/darkroom/internal/client/uploader"
	"github.com/darkroomapp/darkroom/internal/logging"
)

type App struct {
	cfg     *config.Config
	logger  logging.Logger
	store   *queue.Store
	pool    *uploader.Pool
	capture *capture.Service
	cache   *imagecache.Cache
	service *remote.HTTPService
}

func NewApp(cfg *config.Config) (*App, error) {
	sl := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	logger := logging.NewSlogLogger(sl)

	store, err := queue.NewStore(cfg.DataDir, cfg.RetryLimit, logger)
	if err != nil {
		return nil, fmt.Errorf("queue init error: %w", err)
	}

	service := remote.NewHTTPService(cfg.ServerBaseURL, cfg.OwnerLabel, nil, logger)

	pool := uploader.NewPool(store, service, logger, uploader.Options{
		Workers:    cfg.UploadWorkers,
		RetryLimit: cfg.RetryLimit,
	})

	captureSvc := capture.NewService(
		capture.NewProcessor(cfg.MaxImageEdge, cfg.JPEGQuality),
		store, pool,
	)

	fetcher := remote.NewImageFetcher(service, nil, cfg.URLTTL)
	cache, err := imagecache.New(filepath.Join(cfg.DataDir, "cache"), fetcher, logger, imagecache.Options{
		MemoryMaxItems: cfg.MemCacheItems,
		MemoryMaxBytes: cfg.MemCacheBytes,
		DiskMaxBytes:   cfg.DiskCacheBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("cache init error: %w", err)
	}

	return &App{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		pool:    pool,
		capture: captureSvc,
		cache:   cache,
		service: service,
	}, nil
}

// Capture enqueues an image file for the event and kicks an immediate
// best-effort upload.
func (a *App) Capture(path, eventID string) (models.QueuedUpload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.QueuedUpload{}, fmt.Errorf("read capture: %w", err)
	}
	return a.capture.Capture(data, eventID)
}

// Drain processes the queue until every eligible record reached a terminal
// outcome for this run. Called on startup and whenever connectivity is
// likely back (the "app foregrounded" trigger).
func (a *App) Drain(ctx context.Context) {
	a.pool.ProcessQueue(ctx)
}

// RetryFailed resets permanently failed uploads and drains again.
func (a *App) RetryFailed(ctx context.Context) (int, error) {
	n, err := a.store.ResetExhausted()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		a.pool.Kick()
	}
	return n, nil
}

// Status reports the queue snapshot plus the count of uploads waiting on a
// manual retry.
func (a *App) Status() ([]models.QueuedUpload, int) {
	return a.store.Snapshot(), a.store.ExhaustedCount()
}

// Reveal pages through an event's photos, warming the image cache for each
// resolved item, and returns everything loaded.
func (a *App) Reveal(ctx context.Context, eventID string) ([]models.PhotoItem, error) {
	f := reveal.NewFetcher(a.service, eventID, a.logger, reveal.Options{
		PageSize:          a.cfg.PageSize,
		PrefetchThreshold: a.cfg.PrefetchThreshold,
		URLTTL:            a.cfg.URLTTL,
	})

	if err := f.LoadFirst(ctx); err != nil {
		return nil, err
	}
	for f.HasMore() {
		items := f.Items()
		if len(items) == 0 {
			break
		}
		if err := f.LoadMoreIfNeeded(ctx, items[len(items)-1].PhotoID); err != nil {
			return nil, err
		}
	}

	items := f.Items()
	for _, item := range items {
		if _, err := a.cache.Get(ctx, item.StorageKey); err != nil {
			a.logger.Warn(ctx, "could not warm cache", "photo_id", item.PhotoID, "error", err)
		}
	}
	return items, nil
}

// LeaveEvent drops the on-disk cache for a left event while keeping the hot
// in-memory entries of the running session.
func (a *App) LeaveEvent() error {
	return a.cache.ClearDiskTier()
}

// WaitSettled is a small helper for the CLI: it polls until no record is
// mid-flight, so one-shot commands exit after the fire-and-forget drain
// finished.
func (a *App) WaitSettled(ctx context.Context) {
	for {
		inFlight := false
		for _, rec := range a.store.Snapshot() {
			if rec.Status == models.StatusUploading {
				inFlight = true
				break
			}
		}
		if !inFlight {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(100 * time.Millisecond):
		}
	}
}
