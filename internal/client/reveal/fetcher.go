// Package reveal loads an event's photo feed in fixed-size pages ordered by
// capture time, resolving each page's storage references to time-limited
// fetch URLs in parallel without disturbing page order.
package reveal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/darkroomapp/darkroom/internal/client/models"
	"github.com/darkroomapp/darkroom/internal/logging"
)

// PhotoLister is the slice of the remote photo service the fetcher needs.
type PhotoLister interface {
	// ListPhotos returns confirmed rows for the event ordered by capture
	// time ascending, at the given offset, at most limit rows.
	ListPhotos(ctx context.Context, eventID string, offset, limit int) ([]models.PhotoItem, error)

	// IssueURL resolves a storage reference to a fetch URL valid for ttl.
	IssueURL(ctx context.Context, storageKey string, ttl time.Duration) (string, error)
}

// Options tune page size and prefetch behavior.
type Options struct {
	PageSize          int
	PrefetchThreshold int
	// ResolveWorkers bounds the parallel URL resolution fan-out.
	ResolveWorkers int
	URLTTL         time.Duration
}

const (
	DefaultPageSize          = 10
	DefaultPrefetchThreshold = 3
	DefaultResolveWorkers    = 3
	DefaultURLTTL            = 15 * time.Minute
)

// Fetcher accumulates pages for a single event. Page fetches honor context
// cancellation since their result is purely presentational.
type Fetcher struct {
	svc     PhotoLister
	eventID string
	opts    Options
	logger  logging.Logger

	mu       sync.Mutex
	items    []models.PhotoItem
	offset   int
	hasMore  bool
	inFlight bool
}

func NewFetcher(svc PhotoLister, eventID string, logger logging.Logger, opts Options) *Fetcher {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.PrefetchThreshold <= 0 {
		opts.PrefetchThreshold = DefaultPrefetchThreshold
	}
	if opts.ResolveWorkers <= 0 {
		opts.ResolveWorkers = DefaultResolveWorkers
	}
	if opts.URLTTL <= 0 {
		opts.URLTTL = DefaultURLTTL
	}
	return &Fetcher{
		svc:     svc,
		eventID: eventID,
		opts:    opts,
		logger:  logger.With("component", "reveal", "event_id", eventID),
		hasMore: true,
	}
}

// LoadPage fetches one page at the given offset. It requests limit+1 rows:
// the extra row only answers the has-more question and is trimmed away.
// URLs are resolved in parallel but written back by index, so the returned
// page keeps capture-time order.
func (f *Fetcher) LoadPage(ctx context.Context, offset, limit int) (models.Page, error) {
	rows, err := f.svc.ListPhotos(ctx, f.eventID, offset, limit+1)
	if err != nil {
		return models.Page{}, fmt.Errorf("list photos: %w", err)
	}

	hasMore := len(rows) > limit
	if hasMore {
		rows = rows[:limit]
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.opts.ResolveWorkers)
	for i := range rows {
		g.Go(func() error {
			url, err := f.svc.IssueURL(gctx, rows[i].StorageKey, f.opts.URLTTL)
			if err != nil {
				return fmt.Errorf("issue url for %s: %w", rows[i].PhotoID, err)
			}
			rows[i].URL = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return models.Page{}, err
	}

	return models.Page{Items: rows, Offset: offset, Limit: limit, HasMore: hasMore}, nil
}

// LoadFirst resets the fetcher and loads the first page.
func (f *Fetcher) LoadFirst(ctx context.Context) error {
	f.mu.Lock()
	if f.inFlight {
		f.mu.Unlock()
		return nil
	}
	f.inFlight = true
	f.mu.Unlock()

	page, err := f.LoadPage(ctx, 0, f.opts.PageSize)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight = false
	if err != nil {
		return err
	}
	f.items = page.Items
	f.offset = len(page.Items)
	f.hasMore = page.HasMore
	return nil
}

// LoadMoreIfNeeded triggers the next page fetch once the number of
// already-loaded items after the visible one drops to the prefetch
// threshold or below. It is a no-op while a fetch is in flight or when
// there is nothing more to load, so repeated calls for the same visible
// item start at most one extra page request.
func (f *Fetcher) LoadMoreIfNeeded(ctx context.Context, visibleItemID string) error {
	f.mu.Lock()
	if f.inFlight || !f.hasMore {
		f.mu.Unlock()
		return nil
	}

	remaining := -1
	for i := range f.items {
		if f.items[i].PhotoID == visibleItemID {
			remaining = len(f.items) - i - 1
			break
		}
	}
	if remaining < 0 || remaining > f.opts.PrefetchThreshold {
		f.mu.Unlock()
		return nil
	}

	f.inFlight = true
	offset := f.offset
	f.mu.Unlock()

	f.logger.Debug(ctx, "prefetching next page", "offset", offset, "remaining", remaining)
	page, err := f.LoadPage(ctx, offset, f.opts.PageSize)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight = false
	if err != nil {
		return err
	}
	f.items = append(f.items, page.Items...)
	f.offset += len(page.Items)
	f.hasMore = page.HasMore
	return nil
}

// Items returns a read-only snapshot of everything loaded so far.
func (f *Fetcher) Items() []models.PhotoItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.PhotoItem, len(f.items))
	copy(out, f.items)
	return out
}

// HasMore reports whether another page is expected to exist.
func (f *Fetcher) HasMore() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hasMore
}
