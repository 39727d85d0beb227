package remote

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/darkroomapp/darkroom/internal/common"
	"github.com/darkroomapp/darkroom/internal/netx"
)

// URLIssuer is the slice of PhotoService the image fetcher needs.
type URLIssuer interface {
	IssueURL(ctx context.Context, storageKey string, ttl time.Duration) (string, error)
}

// ImageFetcher resolves a storage reference to a time-limited URL and pulls
// the bytes. It backs the image cache's remote fallback.
type ImageFetcher struct {
	issuer URLIssuer
	client *http.Client
	ttl    time.Duration
}

func NewImageFetcher(issuer URLIssuer, client *http.Client, ttl time.Duration) *ImageFetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &ImageFetcher{issuer: issuer, client: client, ttl: ttl}
}

// Fetch issues a URL and downloads the object. A rejected fetch usually
// means the URL expired between issuance and use, so one fresh URL is tried
// before giving up.
func (f *ImageFetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	data, err := f.fetchOnce(ctx, ref)
	if err != nil && errors.Is(err, common.ErrPermanent) {
		return f.fetchOnce(ctx, ref)
	}
	return data, err
}

func (f *ImageFetcher) fetchOnce(ctx context.Context, ref string) ([]byte, error) {
	url, err := f.issuer.IssueURL(ctx, ref, f.ttl)
	if err != nil {
		return nil, err
	}
	return netx.FetchURL(ctx, f.client, url)
}
