package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/darkroomapp/darkroom/internal/client/models"
	"github.com/darkroomapp/darkroom/internal/common"
	"github.com/darkroomapp/darkroom/internal/logging"
	"github.com/darkroomapp/darkroom/internal/netx"
)

// HTTPService talks JSON to the reveal server and PUTs image bytes straight
// to object storage through the presigned URLs the server hands out.
type HTTPService struct {
	baseURL string
	client  *http.Client
	logger  logging.Logger
	owner   string
}

func NewHTTPService(baseURL, ownerLabel string, client *http.Client, logger logging.Logger) *HTTPService {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPService{
		baseURL: baseURL,
		client:  client,
		logger:  logger.With("component", "remote"),
		owner:   ownerLabel,
	}
}

type beginUploadRequest struct {
	EventID    string    `json:"event_id"`
	OwnerLabel string    `json:"owner_label"`
	CapturedAt time.Time `json:"captured_at"`
}

type beginUploadResponse struct {
	PhotoID    string `json:"photo_id"`
	StorageKey string `json:"storage_key"`
	UploadURL  string `json:"upload_url"`
}

type issueURLRequest struct {
	StorageKey string `json:"storage_key"`
	TTLSeconds int64  `json:"ttl_seconds"`
}

type issueURLResponse struct {
	URL string `json:"url"`
}

type listPhotosResponse struct {
	Photos []models.PhotoItem `json:"photos"`
}

// UploadPhoto is begin → presigned PUT → commit. A retried call goes through
// begin again and gets a fresh storage key; an uncommitted row from a failed
// earlier attempt never shows up in listings.
func (s *HTTPService) UploadPhoto(ctx context.Context, eventID string, capturedAt time.Time, data []byte) (string, error) {
	var begin beginUploadResponse
	err := s.doJSON(ctx, http.MethodPost, "/api/v1/uploads",
		beginUploadRequest{EventID: eventID, OwnerLabel: s.owner, CapturedAt: capturedAt}, &begin)
	if err != nil {
		return "", fmt.Errorf("begin upload: %w", err)
	}

	if err := netx.UploadToPresignedURL(ctx, s.client, begin.UploadURL, data); err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}

	err = s.doJSON(ctx, http.MethodPost, "/api/v1/uploads/"+url.PathEscape(begin.PhotoID)+"/commit", nil, nil)
	if err != nil {
		return "", fmt.Errorf("commit upload: %w", err)
	}

	return begin.StorageKey, nil
}

func (s *HTTPService) ListPhotos(ctx context.Context, eventID string, offset, limit int) ([]models.PhotoItem, error) {
	path := "/api/v1/events/" + url.PathEscape(eventID) + "/photos" +
		"?offset=" + strconv.Itoa(offset) + "&limit=" + strconv.Itoa(limit)

	var resp listPhotosResponse
	if err := s.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	return resp.Photos, nil
}

func (s *HTTPService) IssueURL(ctx context.Context, storageKey string, ttl time.Duration) (string, error) {
	var resp issueURLResponse
	err := s.doJSON(ctx, http.MethodPost, "/api/v1/urls",
		issueURLRequest{StorageKey: storageKey, TTLSeconds: int64(ttl.Seconds())}, &resp)
	if err != nil {
		return "", fmt.Errorf("issue url: %w", err)
	}
	return resp.URL, nil
}

// doJSON sends one JSON request and decodes the response into out (when out
// is non-nil). Failures are classified transient/permanent at this boundary.
func (s *HTTPService) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%w: encode request: %v", common.ErrPermanent, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", common.ErrPermanent, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", common.ErrTransient, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return netx.ClassifyStatus(resp.StatusCode, string(detail))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", common.ErrPermanent, err)
	}
	return nil
}
