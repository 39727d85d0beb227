package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darkroomapp/darkroom/internal/common"
	"github.com/darkroomapp/darkroom/internal/logging"
	"github.com/darkroomapp/darkroom/internal/server/models"
	"github.com/darkroomapp/darkroom/internal/server/services"
)

func newTestLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type fakePhotoAPI struct {
	beginResult *services.BeginUploadResult
	beginErr    error
	commitErr   error
	photos      []*models.Photo
	listErr     error

	committedID          string
	gotOffset, gotLimit  int
	gotKey               string
	gotTTL               time.Duration
}

func (f *fakePhotoAPI) BeginUpload(ctx context.Context, eventID, ownerLabel string, capturedAt time.Time) (*services.BeginUploadResult, error) {
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	return f.beginResult, nil
}

func (f *fakePhotoAPI) CommitUpload(ctx context.Context, photoID string) error {
	f.committedID = photoID
	return f.commitErr
}

func (f *fakePhotoAPI) List(ctx context.Context, eventID string, offset, limit int) ([]*models.Photo, error) {
	f.gotOffset, f.gotLimit = offset, limit
	if f.listErr != nil {
		return nil, f.listErr
	}
	if offset >= len(f.photos) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.photos) {
		end = len(f.photos)
	}
	return f.photos[offset:end], nil
}

func (f *fakePhotoAPI) IssueURL(ctx context.Context, storageKey string, ttl time.Duration) (string, error) {
	f.gotKey, f.gotTTL = storageKey, ttl
	return "https://cdn.test/" + storageKey, nil
}

func newTestServer(t *testing.T, api PhotoAPI) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewServer(":0", api, newTestLogger()).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestBeginUpload(t *testing.T) {
	api := &fakePhotoAPI{beginResult: &services.BeginUploadResult{
		PhotoID:    "p1",
		StorageKey: "events/e/k1",
		UploadURL:  "https://s3.test/put",
	}}
	srv := newTestServer(t, api)

	resp := postJSON(t, srv.URL+"/api/v1/uploads", map[string]any{
		"event_id":    "event-1",
		"owner_label": "guest",
		"captured_at": time.Now().UTC(),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out beginUploadResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "p1", out.PhotoID)
	assert.Equal(t, "events/e/k1", out.StorageKey)
	assert.Equal(t, "https://s3.test/put", out.UploadURL)
}

func TestBeginUpload_MissingEventID(t *testing.T) {
	srv := newTestServer(t, &fakePhotoAPI{})

	resp := postJSON(t, srv.URL+"/api/v1/uploads", map[string]any{"owner_label": "guest"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCommitUpload(t *testing.T) {
	api := &fakePhotoAPI{}
	srv := newTestServer(t, api)

	resp := postJSON(t, srv.URL+"/api/v1/uploads/p1/commit", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "p1", api.committedID)
}

func TestCommitUpload_UnknownPhotoIs404(t *testing.T) {
	api := &fakePhotoAPI{commitErr: fmt.Errorf("confirm photo: %w", common.ErrorNotFound)}
	srv := newTestServer(t, api)

	resp := postJSON(t, srv.URL+"/api/v1/uploads/missing/commit", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListPhotos(t *testing.T) {
	base := time.Date(2026, 6, 1, 20, 0, 0, 0, time.UTC)
	api := &fakePhotoAPI{}
	for i := 0; i < 15; i++ {
		api.photos = append(api.photos, &models.Photo{
			ID:         fmt.Sprintf("p%02d", i),
			EventID:    "event-1",
			OwnerLabel: "guest",
			StorageKey: fmt.Sprintf("events/event-1/%02d", i),
			CapturedAt: base.Add(time.Duration(i) * time.Minute),
			Confirmed:  true,
		})
	}
	srv := newTestServer(t, api)

	resp, err := http.Get(srv.URL + "/api/v1/events/event-1/photos?offset=10&limit=10")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out listPhotosResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out.Photos, 5)
	assert.Equal(t, "p10", out.Photos[0].PhotoID)
	assert.Equal(t, 10, api.gotOffset)
	assert.Equal(t, 10, api.gotLimit)
}

func TestListPhotos_DefaultsAndBounds(t *testing.T) {
	api := &fakePhotoAPI{}
	srv := newTestServer(t, api)

	resp, err := http.Get(srv.URL + "/api/v1/events/e/photos")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, defaultListLimit, api.gotLimit)

	resp, err = http.Get(srv.URL + "/api/v1/events/e/photos?limit=9999")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, maxListLimit, api.gotLimit)

	resp, err = http.Get(srv.URL + "/api/v1/events/e/photos?offset=-1")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/v1/events/e/photos?limit=abc")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIssueURL(t *testing.T) {
	api := &fakePhotoAPI{}
	srv := newTestServer(t, api)

	resp := postJSON(t, srv.URL+"/api/v1/urls", map[string]any{
		"storage_key": "events/e/k1",
		"ttl_seconds": 900,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out issueURLResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "https://cdn.test/events/e/k1", out.URL)
	assert.Equal(t, "events/e/k1", api.gotKey)
	assert.Equal(t, 15*time.Minute, api.gotTTL)
}

func TestIssueURL_MissingKey(t *testing.T) {
	srv := newTestServer(t, &fakePhotoAPI{})

	resp := postJSON(t, srv.URL+"/api/v1/urls", map[string]any{"ttl_seconds": 900})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPing(t *testing.T) {
	srv := newTestServer(t, &fakePhotoAPI{})

	resp, err := http.Get(srv.URL + "/api/v1/ping")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
