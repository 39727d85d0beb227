// Package netx wraps the raw HTTP calls the client makes against presigned
// object-storage URLs. Failures are classified as transient or permanent at
// this boundary so the upload worker can budget retries correctly.
package netx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/darkroomapp/darkroom/internal/common"
)

// ClassifyStatus wraps an HTTP error status into common.ErrTransient or
// common.ErrPermanent. Timeouts, throttling and server-side errors are worth
// retrying; anything else 4xx is a rejection that retries cannot fix.
func ClassifyStatus(status int, detail string) error {
	switch {
	case status == http.StatusRequestTimeout,
		status == http.StatusTooManyRequests,
		status >= 500:
		return fmt.Errorf("%w: http %d: %s", common.ErrTransient, status, detail)
	default:
		return fmt.Errorf("%w: http %d: %s", common.ErrPermanent, status, detail)
	}
}

// UploadToPresignedURL PUTs file bytes to a presigned object-storage URL.
func UploadToPresignedURL(ctx context.Context, client *http.Client, url string, file []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(file))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", common.ErrPermanent, err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := client.Do(req)
	if err != nil {
		// Connection-level failures (refused, reset, timeout) are transient.
		return fmt.Errorf("%w: upload: %v", common.ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return ClassifyStatus(resp.StatusCode, string(b))
	}
	return nil
}

// FetchURL GETs the full body from a (typically presigned, time-limited) URL.
func FetchURL(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", common.ErrPermanent, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch: %v", common.ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, ClassifyStatus(resp.StatusCode, string(b))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", common.ErrTransient, err)
	}
	return data, nil
}
