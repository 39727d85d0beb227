// Package common defines shared constants and sentinel errors used across
// client and server layers of Darkroom. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Upload failure classification. Remote calls wrap one of these so the
	// worker pool can tell a network blip from a rejected payload: only
	// transient failures are allowed to consume automatic retries.
	ErrTransient = errors.New("transient failure")
	ErrPermanent = errors.New("permanent failure")

	// Queue-level errors.
	ErrQueueItemNotFound = errors.New("queue item not found")
	ErrLocalFileMissing  = errors.New("local file missing")
)
