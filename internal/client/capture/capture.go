// Package capture turns a captured image into a processed, locally saved
// file plus a durable queue entry, and kicks off an immediate best-effort
// upload without blocking the caller.
package capture

import (
	"bytes"
	"fmt"
	"image"

	// Capture input can arrive as JPEG, PNG or WebP depending on the camera
	// pipeline; register the decoders image.Decode needs.
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/darkroomapp/darkroom/internal/client/models"
	"github.com/darkroomapp/darkroom/internal/client/queue"
	"github.com/darkroomapp/darkroom/internal/client/uploader"
)

const (
	DefaultMaxEdge     = 1600
	DefaultJPEGQuality = 82
)

// Processor downscales and re-encodes captured images before they are
// queued, so the queue only ever holds upload-ready JPEG bytes.
type Processor struct {
	maxEdge int
	quality int
}

func NewProcessor(maxEdge, quality int) *Processor {
	if maxEdge <= 0 {
		maxEdge = DefaultMaxEdge
	}
	if quality <= 0 {
		quality = DefaultJPEGQuality
	}
	return &Processor{maxEdge: maxEdge, quality: quality}
}

// Process decodes the input, fits it into maxEdge×maxEdge preserving aspect
// ratio (never upscaling), and re-encodes it as JPEG.
func (p *Processor) Process(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	b := img.Bounds()
	if b.Dx() > p.maxEdge || b.Dy() > p.maxEdge {
		img = imaging.Fit(img, p.maxEdge, p.maxEdge, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(p.quality)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// Service is the capture enqueue path: process, persist, queue, kick.
type Service struct {
	processor *Processor
	store     *queue.Store
	pool      *uploader.Pool
}

func NewService(processor *Processor, store *queue.Store, pool *uploader.Pool) *Service {
	return &Service{processor: processor, store: store, pool: pool}
}

// Capture processes the raw image and enqueues it for the event. The record
// is durable before Capture returns; the upload itself is fire-and-forget
// through the shared bounded pool.
func (s *Service) Capture(imageBytes []byte, eventID string) (models.QueuedUpload, error) {
	processed, err := s.processor.Process(imageBytes)
	if err != nil {
		return models.QueuedUpload{}, fmt.Errorf("process capture: %w", err)
	}

	rec, err := s.store.Enqueue(processed, eventID)
	if err != nil {
		return models.QueuedUpload{}, fmt.Errorf("enqueue capture: %w", err)
	}

	s.pool.Kick()
	return rec, nil
}
