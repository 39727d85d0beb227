// Package httpapi exposes the reveal server's JSON API. Handlers stay thin:
// decode, call the photo service, map sentinel errors to status codes.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/darkroomapp/darkroom/internal/logging"
	"github.com/darkroomapp/darkroom/internal/server/models"
	"github.com/darkroomapp/darkroom/internal/server/services"
)

// PhotoAPI is the service surface the handlers drive.
type PhotoAPI interface {
	BeginUpload(ctx context.Context, eventID, ownerLabel string, capturedAt time.Time) (*services.BeginUploadResult, error)
	CommitUpload(ctx context.Context, photoID string) error
	List(ctx context.Context, eventID string, offset, limit int) ([]*models.Photo, error)
	IssueURL(ctx context.Context, storageKey string, ttl time.Duration) (string, error)
}

type Server struct {
	addr   string
	photos PhotoAPI
	logger logging.Logger
	srv    *http.Server
}

func NewServer(addr string, photos PhotoAPI, logger logging.Logger) *Server {
	s := &Server{
		addr:   addr,
		photos: photos,
		logger: logger.With("component", "httpapi"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/uploads", s.handleBeginUpload)
	mux.HandleFunc("POST /api/v1/uploads/{photoID}/commit", s.handleCommitUpload)
	mux.HandleFunc("GET /api/v1/events/{eventID}/photos", s.handleListPhotos)
	mux.HandleFunc("POST /api/v1/urls", s.handleIssueURL)
	mux.HandleFunc("GET /api/v1/ping", s.handlePing)

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.withRequestLog(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the routed handler, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	s.logger.Info(ctx, "http api listening", "addr", s.addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug(r.Context(), "request",
			"method", r.Method, "path", r.URL.Path, "duration", time.Since(start).String())
	})
}
