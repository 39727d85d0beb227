package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/darkroomapp/darkroom/internal/common"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

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

type photoRow struct {
	PhotoID    string    `json:"photo_id"`
	CapturedAt time.Time `json:"captured_at"`
	OwnerLabel string    `json:"owner_label"`
	StorageKey string    `json:"storage_key"`
}

type listPhotosResponse struct {
	Photos []photoRow `json:"photos"`
}

type issueURLRequest struct {
	StorageKey string `json:"storage_key"`
	TTLSeconds int64  `json:"ttl_seconds"`
}

type issueURLResponse struct {
	URL string `json:"url"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleBeginUpload(w http.ResponseWriter, r *http.Request) {
	var req beginUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.EventID == "" {
		writeError(w, http.StatusBadRequest, "event_id is required")
		return
	}
	if req.CapturedAt.IsZero() {
		req.CapturedAt = time.Now().UTC()
	}

	result, err := s.photos.BeginUpload(r.Context(), req.EventID, req.OwnerLabel, req.CapturedAt)
	if err != nil {
		s.logger.Error(r.Context(), "begin upload", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, beginUploadResponse{
		PhotoID:    result.PhotoID,
		StorageKey: result.StorageKey,
		UploadURL:  result.UploadURL,
	})
}

func (s *Server) handleCommitUpload(w http.ResponseWriter, r *http.Request) {
	photoID := r.PathValue("photoID")

	err := s.photos.CommitUpload(r.Context(), photoID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			writeError(w, http.StatusNotFound, "unknown photo")
			return
		}
		s.logger.Error(r.Context(), "commit upload", "photo_id", photoID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) handleListPhotos(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("eventID")

	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", defaultListLimit)
	if offset < 0 || limit <= 0 {
		writeError(w, http.StatusBadRequest, "invalid pagination")
		return
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	rows, err := s.photos.List(r.Context(), eventID, offset, limit)
	if err != nil {
		s.logger.Error(r.Context(), "list photos", "event_id", eventID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := listPhotosResponse{Photos: make([]photoRow, 0, len(rows))}
	for _, p := range rows {
		resp.Photos = append(resp.Photos, photoRow{
			PhotoID:    p.ID,
			CapturedAt: p.CapturedAt,
			OwnerLabel: p.OwnerLabel,
			StorageKey: p.StorageKey,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleIssueURL(w http.ResponseWriter, r *http.Request) {
	var req issueURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.StorageKey == "" {
		writeError(w, http.StatusBadRequest, "storage_key is required")
		return
	}

	url, err := s.photos.IssueURL(r.Context(), req.StorageKey, time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		s.logger.Error(r.Context(), "issue url", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, issueURLResponse{URL: url})
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
