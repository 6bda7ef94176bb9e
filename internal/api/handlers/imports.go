package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/ledgerline/expense-ingest/internal/api/middleware"
	"github.com/ledgerline/expense-ingest/internal/extract"
	"github.com/ledgerline/expense-ingest/internal/ingest"
)

// maxUploadBytes bounds one multipart import request.
const maxUploadBytes = 32 << 20

// ImportsHandler exposes import sessions: upload, status polling, commit,
// and item removal.
type ImportsHandler struct {
	service  *ingest.Service
	registry *ingest.Registry
	log      zerolog.Logger
}

// NewImportsHandler creates a new imports handler.
func NewImportsHandler(service *ingest.Service, registry *ingest.Registry, log zerolog.Logger) *ImportsHandler {
	return &ImportsHandler{
		service:  service,
		registry: registry,
		log:      log,
	}
}

// sessionView is the status payload for one session.
type sessionView struct {
	ID        string             `json:"id"`
	CreatedAt string             `json:"createdAt"`
	Running   bool               `json:"running"`
	Finished  bool               `json:"finished"`
	Items     []ingest.BatchItem `json:"items"`
}

func viewOf(s *ingest.Session) sessionView {
	return sessionView{
		ID:        s.ID,
		CreatedAt: s.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		Running:   s.Running(),
		Finished:  s.Finished(),
		Items:     s.Items(),
	}
}

// CreateImport handles POST /api/imports. It accepts multipart files under
// the "files" field, registers a session, and runs the batch in the
// background; the client polls GetImport for per-item status.
func (h *ImportsHandler) CreateImport(w http.ResponseWriter, r *http.Request) {
	files, err := readUploads(r, "files")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(files) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "at least one file is required")
		return
	}

	session := h.service.NewSession()
	if err := h.registry.Add(session); err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to register session")
		return
	}

	// The batch outlives the upload request; the poll endpoint observes
	// progress.
	go func() {
		if err := session.Run(context.Background(), files, nil); err != nil {
			h.log.Error().Err(err).Str("session", session.ID).Msg("Import batch failed")
		}
	}()

	h.log.Info().
		Str("session", session.ID).
		Str("request_id", middleware.GetRequestID(r.Context())).
		Int("files", len(files)).
		Msg("Import session started")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"id":     session.ID,
		"status": "processing",
	})
}

// GetImport handles GET /api/imports/{id}.
func (h *ImportsHandler) GetImport(w http.ResponseWriter, r *http.Request) {
	session, err := h.registry.Get(mux.Vars(r)["id"])
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "Session not found")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, viewOf(session))
}

// CommitItem handles POST /api/imports/{id}/items/{itemID}/commit.
func (h *ImportsHandler) CommitItem(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	session, err := h.registry.Get(vars["id"])
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "Session not found")
		return
	}

	result, err := session.Commit(r.Context(), vars["itemID"])
	if err != nil {
		h.log.Error().Err(err).Str("session", session.ID).Msg("Commit failed")
		middleware.WriteError(w, http.StatusConflict, err.Error())
		return
	}
	middleware.WriteJSON(w, http.StatusOK, result)
}

// CommitAll handles POST /api/imports/{id}/commit-all.
func (h *ImportsHandler) CommitAll(w http.ResponseWriter, r *http.Request) {
	session, err := h.registry.Get(mux.Vars(r)["id"])
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "Session not found")
		return
	}

	results, err := session.CommitAll(r.Context())
	if err != nil {
		h.log.Error().Err(err).Str("session", session.ID).Msg("Commit-all failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to commit batch")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"count":   len(results),
	})
}

// RemoveItem handles DELETE /api/imports/{id}/items/{itemID}.
func (h *ImportsHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	session, err := h.registry.Get(vars["id"])
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "Session not found")
		return
	}
	if !session.Remove(vars["itemID"]) {
		middleware.WriteError(w, http.StatusNotFound, "Item not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearImport handles DELETE /api/imports/{id}.
func (h *ImportsHandler) ClearImport(w http.ResponseWriter, r *http.Request) {
	session, err := h.registry.Get(mux.Vars(r)["id"])
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "Session not found")
		return
	}
	session.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// Preview handles POST /api/imports/preview: synchronous extraction of one
// file into candidates, without opening a session.
func (h *ImportsHandler) Preview(w http.ResponseWriter, r *http.Request) {
	files, err := readUploads(r, "file")
	if err != nil || len(files) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "a single file is required")
		return
	}

	candidates, err := h.service.ProcessFile(r.Context(), files[0].Name, files[0].Data)
	if err != nil {
		writeExtractionError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"candidates": candidates,
		"count":      len(candidates),
	})
}

// ScanReceipt handles POST /api/receipts/scan: one image under the "image"
// field, returning the extracted candidate plus a store-only duplicate flag.
func (h *ImportsHandler) ScanReceipt(w http.ResponseWriter, r *http.Request) {
	files, err := readUploads(r, "image")
	if err != nil || len(files) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "a single image is required")
		return
	}

	result, err := h.service.ScanReceipt(r.Context(), files[0].Name, files[0].Data)
	if err != nil {
		writeExtractionError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, result)
}

// readUploads collects the multipart files under the given field name.
func readUploads(r *http.Request, field string) ([]ingest.File, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, errors.New("invalid multipart request body")
	}

	var files []ingest.File
	for _, header := range r.MultipartForm.File[field] {
		f, err := header.Open()
		if err != nil {
			return nil, errors.New("could not read uploaded file " + header.Filename)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, errors.New("could not read uploaded file " + header.Filename)
		}
		files = append(files, ingest.File{Name: header.Filename, Data: data})
	}
	return files, nil
}

// writeExtractionError maps extraction failures onto HTTP status codes:
// unsupported format 415, malformed content 400, rate-limited model 429,
// other model failures 502.
func writeExtractionError(w http.ResponseWriter, err error) {
	var unsupported *extract.UnsupportedFormatError
	var format *extract.FormatError
	var extraction *extract.ExtractionError

	switch {
	case errors.As(err, &unsupported):
		middleware.WriteError(w, http.StatusUnsupportedMediaType, err.Error())
	case errors.As(err, &format):
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &extraction) && extraction.RateLimited:
		middleware.WriteError(w, http.StatusTooManyRequests, err.Error())
	case errors.As(err, &extraction):
		middleware.WriteError(w, http.StatusBadGateway, err.Error())
	default:
		middleware.WriteError(w, http.StatusInternalServerError, err.Error())
	}
}
