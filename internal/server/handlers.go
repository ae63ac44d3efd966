// Package server is the HTTP adapter over the ingestion service. It
// owns request parsing, response shaping, and the mapping from service
// error kinds to status codes; no storage logic lives here.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/audiokeep/audiokeep/internal/ingest"
	"github.com/audiokeep/audiokeep/internal/metadata"
)

// uploadFieldName is the multipart form field carrying the audio file.
const uploadFieldName = "audioFile"

// Handler serves the audio API.
type Handler struct {
	svc            *ingest.Service
	logger         *zap.Logger
	maxUploadBytes int64
}

func NewHandler(svc *ingest.Service, logger *zap.Logger, maxUploadBytes int64) *Handler {
	return &Handler{svc: svc, logger: logger, maxUploadBytes: maxUploadBytes}
}

// Routes builds the router. Middleware is applied to every route.
func (h *Handler) Routes(middleware ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	for _, mw := range middleware {
		r.Use(mw)
	}

	r.Get("/healthz", h.health)
	r.Route("/api/audio", func(r chi.Router) {
		r.Post("/", h.upload)
		r.Get("/", h.list)
		r.Get("/{audioID}", h.getMetadata)
		r.Put("/{audioID}", h.updateMetadata)
		r.Get("/stream/{audioID}", h.stream)
	})
	return r
}

type technicalResponse struct {
	AudioBitrate int    `json:"audioBitrate"`
	Duration     int64  `json:"duration"` // milliseconds
	Title        string `json:"title"`
	Album        string `json:"album"`
	Performers   string `json:"performers"`
	MimeType     string `json:"mimeType"`
}

type metadataResponse struct {
	AudioID   string             `json:"audioId"`
	Name      string             `json:"name"`
	Creator   string             `json:"creator"`
	CreatedAt time.Time          `json:"createdAt"`
	Technical *technicalResponse `json:"technicalMetadata,omitempty"`
}

type uploadResponse struct {
	AudioID           string             `json:"audioId"`
	SuggestedMetadata *technicalResponse `json:"suggestedMetadata,omitempty"`
}

type updateRequest struct {
	Name    string `json:"name"`
	Creator string `json:"creator"`
}

func toMetadataResponse(tok string, rec *metadata.AudioRecord) metadataResponse {
	return metadataResponse{
		AudioID:   tok,
		Name:      rec.Name,
		Creator:   rec.Creator,
		CreatedAt: rec.CreatedAt,
		Technical: toTechnicalResponse(rec.Technical),
	}
}

func toTechnicalResponse(t *metadata.TechnicalMetadata) *technicalResponse {
	if t == nil {
		return nil
	}
	return &technicalResponse{
		AudioBitrate: t.Bitrate,
		Duration:     t.DurationMillis,
		Title:        t.Title,
		Album:        t.Album,
		Performers:   t.Performers,
		MimeType:     t.MimeType,
	}
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationError, "multipart form expected")
		return
	}

	// Stream the first matching part straight into the service; the
	// payload is never buffered here.
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		if part.FormName() != uploadFieldName {
			part.Close()
			continue
		}

		tok, err := h.svc.UploadAudio(r.Context(), part, part.FileName(), part.Header.Get("Content-Type"))
		part.Close()
		if err != nil {
			h.writeServiceError(w, err)
			return
		}

		resp := uploadResponse{AudioID: tok}
		if rec, err := h.svc.FetchMetadata(r.Context(), tok); err == nil {
			resp.SuggestedMetadata = toTechnicalResponse(rec.Technical)
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	writeError(w, http.StatusBadRequest, codeValidationError, "form field "+uploadFieldName+" is required")
}

func (h *Handler) getMetadata(w http.ResponseWriter, r *http.Request) {
	tok := chi.URLParam(r, "audioID")

	rec, err := h.svc.FetchMetadata(r.Context(), tok)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMetadataResponse(tok, rec))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.ListMetadata(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	out := make([]metadataResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toMetadataResponse(e.Token, e.Record))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) updateMetadata(w http.ResponseWriter, r *http.Request) {
	tok := chi.URLParam(r, "audioID")

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidationError, "malformed JSON body")
		return
	}
	if err := h.svc.UpdateMetadata(r.Context(), tok, req.Name, req.Creator); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) stream(w http.ResponseWriter, r *http.Request) {
	tok := chi.URLParam(r, "audioID")

	rc, contentType, size, err := h.svc.FetchStream(r.Context(), tok)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	if _, err := io.Copy(w, rc); err != nil {
		// Headers are gone; all we can do is log the broken transfer.
		h.logger.Warn("audio stream aborted", zap.String("token", tok), zap.Error(err))
	}
}

// writeServiceError maps ingestion error kinds onto transport codes.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var maxBytes *http.MaxBytesError

	switch {
	case errors.Is(err, ingest.ErrUnsupportedContentType):
		writeError(w, http.StatusUnsupportedMediaType, codeUnsupportedMediaType, "only audio/mpeg uploads are supported")
	case errors.Is(err, ingest.ErrUnsupportedFileType):
		writeError(w, http.StatusBadRequest, codeValidationError, "missing or unusable file")
	case errors.Is(err, ingest.ErrValidationFailed):
		writeError(w, http.StatusBadRequest, codeValidationError, "file validation failed")
	case errors.Is(err, ingest.ErrNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, "audio not found")
	case errors.Is(err, ingest.ErrInconsistentState):
		h.logger.Error("inconsistent state served to client", zap.Error(err))
		writeError(w, http.StatusInternalServerError, codeInconsistentState, "stored audio is in an inconsistent state")
	case errors.As(err, &maxBytes):
		writeError(w, http.StatusRequestEntityTooLarge, codeFileTooLarge, "upload exceeds the size limit")
	default:
		h.logger.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}
