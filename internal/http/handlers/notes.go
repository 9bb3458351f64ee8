package handlers

import (
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/imemory/server/internal/apperr"
	"github.com/imemory/server/internal/imagehost"
	"github.com/imemory/server/internal/middleware"
	"github.com/imemory/server/internal/model"
	"github.com/imemory/server/internal/notes"
)

// multipartOverhead leaves room for the text fields next to the image.
const multipartOverhead = 1 << 20

// NotesHandler handles note endpoints. Every route is mounted behind the
// auth middleware.
type NotesHandler struct {
	notes          *notes.Service
	maxUploadBytes int64
	log            *zap.Logger
}

// NewNotesHandler creates a new notes handler
func NewNotesHandler(svc *notes.Service, maxUploadBytes int64, log *zap.Logger) *NotesHandler {
	return &NotesHandler{
		notes:          svc,
		maxUploadBytes: maxUploadBytes,
		log:            log.Named("notes_handler"),
	}
}

type noteRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Tag         string `json:"tag"`
}

type updateNoteResponse struct {
	Note model.Note `json:"note"`
}

type deleteNoteResponse struct {
	Success string     `json:"Success"`
	Note    model.Note `json:"note"`
}

// HandleFetchAll handles GET /api/notes/fetchallnotes
func (h *NotesHandler) HandleFetchAll(w http.ResponseWriter, r *http.Request) {
	owner, ok := middleware.UserID(r.Context())
	if !ok {
		respondWithError(w, r, h.log, apperr.ErrUnauthorized)
		return
	}
	list, err := h.notes.List(r.Context(), owner)
	if err != nil {
		respondWithError(w, r, h.log, err)
		return
	}
	respondJSON(w, h.log, http.StatusOK, list)
}

// HandleAdd handles POST /api/notes/addnotes
func (h *NotesHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	owner, ok := middleware.UserID(r.Context())
	if !ok {
		respondWithError(w, r, h.log, apperr.ErrUnauthorized)
		return
	}
	in, img, err := h.readNote(w, r)
	if err != nil {
		respondWithError(w, r, h.log, err)
		return
	}
	defer closeUpload(img)
	n, err := h.notes.Create(r.Context(), owner, in, img)
	if err != nil {
		respondWithError(w, r, h.log, err)
		return
	}
	respondJSON(w, h.log, http.StatusOK, n)
}

// HandleUpdate handles PUT /api/notes/updatenote/{id}
func (h *NotesHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	owner, ok := middleware.UserID(r.Context())
	if !ok {
		respondWithError(w, r, h.log, apperr.ErrUnauthorized)
		return
	}
	in, img, err := h.readNote(w, r)
	if err != nil {
		respondWithError(w, r, h.log, err)
		return
	}
	defer closeUpload(img)
	n, err := h.notes.Update(r.Context(), owner, chi.URLParam(r, "id"), in, img)
	if err != nil {
		respondWithError(w, r, h.log, err)
		return
	}
	respondJSON(w, h.log, http.StatusOK, updateNoteResponse{Note: n})
}

// HandleDelete handles DELETE /api/notes/deletenote/{id}
func (h *NotesHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	owner, ok := middleware.UserID(r.Context())
	if !ok {
		respondWithError(w, r, h.log, apperr.ErrUnauthorized)
		return
	}
	n, err := h.notes.Delete(r.Context(), owner, chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, r, h.log, err)
		return
	}
	respondJSON(w, h.log, http.StatusOK, deleteNoteResponse{Success: "Note has been deleted", Note: n})
}

// readNote accepts either a multipart form with an optional "image" file
// or a plain JSON body.
func (h *NotesHandler) readNote(w http.ResponseWriter, r *http.Request) (notes.Input, *imagehost.Upload, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var req noteRequest
		if err := decodeJSON(w, r, &req); err != nil {
			return notes.Input{}, nil, err
		}
		return notes.Input(req), nil, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return notes.Input{}, nil, h.tooLarge()
		}
		return notes.Input{}, nil, apperr.Validation(apperr.FieldError{Field: "body", Message: "invalid multipart form"})
	}

	in := notes.Input{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Tag:         r.FormValue("tag"),
	}

	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return in, nil, nil
	}
	if err != nil {
		return notes.Input{}, nil, apperr.Validation(apperr.FieldError{Field: "image", Message: "unreadable image"})
	}
	if header.Size > h.maxUploadBytes {
		_ = file.Close()
		return notes.Input{}, nil, h.tooLarge()
	}

	// The caller closes Body through closeUpload.
	return in, &imagehost.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}, nil
}

// closeUpload releases the multipart file behind an upload, if any.
func closeUpload(img *imagehost.Upload) {
	if img == nil {
		return
	}
	if c, ok := img.Body.(io.Closer); ok {
		_ = c.Close()
	}
}

func (h *NotesHandler) tooLarge() error {
	return apperr.Validation(apperr.FieldError{Field: "image", Message: "image is too large"})
}
