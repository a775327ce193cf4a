package media

import (
	"fmt"
	"net/http"
	"strings"

	"eventify/internal/apperr"
	"eventify/internal/auth"
	"eventify/internal/logger"
	"eventify/internal/utils"

	"github.com/go-chi/chi/v5"
)

// MaxImageBytes is the largest accepted upload, matching the event form's 4MB limit.
const MaxImageBytes = 4 << 20

type Handler struct {
	// Uploader is nil when Cloudinary is not configured.
	Uploader Uploader
	Logger   *logger.Logger
}

func NewHandler(u Uploader, log *logger.Logger) *Handler {
	return &Handler{Uploader: u, Logger: log}
}

func (h *Handler) ProtectedRoutes(r chi.Router) {
	r.Post("/api/uploads/images", h.UploadImage)
}

type uploadResponse struct {
	URL string `json:"url"`
}

func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	if h.Uploader == nil {
		h.fail(w, apperr.New(apperr.Unavailable, "image uploads are disabled"))
		return
	}

	// Multipart framing adds a little on top of the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, MaxImageBytes+(64<<10))
	if err := r.ParseMultipartForm(MaxImageBytes); err != nil {
		h.fail(w, apperr.Wrap(apperr.Invalid, err, "image must be at most 4MB"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.fail(w, apperr.Wrap(apperr.Invalid, err, "file is required"))
		return
	}
	defer file.Close()

	if header.Size > MaxImageBytes {
		h.fail(w, apperr.New(apperr.Invalid, "image must be at most 4MB"))
		return
	}
	if ct := header.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image/") {
		h.fail(w, apperr.Newf(apperr.Invalid, "unsupported content type %q", ct))
		return
	}

	folder := "eventify/events/" + auth.UserID(r.Context())
	url, err := h.Uploader.UploadImage(r.Context(), file, folder)
	if err != nil {
		h.fail(w, apperr.Wrap(apperr.Unavailable, err, "image upload failed"))
		return
	}

	h.Logger.Info("MEDIA", fmt.Sprintf("Uploaded %s to %s", header.Filename, folder))
	if err := utils.WriteJSON(w, http.StatusCreated, uploadResponse{URL: url}); err != nil {
		h.Logger.Error("MEDIA", fmt.Sprintf("failed to encode response: %v", err))
	}
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	status := utils.WriteError(w, err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("MEDIA", fmt.Sprintf("UploadImage: %v", err))
		return
	}
	h.Logger.Warn("MEDIA", fmt.Sprintf("UploadImage: %v", err))
}
