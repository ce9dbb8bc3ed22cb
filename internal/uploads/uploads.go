// Package uploads accepts vehicle photos attached to a chat session.
package uploads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/autogenius/autogenius/internal/auth"
	"github.com/autogenius/autogenius/internal/chat"
)

// URLPrefix is where stored uploads are served from.
const URLPrefix = "/static/uploads/"

var (
	ErrNotAllowed = errors.New("only image files can be uploaded")
	ErrTooLarge   = errors.New("file is too large")
)

// Authorizer checks that a session belongs to a user.
type Authorizer interface {
	Authorize(ctx context.Context, userID, sessionID string) (*chat.Session, error)
}

// Options configure where and what may be uploaded.
type Options struct {
	Dir      string
	MaxBytes int64
	Allowed  []string // glob patterns matched against the file name
	Logger   *zap.Logger
}

// Handler stores uploaded images.
type Handler struct {
	sessions Authorizer
	opts     Options
	logger   *zap.Logger
}

// New creates an upload handler.
func New(sessions Authorizer, opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{sessions: sessions, opts: opts, logger: logger}
}

// Allowed reports whether name matches one of the allowed patterns.
func (h *Handler) Allowed(name string) bool {
	for _, pattern := range h.opts.Allowed {
		if ok, err := doublestar.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}

// RegisterRoutes mounts the upload endpoint and serves stored files.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.With(auth.RequireUser).Post("/api/upload-image", h.handleUpload)
	r.Handle(URLPrefix+"*", http.StripPrefix(URLPrefix, http.FileServer(http.Dir(h.opts.Dir))))
}

type uploadResponse struct {
	Success bool   `json:"success"`
	FileURL string `json:"file_url"`
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	// Multipart framing needs some headroom above the file limit.
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxBytes+1<<20)
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeDetail(w, http.StatusRequestEntityTooLarge, ErrTooLarge.Error())
			return
		}
		writeDetail(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	user := auth.UserFromContext(r.Context())
	sessionID := r.FormValue("session_id")
	if _, err := h.sessions.Authorize(r.Context(), user.ID, sessionID); err != nil {
		status, detail := chat.StatusFor(err)
		writeDetail(w, status, detail)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	name := filepath.Base(strings.ReplaceAll(header.Filename, `\`, "/"))
	if name == "." || name == "/" || !h.Allowed(name) {
		writeDetail(w, http.StatusBadRequest, ErrNotAllowed.Error())
		return
	}
	if header.Size > h.opts.MaxBytes {
		writeDetail(w, http.StatusRequestEntityTooLarge, ErrTooLarge.Error())
		return
	}

	head := make([]byte, 512)
	n, _ := io.ReadFull(file, head)
	if !strings.HasPrefix(http.DetectContentType(head[:n]), "image/") {
		writeDetail(w, http.StatusBadRequest, ErrNotAllowed.Error())
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		writeDetail(w, http.StatusInternalServerError, "reading upload failed")
		return
	}

	stored := sessionID + "_" + name
	if err := h.save(stored, file); err != nil {
		h.logger.Error("saving upload", zap.String("file", stored), zap.Error(err))
		writeDetail(w, http.StatusInternalServerError, "saving upload failed")
		return
	}
	h.logger.Info("stored upload", zap.String("session_id", sessionID), zap.String("file", stored), zap.Int64("bytes", header.Size))

	writeJSON(w, http.StatusOK, uploadResponse{Success: true, FileURL: URLPrefix + url.PathEscape(stored)})
}

func (h *Handler) save(name string, src io.Reader) error {
	if err := os.MkdirAll(h.opts.Dir, 0o755); err != nil {
		return fmt.Errorf("creating uploads directory: %w", err)
	}
	dst, err := os.Create(filepath.Join(h.opts.Dir, name))
	if err != nil {
		return fmt.Errorf("creating upload file: %w", err)
	}
	if _, err := io.Copy(dst, io.LimitReader(src, h.opts.MaxBytes)); err != nil {
		dst.Close()
		return fmt.Errorf("writing upload file: %w", err)
	}
	return dst.Close()
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
