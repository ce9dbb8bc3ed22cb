package chat

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/autogenius/autogenius/internal/auth"
	"github.com/autogenius/autogenius/internal/catalog"
)

// RegisterRoutes mounts the chat API and the chat WebSocket. Every route
// requires a signed-in user.
func RegisterRoutes(r chi.Router, svc *Service) {
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser)
		r.Post("/api/session", handleCreateSession(svc))
		r.Post("/api/chat", handleChat(svc))
		r.Post("/api/set-text-size", handleSetTextSize(svc))
		r.Get("/api/history", handleHistory(svc))
		r.Get("/api/history/{id}", handleSessionDetail(svc))
		r.Post("/api/clear-history", handleClearHistory(svc))
		r.Get("/ws/chat", handleWebSocket(svc))
	})
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type textSizeRequest struct {
	SessionID string `json:"session_id"`
	Size      string `json:"size"`
}

func handleCreateSession(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var v catalog.Vehicle
		if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
			writeDetail(w, http.StatusBadRequest, "invalid request body")
			return
		}
		user := auth.UserFromContext(r.Context())
		created, err := svc.CreateSession(r.Context(), user.ID, v)
		if err != nil {
			svc.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, created)
	}
}

func handleChat(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeDetail(w, http.StatusBadRequest, "invalid request body")
			return
		}
		user := auth.UserFromContext(r.Context())
		reply, err := svc.Send(r.Context(), user.ID, req.SessionID, req.Message)
		if err != nil {
			svc.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, reply)
	}
}

func handleSetTextSize(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req textSizeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeDetail(w, http.StatusBadRequest, "invalid request body")
			return
		}
		user := auth.UserFromContext(r.Context())
		if err := svc.SetTextSize(r.Context(), user.ID, req.SessionID, req.Size); err != nil {
			svc.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

func handleHistory(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := auth.UserFromContext(r.Context())
		items, err := svc.History(r.Context(), user.ID)
		if err != nil {
			svc.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string][]HistoryItem{"sessions": items})
	}
}

func handleSessionDetail(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := auth.UserFromContext(r.Context())
		detail, err := svc.Detail(r.Context(), user.ID, chi.URLParam(r, "id"))
		if err != nil {
			svc.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, detail)
	}
}

func handleClearHistory(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := auth.UserFromContext(r.Context())
		if err := svc.Clear(r.Context(), user.ID); err != nil {
			svc.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

// StatusFor maps a service error to its HTTP status and client-facing detail.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "Session not found"
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, "Not authorized"
	case errors.Is(err, ErrInvalidTextSize), errors.Is(err, ErrEmptyMessage),
		errors.Is(err, catalog.ErrMissingField), errors.Is(err, catalog.ErrInvalidYear):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

func (s *Service) writeError(w http.ResponseWriter, err error) {
	status, detail := StatusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("chat request failed", zap.Error(err))
	}
	writeDetail(w, status, detail)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
