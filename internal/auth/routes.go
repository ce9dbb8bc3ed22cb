package auth

import (
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Options configure the auth routes.
type Options struct {
	SessionTTL    time.Duration
	SecureCookies bool
	Logger        *zap.Logger
}

type handler struct {
	store  *Store
	idp    IdentityProvider
	opts   Options
	logger *zap.Logger
}

// RegisterRoutes mounts the sign-in API under /api/auth. The routes expect
// the Authenticate middleware to run first.
func RegisterRoutes(r chi.Router, store *Store, idp IdentityProvider, opts Options) {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = time.Hour
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &handler{store: store, idp: idp, opts: opts, logger: logger}

	r.Route("/api/auth", func(r chi.Router) {
		r.Get("/login", h.login)
		r.Get("/callback", h.callback)
		r.Get("/logout", h.logout)
		r.With(RequireUser).Get("/user", h.user)
	})
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	cliRedirect := r.URL.Query().Get("cli_redirect")
	if cliRedirect != "" && !isLoopback(cliRedirect) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "cli_redirect must be a loopback URL"})
		return
	}
	state, err := h.store.NewState(r.Context(), cliRedirect)
	if err != nil {
		h.logger.Error("starting login", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "Could not start login"})
		return
	}
	http.Redirect(w, r, h.idp.AuthCodeURL(state), http.StatusFound)
}

func (h *handler) callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		http.Redirect(w, r, "/?error="+url.QueryEscape(e), http.StatusFound)
		return
	}

	cliRedirect, ok, err := h.store.ConsumeState(r.Context(), q.Get("state"))
	if err != nil {
		h.logger.Error("reading oauth state", zap.Error(err))
	}
	if !ok {
		http.Redirect(w, r, "/?error=invalid_state", http.StatusFound)
		return
	}

	identity, err := h.idp.Identify(r.Context(), q.Get("code"))
	if err != nil {
		h.logger.Warn("oauth callback failed", zap.Error(err))
		http.Redirect(w, r, "/?error=access_denied", http.StatusFound)
		return
	}
	user, err := h.store.UpsertUser(r.Context(), *identity)
	if err != nil {
		h.logger.Error("saving user", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "Could not save user"})
		return
	}
	token, err := h.store.CreateSession(r.Context(), user.ID, h.opts.SessionTTL)
	if err != nil {
		h.logger.Error("creating auth session", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "Could not create session"})
		return
	}
	h.logger.Info("user signed in", zap.String("user_id", user.ID), zap.Bool("cli", cliRedirect != ""))

	if cliRedirect != "" {
		target, _ := url.Parse(cliRedirect)
		tq := target.Query()
		tq.Set("token", token)
		target.RawQuery = tq.Encode()
		http.Redirect(w, r, target.String(), http.StatusFound)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.opts.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/", http.StatusFound)
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	if token := TokenFromRequest(r); token != "" {
		if err := h.store.DeleteSession(r.Context(), token); err != nil {
			h.logger.Error("logging out", zap.Error(err))
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/", http.StatusFound)
}

func (h *handler) user(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, UserFromContext(r.Context()))
}

// isLoopback reports whether raw is an http URL on the local machine.
func isLoopback(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "http" {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
