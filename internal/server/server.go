package server

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/autogenius/autogenius/internal/auth"
	"github.com/autogenius/autogenius/internal/db"
)

// Config holds server configuration.
type Config struct {
	Port           int
	AllowedOrigins []string
	RequestTimeout time.Duration // 0 means DefaultRequestTimeout; WebSocket routes are exempt
}

// DefaultRequestTimeout matches the terminal client's own timeout, so a slow
// diagnosis is not cut off while the client is still waiting.
const DefaultRequestTimeout = 2 * time.Minute

// writeGrace is how long past the request timeout a response may still be
// written.
const writeGrace = 30 * time.Second

// Server is the AutoGenius HTTP API server.
type Server struct {
	cfg        Config
	db         *db.DB
	auth       *auth.Store
	logger     *zap.Logger
	router     chi.Router
	httpServer *http.Server
}

// New creates a server. When authStore is non-nil every request is
// authenticated from its session cookie or bearer token.
func New(cfg Config, database *db.DB, authStore *auth.Store, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	s := &Server{
		cfg:    cfg,
		db:     database,
		auth:   authStore,
		logger: logger,
	}

	s.router = s.buildRouter()
	return s
}

// buildRouter creates and configures the chi router with the shared
// middleware. Feature packages add their routes through Router.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  zap.NewStdLog(s.logger.Named("http")),
		NoColor: true,
	}))
	r.Use(middleware.Recoverer)
	r.Use(timeoutExceptWebSockets(s.cfg.RequestTimeout))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if s.auth != nil {
		r.Use(auth.Authenticate(s.auth, s.logger))
	}

	// Health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/", handleIndex)

	return r
}

func timeoutExceptWebSockets(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		timed := middleware.Timeout(d)(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/ws/") {
				next.ServeHTTP(w, r)
				return
			}
			timed.ServeHTTP(w, r)
		})
	}
}

var indexTmpl = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>AutoGenius</title></head>
<body>
<h1>AutoGenius</h1>
<p>Automotive diagnosis assistant API.</p>
{{if .}}<p>Signed in as {{.Name}} ({{.Email}}). <a href="/api/auth/logout">Sign out</a></p>
{{else}}<p><a href="/api/auth/login">Sign in with Google</a></p>{{end}}
<p>Use the <code>autogenius chat</code> command to talk to the assistant.</p>
</body></html>
`))

func handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	indexTmpl.Execute(w, auth.UserFromContext(r.Context()))
}

// Router returns the chi router for registering additional routes.
func (s *Server) Router() chi.Router { return s.router }

// Database returns the database connection.
func (s *Server) Database() *db.DB { return s.db }

// Logger returns the server logger.
func (s *Server) Logger() *zap.Logger { return s.logger }

// Start begins listening on the configured port.
func (s *Server) Start() error {
	s.httpServer = s.newHTTPServer()
	s.logger.Info("autogenius server listening", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

func (s *Server) newHTTPServer() *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.RequestTimeout + writeGrace,
		IdleTimeout:       120 * time.Second,
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
