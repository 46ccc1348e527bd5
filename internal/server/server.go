// Package server exposes rooms, the catalog, looks, uploads and accounts
// over HTTP and WebSocket.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"fitroom/internal/auth"
	"fitroom/internal/catalog"
	"fitroom/internal/looks"
	"fitroom/internal/metrics"
	"fitroom/internal/preview"
	"fitroom/internal/room"
	"fitroom/internal/uploads"
)

const maxActionBytes = 1 << 20

// Config holds the HTTP-facing settings.
type Config struct {
	AssetDir   string
	PreviewDir string
	Preview    preview.Options

	AuthRateLimit float64
	AuthRateBurst int
	CORSOrigins   []string

	// SnapshotInterval throttles snapshot pushes on WebSocket connections.
	SnapshotInterval time.Duration
}

// Deps are the services behind the routes. Metrics may be nil.
type Deps struct {
	Rooms   *room.Manager
	Catalog *catalog.Catalog
	Looks   *looks.Store
	Uploads *uploads.Store
	Auth    *auth.Service
	Metrics *metrics.Collector
}

type Server struct {
	cfg     Config
	rooms   *room.Manager
	catalog *catalog.Catalog
	looks   *looks.Store
	uploads *uploads.Store
	auth    *auth.Service
	metrics *metrics.Collector
	logger  *zap.Logger
}

func New(cfg Config, deps Deps, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SnapshotInterval <= 0 {
		cfg.SnapshotInterval = 100 * time.Millisecond
	}
	if cfg.Preview.Width == 0 {
		cfg.Preview = preview.DefaultOptions()
	}
	return &Server{
		cfg:     cfg,
		rooms:   deps.Rooms,
		catalog: deps.Catalog,
		looks:   deps.Looks,
		uploads: deps.Uploads,
		auth:    deps.Auth,
		metrics: deps.Metrics,
		logger:  logger.With(zap.String("component", "server")),
	}
}

// Handler builds the routed handler with its middleware. ctx bounds the
// background work of the rate limiter.
func (s *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	limited := RateLimiter(ctx, s.cfg.AuthRateLimit, s.cfg.AuthRateBurst)
	authed := RequireAuth(s.auth, s.logger)

	mux.HandleFunc("GET /health", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	mux.Handle("POST /api/auth/signup", limited(http.HandlerFunc(s.handleSignup)))
	mux.Handle("POST /api/auth/login", limited(http.HandlerFunc(s.handleLogin)))
	mux.Handle("POST /api/auth/reset-password", limited(http.HandlerFunc(s.handleResetPassword)))
	mux.HandleFunc("POST /api/auth/logout", s.handleLogout)
	mux.Handle("GET /api/auth/me", authed(http.HandlerFunc(s.handleMe)))
	mux.Handle("POST /api/auth/password", authed(http.HandlerFunc(s.handleUpdatePassword)))

	mux.Handle("POST /api/uploads", authed(http.HandlerFunc(s.handleUpload)))
	mux.HandleFunc("GET /api/catalog", s.handleCatalog)

	mux.HandleFunc("POST /api/rooms", s.handleCreateRoom)
	mux.HandleFunc("GET /api/rooms/{id}", s.handleGetRoom)
	mux.HandleFunc("DELETE /api/rooms/{id}", s.handleCloseRoom)
	mux.HandleFunc("POST /api/rooms/{id}/actions", s.handleAction)
	mux.HandleFunc("GET /api/rooms/{id}/preview.webp", s.handlePreview)
	mux.HandleFunc("GET /api/rooms/{id}/ws", s.handleWS)

	mux.HandleFunc("GET /api/looks", s.handleListLooks)
	mux.HandleFunc("GET /api/looks/{id}", s.handleGetLook)
	mux.Handle("POST /api/looks", authed(http.HandlerFunc(s.handleSaveLook)))
	mux.Handle("DELETE /api/looks/{id}", authed(http.HandlerFunc(s.handleDeleteLook)))

	if s.cfg.AssetDir != "" {
		mux.Handle("GET /assets/", http.StripPrefix("/assets", http.FileServer(http.Dir(s.cfg.AssetDir))))
	}
	if s.cfg.PreviewDir != "" {
		mux.Handle("GET /previews/", http.StripPrefix("/previews", http.FileServer(http.Dir(s.cfg.PreviewDir))))
	}

	return Chain(mux,
		Recovery(s.logger),
		RequestID(),
		RequestLogger(s.logger),
		Metrics(s.metrics),
		SecurityHeaders(),
		CORS(s.cfg.CORSOrigins),
	)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, r, http.StatusOK, map[string]any{
		"status": "ok",
		"rooms":  s.rooms.Len(),
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxActionBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}
