package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dukerupert/chorewheel/internal/config"
	"github.com/dukerupert/chorewheel/internal/handler"
	"github.com/dukerupert/chorewheel/internal/middleware"
	"github.com/dukerupert/chorewheel/internal/store"
	ws "github.com/dukerupert/chorewheel/internal/websocket"
)

type Server struct {
	db          *sql.DB
	cfg         *config.Config
	hub         *ws.Hub
	choreH      *handler.ChoreHandler
	userH       *handler.UserHandler
	familyH     *handler.FamilyHandler
	familyStore *store.FamilyStore
	choreStore  *store.ChoreStore
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
}

func New(db *sql.DB, cfg *config.Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	familyStore := store.NewFamilyStore(db)
	choreStore := store.NewChoreStore(db)
	ledgerStore := store.NewLedgerStore(db)

	return &Server{
		db:          db,
		cfg:         cfg,
		hub:         hub,
		choreH:      handler.NewChoreHandler(choreStore, hub, logger.With("component", "chore")),
		userH:       handler.NewUserHandler(choreStore, ledgerStore, logger.With("component", "user")),
		familyH:     handler.NewFamilyHandler(familyStore, logger.With("component", "family")),
		familyStore: familyStore,
		choreStore:  choreStore,
		rateLimiter: middleware.NewRateLimiter(),
		logger:      logger,
	}
}

// Hub returns the websocket hub so the sweeper can broadcast through it.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

// ChoreStore returns the chore store for background tasks.
func (s *Server) ChoreStore() *store.ChoreStore {
	return s.choreStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes
	outerMux.HandleFunc("POST /api/families", s.rateLimitedHandler(s.familyH.Create))
	outerMux.HandleFunc("GET /api/families/code/{code}", s.familyH.Lookup)
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Identified routes
	identifiedMux := http.NewServeMux()
	s.registerIdentifiedRoutes(identifiedMux)

	identity := middleware.Identity(s.familyStore)
	outerMux.Handle("/", identity(identifiedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) registerIdentifiedRoutes(mux *http.ServeMux) {
	parent := func(h http.HandlerFunc) http.Handler { return middleware.RequireParent(h) }
	child := func(h http.HandlerFunc) http.Handler { return middleware.RequireChild(h) }

	// Family roster
	mux.HandleFunc("GET /api/family-members", s.familyH.ListMembers)
	mux.Handle("POST /api/family-members", parent(s.familyH.AddMember))
	mux.Handle("DELETE /api/family-members/{id}", parent(s.familyH.RemoveMember))

	// Chore CRUD and views
	mux.Handle("POST /api/chores", parent(s.choreH.Create))
	mux.HandleFunc("GET /api/chores", s.choreH.List)
	mux.HandleFunc("GET /api/chores/{id}", s.choreH.Get)

	// Lifecycle
	mux.Handle("POST /api/chores/{id}/assign", parent(s.choreH.Assign))
	mux.Handle("POST /api/chores/{id}/accept", child(s.choreH.Accept))
	mux.Handle("POST /api/chores/{id}/decline", child(s.choreH.Decline))
	mux.Handle("POST /api/chores/{id}/submit", child(s.choreH.Submit))
	mux.Handle("POST /api/chores/{id}/approve/{submission_id}", parent(s.choreH.Approve))
	mux.Handle("POST /api/chores/{id}/reject/{submission_id}", parent(s.choreH.Reject))

	// Per-user views
	mux.HandleFunc("GET /api/users/me/chores", s.userH.MyChores)
	mux.HandleFunc("GET /api/users/me/earnings", s.userH.Earnings)
	mux.HandleFunc("GET /api/leaderboard", s.userH.Leaderboard)

	// Real-time updates
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "degraded"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, s.cfg.RateLimit, s.cfg.RateLimitWindow)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}
