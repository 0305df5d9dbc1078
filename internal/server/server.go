package server

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/ourhaus/ourhaus/internal/email"
	"github.com/ourhaus/ourhaus/internal/handler"
	"github.com/ourhaus/ourhaus/internal/homelog"
	"github.com/ourhaus/ourhaus/internal/membership"
	"github.com/ourhaus/ourhaus/internal/middleware"
	"github.com/ourhaus/ourhaus/internal/store"
	ws "github.com/ourhaus/ourhaus/internal/websocket"
)

type Server struct {
	db           *sql.DB
	hub          *ws.Hub
	authH        *handler.AuthHandler
	householdH   *handler.HouseholdHandler
	invitationH  *handler.InvitationHandler
	homeH        *handler.HomeHandler
	sessionStore *store.SessionStore
	userStore    *store.UserStore
	membership   *membership.Service
	rateLimiter  *middleware.RateLimiter
	logger       *slog.Logger
}

func New(db *sql.DB, emailClient *email.Client, secureCookies bool, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	householdStore := store.NewHouseholdStore(db)
	invitationStore := store.NewInvitationStore(db)
	sessionStore := store.NewSessionStore(db)
	homeStore := store.NewHomeStore(db)
	eventStore := store.NewEventStore(db)
	snapshotStore := store.NewSnapshotStore(db)

	membershipSvc := membership.NewService(userStore, householdStore, invitationStore,
		logger.With("component", "membership"))
	homelogSvc := homelog.NewService(homeStore, eventStore, snapshotStore, householdStore,
		logger.With("component", "homelog"))

	return &Server{
		db:           db,
		hub:          hub,
		authH:        handler.NewAuthHandler(userStore, sessionStore, membershipSvc, secureCookies, logger.With("component", "auth")),
		householdH:   handler.NewHouseholdHandler(membershipSvc, hub, logger.With("component", "household")),
		invitationH:  handler.NewInvitationHandler(membershipSvc, emailClient, hub, logger.With("component", "invitation")),
		homeH:        handler.NewHomeHandler(homelogSvc, hub, logger.With("component", "home")),
		sessionStore: sessionStore,
		userStore:    userStore,
		membership:   membershipSvc,
		rateLimiter:  middleware.NewRateLimiter(),
		logger:       logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// Membership returns the membership service for cleanup tasks.
func (s *Server) Membership() *membership.Service {
	return s.membership
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// rateLimited wraps a handler with a per-IP fixed-window limit.
func (s *Server) rateLimited(limit int, window time.Duration, next http.HandlerFunc) http.Handler {
	return middleware.RateLimit(s.rateLimiter, middleware.RealIP, limit, window)(next)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(); err != nil {
		http.Error(w, "unhealthy", http.StatusServiceUnavailable)
		return
	}
	w.Write([]byte("ok"))
}

// Router assembles the full route tree.
func (s *Server) Router() http.Handler {
	// Authenticated API routes
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/signout", s.authH.SignOut)
	mux.HandleFunc("GET /api/auth/me", s.authH.Me)
	mux.HandleFunc("PUT /api/auth/preferences", s.authH.UpdatePreferences)

	mux.HandleFunc("POST /api/households", s.householdH.Create)
	mux.HandleFunc("GET /api/households", s.householdH.List)
	mux.HandleFunc("GET /api/households/{id}", s.householdH.Get)
	mux.HandleFunc("PUT /api/households/{id}", s.householdH.Rename)
	mux.HandleFunc("PUT /api/households/{id}/primary-contact", s.householdH.SetPrimaryContact)
	mux.HandleFunc("GET /api/households/{id}/members", s.householdH.ListMembers)
	mux.HandleFunc("DELETE /api/households/{id}/members/{userId}", s.householdH.RemoveMember)
	mux.HandleFunc("PUT /api/households/{id}/members/{userId}/role", s.householdH.UpdateMemberRole)

	mux.HandleFunc("POST /api/households/{id}/invitations", s.invitationH.Create)
	mux.HandleFunc("GET /api/households/{id}/invitations", s.invitationH.List)
	mux.HandleFunc("DELETE /api/invitations/{id}", s.invitationH.Cancel)
	mux.Handle("POST /api/invitations/accept", s.rateLimited(10, time.Minute, s.invitationH.Accept))

	mux.HandleFunc("POST /api/homes", s.homeH.Create)
	mux.HandleFunc("GET /api/homes", s.homeH.List)
	mux.HandleFunc("GET /api/homes/{id}", s.homeH.Get)
	mux.HandleFunc("POST /api/homes/{id}/transfer", s.homeH.Transfer)
	mux.HandleFunc("POST /api/homes/{id}/access", s.homeH.GrantAccess)
	mux.HandleFunc("DELETE /api/homes/{id}/access/{householdId}", s.homeH.RevokeAccess)
	mux.HandleFunc("POST /api/homes/{id}/events", s.homeH.AppendEvent)
	mux.HandleFunc("GET /api/homes/{id}/events", s.homeH.Timeline)
	mux.HandleFunc("POST /api/homes/{id}/snapshots", s.homeH.CreateSnapshot)
	mux.HandleFunc("GET /api/homes/{id}/snapshots", s.homeH.ListSnapshots)
	mux.HandleFunc("GET /api/homes/{id}/snapshots/{snapshotId}", s.homeH.GetSnapshot)
	mux.HandleFunc("PUT /api/homes/{id}/snapshots/{snapshotId}", s.homeH.UpdateSnapshot)
	mux.HandleFunc("POST /api/homes/{id}/snapshots/{snapshotId}/files", s.homeH.AddSnapshotFile)
	mux.HandleFunc("POST /api/homes/{id}/snapshots/{snapshotId}/seal", s.homeH.SealSnapshot)

	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))

	requireAuth := middleware.RequireAuth(s.sessionStore, s.userStore)

	// Public routes
	outer := http.NewServeMux()
	outer.Handle("POST /api/auth/signup", s.rateLimited(5, time.Minute, s.authH.SignUp))
	outer.Handle("POST /api/auth/signin", s.rateLimited(10, time.Minute, s.authH.SignIn))
	outer.HandleFunc("GET /health", s.healthHandler)
	outer.Handle("/", requireAuth(mux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outer)
}
