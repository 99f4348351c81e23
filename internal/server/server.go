package server

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"autoeden/internal/app"
	"autoeden/internal/util"
	"autoeden/pkg/auth"
	"autoeden/pkg/domain"
	"autoeden/pkg/ws"
)

// Limiter gates requests per key. Implemented by ratelimit.FixedWindowLimiter.
type Limiter interface {
	Allow(key string) bool
}

// Config holds the server's collaborators.
type Config struct {
	App    *app.App
	Tokens *auth.TokenService
	Hub    *ws.Hub
	Logger *slog.Logger
	// LoginLimiter gates credential endpoints per client IP.
	LoginLimiter Limiter
	// WriteLimiter gates public mutating endpoints per client IP.
	WriteLimiter   Limiter
	MaxUploadBytes int64
}

// Server is the HTTP API.
type Server struct {
	app            *app.App
	tokens         *auth.TokenService
	hub            *ws.Hub
	logger         *slog.Logger
	loginLimiter   Limiter
	writeLimiter   Limiter
	maxUploadBytes int64
	upgrader       websocket.Upgrader
}

// New builds the server.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	return &Server{
		app:            cfg.App,
		tokens:         cfg.Tokens,
		hub:            cfg.Hub,
		logger:         logger,
		loginLimiter:   cfg.LoginLimiter,
		writeLimiter:   cfg.WriteLimiter,
		maxUploadBytes: maxUpload,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// browser clients connect cross-origin from the web frontend
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler assembles the route table behind the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.routes(mux)

	var handler http.Handler = mux
	handler = util.WithSecurityHeaders(handler)
	handler = util.WithCORS(handler)
	handler = util.WithRequestLog(handler)
	handler = util.WithRequestID(handler)
	return handler
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/health", s.handleHealth)

	// auth
	mux.HandleFunc("POST /api/auth/register", s.limitLogin(s.handleRegister))
	mux.HandleFunc("POST /api/auth/login", s.limitLogin(s.handleLogin))
	mux.HandleFunc("POST /api/auth/refresh", s.handleRefresh)
	mux.HandleFunc("POST /api/auth/logout", s.handleLogout)

	// public marketplace
	mux.HandleFunc("GET /api/marketplace", s.handleMarketplace)
	mux.HandleFunc("GET /api/marketplace/{id}", s.handleVehicleDetail)
	mux.HandleFunc("GET /api/search", s.handleMarketplace)
	mux.HandleFunc("GET /api/vehicles/{id}", s.handleVehicleDetail)
	mux.HandleFunc("POST /api/vehicles/{id}/quotes", s.limitWrite(s.handleCreateQuote))

	// listings
	mux.HandleFunc("POST /api/vehicles", s.requireAuth(s.limitWriteUser(s.handleCreateVehicle)))
	mux.HandleFunc("GET /api/vehicles/mine", s.requireAuth(s.handleMyVehicles))
	mux.HandleFunc("PUT /api/vehicles/{id}", s.requireAuth(s.handleUpdateVehicle))
	mux.HandleFunc("DELETE /api/vehicles/{id}", s.requireAuth(s.handleDeleteVehicle))
	mux.HandleFunc("POST /api/vehicles/{id}/images", s.requireAuth(s.handleAddImage))
	mux.HandleFunc("DELETE /api/vehicles/{id}/images/{imageID}", s.requireAuth(s.handleDeleteImage))

	// assistant
	mux.HandleFunc("POST /api/ai/describe", s.requireAuth(s.handleAIDescribe))
	mux.HandleFunc("POST /api/ai/price", s.requireAuth(s.handleAIPrice))
	mux.HandleFunc("POST /api/ai/chat", s.requireAuth(s.handleAIChat))

	// bids
	mux.HandleFunc("POST /api/vehicles/{id}/bids", s.requireAuth(s.limitWriteUser(s.handlePlaceBid)))
	mux.HandleFunc("GET /api/vehicles/{id}/bids", s.requireAuth(s.handleVehicleBids))
	mux.HandleFunc("GET /api/bids/mine", s.requireAuth(s.handleMyBids))

	// quotes
	mux.HandleFunc("GET /api/quotes/{id}", s.requireAuth(s.handleGetQuote))
	mux.HandleFunc("GET /api/quotes/{id}/pdf", s.requireAuth(s.handleQuotePDF))

	// account
	mux.HandleFunc("GET /api/me/profile", s.requireAuth(s.handleGetProfile))
	mux.HandleFunc("PUT /api/me/profile", s.requireAuth(s.handleUpdateProfile))
	mux.HandleFunc("GET /api/me/preferences", s.requireAuth(s.handleGetPreferences))
	mux.HandleFunc("PUT /api/me/preferences", s.requireAuth(s.handleUpdatePreferences))

	// notifications
	mux.HandleFunc("GET /api/notifications", s.requireAuth(s.handleNotifications))
	mux.HandleFunc("GET /api/notifications/unread-count", s.requireAuth(s.handleUnreadCount))
	mux.HandleFunc("POST /api/notifications/{id}/read", s.requireAuth(s.handleMarkRead))
	mux.HandleFunc("POST /api/notifications/read-all", s.requireAuth(s.handleMarkAllRead))
	mux.HandleFunc("DELETE /api/notifications/{id}", s.requireAuth(s.handleDeleteNotification))

	// saved searches
	mux.HandleFunc("GET /api/searches", s.requireAuth(s.handleMySearches))
	mux.HandleFunc("POST /api/searches", s.requireAuth(s.handleCreateSearch))
	mux.HandleFunc("PATCH /api/searches/{id}", s.requireAuth(s.handleUpdateSearch))
	mux.HandleFunc("DELETE /api/searches/{id}", s.requireAuth(s.handleDeleteSearch))

	// drafts
	mux.HandleFunc("GET /api/drafts", s.requireAuth(s.handleMyDrafts))
	mux.HandleFunc("POST /api/drafts", s.requireAuth(s.handleSaveDraft))
	mux.HandleFunc("PUT /api/drafts/{id}", s.requireAuth(s.handleUpdateDraft))
	mux.HandleFunc("DELETE /api/drafts/{id}", s.requireAuth(s.handleDeleteDraft))
	mux.HandleFunc("POST /api/drafts/{id}/publish", s.requireAuth(s.handlePublishDraft))

	// admin
	mux.HandleFunc("GET /api/admin/vehicles", s.requireAdmin(s.handleAdminVehicles))
	mux.HandleFunc("PATCH /api/admin/vehicles/{id}/verify", s.requireAdmin(s.handleReviewVehicle))
	mux.HandleFunc("GET /api/admin/quotes", s.requireAdmin(s.handleAdminQuotes))
	mux.HandleFunc("PATCH /api/admin/quotes/{id}", s.requireAdmin(s.handleSetQuoteStatus))
	mux.HandleFunc("POST /api/admin/bids/{id}/accept", s.requireAdmin(s.handleAcceptBid))
	mux.HandleFunc("POST /api/admin/bids/{id}/reject", s.requireAdmin(s.handleRejectBid))
	mux.HandleFunc("GET /api/admin/stats", s.requireAdmin(s.handleStats))
	mux.HandleFunc("GET /api/admin/users", s.requireAdmin(s.handleAdminUsers))
	mux.HandleFunc("PATCH /api/admin/users/{id}/status", s.requireAdmin(s.handleSetUserStatus))
	mux.HandleFunc("POST /api/admin/exports", s.requireAdmin(s.handleExport))
	mux.HandleFunc("GET /api/admin/exports/logs", s.requireAdmin(s.handleExportLogs))
	mux.HandleFunc("GET /api/admin/exports/columns", s.requireAdmin(s.handleExportColumns))
	mux.HandleFunc("GET /api/admin/exports/configurations", s.requireAdmin(s.handleExportConfigurations))
	mux.HandleFunc("POST /api/admin/exports/configurations", s.requireAdmin(s.handleSaveExportConfiguration))

	// realtime
	mux.HandleFunc("GET /api/ws", s.handleWebSocket)
	mux.HandleFunc("GET /ws/notifications", s.handleWebSocket)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"assistant": s.app.AssistantEnabled(),
	})
}

type authedHandler func(http.ResponseWriter, *http.Request, domain.User)

// currentUser resolves the bearer token to a live account, so disabled
// accounts and stale role claims are rejected immediately.
func (s *Server) currentUser(r *http.Request) (domain.User, error) {
	token := bearerToken(r)
	if token == "" {
		return domain.User{}, app.ErrInvalidCredentials
	}
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return domain.User{}, app.ErrInvalidCredentials
	}
	user, err := s.app.GetUser(r.Context(), claims.UserID)
	if err != nil {
		return domain.User{}, app.ErrInvalidCredentials
	}
	if user.Status != domain.StatusActive {
		return domain.User{}, app.ErrForbidden
	}
	return user, nil
}

func (s *Server) requireAuth(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := s.currentUser(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		next(w, r, user)
	}
}

func (s *Server) requireAdmin(next authedHandler) http.HandlerFunc {
	return s.requireAuth(func(w http.ResponseWriter, r *http.Request, user domain.User) {
		if user.Role != domain.RoleAdmin {
			writeError(w, r, app.ErrForbidden)
			return
		}
		next(w, r, user)
	})
}

// optionalUser returns the authenticated user or nil for anonymous requests.
func (s *Server) optionalUser(r *http.Request) *domain.User {
	if bearerToken(r) == "" {
		return nil
	}
	user, err := s.currentUser(r)
	if err != nil {
		return nil
	}
	return &user
}

func (s *Server) limitLogin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.loginLimiter != nil && !s.loginLimiter.Allow(util.ClientIP(r)) {
			writeJSONError(w, http.StatusTooManyRequests, "too many attempts, slow down")
			return
		}
		next(w, r)
	}
}

func (s *Server) limitWrite(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.writeLimiter != nil && !s.writeLimiter.Allow(util.ClientIP(r)) {
			writeJSONError(w, http.StatusTooManyRequests, "too many requests, slow down")
			return
		}
		next(w, r)
	}
}

func (s *Server) limitWriteUser(next authedHandler) authedHandler {
	return func(w http.ResponseWriter, r *http.Request, user domain.User) {
		if s.writeLimiter != nil && !s.writeLimiter.Allow(user.ID) {
			writeJSONError(w, http.StatusTooManyRequests, "too many requests, slow down")
			return
		}
		next(w, r, user)
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}
