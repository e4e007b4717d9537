// Package api serves the habitual REST API, websocket push and metrics.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/julianstephens/habitual/internal/auth"
	"github.com/julianstephens/habitual/internal/constants"
	"github.com/julianstephens/habitual/internal/logger"
	"github.com/julianstephens/habitual/internal/metrics"
	"github.com/julianstephens/habitual/internal/realtime"
	"github.com/julianstephens/habitual/internal/service"
)

type Config struct {
	Services *service.Services
	Issuer   *auth.Issuer
	Hub      *realtime.Hub
}

type Server struct {
	svc         *service.Services
	issuer      *auth.Issuer
	hub         *realtime.Hub
	authLimiter *RateLimiter
	apiLimiter  *RateLimiter
	router      *mux.Router
	log         *logger.Component
}

func NewServer(cfg Config) *Server {
	s := &Server{
		svc:         cfg.Services,
		issuer:      cfg.Issuer,
		hub:         cfg.Hub,
		authLimiter: NewRateLimiter("auth", constants.AuthRateBurst, constants.AuthRateInterval),
		apiLimiter:  NewRateLimiter("api", constants.APIRateBurst, constants.APIRateInterval),
		log:         logger.With("http"),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := mux.NewRouter()
	r.Use(loggingMiddleware(s.log), metricsMiddleware)

	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	public := api.PathPrefix("/auth").Subrouter()
	public.Use(s.authLimiter.Handler)
	public.HandleFunc("/register", s.register).Methods(http.MethodPost)
	public.HandleFunc("/login", s.login).Methods(http.MethodPost)

	private := api.NewRoute().Subrouter()
	private.Use(authMiddleware(s.issuer), s.apiLimiter.Handler)

	private.HandleFunc("/habits", s.listHabits).Methods(http.MethodGet)
	private.HandleFunc("/habits", s.createHabit).Methods(http.MethodPost)
	private.HandleFunc("/habits/{id}", s.getHabit).Methods(http.MethodGet)
	private.HandleFunc("/habits/{id}", s.updateHabit).Methods(http.MethodPut)
	private.Handle("/habits/{id}", s.habitAction(s.svc.Habits.Delete)).Methods(http.MethodDelete)
	private.Handle("/habits/{id}/archive", s.habitAction(s.svc.Habits.Archive)).Methods(http.MethodPost)
	private.Handle("/habits/{id}/unarchive", s.habitAction(s.svc.Habits.Unarchive)).Methods(http.MethodPost)
	private.Handle("/habits/{id}/restore", s.habitAction(s.svc.Habits.Restore)).Methods(http.MethodPost)
	private.HandleFunc("/habits/{id}/complete", s.completeHabit).Methods(http.MethodPost)
	private.HandleFunc("/habits/{id}/completions", s.listCompletions).Methods(http.MethodGet)
	private.HandleFunc("/habits/{id}/completions/count", s.countCompletions).Methods(http.MethodGet)
	private.HandleFunc("/habits/{id}/streak", s.getStreak).Methods(http.MethodGet)
	private.HandleFunc("/habits/{id}/streak/recalculate", s.recalculateStreak).Methods(http.MethodPost)

	private.HandleFunc("/streaks", s.listStreaks).Methods(http.MethodGet)

	private.HandleFunc("/notifications", s.listNotifications).Methods(http.MethodGet)
	private.HandleFunc("/notifications/unread-count", s.unreadCount).Methods(http.MethodGet)
	private.HandleFunc("/notifications/read-all", s.markAllRead).Methods(http.MethodPost)
	private.HandleFunc("/notifications/{id}/read", s.markRead).Methods(http.MethodPost)

	private.HandleFunc("/ws", s.websocket).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
	})

	s.router = r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.authLimiter.StartCleanup(ctx, time.Minute, constants.AuthRateInterval)
	s.apiLimiter.StartCleanup(ctx, time.Minute, constants.APIRateInterval)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.ShutdownTimeout)
	defer cancel()

	if s.hub != nil {
		s.hub.Close()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.log.Info("Server stopped")
	return nil
}
