package server

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"goal-tracker/internal/auth"
	"goal-tracker/internal/infrastructure/di"
	"goal-tracker/internal/middleware"
)

// Server represents the HTTP server with configured middleware
type Server struct {
	Router  *mux.Router
	handler http.Handler
	http    *http.Server
}

// New builds the router and wraps it in the middleware chain. Outermost
// first: request id, logging, panic recovery, CORS, authboss client state,
// then the session gate, which sees every path including unknown ones.
func New(c *di.Container) *Server {
	router := mux.NewRouter()
	router.Use(middleware.Metrics(c.Metrics))

	// Authboss registers its routes without the mount prefix.
	router.PathPrefix(auth.MountPath).Handler(http.StripPrefix(auth.MountPath, c.Authboss.Config.Core.Router))
	c.Handler.RegisterRoutes(router)

	var h http.Handler = router
	h = middleware.SessionGate(c.RoutePolicy, c.Metrics)(h)
	h = c.Authboss.LoadClientStateMiddleware(h)
	h = middleware.CORS(c.Config.CORS.AllowedOrigins)(h)
	h = middleware.Recover(c.Logger)(h)
	h = middleware.Logging(c.Logger, c.Proxies)(h)
	h = middleware.RequestID(h)

	cfg := c.Config.Server
	return &Server{
		Router:  router,
		handler: h,
		http: &http.Server{
			Addr:         cfg.Address(),
			Handler:      h,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
	}
}

// Handler is the fully wrapped handler.
func (s *Server) Handler() http.Handler { return s.handler }

// ListenAndServe blocks until the server stops. It returns nil after a
// graceful Shutdown.
func (s *Server) ListenAndServe() error {
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) Addr() string { return s.http.Addr }
