// Package handler maps HTTP routes onto the application actions.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"goal-tracker/internal/action"
	"goal-tracker/internal/application/usecases"
	"goal-tracker/internal/middleware"
	"goal-tracker/internal/presentation/http/respond"
)

const maxBodyBytes = 1 << 20

// Deps are the collaborators the handlers need.
type Deps struct {
	Goals     *usecases.GoalUseCase
	Regions   *usecases.RegionUseCase
	Tasks     *usecases.TaskUseCase
	Profile   *usecases.ProfileUseCase
	SignIn    *usecases.SignInUseCase
	IPLimiter *middleware.KeyedLimiter
	Proxies   middleware.TrustedProxies
	Metrics   http.Handler
	Ping      func(ctx context.Context) error
	Logger    *zap.Logger
}

type Handler struct {
	Deps
	pages *pages
}

func New(d Deps) (*Handler, error) {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	p, err := loadPages()
	if err != nil {
		return nil, err
	}
	return &Handler{Deps: d, pages: p}, nil
}

// RegisterRoutes attaches every route to router.
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	if h.Metrics != nil {
		router.Handle("/metrics", h.Metrics).Methods(http.MethodGet)
	}

	h.registerAuthPages(router)

	router.Handle("/", http.RedirectHandler(usecases.LandingPath, http.StatusSeeOther)).Methods(http.MethodGet)
	router.HandleFunc("/goals", h.landingPage).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	h.registerGoalRoutes(api)
	h.registerProfileRoutes(api)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond.Error(w, action.NotFound("Route not found"))
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if h.Ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.Ping(ctx); err != nil {
			h.Logger.Warn("health check failed", zap.Error(err))
			status, code = "unavailable", http.StatusServiceUnavailable
		}
	}
	respond.JSON(w, code, map[string]string{"status": status})
}

// decode reads a JSON body into dst, writing a VALIDATION_ERROR envelope
// and returning false when it cannot. An empty body decodes as {}.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		respond.Error(w, action.Invalid("Invalid request body",
			action.FieldError{Field: "body", Message: "Request body must be a JSON object"}))
		return false
	}
	return true
}
