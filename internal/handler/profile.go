package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"goal-tracker/internal/application/usecases"
	"goal-tracker/internal/presentation/http/respond"
)

func (h *Handler) registerProfileRoutes(api *mux.Router) {
	api.HandleFunc("/profile", h.getProfile).Methods(http.MethodGet)
	api.HandleFunc("/profile", h.updateProfile).Methods(http.MethodPatch)
	api.HandleFunc("/profile/2fa/setup", h.beginTwoFactor).Methods(http.MethodPost)
	api.HandleFunc("/profile/2fa/enable", h.enableTwoFactor).Methods(http.MethodPost)
	api.HandleFunc("/profile/2fa/disable", h.disableTwoFactor).Methods(http.MethodPost)
	api.HandleFunc("/profile/activity", h.activity).Methods(http.MethodGet)
}

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) {
	respond.Result(w, h.Profile.Get(r.Context()), http.StatusOK)
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var in usecases.UpdateProfileInput
	if !decode(w, r, &in) {
		return
	}
	respond.Result(w, h.Profile.Update(r.Context(), in), http.StatusOK)
}

func (h *Handler) beginTwoFactor(w http.ResponseWriter, r *http.Request) {
	respond.Result(w, h.Profile.BeginTwoFactor(r.Context()), http.StatusOK)
}

func (h *Handler) enableTwoFactor(w http.ResponseWriter, r *http.Request) {
	var in usecases.TOTPCodeInput
	if !decode(w, r, &in) {
		return
	}
	respond.Result(w, h.Profile.EnableTwoFactor(r.Context(), in), http.StatusOK)
}

func (h *Handler) disableTwoFactor(w http.ResponseWriter, r *http.Request) {
	var in usecases.SecondFactorInput
	if !decode(w, r, &in) {
		return
	}
	respond.Result(w, h.Profile.DisableTwoFactor(r.Context(), in), http.StatusOK)
}

func (h *Handler) activity(w http.ResponseWriter, r *http.Request) {
	respond.Result(w, h.Profile.Activity(r.Context(), usecases.ActivityInput{Query: r.URL.Query()}), http.StatusOK)
}
