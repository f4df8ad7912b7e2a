package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"goal-tracker/internal/application/usecases"
	"goal-tracker/internal/presentation/http/respond"
)

func (h *Handler) registerGoalRoutes(api *mux.Router) {
	api.HandleFunc("/goals", h.listGoals).Methods(http.MethodGet)
	api.HandleFunc("/goals", h.createGoal).Methods(http.MethodPost)
	api.HandleFunc("/goals/{id}", h.getGoal).Methods(http.MethodGet)
	api.HandleFunc("/goals/{id}", h.updateGoal).Methods(http.MethodPatch)
	api.HandleFunc("/goals/{id}", h.deleteGoal).Methods(http.MethodDelete)

	api.HandleFunc("/goals/{goalId}/regions", h.listRegions).Methods(http.MethodGet)
	api.HandleFunc("/goals/{goalId}/regions", h.createRegion).Methods(http.MethodPost)
	api.HandleFunc("/regions/{id}", h.getRegion).Methods(http.MethodGet)
	api.HandleFunc("/regions/{id}", h.updateRegion).Methods(http.MethodPatch)
	api.HandleFunc("/regions/{id}", h.deleteRegion).Methods(http.MethodDelete)

	api.HandleFunc("/regions/{regionId}/tasks", h.listTasks).Methods(http.MethodGet)
	api.HandleFunc("/regions/{regionId}/tasks", h.createTask).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{id}", h.getTask).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{id}", h.updateTask).Methods(http.MethodPatch)
	api.HandleFunc("/tasks/{id}", h.deleteTask).Methods(http.MethodDelete)

	// Subgoals are the old name for regions.
	legacy := api.NewRoute().Subrouter()
	legacy.Use(deprecated)
	legacy.HandleFunc("/goals/{goalId}/subgoals", h.listRegions).Methods(http.MethodGet)
	legacy.HandleFunc("/goals/{goalId}/subgoals", h.createRegion).Methods(http.MethodPost)
	legacy.HandleFunc("/subgoals/{id}", h.getRegion).Methods(http.MethodGet)
	legacy.HandleFunc("/subgoals/{id}", h.updateRegion).Methods(http.MethodPatch)
	legacy.HandleFunc("/subgoals/{id}", h.deleteRegion).Methods(http.MethodDelete)
	legacy.HandleFunc("/subgoals/{regionId}/tasks", h.listTasks).Methods(http.MethodGet)
	legacy.HandleFunc("/subgoals/{regionId}/tasks", h.createTask).Methods(http.MethodPost)
}

func deprecated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Deprecation", "true")
		w.Header().Set("Link", `</api/regions>; rel="successor-version"`)
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) listGoals(w http.ResponseWriter, r *http.Request) {
	respond.Result(w, h.Goals.List(r.Context(), usecases.ListGoalsInput{Query: r.URL.Query()}), http.StatusOK)
}

func (h *Handler) createGoal(w http.ResponseWriter, r *http.Request) {
	var in usecases.CreateGoalInput
	if !decode(w, r, &in) {
		return
	}
	respond.Result(w, h.Goals.Create(r.Context(), in), http.StatusCreated)
}

func (h *Handler) getGoal(w http.ResponseWriter, r *http.Request) {
	respond.Result(w, h.Goals.Get(r.Context(), mux.Vars(r)["id"]), http.StatusOK)
}

func (h *Handler) updateGoal(w http.ResponseWriter, r *http.Request) {
	var in usecases.UpdateGoalInput
	if !decode(w, r, &in) {
		return
	}
	in.ID = mux.Vars(r)["id"]
	respond.Result(w, h.Goals.Update(r.Context(), in), http.StatusOK)
}

func (h *Handler) deleteGoal(w http.ResponseWriter, r *http.Request) {
	respond.Result(w, h.Goals.Delete(r.Context(), mux.Vars(r)["id"]), http.StatusOK)
}

func (h *Handler) listRegions(w http.ResponseWriter, r *http.Request) {
	respond.Result(w, h.Regions.ListForGoal(r.Context(), mux.Vars(r)["goalId"]), http.StatusOK)
}

func (h *Handler) createRegion(w http.ResponseWriter, r *http.Request) {
	var in usecases.CreateRegionInput
	if !decode(w, r, &in) {
		return
	}
	in.GoalID = mux.Vars(r)["goalId"]
	respond.Result(w, h.Regions.Create(r.Context(), in), http.StatusCreated)
}

func (h *Handler) getRegion(w http.ResponseWriter, r *http.Request) {
	respond.Result(w, h.Regions.Get(r.Context(), mux.Vars(r)["id"]), http.StatusOK)
}

func (h *Handler) updateRegion(w http.ResponseWriter, r *http.Request) {
	var in usecases.UpdateRegionInput
	if !decode(w, r, &in) {
		return
	}
	in.ID = mux.Vars(r)["id"]
	respond.Result(w, h.Regions.Update(r.Context(), in), http.StatusOK)
}

func (h *Handler) deleteRegion(w http.ResponseWriter, r *http.Request) {
	respond.Result(w, h.Regions.Delete(r.Context(), mux.Vars(r)["id"]), http.StatusOK)
}

func (h *Handler) listTasks(w http.ResponseWriter, r *http.Request) {
	respond.Result(w, h.Tasks.ListForRegion(r.Context(), mux.Vars(r)["regionId"]), http.StatusOK)
}

func (h *Handler) createTask(w http.ResponseWriter, r *http.Request) {
	var in usecases.CreateTaskInput
	if !decode(w, r, &in) {
		return
	}
	in.RegionID = mux.Vars(r)["regionId"]
	respond.Result(w, h.Tasks.Create(r.Context(), in), http.StatusCreated)
}

func (h *Handler) getTask(w http.ResponseWriter, r *http.Request) {
	respond.Result(w, h.Tasks.Get(r.Context(), mux.Vars(r)["id"]), http.StatusOK)
}

func (h *Handler) updateTask(w http.ResponseWriter, r *http.Request) {
	var in usecases.UpdateTaskInput
	if !decode(w, r, &in) {
		return
	}
	in.ID = mux.Vars(r)["id"]
	respond.Result(w, h.Tasks.Update(r.Context(), in), http.StatusOK)
}

func (h *Handler) deleteTask(w http.ResponseWriter, r *http.Request) {
	respond.Result(w, h.Tasks.Delete(r.Context(), mux.Vars(r)["id"]), http.StatusOK)
}
