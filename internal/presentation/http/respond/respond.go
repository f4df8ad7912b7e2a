// Package respond writes action envelopes as HTTP responses.
package respond

import (
	"encoding/json"
	"net/http"
	"strings"

	"goal-tracker/internal/action"
)

// JSON writes v with status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes e with the status its code maps to.
func Error(w http.ResponseWriter, e *action.Error) {
	JSON(w, action.HTTPStatus(e.Code), e)
}

// Result writes res, using status for the success envelope.
func Result[T any](w http.ResponseWriter, res action.Result[T], status int) {
	if !res.Ok() {
		Error(w, res.Err())
		return
	}
	JSON(w, status, res)
}

// WantsJSON reports whether the client asked for JSON rather than a page.
func WantsJSON(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") ||
		strings.HasPrefix(r.Header.Get("Accept"), "application/json")
}
