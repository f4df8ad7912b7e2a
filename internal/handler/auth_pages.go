package handler

import (
	"net/http"
	"net/url"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"goal-tracker/internal/action"
	"goal-tracker/internal/application/usecases"
	"goal-tracker/internal/auth"
	"goal-tracker/internal/logger"
	"goal-tracker/internal/middleware"
	"goal-tracker/internal/presentation/http/respond"
)

// authErrors are the messages /auth/error knows how to show.
var authErrors = map[string]string{
	"Verification":  "The sign-in link is invalid or has expired.",
	"Configuration": "Sign-in is not available right now.",
}

func (h *Handler) registerAuthPages(router *mux.Router) {
	limit := func(fn http.HandlerFunc, field, message string) http.Handler {
		if h.IPLimiter == nil {
			return fn
		}
		return middleware.RateLimit(h.IPLimiter, middleware.LimitRule{
			Key:     h.Proxies.ClientIP,
			Field:   field,
			Message: message,
		})(fn)
	}

	router.HandleFunc("/auth/signin", h.signInPage).Methods(http.MethodGet)
	router.Handle("/auth/signin", limit(h.signIn, "email", "Too many sign-in attempts. Try again in a minute.")).Methods(http.MethodPost)
	router.HandleFunc("/auth/verify-request", h.verifyRequestPage).Methods(http.MethodGet)
	router.HandleFunc("/auth/error", h.errorPage).Methods(http.MethodGet)
	router.HandleFunc(auth.CallbackPath, h.callback).Methods(http.MethodGet)
	router.HandleFunc("/auth/2fa", h.twoFactorPage).Methods(http.MethodGet)
	router.Handle("/auth/2fa", limit(h.verifyTwoFactor, "code", "Too many verification attempts. Try again in a minute.")).Methods(http.MethodPost)
	router.HandleFunc(auth.SignedOutPath, h.signedOutPage).Methods(http.MethodGet, http.MethodPost)
}

func (h *Handler) signInPage(w http.ResponseWriter, r *http.Request) {
	h.pages.render(w, http.StatusOK, "signin.html", pageData{
		Title:       "Sign in",
		CallbackURL: r.URL.Query().Get("callbackUrl"),
	})
}

func (h *Handler) signIn(w http.ResponseWriter, r *http.Request) {
	var in usecases.SignInInput
	if respond.WantsJSON(r) {
		if !decode(w, r, &in) {
			return
		}
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			h.pages.render(w, http.StatusBadRequest, "signin.html", pageData{Title: "Sign in", Error: "The form could not be read."})
			return
		}
		in.Email = r.PostForm.Get("email")
		in.CallbackURL = r.PostForm.Get("callbackUrl")
	}

	res := h.SignIn.RequestSignIn(r.Context(), in)
	if respond.WantsJSON(r) {
		respond.Result(w, res, http.StatusOK)
		return
	}
	if !res.Ok() {
		h.pages.render(w, action.HTTPStatus(res.Code()), "signin.html", pageData{
			Title:       "Sign in",
			Email:       in.Email,
			CallbackURL: in.CallbackURL,
			Error:       res.Err().Message,
			FieldErrors: fieldMap(res.Err()),
		})
		return
	}
	http.Redirect(w, r, "/auth/verify-request?email="+url.QueryEscape(res.Data().Email), http.StatusSeeOther)
}

func (h *Handler) verifyRequestPage(w http.ResponseWriter, r *http.Request) {
	h.pages.render(w, http.StatusOK, "verify_request.html", pageData{
		Title: "Check your email",
		Email: r.URL.Query().Get("email"),
	})
}

func (h *Handler) errorPage(w http.ResponseWriter, r *http.Request) {
	msg, ok := authErrors[r.URL.Query().Get("error")]
	if !ok {
		msg = "Something went wrong while signing in."
	}
	h.pages.render(w, http.StatusOK, "error.html", pageData{Title: "Sign-in error", Error: msg})
}

// callback redeems a magic link and establishes the session.
func (h *Handler) callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res := h.SignIn.CompleteSignIn(r.Context(), usecases.CallbackInput{
		Email:       q.Get("email"),
		Token:       q.Get("token"),
		CallbackURL: q.Get("callbackUrl"),
	})
	if !res.Ok() {
		http.Redirect(w, r, "/auth/error?error=Verification", http.StatusSeeOther)
		return
	}

	done := res.Data()
	auth.SignIn(w, done.UserID, done.Pending)
	middleware.SetActor(r.Context(), done.UserID)
	if done.Pending {
		http.Redirect(w, r, middleware.TwoFactorPath, http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, done.Redirect, http.StatusSeeOther)
}

func (h *Handler) twoFactorPage(w http.ResponseWriter, r *http.Request) {
	if s, ok := auth.SessionFromContext(r.Context()); !ok || !s.Pending {
		http.Redirect(w, r, usecases.LandingPath, http.StatusSeeOther)
		return
	}
	h.pages.render(w, http.StatusOK, "two_factor.html", pageData{Title: "Two-factor authentication"})
}

func (h *Handler) verifyTwoFactor(w http.ResponseWriter, r *http.Request) {
	var in usecases.SecondFactorInput
	if respond.WantsJSON(r) {
		if !decode(w, r, &in) {
			return
		}
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		_ = r.ParseForm()
		in.Code = r.PostForm.Get("code")
	}

	res := h.Profile.VerifySecondFactor(r.Context(), in)
	if res.Ok() {
		auth.CompleteSecondFactor(w)
		logger.FromContext(r.Context(), h.Logger).Info("second factor verified",
			logger.Event(logger.EventSignIn), logger.Actor(res.Data().ID))
	}
	if respond.WantsJSON(r) {
		respond.Result(w, res, http.StatusOK)
		return
	}
	if !res.Ok() {
		if res.Code() == action.CodeUnauthorized {
			http.Redirect(w, r, usecases.LandingPath, http.StatusSeeOther)
			return
		}
		h.pages.render(w, action.HTTPStatus(res.Code()), "two_factor.html", pageData{
			Title:       "Two-factor authentication",
			Error:       res.Err().Message,
			FieldErrors: fieldMap(res.Err()),
		})
		return
	}
	http.Redirect(w, r, usecases.LandingPath, http.StatusSeeOther)
}

func (h *Handler) signedOutPage(w http.ResponseWriter, r *http.Request) {
	h.pages.render(w, http.StatusOK, "signed_out.html", pageData{Title: "Signed out"})
}

// landingPage lists the caller's goals.
func (h *Handler) landingPage(w http.ResponseWriter, r *http.Request) {
	data := pageData{Title: "Goals"}
	if p := h.Profile.Get(r.Context()); p.Ok() {
		data.Theme = string(p.Data().Theme)
	}
	res := h.Goals.List(r.Context(), usecases.ListGoalsInput{Query: r.URL.Query()})
	if !res.Ok() {
		h.Logger.Warn("loading landing page goals failed", zap.String("code", string(res.Code())))
		data.Error = res.Err().Message
	} else {
		data.Goals = res.Data().Goals
	}
	h.pages.render(w, http.StatusOK, "goals.html", data)
}

func fieldMap(e *action.Error) map[string]string {
	if e == nil || len(e.ValidationErrors) == 0 {
		return nil
	}
	m := make(map[string]string, len(e.ValidationErrors))
	for _, fe := range e.ValidationErrors {
		if _, seen := m[fe.Field]; !seen {
			m[fe.Field] = fe.Message
		}
	}
	return m
}
