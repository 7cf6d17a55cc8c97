package httpx

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/swami086/gentle-space-realty/internal/domain"
	"github.com/swami086/gentle-space-realty/internal/service/auth"
)

const adminHome = "/admin"

func (r *Router) handleGoogleStart(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	target, err := r.auth.StartProviderLogin(req.Context(), auth.ProviderGoogle, req.URL.Query().Get("next"))
	if err != nil {
		r.recordCallback(auth.ProviderGoogle, "start_"+auth.Classify(err).String())
		r.renderError(w, req, callbackErrorPage(err))
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, req, target, http.StatusFound)
}

// handleProviderCallback is the landing route registered as the OAuth redirect URI.
func (r *Router) handleProviderCallback(provider string) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			r.methodNotAllowed(w)
			return
		}
		query := req.URL.Query()
		result, err := r.auth.HandleCallback(req.Context(), provider, auth.CallbackInput{
			Code:             query.Get("code"),
			State:            query.Get("state"),
			Error:            query.Get("error"),
			ErrorCode:        query.Get("error_code"),
			ErrorDescription: query.Get("error_description"),
		})
		if err != nil {
			r.recordCallback(provider, auth.Classify(err).String())
			r.renderError(w, req, callbackErrorPage(err))
			return
		}
		if result.Decision != domain.DecisionAllow {
			r.recordCallback(provider, "denied")
			r.renderError(w, req, deniedPage(result.User.Email))
			return
		}
		r.recordCallback(provider, "authorized")
		r.setSessionCookie(w, result.Session)
		target := result.RedirectTo
		if target == "" {
			target = adminHome
		}
		w.Header().Set("Cache-Control", "no-store")
		http.Redirect(w, req, target, http.StatusFound)
	}
}

// callbackErrorPage maps a failed login onto the page the browser sees.
func callbackErrorPage(err error) errorPage {
	switch auth.Classify(err) {
	case auth.KindConfiguration:
		p := errorPage{
			Status:  http.StatusServiceUnavailable,
			Kind:    "configuration",
			Title:   "Provider not enabled",
			Heading: "Sign-in provider not enabled",
			Message: "This sign-in method is not enabled. An administrator needs to update the identity provider configuration. You can still sign in with email and password.",
		}
		var cfgErr *auth.ConfigurationError
		if errors.As(err, &cfgErr) {
			p.Detail = cfgErr.Description
		}
		return p
	case auth.KindDenied:
		return deniedPage("")
	case auth.KindInvalid:
		return invalidPage(err)
	}
	return transientPage()
}

func deniedPage(email string) errorPage {
	message := "Your account does not have access to the admin area."
	if email != "" {
		message = fmt.Sprintf("The account %s does not have access to the admin area. Sign in with a Gentle Space Realty staff account.", email)
	}
	return errorPage{
		Status:  http.StatusForbidden,
		Kind:    "denied",
		Title:   "Access denied",
		Heading: "Access denied",
		Message: message,
	}
}

func transientPage() errorPage {
	return errorPage{
		Status:  http.StatusBadGateway,
		Kind:    "transient",
		Title:   "Sign-in failed",
		Heading: "Sign-in is temporarily unavailable",
		Message: "We could not complete sign-in right now. Please try again in a moment.",
	}
}

func invalidPage(err error) errorPage {
	p := errorPage{
		Status:  http.StatusBadRequest,
		Kind:    "invalid",
		Title:   "Sign-in failed",
		Heading: "Sign-in could not be completed",
		Message: "The sign-in request was not valid. Please start again.",
	}
	switch {
	case errors.Is(err, auth.ErrLoginCancelled):
		p.Heading = "Sign-in cancelled"
		p.Message = "Google sign-in was cancelled before it finished."
	case errors.Is(err, auth.ErrInvalidState):
		p.Message = "Your sign-in link has expired or was already used. Please start again."
	case errors.Is(err, auth.ErrEmailNotVerified):
		p.Message = "Your Google account email address is not verified."
	}
	return p
}
