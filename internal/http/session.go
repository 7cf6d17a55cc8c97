package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/swami086/gentle-space-realty/internal/domain"
	"github.com/swami086/gentle-space-realty/internal/service/auth"
)

// SessionCookieName names the cookie carrying the signed admin session.
const SessionCookieName = "gsr_session"

type authContextKey string

type authInfo struct {
	User *domain.User
}

const contextKeyAuth authContextKey = "gsr-auth-info"

type contextSetter interface {
	SetContext(context.Context)
}

func (r *Router) setSessionCookie(w http.ResponseWriter, session auth.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		MaxAge:   int(time.Until(session.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   r.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (r *Router) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// sessionToken reads the session cookie, falling back to a bearer header for API clients.
func sessionToken(req *http.Request) (string, error) {
	if cookie, err := req.Cookie(SessionCookieName); err == nil && strings.TrimSpace(cookie.Value) != "" {
		return strings.TrimSpace(cookie.Value), nil
	}
	return bearerToken(req.Header.Get("Authorization"))
}

// authenticate validates the session and enriches the request context.
func (r *Router) authenticate(w http.ResponseWriter, req *http.Request) (*http.Request, error) {
	token, err := sessionToken(req)
	if err != nil {
		if errors.Is(err, errMissingAuthorization) {
			return req, auth.ErrTokenRequired
		}
		return req, fmt.Errorf("%w: %v", auth.ErrInvalidCredentials, err)
	}
	user, _, err := r.auth.Authorize(req.Context(), token)
	if err != nil {
		return req, err
	}
	ctx := context.WithValue(req.Context(), contextKeyAuth, authInfo{User: user})
	if setter, ok := w.(contextSetter); ok {
		setter.SetContext(ctx)
	}
	return req.WithContext(ctx), nil
}

// requireSession guards JSON endpoints: 401 without a valid session, 403
// for roles without admin access.
func (r *Router) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		authed, err := r.authenticate(w, req)
		if err != nil {
			if auth.Classify(err) == auth.KindTransient {
				r.logger.Error("session lookup failed", "error", err, "path", req.URL.Path)
				writeError(w, http.StatusServiceUnavailable, "session lookup unavailable")
				return
			}
			r.logger.Warn("session validation failed", "error", err, "path", req.URL.Path)
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if info, _ := authInfoFromContext(authed.Context()); !info.User.CanAccessAdmin() {
			writeError(w, http.StatusForbidden, "access denied")
			return
		}
		next(w, authed)
	}
}

// requireAdminPage guards HTML pages: anonymous visitors go to /login and
// non-admin users see the access-denied page.
func (r *Router) requireAdminPage(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		authed, err := r.authenticate(w, req)
		if err != nil {
			if auth.Classify(err) == auth.KindTransient {
				r.logger.Error("session lookup failed", "error", err, "path", req.URL.Path)
				r.renderError(w, req, transientPage())
				return
			}
			target := "/login?next=" + url.QueryEscape(req.URL.RequestURI())
			if !errors.Is(err, auth.ErrTokenRequired) {
				r.clearSessionCookie(w)
				target += "&flash=" + url.QueryEscape("Your session has expired. Please sign in again.")
			}
			http.Redirect(w, req, target, http.StatusSeeOther)
			return
		}
		info, _ := authInfoFromContext(authed.Context())
		if !info.User.CanAccessAdmin() {
			r.renderError(w, authed, deniedPage(info.User.Email))
			return
		}
		next(w, authed)
	}
}

// authInfoFromContext extracts auth metadata from context.
func authInfoFromContext(ctx context.Context) (authInfo, bool) {
	info, ok := ctx.Value(contextKeyAuth).(authInfo)
	if !ok || info.User == nil {
		return authInfo{}, false
	}
	return info, true
}

var errMissingAuthorization = errors.New("missing authorization header")

func bearerToken(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", errMissingAuthorization
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header format")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("empty bearer token")
	}
	return token, nil
}
