package httpx

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/swami086/gentle-space-realty/internal/domain"
	"github.com/swami086/gentle-space-realty/internal/repository"
	"github.com/swami086/gentle-space-realty/internal/service/auth"
)

const (
	defaultUserPage = 50
	maxBodyBytes    = 1 << 16
)

func (r *Router) handleRoot(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	http.Redirect(w, req, adminHome, http.StatusFound)
}

func (r *Router) handleLoginPage(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	enabled, _ := r.googleStatus()
	r.render(w, req, http.StatusOK, "login", page{
		"Title":         "Sign in",
		"Flash":         flashFromRequest(req),
		"Email":         "",
		"GoogleEnabled": enabled,
		"Next":          domain.LocalRedirectPath(req.URL.Query().Get("next")),
		"User":          nil,
	})
}

type loginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Next     string `json:"next"`
}

// handleLogin accepts JSON from API clients and form posts from the login page.
func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	req.Body = http.MaxBytesReader(w, req.Body, maxBodyBytes)
	asJSON := isJSON(req)
	var payload loginPayload
	if asJSON {
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	} else {
		if err := req.ParseForm(); err != nil {
			r.renderLogin(w, req, http.StatusBadRequest, "", "", "Invalid form submission.")
			return
		}
		payload = loginPayload{Email: req.PostFormValue("email"), Password: req.PostFormValue("password"), Next: req.PostFormValue("next")}
	}

	user, session, err := r.auth.Login(req.Context(), payload.Email, payload.Password)
	if err != nil {
		status, message := loginFailure(err)
		if status >= http.StatusInternalServerError {
			r.logger.Error("password login failed", "error", err)
		}
		if asJSON {
			writeError(w, status, message)
			return
		}
		r.renderLogin(w, req, status, payload.Email, payload.Next, message)
		return
	}
	r.setSessionCookie(w, session)
	if asJSON {
		writeJSON(w, http.StatusOK, map[string]any{
			"user":       marshalUser(*user),
			"token":      session.Token,
			"expires_at": session.ExpiresAt.UTC().Format(time.RFC3339),
		})
		return
	}
	target := domain.LocalRedirectPath(payload.Next)
	if target == "" {
		target = adminHome
	}
	http.Redirect(w, req, target, http.StatusSeeOther)
}

func loginFailure(err error) (int, string) {
	switch auth.Classify(err) {
	case auth.KindUnauthenticated:
		return http.StatusUnauthorized, "invalid email or password"
	case auth.KindDenied:
		return http.StatusForbidden, "access denied: this account does not have admin access"
	}
	return http.StatusBadGateway, "sign-in is temporarily unavailable, please try again"
}

func (r *Router) renderLogin(w http.ResponseWriter, req *http.Request, status int, email, next, flash string) {
	enabled, _ := r.googleStatus()
	r.render(w, req, status, "login", page{
		"Title":         "Sign in",
		"Flash":         flash,
		"Email":         email,
		"GoogleEnabled": enabled,
		"Next":          domain.LocalRedirectPath(next),
		"User":          nil,
	})
}

func (r *Router) handleLogout(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	r.clearSessionCookie(w)
	if isJSON(req) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "signed_out"})
		return
	}
	http.Redirect(w, req, "/login?flash="+url.QueryEscape("You have been signed out."), http.StatusSeeOther)
}

// handleAuthConfig exposes public sign-in settings. The client secret never leaves the server.
func (r *Router) handleAuthConfig(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	enabled, reason := r.googleStatus()
	google := map[string]any{"enabled": enabled}
	if enabled {
		google["client_id"] = r.googleClient
		google["start_url"] = "/auth/google/start"
	} else {
		google["reason"] = reason
	}
	writeCachedJSON(w, r.apiCacheTTL, map[string]any{
		"providers": map[string]any{
			"password": map[string]any{"enabled": true},
			"google":   google,
		},
		"callback_path": r.callbackPath,
	})
}

func (r *Router) handleMe(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	info, _ := authInfoFromContext(req.Context())
	// Identity is never cached.
	writeJSON(w, http.StatusOK, map[string]any{"user": marshalUser(*info.User)})
}

func (r *Router) handleAdmin(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	info, _ := authInfoFromContext(req.Context())
	users, err := r.auth.ListUsers(req.Context(), info.User, defaultUserPage, 0)
	if err != nil {
		r.logger.Error("list users failed", "error", err)
		r.renderError(w, req, transientPage())
		return
	}
	r.render(w, req, http.StatusOK, "admin", page{
		"Title":          "Dashboard",
		"Users":          users,
		"CanManageRoles": info.User.Role.CanManageRoles(),
	})
}

func (r *Router) handleUsers(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	limit, offset, err := pagination(req.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	info, _ := authInfoFromContext(req.Context())
	users, err := r.auth.ListUsers(req.Context(), info.User, limit, offset)
	if err != nil {
		r.writeServiceError(w, err)
		return
	}
	items := make([]map[string]any, 0, len(users))
	for _, user := range users {
		items = append(items, marshalUser(user))
	}
	writeCachedJSON(w, r.apiCacheTTL, map[string]any{"users": items, "limit": limit, "offset": offset})
}

func (r *Router) handleChangeRole(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Role string `json:"role"`
	}
	req.Body = http.MaxBytesReader(w, req.Body, maxBodyBytes)
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	info, _ := authInfoFromContext(req.Context())
	updated, err := r.auth.ChangeRole(req.Context(), info.User, req.PathValue("id"), payload.Role)
	if err != nil {
		r.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": marshalUser(*updated)})
}

func (r *Router) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		r.notFound(w)
	case errors.Is(err, auth.ErrSelfDemotion):
		writeError(w, http.StatusForbidden, "super admins cannot demote themselves")
	case errors.Is(err, domain.ErrUnknownRole):
		writeError(w, http.StatusBadRequest, "role must be one of user, admin, super_admin")
	default:
		switch auth.Classify(err) {
		case auth.KindDenied:
			writeError(w, http.StatusForbidden, "forbidden")
		case auth.KindInvalid:
			writeError(w, http.StatusBadRequest, "invalid request")
		default:
			r.logger.Error("request failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
	}
}

func marshalUser(user domain.User) map[string]any {
	out := map[string]any{
		"id":            user.ID,
		"email":         user.Email,
		"name":          user.Name,
		"role":          user.Role,
		"auth_provider": user.AuthProvider,
		"created_at":    user.CreatedAt.UTC().Format(time.RFC3339),
	}
	if user.LastLoginAt != nil {
		out["last_login_at"] = user.LastLoginAt.UTC().Format(time.RFC3339)
	}
	return out
}

func pagination(values url.Values) (int, int, error) {
	limit, offset := defaultUserPage, 0
	if raw := strings.TrimSpace(values.Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return 0, 0, errors.New("limit must be a positive integer")
		}
		limit = parsed
	}
	if raw := strings.TrimSpace(values.Get("offset")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return 0, 0, errors.New("offset must be a non-negative integer")
		}
		offset = parsed
	}
	return limit, offset, nil
}

func isJSON(req *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(req.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}
