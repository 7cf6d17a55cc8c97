package httpx

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

func parseTemplates() (*template.Template, error) {
	tmplFS, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, err
	}
	return template.New("base").Funcs(template.FuncMap{}).ParseFS(tmplFS, "*.html")
}

// staticHandler serves embedded assets with a public cache lifetime.
func staticHandler(ttl time.Duration) (http.Handler, error) {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, err
	}
	files := http.StripPrefix("/static/", http.FileServerFS(sub))
	return withCacheControl(publicCache(ttl), files), nil
}

// page holds data shared by every template.
type page map[string]any

func (r *Router) render(w http.ResponseWriter, req *http.Request, status int, tpl string, data page) {
	if data == nil {
		data = page{}
	}
	if _, ok := data["User"]; !ok {
		if info, ok := authInfoFromContext(req.Context()); ok {
			data["User"] = info.User
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := r.templates.ExecuteTemplate(w, tpl, data); err != nil {
		r.logger.Error("template render failed", "template", tpl, "error", err)
	}
}

// errorPage describes a failed or refused sign-in. Every error page links back to /login.
type errorPage struct {
	Status  int
	Kind    string
	Title   string
	Heading string
	Message string
	Detail  string
}

func (r *Router) renderError(w http.ResponseWriter, req *http.Request, p errorPage) {
	r.render(w, req, p.Status, "error", page{
		"Title":   p.Title,
		"Kind":    p.Kind,
		"Heading": p.Heading,
		"Message": p.Message,
		"Detail":  p.Detail,
	})
}

func flashFromRequest(req *http.Request) string {
	return strings.TrimSpace(req.URL.Query().Get("flash"))
}

func publicCache(ttl time.Duration) string {
	return "public, max-age=" + strconv.Itoa(int(ttl.Seconds()))
}

func privateCache(ttl time.Duration) string {
	return "private, max-age=" + strconv.Itoa(int(ttl.Seconds()))
}

func withCacheControl(value string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Cache-Control", value)
		next.ServeHTTP(w, req)
	})
}
