package httpx

import (
	"bufio"
	"context"
	"errors"
	"html/template"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/swami086/gentle-space-realty/internal/service/auth"
	"github.com/swami086/gentle-space-realty/pkg/config"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck is a named dependency probe reported by /healthz.
type HealthCheck struct {
	Name  string
	Check func(context.Context) error
}

// Router wires HTTP endpoints to services.
type Router struct {
	mux           *http.ServeMux
	handler       http.Handler
	logger        *slog.Logger
	auth          auth.Service
	limiter       RateLimiter
	metrics       *routerMetrics
	gatherer      prometheus.Gatherer
	templates     *template.Template
	static        http.Handler
	checks        []HealthCheck
	rateLimit     int
	rateWindow    time.Duration
	apiCacheTTL   time.Duration
	callbackPath  string
	secureCookies bool
	corsOrigins   []string
	googleStatus  func() (bool, string)
	googleClient  string
}

// NewRouter assembles routes with dependencies. Metrics register on the
// default Prometheus registry.
func NewRouter(logger *slog.Logger, authSvc auth.Service, limiter RateLimiter, cfg config.APIConfig, checks ...HealthCheck) (*Router, error) {
	return newRouter(logger, authSvc, limiter, cfg, prometheus.DefaultRegisterer, prometheus.DefaultGatherer, checks...)
}

func newRouter(logger *slog.Logger, authSvc auth.Service, limiter RateLimiter, cfg config.APIConfig, reg prometheus.Registerer, gatherer prometheus.Gatherer, checks ...HealthCheck) (*Router, error) {
	if err := cfg.CheckCallbackPath(); err != nil {
		return nil, err
	}
	templates, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	static, err := staticHandler(cfg.StaticCacheTTL)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	limit, window := cfg.RateLimit()
	r := &Router{
		mux:           http.NewServeMux(),
		logger:        logger,
		auth:          authSvc,
		limiter:       limiter,
		metrics:       newRouterMetrics(reg),
		gatherer:      gatherer,
		templates:     templates,
		static:        static,
		checks:        checks,
		rateLimit:     limit,
		rateWindow:    window,
		apiCacheTTL:   cfg.APICacheTTL,
		callbackPath:  cfg.CallbackPath(),
		secureCookies: !cfg.IsDevelopment(),
		corsOrigins:   cfg.CORSAllowedOrigins,
		googleStatus:  cfg.GoogleStatus,
		googleClient:  cfg.GoogleClientID,
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	r.register()
	r.handler = otelhttp.NewHandler(r.withCORS(r.mux), "gsr-api",
		otelhttp.WithSpanNameFormatter(func(_ string, req *http.Request) string {
			return req.Method + " " + req.URL.Path
		}),
	)
	return r, nil
}

// ServeHTTP delegates to the instrumented mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.mux.HandleFunc("/healthz", r.audit("/healthz", r.handleHealthz))
	r.mux.Handle("/metrics", promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{}))
	r.mux.Handle("/static/", r.static)
	r.mux.HandleFunc("/{$}", r.audit("/", r.handleRoot))
	r.mux.HandleFunc("/login", r.audit("/login", r.withRateLimit("/login", r.handleLoginPage)))
	r.mux.HandleFunc("/auth/login", r.audit("/auth/login", r.withRateLimit("/auth/login", r.handleLogin)))
	r.mux.HandleFunc("/auth/logout", r.audit("/auth/logout", r.handleLogout))
	r.mux.HandleFunc("/auth/config", r.audit("/auth/config", r.withRateLimit("/auth/config", r.handleAuthConfig)))
	r.mux.HandleFunc("/auth/google/start", r.audit("/auth/google/start", r.withRateLimit("/auth/google/start", r.handleGoogleStart)))
	r.mux.HandleFunc(r.callbackPath, r.audit("callback", r.withRateLimit("callback", r.handleProviderCallback(auth.ProviderGoogle))))
	r.mux.HandleFunc("/auth/me", r.audit("/auth/me", r.withRateLimit("/auth/me", r.requireSession(r.handleMe))))
	r.mux.HandleFunc("/admin", r.audit("/admin", r.withRateLimit("/admin", r.requireAdminPage(r.handleAdmin))))
	r.mux.HandleFunc("/admin/users", r.audit("/admin/users", r.withRateLimit("/admin/users", r.requireSession(r.handleUsers))))
	r.mux.HandleFunc("/admin/users/{id}/role", r.audit("/admin/users/{id}/role", r.withRateLimit("/admin/users/{id}/role", r.requireSession(r.handleChangeRole))))
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	components := make(map[string]any)
	status := "ok"
	for _, check := range r.checks {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		err := check.Check(ctx)
		cancel()
		if err != nil {
			status = "degraded"
			r.logger.Warn("health check failed", "component", check.Name, "error", err)
			components[check.Name] = map[string]any{"status": "down"}
			continue
		}
		components[check.Name] = map[string]any{"status": "up"}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

func (r *Router) audit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		r.recordRequestMetrics(req.Method, route, status, duration)

		actor := "anonymous"
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"route", route,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		if info, ok := authInfoFromContext(ctx); ok {
			actor = string(info.User.Role)
			fields = append(fields, "user_id", info.User.ID)
		}
		fields = append(fields, "actor", actor)

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	if sr.status == 0 {
		sr.status = code
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		if ip, _, _ := strings.Cut(forwarded, ","); strings.TrimSpace(ip) != "" {
			return strings.TrimSpace(ip)
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}

func (r *Router) applyRateHeaders(w http.ResponseWriter, limit int, decision rateDecision) {
	if limit <= 0 {
		return
	}
	remaining := limit - decision.count
	if remaining < 0 {
		remaining = 0
	}
	headers := w.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	if !decision.windowEnd.IsZero() {
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.windowEnd.Unix(), 10))
	}
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (r *Router) notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}
