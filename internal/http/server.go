// Package http serves the dashboard: the overview page, per-dataset section
// partials and a small JSON API over the loaded datasets.
package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"dogedash/internal/dashboard"
	applog "dogedash/internal/log"
	"dogedash/internal/middleware/ratelimit"
	"dogedash/internal/middleware/security"
	"dogedash/internal/middleware/trace"
	appweb "dogedash/web"
)

// staticMaxAge is the browser cache lifetime of embedded assets, in seconds.
const staticMaxAge = 3600

// Options tunes a Server beyond its dashboard service.
type Options struct {
	// RateLimitRPM caps load-triggering requests per client per minute.
	RateLimitRPM int
	Logger       *applog.Logger
	// ReadyCheck reports whether the data source is reachable. Nil means
	// ready once the server is constructed.
	ReadyCheck func(context.Context) error
}

// Server is an http.Server wired to a dashboard service.
type Server struct {
	http.Server
	svc        *dashboard.Service
	templates  *template.Template
	logger     *applog.Logger
	limiter    *ratelimit.Limiter
	detector   *security.Detector
	tracer     *trace.Middleware
	readyCheck func(context.Context) error
	started    time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run
// server.
func NewServer(addr string, svc *dashboard.Service, opts Options) (*Server, error) {
	if svc == nil {
		return nil, fmt.Errorf("dashboard service is required")
	}
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.DefaultConfig())
	}

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	static, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("mount static assets: %w", err)
	}

	s := &Server{
		svc:        svc,
		templates:  t,
		logger:     opts.Logger.WithComponent(applog.ComponentHTTP),
		limiter:    ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitRPM}),
		detector:   security.NewDetector(),
		readyCheck: opts.ReadyCheck,
		started:    time.Now(),
	}
	s.tracer = trace.NewMiddleware(opts.Logger, s.detector.ExtractClientIP)

	mux := http.NewServeMux()
	limited := s.limiter.Middleware(s.detector.ExtractClientIP, s.handleRateLimited)

	mux.Handle("GET /static/", security.StaticAssetMiddleware(staticMaxAge)(
		http.StripPrefix("/static/", http.FileServer(http.FS(static)))))
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.Handle("GET /sections/{kind}", limited(http.HandlerFunc(s.handleSection)))
	mux.Handle("GET /sections/{kind}/table", limited(http.HandlerFunc(s.handleTable)))

	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/datasets", s.handleDatasets)
	mux.Handle("GET /api/datasets/{kind}/top", limited(http.HandlerFunc(s.handleTop)))
	mux.Handle("GET /api/datasets/{kind}/rows", limited(http.HandlerFunc(s.handleRows)))

	var h http.Handler = mux
	h = s.detector.Middleware(s.logger.WithComponent(applog.ComponentSecurity).Logger)(h)
	h = s.tracer.Middleware(h)
	h = security.Headers(security.DefaultHeadersConfig())(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

// Shutdown gracefully shuts down the server and its background cleanup.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
