package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"energycalc/internal/cache"
	"energycalc/internal/catalog"
	"energycalc/internal/chart"
	"energycalc/internal/core"
	"energycalc/internal/log"
	"energycalc/internal/middleware/ratelimit"
	"energycalc/internal/middleware/security"
	"energycalc/internal/middleware/trace"
	"energycalc/internal/services"
	appweb "energycalc/web"
)

// Config holds server settings.
type Config struct {
	Addr               string
	RateLimitPerMinute int
	SessionTTL         time.Duration
	// CleanupInterval is how often registered caches are swept.
	CleanupInterval time.Duration
	// Caches are swept together with the rate limiter's client table.
	Caches map[string]cache.Cleaner
}

type appMetrics struct {
	entriesTotal    atomic.Int64
	draftUpdates    atomic.Int64
	sessionsStarted atomic.Int64
	uptime          time.Time
}

type Server struct {
	http.Server
	templates  *template.Template
	svc        *services.SessionService
	logger     *log.Logger
	sessionTTL time.Duration

	detector        *security.Detector
	rateLimiter     *ratelimit.Limiter
	traceMiddleware *trace.Middleware
	cacheManager    *cache.Manager
	appMetrics      *appMetrics

	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run server.
func NewServer(cfg Config, svc *services.SessionService, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 30 * time.Minute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}

	mux := http.NewServeMux()
	detector := security.NewDetector()

	s := &Server{
		svc:             svc,
		logger:          logger,
		sessionTTL:      cfg.SessionTTL,
		detector:        detector,
		rateLimiter:     ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: cfg.RateLimitPerMinute,
			ExemptPaths:       []string{"/draft"}, // autosave on every field change
		}),
		traceMiddleware: trace.NewMiddleware(logger.Logger, detector.ExtractClientIP),
		cacheManager:    cache.NewManager(logger.WithComponent(log.ComponentCache).Logger),
		appMetrics:      &appMetrics{uptime: time.Now()},
	}

	s.cacheManager.Register("rate_limit_clients", s.rateLimiter.Cache())
	for name, c := range cfg.Caches {
		s.cacheManager.Register(name, c)
	}
	s.cacheManager.StartCleanup(cfg.CleanupInterval)

	t, err := template.New("").Funcs(s.templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", log.FieldError, err)
	} else {
		s.templates = t
	}

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /entries", s.handleSubmit)
	mux.HandleFunc("POST /draft", s.handleDraft)
	mux.HandleFunc("GET /ui/charts", s.handleChartsPartial)
	mux.HandleFunc("GET /api/charts", s.handleChartsAPI)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	var handler http.Handler = mux
	handler = s.rateLimiter.Middleware(detector.ExtractClientIP, s.onRateLimited)(handler)
	handler = detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = log.RequestIDMiddleware(trace.RequestIDFromRequest)(handler)
	handler = log.Middleware(logger)(handler)
	handler = s.traceMiddleware.Middleware(handler)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldPath, r.URL.Path)
	ErrorFragment(http.StatusTooManyRequests, "Too many submissions. Please wait a minute.").Write(w)
}

func (s *Server) templateFuncs() template.FuncMap {
	return template.FuncMap{
		// num leaves zero blank so a reset form shows empty inputs.
		"num": func(v float64) string {
			if v == 0 {
				return ""
			}
			return strconv.FormatFloat(v, 'f', -1, 64)
		},
		"kwh": func(v float64) string {
			return strconv.FormatFloat(v, 'f', 3, 64)
		},
		"money": func(v float64) string {
			return strconv.FormatFloat(v, 'f', 2, 64)
		},
		"label": func(value string) string {
			for _, o := range s.svc.Catalog().Options {
				if o.Value == value {
					return o.Label
				}
			}
			return value
		},
	}
}

// Shutdown stops background cleanup and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		if err := s.Server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("shutdown http server: %w", err)
		}
	})
	return shutdownErr
}

// pageData feeds the page and partial templates.
type pageData struct {
	Options     []catalog.Option
	Draft       core.Draft
	Charts      chart.Set
	Totals      core.Totals
	Entries     int
	TotalEnergy float64
	TotalCost   float64
	OOB         bool
}

func (s *Server) pageData(snap services.Snapshot) pageData {
	energy, cost := snap.Totals.Sum()
	return pageData{
		Options:     s.svc.Catalog().Options,
		Draft:       snap.Draft,
		Charts:      snap.Charts,
		Totals:      snap.Totals,
		Entries:     len(snap.Entries),
		TotalEnergy: energy,
		TotalCost:   cost,
	}
}
