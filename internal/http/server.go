package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"budget/internal/log"
	"budget/internal/middleware/ratelimit"
	"budget/internal/middleware/security"
	"budget/internal/middleware/trace"
	"budget/internal/services"
	"budget/internal/session"
	appweb "budget/web"
)

// Dependencies are the services the handlers call.
type Dependencies struct {
	Sessions *session.Controller
	Budget   *services.BudgetService
	Users    *services.UserService
	Reports  *services.ReportsService

	// Ready reports backend readiness for /readyz. Nil means always ready.
	Ready func(ctx context.Context) error

	// LoginRateLimit is the number of login attempts per client per minute.
	LoginRateLimit int
	SessionTTL     time.Duration

	Logger *log.Logger
}

type Server struct {
	http.Server
	templates *templates
	logger    *log.Logger

	sessions *session.Controller
	budget   *services.BudgetService
	users    *services.UserService
	reports  *services.ReportsService
	ready    func(ctx context.Context) error

	sessionTTL time.Duration
	started    time.Time

	recorded      atomic.Int64
	loginFailures atomic.Int64

	loginLimiter     *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run server.
// A template parse failure is logged; pages then answer 500 and /readyz
// reports not ready.
func NewServer(addr string, deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.Nop()
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	ttl := deps.SessionTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}

	s := &Server{
		logger:     logger,
		sessions:   deps.Sessions,
		budget:     deps.Budget,
		users:      deps.Users,
		reports:    deps.Reports,
		ready:      deps.Ready,
		sessionTTL: ttl,
		started:    time.Now(),
		loginLimiter: ratelimit.NewLimiter(ratelimit.Config{
			Requests: deps.LoginRateLimit,
			Window:   time.Minute,
		}),
		securityDetector: security.NewDetector(logger),
	}
	s.traceMiddleware = trace.NewMiddleware(s.securityDetector.ExtractClientIP, logger)

	t, err := parseTemplates(appweb.TemplatesFS)
	if err != nil {
		logger.Error("Failed parsing templates", log.FieldError, err, log.FieldComponent, log.ComponentTemplate)
	}
	s.templates = t

	mux := http.NewServeMux()

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /{$}", s.handleIndex)
	loginLimit := s.loginLimiter.Middleware(s.securityDetector.ExtractClientIP, s.onLoginLimited)
	mux.Handle("POST /login", loginLimit(http.HandlerFunc(s.handleLogin)))
	mux.HandleFunc("POST /logout", s.handleLogout)

	authed := func(h http.HandlerFunc) http.Handler {
		return security.NoStore(s.requireSession(h))
	}
	mux.Handle("GET /budget", authed(s.handleBudget))
	mux.Handle("GET /budget/pivot", authed(s.handleBudgetPivot))
	mux.Handle("GET /budget/options", authed(s.handleBudgetOptions))
	mux.Handle("POST /budget/transactions", authed(s.handleCreateTransaction))
	mux.Handle("GET /sales", authed(s.handleSales))
	mux.Handle("GET /reports", authed(s.handleReports))
	mux.Handle("GET /settings", authed(s.handleSettings))
	mux.Handle("POST /settings/password", authed(s.handleChangePassword))
	mux.Handle("POST /settings/login", authed(s.handleChangeLogin))
	mux.Handle("GET /users", authed(s.handleUsers))
	mux.Handle("POST /users", authed(s.handleCreateUser))

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	var handler http.Handler = mux
	handler = log.RequestIDMiddleware(trace.RequestID)(handler)
	handler = log.Middleware(logger)(handler)
	handler = headers.Middleware(handler)
	handler = s.securityDetector.Middleware(handler)
	handler = s.traceMiddleware.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown stops background goroutines and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.loginLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) onLoginLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Login rate limit exceeded",
		log.FieldClientIP, s.securityDetector.ExtractClientIP(r))
	s.renderLanding(w, r, http.StatusTooManyRequests, "Слишком много попыток входа. Попробуйте через минуту.", "")
}

// templates holds one clone of the layout per page plus the shared partials.
type templates struct {
	base  *template.Template
	pages map[string]*template.Template
}

var pageNames = []string{"landing", "budget", "sales", "reports", "settings", "users"}

func parseTemplates(fsys fs.FS) (*templates, error) {
	base, err := template.New("").Funcs(templateFuncs).ParseFS(fsys, "templates/layout.html", "templates/partial_*.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	t := &templates{base: base, pages: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("clone layout for %s: %w", name, err)
		}
		page, err := clone.ParseFS(fsys, "templates/page_"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse page %s: %w", name, err)
		}
		t.pages[name] = page
	}
	return t, nil
}
