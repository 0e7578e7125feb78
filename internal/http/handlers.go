package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/services"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).String(),
	})
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]interface{})

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	switch {
	case s.ready == nil:
		checks["backend"] = "ok"
	default:
		if err := s.ready(ctx); err != nil {
			checks["backend"] = fmt.Sprintf("failed: %v", err)
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["backend"] = "ok"
		}
	}

	checks["sessions"] = map[string]interface{}{
		"active": s.sessions.Registry().Size(),
		"status": "ok",
	}
	checks["rate_limiter"] = map[string]interface{}{
		"active_clients": s.loginLimiter.ActiveClients(),
		"status":         "ok",
	}

	writeJSON(w, httpStatus, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	traceMetrics := s.traceMiddleware.GetMetrics()
	limitMetrics := s.loginLimiter.GetMetrics()
	securityMetrics := s.securityDetector.GetMetrics()

	w.WriteHeader(http.StatusOK)

	metric := func(name, help, kind string, value int64) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %d\n\n", name, help, name, kind, name, value)
	}
	metric("http_requests_total", "Total number of HTTP requests", "counter", traceMetrics.TotalRequests)
	metric("http_server_errors_total", "Responses with status 5xx", "counter", traceMetrics.ServerErrors)
	metric("http_response_time_avg_microseconds", "Average response time", "gauge", traceMetrics.AverageResponseTime)
	metric("transactions_recorded_total", "Budget rows recorded through the UI", "counter", s.recorded.Load())
	metric("login_failures_total", "Rejected login attempts", "counter", s.loginFailures.Load())
	metric("login_rate_limited_total", "Login attempts rejected by the rate limiter", "counter", limitMetrics.TotalHits)
	metric("login_rate_limit_clients", "Clients tracked by the login rate limiter", "gauge", limitMetrics.ClientCount)
	metric("sessions_active", "Live sessions", "gauge", int64(s.sessions.Registry().Size()))
	metric("security_suspicious_requests_total", "Requests flagged by the detector", "counter", securityMetrics.SuspiciousRequests)
	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime\n# TYPE uptime_seconds gauge\nuptime_seconds %.0f\n", time.Since(s.started).Seconds())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// landingBody is the anonymous landing page model.
type landingBody struct {
	Username string
}

// handleIndex shows the landing page to anonymous visitors and sends
// authenticated ones to their budget.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.currentSession(r); ok {
		redirect(w, r, "/budget")
		return
	}
	info := ""
	if r.URL.Query().Get("renamed") == "1" {
		info = "Логин изменён, войдите снова"
	}
	s.renderLanding(w, r, http.StatusOK, "", info)
}

func (s *Server) renderLanding(w http.ResponseWriter, r *http.Request, status int, errMsg, info string) {
	s.renderLandingAs(w, r, status, errMsg, info, "")
}

func (s *Server) renderLandingAs(w http.ResponseWriter, r *http.Request, status int, errMsg, info, username string) {
	s.renderPage(w, r, status, "landing", pageData{
		Title:   "Вход",
		Error:   errMsg,
		Success: info,
		Body:    landingBody{Username: username},
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	form, fail := ParseBodyOrFail(r)
	if fail != nil {
		s.renderLanding(w, r, http.StatusBadRequest, "Некорректный формат запроса", "")
		return
	}
	username := form.Get("username")

	sess, err := s.sessions.Login(r.Context(), username, form.Get("password"))
	if err != nil {
		status, msg := errorStatus(err)
		if errors.Is(err, core.ErrInvalidCredentials) {
			s.loginFailures.Add(1)
		} else {
			s.logFailure(r, "Login failed", err, status)
		}
		s.renderLandingAs(w, r, status, msg, "", username)
		return
	}

	s.setSessionCookie(w, r, sess)
	redirect(w, r, "/budget")
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionCookie); err == nil {
		s.sessions.Logout(r.Context(), c.Value)
	}
	clearSessionCookie(w, r)
	redirect(w, r, "/")
}

// handleSales renders the Sales demo notice for the viewer's level.
func (s *Server) handleSales(w http.ResponseWriter, r *http.Request) {
	v, sess := viewerFrom(r)
	data := newPageData(sess, string(core.ModuleSales), "/sales")
	data.Body = services.SalesPage(v)
	s.renderPage(w, r, http.StatusOK, "sales", data)
}

// handleReports renders the balance report.
func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	v, sess := viewerFrom(r)
	data := newPageData(sess, string(core.ModuleReports), "/reports")

	view, err := s.reports.Page(r.Context(), v)
	if err != nil {
		status, msg := errorStatus(err)
		s.logFailure(r, "Failed to build report", err, status)
		data.Error = msg
		data.Body = view
		s.renderPage(w, r, status, "reports", data)
		return
	}
	data.Body = view
	s.logger.DebugContext(r.Context(), "Report rendered",
		log.FieldUser, v.User, log.FieldModule, string(core.ModuleReports), "scope", string(view.Scope))
	s.renderPage(w, r, http.StatusOK, "reports", data)
}
