package http

import (
	"bytes"
	"errors"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/services"
	"budget/internal/session"
)

// SessionCookie names the cookie carrying the session id.
const SessionCookie = "budget_session"

const genericLoginError = "Неверный логин или пароль"

func (s *Server) setSessionCookie(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sess.ID,
		Path:     "/",
		MaxAge:   int(s.sessionTTL / time.Second),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// currentSession returns the live session named by the request cookie.
func (s *Server) currentSession(r *http.Request) (*session.Session, bool) {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return nil, false
	}
	return s.sessions.Registry().Get(c.Value)
}

// requireSession sends anonymous visitors to the landing page and refreshes
// the credential snapshot of authenticated ones before calling next.
func (s *Server) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.currentSession(r)
		if !ok {
			clearSessionCookie(w, r)
			redirect(w, r, "/")
			return
		}
		s.sessions.Refresh(r.Context(), sess)
		ctx := session.WithSession(r.Context(), sess)
		next(w, r.WithContext(ctx))
	}
}

// viewerFrom builds the services view of the request's session.
func viewerFrom(r *http.Request) (services.Viewer, *session.Session) {
	sess, _ := session.FromContext(r.Context())
	return services.Viewer{User: sess.User, Role: sess.Role, Credentials: sess.Credentials()}, sess
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// redirect issues a 303, or an HX-Redirect for htmx requests so the whole
// page navigates instead of swapping the target.
func redirect(w http.ResponseWriter, r *http.Request, to string) {
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", to)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, to, http.StatusSeeOther)
}

// errorStatus maps domain errors to a status code and a message safe to show.
func errorStatus(err error) (int, string) {
	var ve *core.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity, ve.Msg
	case errors.Is(err, core.ErrValidation):
		return http.StatusUnprocessableEntity, "Некорректные данные"
	case errors.Is(err, core.ErrInvalidCredentials):
		return http.StatusUnauthorized, genericLoginError
	case errors.Is(err, core.ErrForbidden):
		return http.StatusForbidden, "Недостаточно прав"
	case errors.Is(err, core.ErrConflict):
		return http.StatusConflict, "Пользователь с таким логином уже существует"
	case errors.Is(err, core.ErrStorageCorruption):
		return http.StatusInternalServerError, "Файл данных повреждён"
	default:
		return http.StatusInternalServerError, "Ошибка при работе с хранилищем данных"
	}
}

// logFailure logs err at a level matching its status.
func (s *Server) logFailure(r *http.Request, msg string, err error, status int) {
	logger := log.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), msg, log.FieldError, err, log.FieldPath, r.URL.Path)
		return
	}
	logger.InfoContext(r.Context(), msg, log.FieldError, err, log.FieldPath, r.URL.Path)
}

// navItem is one sidebar link.
type navItem struct {
	Path   string
	Label  string
	Active bool
}

func navigation(role core.Role, active string) []navItem {
	var items []navItem
	if services.CanManage(role) {
		items = append(items, navItem{Path: "/users", Label: string(core.ModuleUserManagement)})
	}
	items = append(items,
		navItem{Path: "/budget", Label: string(core.ModuleBudget)},
		navItem{Path: "/sales", Label: string(core.ModuleSales)},
		navItem{Path: "/reports", Label: string(core.ModuleReports)},
		navItem{Path: "/settings", Label: string(core.ModuleSettings)},
	)
	for i := range items {
		items[i].Active = items[i].Path == active
	}
	return items
}

// pageData is the layout model shared by every page.
type pageData struct {
	Title   string
	User    string
	Role    core.Role
	Nav     []navItem
	Flash   string
	Error   string
	Success string
	Body    any
}

func newPageData(sess *session.Session, title, active string) pageData {
	return pageData{
		Title: title,
		User:  sess.User,
		Role:  sess.Role,
		Nav:   navigation(sess.Role, active),
		Flash: sess.TakeFlash(),
	}
}

// renderPage executes a full page into a buffer so a template failure
// never leaves a half-written 200 behind.
func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	if s.templates == nil {
		s.logger.ErrorContext(r.Context(), "Templates not loaded", log.FieldPath, r.URL.Path, log.FieldComponent, log.ComponentTemplate)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	page, ok := s.templates.pages[name]
	if !ok {
		http.Error(w, "unknown page", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := page.ExecuteTemplate(&buf, "layout", data); err != nil {
		s.logger.ErrorContext(r.Context(), "Page template execution failed", log.FieldError, err, "template", name)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// renderPartial executes one shared partial template.
func (s *Server) renderPartial(r *http.Request, name string, data any) ([]byte, error) {
	if s.templates == nil {
		return nil, errors.New("templates not loaded")
	}
	var buf bytes.Buffer
	if err := s.templates.base.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.ErrorContext(r.Context(), "Partial template execution failed", log.FieldError, err, "template", name)
		return nil, err
	}
	return buf.Bytes(), nil
}

var levelLabels = map[core.PermissionLevel]string{
	core.PermEditor:    "Редактор",
	core.PermViewer:    "Просмотр",
	core.PermViewerAll: "Просмотр всех отделов",
}

var moduleSlugs = map[core.Module]string{
	core.ModuleBudget:  "budget",
	core.ModuleSales:   "sales",
	core.ModuleReports: "reports",
}

var templateFuncs = template.FuncMap{
	"amount": func(d decimal.Decimal) string { return formatAmount(d) },
	"level": func(l core.PermissionLevel) string {
		if label, ok := levelLabels[l]; ok {
			return label
		}
		return string(l)
	},
	"moduleSlug":  func(m core.Module) string { return moduleSlugs[m] },
	"monthNumber": func(i int) int { return i + 1 },
	"isAll":       func(v string) bool { return v == "" || v == core.All },
	"all":         func() string { return core.All },
}

// formatAmount renders an amount with two decimals, a decimal comma and
// no-break space grouping, e.g. "1\u00a0234,50".
func formatAmount(d decimal.Decimal) string {
	s := core.FormatAmount(d)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteRune('\u00a0')
		}
		b.WriteRune(r)
	}
	out := b.String() + "," + frac
	if neg {
		return "-" + out
	}
	return out
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
