package http

import (
	"fmt"
	"net/http"

	"budget/internal/access"
	"budget/internal/core"
	"budget/internal/services"
)

// settingsBody is the User Settings page model.
type settingsBody struct {
	User string
}

// usersBody is the User Management page model.
type usersBody struct {
	Modules []core.Module
	Levels  []core.PermissionLevel
	Rows    []access.Row

	// Username echoes the create form after a rejected submission.
	Username string
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	s.renderSettings(w, r, http.StatusOK, "")
}

func (s *Server) renderSettings(w http.ResponseWriter, r *http.Request, status int, errMsg string) {
	_, sess := viewerFrom(r)
	data := newPageData(sess, string(core.ModuleSettings), "/settings")
	data.Error = errMsg
	data.Body = settingsBody{User: sess.User}
	s.renderPage(w, r, status, "settings", data)
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	_, sess := viewerFrom(r)
	form, fail := ParseBodyOrFail(r)
	if fail != nil {
		s.renderSettings(w, r, http.StatusBadRequest, "Некорректный формат запроса")
		return
	}

	err := s.sessions.ChangePassword(r.Context(), sess, form.Get("old_password"), form.Get("new_password"))
	if err != nil {
		status, msg := errorStatus(err)
		s.logFailure(r, "Password change rejected", err, status)
		s.renderSettings(w, r, status, msg)
		return
	}
	sess.SetFlash("Пароль изменён")
	redirect(w, r, "/settings")
}

// handleChangeLogin renames the session user. Every session of the old
// name ends, so the browser is sent back to the login form.
func (s *Server) handleChangeLogin(w http.ResponseWriter, r *http.Request) {
	_, sess := viewerFrom(r)
	form, fail := ParseBodyOrFail(r)
	if fail != nil {
		s.renderSettings(w, r, http.StatusBadRequest, "Некорректный формат запроса")
		return
	}

	err := s.sessions.ChangeLogin(r.Context(), sess, form.Get("new_login"), form.Get("current_password"))
	if err != nil {
		status, msg := errorStatus(err)
		s.logFailure(r, "Login change rejected", err, status)
		s.renderSettings(w, r, status, msg)
		return
	}
	clearSessionCookie(w, r)
	redirect(w, r, "/?renamed=1")
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	s.renderUsers(w, r, http.StatusOK, "", "")
}

func (s *Server) renderUsers(w http.ResponseWriter, r *http.Request, status int, errMsg, username string) {
	v, sess := viewerFrom(r)
	data := newPageData(sess, string(core.ModuleUserManagement), "/users")
	data.Error = errMsg

	rows, err := s.users.Table(v)
	if err != nil {
		st, msg := errorStatus(err)
		s.logFailure(r, "User table refused", err, st)
		data.Error = msg
		s.renderPage(w, r, st, "users", data)
		return
	}
	data.Body = usersBody{
		Modules:  core.PermissionModules,
		Levels:   core.AssignableLevels,
		Rows:     rows,
		Username: username,
	}
	s.renderPage(w, r, status, "users", data)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	v, sess := viewerFrom(r)
	if !services.CanManage(v.Role) {
		s.renderUsers(w, r, http.StatusForbidden, "", "")
		return
	}
	form, fail := ParseBodyOrFail(r)
	if fail != nil {
		s.renderUsers(w, r, http.StatusBadRequest, "Некорректный формат запроса", "")
		return
	}

	in := services.NewUser{
		Username:    form.Get("username"),
		Password:    form.Get("password"),
		Permissions: ParsePermissions(form),
	}
	if _, err := s.users.Create(r.Context(), v, in); err != nil {
		status, msg := errorStatus(err)
		s.logFailure(r, "User creation rejected", err, status)
		s.renderUsers(w, r, status, msg, in.Username)
		return
	}
	sess.SetFlash(fmt.Sprintf("Пользователь %s создан", in.Username))
	redirect(w, r, "/users")
}
