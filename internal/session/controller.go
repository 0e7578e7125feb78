package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"budget/internal/core"
	"budget/internal/log"
)

// CredentialStore is the persistence the controller needs.
type CredentialStore interface {
	Load(ctx context.Context) (core.Credentials, error)
	Update(ctx context.Context, fn func(*core.Credentials) error) (core.Credentials, error)
}

// CorruptionNotice is flashed after the credential document was reset.
const CorruptionNotice = "Файл пользователей был повреждён и восстановлен по умолчанию. Резервная копия сохранена рядом с ним."

type Controller struct {
	store    CredentialStore
	registry *Registry
	logger   *log.Logger
}

func NewController(store CredentialStore, registry *Registry, logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.Nop()
	}
	return &Controller{
		store:    store,
		registry: registry,
		logger:   logger.WithComponent(log.ComponentSession),
	}
}

func (c *Controller) Registry() *Registry { return c.registry }

// load reads the credential document. A recovered corruption is logged and
// reported through recovered. Any I/O failure is returned, including one
// hit while restoring a corrupt document.
func (c *Controller) load(ctx context.Context) (creds core.Credentials, recovered bool, err error) {
	creds, err = c.store.Load(ctx)
	if err == nil {
		return creds, false, nil
	}
	if errors.Is(err, core.ErrStorageIO) {
		return core.Credentials{}, false, err
	}
	if errors.Is(err, core.ErrStorageCorruption) && creds.Users != nil {
		c.logger.WarnContext(ctx, "Credential document recovered", log.FieldError, err, log.FieldOperation, log.OpRecover)
		return creds, true, nil
	}
	return core.Credentials{}, false, err
}

// Login authenticates username/password against a fresh snapshot. Unknown
// users, users without a password and wrong passwords all yield
// core.ErrInvalidCredentials.
func (c *Controller) Login(ctx context.Context, username, password string) (*Session, error) {
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)

	creds, recovered, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	if !creds.PasswordMatches(username, password) {
		c.logger.InfoContext(ctx, "Login rejected", log.FieldOperation, log.OpLogin)
		return nil, core.ErrInvalidCredentials
	}

	role := creds.Roles[username]
	if role == "" {
		role = core.RoleCustom
	}
	s := c.registry.create(username, role, creds)
	if recovered {
		s.SetFlash(CorruptionNotice)
	}
	c.logger.InfoContext(ctx, "Login succeeded",
		log.FieldUser, username,
		log.FieldRole, string(role),
		log.FieldOperation, log.OpLogin)
	return s, nil
}

// Logout ends the session with id. It always succeeds.
func (c *Controller) Logout(ctx context.Context, id string) {
	if s, ok := c.registry.Get(id); ok {
		c.logger.InfoContext(ctx, "Logout", log.FieldUser, s.User, log.FieldOperation, log.OpLogout)
	}
	c.registry.Destroy(id)
}

// Refresh reloads the credential snapshot of s and returns it. On a read
// failure the previous snapshot is kept.
func (c *Controller) Refresh(ctx context.Context, s *Session) core.Credentials {
	creds, recovered, err := c.load(ctx)
	if err != nil {
		c.logger.ErrorContext(ctx, "Credential reload failed, using session snapshot", log.FieldUser, s.User, log.FieldError, err)
		return s.Credentials()
	}
	if recovered {
		s.SetFlash(CorruptionNotice)
	}
	s.setCredentials(creds)
	return creds
}

// ChangePassword replaces the password of the session user when old
// matches the stored one.
func (c *Controller) ChangePassword(ctx context.Context, s *Session, old, next string) error {
	next = strings.TrimSpace(next)
	if next == "" {
		return &core.ValidationError{Field: "new_password", Msg: "новый пароль не может быть пустым"}
	}
	creds, err := c.store.Update(ctx, func(cr *core.Credentials) error {
		if !cr.PasswordMatches(s.User, old) {
			return &core.ValidationError{Field: "old_password", Msg: "неверный текущий пароль"}
		}
		cr.Users[s.User] = next
		return nil
	})
	if err != nil {
		return err
	}
	s.setCredentials(creds)
	c.logger.InfoContext(ctx, "Password changed", log.FieldUser, s.User, log.FieldOperation, log.OpUpdate)
	return nil
}

// ChangeLogin renames the session user to newUsername after re-checking
// currentPassword. Every session of the old name ends; the caller must log
// in again.
func (c *Controller) ChangeLogin(ctx context.Context, s *Session, newUsername, currentPassword string) error {
	newUsername = strings.TrimSpace(newUsername)
	if newUsername == "" {
		return &core.ValidationError{Field: "new_login", Msg: "новый логин не может быть пустым"}
	}
	old := s.User
	_, err := c.store.Update(ctx, func(cr *core.Credentials) error {
		if !cr.PasswordMatches(old, currentPassword) {
			return &core.ValidationError{Field: "current_password", Msg: "неверный текущий пароль"}
		}
		if cr.Has(newUsername) {
			return fmt.Errorf("%w: login %q is taken", core.ErrConflict, newUsername)
		}
		cr.Rename(old, newUsername)
		return nil
	})
	if err != nil {
		return err
	}
	ended := c.registry.DestroyUser(old)
	c.logger.InfoContext(ctx, "Login renamed",
		log.FieldUser, newUsername,
		"previous_user", old,
		"sessions_ended", ended,
		log.FieldOperation, log.OpRename)
	return nil
}
