package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"budget/internal/access"
	"budget/internal/core"
	"budget/internal/log"
)

// CredentialStore is the credential persistence used by user management.
type CredentialStore interface {
	Load(ctx context.Context) (core.Credentials, error)
	Update(ctx context.Context, fn func(*core.Credentials) error) (core.Credentials, error)
}

// NewUser is the admin's create-user form.
type NewUser struct {
	Username    string
	Password    string
	Permissions map[core.Module]core.PermissionLevel
}

// UserService implements administrator-only user management.
type UserService struct {
	store  CredentialStore
	logger *log.Logger
}

func NewUserService(store CredentialStore, logger *log.Logger) *UserService {
	if logger == nil {
		logger = log.Nop()
	}
	return &UserService{store: store, logger: logger.WithComponent(log.ComponentUsers)}
}

// CanManage reports whether role may use user management.
func CanManage(role core.Role) bool { return role == core.RoleAdmin }

// Create adds a custom-role user and returns the credentials re-read from
// the store. Modules missing from in.Permissions default to editor.
func (s *UserService) Create(ctx context.Context, v Viewer, in NewUser) (core.Credentials, error) {
	if !CanManage(v.Role) {
		return core.Credentials{}, fmt.Errorf("%w: %s cannot manage users", core.ErrForbidden, v.User)
	}
	username := strings.TrimSpace(in.Username)
	password := strings.TrimSpace(in.Password)
	if username == "" || password == "" {
		return core.Credentials{}, &core.ValidationError{Msg: "логин и пароль обязательны"}
	}

	perms := make(map[core.Module]core.PermissionLevel, len(core.PermissionModules))
	for _, m := range core.PermissionModules {
		lvl, ok := in.Permissions[m]
		if !ok || lvl == "" {
			lvl = core.PermEditor
		}
		if lvl != core.PermEditor && lvl != core.PermViewer {
			return core.Credentials{}, &core.ValidationError{Field: string(m), Msg: fmt.Sprintf("недопустимый уровень доступа %q", lvl)}
		}
		perms[m] = lvl
	}

	_, err := s.store.Update(ctx, func(c *core.Credentials) error {
		if c.Has(username) {
			return fmt.Errorf("%w: user %q", core.ErrConflict, username)
		}
		c.Users[username] = password
		c.Roles[username] = core.RoleCustom
		c.Permissions[username] = perms
		return nil
	})
	if err != nil {
		return core.Credentials{}, err
	}

	s.logger.InfoContext(ctx, "User created",
		log.FieldUser, username,
		"created_by", v.User,
		log.FieldOperation, log.OpCreate)

	fresh, err := s.store.Load(ctx)
	if err != nil {
		return core.Credentials{}, fmt.Errorf("reload credentials: %w", err)
	}
	return fresh, nil
}

// Table lists every known user, sorted, with the displayed level for each
// permission module.
func (s *UserService) Table(v Viewer) ([]access.Row, error) {
	if !CanManage(v.Role) {
		return nil, fmt.Errorf("%w: %s cannot manage users", core.ErrForbidden, v.User)
	}
	users := make([]string, 0, len(v.Credentials.Users))
	for u := range v.Credentials.Users {
		users = append(users, u)
	}
	sort.Strings(users)
	return access.Table(v.Credentials, users, core.PermissionModules), nil
}
