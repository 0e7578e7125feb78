// Package access resolves effective permission levels from a credentials
// snapshot. Every function here is pure.
package access

import "budget/internal/core"

// Resolve returns the effective level of user on module. The built-in admin
// and supervisor accounts are fixed to editor and viewer_all. Otherwise a
// stored per-module level wins, then the user's role, then editor.
//
// When the fallback is a role that is not itself a level (for example
// "admin" on a renamed administrator) the role is returned as-is; callers
// treat any value other than the three levels as "no module view".
func Resolve(c core.Credentials, user string, module core.Module) core.PermissionLevel {
	switch user {
	case core.AdminUser:
		return core.PermEditor
	case core.SupervisorUser:
		return core.PermViewerAll
	}
	if lvl, ok := c.Permissions[user][module]; ok {
		return lvl
	}
	if role, ok := c.Roles[user]; ok && role != "" {
		return core.PermissionLevel(role)
	}
	return core.PermEditor
}

// Display is the level shown in the user management table. A stored level
// is shown as-is; otherwise editor when the user's role is literally
// "editor" (or unset), viewer for anything else. It never changes stored
// permissions.
func Display(c core.Credentials, user string, module core.Module) core.PermissionLevel {
	if lvl, ok := c.Permissions[user][module]; ok {
		return lvl
	}
	role, ok := c.Roles[user]
	if !ok || role == "" {
		role = core.Role(core.PermEditor)
	}
	if core.PermissionLevel(role) == core.PermEditor {
		return core.PermEditor
	}
	return core.PermViewer
}

// Row is one line of the user management table.
type Row struct {
	User   string
	Levels []core.PermissionLevel
}

// Table renders Display for every user and module in the given order.
func Table(c core.Credentials, users []string, modules []core.Module) []Row {
	rows := make([]Row, 0, len(users))
	for _, u := range users {
		r := Row{User: u, Levels: make([]core.PermissionLevel, len(modules))}
		for i, m := range modules {
			r.Levels[i] = Display(c, u, m)
		}
		rows = append(rows, r)
	}
	return rows
}
