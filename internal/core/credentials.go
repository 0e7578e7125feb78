package core

import "strings"

// Credentials is the full content of the credential document: passwords,
// roles and per-module permission overrides keyed by username.
type Credentials struct {
	Users       map[string]string                     `json:"users"`
	Roles       map[string]Role                       `json:"roles"`
	Permissions map[string]map[Module]PermissionLevel `json:"permissions"`
}

// BootstrapCredentials returns the two built-in accounts with empty
// permissions. Passwords come from configuration.
func BootstrapCredentials(adminPassword, supervisorPassword string) Credentials {
	return Credentials{
		Users: map[string]string{
			AdminUser:      adminPassword,
			SupervisorUser: supervisorPassword,
		},
		Roles: map[string]Role{
			AdminUser:      RoleAdmin,
			SupervisorUser: RoleSupervisor,
		},
		Permissions: map[string]map[Module]PermissionLevel{},
	}
}

// Clone returns a deep copy safe to mutate.
func (c Credentials) Clone() Credentials {
	out := Credentials{
		Users:       make(map[string]string, len(c.Users)),
		Roles:       make(map[string]Role, len(c.Roles)),
		Permissions: make(map[string]map[Module]PermissionLevel, len(c.Permissions)),
	}
	for k, v := range c.Users {
		out.Users[k] = v
	}
	for k, v := range c.Roles {
		out.Roles[k] = v
	}
	for u, perms := range c.Permissions {
		cp := make(map[Module]PermissionLevel, len(perms))
		for m, l := range perms {
			cp[m] = l
		}
		out.Permissions[u] = cp
	}
	return out
}

// Has reports whether username is a known user (exact match).
func (c Credentials) Has(username string) bool {
	_, ok := c.Users[username]
	return ok
}

// PasswordMatches compares trimmed stored and supplied passwords. A user
// without a stored password never matches.
func (c Credentials) PasswordMatches(username, password string) bool {
	stored, ok := c.Users[username]
	if !ok || strings.TrimSpace(stored) == "" {
		return false
	}
	return strings.TrimSpace(stored) == strings.TrimSpace(password)
}

// Rename moves every entry of from to to across all three tables.
func (c *Credentials) Rename(from, to string) {
	if pw, ok := c.Users[from]; ok {
		delete(c.Users, from)
		c.Users[to] = pw
	}
	if role, ok := c.Roles[from]; ok {
		delete(c.Roles, from)
		c.Roles[to] = role
	}
	if perms, ok := c.Permissions[from]; ok {
		delete(c.Permissions, from)
		c.Permissions[to] = perms
	}
}

// Normalize replaces nil tables with empty ones.
func (c *Credentials) Normalize() {
	if c.Users == nil {
		c.Users = map[string]string{}
	}
	if c.Roles == nil {
		c.Roles = map[string]Role{}
	}
	if c.Permissions == nil {
		c.Permissions = map[string]map[Module]PermissionLevel{}
	}
}
