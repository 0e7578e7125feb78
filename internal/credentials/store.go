// Package credentials persists the user/role/permission document as JSON.
//
// The store is the only writer of its file. Writes go to a temporary file in
// the same directory and are renamed over the document, and every mutation
// runs under one mutex as load-modify-save.
package credentials

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"budget/internal/core"
	"budget/internal/log"
)

type FileStore struct {
	mu       sync.Mutex
	path     string
	defaults core.Credentials
	logger   *log.Logger
	now      func() time.Time
}

// NewFileStore returns a store for path. defaults are the bootstrap accounts
// returned when the document is absent and written back when it is corrupt.
func NewFileStore(path string, defaults core.Credentials, logger *log.Logger) *FileStore {
	if logger == nil {
		logger = log.FromSlog(nil, log.ComponentCredentials)
	}
	defaults.Normalize()
	return &FileStore{
		path:     path,
		defaults: defaults.Clone(),
		logger:   logger.WithComponent(log.ComponentCredentials),
		now:      time.Now,
	}
}

// Path returns the backing document path.
func (s *FileStore) Path() string { return s.path }

// Load reads the document. A missing document yields the defaults. A
// malformed document is backed up, overwritten with the defaults and the
// defaults are returned together with an error wrapping
// core.ErrStorageCorruption, which callers may surface as a warning. When
// the backup or the rewrite fails the error also wraps core.ErrStorageIO
// and must not be treated as a recovery; a failed backup leaves the
// document untouched.
func (s *FileStore) Load(ctx context.Context) (core.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

// Save writes the full document.
func (s *FileStore) Save(ctx context.Context, c core.Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx, c)
}

// Update loads the current document, applies fn and saves the result. When
// fn returns an error nothing is written. A corrupt document is recovered
// first and fn sees the defaults.
func (s *FileStore) Update(ctx context.Context, fn func(*core.Credentials) error) (core.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.loadLocked(ctx)
	if err != nil && (errors.Is(err, core.ErrStorageIO) || !errors.Is(err, core.ErrStorageCorruption)) {
		return core.Credentials{}, err
	}
	next := c.Clone()
	if err := fn(&next); err != nil {
		return c, err
	}
	if err := s.saveLocked(ctx, next); err != nil {
		return c, err
	}
	return next, nil
}

func (s *FileStore) loadLocked(ctx context.Context) (core.Credentials, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return s.defaults.Clone(), nil
	}
	if err != nil {
		return core.Credentials{}, fmt.Errorf("%w: read %s: %v", core.ErrStorageIO, s.path, err)
	}

	c, perr := decode(data, s.defaults)
	if perr == nil {
		return c, nil
	}

	s.logger.WarnContext(ctx, "Credential document is corrupt, restoring defaults",
		log.FieldFile, s.path,
		log.FieldOperation, log.OpRecover,
		log.FieldError, perr)

	corrupt := fmt.Errorf("%w: %s: %v", core.ErrStorageCorruption, s.path, perr)
	backup := s.path + ".corrupt-" + strconv.FormatInt(s.now().Unix(), 10)
	if err := os.WriteFile(backup, data, 0o600); err != nil {
		s.logger.ErrorContext(ctx, "Failed to back up corrupt credential document, leaving it in place",
			log.FieldFile, backup, log.FieldError, err)
		return core.Credentials{}, errors.Join(corrupt, fmt.Errorf("%w: back up %s: %v", core.ErrStorageIO, s.path, err))
	}
	def := s.defaults.Clone()
	if err := s.saveLocked(ctx, def); err != nil {
		return def, errors.Join(corrupt, err)
	}
	return def, corrupt
}

// decode reads the document leniently: only unparsable JSON or a top level
// that is not an object is an error. Scalar passwords, roles and levels are
// kept as their text, so a numeric password stays usable. A table that is
// absent or null falls back to defaults; a per-user permissions entry that
// is not an object is dropped.
func decode(data []byte, defaults core.Credentials) (core.Credentials, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return core.Credentials{}, err
	}
	if top == nil {
		return core.Credentials{}, errors.New("document is not a JSON object")
	}

	users, err := textTable(top["users"])
	if err != nil {
		return core.Credentials{}, fmt.Errorf("users: %w", err)
	}
	roles, err := textTable(top["roles"])
	if err != nil {
		return core.Credentials{}, fmt.Errorf("roles: %w", err)
	}

	c := core.Credentials{Users: users}
	if users == nil {
		c.Users = defaults.Clone().Users
	}
	if roles == nil {
		c.Roles = defaults.Clone().Roles
	} else {
		c.Roles = make(map[string]core.Role, len(roles))
		for u, r := range roles {
			c.Roles[u] = core.Role(r)
		}
	}

	if raw := top["permissions"]; !isNull(raw) {
		var perUser map[string]json.RawMessage
		if err := json.Unmarshal(raw, &perUser); err != nil {
			return core.Credentials{}, fmt.Errorf("permissions: %w", err)
		}
		c.Permissions = make(map[string]map[core.Module]core.PermissionLevel, len(perUser))
		for u, entry := range perUser {
			levels, err := textTable(entry)
			perms := map[core.Module]core.PermissionLevel{}
			if err == nil {
				for m, l := range levels {
					perms[core.Module(m)] = core.PermissionLevel(l)
				}
			}
			c.Permissions[u] = perms
		}
	}
	c.Normalize()
	return c, nil
}

// textTable decodes an object of scalars into strings. Numbers and booleans
// keep their JSON text; null and nested values become "". An absent or null
// table yields a nil map.
func textTable(raw json.RawMessage) (map[string]string, error) {
	if isNull(raw) {
		return nil, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(obj))
	for k, v := range obj {
		out[k] = scalarText(v)
	}
	return out, nil
}

func scalarText(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	var x any
	if err := json.Unmarshal(v, &x); err != nil {
		return ""
	}
	switch x.(type) {
	case float64, bool:
		return string(bytes.TrimSpace(v))
	}
	return ""
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

func (s *FileStore) saveLocked(ctx context.Context, c core.Credentials) error {
	c.Normalize()
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create %s: %v", core.ErrStorageIO, dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", core.ErrStorageIO, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write %s: %v", core.ErrStorageIO, tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: sync %s: %v", core.ErrStorageIO, tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", core.ErrStorageIO, tmpName, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("%w: replace %s: %v", core.ErrStorageIO, s.path, err)
	}

	s.logger.InfoContext(ctx, "Credential document saved",
		log.FieldFile, s.path,
		log.FieldOperation, log.OpSave,
		log.FieldCount, len(c.Users))
	return nil
}
