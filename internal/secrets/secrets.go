package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

const (
	dirMode  = os.FileMode(0o700)
	fileMode = os.FileMode(0o600)
)

var nameRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// Manager stores one credential value per file under a permission-tight
// directory: 0700 on the directory, 0600 on every file. Values are plain
// text; surrounding whitespace is never significant.
type Manager struct {
	Dir string
}

func (m Manager) path(name string) (string, error) {
	if !nameRe.MatchString(name) {
		return "", fmt.Errorf("invalid secret name %q", name)
	}
	return filepath.Join(m.Dir, name), nil
}

func (m Manager) ensureDir() error {
	if err := os.MkdirAll(m.Dir, dirMode); err != nil {
		return err
	}
	info, err := os.Stat(m.Dir)
	if err != nil {
		return err
	}
	if info.Mode().Perm() != dirMode {
		return os.Chmod(m.Dir, dirMode)
	}
	return nil
}

// Get returns the stored value for name. A missing secret is (_, false, nil);
// err is reserved for real I/O trouble.
func (m Manager) Get(name string) (string, bool, error) {
	p, err := m.path(name)
	if err != nil {
		return "", false, err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, err
	}
	v := strings.TrimSpace(string(b))
	if v == "" {
		return "", false, nil
	}
	return v, true, nil
}

// Set writes the value for name with tight permissions.
func (m Manager) Set(name, value string) error {
	p, err := m.path(name)
	if err != nil {
		return err
	}
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("refusing to store empty secret %q", name)
	}
	if err := m.ensureDir(); err != nil {
		return err
	}
	if err := os.WriteFile(p, []byte(strings.TrimSpace(value)+"\n"), fileMode); err != nil {
		return err
	}
	// WriteFile honors umask on existing files; force the mode.
	return os.Chmod(p, fileMode)
}

// List returns the stored secret names, sorted.
func (m Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !nameRe.MatchString(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Check tightens permissions that drifted and reports what it fixed.
func (m Manager) Check() ([]string, error) {
	var fixed []string
	info, err := os.Stat(m.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if info.Mode().Perm() != dirMode {
		if err := os.Chmod(m.Dir, dirMode); err != nil {
			return fixed, err
		}
		fixed = append(fixed, m.Dir)
	}
	names, err := m.List()
	if err != nil {
		return fixed, err
	}
	for _, name := range names {
		p := filepath.Join(m.Dir, name)
		fi, err := os.Stat(p)
		if err != nil {
			return fixed, err
		}
		if fi.Mode().Perm() != fileMode {
			if err := os.Chmod(p, fileMode); err != nil {
				return fixed, err
			}
			fixed = append(fixed, p)
		}
	}
	return fixed, nil
}
