package gitolite

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"apphost/internal/domain/model"
)

// KeyFiles maps the keydir-relative path of every public key gitolite should
// know to its content. Keys live at <user id>/<key dir>/<user id>.pub so
// gitolite maps them all to the user id. Only users who may push get keys.
// Two keys of one user never share a path: a colliding key is stored under
// its id.
func KeyFiles(users []model.User) map[string]string {
	files := make(map[string]string)
	for _, u := range users {
		if !u.CanPush() {
			continue
		}
		for _, key := range u.SSHKeys {
			path := filepath.Join(u.ID, key.DirName(), u.ID+".pub")
			if _, taken := files[path]; taken {
				path = filepath.Join(u.ID, key.ID, u.ID+".pub")
			}
			files[path] = strings.TrimSpace(key.PublicKey) + "\n"
		}
	}
	return files
}

// syncKeydir makes dir contain exactly files. Files whose content already
// matches are not rewritten, so a second run changes nothing on disk.
// It reports whether anything changed.
func syncKeydir(dir string, files map[string]string) (bool, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("create keydir: %w", err)
	}

	changed := false
	var stale []string
	var dirs []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == dir {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if d.IsDir() {
			dirs = append(dirs, path)
			return nil
		}
		if _, ok := files[rel]; !ok {
			stale = append(stale, path)
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("scan keydir: %w", err)
	}

	for _, path := range stale {
		if err := os.Remove(path); err != nil {
			return changed, fmt.Errorf("remove stale key %s: %w", path, err)
		}
		changed = true
	}

	// Deepest first so parents empty out after their children.
	sort.Sort(sort.Reverse(sort.StringSlice(dirs)))
	for _, d := range dirs {
		if err := os.Remove(d); err != nil && !errors.Is(err, os.ErrNotExist) && !isNotEmpty(d) {
			return changed, fmt.Errorf("remove stale key dir %s: %w", d, err)
		}
	}

	paths := make([]string, 0, len(files))
	for rel := range files {
		paths = append(paths, rel)
	}
	sort.Strings(paths)
	for _, rel := range paths {
		wrote, err := writeIfChanged(filepath.Join(dir, rel), files[rel], 0o644)
		if err != nil {
			return changed, err
		}
		changed = changed || wrote
	}
	return changed, nil
}

func isNotEmpty(dir string) bool {
	entries, err := os.ReadDir(dir)
	return err == nil && len(entries) > 0
}

// writeIfChanged writes content to path unless it already holds exactly
// that content with the given mode. It reports whether it wrote.
func writeIfChanged(path, content string, mode os.FileMode) (bool, error) {
	if current, err := os.ReadFile(path); err == nil && bytes.Equal(current, []byte(content)) {
		info, statErr := os.Stat(path)
		if statErr == nil && info.Mode().Perm() == mode {
			return false, nil
		}
		return true, os.Chmod(path, mode)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, os.Chmod(path, mode)
}
