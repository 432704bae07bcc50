package embedded

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Manager extracts an embedded file tree into a target directory.
//
// By default every extraction overwrites what is on disk so the files match
// the running binary. With KeepExisting set, files already present are left
// untouched and only missing ones are written.
type Manager struct {
	embeddedFS   fs.FS
	targetDir    string
	KeepExisting bool
}

// NewManager creates a new embedded files manager.
func NewManager(embeddedFS fs.FS, targetDir string) *Manager {
	return &Manager{
		embeddedFS: embeddedFS,
		targetDir:  targetDir,
	}
}

// TargetDir is where files are extracted to.
func (m *Manager) TargetDir() string {
	return m.targetDir
}

// SyncFiles extracts the embedded files into the target directory, creating
// it when needed.
func (m *Manager) SyncFiles() error {
	if err := m.extractFiles(); err != nil {
		return fmt.Errorf("failed to extract embedded files: %w", err)
	}
	return nil
}

func (m *Manager) extractFiles() error {
	if err := os.MkdirAll(m.targetDir, 0o755); err != nil {
		return fmt.Errorf("failed to create target directory: %w", err)
	}

	return fs.WalkDir(m.embeddedFS, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == "." {
			return nil
		}

		targetPath := filepath.Join(m.targetDir, filepath.FromSlash(path))

		if d.IsDir() {
			return os.MkdirAll(targetPath, 0o755)
		}

		if m.KeepExisting {
			if _, err := os.Stat(targetPath); err == nil {
				return nil
			} else if !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("failed to stat %s: %w", targetPath, err)
			}
		}

		data, err := fs.ReadFile(m.embeddedFS, path)
		if err != nil {
			return fmt.Errorf("failed to read embedded file %s: %w", path, err)
		}
		if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
			return fmt.Errorf("failed to create parent directory for %s: %w", targetPath, err)
		}
		if err := os.WriteFile(targetPath, data, 0o644); err != nil {
			return fmt.Errorf("failed to write file %s: %w", targetPath, err)
		}
		return nil
	})
}
