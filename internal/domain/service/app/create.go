package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"apphost/internal/application/config"
	"apphost/internal/domain/model"
	"apphost/internal/domain/service/util"
	"apphost/internal/infra/git"
	"apphost/pkg/log"
)

// CreateRequest describes a new application.
type CreateRequest struct {
	// FolderName is the requested name. It is normalized to a slug.
	FolderName string
	// Template is the folder name of the template to start from. Empty
	// uses the built-in default template.
	Template string
	// Owner is the user creating the app. A dev owner is granted the new
	// app exclusively.
	Owner *model.User
}

// Create sets up a new application and starts it. Every completed step is
// undone if a later one fails, so a failed create leaves nothing behind.
func (s *Service) Create(ctx context.Context, req CreateRequest) (view *model.AppView, err error) {
	defer func() { s.metrics.Lifecycle("create", err) }()

	folderName, err := model.NormalizeFolderName(req.FolderName)
	if err != nil {
		return nil, err
	}

	templateDir := s.config.GetDefaultTemplatePath()
	if req.Template != "" {
		if !s.templateExists(req.Template) {
			return nil, model.NewValidationError("template", fmt.Sprintf("App template %q does not exist", req.Template))
		}
		templateDir = s.TemplateDir(req.Template)
	}

	log.Info("Creating app", "folder_name", folderName, "template", templateDir)

	undo := &undoStack{subject: folderName}
	defer func() {
		if err != nil {
			undo.unwind()
		}
	}()

	workingDir := s.WorkingDir(folderName)
	if err := os.MkdirAll(s.config.GetAppsPath(), 0o755); err != nil {
		return nil, fmt.Errorf("create apps directory: %w", err)
	}
	if err := os.Mkdir(workingDir, 0o755); err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, &model.DuplicateError{Field: "folderName", Value: folderName}
		}
		return nil, fmt.Errorf("create working directory: %w", err)
	}
	undo.push("remove working directory", func() error { return os.RemoveAll(workingDir) })

	if err := util.CopyDirectory(templateDir, workingDir, ".git"); err != nil {
		return nil, fmt.Errorf("copy app template: %w", err)
	}

	if err := os.WriteFile(s.appNamePath(folderName), []byte(model.SentenceCase(folderName)), 0o644); err != nil {
		return nil, fmt.Errorf("write app name: %w", err)
	}

	if err := git.NewRepository(workingDir).InitWithCommit(ctx, initialCommit); err != nil {
		return nil, fmt.Errorf("create initial commit: %w", err)
	}

	if !s.gitHosting() {
		if err := s.WritePostReceiveHook(ctx, folderName); err != nil {
			return nil, err
		}
	}

	port, err := s.writeEcosystem(ctx, folderName)
	if err != nil {
		return nil, err
	}
	descriptor := s.DescriptorPath(folderName)
	undo.push("remove ecosystem", func() error { return removeIfExists(descriptor) })

	if err := s.supervisor.Start(ctx, descriptor); err != nil {
		return nil, err
	}
	processName := s.ProcessName(folderName)
	undo.push("delete process", func() error { return s.supervisor.Delete(context.WithoutCancel(ctx), processName) })

	if req.Owner != nil && req.Owner.Role == model.RoleDev {
		if err := s.grants.RestrictAppToUsers(ctx, folderName, []string{req.Owner.ID}); err != nil {
			return nil, fmt.Errorf("grant %s to its creator: %w", folderName, err)
		}
	}

	undo.release()
	log.Info("App created", "folder_name", folderName, "port", port, "process_name", processName)
	s.changed()

	if s.config.IsFeatureEnabled(config.FeatureHealthChecks) {
		s.CheckHealth(ctx, folderName)
	}

	return s.GetApp(ctx, folderName)
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// ensureParent creates the parent directory of path.
func ensureParent(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
