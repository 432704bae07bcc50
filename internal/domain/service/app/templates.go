package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"apphost/internal/domain/model"
	"apphost/internal/domain/service/util"
	"apphost/internal/infra/git"
	"apphost/pkg/log"
)

// ListTemplates returns every app template with its latest commit.
func (s *Service) ListTemplates(ctx context.Context) ([]model.AppTemplate, error) {
	folders, err := s.ListTemplateFolders(ctx)
	if err != nil {
		return nil, err
	}
	templates := make([]model.AppTemplate, 0, len(folders))
	for _, folder := range folders {
		templates = append(templates, s.templateView(ctx, folder))
	}
	return templates, nil
}

// GetTemplate returns one app template.
func (s *Service) GetTemplate(ctx context.Context, folderName string) (*model.AppTemplate, error) {
	if !s.templateExists(folderName) {
		return nil, notFound("template", folderName)
	}
	view := s.templateView(ctx, folderName)
	return &view, nil
}

func (s *Service) templateView(ctx context.Context, folderName string) model.AppTemplate {
	return model.AppTemplate{
		FolderName:   folderName,
		GitRemoteURL: s.TemplateRemoteURL(folderName),
		LatestCommit: s.latestTemplateCommit(ctx, folderName),
	}
}

// latestTemplateCommit reads the newest commit from the hosted repository
// when git hosting is on, since pushes land there first. Templates without
// commits, or unreadable ones, have none.
func (s *Service) latestTemplateCommit(ctx context.Context, folderName string) *model.Commit {
	dir := s.TemplateDir(folderName)
	if s.gitHosting() {
		dir = filepath.Join(s.config.GitoliteRepositoriesPath, model.TemplateRepoName(folderName)+".git")
	}
	commit, err := git.NewRepository(dir).LatestCommit(ctx)
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			log.Debug("No latest commit for template", "folder_name", folderName, "error", err)
		}
		return nil
	}
	return commit
}

// CreateTemplate starts a new template from the default template and makes
// it a repository that accepts pushes to its checked out branch.
func (s *Service) CreateTemplate(ctx context.Context, folderName string) (view *model.AppTemplate, err error) {
	defer func() { s.metrics.Lifecycle("create_template", err) }()

	folderName, err = model.NormalizeFolderName(folderName)
	if err != nil {
		return nil, err
	}

	undo := &undoStack{subject: "template " + folderName}
	defer func() {
		if err != nil {
			undo.unwind()
		}
	}()

	dir := s.TemplateDir(folderName)
	if err := os.MkdirAll(s.config.GetTemplatesPath(), 0o755); err != nil {
		return nil, fmt.Errorf("create templates directory: %w", err)
	}
	if err := os.Mkdir(dir, 0o755); err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, &model.DuplicateError{Field: "folderName", Value: folderName}
		}
		return nil, fmt.Errorf("create template directory: %w", err)
	}
	undo.push("remove template directory", func() error { return os.RemoveAll(dir) })

	if err := util.CopyDirectory(s.config.GetDefaultTemplatePath(), dir, ".git"); err != nil {
		return nil, fmt.Errorf("copy default template: %w", err)
	}

	repo := git.NewRepository(dir)
	if err := repo.InitWithCommit(ctx, initialCommit); err != nil {
		return nil, fmt.Errorf("create initial commit: %w", err)
	}
	if err := repo.SetConfig(ctx, "receive.denyCurrentBranch", "updateInstead"); err != nil {
		return nil, err
	}

	undo.release()
	log.Info("Template created", "folder_name", folderName)
	s.changed()

	return s.GetTemplate(ctx, folderName)
}

// DeleteTemplate moves the template to the trash.
func (s *Service) DeleteTemplate(ctx context.Context, folderName string) (err error) {
	defer func() { s.metrics.Lifecycle("delete_template", err) }()

	if !s.templateExists(folderName) {
		return notFound("template", folderName)
	}
	dir := s.TemplateDir(folderName)
	if _, err := util.MoveToTrash(s.config.GetTrashPath(), dir, s.now()); err != nil {
		return fmt.Errorf("move template %s to trash: %w", folderName, err)
	}

	log.Info("Template deleted", "folder_name", folderName)
	s.changed()
	return nil
}
