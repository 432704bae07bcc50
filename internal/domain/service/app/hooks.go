package app

import (
	"context"
	"fmt"
	"os"

	"apphost/internal/infra/git"
	"apphost/pkg/log"
	"apphost/pkg/template"

	"github.com/kballard/go-shellquote"
)

// Substituted values are shell-quoted before they reach the template.
const appHookTemplate = `#!/usr/bin/env bash
GIT_WORK_TREE=${WORKING_DIR} git checkout -f
(cd ${CONTROL_DIR} && ${REDEPLOY_COMMAND})
`

const templateHookTemplate = `#!/usr/bin/env bash
(GIT_WORK_TREE=${WORKING_DIR} git checkout -f)
`

// PostReceiveScript checks a pushed commit out into the app's working
// directory and redeploys the app.
func (s *Service) PostReceiveScript(folderName string) string {
	controlDir := s.config.WorkDir
	if controlDir == "" {
		controlDir = "."
	}
	redeploy := append(s.config.GetRedeployCommand(), folderName)
	return template.MustSubstitute(appHookTemplate, map[string]string{
		"WORKING_DIR":      shellquote.Join(s.WorkingDir(folderName)),
		"CONTROL_DIR":      shellquote.Join(controlDir),
		"REDEPLOY_COMMAND": shellquote.Join(redeploy...),
	})
}

// TemplatePostReceiveScript checks a pushed commit out into the template's
// working directory. Only hosted template repositories need it.
func (s *Service) TemplatePostReceiveScript(folderName string) string {
	return template.MustSubstitute(templateHookTemplate, map[string]string{
		"WORKING_DIR": shellquote.Join(s.TemplateDir(folderName)),
	})
}

// WritePostReceiveHook installs the deploy hook in the app's own repository
// so it can be pushed to directly.
func (s *Service) WritePostReceiveHook(ctx context.Context, folderName string) error {
	repo := git.NewRepository(s.WorkingDir(folderName))
	if err := repo.SetConfig(ctx, "receive.denyCurrentBranch", "updateInstead"); err != nil {
		return fmt.Errorf("configure %s for pushes: %w", folderName, err)
	}
	return WriteHook(s.hookPath(folderName), s.PostReceiveScript(folderName))
}

// WriteAllHooks refreshes the deploy hook of every app. Used at startup
// when pushes go straight to the app repositories.
func (s *Service) WriteAllHooks(ctx context.Context) error {
	folders, err := s.ListFolders(ctx)
	if err != nil {
		return err
	}
	for _, folder := range folders {
		if err := s.WritePostReceiveHook(ctx, folder); err != nil {
			log.Warn("Failed to write post-receive hook", "folder_name", folder, "error", err)
		}
	}
	return nil
}

// WriteHook writes an executable hook script to path.
func WriteHook(path, script string) error {
	if err := ensureParent(path); err != nil {
		return fmt.Errorf("create hooks directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		return fmt.Errorf("write hook %s: %w", path, err)
	}
	// WriteFile keeps the mode of an existing file.
	return os.Chmod(path, 0o755)
}
