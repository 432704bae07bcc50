package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"

	"apphost/internal/application/config"
	"apphost/internal/domain/model"
	"apphost/pkg/env"
	"apphost/pkg/log"
	"apphost/pkg/runner"
)

// Redeploy installs dependencies, builds the app if it has a build script
// and reloads its process in place. Install and build failures are returned
// as *model.StageError before the running process is touched. Tool output
// is streamed to out when it is not nil.
func (s *Service) Redeploy(ctx context.Context, folderName string, out io.Writer) (err error) {
	defer func() { s.metrics.Lifecycle("redeploy", err) }()

	if !s.Exists(folderName) {
		return notFound("app", folderName)
	}
	log.Info("Redeploying app", "folder_name", folderName)

	if err := s.runStage(ctx, folderName, model.StageInstall, s.config.GetInstallCommand(), out); err != nil {
		return err
	}

	if s.hasBuildScript(folderName) {
		if err := s.runStage(ctx, folderName, model.StageBuild, s.config.GetBuildCommand(), out); err != nil {
			return err
		}
	}

	if err := s.supervisor.Reload(ctx, s.ProcessName(folderName)); err != nil {
		return &model.StageError{Stage: model.StageReload, Err: err}
	}

	log.Info("App redeployed", "folder_name", folderName)

	if s.config.IsFeatureEnabled(config.FeatureHealthChecks) {
		s.CheckHealth(ctx, folderName)
	}
	return nil
}

func (s *Service) runStage(ctx context.Context, folderName string, stage model.Stage, argv []string, out io.Writer) error {
	if len(argv) == 0 {
		return &model.StageError{Stage: stage, Err: errors.New("no command configured")}
	}

	// Build steps see the same secrets the app runs with.
	secrets, err := env.Load(s.secretsPath(folderName))
	if err != nil {
		log.Warn("Ignoring unreadable secrets", "folder_name", folderName, "error", err)
		secrets = nil
	}

	res := s.runner.RunSync(ctx, runner.Command{
		ID:     folderName + "-" + string(stage),
		Dir:    s.WorkingDir(folderName),
		Name:   argv[0],
		Args:   argv[1:],
		Env:    secrets,
		Stdout: out,
	})
	if res.Error != nil {
		return &model.StageError{Stage: stage, Err: &model.ToolError{
			Tool:     argv[0],
			Args:     argv[1:],
			ExitCode: res.ExitCode,
			Output:   res.Output,
			Err:      res.Error,
		}}
	}
	return nil
}

// hasBuildScript reports whether package.json declares scripts.build.
func (s *Service) hasBuildScript(folderName string) bool {
	data, err := os.ReadFile(filepath.Join(s.WorkingDir(folderName), packageJSONFile))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn("Failed to read package.json", "folder_name", folderName, "error", err)
		}
		return false
	}

	var pkg struct {
		Scripts map[string]string `json:"scripts"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		log.Warn("Invalid package.json", "folder_name", folderName, "error", err)
		return false
	}
	return pkg.Scripts["build"] != ""
}
