package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"apphost/internal/domain/model"
	"apphost/pkg/log"
	"apphost/pkg/yaml"
)

// readEcosystem loads the app's descriptor. A missing descriptor returns
// model.ErrNotFound.
func (s *Service) readEcosystem(folderName string) (*model.EcosystemApp, error) {
	if !model.IsFolderName(folderName) {
		return nil, notFound("ecosystem", folderName)
	}
	var eco model.Ecosystem
	if err := yaml.ReadFile(s.DescriptorPath(folderName), &eco); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, notFound("ecosystem", folderName)
		}
		return nil, err
	}
	return eco.App()
}

// AppPort returns the port recorded in the app's descriptor.
func (s *Service) AppPort(ctx context.Context, folderName string) (int, error) {
	app, err := s.readEcosystem(folderName)
	if err != nil {
		return 0, err
	}
	return app.Port()
}

// buildEcosystem describes how the supervisor runs the app on port.
func (s *Service) buildEcosystem(folderName string, port int) *model.Ecosystem {
	nodeEnv := "production"
	if s.config.Development {
		nodeEnv = "development"
	}
	return model.NewEcosystem(model.EcosystemApp{
		Name:   s.ProcessName(folderName),
		Script: s.runtimeScript(),
		Cwd:    s.WorkingDir(folderName),
		Log:    s.AppLogPath(folderName),
		Env: map[string]string{
			model.EnvPort:      strconv.Itoa(port),
			model.EnvNodeEnv:   nodeEnv,
			model.EnvEntryFile: filepath.Join(s.WorkingDir(folderName), entryFile),
			model.EnvFolder:    folderName,
		},
	})
}

// usedPorts collects the ports recorded in every descriptor except the one
// for skip. Stopped apps do not bind their port, so probing alone would hand
// it out twice.
func (s *Service) usedPorts(ctx context.Context, skip string) []int {
	folders, err := s.ListFolders(ctx)
	if err != nil {
		log.Warn("Failed to list apps for port allocation", "error", err)
		return nil
	}
	used := make([]int, 0, len(folders))
	for _, folder := range folders {
		if folder == skip {
			continue
		}
		if port, err := s.AppPort(ctx, folder); err == nil {
			used = append(used, port)
		}
	}
	return used
}

// writeEcosystem allocates a port and writes a fresh descriptor.
func (s *Service) writeEcosystem(ctx context.Context, folderName string) (int, error) {
	port, err := s.ports.Allocate(s.usedPorts(ctx, folderName)...)
	if err != nil {
		return 0, fmt.Errorf("allocate port for %s: %w", folderName, err)
	}
	if err := yaml.WriteFile(s.DescriptorPath(folderName), s.buildEcosystem(folderName, port)); err != nil {
		return 0, fmt.Errorf("write ecosystem for %s: %w", folderName, err)
	}
	return port, nil
}

// RecreateEcosystem rewrites the app's descriptor from current settings. The
// port already recorded in an existing descriptor is kept; a new one is only
// allocated when there is no readable descriptor.
func (s *Service) RecreateEcosystem(ctx context.Context, folderName string) (int, error) {
	if !s.Exists(folderName) {
		return 0, notFound("app", folderName)
	}

	port, err := s.AppPort(ctx, folderName)
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			log.Warn("Existing ecosystem unreadable, allocating a new port",
				"folder_name", folderName, "error", err)
		}
		return s.writeEcosystem(ctx, folderName)
	}

	if err := yaml.WriteFile(s.DescriptorPath(folderName), s.buildEcosystem(folderName, port)); err != nil {
		return 0, fmt.Errorf("write ecosystem for %s: %w", folderName, err)
	}
	return port, nil
}

// RecreateAll rebuilds the descriptor of every app and starts it. It is run
// at startup to restore supervisor state lost while the control plane was
// down. Failures are logged per app and returned together.
func (s *Service) RecreateAll(ctx context.Context) error {
	folders, err := s.ListFolders(ctx)
	if err != nil {
		return err
	}

	var errs []error
	for _, folder := range folders {
		port, err := s.RecreateEcosystem(ctx, folder)
		if err != nil {
			errs = append(errs, log.Errorf("recreate ecosystem for %s: %w", folder, err))
			continue
		}
		if err := s.supervisor.Start(ctx, s.DescriptorPath(folder)); err != nil {
			errs = append(errs, fmt.Errorf("start %s: %w", folder, err))
			continue
		}
		log.Info("App started", "folder_name", folder, "port", port)
	}
	return errors.Join(errs...)
}
