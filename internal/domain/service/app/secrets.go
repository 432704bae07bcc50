package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"apphost/internal/domain/model"
	"apphost/pkg/env"
	"apphost/pkg/log"
)

// GetSecrets returns the app's secrets file as written by SaveSecrets.
func (s *Service) GetSecrets(ctx context.Context, folderName string) (string, error) {
	if !s.Exists(folderName) {
		return "", notFound("app", folderName)
	}
	data, err := os.ReadFile(s.secretsPath(folderName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read secrets of %s: %w", folderName, err)
	}
	return string(data), nil
}

// SaveSecrets replaces the app's secrets with text, which must be in dotenv
// format. The runtime reads them when the process next starts.
func (s *Service) SaveSecrets(ctx context.Context, folderName, text string) error {
	if !s.Exists(folderName) {
		return notFound("app", folderName)
	}
	if _, err := env.Parse(text); err != nil {
		return model.NewValidationError("secrets", "Secrets must be KEY=value lines: "+err.Error())
	}
	if err := os.WriteFile(s.secretsPath(folderName), []byte(text), 0o600); err != nil {
		return fmt.Errorf("write secrets of %s: %w", folderName, err)
	}
	log.Info("Secrets saved", "folder_name", folderName)
	return nil
}

// SecretKeys lists the names of the app's secrets without their values.
func (s *Service) SecretKeys(folderName string) ([]string, error) {
	if !model.IsFolderName(folderName) {
		return nil, notFound("app", folderName)
	}
	data, err := os.ReadFile(s.secretsPath(folderName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, err
	}
	return env.Keys(string(data))
}

// OpenLog opens the app's log file for reading.
func (s *Service) OpenLog(ctx context.Context, folderName string) (*os.File, error) {
	if !s.Exists(folderName) {
		return nil, notFound("app", folderName)
	}
	f, err := os.Open(s.AppLogPath(folderName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, notFound("log", folderName)
		}
		return nil, err
	}
	return f, nil
}
