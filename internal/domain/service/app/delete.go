package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"apphost/internal/domain/model"
	"apphost/internal/domain/service/util"
	"apphost/pkg/log"
)

// Delete removes the app's process and moves its working directory,
// descriptor and log file to the trash. The app is then revoked from every
// user. Nothing is deleted from disk.
func (s *Service) Delete(ctx context.Context, folderName string) (err error) {
	defer func() { s.metrics.Lifecycle("delete", err) }()

	if !model.IsFolderName(folderName) {
		return notFound("app", folderName)
	}
	if !s.Exists(folderName) {
		if _, statErr := os.Stat(s.DescriptorPath(folderName)); errors.Is(statErr, os.ErrNotExist) {
			return notFound("app", folderName)
		}
	}
	log.Info("Deleting app", "folder_name", folderName)

	if err := s.supervisor.Delete(ctx, s.ProcessName(folderName)); err != nil {
		return err
	}

	now := s.now()
	trashDir := s.config.GetTrashPath()
	for _, path := range s.artifactPaths(folderName) {
		dest, err := util.MoveToTrash(trashDir, path, now)
		if err != nil {
			return fmt.Errorf("move %s to trash: %w", path, err)
		}
		if dest != "" {
			log.Debug("Moved to trash", "folder_name", folderName, "from", path, "to", dest)
		}
	}

	if err := s.grants.RemoveAppFromAllUsers(ctx, folderName); err != nil {
		return fmt.Errorf("revoke %s from users: %w", folderName, err)
	}

	log.Info("App deleted", "folder_name", folderName)
	s.changed()
	return nil
}

func (s *Service) artifactPaths(folderName string) []string {
	return []string{
		s.WorkingDir(folderName),
		s.DescriptorPath(folderName),
		s.AppLogPath(folderName),
	}
}
