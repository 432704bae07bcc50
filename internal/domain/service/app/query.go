package app

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"

	"apphost/internal/domain/model"
	"apphost/pkg/log"
)

// GetApp assembles the view of one app.
func (s *Service) GetApp(ctx context.Context, folderName string) (*model.AppView, error) {
	if !s.Exists(folderName) {
		return nil, notFound("app", folderName)
	}
	eco, err := s.readEcosystem(folderName)
	if err != nil {
		return nil, err
	}
	port, err := eco.Port()
	if err != nil {
		return nil, err
	}

	status, err := s.supervisor.Describe(ctx, eco.Name)
	if err != nil {
		log.Warn("Failed to describe process", "folder_name", folderName, "error", err)
		status = model.StatusUnknown
	}

	keys, err := s.SecretKeys(folderName)
	if err != nil {
		log.Warn("Failed to read secret keys", "folder_name", folderName, "error", err)
		keys = []string{}
	}

	return &model.AppView{
		FolderName:   folderName,
		Name:         s.appName(folderName),
		GitRemoteURL: s.GitRemoteURL(folderName),
		URL:          s.config.AppProtocol + "://" + folderName + "." + s.config.AppDomain,
		InternalURL:  "http://localhost:" + strconv.Itoa(port),
		Port:         port,
		ProcessName:  eco.Name,
		Status:       status,
		SecretKeys:   keys,
	}, nil
}

// ListApps returns the apps viewer may access. Apps that cannot be read are
// logged and left out.
func (s *Service) ListApps(ctx context.Context, viewer *model.User) ([]model.AppView, error) {
	folders, err := s.ListFolders(ctx)
	if err != nil {
		return nil, err
	}

	apps := make([]model.AppView, 0, len(folders))
	for _, folder := range folders {
		if !viewer.MayAccess(folder) {
			continue
		}
		view, err := s.GetApp(ctx, folder)
		if err != nil {
			log.Warn("Skipping unreadable app", "folder_name", folder, "error", err)
			continue
		}
		apps = append(apps, *view)
	}
	return apps, nil
}

// appName reads the display name from the identity marker.
func (s *Service) appName(folderName string) string {
	data, err := os.ReadFile(s.appNamePath(folderName))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn("Failed to read app name", "folder_name", folderName, "error", err)
		}
		return model.SentenceCase(folderName)
	}
	name := strings.TrimSpace(string(data))
	if name == "" {
		return model.SentenceCase(folderName)
	}
	return name
}
