// Package app is the application lifecycle manager. It owns every
// application's working directory, process descriptor, secrets file and
// post-receive hook, and drives the process supervisor.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"apphost/internal/application/config"
	"apphost/internal/domain/model"
	"apphost/internal/domain/repository"
	"apphost/internal/infra/assets"
	"apphost/pkg/metrics"
	"apphost/pkg/ports"
	"apphost/pkg/retry"
	"apphost/pkg/runner"
)

const (
	appNameFile      = ".app-name"
	secretsFile      = ".env"
	packageJSONFile  = "package.json"
	entryFile        = "src/index"
	descriptorSuffix = ".ecosystem.app.yml"
	initialCommit    = "Initial commit"
)

// GrantStore updates the access grants stored on users.
type GrantStore interface {
	RestrictAppToUsers(ctx context.Context, folderName string, userIDs []string) error
	RemoveAppFromAllUsers(ctx context.Context, folderName string) error
}

// PortAllocator hands out free TCP ports.
type PortAllocator interface {
	Allocate(exclude ...int) (int, error)
}

// Service implements the application lifecycle.
type Service struct {
	config     *config.Config
	supervisor repository.ProcessSupervisor
	runner     runner.Runner
	grants     GrantStore
	ports      PortAllocator
	metrics    *metrics.Metrics

	httpClient *http.Client
	health     retry.Options
	now        func() time.Time

	// OnChange is called after applications or templates are created or
	// removed. It must not block.
	OnChange func()
}

var _ repository.AppCatalog = (*Service)(nil)

// NewService creates a lifecycle manager. Ports are allocated from the
// configured range.
func NewService(cfg *config.Config, supervisor repository.ProcessSupervisor, r runner.Runner, grants GrantStore) *Service {
	return &Service{
		config:     cfg,
		supervisor: supervisor,
		runner:     r,
		grants:     grants,
		ports:      ports.NewAllocator(cfg.PortRangeStart, cfg.PortRangeEnd),
		httpClient: &http.Client{Timeout: 2 * time.Second},
		health:     retry.DefaultOptions(),
		now:        time.Now,
	}
}

// WithPorts replaces the port allocator.
func (s *Service) WithPorts(p PortAllocator) *Service {
	s.ports = p
	return s
}

// WithHealthRetry replaces the retry budget used by VerifyHealthy.
func (s *Service) WithHealthRetry(opts retry.Options) *Service {
	s.health = opts
	return s
}

func (s *Service) WithMetrics(m *metrics.Metrics) *Service {
	s.metrics = m
	return s
}

func (s *Service) changed() {
	if s.OnChange != nil {
		s.OnChange()
	}
}

func (s *Service) gitHosting() bool {
	return s.config.IsFeatureEnabled(config.FeatureGitHosting)
}

func (s *Service) WorkingDir(folderName string) string {
	return filepath.Join(s.config.GetAppsPath(), folderName)
}

func (s *Service) TemplateDir(folderName string) string {
	return filepath.Join(s.config.GetTemplatesPath(), folderName)
}

// DescriptorPath is the process file the supervisor starts the app from.
func (s *Service) DescriptorPath(folderName string) string {
	return filepath.Join(s.config.GetEcosystemsPath(), folderName+descriptorSuffix)
}

// AppLogPath is where the supervisor writes the app's output.
func (s *Service) AppLogPath(folderName string) string {
	return filepath.Join(s.config.GetLogsPath(), folderName+".log")
}

func (s *Service) secretsPath(folderName string) string {
	return filepath.Join(s.WorkingDir(folderName), secretsFile)
}

func (s *Service) appNamePath(folderName string) string {
	return filepath.Join(s.WorkingDir(folderName), appNameFile)
}

func (s *Service) hookPath(folderName string) string {
	return filepath.Join(s.WorkingDir(folderName), ".git", "hooks", "post-receive")
}

func (s *Service) runtimeScript() string {
	return filepath.Join(s.config.GetRuntimePath(), assets.RuntimeScript)
}

// ProcessName is the supervisor name of the app.
func (s *Service) ProcessName(folderName string) string {
	return model.ProcessName(folderName, s.config.ReservedProcessNames)
}

// GitRemoteURL is where users push the app's code to.
func (s *Service) GitRemoteURL(folderName string) string {
	if s.config.Development {
		return filepath.Join(s.WorkingDir(folderName), ".git")
	}
	return s.sshRemote(model.AppRepoName(folderName))
}

// TemplateRemoteURL is where admins push a template's code to.
func (s *Service) TemplateRemoteURL(folderName string) string {
	if s.config.Development {
		return filepath.Join(s.TemplateDir(folderName), ".git")
	}
	return s.sshRemote(model.TemplateRepoName(folderName))
}

func (s *Service) sshRemote(repoName string) string {
	return fmt.Sprintf("%s@%s:%s.git", s.config.GitSSHUser, s.config.GitSSHHost, repoName)
}

// Exists reports whether an application with folderName has a working
// directory. Names that are not folder names never exist.
func (s *Service) Exists(folderName string) bool {
	if !model.IsFolderName(folderName) {
		return false
	}
	info, err := os.Stat(s.WorkingDir(folderName))
	return err == nil && info.IsDir()
}

func (s *Service) ListFolders(ctx context.Context) ([]string, error) {
	return listDirs(s.config.GetAppsPath())
}

func (s *Service) templateExists(folderName string) bool {
	if !model.IsFolderName(folderName) {
		return false
	}
	info, err := os.Stat(s.TemplateDir(folderName))
	return err == nil && info.IsDir()
}

func (s *Service) ListTemplateFolders(ctx context.Context) ([]string, error) {
	return listDirs(s.config.GetTemplatesPath())
}

// listDirs returns the sorted names of the directories in dir. A missing
// dir has no entries.
func listDirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func notFound(kind, folderName string) error {
	return fmt.Errorf("%s %q: %w", kind, folderName, model.ErrNotFound)
}
