// Package gitolite keeps a gitolite installation in line with the users,
// apps and templates apphost knows about. Every run derives the full
// desired state from scratch, so runs can be repeated, skipped or merged
// without losing anything.
package gitolite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"apphost/internal/domain/model"
	"apphost/internal/domain/repository"
	"apphost/internal/infra/git"
	"apphost/pkg/log"
	"apphost/pkg/metrics"
	"apphost/pkg/runner"
)

const commitMessage = "Update"

// Config locates the gitolite installation.
type Config struct {
	// AdminPath is a clone of the gitolite-admin repository.
	AdminPath string
	// KeydirPath is the keydir subtree owned by apphost.
	KeydirPath string
	// ConfPath is the gitolite.conf file inside AdminPath.
	ConfPath string
	// RepositoriesPath holds the bare repositories gitolite serves.
	RepositoriesPath string
	// Bin is the gitolite binary. Its push subcommand runs git push with
	// gitolite's environment.
	Bin string
}

// UserSource lists every user.
type UserSource interface {
	List(ctx context.Context) ([]model.User, error)
}

// Result describes what one run changed.
type Result struct {
	KeysChanged bool     `json:"keysChanged"`
	Committed   bool     `json:"committed"`
	Pushed      bool     `json:"pushed"`
	Removed     []string `json:"removed"`
	Initialized []string `json:"initialized"`
}

// Changed reports whether the run mutated anything.
func (r *Result) Changed() bool {
	return r.KeysChanged || r.Committed || r.Pushed || len(r.Removed) > 0 || len(r.Initialized) > 0
}

// Status is the outcome of the most recent run.
type Status struct {
	LastRun time.Time
	LastErr error
	Runs    int
}

// Reconciler drives gitolite's access rules, keys and repositories. Sync
// must not run concurrently with itself; callers serialize it through a
// single-worker queue.
type Reconciler struct {
	cfg     Config
	users   UserSource
	catalog repository.AppCatalog
	runner  runner.Runner
	metrics *metrics.Metrics

	mu     sync.RWMutex
	status Status
}

func NewReconciler(cfg Config, users UserSource, catalog repository.AppCatalog, r runner.Runner) *Reconciler {
	return &Reconciler{cfg: cfg, users: users, catalog: catalog, runner: r}
}

func (r *Reconciler) WithMetrics(m *metrics.Metrics) *Reconciler {
	r.metrics = m
	return r
}

// Status returns the outcome of the most recent run.
func (r *Reconciler) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// Sync runs one reconciliation. Keys are written before the access rules
// that reference them, and the rules are pushed before repositories are
// removed or initialized. The first failing step aborts the run.
func (r *Reconciler) Sync(ctx context.Context) (res *Result, err error) {
	started := time.Now()
	defer func() {
		r.metrics.ObserveSync(started, err)
		r.mu.Lock()
		r.status = Status{LastRun: started, LastErr: err, Runs: r.status.Runs + 1}
		r.mu.Unlock()

		if err != nil {
			log.Error("Git hosting sync failed", "error", err, "duration", time.Since(started).String())
			return
		}
		if res.Changed() {
			log.Info("Git hosting synced",
				"committed", res.Committed,
				"pushed", res.Pushed,
				"removed", res.Removed,
				"initialized", res.Initialized)
		} else {
			log.Debug("Git hosting already in sync")
		}
	}()

	users, err := r.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	apps, err := r.catalog.ListFolders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list apps: %w", err)
	}
	templates, err := r.catalog.ListTemplateFolders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}

	res = &Result{Removed: []string{}, Initialized: []string{}}

	if res.KeysChanged, err = syncKeydir(r.cfg.KeydirPath, KeyFiles(users)); err != nil {
		return nil, err
	}
	if _, err := writeIfChanged(r.cfg.ConfPath, GenerateConfig(users, apps, templates), 0o644); err != nil {
		return nil, err
	}

	if res.Committed, res.Pushed, err = r.publish(ctx); err != nil {
		return nil, err
	}

	if res.Removed, err = r.removeStaleRepos(apps, templates); err != nil {
		return nil, err
	}

	if res.Initialized, err = r.initializeRepos(ctx, apps, templates); err != nil {
		return nil, err
	}
	return res, nil
}

// publish commits admin repository changes and pushes them to gitolite,
// which reloads its rules on push.
func (r *Reconciler) publish(ctx context.Context) (committed, pushed bool, err error) {
	admin := git.NewRepository(r.cfg.AdminPath)

	dirty, err := admin.IsDirty(ctx)
	if err != nil {
		return false, false, err
	}
	if dirty {
		if err := admin.AddAll(ctx); err != nil {
			return false, false, err
		}
		if err := admin.Commit(ctx, commitMessage); err != nil {
			return false, false, err
		}
		committed = true
	}

	if err := admin.Fetch(ctx); err != nil {
		return committed, false, err
	}
	ahead, err := admin.IsAhead(ctx)
	if err != nil {
		return committed, false, err
	}
	if !ahead {
		return committed, false, nil
	}

	if err := r.gitolitePush(ctx, r.cfg.AdminPath, "origin"); err != nil {
		return committed, false, err
	}
	return committed, true, nil
}

// removeStaleRepos deletes repositories that belong to no app or template.
// System repositories are never touched.
func (r *Reconciler) removeStaleRepos(apps, templates []string) ([]string, error) {
	entries, err := os.ReadDir(r.cfg.RepositoriesPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("read repositories: %w", err)
	}

	wanted := make(map[string]bool, len(apps)+len(templates))
	for _, folder := range apps {
		wanted[model.AppRepoName(folder)+".git"] = true
	}
	for _, folder := range templates {
		wanted[model.TemplateRepoName(folder)+".git"] = true
	}

	removed := []string{}
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || model.IsSystemRepo(name) || wanted[name] {
			continue
		}
		if err := os.RemoveAll(filepath.Join(r.cfg.RepositoriesPath, name)); err != nil {
			return removed, fmt.Errorf("remove repository %s: %w", name, err)
		}
		removed = append(removed, name)
	}
	return removed, nil
}

type managedRepo struct {
	folder     string
	repoName   string
	workingDir string
	hook       string
}

// initializeRepos pushes the first commit into hosted repositories that
// have none and refreshes their post-receive hooks. Repositories gitolite
// has not created yet are left for a later run.
func (r *Reconciler) initializeRepos(ctx context.Context, apps, templates []string) ([]string, error) {
	repos := make([]managedRepo, 0, len(apps)+len(templates))
	for _, folder := range apps {
		repos = append(repos, managedRepo{
			folder:     folder,
			repoName:   model.AppRepoName(folder),
			workingDir: r.catalog.WorkingDir(folder),
			hook:       r.catalog.PostReceiveScript(folder),
		})
	}
	for _, folder := range templates {
		repos = append(repos, managedRepo{
			folder:     folder,
			repoName:   model.TemplateRepoName(folder),
			workingDir: r.catalog.TemplateDir(folder),
			hook:       r.catalog.TemplatePostReceiveScript(folder),
		})
	}

	initialized := []string{}
	for _, repo := range repos {
		dir := filepath.Join(r.cfg.RepositoriesPath, repo.repoName+".git")
		if _, err := os.Stat(dir); err != nil {
			log.Debug("Hosted repository not created yet", "repo", repo.repoName)
			continue
		}

		if !git.NewRepository(dir).HasCommits(ctx) {
			if err := r.gitolitePush(ctx, repo.workingDir, dir); err != nil {
				return initialized, fmt.Errorf("initialize %s: %w", repo.repoName, err)
			}
			initialized = append(initialized, repo.repoName)
		}

		if _, err := writeIfChanged(filepath.Join(dir, "hooks", "post-receive"), repo.hook, 0o755); err != nil {
			return initialized, err
		}
	}
	return initialized, nil
}

// gitolitePush runs "<gitolite> push <remote> master" in dir.
func (r *Reconciler) gitolitePush(ctx context.Context, dir, remote string) error {
	args := []string{"push", remote, git.Branch}
	res := r.runner.RunSync(ctx, runner.Command{
		ID:   "gitolite-push",
		Dir:  dir,
		Name: r.cfg.Bin,
		Args: args,
	})
	if res.Error != nil {
		return &model.ToolError{
			Tool:     filepath.Base(r.cfg.Bin),
			Args:     args,
			ExitCode: res.ExitCode,
			Output:   strings.TrimSpace(res.Output),
			Err:      res.Error,
		}
	}
	return nil
}
