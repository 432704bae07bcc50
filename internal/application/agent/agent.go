package agent

import (
	"context"
	"time"

	"apphost/internal/application"
	"apphost/internal/application/command"
	"apphost/internal/application/command/sync_hosting"
	"apphost/internal/application/config"
	"apphost/internal/application/query"
	appservice "apphost/internal/domain/service/app"
	userservice "apphost/internal/domain/service/user"
	"apphost/internal/infra/gitolite"
	grpcserver "apphost/internal/infra/grpc/server"
	"apphost/internal/infra/http/api"
	"apphost/internal/infra/http/proxy"
	"apphost/internal/infra/pm2"
	badgerstore "apphost/internal/infra/store/badger"
	"apphost/pkg/cqrs"
	"apphost/pkg/files"
	"apphost/pkg/log"
	"apphost/pkg/metrics"
	"apphost/pkg/runner"
	"apphost/pkg/syncqueue"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

// Agent is the control plane: the lifecycle manager, the user store, the
// git hosting reconciler and the servers in front of them.
type Agent struct {
	config    *config.Config
	startTime time.Time

	db         *badgerstore.DB
	runner     runner.Runner
	users      *userservice.Service
	apps       *appservice.Service
	reconciler *gitolite.Reconciler
	queue      *syncqueue.Queue
	metrics    *metrics.Metrics

	commandBus *cqrs.DefaultCommandBus
	queryBus   *cqrs.DefaultQueryBus
	server     *api.Server
	health     *grpcserver.HealthServer
}

// NewAgent wires the control plane. Cancelling ctx shuts the buses down.
// The caller must Close the agent.
func NewAgent(ctx context.Context, cfg *config.Config) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := ensureDataDirs(cfg); err != nil {
		return nil, err
	}

	a := &Agent{
		config:    cfg,
		startTime: time.Now(),
		runner:    runner.NewClient(cfg.GetCommandLogsPath()),
	}

	var gatherer prometheus.Gatherer
	if cfg.IsFeatureEnabled(config.FeatureMetrics) {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		a.metrics = metrics.New(reg)
		metrics.RegisterHostGauges(reg, a.startTime, cfg.DataDir)
		gatherer = reg
	}

	db, err := badgerstore.Open(badgerstore.DefaultConfig(cfg.GetUsersStorePath()))
	if err != nil {
		return nil, log.Errorf("failed to open user store: %w", err)
	}
	a.db = db
	a.users = userservice.NewService(badgerstore.NewUserRepository(db))

	a.apps = newLifecycle(cfg, a.runner, a.users).WithMetrics(a.metrics)
	a.apps.OnChange = a.requestSync

	if cfg.IsFeatureEnabled(config.FeatureGitHosting) {
		a.reconciler = gitolite.NewReconciler(gitoliteConfig(cfg), a.users, a.apps, a.runner).WithMetrics(a.metrics)
		a.queue = syncqueue.New(a.sync)
		a.queue.OnCoalesce = a.metrics.Coalesced
	}

	// A nil *syncqueue.Queue must not reach the handlers as a non-nil interface.
	var enqueuer sync_hosting.Enqueuer
	if a.queue != nil {
		enqueuer = a.queue
	}

	a.commandBus = cqrs.NewCommandBus(ctx)
	if err := command.RegisterCommandHandlers(a.commandBus, a.apps, a.users, enqueuer, a.requestSync); err != nil {
		a.Close()
		return nil, err
	}

	a.queryBus = cqrs.NewQueryBus(ctx)
	if err := query.RegisterQueryHandlers(a.queryBus, a.apps, a.users); err != nil {
		a.Close()
		return nil, err
	}

	sessions := api.NewSessions(cfg.SessionSecret, cfg.SessionCookie, cfg.AppDomain, cfg.GetSessionTTL(), cfg.AppProtocol == "https")
	apps := proxy.New(cfg.AppDomain, a.apps, sessions.Identify(a.users)).
		StripCookie(sessions.CookieName()).
		WithMetrics(a.metrics)

	a.server = api.New(api.Options{
		Address:     cfg.ListenAddress,
		Sessions:    sessions,
		Users:       a.users,
		Commands:    a.commandBus,
		Queries:     a.queryBus,
		Proxy:       apps,
		Gatherer:    gatherer,
		SyncEnabled: a.queue != nil,
	})

	if cfg.GetHealthAddress() != "" {
		checks := map[string]grpcserver.Check{}
		if a.reconciler != nil {
			checks["reconciler"] = func() error { return a.reconciler.Status().LastErr }
		}
		a.health = grpcserver.NewHealthServer(checks)
	}

	return a, nil
}

func gitoliteConfig(cfg *config.Config) gitolite.Config {
	return gitolite.Config{
		AdminPath:        cfg.GitoliteAdminPath,
		KeydirPath:       cfg.GetGitoliteKeydir(),
		ConfPath:         cfg.GetGitoliteConfPath(),
		RepositoriesPath: cfg.GitoliteRepositoriesPath,
		Bin:              cfg.GitoliteBin,
	}
}

// newLifecycle builds the lifecycle manager on top of pm2. grants may be nil
// for callers that never create or delete apps.
func newLifecycle(cfg *config.Config, r runner.Runner, grants appservice.GrantStore) *appservice.Service {
	return appservice.NewService(cfg, pm2.NewSupervisor(cfg.PM2Bin, r), r, grants)
}

func (a *Agent) sync(ctx context.Context) error {
	_, err := a.reconciler.Sync(ctx)
	return err
}

// requestSync asks for a reconciliation without waiting for it.
func (a *Agent) requestSync() {
	if a.queue != nil {
		a.queue.Enqueue()
	}
}

// Run performs the startup routines and serves until ctx is done or one of
// the servers fails.
func (a *Agent) Run(ctx context.Context) error {
	if err := a.prepare(ctx); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.server.Run(ctx) })

	if a.health != nil {
		g.Go(func() error { return a.health.Run(ctx, a.config.GetHealthAddress()) })
	}

	if a.queue != nil {
		g.Go(func() error {
			a.queue.Run(ctx)
			return nil
		})
		g.Go(func() error {
			a.drive(ctx, a.config.GetSyncInterval())
			return nil
		})

		if a.config.IsFeatureEnabled(config.FeatureFSWatch) {
			watcher := files.NewWatcher(func(path string) {
				log.Debug("Data directory changed", "path", path)
				a.requestSync()
			}, a.config.GetAppsPath(), a.config.GetTemplatesPath())
			if err := watcher.Start(ctx); err != nil {
				log.Warn("Directory watcher disabled", "error", err)
			} else {
				defer watcher.Stop()
			}
		}
	}

	if a.config.ConfigPath != "" {
		configWatcher := application.NewConfigWatcher(a.config.ConfigPath, application.ApplyLogLevel(a.config))
		if err := configWatcher.Start(ctx); err != nil {
			log.Warn("Config watcher disabled", "error", err)
		} else {
			defer configWatcher.Stop()
		}
	}

	log.Info("Control plane started",
		"listen_address", a.config.ListenAddress,
		"app_domain", a.config.AppDomain,
		"git_hosting", a.queue != nil)

	return g.Wait()
}

// drive enqueues a reconciliation right away and then on every tick.
func (a *Agent) drive(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	a.requestSync()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.requestSync()
		}
	}
}

// Close waits for in-flight commands and queries, then closes the user store.
func (a *Agent) Close() {
	if a.commandBus != nil {
		a.commandBus.Shutdown()
		a.commandBus.WaitForCompletion()
	}
	if a.queryBus != nil {
		a.queryBus.Shutdown()
		a.queryBus.WaitForCompletion()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			log.Error("Failed to close user store", "error", err)
		}
		a.db = nil
	}
}
