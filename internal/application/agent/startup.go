package agent

import (
	"context"
	"os"

	"apphost/internal/application/config"
	"apphost/internal/infra/assets"
	"apphost/pkg/capabilities"
	"apphost/pkg/embedded"
	"apphost/pkg/log"
)

func ensureDataDirs(cfg *config.Config) error {
	for _, dir := range cfg.GetDataDirs() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return log.Errorf("failed to create data directory %s: %w", dir, err)
		}
	}
	return nil
}

// materializeAssets writes the process runtime, replacing whatever is on
// disk, and the default template, keeping local edits to it.
func materializeAssets(cfg *config.Config) error {
	if err := embedded.NewManager(assets.Runtime(), cfg.GetRuntimePath()).SyncFiles(); err != nil {
		return log.Errorf("failed to write runtime: %w", err)
	}

	template := embedded.NewManager(assets.DefaultTemplate(), cfg.GetDefaultTemplatePath())
	template.KeepExisting = true
	if err := template.SyncFiles(); err != nil {
		return log.Errorf("failed to write default template: %w", err)
	}
	return nil
}

// prepare runs once before the servers start. Only missing assets are
// fatal; app start and health failures are logged.
func (a *Agent) prepare(ctx context.Context) error {
	if err := materializeAssets(a.config); err != nil {
		return err
	}

	logCapabilities(ctx, capabilities.NewCapabilityFactory(a.runner, a.config.PM2Bin))

	if err := a.apps.RecreateAll(ctx); err != nil {
		log.Error("Some apps could not be started", "error", err)
	}

	if a.config.IsFeatureEnabled(config.FeatureHealthChecks) {
		go a.checkAll(ctx)
	}

	if !a.config.IsFeatureEnabled(config.FeatureGitHosting) {
		if err := a.apps.WriteAllHooks(ctx); err != nil {
			log.Error("Failed to write post-receive hooks", "error", err)
		}
	}
	return nil
}

func (a *Agent) checkAll(ctx context.Context) {
	folders, err := a.apps.ListFolders(ctx)
	if err != nil {
		log.Warn("Skipping startup health checks", "error", err)
		return
	}
	for _, folder := range folders {
		if ctx.Err() != nil {
			return
		}
		a.apps.CheckHealth(ctx, folder)
	}
}

func logCapabilities(ctx context.Context, factory *capabilities.CapabilityFactory) {
	factory.Detect(ctx)
	for _, c := range factory.GetAllCapabilities() {
		if !c.IsAvailable() {
			log.Warn("Required tool not found", "tool", c.Name())
			continue
		}
		if tool, ok := c.(*capabilities.ToolCapability); ok && !tool.MeetsMinimum() {
			log.Warn("Tool version is too old",
				"tool", c.Name(),
				"version", c.Version(),
				"minimum", tool.MinVersion())
			continue
		}
		log.Debug("Tool detected", "tool", c.Name(), "version", c.Version())
	}
	log.Info("Host capabilities", "capabilities", factory.ToMap())
}
