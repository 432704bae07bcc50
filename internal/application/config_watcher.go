package application

import (
	"context"

	"apphost/internal/application/config"
	"apphost/pkg/files"
	"apphost/pkg/log"
)

// ConfigWatcher reloads the configuration file when it changes.
type ConfigWatcher struct {
	fileWatcher *files.Watcher
	onChange    func(*config.Config)
}

func NewConfigWatcher(configPath string, onChange func(*config.Config)) *ConfigWatcher {
	cw := &ConfigWatcher{onChange: onChange}
	cw.fileWatcher = files.NewFileWatcher(configPath, cw.handleFileChange)
	return cw
}

// Start begins watching the configuration file for changes
func (w *ConfigWatcher) Start(ctx context.Context) error {
	log.Info("Config watcher starting", "paths", w.fileWatcher.Paths())
	return w.fileWatcher.Start(ctx)
}

// Stop stops watching the configuration file
func (w *ConfigWatcher) Stop() {
	w.fileWatcher.Stop()
}

func (w *ConfigWatcher) handleFileChange(filePath string) {
	log.Info("Configuration file changed, reloading", "path", filePath)

	newConfig, err := config.LoadConfig(filePath)
	if err != nil {
		log.Error("Failed to load new configuration", "error", err)
		return
	}

	if w.onChange != nil {
		w.onChange(newConfig)
	}
}

// ApplyLogLevel is the default onChange handler: only the log level is
// applied at runtime, everything else needs a restart.
func ApplyLogLevel(current *config.Config) func(*config.Config) {
	return func(next *config.Config) {
		if next.LogLevel == current.LogLevel {
			return
		}
		log.Info("Applying new log level", "from", current.LogLevel, "to", next.LogLevel)
		log.InitLog(next.LogLevel)
		current.LogLevel = next.LogLevel
	}
}
