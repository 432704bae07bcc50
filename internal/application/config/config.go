package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"apphost/pkg/log"

	"github.com/joho/godotenv"
	"github.com/kballard/go-shellquote"
)

const (
	// DefaultConfigPath is used when no --config flag is given.
	DefaultConfigPath = "apphost.config.json"
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "APPHOST_"

	defaultDataDir           = "./data"
	defaultLogLevel          = "info"
	defaultListenAddress     = ":3000"
	defaultHealthAddress     = "127.0.0.1:50051"
	defaultAppProtocol       = "http"
	defaultSessionCookie     = "apphost_session"
	defaultSessionTTL        = 7 * 24 * time.Hour
	defaultGitoliteBin       = "/home/git/bin/gitolite"
	defaultRepositoriesPath  = "/home/git/repositories"
	defaultSyncInterval      = 10 * time.Second
	defaultPortRangeStart    = 10000
	defaultPortRangeEnd      = 65535
	defaultInstallCommand    = "yarn install --production"
	defaultBuildCommand      = "yarn run -s build"
	defaultPM2Bin            = "pm2"
	defaultReservedProcesses = "apphost"

	// Data folders
	appsFolder         = "apps"
	templatesFolder    = "app-templates"
	ecosystemsFolder   = "user-app-ecosystems"
	logsFolder         = "logs"
	trashFolder        = "trash"
	storesFolder       = "stores"
	runtimeFolder      = "runtime"
	defaultTemplateDir = "default-app-template"
	usersStore         = "users"
	gitoliteKeydir     = "apphost"
)

// Config holds the control plane configuration.
type Config struct {
	DataDir       string `json:"data_dir,omitempty"`
	LogLevel      string `json:"log_level,omitempty"`
	ListenAddress string `json:"listen_address,omitempty"`
	// HealthAddress is where the gRPC health service listens. "off" disables it.
	HealthAddress string `json:"health_address,omitempty"`

	AppDomain     string `json:"app_domain,omitempty"`
	AppProtocol   string `json:"app_protocol,omitempty"`
	SessionSecret string `json:"session_secret,omitempty"`
	SessionCookie string `json:"session_cookie,omitempty"`
	SessionTTL    string `json:"session_ttl,omitempty"`

	GitSSHUser               string `json:"git_ssh_user,omitempty"`
	GitSSHHost               string `json:"git_ssh_host,omitempty"`
	GitoliteAdminPath        string `json:"gitolite_admin_path,omitempty"`
	GitoliteRepositoriesPath string `json:"gitolite_repositories_path,omitempty"`
	GitoliteBin              string `json:"gitolite_bin,omitempty"`
	SyncInterval             string `json:"sync_interval,omitempty"`

	PortRangeStart       int      `json:"port_range_start,omitempty"`
	PortRangeEnd         int      `json:"port_range_end,omitempty"`
	ReservedProcessNames []string `json:"reserved_process_names,omitempty"`

	InstallCommand string `json:"install_command,omitempty"`
	BuildCommand   string `json:"build_command,omitempty"`
	PM2Bin         string `json:"pm2_bin,omitempty"`
	// RedeployCommand is invoked by local post-receive hooks with the folder
	// name appended. Defaults to this executable's redeploy command.
	RedeployCommand string `json:"redeploy_command,omitempty"`
	// Development switches git remote URLs to local paths.
	Development bool `json:"development,omitempty"`

	Features map[string]bool `json:"features"`

	// WorkDir is the directory the control plane was started from. Hooks
	// change into it before running the redeploy command.
	WorkDir string `json:"-"`
	// ConfigPath is the absolute path the config was loaded from.
	ConfigPath string `json:"-"`
}

// prepareConfig applies defaults and resolves relative paths.
func prepareConfig(cfg *Config) {
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir
	}
	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	if cfg.WorkDir == "" {
		if wd, err := os.Getwd(); err == nil {
			cfg.WorkDir = wd
		}
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = defaultListenAddress
	}
	if cfg.HealthAddress == "" {
		cfg.HealthAddress = defaultHealthAddress
	}
	if cfg.AppProtocol == "" {
		cfg.AppProtocol = defaultAppProtocol
	}
	if cfg.SessionCookie == "" {
		cfg.SessionCookie = defaultSessionCookie
	}
	if cfg.GitoliteBin == "" {
		cfg.GitoliteBin = defaultGitoliteBin
	}
	if cfg.GitoliteRepositoriesPath == "" {
		cfg.GitoliteRepositoriesPath = defaultRepositoriesPath
	}
	if cfg.PortRangeStart <= 0 {
		cfg.PortRangeStart = defaultPortRangeStart
	}
	if cfg.PortRangeEnd <= 0 || cfg.PortRangeEnd > defaultPortRangeEnd {
		cfg.PortRangeEnd = defaultPortRangeEnd
	}
	if len(cfg.ReservedProcessNames) == 0 {
		cfg.ReservedProcessNames = []string{defaultReservedProcesses}
	}
	if cfg.InstallCommand == "" {
		cfg.InstallCommand = defaultInstallCommand
	}
	if cfg.BuildCommand == "" {
		cfg.BuildCommand = defaultBuildCommand
	}
	if cfg.PM2Bin == "" {
		cfg.PM2Bin = defaultPM2Bin
	}

	cfg.Features = validateAndMergeFeatures(cfg.Features)
}

// validateAndMergeFeatures keeps only known features and fills in defaults.
func validateAndMergeFeatures(configFeatures map[string]bool) map[string]bool {
	merged := make(map[string]bool, len(DefaultFeatureValues))
	for feature, defaultValue := range DefaultFeatureValues {
		if value, exists := configFeatures[feature]; exists {
			merged[feature] = value
		} else {
			merged[feature] = defaultValue
		}
	}
	return merged
}

// LoadConfig reads .env from the working directory, then the JSON config
// file at configPath if it exists, then APPHOST_* environment overrides.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	cfg := &Config{}
	if abs, err := filepath.Abs(configPath); err == nil {
		cfg.ConfigPath = abs
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", configPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", configPath, err)
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}

	prepareConfig(cfg)
	return cfg, nil
}

// applyEnv overrides cfg with APPHOST_<FIELD> variables.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"DATA_DIR":                   &cfg.DataDir,
		"LOG_LEVEL":                  &cfg.LogLevel,
		"LISTEN_ADDRESS":             &cfg.ListenAddress,
		"HEALTH_ADDRESS":             &cfg.HealthAddress,
		"APP_DOMAIN":                 &cfg.AppDomain,
		"APP_PROTOCOL":               &cfg.AppProtocol,
		"SESSION_SECRET":             &cfg.SessionSecret,
		"SESSION_COOKIE":             &cfg.SessionCookie,
		"SESSION_TTL":                &cfg.SessionTTL,
		"GIT_SSH_USER":               &cfg.GitSSHUser,
		"GIT_SSH_HOST":               &cfg.GitSSHHost,
		"GITOLITE_ADMIN_PATH":        &cfg.GitoliteAdminPath,
		"GITOLITE_REPOSITORIES_PATH": &cfg.GitoliteRepositoriesPath,
		"GITOLITE_BIN":               &cfg.GitoliteBin,
		"SYNC_INTERVAL":              &cfg.SyncInterval,
		"INSTALL_COMMAND":            &cfg.InstallCommand,
		"BUILD_COMMAND":              &cfg.BuildCommand,
		"PM2_BIN":                    &cfg.PM2Bin,
		"REDEPLOY_COMMAND":           &cfg.RedeployCommand,
	}
	for key, field := range strs {
		if v, ok := lookup(EnvPrefix + key); ok {
			*field = v
		}
	}

	ints := map[string]*int{
		"PORT_RANGE_START": &cfg.PortRangeStart,
		"PORT_RANGE_END":   &cfg.PortRangeEnd,
	}
	for key, field := range ints {
		if v, ok := lookup(EnvPrefix + key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s%s %q: %w", EnvPrefix, key, v, err)
			}
			*field = n
		}
	}

	if v, ok := lookup(EnvPrefix + "DEVELOPMENT"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sDEVELOPMENT %q: %w", EnvPrefix, v, err)
		}
		cfg.Development = b
	}

	if v, ok := lookup(EnvPrefix + "RESERVED_PROCESS_NAMES"); ok {
		cfg.ReservedProcessNames = strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' })
	}

	for feature := range DefaultFeatureValues {
		key := EnvPrefix + "FEATURE_" + strings.ToUpper(feature)
		if v, ok := lookup(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", key, v, err)
			}
			if cfg.Features == nil {
				cfg.Features = map[string]bool{}
			}
			cfg.Features[feature] = b
		}
	}
	return nil
}

// Validate checks the settings required to serve traffic.
func (c *Config) Validate() error {
	var missing []string
	if c.SessionSecret == "" {
		missing = append(missing, "session_secret")
	}
	if c.AppDomain == "" {
		missing = append(missing, "app_domain")
	}
	if c.IsFeatureEnabled(FeatureGitHosting) && c.GitoliteAdminPath == "" {
		missing = append(missing, "gitolite_admin_path")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	if c.PortRangeStart > c.PortRangeEnd {
		return fmt.Errorf("invalid port range %d-%d", c.PortRangeStart, c.PortRangeEnd)
	}
	return nil
}

// SaveConfig writes the configuration as JSON, omitting default features.
func SaveConfig(config *Config, configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return log.Errorf("failed to create config directory: %w", err)
	}

	prepareConfig(config)

	configToSave := *config
	filtered := make(map[string]bool)
	for feature, value := range config.Features {
		if defaultValue, exists := DefaultFeatureValues[feature]; !exists || value != defaultValue {
			filtered[feature] = value
		}
	}
	configToSave.Features = filtered

	data, err := json.MarshalIndent(configToSave, "", "  ")
	if err != nil {
		return log.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return log.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Warn("Invalid duration in config, using default", "value", raw, "default", fallback.String())
		return fallback
	}
	return d
}

// GetHealthAddress returns the gRPC health listen address, or "" when disabled.
func (c *Config) GetHealthAddress() string {
	if c.HealthAddress == "off" {
		return ""
	}
	return c.HealthAddress
}

func (c *Config) GetSessionTTL() time.Duration {
	return parseDuration(c.SessionTTL, defaultSessionTTL)
}

func (c *Config) GetSyncInterval() time.Duration {
	return parseDuration(c.SyncInterval, defaultSyncInterval)
}

// buildPath constructs a path below the data directory.
func (c *Config) buildPath(components ...string) string {
	parts := append([]string{c.DataDir}, components...)
	return filepath.Join(parts...)
}

func (c *Config) GetAppsPath() string            { return c.buildPath(appsFolder) }
func (c *Config) GetTemplatesPath() string       { return c.buildPath(templatesFolder) }
func (c *Config) GetEcosystemsPath() string      { return c.buildPath(ecosystemsFolder) }
func (c *Config) GetLogsPath() string            { return c.buildPath(logsFolder) }
func (c *Config) GetTrashPath() string           { return c.buildPath(trashFolder) }
func (c *Config) GetStoresPath() string          { return c.buildPath(storesFolder) }
func (c *Config) GetUsersStorePath() string      { return c.buildPath(storesFolder, usersStore) }
func (c *Config) GetRuntimePath() string         { return c.buildPath(runtimeFolder) }
func (c *Config) GetDefaultTemplatePath() string { return c.buildPath(defaultTemplateDir) }
func (c *Config) GetCommandLogsPath() string     { return c.buildPath(logsFolder, "commands") }

// GetDataDirs lists every directory the control plane expects to exist.
func (c *Config) GetDataDirs() []string {
	return []string{
		c.DataDir,
		c.GetAppsPath(),
		c.GetTemplatesPath(),
		c.GetEcosystemsPath(),
		c.GetLogsPath(),
		c.GetTrashPath(),
		c.GetStoresPath(),
		c.GetRuntimePath(),
	}
}

// GetGitoliteKeydir is the keydir subtree owned by the reconciler.
func (c *Config) GetGitoliteKeydir() string {
	return filepath.Join(c.GitoliteAdminPath, "keydir", gitoliteKeydir)
}

func (c *Config) GetGitoliteConfPath() string {
	return filepath.Join(c.GitoliteAdminPath, "conf", "gitolite.conf")
}

// GetRedeployCommand returns the argv local hooks run, without the folder
// argument. A configured command is split with shell quoting rules.
func (c *Config) GetRedeployCommand() []string {
	if c.RedeployCommand != "" {
		if argv, err := shellquote.Split(c.RedeployCommand); err == nil && len(argv) > 0 {
			return argv
		}
		return strings.Fields(c.RedeployCommand)
	}
	exe, err := os.Executable()
	if err != nil {
		exe = "apphost"
	}
	argv := []string{exe, "redeploy"}
	if c.ConfigPath != "" {
		argv = append(argv, "--config", c.ConfigPath)
	}
	return argv
}

func (c *Config) GetInstallCommand() []string { return strings.Fields(c.InstallCommand) }
func (c *Config) GetBuildCommand() []string   { return strings.Fields(c.BuildCommand) }
