package config

const (
	// FeatureGitHosting delegates git access to gitolite and turns on the reconciler.
	FeatureGitHosting = "git_hosting"
	// FeatureHealthChecks polls apps after create and redeploy.
	FeatureHealthChecks = "health_checks"
	// FeatureFSWatch nudges the reconciler when app or template dirs change.
	FeatureFSWatch = "fs_watch"
	FeatureMetrics = "metrics"
)

// DefaultFeatureValues defines the default values for each feature
var DefaultFeatureValues = map[string]bool{
	FeatureGitHosting:   false,
	FeatureHealthChecks: true,
	FeatureFSWatch:      true,
	FeatureMetrics:      true,
}

// IsFeatureEnabled checks if a feature is enabled in the configuration.
func (c *Config) IsFeatureEnabled(feature string) bool {
	value, exists := c.Features[feature]
	if !exists {
		return DefaultFeatureValues[feature]
	}
	return value
}
