package capabilities

import (
	"context"
	"sync"

	"apphost/pkg/runner"
	"apphost/pkg/version"
)

// ToolCapability detects a command line tool by running "<bin> --version".
type ToolCapability struct {
	name       string
	bin        string
	minVersion string
	runner     runner.Runner

	mu        sync.RWMutex
	version   string
	available bool
}

// NewToolCapability creates a probe. minVersion may be empty.
func NewToolCapability(name, bin, minVersion string, r runner.Runner) *ToolCapability {
	return &ToolCapability{name: name, bin: bin, minVersion: minVersion, runner: r}
}

// Name returns the name of the capability
func (c *ToolCapability) Name() string {
	return c.name
}

// Version returns the version of the capability
func (c *ToolCapability) Version() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// IsAvailable reports whether the last Detect found the tool.
func (c *ToolCapability) IsAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.available
}

// MinVersion is the oldest supported version, or "".
func (c *ToolCapability) MinVersion() string {
	return c.minVersion
}

// MeetsMinimum reports whether the detected version is supported.
func (c *ToolCapability) MeetsMinimum() bool {
	if !c.IsAvailable() {
		return false
	}
	return c.minVersion == "" || version.AtLeast(c.Version(), c.minVersion)
}

func (c *ToolCapability) Detect(ctx context.Context) {
	res := c.runner.RunSync(ctx, runner.Command{Name: c.bin, Args: []string{"--version"}})

	c.mu.Lock()
	defer c.mu.Unlock()
	if res.Error != nil {
		c.available = false
		c.version = ""
		return
	}
	c.available = true
	c.version = version.Extract(res.Output)
}
