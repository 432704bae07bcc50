// Package capabilities detects the host tools the control plane depends on.
package capabilities

import (
	"context"
	"runtime"
	"sync"

	"apphost/pkg/runner"
)

// Capability names
const (
	CapabilityGit  = "git"
	CapabilityNode = "node"
	CapabilityYarn = "yarn"
	CapabilityPM2  = "pm2"
	CapabilityOS   = "os"
)

// Capability represents a system capability that can be detected
type Capability interface {
	// Name returns the name of the capability
	Name() string
	// Version returns the detected version, or "" when unavailable
	Version() string
	// IsAvailable returns whether the capability is available
	IsAvailable() bool
	// Detect probes the host. It is safe to call more than once.
	Detect(ctx context.Context)
}

// CapabilityFactory creates and returns all available capabilities
type CapabilityFactory struct {
	capabilities []Capability
}

// NewCapabilityFactory creates the probes for every tool apphost runs.
func NewCapabilityFactory(r runner.Runner, pm2Bin string) *CapabilityFactory {
	if pm2Bin == "" {
		pm2Bin = "pm2"
	}
	return &CapabilityFactory{
		capabilities: []Capability{
			// receive.denyCurrentBranch=updateInstead needs git 2.4.
			NewToolCapability(CapabilityGit, "git", "2.4.0", r),
			NewToolCapability(CapabilityNode, "node", "", r),
			NewToolCapability(CapabilityYarn, "yarn", "", r),
			NewToolCapability(CapabilityPM2, pm2Bin, "", r),
			NewSystemOSCapability(),
		},
	}
}

// Detect probes every capability concurrently.
func (f *CapabilityFactory) Detect(ctx context.Context) *CapabilityFactory {
	var wg sync.WaitGroup
	for _, c := range f.capabilities {
		wg.Add(1)
		go func(c Capability) {
			defer wg.Done()
			c.Detect(ctx)
		}(c)
	}
	wg.Wait()
	return f
}

// GetAllCapabilities returns all capabilities
func (f *CapabilityFactory) GetAllCapabilities() []Capability {
	return f.capabilities
}

// GetCapabilityByName returns a capability by its name
func (f *CapabilityFactory) GetCapabilityByName(name string) Capability {
	for _, c := range f.capabilities {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

// ToMap returns name to version for every available capability.
func (f *CapabilityFactory) ToMap() map[string]string {
	out := make(map[string]string, len(f.capabilities))
	for _, c := range f.capabilities {
		if c.IsAvailable() {
			out[c.Name()] = c.Version()
		}
	}
	return out
}

// SystemOSCapability reports the operating system information.
type SystemOSCapability struct{}

func NewSystemOSCapability() *SystemOSCapability {
	return &SystemOSCapability{}
}

func (c *SystemOSCapability) Name() string               { return CapabilityOS }
func (c *SystemOSCapability) Version() string            { return runtime.GOOS + "/" + runtime.GOARCH }
func (c *SystemOSCapability) IsAvailable() bool          { return true }
func (c *SystemOSCapability) Detect(ctx context.Context) {}
