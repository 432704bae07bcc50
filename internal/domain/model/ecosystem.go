package model

import (
	"fmt"
	"strconv"
)

const (
	EnvPort      = "PORT"
	EnvNodeEnv   = "NODE_ENV"
	EnvEntryFile = "ENTRY_FILE"
	EnvFolder    = "APP_FOLDER_NAME"
)

// Ecosystem is a supervisor process file. It holds exactly one app.
type Ecosystem struct {
	Apps []EcosystemApp `yaml:"apps"`
}

// EcosystemApp describes one supervised process.
type EcosystemApp struct {
	Name   string            `yaml:"name"`
	Script string            `yaml:"script"`
	Cwd    string            `yaml:"cwd"`
	Log    string            `yaml:"log"`
	Env    map[string]string `yaml:"env"`
}

// NewEcosystem builds the descriptor for a single app.
func NewEcosystem(app EcosystemApp) *Ecosystem {
	return &Ecosystem{Apps: []EcosystemApp{app}}
}

// App returns the single app entry.
func (e *Ecosystem) App() (*EcosystemApp, error) {
	if e == nil || len(e.Apps) != 1 {
		return nil, fmt.Errorf("ecosystem must describe exactly one app")
	}
	return &e.Apps[0], nil
}

// Port reads the allocated port back from the env block.
func (a *EcosystemApp) Port() (int, error) {
	raw, ok := a.Env[EnvPort]
	if !ok {
		return 0, fmt.Errorf("ecosystem %s has no %s", a.Name, EnvPort)
	}
	port, err := strconv.Atoi(raw)
	if err != nil || port <= 0 || port > 65535 {
		return 0, fmt.Errorf("ecosystem %s has invalid %s %q", a.Name, EnvPort, raw)
	}
	return port, nil
}
