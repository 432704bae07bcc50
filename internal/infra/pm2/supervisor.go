// Package pm2 drives the pm2 process manager through its CLI.
package pm2

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"apphost/internal/domain/model"
	"apphost/internal/domain/repository"
	"apphost/pkg/log"
	"apphost/pkg/runner"
)

// Supervisor implements repository.ProcessSupervisor on top of the pm2 binary.
type Supervisor struct {
	bin    string
	runner runner.Runner
}

var _ repository.ProcessSupervisor = (*Supervisor)(nil)

func NewSupervisor(bin string, r runner.Runner) *Supervisor {
	if bin == "" {
		bin = "pm2"
	}
	return &Supervisor{bin: bin, runner: r}
}

func (s *Supervisor) run(ctx context.Context, args ...string) (string, error) {
	res := s.runner.RunSync(ctx, runner.Command{Name: s.bin, Args: args})
	if res.Error != nil {
		return res.Output, &model.ToolError{
			Tool:     "pm2",
			Args:     args,
			ExitCode: res.ExitCode,
			Output:   res.Output,
			Err:      res.Error,
		}
	}
	return res.Output, nil
}

func (s *Supervisor) Start(ctx context.Context, descriptorPath string) error {
	if _, err := s.run(ctx, "start", descriptorPath); err != nil {
		return log.Errorf("pm2 start %s: %w", descriptorPath, err)
	}
	return nil
}

func (s *Supervisor) Reload(ctx context.Context, name string) error {
	if _, err := s.run(ctx, "reload", name); err != nil {
		return log.Errorf("pm2 reload %s: %w", name, err)
	}
	return nil
}

func (s *Supervisor) Stop(ctx context.Context, name string) error {
	if _, err := s.run(ctx, "stop", name); err != nil {
		return log.Errorf("pm2 stop %s: %w", name, err)
	}
	return nil
}

// Delete removes the process. Deleting an unknown process succeeds.
func (s *Supervisor) Delete(ctx context.Context, name string) error {
	out, err := s.run(ctx, "delete", name)
	if err != nil {
		if isNotFound(out) {
			log.Debug("pm2 process already gone", "process", name)
			return nil
		}
		return log.Errorf("pm2 delete %s: %w", name, err)
	}
	return nil
}

func (s *Supervisor) Describe(ctx context.Context, name string) (model.ProcessStatus, error) {
	out, err := s.run(ctx, "jlist")
	if err != nil {
		return model.StatusUnknown, fmt.Errorf("pm2 jlist: %w", err)
	}
	list, err := ParseProcessList(out)
	if err != nil {
		return model.StatusUnknown, err
	}
	return list.Status(name), nil
}

func isNotFound(out string) bool {
	out = strings.ToLower(out)
	return strings.Contains(out, "not found")
}

// Process is one entry of pm2 jlist.
type Process struct {
	Name   string `json:"name"`
	PMID   int    `json:"pm_id"`
	PM2Env struct {
		Status string `json:"status"`
	} `json:"pm2_env"`
}

// ProcessList is the decoded output of pm2 jlist.
type ProcessList []Process

// ParseProcessList decodes pm2 jlist output. pm2 may print warnings before
// the JSON array; everything before the first '[' is ignored.
func ParseProcessList(out string) (ProcessList, error) {
	start := strings.Index(out, "[")
	if start < 0 {
		return nil, fmt.Errorf("pm2 jlist: no process list in output")
	}
	var list ProcessList
	if err := json.Unmarshal([]byte(out[start:]), &list); err != nil {
		return nil, fmt.Errorf("pm2 jlist: %w", err)
	}
	return list, nil
}

// Status returns the status of the named process, StatusStopped when absent.
func (l ProcessList) Status(name string) model.ProcessStatus {
	for _, p := range l {
		if p.Name != name {
			continue
		}
		switch p.PM2Env.Status {
		case "online":
			return model.StatusOnline
		case "stopped", "stopping":
			return model.StatusStopped
		case "errored":
			return model.StatusErrored
		case "launching":
			return model.StatusLaunched
		default:
			return model.StatusUnknown
		}
	}
	return model.StatusStopped
}
