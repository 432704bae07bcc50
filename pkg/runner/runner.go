// Package runner executes external tools and captures their output.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"apphost/pkg/log"

	"github.com/google/uuid"
)

// Command describes a single tool invocation.
type Command struct {
	// ID names the run in its log file. A random id is used when empty.
	ID   string
	Dir  string
	Name string
	Args []string
	// Env is added on top of the current process environment.
	Env map[string]string
	// Stdout additionally receives combined output as it is produced.
	Stdout io.Writer
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Result represents the outcome of a command.
type Result struct {
	// ExitCode is -1 when the process could not be started.
	ExitCode int
	// Output is the combined stdout and stderr.
	Output string
	// LogPath is set when the runner keeps per-run log files.
	LogPath string
	// Error is any error returned by the process.
	Error error
}

// Runner is implemented by Client and by fakes in tests.
type Runner interface {
	RunSync(ctx context.Context, cmd Command) Result
}

// Client runs commands on the host.
type Client struct {
	// LogsDir, when set, receives one log file per run.
	LogsDir string
}

func NewClient(logsDir string) *Client {
	return &Client{LogsDir: logsDir}
}

// RunSync executes cmd and waits for it to exit.
func (c *Client) RunSync(ctx context.Context, cmd Command) Result {
	id := cmd.ID
	if id == "" {
		id = uuid.New().String()
	}

	var buf bytes.Buffer
	writers := []io.Writer{&buf}
	if cmd.Stdout != nil {
		writers = append(writers, cmd.Stdout)
	}

	var logPath string
	if c.LogsDir != "" {
		logFile, path, err := openLogFile(c.LogsDir, cmd.Name, id)
		if err != nil {
			log.Warn("Failed to create run log", "command", cmd.Name, "error", err)
		} else {
			defer logFile.Close()
			logPath = path
			fmt.Fprintf(logFile, "=== Command Execution (ID: %s) ===\n", id)
			fmt.Fprintf(logFile, "Command: %s\n", cmd)
			fmt.Fprintf(logFile, "Working Directory: %s\n", cmd.Dir)
			fmt.Fprintf(logFile, "=== Output ===\n\n")
			writers = append(writers, logFile)
			defer func() {
				fmt.Fprintf(logFile, "\n=== Execution Completed ===\n")
			}()
		}
	}

	out := io.MultiWriter(writers...)

	proc := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	proc.Dir = cmd.Dir
	proc.Stdout = out
	proc.Stderr = out
	if len(cmd.Env) > 0 {
		proc.Env = append(os.Environ(), envList(cmd.Env)...)
	}

	start := time.Now()
	err := proc.Run()

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
		log.Debug("Command failed",
			"command", cmd.String(),
			"dir", cmd.Dir,
			"exit_code", exitCode,
			"error", err)
	} else {
		log.Debug("Command completed",
			"command", cmd.String(),
			"dir", cmd.Dir,
			"duration", time.Since(start).String())
	}

	return Result{
		ExitCode: exitCode,
		Output:   buf.String(),
		LogPath:  logPath,
		Error:    err,
	}
}

func envList(env map[string]string) []string {
	list := make([]string, 0, len(env))
	for k, v := range env {
		list = append(list, k+"="+v)
	}
	sort.Strings(list)
	return list
}

func openLogFile(logsDir, name, id string) (*os.File, string, error) {
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return nil, "", err
	}

	timestamp := time.Now().Format("20060102150405")
	clean := strings.NewReplacer("/", "_", "\\", "_").Replace(filepath.Base(name))
	path := filepath.Join(logsDir, fmt.Sprintf("%s_%s_%s.log", timestamp, clean, id))

	f, err := os.Create(path)
	if err != nil {
		return nil, "", err
	}
	return f, path, nil
}
