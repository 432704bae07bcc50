// Package git provides typed access to the git CLI. Every command targets a
// specific directory via "git -C <dir>".
package git

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"

	"apphost/internal/domain/model"
)

const (
	// Branch is the only branch apps and templates are deployed from.
	Branch = "master"

	committerName  = "apphost"
	committerEmail = "apphost@localhost"

	shortMessageLength = 60
)

// Repository is a git repository at a specific directory.
type Repository struct {
	dir string
}

func NewRepository(dir string) *Repository {
	return &Repository{dir: dir}
}

func (r *Repository) Dir() string {
	return r.dir
}

// Run executes git with args in the repository and returns stdout.
// Failures are returned as *model.ToolError carrying stderr.
func (r *Repository) Run(ctx context.Context, args ...string) (string, error) {
	fullArgs := append([]string{"-C", r.dir}, args...)
	var stdout, stderr bytes.Buffer
	command := exec.CommandContext(ctx, "git", fullArgs...)
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return "", &model.ToolError{
			Tool:     "git",
			Args:     args,
			ExitCode: exitCode,
			Output:   stderr.String(),
			Err:      err,
		}
	}
	return stdout.String(), nil
}

// Init creates the repository with master as its initial branch.
func (r *Repository) Init(ctx context.Context) error {
	if _, err := r.Run(ctx, "init"); err != nil {
		return err
	}
	_, err := r.Run(ctx, "symbolic-ref", "HEAD", "refs/heads/"+Branch)
	return err
}

// InitWithCommit initializes the repository and commits everything in it.
func (r *Repository) InitWithCommit(ctx context.Context, message string) error {
	if err := r.Init(ctx); err != nil {
		return err
	}
	if err := r.AddAll(ctx); err != nil {
		return err
	}
	return r.Commit(ctx, message)
}

func (r *Repository) AddAll(ctx context.Context) error {
	_, err := r.Run(ctx, "add", "--all", ".")
	return err
}

// Commit records staged changes. The committer identity is fixed so that
// commits work on hosts without a global git identity.
func (r *Repository) Commit(ctx context.Context, message string) error {
	_, err := r.Run(ctx,
		"-c", "user.name="+committerName,
		"-c", "user.email="+committerEmail,
		"commit", "-q", "-m", message)
	return err
}

// SetConfig sets a repository-local config value.
func (r *Repository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.Run(ctx, "config", key, value)
	return err
}

// HasCommits reports whether HEAD points at a commit.
func (r *Repository) HasCommits(ctx context.Context) bool {
	_, err := r.Run(ctx, "rev-parse", "--verify", "--quiet", "HEAD")
	return err == nil
}

// IsDirty reports whether the working tree has uncommitted changes,
// including untracked files.
func (r *Repository) IsDirty(ctx context.Context) (bool, error) {
	out, err := r.Run(ctx, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

// Fetch updates remote-tracking refs from origin.
func (r *Repository) Fetch(ctx context.Context) error {
	_, err := r.Run(ctx, "fetch", "-q", "origin")
	return err
}

// IsAhead reports whether the current branch has commits its upstream lacks.
func (r *Repository) IsAhead(ctx context.Context) (bool, error) {
	out, err := r.Run(ctx, "status", "-sb")
	if err != nil {
		return false, err
	}
	firstLine, _, _ := strings.Cut(out, "\n")
	return strings.Contains(firstLine, "ahead"), nil
}

// LatestCommit summarizes HEAD. It returns model.ErrNotFound for a
// repository without commits.
func (r *Repository) LatestCommit(ctx context.Context) (*model.Commit, error) {
	if !r.HasCommits(ctx) {
		return nil, model.ErrNotFound
	}
	out, err := r.Run(ctx, "log", "-1", "--format=%H%n%an <%ae>%n%B")
	if err != nil {
		return nil, err
	}
	return ParseCommit(out), nil
}

// ParseCommit parses the output of
// git log -1 --format=%H%n%an <%ae>%n%B.
func ParseCommit(out string) *model.Commit {
	lines := strings.SplitN(strings.TrimRight(out, "\n"), "\n", 3)
	commit := &model.Commit{}
	if len(lines) > 0 {
		commit.Hash = strings.TrimSpace(lines[0])
		commit.ShortHash = commit.Hash
		if len(commit.ShortHash) > 6 {
			commit.ShortHash = commit.ShortHash[:6]
		}
	}
	if len(lines) > 1 {
		commit.Author = strings.TrimSpace(lines[1])
	}
	if len(lines) > 2 {
		msgLines := strings.Split(strings.TrimSpace(lines[2]), "\n")
		for i, l := range msgLines {
			msgLines[i] = strings.TrimSpace(l)
		}
		commit.Message = strings.Join(msgLines, "\n")
	}
	commit.ShortMessage = commit.Message
	if msg := []rune(commit.ShortMessage); len(msg) > shortMessageLength {
		commit.ShortMessage = string(msg[:shortMessageLength])
	}
	return commit
}
