package pm2

import (
	"context"
	"errors"
	"testing"

	"apphost/internal/domain/model"
	"apphost/pkg/runner"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	calls   [][]string
	results map[string]runner.Result
}

func (f *fakeRunner) RunSync(_ context.Context, cmd runner.Command) runner.Result {
	f.calls = append(f.calls, append([]string{cmd.Name}, cmd.Args...))
	if res, ok := f.results[cmd.Args[0]]; ok {
		return res
	}
	return runner.Result{}
}

const jlist = `[PM2] Spawning PM2 daemon
[{"name":"blog","pm_id":0,"pm2_env":{"status":"online"}},
 {"name":"wiki","pm_id":1,"pm2_env":{"status":"errored"}},
 {"name":"old","pm_id":2,"pm2_env":{"status":"stopped"}}]`

func TestParseProcessList(t *testing.T) {
	list, err := ParseProcessList(jlist)
	require.NoError(t, err)
	require.Len(t, list, 3)

	assert.Equal(t, model.StatusOnline, list.Status("blog"))
	assert.Equal(t, model.StatusErrored, list.Status("wiki"))
	assert.Equal(t, model.StatusStopped, list.Status("old"))
	assert.Equal(t, model.StatusStopped, list.Status("missing"))
}

func TestParseProcessListGarbage(t *testing.T) {
	_, err := ParseProcessList("daemon not running")
	assert.Error(t, err)
}

func TestSupervisorCommands(t *testing.T) {
	f := &fakeRunner{results: map[string]runner.Result{"jlist": {Output: jlist}}}
	s := NewSupervisor("/usr/bin/pm2", f)
	ctx := context.Background()

	require.NoError(t, s.Start(ctx, "/data/user-app-ecosystems/blog.ecosystem.app.yml"))
	require.NoError(t, s.Reload(ctx, "blog"))
	require.NoError(t, s.Stop(ctx, "blog"))
	require.NoError(t, s.Delete(ctx, "blog"))

	status, err := s.Describe(ctx, "blog")
	require.NoError(t, err)
	assert.Equal(t, model.StatusOnline, status)

	assert.Equal(t, [][]string{
		{"/usr/bin/pm2", "start", "/data/user-app-ecosystems/blog.ecosystem.app.yml"},
		{"/usr/bin/pm2", "reload", "blog"},
		{"/usr/bin/pm2", "stop", "blog"},
		{"/usr/bin/pm2", "delete", "blog"},
		{"/usr/bin/pm2", "jlist"},
	}, f.calls)
}

func TestReloadFailureIsToolError(t *testing.T) {
	f := &fakeRunner{results: map[string]runner.Result{
		"reload": {ExitCode: 1, Output: "[PM2][ERROR] Process blog not found", Error: errors.New("exit status 1")},
	}}
	s := NewSupervisor("", f)

	err := s.Reload(context.Background(), "blog")
	var toolErr *model.ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "pm2", toolErr.Tool)
	assert.Equal(t, 1, toolErr.ExitCode)
}

func TestDeleteUnknownProcessSucceeds(t *testing.T) {
	f := &fakeRunner{results: map[string]runner.Result{
		"delete": {ExitCode: 1, Output: "[PM2][ERROR] Process or Namespace ghost not found", Error: errors.New("exit status 1")},
	}}
	s := NewSupervisor("", f)

	assert.NoError(t, s.Delete(context.Background(), "ghost"))
}
