package gitolite

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"apphost/internal/domain/model"
	"apphost/pkg/runner"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	admin = model.User{ID: "admin1", Role: model.RoleAdmin, SSHKeys: []model.SSHKey{
		{ID: "k1", Name: "work laptop", PublicKey: "ssh-ed25519 AAAAadmin admin@work"},
	}}
	dev = model.User{ID: "dev1", Role: model.RoleDev, Apps: []string{"blog"}, SSHKeys: []model.SSHKey{
		{ID: "k2", Name: "laptop", PublicKey: "ssh-ed25519 AAAAdev dev@laptop\n"},
		{ID: "k3", Name: "../escape", PublicKey: "ssh-ed25519 AAAAdev2"},
	}}
	viewer = model.User{ID: "user1", Role: model.RoleUser, Apps: []string{"blog"}, SSHKeys: []model.SSHKey{
		{ID: "k4", Name: "home", PublicKey: "ssh-ed25519 AAAAuser"},
	}}
)

func TestGenerateConfig(t *testing.T) {
	conf := GenerateConfig([]model.User{admin, dev, viewer}, []string{"blog", "testing", "wiki"}, []string{"starter"})

	assert.Equal(t, `repo blog
    RW+ = dev1
    RW+ = admin1
repo testing.app
    RW+ = admin1
repo wiki
    RW+ = admin1
repo starter.template
    RW+ = admin1
`, conf)
}

func TestGenerateConfigAgreesWithAccessGrant(t *testing.T) {
	users := []model.User{admin, dev, viewer}
	apps := []string{"blog", "wiki"}
	conf := GenerateConfig(users, apps, nil)

	for _, u := range users {
		for _, app := range apps {
			granted := strings.Contains(repoStanza(conf, app), "= "+u.ID+"\n")
			assert.Equal(t, u.CanPush() && u.MayAccess(app), granted, "%s on %s", u.ID, app)
		}
	}
}

func repoStanza(conf, repo string) string {
	start := strings.Index(conf, "repo "+repo+"\n")
	if start < 0 {
		return ""
	}
	rest := conf[start+len("repo "+repo+"\n"):]
	if end := strings.Index(rest, "repo "); end >= 0 {
		return rest[:end]
	}
	return rest
}

func TestKeyFiles(t *testing.T) {
	files := KeyFiles([]model.User{admin, dev, viewer})

	assert.Equal(t, map[string]string{
		filepath.Join("admin1", "work-laptop", "admin1.pub"): "ssh-ed25519 AAAAadmin admin@work\n",
		filepath.Join("dev1", "laptop", "dev1.pub"):          "ssh-ed25519 AAAAdev dev@laptop\n",
		filepath.Join("dev1", "-escape", "dev1.pub"):         "ssh-ed25519 AAAAdev2\n",
	}, files)
}

func TestKeyFilesKeepsCollidingKeys(t *testing.T) {
	u := model.User{ID: "u1", Role: model.RoleDev, SSHKeys: []model.SSHKey{
		{ID: "k1", Name: "my laptop", PublicKey: "ssh-ed25519 AAAAone"},
		{ID: "k2", Name: "my-laptop", PublicKey: "ssh-ed25519 AAAAtwo"},
	}}

	files := KeyFiles([]model.User{u})

	assert.Equal(t, map[string]string{
		filepath.Join("u1", "my-laptop", "u1.pub"): "ssh-ed25519 AAAAone\n",
		filepath.Join("u1", "k2", "u1.pub"):        "ssh-ed25519 AAAAtwo\n",
	}, files)
}

// fixture is a minimal gitolite layout: an admin clone with a bare origin,
// a repositories directory and local working directories.
type fixture struct {
	root    string
	cfg     Config
	users   *fakeUsers
	catalog *fakeCatalog
	rec     *Reconciler
	origin  string
}

type fakeUsers struct{ users []model.User }

func (f *fakeUsers) List(context.Context) ([]model.User, error) { return f.users, nil }

type fakeCatalog struct {
	root      string
	apps      []string
	templates []string
}

func (c *fakeCatalog) ListFolders(context.Context) ([]string, error)         { return c.apps, nil }
func (c *fakeCatalog) ListTemplateFolders(context.Context) ([]string, error) { return c.templates, nil }
func (c *fakeCatalog) AppPort(context.Context, string) (int, error)          { return 0, model.ErrNotFound }
func (c *fakeCatalog) WorkingDir(f string) string                            { return filepath.Join(c.root, "apps", f) }
func (c *fakeCatalog) TemplateDir(f string) string                           { return filepath.Join(c.root, "app-templates", f) }
func (c *fakeCatalog) PostReceiveScript(f string) string                     { return "#!/bin/sh\necho deploy " + f + "\n" }
func (c *fakeCatalog) TemplatePostReceiveScript(f string) string {
	return "#!/bin/sh\necho template " + f + "\n"
}

func run(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, out)
	return strings.TrimSpace(string(out))
}

func commitAll(t *testing.T, dir, msg string) {
	t.Helper()
	run(t, dir, "add", "--all", ".")
	run(t, dir, "-c", "user.name=test", "-c", "user.email=test@localhost", "commit", "-q", "-m", msg)
}

func initRepo(t *testing.T, dir string, bare bool) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	args := []string{"init", "-q"}
	if bare {
		args = append(args, "--bare")
	}
	run(t, dir, args...)
	run(t, dir, "symbolic-ref", "HEAD", "refs/heads/master")
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	root := t.TempDir()
	origin := filepath.Join(root, "origin", "gitolite-admin.git")
	initRepo(t, origin, true)

	adminPath := filepath.Join(root, "gitolite-admin")
	initRepo(t, adminPath, false)
	require.NoError(t, os.MkdirAll(filepath.Join(adminPath, "conf"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(adminPath, "keydir"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(adminPath, "conf", "gitolite.conf"), []byte("repo gitolite-admin\n    RW+ = root\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(adminPath, "keydir", "root.pub"), []byte("ssh-ed25519 AAAAroot\n"), 0o644))
	commitAll(t, adminPath, "gitolite setup")
	run(t, adminPath, "remote", "add", "origin", origin)
	run(t, adminPath, "push", "-q", "-u", "origin", "master")

	repos := filepath.Join(root, "repositories")
	for _, name := range []string{"gitolite-admin.git", "testing.git", "blog.git", "gone.git"} {
		initRepo(t, filepath.Join(repos, name), true)
	}

	catalog := &fakeCatalog{root: root, apps: []string{"blog"}, templates: []string{"starter"}}
	blog := catalog.WorkingDir("blog")
	initRepo(t, blog, false)
	require.NoError(t, os.WriteFile(filepath.Join(blog, "index.js"), []byte("module.exports = () => {}\n"), 0o644))
	commitAll(t, blog, "Initial commit")

	cfg := Config{
		AdminPath:        adminPath,
		KeydirPath:       filepath.Join(adminPath, "keydir", "apphost"),
		ConfPath:         filepath.Join(adminPath, "conf", "gitolite.conf"),
		RepositoriesPath: repos,
		// git's own push behaves like gitolite's wrapper for these tests.
		Bin: "git",
	}
	users := &fakeUsers{users: []model.User{admin, dev, viewer}}

	return &fixture{
		root:    root,
		cfg:     cfg,
		users:   users,
		catalog: catalog,
		rec:     NewReconciler(cfg, users, catalog, runner.NewClient("")),
		origin:  origin,
	}
}

func listRepos(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestSync(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.rec.Sync(ctx)
	require.NoError(t, err)
	assert.True(t, res.KeysChanged)
	assert.True(t, res.Committed)
	assert.True(t, res.Pushed)
	assert.Equal(t, []string{"gone.git"}, res.Removed)
	assert.Equal(t, []string{"blog"}, res.Initialized)

	conf, err := os.ReadFile(f.cfg.ConfPath)
	require.NoError(t, err)
	assert.Equal(t, GenerateConfig(f.users.users, []string{"blog"}, []string{"starter"}), string(conf))

	key, err := os.ReadFile(filepath.Join(f.cfg.KeydirPath, "dev1", "laptop", "dev1.pub"))
	require.NoError(t, err)
	assert.Equal(t, "ssh-ed25519 AAAAdev dev@laptop\n", string(key))
	assert.NoDirExists(t, filepath.Join(f.cfg.KeydirPath, "user1"))
	assert.FileExists(t, filepath.Join(f.cfg.AdminPath, "keydir", "root.pub"), "keys outside the managed subtree are kept")

	assert.Equal(t, run(t, f.cfg.AdminPath, "rev-parse", "HEAD"), run(t, f.origin, "rev-parse", "master"))
	assert.Equal(t, "Update", run(t, f.origin, "log", "-1", "--format=%s", "master"))

	assert.Equal(t, []string{"blog.git", "gitolite-admin.git", "testing.git"}, listRepos(t, f.cfg.RepositoriesPath))
	blogRepo := filepath.Join(f.cfg.RepositoriesPath, "blog.git")
	assert.Equal(t, "Initial commit", run(t, blogRepo, "log", "-1", "--format=%s", "master"))

	hook, err := os.ReadFile(filepath.Join(blogRepo, "hooks", "post-receive"))
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh\necho deploy blog\n", string(hook))

	status := f.rec.Status()
	assert.NoError(t, status.LastErr)
	assert.Equal(t, 1, status.Runs)
}

func TestSyncIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.rec.Sync(ctx)
	require.NoError(t, err)
	head := run(t, f.cfg.AdminPath, "rev-parse", "HEAD")
	confInfo, err := os.Stat(f.cfg.ConfPath)
	require.NoError(t, err)

	res, err := f.rec.Sync(ctx)
	require.NoError(t, err)
	assert.False(t, res.Changed(), "second run must not change anything: %+v", res)
	assert.Equal(t, head, run(t, f.cfg.AdminPath, "rev-parse", "HEAD"))

	again, err := os.Stat(f.cfg.ConfPath)
	require.NoError(t, err)
	assert.Equal(t, confInfo.ModTime(), again.ModTime())
}

func TestSyncAfterUserDeletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.rec.Sync(ctx)
	require.NoError(t, err)

	f.users.users = []model.User{admin, viewer}
	res, err := f.rec.Sync(ctx)
	require.NoError(t, err)
	assert.True(t, res.Committed)
	assert.True(t, res.Pushed)

	assert.NoDirExists(t, filepath.Join(f.cfg.KeydirPath, "dev1"))
	conf, err := os.ReadFile(f.cfg.ConfPath)
	require.NoError(t, err)
	assert.NotContains(t, string(conf), "dev1")
}

func TestSyncSkipsReposNotCreatedYet(t *testing.T) {
	f := newFixture(t)
	f.catalog.apps = []string{"blog", "fresh"}

	res, err := f.rec.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"blog"}, res.Initialized)

	conf, err := os.ReadFile(f.cfg.ConfPath)
	require.NoError(t, err)
	assert.Contains(t, string(conf), "repo fresh\n")
}

func TestSyncFailureIsRecorded(t *testing.T) {
	f := newFixture(t)
	f.cfg.Bin = filepath.Join(f.root, "missing-gitolite")
	f.rec = NewReconciler(f.cfg, f.users, f.catalog, runner.NewClient(""))

	_, err := f.rec.Sync(context.Background())
	var tool *model.ToolError
	require.ErrorAs(t, err, &tool)
	assert.Equal(t, "missing-gitolite", tool.Tool)
	assert.Equal(t, err, f.rec.Status().LastErr)
}
