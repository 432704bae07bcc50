package api

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"apphost/internal/application/command/add_ssh_key"
	"apphost/internal/application/command/create_app"
	"apphost/internal/application/command/create_user"
	"apphost/internal/application/command/delete_app"
	"apphost/internal/application/command/delete_user"
	"apphost/internal/application/command/redeploy_app"
	"apphost/internal/application/command/remove_ssh_key"
	"apphost/internal/application/command/restrict_app"
	"apphost/internal/application/command/save_secrets"
	"apphost/internal/application/command/sync_hosting"
	"apphost/internal/application/command/update_user"
	"apphost/internal/application/query/get_app"
	"apphost/internal/application/query/get_app_log"
	"apphost/internal/application/query/get_secrets"
	"apphost/internal/application/query/get_user"
	"apphost/internal/application/query/list_apps"
	"apphost/internal/application/query/list_users"
	"apphost/internal/domain/model"
	appservice "apphost/internal/domain/service/app"
	userservice "apphost/internal/domain/service/user"
	"apphost/internal/infra/http/proxy"
	"apphost/internal/infra/store/badger"
	"apphost/pkg/cqrs"
	"apphost/pkg/syncqueue"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/ssh"
)

type fakeApps struct {
	mu       sync.Mutex
	apps     map[string]*model.AppView
	ports    map[string]int
	secrets  map[string]string
	logDir   string
	created  []appservice.CreateRequest
	deleted  []string
	redeploy error
}

func (f *fakeApps) Exists(folderName string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.apps[folderName]
	return ok
}

func (f *fakeApps) GetApp(ctx context.Context, folderName string) (*model.AppView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	app, ok := f.apps[folderName]
	if !ok {
		return nil, fmt.Errorf("app %s: %w", folderName, model.ErrNotFound)
	}
	return app, nil
}

func (f *fakeApps) ListApps(ctx context.Context, viewer *model.User) ([]model.AppView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.AppView{}
	for _, name := range []string{"blog", "my-blog", "wiki"} {
		if app, ok := f.apps[name]; ok && viewer.MayAccess(name) {
			out = append(out, *app)
		}
	}
	return out, nil
}

func (f *fakeApps) Create(ctx context.Context, req appservice.CreateRequest) (*model.AppView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.apps[req.FolderName]; ok {
		return nil, &model.DuplicateError{Field: "folderName", Value: req.FolderName}
	}
	f.created = append(f.created, req)
	f.apps[req.FolderName] = &model.AppView{FolderName: req.FolderName, Status: model.StatusOnline}
	return f.apps[req.FolderName], nil
}

func (f *fakeApps) Delete(ctx context.Context, folderName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.apps[folderName]; !ok {
		return fmt.Errorf("app %s: %w", folderName, model.ErrNotFound)
	}
	delete(f.apps, folderName)
	f.deleted = append(f.deleted, folderName)
	return nil
}

func (f *fakeApps) Redeploy(ctx context.Context, folderName string, out io.Writer) error {
	fmt.Fprintf(out, "deployed %s\n", folderName)
	return f.redeploy
}

func (f *fakeApps) GetSecrets(ctx context.Context, folderName string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.secrets[folderName], nil
}

func (f *fakeApps) SaveSecrets(ctx context.Context, folderName, text string) error {
	if text != "" && !strings.Contains(text, "=") {
		return model.NewValidationError("secrets", "Invalid .env content")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.secrets[folderName] = text
	return nil
}

func (f *fakeApps) OpenLog(ctx context.Context, folderName string) (*os.File, error) {
	return os.Open(filepath.Join(f.logDir, folderName+".log"))
}

func (f *fakeApps) AppPort(ctx context.Context, folderName string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	port, ok := f.ports[folderName]
	if !ok {
		return 0, model.ErrNotFound
	}
	return port, nil
}

type fixture struct {
	handler  http.Handler
	apps     *fakeApps
	users    *userservice.Service
	changes  atomic.Int32
	syncRuns atomic.Int32
	admin    *model.User
	dev      *model.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	db, err := badger.Open(badger.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	users := userservice.NewService(badger.NewUserRepository(db)).WithPasswordCost(bcrypt.MinCost)

	f := &fixture{
		users: users,
		apps: &fakeApps{
			apps: map[string]*model.AppView{
				"blog": {FolderName: "blog", Name: "Blog", Status: model.StatusOnline},
				"wiki": {FolderName: "wiki", Name: "Wiki", Status: model.StatusOnline},
			},
			ports:   map[string]int{},
			secrets: map[string]string{"blog": "TOKEN=abc\n"},
			logDir:  t.TempDir(),
		},
	}
	require.NoError(t, os.WriteFile(filepath.Join(f.apps.logDir, "blog.log"), []byte("listening\n"), 0o644))

	f.admin, err = users.Create(ctx, userservice.NewUser{Username: "root", Email: "root@example.com", Password: "pw", Role: model.RoleAdmin})
	require.NoError(t, err)
	f.dev, err = users.Create(ctx, userservice.NewUser{Username: "ada", Email: "ada@example.com", Password: "pw", Role: model.RoleDev, Apps: []string{"blog"}})
	require.NoError(t, err)

	queue := syncqueue.New(func(ctx context.Context) error {
		f.syncRuns.Add(1)
		return nil
	})
	go queue.Run(ctx)

	onChange := func() { f.changes.Add(1) }
	commands := cqrs.NewCommandBus(ctx)
	for _, h := range []interface{}{
		create_app.NewCreateAppHandler(f.apps),
		delete_app.NewDeleteAppHandler(f.apps),
		redeploy_app.NewRedeployAppHandler(f.apps),
		save_secrets.NewSaveSecretsHandler(f.apps),
		restrict_app.NewRestrictAppHandler(f.apps, users, onChange),
		create_user.NewCreateUserHandler(users, onChange),
		update_user.NewUpdateUserHandler(users, onChange),
		delete_user.NewDeleteUserHandler(users, onChange),
		add_ssh_key.NewAddSSHKeyHandler(users, onChange),
		remove_ssh_key.NewRemoveSSHKeyHandler(users, onChange),
		sync_hosting.NewSyncHostingHandler(queue),
	} {
		require.NoError(t, commands.Register(h))
	}

	queries := cqrs.NewQueryBus(ctx)
	for _, h := range []interface{}{
		get_app.NewGetAppQueryHandler(f.apps),
		list_apps.NewListAppsQueryHandler(f.apps),
		get_secrets.NewGetSecretsQueryHandler(f.apps),
		get_app_log.NewGetAppLogQueryHandler(f.apps),
		get_user.NewGetUserQueryHandler(users),
		list_users.NewListUsersQueryHandler(users),
	} {
		require.NoError(t, queries.Register(h))
	}

	sessions := NewSessions("test-secret", "apphost_session", "example.com", time.Hour, false)
	p := proxy.New("example.com", f.apps, sessions.Identify(users)).StripCookie(sessions.CookieName())

	f.handler = New(Options{
		Sessions:    sessions,
		Users:       users,
		Commands:    commands,
		Queries:     queries,
		Proxy:       p,
		Gatherer:    prometheus.NewRegistry(),
		SyncEnabled: true,
	}).Handler()
	return f
}

func (f *fixture) do(t *testing.T, method, target, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) login(t *testing.T, email string) *http.Cookie {
	t.Helper()
	rec := f.do(t, http.MethodPost, "http://example.com/api/session", `{"email":"`+email+`","password":"pw"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	for _, c := range rec.Result().Cookies() {
		if c.Name == "apphost_session" {
			return c
		}
	}
	t.Fatal("no session cookie")
	return nil
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestLoginAndSession(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "http://example.com/api/session", `{"email":"ada@example.com","password":"nope"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	cookie := f.login(t, "ada@example.com")
	assert.Equal(t, "example.com", cookie.Domain)
	assert.True(t, cookie.HttpOnly)

	rec = f.do(t, http.MethodGet, "http://example.com/api/session", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[model.User](t, rec)
	assert.Equal(t, f.dev.ID, me.ID)
	assert.Empty(t, me.HashedPassword)

	rec = f.do(t, http.MethodGet, "http://example.com/api/session", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	forged := &http.Cookie{Name: cookie.Name, Value: cookie.Value + "x"}
	rec = f.do(t, http.MethodGet, "http://example.com/api/session", "", forged)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodDelete, "http://example.com/api/session", "", cookie)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	cleared := rec.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Equal(t, "", cleared[0].Value)
}

func TestSessionTokens(t *testing.T) {
	s := NewSessions("secret", "c", ".example.com", time.Minute, true)
	token, exp, err := s.Issue("u1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), exp, 5*time.Second)

	id, err := s.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", id)

	other := NewSessions("other", "c", "example.com", time.Minute, true)
	_, err = other.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidSession)

	s.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = s.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestAppRoutesFollowAccessGrant(t *testing.T) {
	f := newFixture(t)
	dev := f.login(t, "ada@example.com")
	admin := f.login(t, "root@example.com")

	rec := f.do(t, http.MethodGet, "http://example.com/api/apps", "", dev)
	require.Equal(t, http.StatusOK, rec.Code)
	apps := decode[[]model.AppView](t, rec)
	require.Len(t, apps, 1)
	assert.Equal(t, "blog", apps[0].FolderName)

	rec = f.do(t, http.MethodGet, "http://example.com/api/apps", "", admin)
	assert.Len(t, decode[[]model.AppView](t, rec), 2)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "http://example.com/api/apps/blog", "", dev).Code)
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, "http://example.com/api/apps/wiki", "", dev).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "http://example.com/api/apps/gone", "", admin).Code)

	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodDelete, "http://example.com/api/apps/blog", "", dev).Code)
	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "http://example.com/api/apps/wiki", "", admin).Code)
	assert.Equal(t, []string{"wiki"}, f.apps.deleted)

	rec = f.do(t, http.MethodGet, "http://example.com/api/apps/blog/logs", "", dev)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "listening\n", rec.Body.String())

	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, "http://example.com/api/apps/blog/secrets", "", dev).Code)
	rec = f.do(t, http.MethodGet, "http://example.com/api/apps/blog/secrets", "", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "TOKEN=abc\n", decode[secretsBody](t, rec).Secrets)
}

func TestCreateAppGrantsTheDeveloper(t *testing.T) {
	f := newFixture(t)
	dev := f.login(t, "ada@example.com")

	rec := f.do(t, http.MethodPost, "http://example.com/api/apps", `{"folderName":"My Blog"}`, dev)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "my-blog", decode[model.AppView](t, rec).FolderName)

	require.Len(t, f.apps.created, 1)
	assert.Equal(t, "my-blog", f.apps.created[0].FolderName)
	assert.Equal(t, f.dev.ID, f.apps.created[0].Owner.ID)

	rec = f.do(t, http.MethodPost, "http://example.com/api/apps", `{"folderName":"x"}`, dev)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[errorResponse](t, rec).Fields, "folderName")

	rec = f.do(t, http.MethodPost, "http://example.com/api/apps", `{"folderName":"blog"}`, dev)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlainUsersCannotDeploy(t *testing.T) {
	f := newFixture(t)
	_, err := f.users.Create(context.Background(), userservice.NewUser{Username: "bob", Email: "bob@example.com", Password: "pw", Role: model.RoleUser, Apps: []string{"blog"}})
	require.NoError(t, err)
	user := f.login(t, "bob@example.com")

	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodPost, "http://example.com/api/apps", `{"folderName":"new"}`, user).Code)
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodPost, "http://example.com/api/apps/blog/redeploy", "", user).Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "http://example.com/api/apps/blog", "", user).Code)
}

func TestRedeployReportsOutputAndStage(t *testing.T) {
	f := newFixture(t)
	dev := f.login(t, "ada@example.com")

	rec := f.do(t, http.MethodPost, "http://example.com/api/apps/blog/redeploy", "", dev)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "deployed blog\n", decode[redeployResp](t, rec).Output)

	f.apps.redeploy = &model.StageError{Stage: model.StageBuild, Err: &model.ToolError{Tool: "yarn", Args: []string{"build"}, ExitCode: 1, Output: "syntax error"}}
	rec = f.do(t, http.MethodPost, "http://example.com/api/apps/blog/redeploy", "", dev)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode[errorResponse](t, rec)
	assert.Equal(t, "build", body.Stage)
	assert.Equal(t, "yarn", body.Tool)
	assert.Equal(t, "syntax error", body.Detail)
}

func TestAccessChangesTriggerSync(t *testing.T) {
	f := newFixture(t)
	admin := f.login(t, "root@example.com")

	rec := f.do(t, http.MethodPut, "http://example.com/api/apps/wiki/access", `{"userIds":["`+f.dev.ID+`"]}`, admin)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.EqualValues(t, 1, f.changes.Load())

	dev, err := f.users.Get(context.Background(), f.dev.ID)
	require.NoError(t, err)
	assert.True(t, dev.MayAccess("wiki"))

	rec = f.do(t, http.MethodPut, "http://example.com/api/apps/gone/access", `{"userIds":[]}`, admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func sshKey(t *testing.T) string {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	sshPub, err := ssh.NewPublicKey(pub)
	require.NoError(t, err)
	return strings.TrimSpace(string(ssh.MarshalAuthorizedKey(sshPub)))
}

func TestUserManagement(t *testing.T) {
	f := newFixture(t)
	admin := f.login(t, "root@example.com")
	dev := f.login(t, "ada@example.com")

	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, "http://example.com/api/users", "", dev).Code)

	rec := f.do(t, http.MethodPost, "http://example.com/api/users",
		`{"username":"grace","email":"grace@example.com","password":"pw","role":"dev","apps":["wiki"]}`, admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	grace := decode[model.User](t, rec)
	assert.NotEmpty(t, grace.ID)
	assert.Equal(t, []string{"wiki"}, grace.Apps)

	rec = f.do(t, http.MethodPost, "http://example.com/api/users",
		`{"username":"grace","email":"other@example.com","password":"pw"}`, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPatch, "http://example.com/api/users/"+grace.ID, `{"role":"admin"}`, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.RoleAdmin, decode[model.User](t, rec).Role)

	rec = f.do(t, http.MethodGet, "http://example.com/api/users", "", admin)
	assert.Len(t, decode[[]model.User](t, rec), 3)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodDelete, "http://example.com/api/users/"+f.admin.ID, "", admin).Code)
	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "http://example.com/api/users/"+grace.ID, "", admin).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodDelete, "http://example.com/api/users/"+grace.ID, "", admin).Code)

	assert.EqualValues(t, 3, f.changes.Load())
}

func TestUsersManageTheirOwnKeys(t *testing.T) {
	f := newFixture(t)
	dev := f.login(t, "ada@example.com")

	rec := f.do(t, http.MethodPost, "http://example.com/api/users/"+f.dev.ID+"/keys",
		`{"name":"laptop","publicKey":"`+sshKey(t)+`"}`, dev)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	user := decode[model.User](t, rec)
	require.Len(t, user.SSHKeys, 1)

	rec = f.do(t, http.MethodPost, "http://example.com/api/users/"+f.admin.ID+"/keys",
		`{"name":"laptop","publicKey":"`+sshKey(t)+`"}`, dev)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "http://example.com/api/users/"+f.dev.ID+"/keys",
		`{"name":"broken","publicKey":"ssh-ed25519 nope"}`, dev)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodDelete, "http://example.com/api/users/"+f.dev.ID+"/keys/"+user.SSHKeys[0].ID, "", dev)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.EqualValues(t, 2, f.changes.Load())
}

func TestSyncWaitsForRun(t *testing.T) {
	f := newFixture(t)
	admin := f.login(t, "root@example.com")
	dev := f.login(t, "ada@example.com")

	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodPost, "http://example.com/api/sync", "", dev).Code)
	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodPost, "http://example.com/api/sync", "", admin).Code)
	assert.EqualValues(t, 1, f.syncRuns.Load())
}

func TestSubdomainsAreProxied(t *testing.T) {
	f := newFixture(t)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "hello from "+r.Host+r.URL.Path)
	}))
	t.Cleanup(upstream.Close)
	_, portStr, err := net.SplitHostPort(strings.TrimPrefix(upstream.URL, "http://"))
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	f.apps.ports["blog"] = port
	f.apps.ports["wiki"] = port

	dev := f.login(t, "ada@example.com")

	rec := f.do(t, http.MethodGet, "http://blog.example.com/api/apps", "", dev)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello from blog.example.com/api/apps", rec.Body.String())

	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, "http://wiki.example.com/", "", dev).Code)
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, "http://blog.example.com/", "", nil).Code)
	admin := f.login(t, "root@example.com")
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "http://gone.example.com/", "", admin).Code)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "http://example.com/healthz", "", nil).Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "http://example.com/metrics", "", nil).Code)
}

func TestErrorResponses(t *testing.T) {
	tool := &model.ToolError{Tool: "pm2", Args: []string{"start"}, ExitCode: 1, Output: "port in use"}
	tests := []struct {
		name   string
		err    error
		status int
		check  func(t *testing.T, body errorResponse)
	}{
		{"validation", model.NewValidationError("folderName", "too short"), http.StatusBadRequest, func(t *testing.T, body errorResponse) {
			assert.Equal(t, "too short", body.Fields["folderName"])
		}},
		{"duplicate", fmt.Errorf("create: %w", &model.DuplicateError{Field: "folderName", Value: "blog"}), http.StatusBadRequest, func(t *testing.T, body errorResponse) {
			assert.Contains(t, body.Fields, "folderName")
		}},
		{"not permitted", model.ErrNotPermitted, http.StatusForbidden, nil},
		{"not found", fmt.Errorf("app blog: %w", model.ErrNotFound), http.StatusNotFound, nil},
		{"tool", fmt.Errorf("create blog: %w", tool), http.StatusInternalServerError, func(t *testing.T, body errorResponse) {
			assert.Equal(t, "pm2", body.Tool)
			assert.Equal(t, "port in use", body.Detail)
		}},
		{"other", errors.New("disk on fire"), http.StatusInternalServerError, func(t *testing.T, body errorResponse) {
			assert.Equal(t, "internal server error", body.Error)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := errorResponseFor(tt.err)
			assert.Equal(t, tt.status, status)
			if tt.check != nil {
				tt.check(t, body)
			}
		})
	}
}
