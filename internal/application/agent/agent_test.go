package agent

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"apphost/internal/application/config"
	"apphost/internal/domain/model"
	userservice "apphost/internal/domain/service/user"
	"apphost/pkg/env"
	"apphost/pkg/syncqueue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg, err := config.LoadConfig(filepath.Join(dir, "missing.json"))
	require.NoError(t, err)

	cfg.DataDir = filepath.Join(dir, "data")
	cfg.AppDomain = "example.com"
	cfg.SessionSecret = "secret"
	cfg.HealthAddress = "off"
	cfg.ConfigPath = ""
	cfg.Features[config.FeatureGitHosting] = false
	return cfg
}

func TestNewAgentRejectsIncompleteConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.SessionSecret = ""

	_, err := NewAgent(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session_secret")
}

func TestNewAgentWiresServer(t *testing.T) {
	cfg := testConfig(t)

	a, err := NewAgent(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	for _, dir := range cfg.GetDataDirs() {
		assert.DirExists(t, dir)
	}
	assert.Nil(t, a.queue)
	assert.Nil(t, a.health)

	rec := httptest.NewRecorder()
	a.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	a.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "apphost_uptime_seconds")

	// Without git hosting nothing is queued.
	a.requestSync()
}

func TestNewAgentWithGitHosting(t *testing.T) {
	cfg := testConfig(t)
	cfg.Features[config.FeatureGitHosting] = true
	cfg.GitoliteAdminPath = filepath.Join(t.TempDir(), "gitolite-admin")
	cfg.HealthAddress = "127.0.0.1:0"

	a, err := NewAgent(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.reconciler)
	assert.NotNil(t, a.queue)
	assert.NotNil(t, a.health)
}

func TestMaterializeAssetsKeepsTemplateEdits(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, ensureDataDirs(cfg))
	require.NoError(t, materializeAssets(cfg))

	runtimeFile := filepath.Join(cfg.GetRuntimePath(), "runtime.js")
	pkgFile := filepath.Join(cfg.GetDefaultTemplatePath(), "package.json")
	require.FileExists(t, runtimeFile)
	require.FileExists(t, pkgFile)

	require.NoError(t, os.WriteFile(runtimeFile, []byte("stale"), 0o644))
	require.NoError(t, os.WriteFile(pkgFile, []byte(`{"name":"edited"}`), 0o644))

	require.NoError(t, materializeAssets(cfg))

	runtime, err := os.ReadFile(runtimeFile)
	require.NoError(t, err)
	assert.NotEqual(t, "stale", string(runtime))

	pkg, err := os.ReadFile(pkgFile)
	require.NoError(t, err)
	assert.Equal(t, `{"name":"edited"}`, string(pkg))
}

func TestDriveEnqueuesOnEveryTick(t *testing.T) {
	var runs atomic.Int32
	a := &Agent{queue: syncqueue.New(func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.queue.Run(ctx)
	go a.drive(ctx, 10*time.Millisecond)

	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
}

func TestSetupCreatesAdmin(t *testing.T) {
	cfg := testConfig(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	require.NoError(t, err)

	admin, err := Setup(context.Background(), cfg, userservice.NewUser{
		Username:       "root",
		Email:          "root@example.com",
		HashedPassword: string(hash),
		Role:           model.RoleUser,
	})
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, admin.Role)
	assert.Empty(t, admin.HashedPassword)

	_, err = Setup(context.Background(), cfg, userservice.NewUser{
		Username:       "other",
		Email:          "root@example.com",
		HashedPassword: string(hash),
	})
	assert.ErrorIs(t, err, model.ErrDuplicate)
}

func TestEnsureSessionSecret(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, env.Save(filepath.Join(dir, ".env"), map[string]string{"OTHER": "kept"}))

	cfg := &config.Config{}
	written, err := EnsureSessionSecret(cfg, dir)
	require.NoError(t, err)
	assert.True(t, written)
	assert.Len(t, cfg.SessionSecret, 2*sessionSecretBytes)

	vars, err := env.Load(filepath.Join(dir, ".env"))
	require.NoError(t, err)
	assert.Equal(t, cfg.SessionSecret, vars[config.EnvPrefix+"SESSION_SECRET"])
	assert.Equal(t, "kept", vars["OTHER"])

	written, err = EnsureSessionSecret(cfg, dir)
	require.NoError(t, err)
	assert.False(t, written)
}
