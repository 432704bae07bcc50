package agent

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"
	"path/filepath"

	"apphost/internal/application/config"
	"apphost/internal/domain/model"
	userservice "apphost/internal/domain/service/user"
	"apphost/internal/infra/gitolite"
	badgerstore "apphost/internal/infra/store/badger"
	"apphost/pkg/env"
	"apphost/pkg/log"
	"apphost/pkg/runner"
)

const sessionSecretBytes = 32

// Redeploy runs the deploy pipeline for one app and streams tool output to
// out. It is what post-receive hooks invoke and does not open the user store.
func Redeploy(ctx context.Context, cfg *config.Config, folderName string, out io.Writer) error {
	r := runner.NewClient(cfg.GetCommandLogsPath())
	return newLifecycle(cfg, r, nil).Redeploy(ctx, folderName, out)
}

// Setup creates the first admin account and, with git hosting enabled,
// runs one reconciliation so the admin's keys and the existing repositories
// are known to gitolite.
func Setup(ctx context.Context, cfg *config.Config, admin userservice.NewUser) (*model.User, error) {
	if err := ensureDataDirs(cfg); err != nil {
		return nil, err
	}

	db, err := badgerstore.Open(badgerstore.DefaultConfig(cfg.GetUsersStorePath()))
	if err != nil {
		return nil, log.Errorf("failed to open user store: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close user store", "error", err)
		}
	}()

	users := userservice.NewService(badgerstore.NewUserRepository(db))
	admin.Role = model.RoleAdmin
	user, err := users.Create(ctx, admin)
	if err != nil {
		return nil, err
	}

	public := user.Public()

	if cfg.IsFeatureEnabled(config.FeatureGitHosting) {
		r := runner.NewClient(cfg.GetCommandLogsPath())
		apps := newLifecycle(cfg, r, users)
		if _, err := gitolite.NewReconciler(gitoliteConfig(cfg), users, apps, r).Sync(ctx); err != nil {
			return &public, err
		}
	}
	return &public, nil
}

// EnsureSessionSecret generates a session secret when none is configured
// and appends it to the dotenv file in dir. It reports whether a secret was
// written.
func EnsureSessionSecret(cfg *config.Config, dir string) (bool, error) {
	if cfg.SessionSecret != "" {
		return false, nil
	}

	buf := make([]byte, sessionSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return false, log.Errorf("failed to generate session secret: %w", err)
	}
	secret := hex.EncodeToString(buf)

	path := filepath.Join(dir, ".env")
	vars, err := env.Load(path)
	if err != nil {
		return false, err
	}
	vars[config.EnvPrefix+"SESSION_SECRET"] = secret
	if err := env.Save(path, vars); err != nil {
		return false, err
	}

	cfg.SessionSecret = secret
	log.Info("Session secret generated", "path", path)
	return true, nil
}
