package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"apphost/internal/application/agent"
	"apphost/internal/application/config"
	userservice "apphost/internal/domain/service/user"
	"apphost/pkg/log"
	"apphost/pkg/version"

	"github.com/spf13/cobra"
)

// shutdownGrace bounds how long serve waits for in-flight work after a
// signal before exiting anyway.
const shutdownGrace = 5 * time.Second

var (
	configPath string

	setupUsername       string
	setupEmail          string
	setupPassword       string
	setupHashedPassword string

	rootCmd = &cobra.Command{
		Use:           "apphost",
		Short:         "Single-host control plane for git-deployed Node.js apps",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the control plane: app proxy, admin API and git hosting sync",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	redeployCmd = &cobra.Command{
		Use:   "redeploy <folderName>",
		Short: "Install, build and reload one app; used by post-receive hooks",
		Args:  cobra.ExactArgs(1),
		RunE:  runRedeploy,
	}

	setupCmd = &cobra.Command{
		Use:   "setup",
		Short: "Create the first admin user and a session secret",
		Args:  cobra.NoArgs,
		RunE:  runSetup,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "apphost version: %s (#%d)\n", version.GetVersion(), version.ParseNumericVersion(version.GetVersion()))
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath, "Path to configuration file")

	setupCmd.Flags().StringVar(&setupUsername, "username", "", "Admin username")
	setupCmd.Flags().StringVar(&setupEmail, "email", "", "Admin email")
	setupCmd.Flags().StringVar(&setupPassword, "password", "", "Admin password")
	setupCmd.Flags().StringVar(&setupHashedPassword, "hashed-password", "", "Admin bcrypt password hash")
	setupCmd.MarkFlagsMutuallyExclusive("password", "hashed-password")
	setupCmd.MarkFlagsOneRequired("password", "hashed-password")
	_ = setupCmd.MarkFlagRequired("username")
	_ = setupCmd.MarkFlagRequired("email")

	rootCmd.AddCommand(serveCmd, redeployCmd, setupCmd, versionCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	log.InitLog(cfg.LogLevel)
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log.Info("Starting apphost", "version", version.GetVersion(), "config", cfg.ConfigPath)

	ctx := cmd.Context()
	a, err := agent.NewAgent(ctx, cfg)
	if err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		log.Info("Initiating graceful shutdown...")
		select {
		case <-done:
		case <-time.After(shutdownGrace):
			log.Warn("Shutdown timed out, exiting")
			os.Exit(1)
		}
	}()

	runErr := a.Run(ctx)
	a.Close()
	close(done)

	if runErr != nil && !errors.Is(runErr, ctx.Err()) {
		return runErr
	}
	log.Info("apphost stopped")
	return nil
}

func runRedeploy(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return agent.Redeploy(cmd.Context(), cfg, args[0], cmd.OutOrStdout())
}

func runSetup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if _, err := agent.EnsureSessionSecret(cfg, cfg.WorkDir); err != nil {
		return err
	}

	admin, err := agent.Setup(cmd.Context(), cfg, userservice.NewUser{
		Username:       setupUsername,
		Email:          setupEmail,
		Password:       setupPassword,
		HashedPassword: setupHashedPassword,
	})
	if admin != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Admin %s <%s> created with id %s\n", admin.Username, admin.Email, admin.ID)
	}
	return err
}
