package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"apphost/pkg/log"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error("Command failed", "error", err)
		os.Exit(1)
	}
}
