package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/3run4/stampcard/config"
	"github.com/3run4/stampcard/gateway"
	"github.com/3run4/stampcard/routes"
	"github.com/3run4/stampcard/session"
	"github.com/3run4/stampcard/utils"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "stampcard",
		Short:         "Run club stamp card service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
	cmd.AddCommand(serveCmd(), exportCmd(), raffleCmd())
	return cmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
}

func serve() error {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		return err
	}
	defer func() { _ = utils.Logger.Sync() }()

	timeout := time.Duration(cfg.GatewayTimeoutSec) * time.Second
	client := gateway.NewClient(cfg.GatewayBaseURL, timeout, gateway.WithLogger(utils.Logger))

	ttl := time.Duration(cfg.SessionTTLMinutes) * time.Minute
	registry := session.NewRegistry(session.NewStore(cfg, utils.Logger), ttl, utils.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// Idle sessions and expired cache rows are dropped in the background
	registry.StartSweeper(ctx, 5*time.Minute)

	r := routes.SetupRouter(cfg, client, registry, utils.NewCacheFromConfig(cfg, utils.Logger))

	utils.Sugar.Infof("Starting server on port %s (graceful), gateway %s", cfg.AppPort, client.BaseURL())
	if err := utils.GraceServer(":"+cfg.AppPort, r, timeout, cancel); err != nil {
		utils.Sugar.Errorf("server stopped with error: %v", err)
		return err
	}
	return nil
}
