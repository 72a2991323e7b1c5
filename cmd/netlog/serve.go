package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/netlog/internal/server"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the netlog HTTP server",
		Long: "Serves the session and record API plus live SSE and WebSocket\n" +
			"streams. Identity is read from headers set by your auth proxy.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to netlog config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides server.port)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.close()

	if port == 0 {
		port = a.cfg.Server.Port
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	a.log.WithField("net", a.cfg.Net.Name).WithField("driver", a.cfg.Database.Driver).Info("starting server")
	return server.Start(ctx, server.StartOpts{
		Manager:     a.manager,
		Hub:         a.hub,
		Port:        port,
		Out:         cmd.OutOrStdout(),
		Logger:      a.log,
		KeepAlive:   a.cfg.Server.KeepAlive,
		ActorHeader: a.cfg.Server.ActorHeader,
		RoleHeader:  a.cfg.Server.RoleHeader,
	})
}
