package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/toolrelay/toolrelay/internal/config"
	"github.com/toolrelay/toolrelay/internal/dependency"
)

const shutdownTimeout = 10 * time.Second

var (
	servePort int
	serveHost string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the WebSocket tool server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 3000, "Preferred port; the next free port is used if it is taken")
	serveCmd.Flags().StringVar(&serveHost, "host", "localhost", "Interface to listen on")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, func(cfg *config.Config) {
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = servePort
		}
		if cmd.Flags().Changed("host") {
			cfg.Server.Host = serveHost
		}
	})
	if err != nil {
		return err
	}

	c, err := dependency.New(cfg, dependency.Options{})
	if err != nil {
		return fmt.Errorf("wire services: %w", err)
	}
	slog.SetDefault(c.Logger())

	// Graceful shutdown context.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := c.Server()
	port, err := srv.Start(ctx)
	if err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	fmt.Printf("toolrelay server started on port %d\n", port)
	fmt.Printf("Tools: %d registered. Press Ctrl+C to stop.\n", c.Registry().Len())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		fmt.Println("\nShutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Stop(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("shutdown: %w", err)
	}
	fmt.Println("Shutdown complete.")
	return nil
}
