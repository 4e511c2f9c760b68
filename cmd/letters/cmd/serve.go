package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/itsluminous/Letters/internal/api"
	"github.com/itsluminous/Letters/internal/backend"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the local database to remote clients",
	Long: `Run an HTTP server that exposes the local letters database to remote
clients ('letters' with [remote] configured).

Each request is authenticated by a bearer token mapped to a user:
  [[server.tokens]]
  token = "a-long-random-string"
  user_id = "alice"

Without tokens every request acts as [identity] user_id, which is only
allowed when binding to a loopback address.

Use Ctrl+C to stop the server gracefully.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := MustBeLocal("serve"); err != nil {
		return err
	}
	// Validate security posture before doing any work
	if err := cfg.Server.ValidateSecure(); err != nil {
		return err
	}

	s, err := openLocalStore()
	if err != nil {
		return err
	}
	defer s.Close()

	apiServer := api.NewServer(cfg, func(userID string) backend.Backend {
		return s.As(userID)
	}, logger)

	bindAddr := cfg.Server.BindAddr
	if bindAddr == "" {
		bindAddr = "127.0.0.1"
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "letters server started\n")
	fmt.Fprintf(out, "  API server: http://%s\n", net.JoinHostPort(bindAddr, strconv.Itoa(cfg.Server.APIPort)))
	fmt.Fprintf(out, "  Database: %s\n", cfg.DatabaseDSN())
	fmt.Fprintf(out, "  Tokens: %d\n", len(cfg.Server.TokenUsers()))
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Press Ctrl+C to stop.")

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		if err := apiServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("API server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down", "reason", context.Cause(ctx))
		fmt.Fprintln(out, "\nShutting down API server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("API server shutdown error", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	fmt.Fprintln(out, "Shutdown complete.")
	return nil
}
