package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/itsluminous/Letters/internal/config"
	"github.com/itsluminous/Letters/internal/nav"
	"github.com/itsluminous/Letters/internal/retry"
)

var (
	cfgFile  string
	homeDir  string
	verbose  bool
	useLocal bool   // Force local database even when remote is configured
	actAs    string // Overrides [identity] user_id for the local database
	cfg      *config.Config
	logger   *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "letters",
	Short: "Slow letters between friends",
	Long: `letters delivers short letters between users. Each letter is read
once, oldest first, and can be edited or withdrawn until it is read.

Letters are stored in a local SQLite database, or on a letters server
configured under [remote] in config.toml.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for commands that don't need it
		if cmd.Name() == "version" {
			return nil
		}

		// Set up logging
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		}))

		// Load config (--home is passed through so it influences
		// where config.toml is loaded from, like LETTERS_HOME).
		var err error
		cfg, err = config.Load(cfgFile, homeDir)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if actAs != "" {
			cfg.Identity.UserID = actAs
		}

		// Ensure data directory exists on first use
		if !IsRemoteMode() {
			if err := os.MkdirAll(cfg.Data.DataDir, 0700); err != nil {
				return fmt.Errorf("create data directory %s: %w", cfg.Data.DataDir, err)
			}
		}

		return nil
	},
}

// Execute runs the root command with a background context.
// Prefer ExecuteContext for signal-aware execution.
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with the given context,
// enabling graceful shutdown when the context is cancelled.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// retryPolicy builds the read retry policy from [retry].
func retryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:  cfg.Retry.MaxAttempts,
		InitialDelay: cfg.Retry.InitialDelay(),
		Logger:       logger,
	}
}

// navOptions builds reader navigation tuning from [navigation].
func navOptions() nav.Options {
	n := cfg.Navigation
	return nav.Options{
		EnableGestures: n.EnableGestures,
		Swipe: nav.SwipeConfig{
			NarrowThreshold:  n.SwipeThresholdNarrow,
			WideThreshold:    n.SwipeThresholdWide,
			NarrowBreakpoint: n.NarrowBreakpoint,
		},
		Wheel: nav.WheelConfig{
			Threshold:  n.WheelThreshold,
			ResetAfter: n.WheelReset(),
		},
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.letters/config.toml)")
	rootCmd.PersistentFlags().StringVar(&homeDir, "home", "", "home directory (overrides LETTERS_HOME)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&useLocal, "local", false, "force local database (override remote config)")
	rootCmd.PersistentFlags().StringVar(&actAs, "as", "", "user id to act as on the local database (overrides [identity] user_id)")
}
