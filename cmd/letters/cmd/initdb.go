package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var initDBCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Initialize the database schema",
	Long: `Initialize the letters database with the required schema.

This command creates the tables for user profiles, letters and contacts.
It is safe to run multiple times - tables are only created if they don't
already exist.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := MustBeLocal("init-db"); err != nil {
			return err
		}

		dbPath := cfg.DatabaseDSN()
		logger.Info("initializing database", "path", dbPath)

		s, err := openLocalStore()
		if err != nil {
			return err
		}
		defer s.Close()

		logger.Info("database initialized successfully")

		// Print stats
		stats, err := s.GetStats(cmd.Context())
		if err != nil {
			return fmt.Errorf("get stats: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Database: %s\n", dbPath)
		fmt.Fprintf(out, "  Users:    %d\n", stats.UserCount)
		fmt.Fprintf(out, "  Letters:  %d (%d unread)\n", stats.LetterCount, stats.UnreadCount)
		fmt.Fprintf(out, "  Contacts: %d\n", stats.ContactCount)
		fmt.Fprintf(out, "  Size:     %.2f MB\n", float64(stats.DatabaseSize)/(1024*1024))

		return nil
	},
}

func init() {
	rootCmd.AddCommand(initDBCmd)
}
