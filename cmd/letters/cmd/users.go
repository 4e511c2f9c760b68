package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var userEmail string

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage users of the local database",
}

var usersAddCmd = &cobra.Command{
	Use:   "add [user-id]",
	Short: "Register a user",
	Long: `Register a user in the local database. Without an id a random UUID is
assigned.

Examples:
  letters users add alice --email alice@example.com
  letters users add`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := MustBeLocal("users add"); err != nil {
			return err
		}
		s, err := openLocalStore()
		if err != nil {
			return err
		}
		defer s.Close()

		var userID string
		if len(args) > 0 {
			userID = args[0]
		}
		p, err := s.CreateUser(cmd.Context(), userID, userEmail)
		if err != nil {
			return fmt.Errorf("add user: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added user %s\n", p.UserID)
		return nil
	},
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered users",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := MustBeLocal("users list"); err != nil {
			return err
		}
		s, err := openLocalStore()
		if err != nil {
			return err
		}
		defer s.Close()

		users, err := s.ListUsers(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(users) == 0 {
			fmt.Fprintln(out, "No users found. Use 'letters users add <id>' to add one.")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "USER ID\tEMAIL\tLAST LOGIN")
		fmt.Fprintln(w, "───────\t─────\t──────────")
		for _, u := range users {
			email, login := u.Email, "-"
			if email == "" {
				email = "-"
			}
			if u.LastLoginAt != nil {
				login = formatDate(*u.LastLoginAt)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", u.UserID, email, login)
		}
		w.Flush()
		fmt.Fprintf(out, "\n%d user(s)\n", len(users))
		return nil
	},
}

func init() {
	usersAddCmd.Flags().StringVar(&userEmail, "email", "", "email address of the user")
	usersCmd.AddCommand(usersAddCmd, usersListCmd)
	rootCmd.AddCommand(usersCmd)
}
