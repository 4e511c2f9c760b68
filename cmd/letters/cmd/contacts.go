package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/itsluminous/Letters/internal/contacts"
)

var contactsCmd = &cobra.Command{
	Use:   "contacts",
	Short: "Manage your contacts",
}

var contactsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your contacts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		sess, cleanup, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		list, err := contacts.New(sess, retryPolicy()).List(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(list) == 0 {
			fmt.Fprintln(out, "No contacts yet. Use 'letters contacts add <user-id> <name>' to add one.")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tUSER ID\tADDED")
		fmt.Fprintln(w, "────\t───────\t─────")
		for _, c := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\n", c.DisplayName, c.ContactUserID, formatDate(c.CreatedAt))
		}
		w.Flush()
		fmt.Fprintf(out, "\n%d contact(s)\n", len(list))
		return nil
	},
}

var contactsAddCmd = &cobra.Command{
	Use:   "add <user-id> <display name...>",
	Short: "Add a contact",
	Long: `Add a user to your contacts under a display name. Letters from and to
contacts are labelled with the display name, and the name can be used in
filters and as a 'letters send' recipient.

Example:
  letters contacts add 6f1c2a90-... Alice Smith`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		sess, cleanup, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		_, err = contacts.New(sess, retryPolicy()).Add(ctx, args[0], strings.Join(args[1:], " "))
		return err
	},
}

func init() {
	contactsCmd.AddCommand(contactsListCmd, contactsAddCmd)
	rootCmd.AddCommand(contactsCmd)
}
