package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/itsluminous/Letters/internal/backend"
	"github.com/itsluminous/Letters/internal/compose"
	"github.com/itsluminous/Letters/internal/contacts"
	"github.com/itsluminous/Letters/internal/session"
)

var sendCmd = &cobra.Command{
	Use:   "send <recipient> [text...]",
	Short: "Write a letter",
	Long: `Send a letter to a contact (by display name) or a user id. Without text
arguments the letter is read from standard input.

Examples:
  letters send Alice "See you on Sunday"
  letters send 6f1c2a90-... < letter.txt`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		content, err := letterText(cmd.InOrStdin(), args[1:])
		if err != nil {
			return err
		}

		sess, cleanup, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		recipient, err := resolveRecipient(ctx, sess, args[0])
		if err != nil {
			return err
		}
		l, err := compose.New(sess).Send(ctx, recipient, content)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Sent letter %s\n", shortID(l.ID))
		return nil
	},
}

var editCmd = &cobra.Command{
	Use:   "edit <letter-id> [text...]",
	Short: "Rewrite a letter that has not been read",
	Long: `Replace the text of a letter you sent. Only letters the recipient has
not read yet can be edited. Without text arguments the new text is read from
standard input.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		content, err := letterText(cmd.InOrStdin(), args[1:])
		if err != nil {
			return err
		}

		sess, cleanup, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		svc := compose.New(sess)
		if _, err := svc.Load(ctx, args[0]); err != nil {
			return err
		}
		l, err := svc.Edit(ctx, args[0], content)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated letter %s\n", shortID(l.ID))
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <letter-id>",
	Short: "Withdraw a letter that has not been read",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		sess, cleanup, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		if err := compose.New(sess).Delete(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted letter %s\n", shortID(args[0]))
		return nil
	},
}

// letterText joins args, or reads in when there are none.
func letterText(in io.Reader, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	if f, ok := in.(*os.File); ok && isTerminal(f) {
		fmt.Fprintln(os.Stderr, "Type the letter, then press Ctrl+D:")
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("read letter: %w", err)
	}
	return string(data), nil
}

// resolveRecipient maps a contact display name to its user id. Anything
// that is not a contact is taken as a user id.
func resolveRecipient(ctx context.Context, sess *session.Session, name string) (string, error) {
	ids, err := contacts.New(sess, retryPolicy()).Resolve(ctx, []string{name})
	if err != nil {
		if backend.KindOf(err) == backend.KindValidation {
			return name, nil
		}
		return "", err
	}
	return ids[0], nil
}

func init() {
	rootCmd.AddCommand(sendCmd, editCmd, deleteCmd)
}
