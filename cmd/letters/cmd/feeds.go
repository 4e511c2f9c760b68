package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/itsluminous/Letters/internal/backend"
	"github.com/itsluminous/Letters/internal/contacts"
	"github.com/itsluminous/Letters/internal/feed"
	"github.com/itsluminous/Letters/internal/query"
	"github.com/itsluminous/Letters/internal/search"
	"github.com/itsluminous/Letters/internal/session"
	"github.com/itsluminous/Letters/internal/textutil"
)

var (
	feedFilter string
	feedJSON   bool
	readNoMark bool
)

var inboxCmd = &cobra.Command{
	Use:   "inbox",
	Short: "List letters addressed to you",
	Long: `List unread letters, oldest first. When nothing is unread, read letters
are listed instead, newest first.

Filter with --filter using from:<name>, after:YYYY-MM-DD, before:YYYY-MM-DD,
newer_than:<n><d|w|m|y> and older_than:<n><d|w|m|y>. Names are contact
display names or user ids.

Examples:
  letters inbox
  letters inbox --filter 'from:Alice after:2024-01-01'
  letters inbox --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFeed(cmd, query.Inbox)
	},
}

var sentCmd = &cobra.Command{
	Use:   "sent",
	Short: "List letters you wrote",
	Long: `List letters you wrote, newest first, with the recipient's read state
and when they last signed in.

Examples:
  letters sent
  letters sent --filter 'to:bob newer_than:7d'`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFeed(cmd, query.Sent)
	},
}

var readCmd = &cobra.Command{
	Use:   "read <letter-id>",
	Short: "Show an inbox letter and mark it read",
	Long: `Print the full text of a letter in your inbox and mark it as read.
Letter ids may be abbreviated to any unique prefix shown by 'letters inbox'.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		sess, cleanup, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		svc, err := openFeed(ctx, sess, query.Inbox, "")
		if err != nil {
			return err
		}
		letters, err := svc.Refresh(ctx)
		if err != nil {
			return err
		}
		l, err := findLetter(letters, args[0])
		if err != nil {
			return err
		}

		printLetter(cmd.OutOrStdout(), query.Inbox, l)
		if readNoMark || l.IsRead {
			return nil
		}
		if err := svc.MarkAsRead(ctx, l.ID); err != nil {
			return fmt.Errorf("mark as read: %w", err)
		}
		return nil
	},
}

func runFeed(cmd *cobra.Command, kind query.FeedKind) error {
	ctx := cmd.Context()
	sess, cleanup, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	svc, err := openFeed(ctx, sess, kind, feedFilter)
	if err != nil {
		return err
	}
	letters, err := svc.Refresh(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if feedJSON {
		return outputLettersJSON(out, letters)
	}
	if len(letters) == 0 {
		switch {
		case feedFilter != "":
			fmt.Fprintln(out, "No letters match this filter.")
		case kind == query.Sent:
			fmt.Fprintln(out, "You have not sent any letters yet.")
		default:
			fmt.Fprintln(out, "No letters yet.")
		}
		return nil
	}
	outputLettersTable(out, kind, letters)
	return nil
}

// openFeed builds the feed service for kind with the contact book as its
// label directory and the filter text applied.
func openFeed(ctx context.Context, sess *session.Session, kind query.FeedKind, filter string) (*feed.Service, error) {
	book := contacts.New(sess, retryPolicy())
	svc := feed.New(kind, sess, feed.Options{Retry: retryPolicy(), Directory: book})
	if filter == "" {
		return svc, nil
	}

	q, err := search.Parse(filter)
	if err != nil {
		return nil, fmt.Errorf("invalid filter: %w", err)
	}
	ids := make([]string, 0, len(q.Names))
	for _, name := range q.Names {
		resolved, err := book.Resolve(ctx, []string{name})
		if err != nil {
			if backend.KindOf(err) != backend.KindValidation {
				return nil, err
			}
			// Names that are not contacts are taken as user ids.
			logger.Debug("filter name is not a contact, using it as a user id", "name", name)
			ids = append(ids, name)
			continue
		}
		ids = append(ids, resolved...)
	}
	svc.SetFilter(q.FilterSpec(ids))
	return svc, nil
}

// findLetter matches id as a full id or a unique prefix.
func findLetter(letters []query.Letter, id string) (query.Letter, error) {
	var match *query.Letter
	for i := range letters {
		l := &letters[i]
		if l.ID == id {
			return *l, nil
		}
		if len(id) >= 4 && len(l.ID) > len(id) && l.ID[:len(id)] == id {
			if match != nil {
				return query.Letter{}, fmt.Errorf("letter id %q is ambiguous", id)
			}
			match = l
		}
	}
	if match == nil {
		return query.Letter{}, fmt.Errorf("letter %s is not in your inbox", id)
	}
	return *match, nil
}

func outputLettersTable(out io.Writer, kind query.FeedKind, letters []query.Letter) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	who := "FROM"
	if kind == query.Sent {
		who = "TO"
	}
	fmt.Fprintf(w, "ID\t%s\tDATE\tSTATUS\tPREVIEW\n", who)
	fmt.Fprintln(w, "──\t────\t────\t──────\t───────")
	for _, l := range letters {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			shortID(l.ID),
			runewidth.Truncate(correspondentLabel(kind, l), 20, "..."),
			formatDate(l.CreatedAt),
			readStatus(l),
			preview(l.Content, 40),
		)
	}
	w.Flush()
	fmt.Fprintf(out, "\n%d letter(s)\n", len(letters))
}

type letterJSON struct {
	ID          string     `json:"id"`
	AuthorID    string     `json:"author_id"`
	Author      string     `json:"author,omitempty"`
	RecipientID string     `json:"recipient_id"`
	Recipient   string     `json:"recipient,omitempty"`
	Content     string     `json:"content"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	IsRead      bool       `json:"is_read"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
	LastLoginAt *time.Time `json:"recipient_last_login_at,omitempty"`
}

func outputLettersJSON(out io.Writer, letters []query.Letter) error {
	output := make([]letterJSON, len(letters))
	for i, l := range letters {
		j := letterJSON{
			ID:          l.ID,
			AuthorID:    l.AuthorID,
			RecipientID: l.RecipientID,
			Content:     l.Content,
			CreatedAt:   l.CreatedAt,
			UpdatedAt:   l.UpdatedAt,
			IsRead:      l.IsRead,
			ReadAt:      l.ReadAt,
		}
		if l.Author != nil {
			j.Author = l.Author.Label
		}
		if l.Recipient != nil {
			j.Recipient = l.Recipient.Label
			j.LastLoginAt = l.Recipient.LastLoginAt
		}
		output[i] = j
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}

func printLetter(out io.Writer, kind query.FeedKind, l query.Letter) {
	if kind == query.Sent {
		fmt.Fprintf(out, "To:   %s\n", correspondentLabel(kind, l))
	} else {
		fmt.Fprintf(out, "From: %s\n", correspondentLabel(kind, l))
	}
	fmt.Fprintf(out, "Date: %s\n", formatDate(l.CreatedAt))
	if l.UpdatedAt.After(l.CreatedAt) {
		fmt.Fprintf(out, "Edited: %s\n", formatDate(l.UpdatedAt))
	}
	fmt.Fprintf(out, "ID:   %s\n\n%s\n", l.ID, textutil.Clean(l.Content))
}

func init() {
	for _, c := range []*cobra.Command{inboxCmd, sentCmd} {
		c.Flags().StringVarP(&feedFilter, "filter", "f", "", "filter, e.g. 'from:alice after:2024-01-01'")
		c.Flags().BoolVar(&feedJSON, "json", false, "output as JSON")
	}
	readCmd.Flags().BoolVar(&readNoMark, "no-mark", false, "show the letter without marking it read")
	rootCmd.AddCommand(inboxCmd, sentCmd, readCmd)
}
