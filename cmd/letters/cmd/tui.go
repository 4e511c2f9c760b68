package cmd

import (
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/itsluminous/Letters/internal/contacts"
	"github.com/itsluminous/Letters/internal/feed"
	"github.com/itsluminous/Letters/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Read letters in the terminal",
	Long: `Open an interactive reader showing one letter at a time.

Navigation:
  ←/h, →/l    Previous/next letter
  Home/End    First/last letter
  ↑/k, ↓/j    Scroll the letter
  Tab         Switch between inbox and sent
  /           Filter (from:name after:YYYY-MM-DD before:YYYY-MM-DD)
  m           Mark the current letter read
  r           Refresh
  g           Toggle mouse gestures
  ?           Help
  q           Quit

Mouse:
  Wheel       Next/previous letter
  Drag ←/→    Swipe to the next/previous letter

Gesture sensitivity is configured under [navigation] in config.toml.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !hasTTY() {
			return errors.New("tui requires a terminal; use 'letters inbox' for scripted access")
		}

		ctx := cmd.Context()
		sess, cleanup, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		book := contacts.New(sess, retryPolicy())
		feedOpts := feed.Options{Retry: retryPolicy(), Directory: book}

		model := tui.New(tui.Options{
			Inbox:      feed.NewInbox(sess, feedOpts),
			Sent:       feed.NewSent(sess, feedOpts),
			Contacts:   book,
			Navigation: navOptions(),
			WheelStep:  cfg.Navigation.WheelStep,
			Version:    Version,
		})
		p := tea.NewProgram(model,
			tea.WithAltScreen(),
			tea.WithMouseCellMotion(),
			tea.WithContext(ctx),
		)

		if _, err := p.Run(); err != nil {
			if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("run tui: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}
