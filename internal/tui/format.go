package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"

	"github.com/itsluminous/Letters/internal/query"
)

// padRight pads a string with spaces to fill width terminal cells.
// Uses lipgloss.Width to correctly handle ANSI codes and full-width characters.
func padRight(s string, width int) string {
	if width <= 0 {
		return ""
	}
	sw := lipgloss.Width(s)
	if sw >= width {
		return ansi.Truncate(s, width, "")
	}
	return s + strings.Repeat(" ", width-sw)
}

// truncateRunes truncates a string to fit within maxWidth terminal cells.
// Newlines and tabs are flattened so the result stays on one line.
func truncateRunes(s string, maxWidth int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\t", " ")

	width := runewidth.StringWidth(s)
	if width <= maxWidth {
		return s
	}
	if maxWidth <= 3 {
		return runewidth.Truncate(s, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth, "...")
}

// wrapText wraps text to fit within width terminal cells.
// Uses runewidth to correctly handle full-width characters (CJK, emoji, etc.)
func wrapText(text string, width int) []string {
	if width <= 0 {
		width = 80
	}

	var result []string
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	for _, line := range lines {
		line = strings.ReplaceAll(line, "\t", "    ")
		if runewidth.StringWidth(line) <= width {
			result = append(result, line)
			continue
		}

		runes := []rune(line)
		for len(runes) > 0 {
			currentWidth := 0
			breakAt := 0
			lastSpace := -1

			for i, r := range runes {
				rw := runewidth.RuneWidth(r)
				if currentWidth+rw > width {
					break
				}
				currentWidth += rw
				breakAt = i + 1
				if r == ' ' {
					lastSpace = i
				}
			}

			// Prefer breaking at a space in the latter half of the line.
			if lastSpace > breakAt/2 && breakAt < len(runes) {
				breakAt = lastSpace
			}

			if breakAt == 0 {
				// Single character too wide, take it anyway
				breakAt = 1
			}

			result = append(result, string(runes[:breakAt]))
			runes = runes[breakAt:]

			for len(runes) > 0 && runes[0] == ' ' {
				runes = runes[1:]
			}
		}
	}

	return result
}

// truncateToWidth returns the prefix of s that fits within maxWidth visual columns.
// Uses ANSI-aware truncation to preserve escape sequences.
func truncateToWidth(s string, maxWidth int) string {
	return ansi.Truncate(s, maxWidth, "")
}

// skipToWidth returns the suffix of s starting after skipWidth visual columns.
func skipToWidth(s string, skipWidth int) string {
	return ansi.Cut(s, skipWidth, 10000)
}

// formatTimestamp renders t in local time, omitting the year when it is
// the current one.
func formatTimestamp(t, now time.Time) string {
	t = t.Local()
	if t.Year() == now.Local().Year() {
		return t.Format("Jan 2 15:04")
	}
	return t.Format("Jan 2 2006 15:04")
}

// formatAgo renders how long before now t was, in the largest whole unit.
func formatAgo(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 30*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return formatTimestamp(t, now)
	}
}

// correspondent returns the label of the other party of a letter.
func correspondent(kind query.FeedKind, l query.Letter) string {
	if kind == query.Sent {
		if l.Recipient != nil && l.Recipient.Label != "" {
			return l.Recipient.Label
		}
		return l.RecipientID
	}
	if l.Author != nil && l.Author.Label != "" {
		return l.Author.Label
	}
	return l.AuthorID
}
