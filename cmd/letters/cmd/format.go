package cmd

import (
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/itsluminous/Letters/internal/query"
	"github.com/itsluminous/Letters/internal/textutil"
)

const shortIDLen = 8

func shortID(id string) string {
	if len(id) <= shortIDLen {
		return id
	}
	return id[:shortIDLen]
}

func formatDate(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04")
}

// preview flattens content onto one line of at most width cells.
func preview(content string, width int) string {
	return runewidth.Truncate(strings.Join(strings.Fields(textutil.Clean(content)), " "), width, "...")
}

func readStatus(l query.Letter) string {
	if !l.IsRead {
		return "unread"
	}
	if l.ReadAt != nil {
		return "read " + formatDate(*l.ReadAt)
	}
	return "read"
}

// correspondentLabel is the other party's label, or their id.
func correspondentLabel(kind query.FeedKind, l query.Letter) string {
	s := l.Author
	id := l.AuthorID
	if kind == query.Sent {
		s, id = l.Recipient, l.RecipientID
	}
	if s != nil && s.Label != "" {
		return s.Label
	}
	return id
}
