package tui

import (
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/itsluminous/Letters/internal/backend"
	"github.com/itsluminous/Letters/internal/contacts"
	"github.com/itsluminous/Letters/internal/feed"
	"github.com/itsluminous/Letters/internal/nav"
	"github.com/itsluminous/Letters/internal/query"
	"github.com/itsluminous/Letters/internal/store"
	"github.com/itsluminous/Letters/internal/testutil"
)

// ansiStart is the escape sequence prefix found in styled terminal output.
const ansiStart = "\x1b["

// colorProfileMu serializes tests that mutate the global lipgloss color profile.
var colorProfileMu sync.Mutex

// forceColorProfile sets lipgloss to ANSI color output for tests that assert
// on styled output. It acquires colorProfileMu to prevent data races with
// parallel tests and restores the original profile via t.Cleanup.
func forceColorProfile(t *testing.T) {
	t.Helper()
	colorProfileMu.Lock()
	orig := lipgloss.ColorProfile()
	lipgloss.SetColorProfile(termenv.ANSI)
	t.Cleanup(func() {
		lipgloss.SetColorProfile(orig)
		colorProfileMu.Unlock()
	})
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)

func stripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

// fixedNow keeps wheel events inside one gesture.
var fixedNow = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// fixture is a store with alice, bob and carol, where bob has three unread
// letters (two from alice, one from carol) and has sent one to alice.
type fixture struct {
	st      *store.Store
	a1, c1  query.Letter
	a2      query.Letter
	reply   query.Letter
	options Options
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, _ := testutil.NewTestStore(t)
	testutil.MustCreateUsers(t, st, "alice", "bob", "carol")
	testutil.MustAddContact(t, st, "bob", "alice", "Alice")

	f := &fixture{st: st}
	f.a1 = testutil.MustSend(t, st, "alice", "bob", "first")
	f.c1 = testutil.MustSend(t, st, "carol", "bob", "second")
	f.a2 = testutil.MustSend(t, st, "alice", "bob", "third")
	f.reply = testutil.MustSend(t, st, "bob", "alice", "reply")
	f.options = readerOptions(t, st.As("bob"))
	return f
}

// readerOptions wires feeds and contacts for the user b acts as.
func readerOptions(t *testing.T, b backend.Backend) Options {
	t.Helper()
	sess, _ := testutil.MustOpenSession(t, b)
	book := contacts.New(sess, testutil.FastRetry())
	feedOpts := feed.Options{Retry: testutil.FastRetry(), Directory: book}

	navOpts := nav.DefaultOptions()
	navOpts.Now = func() time.Time { return fixedNow }

	return Options{
		Inbox:      feed.NewInbox(sess, feedOpts),
		Sent:       feed.NewSent(sess, feedOpts),
		Contacts:   book,
		Navigation: navOpts,
	}
}

// newLoadedModel returns a sized model with its first load applied.
func newLoadedModel(t *testing.T, opts Options) Model {
	t.Helper()
	m := New(opts)
	m = update(m, tea.WindowSizeMsg{Width: 80, Height: 24})
	return deliver(t, m, m.loadLetters(true))
}

func update(m Model, msg tea.Msg) Model {
	next, _ := m.Update(msg)
	return next.(Model)
}

// deliver runs a data command synchronously and feeds its message back.
func deliver(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	return update(m, cmd())
}

func key(s string) tea.KeyMsg {
	switch s {
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "home":
		return tea.KeyMsg{Type: tea.KeyHome}
	case "end":
		return tea.KeyMsg{Type: tea.KeyEnd}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// typeText sends each rune of s as a key press.
func typeText(m Model, s string) Model {
	for _, r := range s {
		m = update(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func wheel(button tea.MouseButton) tea.MouseMsg {
	return tea.MouseMsg{Button: button, Action: tea.MouseActionPress}
}

// drag simulates a left-button drag from x0 to x1.
func drag(m Model, x0, x1 int) Model {
	m = update(m, tea.MouseMsg{X: x0, Y: 10, Button: tea.MouseButtonLeft, Action: tea.MouseActionPress})
	m = update(m, tea.MouseMsg{X: (x0 + x1) / 2, Y: 10, Button: tea.MouseButtonLeft, Action: tea.MouseActionMotion})
	return update(m, tea.MouseMsg{X: x1, Y: 10, Button: tea.MouseButtonLeft, Action: tea.MouseActionRelease})
}

func assertIndex(t *testing.T, m Model, want int) {
	t.Helper()
	if got := m.nav.Index(); got != want {
		t.Errorf("index = %d, want %d", got, want)
	}
}

func assertViewContains(t *testing.T, m Model, subs ...string) {
	t.Helper()
	view := stripANSI(m.View())
	for _, s := range subs {
		if !strings.Contains(view, s) {
			t.Errorf("view missing %q:\n%s", s, view)
		}
	}
}
