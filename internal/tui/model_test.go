package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/itsluminous/Letters/internal/backend"
	"github.com/itsluminous/Letters/internal/query"
	"github.com/itsluminous/Letters/internal/search"
	"github.com/itsluminous/Letters/internal/testutil"
	"github.com/itsluminous/Letters/internal/testutil/backendmock"
)

func TestInitialLoad_ShowsOldestUnread(t *testing.T) {
	f := newFixture(t)
	m := newLoadedModel(t, f.options)

	if m.loading {
		t.Error("expected loading to be false after load")
	}
	testutil.AssertStrings(t, testutil.LetterIDs(m.letters), f.a1.ID, f.c1.ID, f.a2.ID)
	assertIndex(t, m, 0)
	assertViewContains(t, m, "Inbox", "From: Alice", "Unread", "first", "1/3")
}

func TestView_BeforeWindowSize(t *testing.T) {
	f := newFixture(t)
	m := New(f.options)
	if got := m.View(); got != "Loading..." {
		t.Errorf("View() = %q, want Loading...", got)
	}
}

func TestKeyboardNavigation(t *testing.T) {
	f := newFixture(t)
	m := newLoadedModel(t, f.options)

	m = update(m, key("left"))
	assertIndex(t, m, 0)

	m = update(m, key("right"))
	assertIndex(t, m, 1)
	assertViewContains(t, m, "From: carol", "second", "2/3")

	m = update(m, key("l"))
	assertIndex(t, m, 2)
	m = update(m, key("right"))
	assertIndex(t, m, 2)

	m = update(m, key("h"))
	assertIndex(t, m, 1)

	m = update(m, key("end"))
	assertIndex(t, m, 2)
	m = update(m, key("home"))
	assertIndex(t, m, 0)
}

func TestWheel_AccumulatesNotches(t *testing.T) {
	f := newFixture(t)
	m := newLoadedModel(t, f.options)

	m = update(m, wheel(tea.MouseButtonWheelDown))
	m = update(m, wheel(tea.MouseButtonWheelDown))
	assertIndex(t, m, 0)

	m = update(m, wheel(tea.MouseButtonWheelDown))
	assertIndex(t, m, 1)

	for range 3 {
		m = update(m, wheel(tea.MouseButtonWheelUp))
	}
	assertIndex(t, m, 0)
}

func TestSwipe(t *testing.T) {
	f := newFixture(t)
	m := newLoadedModel(t, f.options)

	// 3 cells is 24px, under the narrow threshold.
	m = drag(m, 40, 37)
	assertIndex(t, m, 0)

	m = drag(m, 40, 35)
	assertIndex(t, m, 1)

	m = drag(m, 30, 36)
	assertIndex(t, m, 0)
}

func TestGestureToggle(t *testing.T) {
	f := newFixture(t)
	m := newLoadedModel(t, f.options)
	assertViewContains(t, m, "g gestures:on")

	m = update(m, key("g"))
	if m.nav.GesturesEnabled() {
		t.Fatal("expected gestures to be disabled")
	}
	if m.flashMessage != "Gestures off" {
		t.Errorf("flash = %q, want Gestures off", m.flashMessage)
	}

	m = drag(m, 40, 20)
	for range 3 {
		m = update(m, wheel(tea.MouseButtonWheelDown))
	}
	assertIndex(t, m, 0)

	// Keyboard navigation is unaffected.
	m = update(m, key("right"))
	assertIndex(t, m, 1)
}

func TestMarkRead(t *testing.T) {
	f := newFixture(t)
	m := newLoadedModel(t, f.options)

	next, cmd := m.Update(key("m"))
	m = next.(Model)
	if cmd == nil {
		t.Fatal("expected a mark command")
	}
	if !m.loading {
		t.Error("expected loading while marking")
	}

	// The letter reads as read before the backend has answered.
	if cur, _ := m.current(); cur.ID != f.a1.ID || !cur.IsRead || cur.ReadAt == nil {
		t.Errorf("current letter = %+v, want %s marked read", cur, f.a1.ID)
	}
	assertViewContains(t, m, " Read ", "1/3")
	stored, err := f.st.As("bob").Select(t.Context(), query.UnreadInbox("bob", query.FilterSpec{}))
	testutil.MustNoErr(t, err, "Select")
	if len(stored) != 3 {
		t.Errorf("unread in store before commit = %d, want 3", len(stored))
	}

	m = deliver(t, m, m.markRead(f.a1.ID))
	if m.flashMessage != "Marked as read" {
		t.Errorf("flash = %q, want Marked as read", m.flashMessage)
	}
	testutil.AssertStrings(t, testutil.LetterIDs(m.letters), f.c1.ID, f.a2.ID)
	assertIndex(t, m, 0)
	assertViewContains(t, m, "1/2")

	stored, err = f.st.As("bob").Select(t.Context(), query.UnreadInbox("bob", query.FilterSpec{}))
	testutil.MustNoErr(t, err, "Select")
	if len(stored) != 2 {
		t.Errorf("unread in store = %d, want 2", len(stored))
	}
}

func TestMarkRead_KeepsIndexInRange(t *testing.T) {
	f := newFixture(t)
	m := newLoadedModel(t, f.options)

	m = update(m, key("end"))
	m = update(m, key("m"))
	m = deliver(t, m, m.markRead(f.a2.ID))
	assertIndex(t, m, 1)
	assertViewContains(t, m, "From: carol", "2/2")
}

func TestMarkRead_FailureRestoresUnread(t *testing.T) {
	created := fixedNow.Add(-time.Hour)
	l := query.Letter{
		ID: "l1", AuthorID: "alice", RecipientID: "bob", Content: "hello",
		CreatedAt: created, UpdatedAt: created,
	}
	mock := backendmock.New("bob")
	mock.SelectFunc = func(q query.Select) ([]backend.Row, error) {
		if isRead, _ := backendmock.ReadState(q); q.Table != query.TableLetters || isRead {
			return nil, nil
		}
		return []backend.Row{backendmock.LetterRow(l)}, nil
	}
	mock.UpdateFunc = func(table string, _ query.Predicate, _ backend.Patch) (backend.Row, error) {
		if table != query.TableLetters {
			return backend.Row{}, nil
		}
		return nil, backend.Errorf(backend.KindForbidden, "permission denied for table letters")
	}
	m := newLoadedModel(t, readerOptions(t, mock))

	m = update(m, key("m"))
	assertViewContains(t, m, " Read ")

	m = deliver(t, m, m.markRead("l1"))
	if cur, _ := m.current(); cur.IsRead || cur.ReadAt != nil {
		t.Errorf("current letter = %+v, want unread after failed mark", cur)
	}
	assertViewContains(t, m, "Unread", "You do not have permission")
}

func TestMarkRead_OnlyInbox(t *testing.T) {
	f := newFixture(t)
	m := newLoadedModel(t, f.options)

	m = update(m, key("tab"))
	m = deliver(t, m, m.loadLetters(true))

	next, _ := m.Update(key("m"))
	m = next.(Model)
	if m.flashMessage != "Only inbox letters can be marked as read" {
		t.Errorf("flash = %q", m.flashMessage)
	}
}

func TestSwitchFeed(t *testing.T) {
	f := newFixture(t)
	m := newLoadedModel(t, f.options)
	m = update(m, key("right"))

	m = update(m, key("tab"))
	if m.kind != query.Sent {
		t.Fatalf("kind = %v, want sent", m.kind)
	}
	assertIndex(t, m, 0)
	assertViewContains(t, m, "Loading letters...")

	m = deliver(t, m, m.loadLetters(true))
	testutil.AssertStrings(t, testutil.LetterIDs(m.letters), f.reply.ID)
	assertViewContains(t, m, "Sent", "To:   Alice", "reply", "1/1")

	view := stripANSI(m.View())
	if strings.Contains(view, "m read") {
		t.Error("sent feed footer should not offer m read")
	}

	m = update(m, key("tab"))
	m = deliver(t, m, m.loadLetters(true))
	if m.kind != query.Inbox {
		t.Fatalf("kind = %v, want inbox", m.kind)
	}
	assertIndex(t, m, 0)
}

func TestStaleLoadIsIgnored(t *testing.T) {
	f := newFixture(t)
	m := newLoadedModel(t, f.options)

	stale := m.loadLetters(true)
	m = update(m, key("tab"))
	m = update(m, stale())

	if m.kind != query.Sent || len(m.letters) != 0 {
		t.Errorf("stale inbox response was applied: kind=%v letters=%d", m.kind, len(m.letters))
	}
}

func TestFilter(t *testing.T) {
	f := newFixture(t)
	m := newLoadedModel(t, f.options)

	m = update(m, key("/"))
	if !m.filterActive {
		t.Fatal("expected filter prompt to open")
	}
	m = typeText(m, "from:Alice")

	next, cmd := m.Update(key("enter"))
	m = next.(Model)
	if cmd == nil {
		t.Fatal("expected a filter command")
	}
	if m.filterActive {
		t.Error("expected filter prompt to close")
	}
	if got := m.filters[query.Inbox]; got != "from:Alice" {
		t.Errorf("filter text = %q, want from:Alice", got)
	}

	q, err := search.Parse("from:Alice")
	testutil.MustNoErr(t, err, "Parse")
	m = deliver(t, m, m.applyFilter(q))
	testutil.AssertStrings(t, testutil.LetterIDs(m.letters), f.a1.ID, f.a2.ID)
	assertViewContains(t, m, "filter: from:Alice", "1/2")

	// Reopening the prompt starts from the active filter.
	m = update(m, key("/"))
	if got := m.filterInput.Value(); got != "from:Alice" {
		t.Errorf("prompt value = %q, want from:Alice", got)
	}
	m = update(m, key("esc"))
	if m.filterActive {
		t.Error("expected esc to close the prompt")
	}
	if got := m.filters[query.Inbox]; got != "from:Alice" {
		t.Errorf("esc changed the filter to %q", got)
	}
}

func TestFilter_Invalid(t *testing.T) {
	f := newFixture(t)
	m := newLoadedModel(t, f.options)

	m = update(m, key("/"))
	m = typeText(m, "subject:x")
	m = update(m, key("enter"))

	if !m.filterActive {
		t.Error("expected prompt to stay open on a parse error")
	}
	if !strings.HasPrefix(m.flashMessage, "Invalid filter") {
		t.Errorf("flash = %q, want Invalid filter prefix", m.flashMessage)
	}
	if m.filters[query.Inbox] != "" {
		t.Errorf("filter was applied: %q", m.filters[query.Inbox])
	}
}

func TestFilter_UnknownContact(t *testing.T) {
	f := newFixture(t)
	m := newLoadedModel(t, f.options)

	q, err := search.Parse("from:nobody")
	testutil.MustNoErr(t, err, "Parse")
	m = deliver(t, m, m.applyFilter(q))

	if !strings.Contains(m.flashMessage, `unknown contact "nobody"`) {
		t.Errorf("flash = %q", m.flashMessage)
	}
	if m.err == nil {
		t.Error("expected error state")
	}
}

func TestFilter_NoMatches(t *testing.T) {
	f := newFixture(t)
	m := newLoadedModel(t, f.options)

	m = update(m, key("/"))
	m = typeText(m, "before:2000-01-01")
	m = update(m, key("enter"))

	q, err := search.Parse("before:2000-01-01")
	testutil.MustNoErr(t, err, "Parse")
	m = deliver(t, m, m.applyFilter(q))
	if len(m.letters) != 0 {
		t.Fatalf("letters = %d, want 0", len(m.letters))
	}
	assertViewContains(t, m, "No letters match this filter.")
}

func TestEmptyInbox(t *testing.T) {
	st, _ := testutil.NewTestStore(t)
	testutil.MustCreateUsers(t, st, "dave")
	m := newLoadedModel(t, readerOptions(t, st.As("dave")))

	assertViewContains(t, m, "No letters yet.")
	m = update(m, key("right"))
	assertIndex(t, m, 0)
}

func TestLoadError_ShowsRetryHint(t *testing.T) {
	mock := backendmock.New("bob")
	mock.SelectFunc = func(q query.Select) ([]backend.Row, error) {
		return nil, backend.Errorf(backend.KindForbidden, "permission denied for table letters")
	}
	m := newLoadedModel(t, readerOptions(t, mock))

	if m.err == nil {
		t.Fatal("expected load error")
	}
	assertViewContains(t, m, "You do not have permission", "Press r to retry.")
}

func TestRefresh_KeepsPosition(t *testing.T) {
	f := newFixture(t)
	m := newLoadedModel(t, f.options)
	m = update(m, key("right"))

	testutil.MustSend(t, f.st, "carol", "bob", "fourth")
	next, _ := m.Update(key("r"))
	m = next.(Model)
	m = deliver(t, m, m.loadLetters(false))

	if len(m.letters) != 4 {
		t.Fatalf("letters = %d, want 4", len(m.letters))
	}
	assertIndex(t, m, 1)
}

func TestBodyScroll(t *testing.T) {
	st, _ := testutil.NewTestStore(t)
	testutil.MustCreateUsers(t, st, "alice", "bob")
	var lines []string
	for i := range 40 {
		lines = append(lines, strings.Repeat("x", i%10+1))
	}
	testutil.MustSend(t, st, "alice", "bob", strings.Join(lines, "\n"))
	testutil.MustSend(t, st, "alice", "bob", "short")
	m := newLoadedModel(t, readerOptions(t, st.As("bob")))

	m = update(m, key("down"))
	m = update(m, key("j"))
	if m.bodyScroll != 2 {
		t.Errorf("bodyScroll = %d, want 2", m.bodyScroll)
	}
	m = update(m, key("k"))
	if m.bodyScroll != 1 {
		t.Errorf("bodyScroll = %d, want 1", m.bodyScroll)
	}

	for range 100 {
		m = update(m, key("j"))
	}
	if want := 40 - m.bodyHeight(); m.bodyScroll != want {
		t.Errorf("bodyScroll = %d, want clamp at %d", m.bodyScroll, want)
	}

	m = update(m, key("right"))
	if m.bodyScroll != 0 {
		t.Errorf("bodyScroll = %d after moving, want 0", m.bodyScroll)
	}
}

func TestHelpModal(t *testing.T) {
	f := newFixture(t)
	m := newLoadedModel(t, f.options)

	m = update(m, key("?"))
	if m.modal != modalHelp {
		t.Fatal("expected help modal")
	}
	assertViewContains(t, m, "Keyboard Shortcuts")

	// Keys close the modal instead of navigating.
	m = update(m, key("right"))
	if m.modal != modalNone {
		t.Error("expected modal to close")
	}
	assertIndex(t, m, 0)
}

func TestQuit(t *testing.T) {
	f := newFixture(t)
	m := newLoadedModel(t, f.options)

	next, cmd := m.Update(key("q"))
	m = next.(Model)
	if !m.quitting || cmd == nil {
		t.Fatal("expected quit")
	}
	if m.View() != "" {
		t.Error("expected empty view after quit")
	}
}

func TestView_FillsHeight(t *testing.T) {
	forceColorProfile(t)
	f := newFixture(t)

	for _, size := range []struct{ w, h int }{{80, 24}, {120, 40}, {40, 12}} {
		m := newLoadedModel(t, f.options)
		m = update(m, tea.WindowSizeMsg{Width: size.w, Height: size.h})

		view := m.View()
		if !strings.Contains(view, ansiStart) {
			t.Errorf("%dx%d: expected styled output", size.w, size.h)
		}
		if got := len(strings.Split(view, "\n")); got != size.h {
			t.Errorf("%dx%d: view has %d lines, want %d", size.w, size.h, got, size.h)
		}
	}
}

func TestErrorText(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"validation", backend.Errorf(backend.KindValidation, "unknown contact %q", "x"), `unknown contact "x"`},
		{"forbidden", backend.Errorf(backend.KindForbidden, "rls"), "You do not have permission to perform this action."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorText(tt.err); got != tt.want {
				t.Errorf("errorText() = %q, want %q", got, tt.want)
			}
		})
	}
}
