// Package tui provides a terminal reader for letters.
package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/itsluminous/Letters/internal/backend"
	"github.com/itsluminous/Letters/internal/contacts"
	"github.com/itsluminous/Letters/internal/feed"
	"github.com/itsluminous/Letters/internal/nav"
	"github.com/itsluminous/Letters/internal/query"
	"github.com/itsluminous/Letters/internal/search"
	"github.com/itsluminous/Letters/internal/textutil"
)

// defaultWheelStep is the wheel delta of one notch when Options.WheelStep is
// unset. With the default wheel threshold of 50, three notches in quick
// succession turn the page.
const defaultWheelStep = 20

// Options configures the reader.
type Options struct {
	Inbox *feed.Service
	Sent  *feed.Service

	// Contacts resolves filter names and labels. Optional; without it filter
	// names are taken as user ids.
	Contacts *contacts.Service

	Navigation nav.Options
	WheelStep  float64

	Version string
}

// modalType represents the type of modal dialog.
type modalType int

const (
	modalNone modalType = iota
	modalHelp
)

// Model is the main TUI model following the Elm architecture.
type Model struct {
	feeds    map[query.FeedKind]*feed.Service
	contacts *contacts.Service
	kind     query.FeedKind
	version  string

	// Letters of the active feed as last loaded.
	letters []query.Letter
	nav     *nav.Controller

	wheelStep float64

	// Horizontal drag tracking for swipe gestures.
	dragging   bool
	dragStartX int

	// Filter prompt state. filters holds the applied filter text per feed.
	filterInput  textinput.Model
	filterActive bool
	filters      map[query.FeedKind]string

	// Body scroll within the current letter.
	bodyScroll int

	width  int
	height int

	loading       bool
	err           error
	spinnerFrame  int
	spinnerActive bool

	// Request tracking to ignore stale async results.
	loadRequestID uint64

	flashMessage   string
	flashExpiresAt time.Time

	modal    modalType
	quitting bool
}

// New creates a reader over the inbox and sent feeds.
func New(opts Options) Model {
	ti := textinput.New()
	ti.Placeholder = "from:name after:YYYY-MM-DD before:YYYY-MM-DD"
	ti.CharLimit = 200
	ti.Width = 50

	step := opts.WheelStep
	if step <= 0 {
		step = defaultWheelStep
	}

	return Model{
		feeds: map[query.FeedKind]*feed.Service{
			query.Inbox: opts.Inbox,
			query.Sent:  opts.Sent,
		},
		contacts:      opts.Contacts,
		kind:          query.Inbox,
		version:       opts.Version,
		nav:           nav.New(0, 0, opts.Navigation),
		wheelStep:     step,
		filterInput:   ti,
		filters:       make(map[query.FeedKind]string),
		loading:       true,
		spinnerActive: true,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.loadLetters(true),
		spinnerTick(),
	)
}

// lettersLoadedMsg is sent when a feed fetch completes.
type lettersLoadedMsg struct {
	kind      query.FeedKind
	letters   []query.Letter
	err       error
	reset     bool   // feed or filter changed; navigation starts over
	requestID uint64 // To detect stale responses
}

// markedMsg is sent when the backend has accepted or refused a mark.
type markedMsg struct {
	kind     query.FeedKind
	letterID string
	letters  []query.Letter
	err      error
}

// flashClearMsg clears the flash message after timeout.
type flashClearMsg struct{}

// spinnerTickMsg advances the loading spinner animation.
type spinnerTickMsg struct{}

// spinnerFrames are the Braille dot animation frames for the loading spinner.
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// spinnerInterval is how fast the spinner animates.
const spinnerInterval = 80 * time.Millisecond

// flashDuration is how long flash messages are displayed.
const flashDuration = 4 * time.Second

// activeFeed returns the feed being displayed.
func (m Model) activeFeed() *feed.Service {
	return m.feeds[m.kind]
}

// loadLetters re-fetches the active feed under its current filter.
func (m Model) loadLetters(reset bool) tea.Cmd {
	requestID := m.loadRequestID
	kind := m.kind
	svc := m.activeFeed()
	return func() (msg tea.Msg) {
		defer func() {
			if r := recover(); r != nil {
				msg = lettersLoadedMsg{kind: kind, err: fmt.Errorf("load panic: %v", r), requestID: requestID}
			}
		}()

		letters, err := svc.Refresh(context.Background())
		return lettersLoadedMsg{kind: kind, letters: letters, err: err, reset: reset, requestID: requestID}
	}
}

// applyFilter resolves the names in q, installs the filter on the active
// feed and re-fetches it.
func (m Model) applyFilter(q *search.Query) tea.Cmd {
	requestID := m.loadRequestID
	kind := m.kind
	svc := m.activeFeed()
	book := m.contacts
	return func() (msg tea.Msg) {
		defer func() {
			if r := recover(); r != nil {
				msg = lettersLoadedMsg{kind: kind, err: fmt.Errorf("filter panic: %v", r), requestID: requestID}
			}
		}()

		ctx := context.Background()
		ids := q.Names
		if book != nil && len(q.Names) > 0 {
			resolved, err := book.Resolve(ctx, q.Names)
			if err != nil {
				return lettersLoadedMsg{kind: kind, err: err, reset: true, requestID: requestID}
			}
			ids = resolved
		}
		svc.SetFilter(q.FilterSpec(ids))
		letters, err := svc.Refresh(ctx)
		return lettersLoadedMsg{kind: kind, letters: letters, err: err, reset: true, requestID: requestID}
	}
}

// markRead sends a mark begun by markCurrentRead to the backend.
func (m Model) markRead(letterID string) tea.Cmd {
	kind := m.kind
	svc := m.activeFeed()
	return func() (msg tea.Msg) {
		defer func() {
			if r := recover(); r != nil {
				msg = markedMsg{kind: kind, letterID: letterID, err: fmt.Errorf("mark panic: %v", r)}
			}
		}()

		err := svc.CommitMarkAsRead(context.Background(), letterID)
		return markedMsg{kind: kind, letterID: letterID, letters: svc.Letters(), err: err}
	}
}

func spinnerTick() tea.Cmd {
	return tea.Tick(spinnerInterval, func(time.Time) tea.Msg {
		return spinnerTickMsg{}
	})
}

// startSpinner starts the spinner if it is not already running.
func (m *Model) startSpinner() tea.Cmd {
	m.loading = true
	if m.spinnerActive {
		return nil
	}
	m.spinnerActive = true
	return spinnerTick()
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		// Clamp dimensions to prevent panics from strings.Repeat with negative count
		if m.width < 0 {
			m.width = 0
		}
		if m.height < 0 {
			m.height = 0
		}
		m.clampBodyScroll()
		return m, nil

	case lettersLoadedMsg:
		if msg.requestID != m.loadRequestID || msg.kind != m.kind {
			return m, nil
		}
		// A newer fetch already replaced the sequence.
		if errors.Is(msg.err, feed.ErrSuperseded) {
			return m, nil
		}
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			if msg.reset {
				return m.showFlash(errorText(msg.err))
			}
			return m, nil
		}
		m.err = nil
		m.letters = msg.letters
		if msg.reset {
			m.nav.Reset(len(m.letters), 0)
			m.bodyScroll = 0
		} else {
			m.nav.SetLength(len(m.letters))
			m.clampBodyScroll()
		}
		return m, nil

	case markedMsg:
		if msg.kind != m.kind {
			return m, nil
		}
		m.loading = false
		m.letters = msg.letters
		m.nav.SetLength(len(m.letters))
		m.bodyScroll = 0
		if msg.err != nil {
			return m.showFlash(errorText(msg.err))
		}
		return m.showFlash("Marked as read")

	case spinnerTickMsg:
		if !m.loading {
			m.spinnerActive = false
			return m, nil
		}
		m.spinnerFrame = (m.spinnerFrame + 1) % len(spinnerFrames)
		return m, spinnerTick()

	case flashClearMsg:
		if !m.flashExpiresAt.IsZero() && !time.Now().Before(m.flashExpiresAt) {
			m.flashMessage = ""
		}
		return m, nil
	}

	return m, nil
}

// showFlash displays a temporary message on the notification line.
func (m Model) showFlash(message string) (tea.Model, tea.Cmd) {
	m.flashMessage = message
	m.flashExpiresAt = time.Now().Add(flashDuration)
	return m, tea.Tick(flashDuration, func(time.Time) tea.Msg {
		return flashClearMsg{}
	})
}

// errorText returns the first line of the user-facing text of a failure.
func errorText(err error) string {
	var fe *feed.Error
	var be *backend.Error
	switch {
	case errors.As(err, &fe):
		return textutil.FirstLine(fe.Message)
	case errors.As(err, &be) && be.Kind == backend.KindValidation && be.Message != "":
		return textutil.FirstLine(be.Message)
	}
	return backend.UserMessage(err)
}

// current returns the letter under the cursor.
func (m Model) current() (query.Letter, bool) {
	if len(m.letters) == 0 {
		return query.Letter{}, false
	}
	i := m.nav.Index()
	if i >= len(m.letters) {
		return query.Letter{}, false
	}
	return m.letters[i], true
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	if m.width == 0 {
		return "Loading..."
	}

	view := fmt.Sprintf("%s\n%s\n%s",
		m.headerView(),
		m.letterView(),
		m.footerView(),
	)
	if m.modal != modalNone {
		return m.overlayModal(view)
	}
	return view
}
