package tui

import (
	"slices"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/itsluminous/Letters/internal/query"
	"github.com/itsluminous/Letters/internal/search"
)

// handleKeyPress dispatches a key to the prompt, the modal or the reader.
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.filterActive {
		return m.handleFilterKeys(msg)
	}
	if m.modal != modalNone {
		return m.handleModalKeys(msg)
	}
	return m.handleReaderKeys(msg)
}

// handleFilterKeys handles keys while the filter prompt is open.
func (m Model) handleFilterKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		return m.commitFilter()

	case "esc":
		m.exitFilterMode()
		return m, nil

	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	default:
		var cmd tea.Cmd
		m.filterInput, cmd = m.filterInput.Update(msg)
		return m, cmd
	}
}

// handleModalKeys closes the help modal on any key.
func (m Model) handleModalKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}
	m.modal = modalNone
	return m, nil
}

// handleReaderKeys handles keys while reading letters.
func (m Model) handleReaderKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "left", "h":
		m.goPrev()
	case "right", "l":
		m.goNext()
	case "home":
		m.goTo(0)
	case "end":
		m.goTo(len(m.letters) - 1)

	case "up", "k":
		m.scrollBody(-1)
	case "down", "j":
		m.scrollBody(1)
	case "pgup":
		m.scrollBody(-m.bodyHeight())
	case "pgdown", " ":
		m.scrollBody(m.bodyHeight())

	case "tab":
		return m.switchFeed()

	case "/":
		return m, m.activateFilter()

	case "m":
		return m.markCurrentRead()

	case "r":
		m.loadRequestID++
		spinCmd := m.startSpinner()
		return m, tea.Batch(spinCmd, m.loadLetters(false))

	case "g":
		enabled := !m.nav.GesturesEnabled()
		m.nav.SetGesturesEnabled(enabled)
		if enabled {
			return m.showFlash("Gestures on")
		}
		return m.showFlash("Gestures off")

	case "?":
		m.modal = modalHelp
	}
	return m, nil
}

// switchFeed toggles between inbox and sent. The new feed keeps its own
// filter and starts at its first letter.
func (m Model) switchFeed() (tea.Model, tea.Cmd) {
	if m.kind == query.Inbox {
		m.kind = query.Sent
	} else {
		m.kind = query.Inbox
	}
	m.letters = nil
	m.err = nil
	m.nav.Reset(0, 0)
	m.bodyScroll = 0
	m.loadRequestID++
	spinCmd := m.startSpinner()
	return m, tea.Batch(spinCmd, m.loadLetters(true))
}

// markCurrentRead marks the inbox letter under the cursor as read.
func (m Model) markCurrentRead() (tea.Model, tea.Cmd) {
	if m.kind != query.Inbox {
		return m.showFlash("Only inbox letters can be marked as read")
	}
	l, ok := m.current()
	if !ok {
		return m, nil
	}
	if l.IsRead {
		return m.showFlash("Already read")
	}
	marked, err := m.activeFeed().BeginMarkAsRead(l.ID)
	if err != nil {
		return m.showFlash(errorText(err))
	}
	// Show the letter as read now; markedMsg reconciles with the backend.
	m.letters = slices.Clone(m.letters)
	m.letters[m.nav.Index()] = marked
	spinCmd := m.startSpinner()
	return m, tea.Batch(spinCmd, m.markRead(l.ID))
}

// activateFilter opens the filter prompt with the active filter text.
func (m *Model) activateFilter() tea.Cmd {
	m.filterActive = true
	m.filterInput.SetValue(m.filters[m.kind])
	m.filterInput.CursorEnd()
	m.filterInput.Focus()
	return textinput.Blink
}

// exitFilterMode closes the prompt without changing the filter.
func (m *Model) exitFilterMode() {
	m.filterActive = false
	m.filterInput.Blur()
}

// commitFilter parses the prompt and applies it to the active feed. An
// empty prompt clears the filter.
func (m Model) commitFilter() (tea.Model, tea.Cmd) {
	text := m.filterInput.Value()
	q, err := search.Parse(text)
	if err != nil {
		return m.showFlash("Invalid filter: " + err.Error())
	}
	m.exitFilterMode()
	m.filters[m.kind] = q.String()
	m.loadRequestID++
	spinCmd := m.startSpinner()
	return m, tea.Batch(spinCmd, m.applyFilter(q))
}
