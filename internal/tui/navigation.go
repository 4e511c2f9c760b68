package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/itsluminous/Letters/internal/nav"
	"github.com/itsluminous/Letters/internal/textutil"
)

// cellWidthPx approximates the width of one terminal cell in pixels, so the
// pixel swipe thresholds and breakpoint apply to drags measured in cells.
const cellWidthPx = 8

func (m *Model) goNext() {
	if m.nav.GoNext() {
		m.bodyScroll = 0
	}
}

func (m *Model) goPrev() {
	if m.nav.GoPrev() {
		m.bodyScroll = 0
	}
}

func (m *Model) goTo(i int) {
	if m.nav.GoToIndex(i) {
		m.bodyScroll = 0
	}
}

// handleMouse feeds wheel notches into the wheel accumulator and completed
// horizontal drags into the swipe path.
func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if m.filterActive || m.modal != modalNone {
		return m, nil
	}

	switch {
	case msg.Button == tea.MouseButtonWheelDown && msg.Action == tea.MouseActionPress:
		if m.nav.HandleWheel(m.wheelStep) != nav.StepNone {
			m.bodyScroll = 0
		}

	case msg.Button == tea.MouseButtonWheelUp && msg.Action == tea.MouseActionPress:
		if m.nav.HandleWheel(-m.wheelStep) != nav.StepNone {
			m.bodyScroll = 0
		}

	case msg.Button == tea.MouseButtonLeft && msg.Action == tea.MouseActionPress:
		m.dragging = true
		m.dragStartX = msg.X

	case msg.Action == tea.MouseActionRelease && m.dragging:
		m.dragging = false
		deltaX := float64((msg.X - m.dragStartX) * cellWidthPx)
		if m.nav.HandleSwipe(deltaX, float64(m.width*cellWidthPx)) != nav.StepNone {
			m.bodyScroll = 0
		}
	}
	return m, nil
}

// bodyHeight returns the number of letter body lines that fit on screen.
// Reserved: title (1) + info (1) + letter header (3) + separator (1) +
// notification (1) + footer (1).
func (m Model) bodyHeight() int {
	h := m.height - 8
	if h < 1 {
		h = 1
	}
	return h
}

// scrollBody scrolls the current letter by delta lines.
func (m *Model) scrollBody(delta int) {
	m.bodyScroll += delta
	m.clampBodyScroll()
}

func (m *Model) clampBodyScroll() {
	maxScroll := len(m.bodyLines()) - m.bodyHeight()
	if m.bodyScroll > maxScroll {
		m.bodyScroll = maxScroll
	}
	if m.bodyScroll < 0 {
		m.bodyScroll = 0
	}
}

// bodyLines returns the wrapped content of the current letter.
func (m Model) bodyLines() []string {
	l, ok := m.current()
	if !ok {
		return nil
	}
	width := m.width - 4
	if width < 10 {
		width = 10
	}
	return wrapText(textutil.Clean(l.Content), width)
}
