package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/itsluminous/Letters/internal/query"
)

// Monochrome theme - adaptive for light and dark terminals
var (
	bgBase = lipgloss.AdaptiveColor{Light: "#ffffff", Dark: "#000000"}

	titleBarStyle = lipgloss.NewStyle().
			Bold(true).
			Background(lipgloss.AdaptiveColor{Light: "#e0e0e0", Dark: "#333333"}).
			Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#ffffff"}).
			Padding(0, 1)

	statsStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#555555", Dark: "#999999"}).
			Background(bgBase).
			Padding(0, 1)

	// Spinner style - NOT faint so it's visible
	spinnerStyle = lipgloss.NewStyle().
			Bold(true).
			Background(bgBase)

	letterHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Background(bgBase)

	separatorStyle = lipgloss.NewStyle().
			Faint(true).
			Background(bgBase)

	normalRowStyle = lipgloss.NewStyle().
			Background(bgBase)

	unreadStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#996600", Dark: "#ffcc00"}).
			Background(bgBase)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#555555", Dark: "#999999"}).
			Background(bgBase).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Background(bgBase)

	loadingStyle = lipgloss.NewStyle().
			Italic(true).
			Background(bgBase)

	disabledStyle = lipgloss.NewStyle().
			Faint(true)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(1, 2).
			Background(bgBase)

	modalTitleStyle = lipgloss.NewStyle().
			Bold(true)

	flashStyle = lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#996600", Dark: "#ffcc00"}). // Amber for visibility
			Background(bgBase)
)

// feedTitle names the active feed. The inbox falls back to read letters
// once nothing is unread.
func (m Model) feedTitle() string {
	if m.kind == query.Sent {
		return "Sent"
	}
	if len(m.letters) > 0 && m.letters[0].IsRead {
		return "Inbox (read)"
	}
	return "Inbox"
}

// buildTitleBar builds the title bar line.
// Format: "letters [version] - Inbox          ○ Sent"
func (m Model) buildTitleBar() string {
	titleText := "letters"
	if m.version != "" && m.version != "dev" && m.version != "unknown" {
		titleText = fmt.Sprintf("letters [%s]", m.version)
	}

	other := "Sent"
	if m.kind == query.Sent {
		other = "Inbox"
	}
	content := fmt.Sprintf("%s - %s", titleText, m.feedTitle())
	hint := "tab: " + other
	gap := m.width - 2 - lipgloss.Width(content) - lipgloss.Width(hint)
	if gap > 1 {
		content += strings.Repeat(" ", gap) + hint
	}
	return titleBarStyle.Render(padRight(content, m.width-2)) // -2 for padding
}

// headerView renders the title bar and the info line.
func (m Model) headerView() string {
	var info string
	switch {
	case m.filterActive:
		info = "/" + m.filterInput.View()
	case m.filters[m.kind] != "":
		info = "filter: " + m.filters[m.kind]
	}
	return m.buildTitleBar() + "\n" + m.renderInfoLine(info, m.loading && !m.filterActive)
}

// letterView renders the current letter or an empty state, followed by the
// notification line.
func (m Model) letterView() string {
	var lines []string
	l, ok := m.current()

	switch {
	case !ok && m.loading:
		lines = m.emptyState(loadingStyle.Render("Loading letters..."))
	case !ok && m.err != nil:
		lines = m.emptyState(errorStyle.Render(errorText(m.err)), "Press r to retry.")
	case !ok:
		lines = m.emptyState(m.emptyMessage())
	default:
		lines = append(lines, m.letterHeader(l)...)
		lines = append(lines, separatorStyle.Render(strings.Repeat("─", max(m.width, 0))))

		body := m.bodyLines()
		start := min(m.bodyScroll, len(body))
		end := min(start+m.bodyHeight(), len(body))
		for _, line := range body[start:end] {
			lines = append(lines, normalRowStyle.Render(padRight("  "+line, m.width)))
		}
	}

	// Fill remaining space so the footer stays at the bottom.
	for len(lines) < m.bodyHeight()+4 {
		lines = append(lines, normalRowStyle.Render(strings.Repeat(" ", max(m.width, 0))))
	}
	lines = append(lines, m.renderNotificationLine())
	return strings.Join(lines, "\n")
}

func (m Model) emptyMessage() string {
	if m.filters[m.kind] != "" {
		return "No letters match this filter."
	}
	if m.kind == query.Sent {
		return "You have not sent any letters yet."
	}
	return "No letters yet."
}

// emptyState renders messages a few lines into the body area.
func (m Model) emptyState(msgs ...string) []string {
	lines := []string{"", ""}
	for _, s := range msgs {
		lines = append(lines, "  "+s)
	}
	for i, s := range lines {
		lines[i] = normalRowStyle.Render(padRight(s, m.width))
	}
	return lines
}

// letterHeader renders the three header lines of a letter.
func (m Model) letterHeader(l query.Letter) []string {
	now := time.Now()
	width := m.width

	var who string
	if m.kind == query.Sent {
		who = "To:   " + correspondent(m.kind, l)
		if l.Recipient != nil && l.Recipient.LastLoginAt != nil {
			who += "  (last seen " + formatAgo(*l.Recipient.LastLoginAt, now) + ")"
		}
	} else {
		who = "From: " + correspondent(m.kind, l)
	}

	date := "Date: " + formatTimestamp(l.CreatedAt, now)
	if l.UpdatedAt.After(l.CreatedAt) {
		date += "  (edited " + formatAgo(l.UpdatedAt, now) + ")"
	}

	var status string
	if l.IsRead {
		status = "Read"
		if l.ReadAt != nil {
			status += " " + formatTimestamp(*l.ReadAt, now)
		}
		status = normalRowStyle.Render(padRight(" "+status, width))
	} else {
		status = unreadStyle.Render(padRight(" Unread", width))
	}

	return []string{
		letterHeaderStyle.Render(padRight(" "+truncateRunes(who, width-1), width)),
		normalRowStyle.Render(padRight(" "+date, width)),
		status,
	}
}

// positionIndicator renders "‹ 2/5 ›" with unavailable directions dimmed.
func (m Model) positionIndicator() string {
	if len(m.letters) == 0 {
		return ""
	}
	prev, next := "‹", "›"
	if !m.nav.CanGoPrev() {
		prev = disabledStyle.Render(prev)
	}
	if !m.nav.CanGoNext() {
		next = disabledStyle.Render(next)
	}
	return fmt.Sprintf(" %s %d/%d %s ", prev, m.nav.Index()+1, len(m.letters), next)
}

func (m Model) footerView() string {
	keys := []string{"←/→ prev/next", "↑/↓ scroll", "tab feed", "/ filter"}
	if m.kind == query.Inbox {
		keys = append(keys, "m read")
	}
	keys = append(keys, "r refresh")
	if m.nav.GesturesEnabled() {
		keys = append(keys, "g gestures:on")
	} else {
		keys = append(keys, "g gestures:off")
	}
	posStr := m.positionIndicator()

	// Narrow terminals lose hints from the end, but keep "? help".
	for len(keys) > 0 && lipgloss.Width(strings.Join(keys, " │ "))+len(" │ ? help")+lipgloss.Width(posStr)+2 > m.width {
		keys = keys[:len(keys)-1]
	}
	keys = append(keys, "? help")
	keysStr := strings.Join(keys, " │ ")

	gap := m.width - lipgloss.Width(keysStr) - lipgloss.Width(posStr) - 2
	if gap < 0 {
		gap = 0
	}
	return footerStyle.Render(padRight(keysStr+strings.Repeat(" ", gap)+posStr, m.width-2))
}

// spinnerIndicator returns the current spinner frame string.
func (m Model) spinnerIndicator() string {
	if m.spinnerFrame < len(spinnerFrames) {
		return spinnerFrames[m.spinnerFrame]
	}
	return spinnerFrames[0]
}

// renderInfoLine renders the info line with an optional right-aligned
// loading spinner.
func (m Model) renderInfoLine(content string, loading bool) string {
	// statsStyle has Padding(0, 1) which adds 2 characters, so content should be m.width-2
	contentWidth := m.width - 2
	if contentWidth < 1 {
		contentWidth = 1
	}

	if content == "" && !loading {
		return statsStyle.Render(strings.Repeat(" ", contentWidth))
	}
	if loading {
		indicator := m.spinnerIndicator()
		gap := contentWidth - lipgloss.Width(content) - lipgloss.Width(indicator)
		if gap < 1 {
			gap = 1
		}
		content += strings.Repeat(" ", gap) + spinnerStyle.Render(indicator)
	}
	return statsStyle.Render(padRight(content, contentWidth))
}

// renderNotificationLine shows the flash message or a blank line.
func (m Model) renderNotificationLine() string {
	if m.flashMessage != "" {
		return flashStyle.Render(padRight(" "+m.flashMessage, m.width))
	}
	return normalRowStyle.Render(strings.Repeat(" ", max(m.width, 0)))
}

// rawHelpLines contains the help modal content. The first line is the title.
var rawHelpLines = []string{
	"Keyboard Shortcuts",
	"",
	"Reading",
	"  ←/h, →/l    Previous/next letter",
	"  Home/End    First/last letter",
	"  ↑/k, ↓/j    Scroll the letter",
	"  PgUp/PgDn   Scroll a page",
	"",
	"Feeds",
	"  Tab         Switch inbox/sent",
	"  /           Filter: from:name after:YYYY-MM-DD",
	"              before:YYYY-MM-DD newer_than:7d",
	"  m           Mark as read (inbox)",
	"  r           Refresh",
	"",
	"Mouse",
	"  Wheel       Next/previous letter",
	"  Drag ←/→    Swipe to next/previous",
	"  g           Toggle wheel and swipe",
	"",
	"  q           Quit",
	"",
	"[Any key] Close",
}

// renderHelpModal renders the help modal content.
func (m Model) renderHelpModal() string {
	maxVisible := m.height - 6
	if maxVisible < 1 {
		maxVisible = 1
	}
	if maxVisible > len(rawHelpLines) {
		maxVisible = len(rawHelpLines)
	}
	rendered := make([]string, maxVisible)
	for i, line := range rawHelpLines[:maxVisible] {
		if i == 0 {
			rendered[i] = modalTitleStyle.Render(line)
		} else {
			rendered[i] = line
		}
	}
	return strings.Join(rendered, "\n")
}

// overlayModal renders a modal dialog over the content.
func (m Model) overlayModal(background string) string {
	var modalContent string
	switch m.modal {
	case modalHelp:
		modalContent = m.renderHelpModal()
	}
	if modalContent == "" {
		return background
	}

	modal := modalStyle.Render(modalContent)

	bgLines := strings.Split(background, "\n")
	modalLines := strings.Split(modal, "\n")

	startLine := (len(bgLines) - len(modalLines)) / 2
	if startLine < 0 {
		startLine = 0
	}

	modalWidth := lipgloss.Width(modal)
	leftPadding := (m.width - modalWidth) / 2
	if leftPadding < 0 {
		leftPadding = 0
	}

	// Overlay modal onto background, preserving background where modal doesn't cover
	for i, modalLine := range modalLines {
		lineIdx := startLine + i
		if lineIdx >= len(bgLines) {
			break
		}
		bgLine := bgLines[lineIdx]
		bgWidth := lipgloss.Width(bgLine)

		var composite strings.Builder
		if leftPadding > 0 {
			leftBg := truncateToWidth(bgLine, leftPadding)
			composite.WriteString(leftBg)
			if w := lipgloss.Width(leftBg); w < leftPadding {
				composite.WriteString(strings.Repeat(" ", leftPadding-w))
			}
		}
		composite.WriteString(modalLine)
		if rightStart := leftPadding + modalWidth; rightStart < bgWidth {
			composite.WriteString(skipToWidth(bgLine, rightStart))
		}
		bgLines[lineIdx] = composite.String()
	}

	return strings.Join(bgLines, "\n")
}
