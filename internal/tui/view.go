package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mailpane/mailpane/internal/mailbox"
)

// Monochrome theme - adaptive for light and dark terminals
var (
	bgBase   = lipgloss.AdaptiveColor{Light: "#ffffff", Dark: "#000000"}
	bgAlt    = lipgloss.AdaptiveColor{Light: "#f0f0f0", Dark: "#181818"}
	bgCursor = lipgloss.AdaptiveColor{Light: "#e0e0e0", Dark: "#282828"}
	fgMuted  = lipgloss.AdaptiveColor{Light: "#555555", Dark: "#999999"}

	titleBarStyle = lipgloss.NewStyle().
			Bold(true).
			Background(lipgloss.AdaptiveColor{Light: "#e0e0e0", Dark: "#333333"}).
			Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#ffffff"}).
			Padding(0, 1)

	statsStyle = lipgloss.NewStyle().
			Foreground(fgMuted).
			Background(bgBase).
			Padding(0, 1)

	tableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Background(bgBase)

	separatorStyle = lipgloss.NewStyle().
			Faint(true).
			Background(bgBase)

	cursorRowStyle = lipgloss.NewStyle().
			Background(bgCursor)

	// Unread rows: bold
	unreadRowStyle = lipgloss.NewStyle().
			Bold(true).
			Background(bgBase)

	normalRowStyle = lipgloss.NewStyle().
			Background(bgBase)

	altRowStyle = lipgloss.NewStyle().
			Background(bgAlt)

	headerLabelStyle = lipgloss.NewStyle().
				Foreground(fgMuted).
				Background(bgBase)

	buttonStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			Background(bgCursor)

	disabledButtonStyle = lipgloss.NewStyle().
				Faint(true).
				Padding(0, 1).
				Background(bgBase)

	footerStyle = lipgloss.NewStyle().
			Foreground(fgMuted).
			Background(bgBase).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Background(bgBase)

	loadingStyle = lipgloss.NewStyle().
			Italic(true).
			Background(bgBase)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(1, 2).
			Background(bgBase)

	modalTitleStyle = lipgloss.NewStyle().
			Bold(true)

	flashStyle = lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#996600", Dark: "#ffcc00"}).
			Background(bgBase)

	flashErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#aa0000", Dark: "#ff5f5f"}).
			Background(bgBase)

	fieldLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Width(10)
)

// View renders the current panel.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width <= 0 || m.height <= 0 {
		return "Loading..."
	}

	var body string
	panel, ok := m.ctrl.Views().Visible()
	switch {
	case !ok:
		body = m.fill(loadingStyle.Render(padRight(m.spinnerIndicator()+" Starting...", m.width)), 1)
	case panel == mailbox.PanelDetail:
		body = m.detailView()
	case panel == mailbox.PanelCompose:
		body = m.composeView()
	default:
		body = m.listView()
	}

	view := m.titleBarView() + "\n" + body + "\n" + m.footerView()
	if m.showHelp {
		view = m.overlayModal(view, m.renderHelpModal())
	}
	return view
}

// titleBarView renders the app name, the current place and the counts.
func (m Model) titleBarView() string {
	left := "mailpane"
	if m.version != "" {
		left += " " + m.version
	}
	panel, _ := m.ctrl.Views().Visible()
	switch panel {
	case mailbox.PanelCompose:
		left += " │ Compose"
	case mailbox.PanelDetail:
		left += " │ " + m.currentMailbox().Title() + " › Message"
	default:
		left += " │ " + m.currentMailbox().Title()
	}
	if m.busy() {
		left += " " + m.spinnerIndicator()
	}

	right := formatCounts(m.ctrl.Counts())
	inner := m.width - 2
	gap := inner - lipgloss.Width(left) - lipgloss.Width(right)
	line := left
	if gap >= 1 {
		line = left + strings.Repeat(" ", gap) + right
	}
	return titleBarStyle.Render(padRight(line, inner))
}

// spinnerIndicator returns the current spinner frame.
func (m Model) spinnerIndicator() string {
	return spinnerFrames[m.spinnerFrame%len(spinnerFrames)]
}

// fill pads content out to the page with blank rows. usedLines is the
// number of lines content occupies.
func (m Model) fill(content string, usedLines int) string {
	var sb strings.Builder
	sb.WriteString(content)
	for i := usedLines; i < m.height-2; i++ {
		sb.WriteString("\n")
		sb.WriteString(normalRowStyle.Render(strings.Repeat(" ", m.width)))
	}
	return sb.String()
}

// list column widths
const (
	markerWidth = 2
	dateWidth   = 10
)

// listView renders the mailbox listing.
func (m Model) listView() string {
	list := m.ctrl.List()

	var sb strings.Builder
	sb.WriteString(statsStyle.Render(padRight(list.Title, m.width-2)))
	sb.WriteString("\n")
	used := 1

	switch {
	case list.Err != "":
		sb.WriteString(errorStyle.Render(padRight(list.Err, m.width)))
		return m.fill(sb.String(), used+1)
	case list.Loading && len(list.Entries) == 0:
		sb.WriteString(loadingStyle.Render(padRight(m.spinnerIndicator()+" Loading "+strings.ToLower(list.Title)+"...", m.width)))
		return m.fill(sb.String(), used+1)
	case len(list.Entries) == 0:
		sb.WriteString(normalRowStyle.Render(padRight("No messages", m.width)))
		return m.fill(sb.String(), used+1)
	}

	senderWidth := (m.width - markerWidth - dateWidth - 2) / 3
	if senderWidth < 8 {
		senderWidth = 8
	}
	subjectWidth := m.width - markerWidth - dateWidth - senderWidth - 2
	if subjectWidth < 1 {
		subjectWidth = 1
	}

	header := fmt.Sprintf("%s%s %s %s",
		strings.Repeat(" ", markerWidth),
		padRight("From", senderWidth),
		padRight("Subject", subjectWidth),
		padRight("Date", dateWidth))
	sb.WriteString(tableHeaderStyle.Render(padRight(header, m.width)))
	sb.WriteString("\n")
	sb.WriteString(separatorStyle.Render(strings.Repeat("─", m.width)))
	used += 2

	now := m.now()
	end := m.scrollOffset + m.pageSize
	if end > len(list.Entries) {
		end = len(list.Entries)
	}
	for i := m.scrollOffset; i < end; i++ {
		e := list.Entries[i]
		marker := "  "
		if !e.Read {
			marker = "● "
		}
		row := marker +
			padRight(truncateRunes(e.Sender, senderWidth), senderWidth) + " " +
			padRight(truncateRunes(e.Subject, subjectWidth), subjectWidth) + " " +
			padRight(formatListDate(e.Timestamp, now), dateWidth)

		var style lipgloss.Style
		switch {
		case i == m.cursor:
			style = cursorRowStyle
		case !e.Read:
			style = unreadRowStyle
		case i%2 == 1:
			style = altRowStyle.Faint(true)
		default:
			style = normalRowStyle.Faint(true)
		}
		if i == m.cursor && !e.Read {
			style = style.Bold(true)
		}
		sb.WriteString("\n")
		sb.WriteString(style.Render(padRight(row, m.width)))
		used++
	}
	return m.fill(sb.String(), used)
}

// detailView renders the open message with its controls.
func (m Model) detailView() string {
	detail := m.ctrl.Detail()

	if detail.Err != "" {
		return m.fill(errorStyle.Render(padRight(detail.Err, m.width)), 1)
	}
	if detail.Message == nil {
		return m.fill(loadingStyle.Render(padRight(m.spinnerIndicator()+" Loading message...", m.width)), 1)
	}

	msg := detail.Message
	width := m.contentWidth()
	var lines []string
	header := func(label, value string) {
		lines = append(lines, headerLabelStyle.Render(padRight(label, 9))+truncateRunes(value, width-9))
	}
	header("From:", msg.Sender)
	header("To:", strings.Join(msg.Recipients, ", "))
	header("Subject:", msg.Subject)
	header("Date:", mailbox.FormatTimestamp(msg.Timestamp))
	lines = append(lines, m.controlsLine(detail))
	lines = append(lines, separatorStyle.Render(strings.Repeat("─", width)))

	var sb strings.Builder
	for i, line := range lines {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(normalRowStyle.Render(padRight(" "+line, m.width)))
	}

	body := wrapText(msg.Body, width)
	start := m.detailScroll
	if start > len(body) {
		start = len(body)
	}
	end := start + m.detailPageSize()
	if end > len(body) {
		end = len(body)
	}
	for _, line := range body[start:end] {
		sb.WriteString("\n")
		sb.WriteString(normalRowStyle.Render(padRight(" "+line, m.width)))
	}
	return m.fill(sb.String(), len(lines)+end-start)
}

// controlsLine renders the visible detail controls.
func (m Model) controlsLine(detail mailbox.DetailTarget) string {
	var parts []string
	add := func(ctrl mailbox.Control, label string) {
		if !ctrl.Visible {
			return
		}
		if ctrl.Disabled {
			parts = append(parts, disabledButtonStyle.Render(label))
			return
		}
		parts = append(parts, buttonStyle.Render(label))
	}
	add(detail.Reply, "[r] Reply")
	add(detail.Archive, "[a] Archive")
	add(detail.Unarchive, "[a] Unarchive")
	return strings.Join(parts, " ")
}

// composeView renders the compose form.
func (m Model) composeView() string {
	form := m.ctrl.ComposeForm()

	var sb strings.Builder
	sb.WriteString(" " + fieldLabelStyle.Render("To:") + m.toInput.View())
	sb.WriteString("\n")
	sb.WriteString(" " + fieldLabelStyle.Render("Subject:") + m.subjectInput.View())
	sb.WriteString("\n")
	used := 2

	status := ""
	switch {
	case form.Error != "":
		status = errorStyle.Render(form.Error)
	case form.Disabled:
		status = loadingStyle.Render(m.spinnerIndicator() + " Sending...")
	}
	sb.WriteString(normalRowStyle.Render(padRight(" "+status, m.width)))
	sb.WriteString("\n")
	used++

	bodyView := m.bodyInput.View()
	sb.WriteString(bodyView)
	used += strings.Count(bodyView, "\n") + 1

	if form.Submit.Visible {
		sb.WriteString("\n")
		label := "[ctrl+s] Send"
		if form.Submit.Disabled {
			sb.WriteString(" " + disabledButtonStyle.Render(label))
		} else {
			sb.WriteString(" " + buttonStyle.Render(label))
		}
		used++
	}
	return m.fill(sb.String(), used)
}

// footerView renders key hints, or the flash message while it lasts.
func (m Model) footerView() string {
	if m.flashMessage != "" {
		style := flashStyle
		if m.flashLevel == mailbox.NoticeError {
			style = flashErrorStyle
		}
		return style.Render(padRight(" "+m.flashMessage, m.width))
	}

	var keys []string
	var posStr string
	panel, _ := m.ctrl.Views().Visible()
	switch panel {
	case mailbox.PanelCompose:
		keys = []string{"Tab next field", "ctrl+s send", "Esc cancel"}
	case mailbox.PanelDetail:
		keys = []string{"↑/↓ scroll", "r reply", "a archive", "Esc back", "? help"}
	default:
		keys = []string{"↑/k", "↓/j", "Enter open", "c compose", "1/2/3 mailbox", "? help"}
		entries := m.ctrl.List().Entries
		if len(entries) > 0 && m.cursor < len(entries) {
			posStr = fmt.Sprintf(" %d/%d ", m.cursor+1, len(entries))
		}
	}

	hint := strings.Join(keys, " │ ")
	if panel == mailbox.PanelList {
		entries := m.ctrl.List().Entries
		if m.cursor < len(entries) && lipgloss.Width(entries[m.cursor].Label)+lipgloss.Width(posStr)+4 < m.width {
			hint = entries[m.cursor].Label
		}
	}

	gap := m.width - 2 - lipgloss.Width(hint) - lipgloss.Width(posStr)
	line := hint
	if gap > 0 {
		line = hint + strings.Repeat(" ", gap) + posStr
	}
	return footerStyle.Render(padRight(line, m.width-2))
}

// rawHelpLines contains the help modal content. The first line is the title.
var rawHelpLines = []string{
	"Keyboard Shortcuts",
	"",
	"Mailboxes",
	"  1/i         Inbox",
	"  2/s         Sent",
	"  3/A         Archive",
	"  r           Reload list",
	"",
	"Navigation",
	"  ↑/k, ↓/j    Move cursor or scroll",
	"  PgUp/PgDn   Page up/down",
	"  Home/End    Go to first/last",
	"  Enter       Open message",
	"  Esc         Back to list",
	"",
	"Message",
	"  r           Reply",
	"  a           Archive or unarchive",
	"",
	"Compose",
	"  c           New message",
	"  Tab         Next field",
	"  ctrl+s      Send",
	"",
	"Other",
	"  ctrl+z      Suspend",
	"  q           Quit",
	"",
	"[any key] Close",
}

// helpMaxVisible returns how many help lines fit on screen.
func (m Model) helpMaxVisible() int {
	// border (2) + padding (2) + margin (2)
	v := m.height - 6
	if v < 1 {
		v = 1
	}
	if v > len(rawHelpLines) {
		v = len(rawHelpLines)
	}
	return v
}

func (m Model) renderHelpModal() string {
	maxVisible := m.helpMaxVisible()
	scroll := m.helpScroll
	if scroll > len(rawHelpLines)-maxVisible {
		scroll = len(rawHelpLines) - maxVisible
	}
	if scroll < 0 {
		scroll = 0
	}
	visible := rawHelpLines[scroll : scroll+maxVisible]
	rendered := make([]string, len(visible))
	for i, line := range visible {
		if scroll+i == 0 {
			rendered[i] = modalTitleStyle.Render(line)
		} else {
			rendered[i] = line
		}
	}
	return strings.Join(rendered, "\n")
}

// overlayModal draws content in a box centered over background.
func (m Model) overlayModal(background, content string) string {
	modal := modalStyle.Render(content)
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

	for i, modalLine := range modalLines {
		lineIdx := startLine + i
		if lineIdx >= len(bgLines) {
			break
		}
		bgLine := bgLines[lineIdx]

		var composite strings.Builder
		if leftPadding > 0 {
			leftBg := truncateToWidth(bgLine, leftPadding)
			composite.WriteString(leftBg)
			if w := lipgloss.Width(leftBg); w < leftPadding {
				composite.WriteString(strings.Repeat(" ", leftPadding-w))
			}
		}
		composite.WriteString(modalLine)
		if rightStart := leftPadding + modalWidth; rightStart < lipgloss.Width(bgLine) {
			composite.WriteString(skipToWidth(bgLine, rightStart))
		}
		bgLines[lineIdx] = composite.String()
	}
	return strings.Join(bgLines, "\n")
}
