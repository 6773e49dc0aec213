package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mailpane/mailpane/internal/mailbox"
)

// handleKeyPress routes a key to the help overlay or the visible panel.
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m.quit()
	}

	if m.showHelp {
		return m.handleHelpKeys(msg)
	}

	panel, _ := m.ctrl.Views().Visible()
	if panel == mailbox.PanelCompose {
		return m.handleComposeKeys(msg)
	}

	if handled, model, cmd := m.handleGlobalKeys(msg); handled {
		return model, cmd
	}

	switch panel {
	case mailbox.PanelDetail:
		return m.handleDetailKeys(msg)
	default:
		return m.handleListKeys(msg)
	}
}

// handleGlobalKeys handles keys shared by the list and detail panels.
func (m Model) handleGlobalKeys(msg tea.KeyMsg) (bool, tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		model, cmd := m.quit()
		return true, model, cmd
	case "?":
		m.showHelp = true
		m.helpScroll = 0
		return true, m, nil
	case "1", "i":
		return true, m, m.load(mailbox.Inbox)
	case "2", "s":
		return true, m, m.load(mailbox.Sent)
	case "3", "A":
		return true, m, m.load(mailbox.Archive)
	case "c":
		m.ctrl.Compose(mailbox.Draft{})
		return true, m, m.sync()
	case "ctrl+z":
		m.ctrl.SetVisible(false)
		return true, m, tea.Suspend
	}
	return false, m, nil
}

func (m *Model) load(id mailbox.MailboxID) tea.Cmd {
	m.ctrl.LoadMailbox(id)
	return m.sync()
}

// handleListKeys handles keys in the message list.
func (m Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	n := len(m.ctrl.List().Entries)
	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < n-1 {
			m.cursor++
		}
	case "pgup", "ctrl+u":
		m.cursor -= m.pageSize
		if m.cursor < 0 {
			m.cursor = 0
		}
	case "pgdown", "ctrl+d":
		m.cursor += m.pageSize
		if m.cursor > n-1 {
			m.cursor = n - 1
		}
	case "home", "g":
		m.cursor = 0
	case "end", "G":
		m.cursor = n - 1
	case "enter", "l", "right":
		if m.ctrl.OpenListEntry(m.cursor) {
			return m, m.sync()
		}
		return m, nil
	case "r":
		return m, m.load(m.currentMailbox())
	default:
		return m, nil
	}
	m.clampCursor()
	return m, nil
}

// handleDetailKeys handles keys in the message detail panel.
func (m Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "backspace", "h", "left":
		return m, m.load(m.currentMailbox())
	case "up", "k":
		m.detailScroll--
	case "down", "j":
		m.detailScroll++
	case "pgup", "ctrl+u":
		m.detailScroll -= m.detailPageSize()
	case "pgdown", "ctrl+d", " ":
		m.detailScroll += m.detailPageSize()
	case "home", "g":
		m.detailScroll = 0
	case "end", "G":
		m.detailScroll = m.detailLineCount
	case "a", "e":
		if m.ctrl.ToggleArchive() {
			return m, m.sync()
		}
		return m, nil
	case "r":
		if m.ctrl.Reply() {
			return m, m.sync()
		}
		return m, nil
	default:
		return m, nil
	}
	m.clampDetailScroll()
	return m, nil
}

// handleComposeKeys handles keys in the compose form. Printable keys go to
// the focused field.
func (m Model) handleComposeKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	form := m.ctrl.ComposeForm()
	switch msg.String() {
	case "esc":
		return m, m.load(m.currentMailbox())
	case "tab":
		m.composeFocus = (m.composeFocus + 1) % fieldCount
		return m, m.focusCompose()
	case "shift+tab":
		m.composeFocus = (m.composeFocus + fieldCount - 1) % fieldCount
		return m, m.focusCompose()
	case "ctrl+s":
		if m.ctrl.Send(m.draft()) {
			return m, m.sync()
		}
		return m, nil
	}

	if form.Disabled {
		return m, nil
	}

	var cmd tea.Cmd
	switch m.composeFocus {
	case fieldTo:
		m.toInput, cmd = m.toInput.Update(msg)
	case fieldSubject:
		m.subjectInput, cmd = m.subjectInput.Update(msg)
	default:
		m.bodyInput, cmd = m.bodyInput.Update(msg)
	}
	return m, cmd
}

// handleHelpKeys handles keys while the help overlay is open.
func (m Model) handleHelpKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.helpScroll > 0 {
			m.helpScroll--
		}
	case "down", "j":
		if m.helpScroll < len(rawHelpLines)-m.helpMaxVisible() {
			m.helpScroll++
		}
	case "q":
		return m.quit()
	default:
		m.showHelp = false
	}
	return m, nil
}
