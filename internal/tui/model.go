// Package tui is the terminal front end of the mailbox client.
//
// The Model owns no mailbox state of its own. Everything it renders comes
// from a mailbox.Controller, and every controller call happens inside Update,
// so the bubbletea event loop doubles as the controller's Loop: background
// continuations are queued on a channel and delivered back as postedMsg.
package tui

import (
	"log/slog"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mailpane/mailpane/internal/mailbox"
)

// postBuffer bounds the continuations waiting for the event loop.
const postBuffer = 64

// postLoop implements mailbox.Loop on top of the bubbletea event loop.
type postLoop struct {
	posts chan func()
	done  chan struct{}
	once  sync.Once
}

func newPostLoop() *postLoop {
	return &postLoop{
		posts: make(chan func(), postBuffer),
		done:  make(chan struct{}),
	}
}

// Post queues fn for the event loop. Posts after close are dropped.
func (l *postLoop) Post(fn func()) {
	select {
	case l.posts <- fn:
	case <-l.done:
	}
}

func (l *postLoop) close() {
	l.once.Do(func() { close(l.done) })
}

// wait returns a command that delivers the next queued continuation.
func (l *postLoop) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case fn := <-l.posts:
			return postedMsg{fn: fn}
		case <-l.done:
			return nil
		}
	}
}

// postedMsg carries a controller continuation into Update.
type postedMsg struct {
	fn func()
}

// startMsg opens the inbox once the program is running.
type startMsg struct{}

// flashClearMsg clears the flash message after timeout.
type flashClearMsg struct{}

// spinnerTickMsg advances the loading spinner animation.
type spinnerTickMsg struct{}

// spinnerFrames are the Braille dot animation frames for the loading spinner.
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const (
	// spinnerInterval is how fast the spinner animates.
	spinnerInterval = 80 * time.Millisecond
	// flashDuration is how long flash messages are displayed.
	flashDuration = 4 * time.Second
)

// Compose form fields in focus order.
const (
	fieldTo = iota
	fieldSubject
	fieldBody
	fieldCount
)

// Options configures the TUI.
type Options struct {
	Controller mailbox.Options
	Version    string
	Logger     *slog.Logger
}

// Model is the bubbletea model of the mailbox client.
type Model struct {
	ctrl    *mailbox.Controller
	loop    *postLoop
	logger  *slog.Logger
	version string

	width    int
	height   int
	pageSize int // list rows visible at once

	// List navigation
	cursor       int
	scrollOffset int
	listMailbox  mailbox.MailboxID

	// Detail scrolling
	detailScroll    int
	detailLineCount int
	detailID        int64

	// Compose form widgets, reloaded whenever the controller bumps Revision
	toInput         textinput.Model
	subjectInput    textinput.Model
	bodyInput       textarea.Model
	composeFocus    int
	composeRevision uint64

	spinnerFrame  int
	spinnerActive bool

	flashMessage   string
	flashLevel     mailbox.NoticeLevel
	flashExpiresAt time.Time
	noticeSeq      uint64

	showHelp   bool
	helpScroll int
	quitting   bool

	now func() time.Time
}

// New creates a model around a controller talking to store.
func New(store mailbox.Store, opts Options) Model {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctrlOpts := opts.Controller
	if ctrlOpts.Logger == nil {
		ctrlOpts.Logger = logger
	}

	loop := newPostLoop()
	ctrl := mailbox.New(store, loop, nil, ctrlOpts)

	to := textinput.New()
	to.Prompt = ""
	to.Placeholder = "alice@example.com, bob@example.com"
	to.CharLimit = 1000

	subject := textinput.New()
	subject.Prompt = ""
	subject.Placeholder = "Subject"
	subject.CharLimit = 500

	body := textarea.New()
	body.Placeholder = "Write your message..."
	body.ShowLineNumbers = false
	body.CharLimit = 0

	return Model{
		ctrl:         ctrl,
		loop:         loop,
		logger:       logger,
		version:      opts.Version,
		pageSize:     20,
		toInput:      to,
		subjectInput: subject,
		bodyInput:    body,
		now:          time.Now,
	}
}

// Controller exposes the underlying controller.
func (m Model) Controller() *mailbox.Controller { return m.ctrl }

// Close stops the controller. It must not race with a running program; call
// it after Run returns.
func (m Model) Close() {
	m.loop.close()
	m.ctrl.Close()
}

// Init starts the controller, the continuation pump and the spinner.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		func() tea.Msg { return startMsg{} },
		m.loop.wait(),
	)
}

// Update handles messages and keypresses.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case startMsg:
		m.ctrl.Start()
		return m, m.sync()

	case postedMsg:
		msg.fn()
		return m, tea.Batch(m.sync(), m.loop.wait())

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.width < 0 {
			m.width = 0
		}
		if m.height < 0 {
			m.height = 0
		}
		// title bar (1) + list title (1) + header (1) + separator (1) + footer (1)
		m.pageSize = m.height - 5
		if m.pageSize < 1 {
			m.pageSize = 1
		}
		m.resizeCompose()
		m.updateDetailLineCount()
		m.clampDetailScroll()
		m.ensureCursorVisible()
		return m, nil

	case tea.FocusMsg:
		m.ctrl.SetVisible(true)
		return m, nil

	case tea.BlurMsg:
		m.ctrl.SetVisible(false)
		return m, nil

	case tea.ResumeMsg:
		m.ctrl.SetVisible(true)
		return m, nil

	case flashClearMsg:
		if !m.flashExpiresAt.IsZero() && !m.now().Before(m.flashExpiresAt) {
			m.flashMessage = ""
			m.flashExpiresAt = time.Time{}
		}
		return m, nil

	case spinnerTickMsg:
		if m.busy() {
			m.spinnerFrame = (m.spinnerFrame + 1) % len(spinnerFrames)
			return m, spinnerTick()
		}
		m.spinnerActive = false
		return m, nil
	}

	return m, nil
}

// sync reconciles the widget state with the controller after it ran.
func (m *Model) sync() tea.Cmd {
	var cmds []tea.Cmd

	list := m.ctrl.List()
	if list.Mailbox != m.listMailbox {
		m.listMailbox = list.Mailbox
		m.cursor = 0
		m.scrollOffset = 0
	}
	if !list.Loading {
		m.clampCursor()
	}

	detail := m.ctrl.Detail()
	var id int64
	if detail.Message != nil {
		id = detail.Message.ID
	}
	if id != m.detailID {
		m.detailID = id
		m.detailScroll = 0
	}
	m.updateDetailLineCount()
	m.clampDetailScroll()

	form := m.ctrl.ComposeForm()
	if form.Revision != m.composeRevision {
		m.composeRevision = form.Revision
		m.toInput.SetValue(form.Recipients)
		m.subjectInput.SetValue(form.Subject)
		m.bodyInput.SetValue(form.Body)
		m.composeFocus = fieldTo
		if form.Recipients != "" {
			m.composeFocus = fieldBody
		}
		if cmd := m.focusCompose(); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}

	if n := m.ctrl.Notice(); n.Seq != m.noticeSeq {
		m.noticeSeq = n.Seq
		if n.Text != "" {
			cmds = append(cmds, m.flash(n.Text, n.Level))
		}
	}

	if m.busy() {
		if cmd := m.startSpinner(); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	return tea.Batch(cmds...)
}

// busy reports whether any panel is waiting on the network.
func (m Model) busy() bool {
	return m.ctrl.List().Loading || m.ctrl.Detail().Loading || m.ctrl.ComposeForm().Disabled
}

// spinnerTick returns a command that fires a spinnerTickMsg after the spinner interval.
func spinnerTick() tea.Cmd {
	return tea.Tick(spinnerInterval, func(time.Time) tea.Msg {
		return spinnerTickMsg{}
	})
}

// startSpinner returns a spinnerTick command if the spinner isn't already active.
func (m *Model) startSpinner() tea.Cmd {
	if m.spinnerActive {
		return nil
	}
	m.spinnerActive = true
	m.spinnerFrame = 0
	return spinnerTick()
}

// flash displays a temporary notification.
func (m *Model) flash(text string, level mailbox.NoticeLevel) tea.Cmd {
	m.flashMessage = text
	m.flashLevel = level
	m.flashExpiresAt = m.now().Add(flashDuration)
	return tea.Tick(flashDuration, func(time.Time) tea.Msg {
		return flashClearMsg{}
	})
}

// quit stops the controller and ends the program.
func (m Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	m.Close()
	return m, tea.Quit
}

// currentMailbox is the mailbox the list panel shows or last showed.
func (m Model) currentMailbox() mailbox.MailboxID {
	if mb := m.ctrl.List().Mailbox; mb != "" {
		return mb
	}
	return mailbox.Inbox
}

func (m *Model) clampCursor() {
	n := len(m.ctrl.List().Entries)
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	m.ensureCursorVisible()
}

func (m *Model) ensureCursorVisible() {
	if m.cursor < m.scrollOffset {
		m.scrollOffset = m.cursor
	}
	if m.cursor >= m.scrollOffset+m.pageSize {
		m.scrollOffset = m.cursor - m.pageSize + 1
	}
	if m.scrollOffset < 0 {
		m.scrollOffset = 0
	}
}

// detailPageSize is the number of body lines visible in the detail panel.
func (m Model) detailPageSize() int {
	// title bar, headers (4), controls, separator, footer
	n := m.height - 8
	if n < 1 {
		n = 1
	}
	return n
}

func (m *Model) updateDetailLineCount() {
	detail := m.ctrl.Detail()
	if detail.Message == nil {
		m.detailLineCount = 0
		return
	}
	m.detailLineCount = len(wrapText(detail.Message.Body, m.contentWidth()))
}

func (m *Model) clampDetailScroll() {
	maxScroll := m.detailLineCount - m.detailPageSize()
	if maxScroll < 0 {
		maxScroll = 0
	}
	if m.detailScroll > maxScroll {
		m.detailScroll = maxScroll
	}
	if m.detailScroll < 0 {
		m.detailScroll = 0
	}
}

func (m Model) contentWidth() int {
	if m.width <= 2 {
		return 80
	}
	return m.width - 2
}

func (m *Model) resizeCompose() {
	w := m.contentWidth() - 12
	if w < 10 {
		w = 10
	}
	m.toInput.Width = w
	m.subjectInput.Width = w
	m.bodyInput.SetWidth(m.contentWidth())
	h := m.height - 8
	if h < 3 {
		h = 3
	}
	m.bodyInput.SetHeight(h)
}

// focusCompose moves keyboard focus to the field at composeFocus.
func (m *Model) focusCompose() tea.Cmd {
	m.toInput.Blur()
	m.subjectInput.Blur()
	m.bodyInput.Blur()
	switch m.composeFocus {
	case fieldTo:
		return m.toInput.Focus()
	case fieldSubject:
		return m.subjectInput.Focus()
	default:
		return m.bodyInput.Focus()
	}
}

// draft reads the compose widgets.
func (m Model) draft() mailbox.Draft {
	return mailbox.Draft{
		Recipients: m.toInput.Value(),
		Subject:    m.subjectInput.Value(),
		Body:       m.bodyInput.Value(),
	}
}
