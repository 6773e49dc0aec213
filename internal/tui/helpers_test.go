package tui

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mailpane/mailpane/internal/mailbox"
	"github.com/muesli/termenv"
)

// quietPeriod is how long pump waits for another continuation before it
// decides the controller is idle.
const quietPeriod = 60 * time.Millisecond

// colorProfileMu serializes tests that mutate the global lipgloss color profile.
var colorProfileMu sync.Mutex

// forceColorProfile sets lipgloss to ANSI color output for tests that assert
// on styled output, restoring the original profile via t.Cleanup.
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

// reasonError carries a server-provided failure reason.
type reasonError struct{ reason string }

func (e reasonError) Error() string  { return "request failed: " + e.reason }
func (e reasonError) Reason() string { return e.reason }

// stubStore is an in-memory mailbox.Store.
type stubStore struct {
	mu       sync.Mutex
	messages map[int64]*mailbox.Message
	nextID   int64
	sendErr  error
	sends    []mailbox.Draft
}

func newStubStore() *stubStore {
	base := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	s := &stubStore{messages: make(map[int64]*mailbox.Message), nextID: 100}
	s.add(&mailbox.Message{ID: 1, Sender: "alice@example.com", Recipients: []string{"me@example.com"},
		Subject: "Lunch", Body: "Noon at the usual place?", Timestamp: base})
	s.add(&mailbox.Message{ID: 2, Sender: "bob@example.com", Recipients: []string{"me@example.com"},
		Subject: "Report", Body: "Draft attached.", Timestamp: base.Add(time.Hour), Read: true})
	s.add(&mailbox.Message{ID: 3, Sender: "carol@example.com", Recipients: []string{"me@example.com"},
		Subject: "Old news", Body: "Filed.", Timestamp: base.Add(-time.Hour), Read: true, Archived: true})
	return s
}

func (s *stubStore) add(m *mailbox.Message) {
	s.messages[m.ID] = m
}

func (s *stubStore) ListMailbox(_ context.Context, id mailbox.MailboxID) ([]mailbox.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []mailbox.Summary{}
	for _, m := range s.messages {
		var match bool
		switch id {
		case mailbox.Inbox:
			match = m.Sender != "me@example.com" && !m.Archived
		case mailbox.Sent:
			match = m.Sender == "me@example.com"
		case mailbox.Archive:
			match = m.Sender != "me@example.com" && m.Archived
		}
		if match {
			out = append(out, mailbox.Summary{ID: m.ID, Sender: m.Sender, Subject: m.Subject,
				Timestamp: m.Timestamp, Read: m.Read, Archived: m.Archived})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (s *stubStore) GetMessage(_ context.Context, id int64) (*mailbox.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, reasonError{"Email not found."}
	}
	cp := *m
	return &cp, nil
}

func (s *stubStore) SendMessage(_ context.Context, d mailbox.Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sends = append(s.sends, d)
	if s.sendErr != nil {
		return s.sendErr
	}
	s.nextID++
	s.messages[s.nextID] = &mailbox.Message{ID: s.nextID, Sender: "me@example.com",
		Recipients: mailbox.ParseRecipients(d.Recipients), Subject: d.Subject, Body: d.Body,
		Timestamp: time.Now(), Read: true}
	return nil
}

func (s *stubStore) UpdateMessage(_ context.Context, id int64, p mailbox.Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return errors.New("not found")
	}
	if p.Read != nil {
		m.Read = *p.Read
	}
	if p.Archived != nil {
		m.Archived = *p.Archived
	}
	return nil
}

func (s *stubStore) Counts(ctx context.Context) (mailbox.Counts, error) {
	var c mailbox.Counts
	for _, id := range mailbox.Mailboxes {
		items, _ := s.ListMailbox(ctx, id)
		switch id {
		case mailbox.Inbox:
			c.Inbox = len(items)
		case mailbox.Sent:
			c.Sent = len(items)
		case mailbox.Archive:
			c.Archived = len(items)
		}
	}
	return c, nil
}

func (s *stubStore) recordedSends() []mailbox.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]mailbox.Draft(nil), s.sends...)
}

// idleTicker never fires; the poller's immediate first run is all tests see.
type idleTicker struct{}

func (idleTicker) Every(time.Duration, func()) func() { return func() {} }

// newTestModel builds a started, sized model over store and waits for the
// inbox to load.
func newTestModel(t *testing.T, store mailbox.Store) Model {
	t.Helper()
	opts := mailbox.DefaultOptions()
	opts.Ticker = idleTicker{}
	opts.ReenableDelay = 0
	m := New(store, Options{
		Controller: opts,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	m.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(m.Close)

	m = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 24})
	m = update(t, m, startMsg{})
	return pump(t, m)
}

// update applies msg and returns the resulting model.
func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	model, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T, want Model", next)
	}
	return model
}

// pump delivers queued controller continuations until the loop stays quiet.
func pump(t *testing.T, m Model) Model {
	t.Helper()
	for {
		select {
		case fn := <-m.loop.posts:
			m = update(t, m, postedMsg{fn: fn})
		case <-time.After(quietPeriod):
			return m
		}
	}
}

// press sends a key and pumps the resulting work.
func press(t *testing.T, m Model, keys ...string) Model {
	t.Helper()
	for _, k := range keys {
		m = update(t, m, keyMsg(k))
		m = pump(t, m)
	}
	return m
}

// keyMsg builds the KeyMsg bubbletea delivers for k.
func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEscape}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "shift+tab":
		return tea.KeyMsg{Type: tea.KeyShiftTab}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "ctrl+s":
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

// typeText sends each rune of s as its own key.
func typeText(t *testing.T, m Model, s string) Model {
	t.Helper()
	for _, r := range s {
		m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

// visiblePanel returns the panel the controller shows.
func visiblePanel(m Model) mailbox.PanelID {
	id, _ := m.ctrl.Views().Visible()
	return id
}

func assertContains(t *testing.T, s string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(s, w) {
			t.Errorf("output missing %q:\n%s", w, s)
		}
	}
}
