package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mailpane/mailpane/internal/mailbox"
)

// TestView_FillsTerminal verifies every panel renders exactly the terminal
// height and never wider than the terminal.
func TestView_FillsTerminal(t *testing.T) {
	tests := []struct {
		name string
		keys []string
	}{
		{name: "list"},
		{name: "detail", keys: []string{"enter"}},
		{name: "compose", keys: []string{"c"}},
		{name: "empty sent", keys: []string{"2"}},
		{name: "help", keys: []string{"?"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestModel(t, newStubStore())
			m = press(t, m, tt.keys...)

			lines := strings.Split(m.View(), "\n")
			if len(lines) != m.height {
				t.Errorf("rendered %d lines, want %d", len(lines), m.height)
			}
			for i, line := range lines {
				if w := lipgloss.Width(line); w > m.width {
					t.Errorf("line %d is %d cells wide, want <= %d: %q", i, w, m.width, stripANSI(line))
				}
			}
		})
	}
}

func TestListView_UnreadRowsAreMarkedAndBold(t *testing.T) {
	forceColorProfile(t)
	m := newTestModel(t, newStubStore())

	var aliceRow, bobRow string
	for _, line := range strings.Split(m.View(), "\n") {
		plain := stripANSI(line)
		switch {
		case aliceRow == "" && strings.Contains(plain, "alice@example.com"):
			aliceRow = line
		case bobRow == "" && strings.Contains(plain, "bob@example.com"):
			bobRow = line
		}
	}
	if aliceRow == "" || bobRow == "" {
		t.Fatalf("rows not found:\n%s", stripANSI(m.View()))
	}
	if !strings.HasPrefix(stripANSI(aliceRow), "● ") {
		t.Errorf("unread row should start with a marker: %q", stripANSI(aliceRow))
	}
	if !strings.Contains(aliceRow, "\x1b[1") {
		t.Errorf("unread row should be bold: %q", aliceRow)
	}
	if strings.HasPrefix(stripANSI(bobRow), "●") {
		t.Errorf("read row should not be marked: %q", stripANSI(bobRow))
	}
}

func TestListView_States(t *testing.T) {
	m := newTestModel(t, newStubStore())
	m = press(t, m, "2")
	assertContains(t, stripANSI(m.View()), "Sent", "No messages")
}

func TestFooter_ShowsRowLabelAndPosition(t *testing.T) {
	m := newTestModel(t, newStubStore())
	m = press(t, m, "j")

	footer := stripANSI(m.footerView())
	assertContains(t, footer, "Open the message from alice@example.com with the subject Lunch", "2/2")
}

func TestFooter_NarrowTerminalFallsBackToKeys(t *testing.T) {
	m := newTestModel(t, newStubStore())
	m.width = 40

	footer := stripANSI(m.footerView())
	if strings.Contains(footer, "Open the message") {
		t.Errorf("label should not be shown on a narrow terminal: %q", footer)
	}
	if w := lipgloss.Width(m.footerView()); w > m.width {
		t.Errorf("footer is %d cells wide, want <= %d", w, m.width)
	}
}

func TestDetailView_Headers(t *testing.T) {
	m := newTestModel(t, newStubStore())
	m = press(t, m, "j", "enter")

	out := stripANSI(m.View())
	date := mailbox.FormatTimestamp(time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC))
	assertContains(t, out, "To:", "me@example.com", "Date:", date)
}

func TestDetailView_LoadFailureShowsReason(t *testing.T) {
	store := newStubStore()
	m := newTestModel(t, store)

	m.ctrl.OpenMessage(42)
	m = pump(t, m)

	assertContains(t, stripANSI(m.View()), "Email not found.")
}

func TestDetailView_ScrollsLongBodies(t *testing.T) {
	store := newStubStore()
	var body strings.Builder
	for i := 0; i < 100; i++ {
		body.WriteString("line\n")
	}
	body.WriteString("the end")
	store.add(&mailbox.Message{ID: 9, Sender: "dan@example.com", Recipients: []string{"me@example.com"},
		Subject: "Long", Body: body.String(), Timestamp: time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC)})
	m := newTestModel(t, store)

	m = press(t, m, "enter")
	if m.ctrl.Detail().Message == nil || m.ctrl.Detail().Message.ID != 9 {
		t.Fatalf("detail = %+v, want message 9", m.ctrl.Detail().Message)
	}
	if strings.Contains(stripANSI(m.View()), "the end") {
		t.Fatal("last line should be off screen before scrolling")
	}

	m = press(t, m, "G")
	assertContains(t, stripANSI(m.View()), "the end")
	if m.detailScroll != m.detailLineCount-m.detailPageSize() {
		t.Errorf("scroll = %d, want %d", m.detailScroll, m.detailLineCount-m.detailPageSize())
	}

	m = press(t, m, "g")
	if m.detailScroll != 0 {
		t.Errorf("scroll after g = %d, want 0", m.detailScroll)
	}
}

func TestTitleBar_ShowsPlace(t *testing.T) {
	m := newTestModel(t, newStubStore())
	assertContains(t, stripANSI(m.titleBarView()), "mailpane │ Inbox")

	m = press(t, m, "enter")
	assertContains(t, stripANSI(m.titleBarView()), "Inbox › Message")

	m = press(t, m, "c")
	assertContains(t, stripANSI(m.titleBarView()), "Compose")
}
