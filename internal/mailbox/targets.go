package mailbox

import "time"

// Control is a button-like element of a panel.
type Control struct {
	Visible  bool
	Disabled bool
}

// Enabled reports whether the control can be activated.
func (c Control) Enabled() bool { return c.Visible && !c.Disabled }

// ListEntry is one rendered row of the message list.
type ListEntry struct {
	ID        int64
	Sender    string
	Subject   string
	Timestamp time.Time
	Read      bool
	// Label describes the row for help lines and screen readers.
	Label string
}

// ListTarget is what the list panel renders.
type ListTarget struct {
	Mailbox MailboxID
	Title   string
	Entries []ListEntry
	Loading bool
	Err     string
}

// DetailTarget is what the detail panel renders.
type DetailTarget struct {
	Message   *Message
	Loading   bool
	Err       string
	Archive   Control
	Unarchive Control
	Reply     Control

	owner Owner
}

// Owner returns the binding owner of the rendered message, empty when none.
func (d DetailTarget) Owner() Owner { return d.owner }

// ComposeTarget is what the compose panel renders. Revision changes whenever
// the controller replaces the form content, so a renderer holding its own
// input widgets knows when to reload them.
type ComposeTarget struct {
	Draft
	Disabled bool
	Submit   Control
	Error    string
	Revision uint64
}

// CountsTarget is the read-only counts display.
type CountsTarget struct {
	Counts
	Loaded    bool
	UpdatedAt time.Time
}

// NoticeLevel classifies a notice.
type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeSuccess
	NoticeError
)

// Notice is a short-lived notification. Seq increases with every new notice.
type Notice struct {
	Text  string
	Level NoticeLevel
	Seq   uint64
}
