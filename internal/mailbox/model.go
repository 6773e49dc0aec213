package mailbox

import (
	"context"
	"strings"
	"time"
)

// MailboxID names a partition of messages.
type MailboxID string

const (
	Inbox   MailboxID = "inbox"
	Sent    MailboxID = "sent"
	Archive MailboxID = "archive"
)

// Mailboxes lists the mailboxes in display order.
var Mailboxes = []MailboxID{Inbox, Sent, Archive}

// Valid reports whether id is a known mailbox.
func (id MailboxID) Valid() bool {
	switch id {
	case Inbox, Sent, Archive:
		return true
	}
	return false
}

// Title returns the capitalized mailbox name shown above the list.
func (id MailboxID) Title() string {
	if id == "" {
		return ""
	}
	s := string(id)
	return strings.ToUpper(s[:1]) + s[1:]
}

// Summary is one row of a mailbox listing.
type Summary struct {
	ID        int64     `json:"id"`
	Sender    string    `json:"sender"`
	Subject   string    `json:"subject"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
	Archived  bool      `json:"archived"`
}

// Message is the full record shown in the detail panel.
type Message struct {
	ID         int64     `json:"id"`
	Sender     string    `json:"sender"`
	Recipients []string  `json:"recipients"`
	Subject    string    `json:"subject"`
	Timestamp  time.Time `json:"timestamp"`
	Body       string    `json:"body"`
	Read       bool      `json:"read"`
	Archived   bool      `json:"archived"`
}

// Counts holds the sizes shown in the counts display.
type Counts struct {
	Inbox    int `json:"inbox"`
	Sent     int `json:"sent"`
	Archived int `json:"archived"`
}

// Draft is the content of the compose form.
type Draft struct {
	Recipients string
	Subject    string
	Body       string
}

// Patch carries the mutable flags of a message. Nil fields are left alone.
type Patch struct {
	Read     *bool `json:"read,omitempty"`
	Archived *bool `json:"archived,omitempty"`
}

// Store is the backing message store as seen by the controller.
type Store interface {
	ListMailbox(ctx context.Context, mailbox MailboxID) ([]Summary, error)
	GetMessage(ctx context.Context, id int64) (*Message, error)
	SendMessage(ctx context.Context, draft Draft) error
	UpdateMessage(ctx context.Context, id int64, patch Patch) error
	Counts(ctx context.Context) (Counts, error)
}
