package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/rotisserie/eris"

	"github.com/mailpane/mailpane/internal/mailbox"
)

var (
	// ErrNotFound is returned when a message does not exist for the owner.
	ErrNotFound = errors.New("message not found")
	// ErrNoRecipients is returned when a message has no recipients.
	ErrNoRecipients = errors.New("at least one recipient required")
	// ErrInvalidMailbox is returned for mailbox names other than inbox, sent
	// and archive.
	ErrInvalidMailbox = errors.New("invalid mailbox")
)

// InvalidRecipientError reports an address that could not be parsed.
type InvalidRecipientError struct {
	Address string
	Err     error
}

func (e *InvalidRecipientError) Error() string {
	return fmt.Sprintf("invalid recipient: %s", e.Address)
}

func (e *InvalidRecipientError) Unwrap() error { return e.Err }

// NormalizeAddress parses a single RFC 5322 address ("Ann <ann@x.com>" or
// "ann@x.com") and returns the lowercased bare address.
func NormalizeAddress(s string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(s))
	if err != nil {
		return "", &InvalidRecipientError{Address: strings.TrimSpace(s), Err: err}
	}
	return strings.ToLower(addr.Address), nil
}

// Outgoing is a message to be delivered.
type Outgoing struct {
	Sender     string
	Recipients []string
	Subject    string
	Body       string
	SentAt     time.Time
}

// Send stores the sender's copy of out plus one copy per distinct recipient
// and returns the id of the sender's copy. The sender's copy is already
// read.
func (s *Store) Send(ctx context.Context, out Outgoing) (int64, error) {
	sender, err := NormalizeAddress(out.Sender)
	if err != nil {
		return 0, err
	}
	if len(out.Recipients) == 0 {
		return 0, ErrNoRecipients
	}
	recipients := make([]string, 0, len(out.Recipients))
	for _, r := range out.Recipients {
		addr, err := NormalizeAddress(r)
		if err != nil {
			return 0, err
		}
		recipients = append(recipients, addr)
	}
	if out.SentAt.IsZero() {
		out.SentAt = time.Now()
	}

	owners := []string{sender}
	seen := map[string]bool{sender: true}
	for _, r := range recipients {
		if !seen[r] {
			seen[r] = true
			owners = append(owners, r)
		}
	}

	var senderCopy int64
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		for _, owner := range owners {
			res, err := tx.ExecContext(ctx, `
				INSERT INTO messages (owner, sender, subject, body, sent_at, read, archived)
				VALUES (?, ?, ?, ?, ?, ?, 0)`,
				owner, sender, out.Subject, out.Body, out.SentAt.UnixMilli(), owner == sender)
			if err != nil {
				return eris.Wrap(err, "insert message")
			}
			id, err := res.LastInsertId()
			if err != nil {
				return eris.Wrap(err, "message id")
			}
			if owner == sender {
				senderCopy = id
			}
			for pos, addr := range recipients {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO message_recipients (message_id, position, address) VALUES (?, ?, ?)`,
					id, pos, addr); err != nil {
					return eris.Wrap(err, "insert recipient")
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return senderCopy, nil
}

// mailboxFilter returns the WHERE clause selecting owner's copies in mb.
// The clause takes the owner address twice.
func mailboxFilter(mb mailbox.MailboxID) (string, error) {
	const isRecipient = `EXISTS (SELECT 1 FROM message_recipients r WHERE r.message_id = m.id AND r.address = ?)`
	switch mb {
	case mailbox.Inbox:
		return `m.owner = ? AND ` + isRecipient + ` AND m.archived = 0`, nil
	case mailbox.Sent:
		return `m.owner = ? AND m.sender = ?`, nil
	case mailbox.Archive:
		return `m.owner = ? AND ` + isRecipient + ` AND m.archived = 1`, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMailbox, mb)
}

// Mailbox lists owner's copies in mb, newest first.
func (s *Store) Mailbox(ctx context.Context, owner string, mb mailbox.MailboxID) ([]mailbox.Summary, error) {
	where, err := mailboxFilter(mb)
	if err != nil {
		return nil, err
	}
	owner = strings.ToLower(owner)

	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.sender, m.subject, m.sent_at, m.read, m.archived
		FROM messages m
		WHERE `+where+`
		ORDER BY m.sent_at DESC, m.id DESC`, owner, owner)
	if err != nil {
		return nil, eris.Wrapf(err, "list %s", mb)
	}
	defer rows.Close()

	out := []mailbox.Summary{}
	for rows.Next() {
		var sum mailbox.Summary
		var sentAt int64
		if err := rows.Scan(&sum.ID, &sum.Sender, &sum.Subject, &sentAt, &sum.Read, &sum.Archived); err != nil {
			return nil, eris.Wrap(err, "scan message")
		}
		sum.Timestamp = time.UnixMilli(sentAt).UTC()
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Message returns owner's copy id.
func (s *Store) Message(ctx context.Context, owner string, id int64) (*mailbox.Message, error) {
	owner = strings.ToLower(owner)

	msg := &mailbox.Message{ID: id}
	var sentAt int64
	err := s.db.QueryRowContext(ctx, `
		SELECT sender, subject, body, sent_at, read, archived
		FROM messages WHERE id = ? AND owner = ?`, id, owner).
		Scan(&msg.Sender, &msg.Subject, &msg.Body, &sentAt, &msg.Read, &msg.Archived)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "get message %d", id)
	}
	msg.Timestamp = time.UnixMilli(sentAt).UTC()

	rows, err := s.db.QueryContext(ctx,
		`SELECT address FROM message_recipients WHERE message_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, eris.Wrapf(err, "recipients of %d", id)
	}
	defer rows.Close()
	msg.Recipients = []string{}
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, eris.Wrap(err, "scan recipient")
		}
		msg.Recipients = append(msg.Recipients, addr)
	}
	return msg, rows.Err()
}

// Update applies the set fields of patch to owner's copy id.
func (s *Store) Update(ctx context.Context, owner string, id int64, patch mailbox.Patch) error {
	owner = strings.ToLower(owner)

	var sets []string
	var args []any
	if patch.Read != nil {
		sets = append(sets, "read = ?")
		args = append(args, *patch.Read)
	}
	if patch.Archived != nil {
		sets = append(sets, "archived = ?")
		args = append(args, *patch.Archived)
	}
	if len(sets) == 0 {
		// Nothing to change; still report a missing message.
		var one int
		err := s.db.QueryRowContext(ctx,
			`SELECT 1 FROM messages WHERE id = ? AND owner = ?`, id, owner).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return eris.Wrap(err, "check message")
	}

	args = append(args, id, owner)
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET `+strings.Join(sets, ", ")+` WHERE id = ? AND owner = ?`, args...)
	if err != nil {
		return eris.Wrapf(err, "update message %d", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Counts returns the sizes of owner's three mailboxes.
func (s *Store) Counts(ctx context.Context, owner string) (mailbox.Counts, error) {
	var c mailbox.Counts
	for _, m := range []struct {
		id  mailbox.MailboxID
		dst *int
	}{
		{mailbox.Inbox, &c.Inbox},
		{mailbox.Sent, &c.Sent},
		{mailbox.Archive, &c.Archived},
	} {
		where, err := mailboxFilter(m.id)
		if err != nil {
			return c, err
		}
		lower := strings.ToLower(owner)
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM messages m WHERE `+where, lower, lower).Scan(m.dst); err != nil {
			return c, eris.Wrapf(err, "count %s", m.id)
		}
	}
	return c, nil
}
