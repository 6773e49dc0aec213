package store

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// demoMessages are inserted by Seed. Ages are relative to the seed time.
var demoMessages = []struct {
	from    string
	to      []string
	subject string
	body    string
	age     time.Duration
}{
	{
		from:    "ada@example.com",
		subject: "Welcome to mailpane",
		body:    "Press j/k to move, enter to open, a to archive and r to reply.\n\nHave fun.",
		age:     72 * time.Hour,
	},
	{
		from:    "grace@example.com",
		subject: "Standup notes",
		body:    "Shipped the poller.\nNext: archive toggles.\n\nBlockers: none.",
		age:     26 * time.Hour,
	},
	{
		from:    "linus@example.com",
		subject: "Re: Lunch?",
		body:    "Noon works. Usual place.",
		age:     3 * time.Hour,
	},
	{
		from:    "", // the owner
		to:      []string{"grace@example.com"},
		subject: "Review request",
		body:    "Could you take a look at the compose form when you have a minute?",
		age:     90 * time.Minute,
	},
}

// Seed inserts a few demo conversations for owner when owner has no
// messages yet. It returns the number of messages sent.
func (s *Store) Seed(ctx context.Context, owner string, now time.Time) (int, error) {
	owner = strings.ToLower(owner)
	var existing int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE owner = ?`, owner).Scan(&existing); err != nil {
		return 0, eris.Wrap(err, "count existing messages")
	}
	if existing > 0 {
		return 0, nil
	}

	n := 0
	for _, d := range demoMessages {
		out := Outgoing{
			Sender:     d.from,
			Recipients: d.to,
			Subject:    d.subject,
			Body:       d.body,
			SentAt:     now.Add(-d.age),
		}
		if out.Sender == "" {
			out.Sender = owner
		}
		if len(out.Recipients) == 0 {
			out.Recipients = []string{owner}
		}
		if _, err := s.Send(ctx, out); err != nil {
			return n, eris.Wrapf(err, "seed %q", d.subject)
		}
		n++
	}
	return n, nil
}
