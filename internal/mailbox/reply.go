package mailbox

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
)

const replyPrefix = "Re: "

// timestampLayout mirrors the en-US long form with a 24-hour clock.
const timestampLayout = "Mon, January 2, 2006 15:04"

// NormalizeSubject prefixes s with "Re: " unless it already starts with a
// reply marker. Detection ignores case and every space, so "RE: hi", "re:hi"
// and "Re: hi" are all returned unchanged. The function is idempotent.
func NormalizeSubject(s string) string {
	compact := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	if strings.HasPrefix(cases.Fold().String(compact), "re:") {
		return s
	}
	return replyPrefix + s
}

// FormatTimestamp renders t for list rows, the detail header and reply
// attribution lines. The zero time renders as an empty string.
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(timestampLayout)
}

// QuoteBody builds the reply body: an attribution line naming the original
// sender and time, a blank line, then the original body quoted line by line.
func QuoteBody(msg *Message) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "On %s %s wrote:\n\n", FormatTimestamp(msg.Timestamp), msg.Sender)
	for _, line := range strings.Split(strings.TrimRight(msg.Body, "\n"), "\n") {
		if line == "" {
			sb.WriteString(">\n")
			continue
		}
		sb.WriteString("> ")
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String()
}

// ReplyDraft pre-fills the compose form for a reply to msg.
func ReplyDraft(msg *Message) Draft {
	return Draft{
		Recipients: msg.Sender,
		Subject:    NormalizeSubject(msg.Subject),
		Body:       QuoteBody(msg),
	}
}

// ParseRecipients splits a comma separated address list, dropping blanks.
func ParseRecipients(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
