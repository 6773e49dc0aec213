package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/mailpane/mailpane/internal/store"
)

// NewTestStore creates a temporary database for testing.
// The database is automatically cleaned up when the test completes.
func NewTestStore(t *testing.T) *store.Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	// Register close on cleanup
	t.Cleanup(func() {
		st.Close()
	})

	return st
}

// MustSend stores a message from sender to recipients and returns the id of
// the sender's copy. Successive calls made in the same test get increasing
// timestamps.
func MustSend(t *testing.T, st *store.Store, sender, subject string, recipients ...string) int64 {
	t.Helper()
	sendClock = sendClock.Add(time.Minute)
	id, err := st.Send(context.Background(), store.Outgoing{
		Sender:     sender,
		Recipients: recipients,
		Subject:    subject,
		Body:       subject + " body",
		SentAt:     sendClock,
	})
	MustNoErr(t, err, "send "+subject)
	return id
}

var sendClock = time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)
