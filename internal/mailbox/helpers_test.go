package mailbox

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"
)

// quietPeriod is how long flush waits for another continuation before it
// decides the loop is idle.
const quietPeriod = 60 * time.Millisecond

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testLoop queues posted continuations until the test runs them.
type testLoop struct {
	ch chan func()
}

func newTestLoop() *testLoop {
	return &testLoop{ch: make(chan func(), 256)}
}

func (l *testLoop) Post(fn func()) { l.ch <- fn }

// next runs exactly one continuation, failing if none arrives in time.
func (l *testLoop) next(t *testing.T) {
	t.Helper()
	select {
	case fn := <-l.ch:
		fn()
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a posted continuation")
	}
}

// flush runs continuations until the loop stays quiet.
func (l *testLoop) flush(t *testing.T) int {
	t.Helper()
	n := 0
	for {
		select {
		case fn := <-l.ch:
			fn()
			n++
		case <-time.After(quietPeriod):
			return n
		}
	}
}

// fakeTicker fires registered callbacks only when the test calls tick.
type fakeTicker struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func()
}

func newFakeTicker() *fakeTicker {
	return &fakeTicker{subs: make(map[int]func())}
}

func (f *fakeTicker) Every(_ time.Duration, fn func()) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := f.nextID
	f.subs[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, id)
	}
}

func (f *fakeTicker) tick() {
	f.mu.Lock()
	fns := make([]func(), 0, len(f.subs))
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (f *fakeTicker) active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// reasonError is a failure carrying a server-provided reason.
type reasonError struct {
	reason string
}

func (e *reasonError) Error() string  { return "http 400: " + e.reason }
func (e *reasonError) Reason() string { return e.reason }

type update struct {
	id    int64
	patch Patch
}

// fakeStore is an in-memory Store that records the calls it receives.
type fakeStore struct {
	mu        sync.Mutex
	mailboxes map[MailboxID][]Summary
	messages  map[int64]*Message
	counts    Counts

	sendErr   error
	updateErr error
	getErr    error

	calls   []string
	updates []update
	sent    []Draft

	gates map[string]chan struct{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		mailboxes: make(map[MailboxID][]Summary),
		messages:  make(map[int64]*Message),
		gates:     make(map[string]chan struct{}),
	}
}

func (s *fakeStore) addMessage(mb MailboxID, m Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[m.ID] = &m
	s.mailboxes[mb] = append(s.mailboxes[mb], Summary{
		ID:        m.ID,
		Sender:    m.Sender,
		Subject:   m.Subject,
		Timestamp: m.Timestamp,
		Read:      m.Read,
		Archived:  m.Archived,
	})
}

// hold blocks the call named by key until the returned release is called.
func (s *fakeStore) hold(key string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.gates[key] = ch
	s.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (s *fakeStore) enter(ctx context.Context, key string) error {
	s.mu.Lock()
	s.calls = append(s.calls, key)
	gate := s.gates[key]
	delete(s.gates, key)
	s.mu.Unlock()
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *fakeStore) ListMailbox(ctx context.Context, mb MailboxID) ([]Summary, error) {
	if err := s.enter(ctx, "GET /messages/"+string(mb)); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Summary(nil), s.mailboxes[mb]...), nil
}

func (s *fakeStore) GetMessage(ctx context.Context, id int64) (*Message, error) {
	if err := s.enter(ctx, fmt.Sprintf("GET /messages/%d", id)); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	m, ok := s.messages[id]
	if !ok {
		return nil, &reasonError{reason: "Email not found."}
	}
	cp := *m
	return &cp, nil
}

func (s *fakeStore) SendMessage(ctx context.Context, d Draft) error {
	if err := s.enter(ctx, "POST /messages"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, d)
	return s.sendErr
}

func (s *fakeStore) UpdateMessage(ctx context.Context, id int64, p Patch) error {
	if err := s.enter(ctx, fmt.Sprintf("PUT /messages/%d", id)); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, update{id: id, patch: p})
	if s.updateErr != nil {
		return s.updateErr
	}
	if m, ok := s.messages[id]; ok {
		if p.Read != nil {
			m.Read = *p.Read
		}
		if p.Archived != nil {
			m.Archived = *p.Archived
		}
	}
	return nil
}

func (s *fakeStore) Counts(ctx context.Context) (Counts, error) {
	if err := s.enter(ctx, "GET /counts"); err != nil {
		return Counts{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts, nil
}

func (s *fakeStore) callCount(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c == key {
			n++
		}
	}
	return n
}

func (s *fakeStore) recordedCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]string(nil), s.calls...)
	sort.Strings(out)
	return out
}

func (s *fakeStore) recordedUpdates() []update {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]update(nil), s.updates...)
}

func (s *fakeStore) recordedSends() []Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Draft(nil), s.sent...)
}

func boolPtr(b bool) *bool { return &b }
