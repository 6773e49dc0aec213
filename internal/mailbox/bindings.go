package mailbox

import (
	"log/slog"
	"sort"
)

// Target names a control a handler can be bound to.
type Target string

const (
	TargetList      Target = "list"
	TargetArchive   Target = "archive"
	TargetUnarchive Target = "unarchive"
	TargetReply     Target = "reply"
	TargetSubmit    Target = "submit"
)

// EventType is the kind of interaction delivered to a binding.
type EventType string

// EventClick activates a control or a list row.
const EventClick EventType = "click"

// Owner identifies the rendered entity a binding belongs to.
type Owner string

// Event is what a handler receives. MessageID is set for delegated list
// clicks, where the handler needs to know which row was activated.
type Event struct {
	Type      EventType
	Target    Target
	MessageID int64
}

// Handler reacts to an event.
type Handler func(Event)

type bindingKey struct {
	target Target
	event  EventType
}

type binding struct {
	owner   Owner
	handler Handler
}

// Bindings tracks handlers per (target, event) pair and the entity that owns
// them. There is never more than one handler for a pair. Not safe for
// concurrent use; call it from the Loop.
type Bindings struct {
	byKey  map[bindingKey]binding
	logger *slog.Logger
}

// NewBindings returns an empty registry.
func NewBindings(logger *slog.Logger) *Bindings {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bindings{
		byKey:  make(map[bindingKey]binding),
		logger: logger,
	}
}

// Bind attaches handler to (target, event) on behalf of owner. A handler
// already bound to the pair is replaced and becomes unreachable.
func (b *Bindings) Bind(target Target, event EventType, owner Owner, handler Handler) {
	key := bindingKey{target: target, event: event}
	if prev, ok := b.byKey[key]; ok && prev.owner != owner {
		b.logger.Debug("binding superseded",
			"target", target, "event", event,
			"previous_owner", prev.owner, "owner", owner)
	}
	b.byKey[key] = binding{owner: owner, handler: handler}
}

// Unbind removes the pair's handler if owner holds it.
func (b *Bindings) Unbind(target Target, event EventType, owner Owner) bool {
	key := bindingKey{target: target, event: event}
	if cur, ok := b.byKey[key]; ok && cur.owner == owner {
		delete(b.byKey, key)
		return true
	}
	return false
}

// UnbindAll removes every binding held by owner and returns how many there were.
func (b *Bindings) UnbindAll(owner Owner) int {
	n := 0
	for key, cur := range b.byKey {
		if cur.owner == owner {
			delete(b.byKey, key)
			n++
		}
	}
	if n > 0 {
		b.logger.Debug("bindings released", "owner", owner, "count", n)
	}
	return n
}

// Dispatch delivers ev to the handler bound to its target and type. It
// reports whether a handler ran.
func (b *Bindings) Dispatch(ev Event) bool {
	if ev.Type == "" {
		ev.Type = EventClick
	}
	cur, ok := b.byKey[bindingKey{target: ev.Target, event: ev.Type}]
	if !ok {
		return false
	}
	cur.handler(ev)
	return true
}

// Owner returns who holds (target, event).
func (b *Bindings) Owner(target Target, event EventType) (Owner, bool) {
	cur, ok := b.byKey[bindingKey{target: target, event: event}]
	return cur.owner, ok
}

// Len returns the number of live bindings.
func (b *Bindings) Len() int { return len(b.byKey) }

// Targets returns the bound targets held by owner, sorted.
func (b *Bindings) Targets(owner Owner) []Target {
	var out []Target
	for key, cur := range b.byKey {
		if cur.owner == owner {
			out = append(out, key.target)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
