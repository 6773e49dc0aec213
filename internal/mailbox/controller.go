package mailbox

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	// DefaultPollInterval is how often counts refresh while visible.
	DefaultPollInterval = 5 * time.Second
	// DefaultReenableDelay keeps the compose form disabled briefly after a
	// send settles so a quick second submit cannot race the reset.
	DefaultReenableDelay = 500 * time.Millisecond
)

const (
	listOwner    Owner = "list"
	composeOwner Owner = "compose"
)

// Options configures a Controller.
type Options struct {
	PollInterval          time.Duration
	ReenableDelay         time.Duration
	SwitchToSentAfterSend bool

	// Ticker drives the counts refresh. When nil the controller runs its
	// own CronTicker and closes it in Close.
	Ticker Ticker
	Logger *slog.Logger
}

// DefaultOptions returns the stock controller settings.
func DefaultOptions() Options {
	return Options{
		PollInterval:          DefaultPollInterval,
		ReenableDelay:         DefaultReenableDelay,
		SwitchToSentAfterSend: true,
	}
}

// Controller implements the mailbox workflows on top of the view switcher,
// request lifecycle, poller and bindings. Every method must be called on the
// Loop.
type Controller struct {
	ctx    context.Context
	cancel context.CancelFunc

	store    Store
	loop     Loop
	views    *ViewSwitcher
	bindings *Bindings
	poller   *Poller
	logger   *slog.Logger
	opts     Options

	ownedTicker *CronTicker
	counting    *Session
	timers      map[*time.Timer]struct{}

	list    ListTarget
	detail  DetailTarget
	compose ComposeTarget
	counts  CountsTarget
	notice  Notice

	// Generation counters; a response is applied only if the counter it
	// captured at issue time is still current.
	listGen    uint64
	detailGen  uint64
	composeGen uint64
}

// New wires a controller. views may be nil, in which case the three standard
// panels are registered.
func New(store Store, loop Loop, views *ViewSwitcher, opts Options) *Controller {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.ReenableDelay < 0 {
		opts.ReenableDelay = 0
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if views == nil {
		views = NewViewSwitcher(PanelList, PanelDetail, PanelCompose)
	}

	c := &Controller{
		store:    store,
		loop:     loop,
		views:    views,
		bindings: NewBindings(logger),
		logger:   logger,
		opts:     opts,
		timers:   make(map[*time.Timer]struct{}),
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())

	ticker := opts.Ticker
	if ticker == nil {
		c.ownedTicker = NewCronTicker(logger)
		ticker = c.ownedTicker
	}
	c.poller = NewPoller(loop, ticker, logger)

	views.Observe(c.onTransition)
	return c
}

// Start opens the inbox and begins the counts refresh.
func (c *Controller) Start() {
	c.LoadMailbox(Inbox)
	c.counting = c.poller.Start(c.refreshCounts, c.opts.PollInterval)
}

// Close stops polling, pending timers and in-flight requests.
func (c *Controller) Close() {
	c.poller.Stop(c.counting)
	for t := range c.timers {
		t.Stop()
		delete(c.timers, t)
	}
	c.cancel()
	if c.ownedTicker != nil {
		c.ownedTicker.Close()
	}
}

// SetVisible pauses or resumes the counts refresh.
func (c *Controller) SetVisible(visible bool) {
	c.poller.SetVisible(visible)
}

// LoadMailbox shows the list panel right away and fills it once the
// mailbox arrives.
func (c *Controller) LoadMailbox(id MailboxID) {
	if !id.Valid() {
		c.notify(NoticeError, fmt.Sprintf("Unknown mailbox %q.", id))
		return
	}
	c.show(PanelList)

	c.listGen++
	c.list = ListTarget{Mailbox: id, Title: id.Title(), Loading: true}
	c.fetchList(c.listGen, id)
}

// refreshList reloads the current mailbox without touching panel state.
func (c *Controller) refreshList() {
	if c.list.Mailbox == "" {
		return
	}
	c.listGen++
	c.list.Loading = true
	c.fetchList(c.listGen, c.list.Mailbox)
}

func (c *Controller) fetchList(gen uint64, id MailboxID) {
	Run(c.ctx, c.loop, func(ctx context.Context) ([]Summary, error) {
		return c.store.ListMailbox(ctx, id)
	}, Callbacks[[]Summary]{
		OnSuccess: func(items []Summary) {
			if gen != c.listGen {
				c.logger.Debug("dropping stale mailbox response", "mailbox", id)
				return
			}
			c.renderList(items)
		},
		OnError: func(err error) {
			if gen != c.listGen {
				return
			}
			c.logger.Warn("load mailbox failed", "mailbox", id, "error", err)
			c.list.Err = FailureReason(err, GenericFailure)
		},
		OnSettled: func() {
			if gen == c.listGen {
				c.list.Loading = false
			}
		},
	})
}

func (c *Controller) renderList(items []Summary) {
	entries := make([]ListEntry, len(items))
	for i, s := range items {
		entries[i] = ListEntry{
			ID:        s.ID,
			Sender:    s.Sender,
			Subject:   s.Subject,
			Timestamp: s.Timestamp,
			Read:      s.Read,
			Label: fmt.Sprintf("Open the message from %s with the subject %s",
				s.Sender, s.Subject),
		}
	}
	c.list.Entries = entries
	c.list.Err = ""

	// One delegated handler for the whole list; rows carry their message id.
	if c.views.IsVisible(PanelList) {
		c.bindings.Bind(TargetList, EventClick, listOwner, func(ev Event) {
			c.OpenMessage(ev.MessageID)
		})
	}
}

// OpenListEntry activates the list row at index.
func (c *Controller) OpenListEntry(index int) bool {
	if !c.views.IsVisible(PanelList) || index < 0 || index >= len(c.list.Entries) {
		return false
	}
	return c.bindings.Dispatch(Event{
		Type:      EventClick,
		Target:    TargetList,
		MessageID: c.list.Entries[index].ID,
	})
}

// OpenMessage shows the detail panel and loads message id into it.
func (c *Controller) OpenMessage(id int64) {
	c.show(PanelDetail)

	c.detailGen++
	gen := c.detailGen
	owner := Owner(fmt.Sprintf("message:%d#%d", id, gen))
	c.detail = DetailTarget{Loading: true, owner: owner}

	Run(c.ctx, c.loop, func(ctx context.Context) (*Message, error) {
		return c.store.GetMessage(ctx, id)
	}, Callbacks[*Message]{
		OnSuccess: func(msg *Message) {
			if gen != c.detailGen {
				c.logger.Debug("dropping stale message response", "id", id)
				return
			}
			c.renderDetail(msg, owner)
		},
		OnError: func(err error) {
			if gen != c.detailGen {
				return
			}
			c.logger.Warn("load message failed", "id", id, "error", err)
			c.detail.Err = FailureReason(err, GenericFailure)
		},
		OnSettled: func() {
			if gen == c.detailGen {
				c.detail.Loading = false
			}
		},
	})
}

func (c *Controller) renderDetail(msg *Message, owner Owner) {
	if msg == nil {
		c.detail.Err = "Message unavailable."
		return
	}
	c.detail.Message = msg
	c.detail.Err = ""

	if !msg.Read {
		c.markRead(msg.ID)
	}

	c.detail.Reply = Control{Visible: true}
	c.bindings.Bind(TargetReply, EventClick, owner, func(Event) {
		c.Compose(ReplyDraft(msg))
	})
	c.setArchiveControls(msg.ID, owner, msg.Archived)
}

// markRead flags the message read on the server. Nothing waits on it.
func (c *Controller) markRead(id int64) {
	read := true
	Run(c.ctx, c.loop, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.store.UpdateMessage(ctx, id, Patch{Read: &read})
	}, Callbacks[struct{}]{
		OnError: func(err error) {
			c.logger.Warn("mark read failed", "id", id, "error", err)
		},
	})
}

// setArchiveControls shows the control for the transition available from
// the archived state and binds it. The other control is hidden and unbound.
func (c *Controller) setArchiveControls(id int64, owner Owner, archived bool) {
	c.detail.Archive = Control{Visible: !archived}
	c.detail.Unarchive = Control{Visible: archived}
	if archived {
		c.bindings.Unbind(TargetArchive, EventClick, owner)
		c.bindings.Bind(TargetUnarchive, EventClick, owner, c.archiveHandler(id, owner, false))
	} else {
		c.bindings.Unbind(TargetUnarchive, EventClick, owner)
		c.bindings.Bind(TargetArchive, EventClick, owner, c.archiveHandler(id, owner, true))
	}
}

func (c *Controller) archiveHandler(id int64, owner Owner, archived bool) Handler {
	return func(Event) {
		if archived {
			c.detail.Archive.Disabled = true
		} else {
			c.detail.Unarchive.Disabled = true
		}

		Run(c.ctx, c.loop, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, c.store.UpdateMessage(ctx, id, Patch{Archived: &archived})
		}, Callbacks[struct{}]{
			OnSuccess: func(struct{}) {
				if c.detail.owner == owner {
					c.setArchiveControls(id, owner, archived)
				}
				if archived {
					c.notify(NoticeSuccess, "Message archived.")
				} else {
					c.notify(NoticeSuccess, "Message moved to inbox.")
				}
				c.refreshList()
			},
			OnError: func(err error) {
				c.logger.Warn("update archived failed", "id", id, "archived", archived, "error", err)
				c.notify(NoticeError, FailureReason(err, GenericFailure))
			},
			OnSettled: func() {
				if c.detail.owner == owner {
					c.detail.Archive.Disabled = false
					c.detail.Unarchive.Disabled = false
				}
			},
		})
	}
}

// ToggleArchive activates whichever of archive/unarchive is visible.
func (c *Controller) ToggleArchive() bool {
	if c.detail.Unarchive.Visible {
		return c.Click(TargetUnarchive)
	}
	return c.Click(TargetArchive)
}

// Click activates a panel control. Hidden or disabled controls, and controls
// of panels that are not visible, ignore clicks.
func (c *Controller) Click(target Target) bool {
	ctrl, ok := c.control(target)
	if !ok || !ctrl.Enabled() {
		return false
	}
	return c.bindings.Dispatch(Event{Type: EventClick, Target: target})
}

func (c *Controller) control(target Target) (Control, bool) {
	switch target {
	case TargetArchive, TargetUnarchive, TargetReply:
		if !c.views.IsVisible(PanelDetail) {
			return Control{}, false
		}
		switch target {
		case TargetArchive:
			return c.detail.Archive, true
		case TargetUnarchive:
			return c.detail.Unarchive, true
		default:
			return c.detail.Reply, true
		}
	case TargetSubmit:
		if !c.views.IsVisible(PanelCompose) {
			return Control{}, false
		}
		return c.compose.Submit, true
	}
	return Control{}, false
}

// Compose shows the compose panel pre-filled with d.
func (c *Controller) Compose(d Draft) {
	c.show(PanelCompose)

	c.composeGen++
	c.compose.Draft = d
	c.compose.Error = ""
	c.compose.Disabled = false
	c.compose.Submit.Disabled = false
	c.compose.Submit.Visible = true
	c.compose.Revision++
	c.bindings.Bind(TargetSubmit, EventClick, composeOwner, func(Event) {
		c.send()
	})
}

// Reply opens the compose form as a reply to the displayed message.
func (c *Controller) Reply() bool {
	return c.Click(TargetReply)
}

// Send submits d from the compose form. It does nothing while the form is
// disabled.
func (c *Controller) Send(d Draft) bool {
	if _, ok := c.control(TargetSubmit); !ok || !c.compose.Submit.Enabled() {
		return false
	}
	c.compose.Draft = d
	return c.Click(TargetSubmit)
}

// send submits the form. A completion whose form has since been hidden or
// replaced only flashes its notice.
func (c *Controller) send() {
	draft := c.compose.Draft
	gen := c.composeGen
	c.compose.Disabled = true
	c.compose.Submit.Disabled = true
	c.compose.Error = ""

	Run(c.ctx, c.loop, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.store.SendMessage(ctx, draft)
	}, Callbacks[struct{}]{
		OnSuccess: func(struct{}) {
			c.notify(NoticeSuccess, "Message sent.")
			if gen != c.composeGen {
				return
			}
			c.compose.Draft = Draft{}
			c.compose.Revision++
			if c.opts.SwitchToSentAfterSend && c.views.IsVisible(PanelCompose) {
				c.LoadMailbox(Sent)
			}
		},
		OnError: func(err error) {
			c.logger.Warn("send failed", "error", err)
			c.notify(NoticeError, "Message not sent.")
			if gen == c.composeGen {
				c.compose.Error = FailureReason(err, GenericFailure)
			}
		},
		OnSettled: func() {
			c.after(c.opts.ReenableDelay, func() {
				if gen != c.composeGen && c.views.IsVisible(PanelCompose) {
					return
				}
				c.compose.Disabled = false
				c.compose.Submit.Disabled = false
			})
		},
	})
}

func (c *Controller) refreshCounts() {
	Run(c.ctx, c.loop, func(ctx context.Context) (Counts, error) {
		return c.store.Counts(ctx)
	}, Callbacks[Counts]{
		OnSuccess: func(counts Counts) {
			c.counts = CountsTarget{Counts: counts, Loaded: true, UpdatedAt: time.Now()}
		},
		OnError: func(err error) {
			c.logger.Debug("counts refresh failed", "error", err)
		},
	})
}

// after runs fn on the Loop once d has elapsed.
func (c *Controller) after(d time.Duration, fn func()) {
	if d <= 0 {
		fn()
		return
	}
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		c.loop.Post(func() {
			if _, pending := c.timers[t]; !pending {
				return
			}
			delete(c.timers, t)
			fn()
		})
	})
	c.timers[t] = struct{}{}
}

func (c *Controller) show(id PanelID) {
	if err := c.views.Show(id); err != nil {
		c.logger.Error("switch panel", "error", err)
	}
}

// onTransition releases bindings of whatever a panel rendered once that
// panel is hidden or re-rendered.
func (c *Controller) onTransition(t Transition) {
	if t.Change == Shown {
		return
	}
	switch t.Panel {
	case PanelDetail:
		if c.detail.owner != "" {
			c.bindings.UnbindAll(c.detail.owner)
		}
		c.detailGen++
		c.detail = DetailTarget{}
	case PanelList:
		c.bindings.UnbindAll(listOwner)
	case PanelCompose:
		c.bindings.UnbindAll(composeOwner)
		c.composeGen++
	}
}

func (c *Controller) notify(level NoticeLevel, text string) {
	c.notice = Notice{Text: text, Level: level, Seq: c.notice.Seq + 1}
}

// List returns the list panel's render target.
func (c *Controller) List() ListTarget { return c.list }

// Detail returns the detail panel's render target.
func (c *Controller) Detail() DetailTarget { return c.detail }

// ComposeForm returns the compose panel's render target.
func (c *Controller) ComposeForm() ComposeTarget { return c.compose }

// Counts returns the counts display.
func (c *Controller) Counts() CountsTarget { return c.counts }

// Notice returns the latest notice.
func (c *Controller) Notice() Notice { return c.notice }

// Views returns the panel registry.
func (c *Controller) Views() *ViewSwitcher { return c.views }

// Bindings returns the control binding registry.
func (c *Controller) Bindings() *Bindings { return c.bindings }

// Poller returns the counts poller.
func (c *Controller) Poller() *Poller { return c.poller }
