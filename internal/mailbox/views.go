package mailbox

import (
	"errors"
	"fmt"
)

// PanelID names one of the mutually exclusive top-level panels.
type PanelID int

const (
	PanelList PanelID = iota
	PanelDetail
	PanelCompose
)

// String returns the panel's display name.
func (id PanelID) String() string {
	switch id {
	case PanelList:
		return "list"
	case PanelDetail:
		return "detail"
	case PanelCompose:
		return "compose"
	default:
		return fmt.Sprintf("panel(%d)", int(id))
	}
}

// ErrUnknownPanel is returned for panels that were not registered at startup.
var ErrUnknownPanel = errors.New("unknown panel")

// Change describes what happened to a panel during a switch.
type Change int

const (
	// Hidden means the panel was visible and no longer is.
	Hidden Change = iota
	// Shown means the panel became visible.
	Shown
	// Reshown means Show was called for the panel that was already visible.
	// Whatever it rendered before is superseded.
	Reshown
)

// Transition is delivered to observers after a switch has been committed.
type Transition struct {
	Panel  PanelID
	Change Change
}

// Panel is a registered panel and its visibility.
type Panel struct {
	id      PanelID
	visible bool
}

// ID returns the panel identifier.
func (p *Panel) ID() PanelID { return p.id }

// Visible reports whether the panel is currently shown.
func (p *Panel) Visible() bool { return p.visible }

// ViewSwitcher owns a fixed set of panels and keeps at most one visible.
type ViewSwitcher struct {
	panels    []*Panel
	observers []func(Transition)
}

// NewViewSwitcher registers the given panels, all hidden.
func NewViewSwitcher(ids ...PanelID) *ViewSwitcher {
	v := &ViewSwitcher{}
	for _, id := range ids {
		if v.panel(id) != nil {
			continue
		}
		v.panels = append(v.panels, &Panel{id: id})
	}
	return v
}

// Observe registers fn to receive every transition. Observers run in
// registration order on the caller's goroutine.
func (v *ViewSwitcher) Observe(fn func(Transition)) {
	v.observers = append(v.observers, fn)
}

// Show makes id the only visible panel. Visibility of every panel is updated
// before any observer runs, so observers never see zero or two visible panels.
func (v *ViewSwitcher) Show(id PanelID) error {
	target := v.panel(id)
	if target == nil {
		return fmt.Errorf("show %s: %w", id, ErrUnknownPanel)
	}

	var transitions []Transition
	for _, p := range v.panels {
		if p != target && p.visible {
			p.visible = false
			transitions = append(transitions, Transition{Panel: p.id, Change: Hidden})
		}
	}
	change := Shown
	if target.visible {
		change = Reshown
	}
	target.visible = true
	transitions = append(transitions, Transition{Panel: id, Change: change})

	v.notify(transitions)
	return nil
}

// Hide makes id invisible without showing anything else. Callers follow it
// with a Show of another panel.
func (v *ViewSwitcher) Hide(id PanelID) {
	p := v.panel(id)
	if p == nil || !p.visible {
		return
	}
	p.visible = false
	v.notify([]Transition{{Panel: id, Change: Hidden}})
}

// Visible returns the visible panel, if any.
func (v *ViewSwitcher) Visible() (PanelID, bool) {
	for _, p := range v.panels {
		if p.visible {
			return p.id, true
		}
	}
	return 0, false
}

// IsVisible reports whether id is the visible panel.
func (v *ViewSwitcher) IsVisible(id PanelID) bool {
	p := v.panel(id)
	return p != nil && p.visible
}

// Panels returns the registered panels in registration order.
func (v *ViewSwitcher) Panels() []*Panel {
	out := make([]*Panel, len(v.panels))
	copy(out, v.panels)
	return out
}

func (v *ViewSwitcher) panel(id PanelID) *Panel {
	for _, p := range v.panels {
		if p.id == id {
			return p
		}
	}
	return nil
}

func (v *ViewSwitcher) notify(transitions []Transition) {
	for _, t := range transitions {
		for _, fn := range v.observers {
			fn(t)
		}
	}
}
