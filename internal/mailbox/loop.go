// Package mailbox coordinates the mailbox client's view state: which panel is
// visible, how network calls settle back into the UI, the background counts
// refresh, and the per-render control bindings of the detail panel.
//
// Everything in this package that touches controller state runs on a single
// goroutine, the Loop. Network work runs elsewhere and posts its continuation
// back onto the Loop, so no locking is needed around targets or bindings.
package mailbox

// Loop serializes continuations onto the UI goroutine.
type Loop interface {
	Post(fn func())
}

// LoopFunc adapts a function to the Loop interface.
type LoopFunc func(fn func())

// Post implements Loop.
func (f LoopFunc) Post(fn func()) { f(fn) }
