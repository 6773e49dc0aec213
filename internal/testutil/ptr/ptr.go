// Package ptr provides generic pointer helpers for tests.
package ptr

// Bool returns a pointer to the given bool value.
func Bool(v bool) *bool { return &v }
