// Package testutil provides test helpers for mailpane tests.
//
// The package is organized into focused files:
//   - assert.go: assertion helpers (MustNoErr, AssertStrings, etc.)
//   - store_helpers.go: database test setup (NewTestStore, MustSend)
package testutil
