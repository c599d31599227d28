// Package tools provides process helpers for the host manager.
//
// Ownership boundary:
// - launching and reaping the VI host executable
// - exit-code mapping for finished commands
package tools
