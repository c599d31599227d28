// Package session owns transport timing shared by the client and the host
// manager.
//
// Ownership boundary:
// - connect/read/write timeouts for one VI host connection
// - retry backoff used while waiting for a host to start listening
package session
