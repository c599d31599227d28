// Package client calls VirtualInstruments on a remote VI host.
//
// Ownership boundary:
// - one TCP connection per Client, one outstanding call at a time
// - request/response exchange over length-prefixed value documents
// - call middleware (logging, metrics, rate limiting)
// - remote fault reporting and resolution through describe_error
//
// A Client never retries. Any transport failure closes the connection and
// every later call reports frame.ErrConnectionClosed.
package client
