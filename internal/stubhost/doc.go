// Package stubhost is a stand-in VI host for tests and local development.
//
// Ownership boundary:
// - accept loop speaking the framed value protocol, one request at a time
//   per connection
// - handler table keyed by command, with optional per-VI run handlers
// - built-in echo, describe_error and front-panel store handlers
// - admin HTTP surface (health, readiness, handler listing, metrics)
package stubhost
