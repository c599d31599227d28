// Package host manages the lifecycle of one VI host listener.
//
// Ownership boundary:
// - launching the host executable with the listener VI and a preferences file
// - detecting readiness by probing the listener's TCP endpoint
// - adopting listeners that are already up, locally or on a remote machine
// - terminating processes this manager owns
// - process liveness and memory reporting
//
// Lifecycle: not_started -> starting -> listening -> killed, with
// killed -> starting for restarts and starting -> not_started when a start
// fails.
package host
