// Package session wires the job store, stage predicates, poller, and
// artifact resolver into the client-side synchronization engine behind the
// dashboard. It owns the 5-second poll loop for the selected job, serializes
// user actions behind per-action in-flight flags, and publishes state-change
// and message events for rendering code to consume.
//
// The polling decision is level-triggered: after every applied snapshot the
// session recomputes whether the loop should run from the snapshot itself,
// instead of reacting to individual status transitions. That closes the race
// where a stage flips from terminal back to active between two evaluations.
package session
