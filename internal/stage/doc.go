// Package stage holds the pure decision logic over job snapshots: whether a
// job still needs polling and which user actions are valid for its current
// stage statuses. Functions here are side-effect free and operate on a single
// snapshot so callers can re-evaluate them on every state change.
package stage
