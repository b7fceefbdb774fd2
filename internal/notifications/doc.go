// Package notifications delivers push notifications for job lifecycle events
// via ntfy. Generation runs take minutes; a push on stage completion lets the
// user walk away from the dashboard.
package notifications
