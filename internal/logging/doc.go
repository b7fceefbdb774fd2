// Package logging assembles the structured slog loggers used across
// showrunner. It owns the console and JSON handlers, level parsing, a no-op
// logger for tests, and small attr helpers so components emit uniformly
// shaped log lines. Prefer these constructors over hand-rolled slog setup.
package logging
