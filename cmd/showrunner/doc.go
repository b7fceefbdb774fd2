// Package main hosts the Showrunner CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into pipeline
// API calls: job creation, stage triggers, artifact downloads, configuration
// scaffolding, and the interactive watch dashboard. It centralizes
// configuration resolution and client construction so subcommands can focus
// on user experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
