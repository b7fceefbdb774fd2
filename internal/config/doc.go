// Package config loads showrunner configuration from a TOML file with
// SHOWRUNNER_* environment overrides layered on top. The resulting Config is
// handed to components at construction time; nothing reads settings
// ambiently, which keeps tests free to inject fixtures.
package config
