// Package testsupport provides shared helpers for tests: configuration
// builders and a fake pipeline server with the real API's guard behavior.
package testsupport
