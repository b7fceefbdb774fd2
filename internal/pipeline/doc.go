// Package pipeline implements the HTTP client for the remote generation
// pipeline API. It owns request construction, bearer-token auth, response
// decoding, and the error taxonomy (transport, validation, not-found,
// unauthorized) the rest of the client keys retry and messaging behavior off.
//
// Transport-level retry and backoff are deliberately absent: failures surface
// to the caller, which retries via the next poll tick or an explicit user
// action.
package pipeline
