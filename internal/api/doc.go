// Package api defines the wire-format types shared with the remote generation
// pipeline: job resources with per-stage statuses, creation and edit payloads,
// and artifact type classification. All other packages couple to these DTOs
// rather than to raw JSON.
package api
