// Package artifacts resolves completed-stage references into locally usable
// resources. Text artifacts pass straight through; binary artifacts (audio,
// video) are spooled to disk behind single-owner revocable handles keyed by
// (job id, artifact type). Handles are revoked before replacement, when the
// owning stage regresses from completed, on job deselection, and on close.
package artifacts
