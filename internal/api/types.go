package api

import (
	"encoding/json"
	"time"
)

// JobStatus represents the lifecycle of a generation job or one of its stages.
type JobStatus string

const (
	StatusQueued       JobStatus = "queued"
	StatusProcessing   JobStatus = "processing"
	StatusCompleted    JobStatus = "completed"
	StatusFailed       JobStatus = "failed"
	StatusRerendering  JobStatus = "rerendering"
	StatusNotRequested JobStatus = "not_requested"
)

var allStatuses = []JobStatus{
	StatusQueued,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
	StatusRerendering,
	StatusNotRequested,
}

var statusSet = func() map[JobStatus]struct{} {
	set := make(map[JobStatus]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// Known reports whether the status is part of the pipeline vocabulary.
func (s JobStatus) Known() bool {
	_, ok := statusSet[s]
	return ok
}

// Terminal reports whether the status can no longer change without a new
// client-triggered action.
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusNotRequested:
		return true
	default:
		return false
	}
}

// AllStatuses returns the full status vocabulary in declaration order.
func AllStatuses() []JobStatus {
	out := make([]JobStatus, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// YouTubeContext carries optional research data attached to a job by the
// pipeline's topic-research step. Read-only on the client.
type YouTubeContext struct {
	Summary     string             `json:"summary,omitempty"`
	Transcripts []SourceTranscript `json:"transcripts,omitempty"`
}

// SourceTranscript is one research source the pipeline consulted.
type SourceTranscript struct {
	VideoID    string `json:"video_id,omitempty"`
	Title      string `json:"title,omitempty"`
	Transcript string `json:"transcript,omitempty"`
}

// Job mirrors the pipeline's job resource. Stage artifact fields (Script,
// Transcript, VideoURL, the audio artifact) are only meaningful while the
// corresponding stage status is StatusCompleted.
type Job struct {
	ID           string          `json:"id"`
	Topic        string          `json:"topic"`
	Style        string          `json:"style"`
	Length       int             `json:"length"`
	Status       JobStatus       `json:"status"`
	ScriptStatus JobStatus       `json:"script_status"`
	AudioStatus  JobStatus       `json:"audio_status"`
	VideoStatus  JobStatus       `json:"video_status"`
	Script       string          `json:"script,omitempty"`
	Transcript   string          `json:"transcript,omitempty"`
	ImagePrompts json.RawMessage `json:"image_prompts,omitempty"`

	ReviewScore    *float64 `json:"review_score,omitempty"`
	GenerationTime *float64 `json:"generation_time,omitempty"`

	VideoURL   string `json:"video_url,omitempty"`
	AudioPath  string `json:"audio_path,omitempty"`
	FramesPath string `json:"frames_path,omitempty"`

	YouTubeContext *YouTubeContext `json:"youtube_context,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// JobList wraps the job collection response.
type JobList struct {
	Items []Job `json:"items"`
}

// CreateJobRequest carries creation parameters for a new generation job.
type CreateJobRequest struct {
	Topic        string          `json:"topic"`
	Style        string          `json:"style"`
	Length       int             `json:"length"`
	ImagePrompts json.RawMessage `json:"image_prompts,omitempty"`
}

// UpdateJobRequest carries editable artifact fields for PATCH. Nil fields are
// omitted so the server only touches what the user changed.
type UpdateJobRequest struct {
	Script       *string         `json:"script,omitempty"`
	Transcript   *string         `json:"transcript,omitempty"`
	ImagePrompts json.RawMessage `json:"image_prompts,omitempty"`
}

// Empty reports whether the update carries no changes. The server rejects
// empty patches with a 400, so callers check this before submitting.
func (r UpdateJobRequest) Empty() bool {
	return r.Script == nil && r.Transcript == nil && len(r.ImagePrompts) == 0
}

// MessageResponse wraps trigger endpoints that reply with a plain message.
type MessageResponse struct {
	Message string `json:"message"`
}
