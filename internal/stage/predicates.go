package stage

import "showrunner/internal/api"

// activeStatuses are the statuses that indicate the server may still change a
// stage without further client action. A merely queued stage counts: the
// worker can pick it up at any moment.
var activeStatuses = map[api.JobStatus]struct{}{
	api.StatusQueued:     {},
	api.StatusProcessing: {},
}

// NeedsPolling reports whether the job snapshot can still change server-side
// and therefore warrants a polling loop. It must be recomputed on every new
// snapshot; callers never cache the result.
func NeedsPolling(job api.Job) bool {
	if job.Status == api.StatusProcessing || job.Status == api.StatusRerendering {
		return true
	}
	for _, status := range []api.JobStatus{job.ScriptStatus, job.AudioStatus, job.VideoStatus} {
		if _, ok := activeStatuses[status]; ok {
			return true
		}
	}
	return false
}

// CanRequestAudio reports whether the audio trigger is currently valid: the
// script must be finished and audio must not already be in flight. A queued
// audio stage does not block the trigger, matching server behavior.
func CanRequestAudio(job api.Job) bool {
	return job.ScriptStatus == api.StatusCompleted && job.AudioStatus != api.StatusProcessing
}

// CanRequestVideo reports whether the video trigger is currently valid. The
// video feature can be disabled deployment-wide, in which case the trigger is
// never offered regardless of stage state.
func CanRequestVideo(job api.Job, videoEnabled bool) bool {
	if !videoEnabled {
		return false
	}
	return job.AudioStatus == api.StatusCompleted && job.VideoStatus != api.StatusProcessing
}

// CanEdit reports whether the editable script artifacts are available for the
// edit-and-rerender flow.
func CanEdit(job api.Job) bool {
	return job.ScriptStatus == api.StatusCompleted
}
