package session

import (
	"context"
	"errors"
	"fmt"

	"showrunner/internal/api"
	"showrunner/internal/logging"
	"showrunner/internal/stage"
)

// Action identifies one user-triggered mutation. Each action owns an
// exclusive in-flight flag; while set, the corresponding control is disabled.
type Action string

const (
	ActionCreate   Action = "create"
	ActionSave     Action = "save"
	ActionRerender Action = "rerender"
	ActionAudio    Action = "audio"
	ActionVideo    Action = "video"
	ActionRefresh  Action = "refresh"
)

// ErrActionInFlight is returned when an action is re-triggered while its
// previous invocation has not finished.
var ErrActionInFlight = errors.New("action already in flight")

// InFlight reports whether the action is currently executing.
func (s *Session) InFlight(action Action) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight[action]
}

func (s *Session) begin(action Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("session closed")
	}
	if s.inflight[action] {
		return fmt.Errorf("%w: %s", ErrActionInFlight, action)
	}
	s.inflight[action] = true
	return nil
}

func (s *Session) end(action Action) {
	s.mu.Lock()
	delete(s.inflight, action)
	s.mu.Unlock()
}

// CreateJob submits a new generation job. On success the creation response
// seeds the detail snapshot directly (no redundant fetch), the job lands at
// the head of the list, and it becomes the selection.
func (s *Session) CreateJob(ctx context.Context, req api.CreateJobRequest) error {
	if err := s.begin(ActionCreate); err != nil {
		return err
	}
	defer s.end(ActionCreate)

	job, err := s.client.CreateJob(ctx, req)
	if err != nil {
		s.logger.Warn("create job failed", logging.Error(err))
		s.emitError("Could not create job: " + userMessage(err))
		return err
	}
	// Seeding the new job deselects the previous one, so its handles go the
	// same way they do in Select.
	if previous := s.store.SelectedID(); previous != "" && previous != job.ID && s.artifacts != nil {
		s.artifacts.RevokeJob(previous)
	}
	s.store.SeedSelection(*job)
	s.emitInfo(fmt.Sprintf("Job created: %s", job.Topic))
	s.emitState()
	s.reconcilePolling()
	return nil
}

// Edits carries the editable artifact fields for SaveEditsAndRerender.
type Edits struct {
	Script       *string
	Transcript   *string
	ImagePrompts []byte
}

// SaveEditsAndRerender persists edits and then triggers a rerender. Both
// phases must succeed for the flow to be considered complete; a persisted
// edit with a failed rerender trigger is reported distinctly so the user
// knows their edits are saved but rendering has not started. Either way the
// detail snapshot is re-fetched to reconcile.
func (s *Session) SaveEditsAndRerender(ctx context.Context, jobID string, edits Edits) error {
	if err := s.begin(ActionSave); err != nil {
		return err
	}
	defer s.end(ActionSave)

	patch := api.UpdateJobRequest{
		Script:       edits.Script,
		Transcript:   edits.Transcript,
		ImagePrompts: edits.ImagePrompts,
	}
	_, err := s.client.UpdateJob(ctx, jobID, patch)
	if err != nil {
		s.logger.Warn("save edits failed", logging.String("job_id", jobID), logging.Error(err))
		s.emitError("Failed to save edits: " + userMessage(err))
		return err
	}

	if err := s.client.Rerender(ctx, jobID); err != nil {
		s.logger.Warn("rerender trigger failed", logging.String("job_id", jobID), logging.Error(err))
		s.emitError("Edits were saved, but the rerender did not start: " + userMessage(err))
		s.refreshDetail(ctx, jobID)
		return fmt.Errorf("rerender after save: %w", err)
	}

	s.emitInfo("Edits saved and rerender started")
	s.refreshDetail(ctx, jobID)
	return nil
}

// Rerender triggers script regeneration without touching the editable
// fields. The server resets audio and video to not_requested; the follow-up
// detail fetch picks up the reset and the resolver revokes stale handles.
func (s *Session) Rerender(ctx context.Context, jobID string) error {
	if err := s.begin(ActionRerender); err != nil {
		return err
	}
	defer s.end(ActionRerender)

	if err := s.client.Rerender(ctx, jobID); err != nil {
		s.logger.Warn("rerender trigger failed", logging.String("job_id", jobID), logging.Error(err))
		s.emitError("Could not start the rerender: " + userMessage(err))
		return err
	}
	s.emitInfo("Rerender started")
	s.refreshDetail(ctx, jobID)
	return nil
}

// RequestAudio triggers the TTS stage for the job. The stage predicate is
// checked against the freshest snapshot to stop premature or duplicate
// triggers before they reach the network.
func (s *Session) RequestAudio(ctx context.Context, jobID, voice string) error {
	if err := s.begin(ActionAudio); err != nil {
		return err
	}
	defer s.end(ActionAudio)

	if snapshot, ok := s.snapshotFor(jobID); ok && !stage.CanRequestAudio(snapshot) {
		s.emitError("Audio cannot be requested until the script is ready")
		return errors.New("audio request blocked by stage state")
	}

	if _, err := s.client.RequestAudio(ctx, jobID, voice); err != nil {
		s.logger.Warn("audio request failed", logging.String("job_id", jobID), logging.Error(err))
		s.emitError("Could not request audio: " + userMessage(err))
		return err
	}
	s.emitInfo("Audio generation requested")
	s.refreshDetail(ctx, jobID)
	return nil
}

// RequestVideo triggers the render stage for the job.
func (s *Session) RequestVideo(ctx context.Context, jobID string) error {
	if err := s.begin(ActionVideo); err != nil {
		return err
	}
	defer s.end(ActionVideo)

	if !s.videoEnabled {
		s.emitError("Video rendering is disabled for this deployment")
		return errors.New("video feature disabled")
	}
	if snapshot, ok := s.snapshotFor(jobID); ok && !stage.CanRequestVideo(snapshot, s.videoEnabled) {
		s.emitError("Video cannot be requested until the audio is ready")
		return errors.New("video request blocked by stage state")
	}

	if _, err := s.client.RequestVideo(ctx, jobID); err != nil {
		s.logger.Warn("video request failed", logging.String("job_id", jobID), logging.Error(err))
		s.emitError("Could not request video: " + userMessage(err))
		return err
	}
	s.emitInfo("Video rendering requested")
	s.refreshDetail(ctx, jobID)
	return nil
}

// Refresh re-fetches the job's detail on demand, independent of the poll
// loop. Safe to call at any time; an unchanged server state applies the same
// snapshot again.
func (s *Session) Refresh(ctx context.Context, jobID string) error {
	if err := s.begin(ActionRefresh); err != nil {
		return err
	}
	defer s.end(ActionRefresh)
	s.refreshDetail(ctx, jobID)
	return nil
}

// RefreshList re-fetches the job list. When nothing is selected yet, the
// store auto-selects the first (most recent) job and its detail is fetched.
func (s *Session) RefreshList(ctx context.Context) error {
	items, err := s.client.ListJobs(ctx, s.listLimit)
	if err != nil {
		s.logger.Warn("list fetch failed", logging.Error(err))
		s.emitError("Could not load jobs: " + userMessage(err))
		return err
	}
	autoSelected, epoch := s.store.ReplaceList(items)
	s.emitState()
	if autoSelected != "" {
		s.fetchDetail(ctx, autoSelected, epoch)
	}
	s.reconcilePolling()
	return nil
}

// refreshDetail forces a detail fetch for jobID when it is the current
// selection, capturing the epoch so a selection change in between discards
// the result.
func (s *Session) refreshDetail(ctx context.Context, jobID string) {
	if s.store.SelectedID() != jobID {
		return
	}
	s.fetchDetail(ctx, jobID, s.store.Epoch())
}

func (s *Session) snapshotFor(jobID string) (api.Job, bool) {
	if selected, ok := s.store.Selected(); ok && selected.ID == jobID {
		return selected, true
	}
	for _, job := range s.store.Jobs() {
		if job.ID == jobID {
			return job, true
		}
	}
	return api.Job{}, false
}

// userMessage trims wrapped error chains down to something fit for a status
// line.
func userMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > 140 {
		msg = msg[:137] + "..."
	}
	return msg
}
