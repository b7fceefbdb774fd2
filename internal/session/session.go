package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"showrunner/internal/api"
	"showrunner/internal/artifacts"
	"showrunner/internal/jobstore"
	"showrunner/internal/logging"
	"showrunner/internal/stage"
)

// Client is the slice of the pipeline API the session drives.
type Client interface {
	CreateJob(ctx context.Context, req api.CreateJobRequest) (*api.Job, error)
	ListJobs(ctx context.Context, limit int) ([]api.Job, error)
	GetJob(ctx context.Context, jobID string) (*api.Job, error)
	UpdateJob(ctx context.Context, jobID string, req api.UpdateJobRequest) (*api.Job, error)
	Rerender(ctx context.Context, jobID string) error
	RequestAudio(ctx context.Context, jobID, voice string) (*api.Job, error)
	RequestVideo(ctx context.Context, jobID string) (*api.Job, error)
}

// ArtifactManager is the slice of the artifact resolver the session drives.
type ArtifactManager interface {
	ResolveBinary(ctx context.Context, jobID string, artifact api.ArtifactType) (*artifacts.Handle, error)
	ResolveText(ctx context.Context, jobID string, artifact api.ArtifactType) (string, error)
	Handle(jobID string, artifact api.ArtifactType) (*artifacts.Handle, bool)
	Sync(job api.Job) []api.ArtifactType
	RevokeJob(jobID string)
	Close() error
}

// Notifier pushes job lifecycle events out of band. Mirrors
// notifications.Service; nil disables pushes.
type Notifier interface {
	NotifyStageCompleted(ctx context.Context, topic string, stage api.ArtifactType) error
	NotifyJobCompleted(ctx context.Context, topic string) error
	NotifyJobFailed(ctx context.Context, topic, detail string) error
}

// Options configures a Session. Everything is injected; the session reads no
// global state.
type Options struct {
	Client       Client
	Store        *jobstore.Store
	Artifacts    ArtifactManager
	Notifier     Notifier
	Logger       *slog.Logger
	PollInterval time.Duration
	PollDisabled bool
	VideoEnabled bool
	ListLimit    int
	// AutoResolve downloads audio/video previews as soon as their stage
	// completes. The interactive dashboard enables it; one-shot commands
	// leave it off.
	AutoResolve bool
}

// Session coordinates the job store, the poller, the artifact resolver, and
// user-triggered actions against the pipeline. One session exists per
// dashboard run.
type Session struct {
	client       Client
	store        *jobstore.Store
	artifacts    ArtifactManager
	notifier     Notifier
	logger       *slog.Logger
	pollInterval time.Duration
	pollDisabled bool
	videoEnabled bool
	listLimit    int
	autoResolve  bool

	events chan Event

	mu         sync.Mutex
	inflight   map[Action]bool
	resolving  map[resolveKey]bool
	pollCancel context.CancelFunc
	closed     bool

	wg sync.WaitGroup
}

type resolveKey struct {
	jobID    string
	artifact api.ArtifactType
}

// New creates a session. Client and Store are required; a nil artifact
// manager disables artifact handling.
func New(opts Options) (*Session, error) {
	if opts.Client == nil {
		return nil, errors.New("session requires a pipeline client")
	}
	if opts.Store == nil {
		return nil, errors.New("session requires a job store")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	limit := opts.ListLimit
	if limit <= 0 {
		limit = 20
	}
	return &Session{
		client:       opts.Client,
		store:        opts.Store,
		artifacts:    opts.Artifacts,
		notifier:     opts.Notifier,
		logger:       logging.WithComponent(logger, "session"),
		pollInterval: interval,
		pollDisabled: opts.PollDisabled,
		videoEnabled: opts.VideoEnabled,
		listLimit:    limit,
		autoResolve:  opts.AutoResolve,
		events:       make(chan Event, 64),
		inflight:     make(map[Action]bool),
		resolving:    make(map[resolveKey]bool),
	}, nil
}

// Events returns the session's event stream. The channel is closed by Close.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Store exposes the job store for read access by rendering code.
func (s *Session) Store() *jobstore.Store {
	return s.store
}

// Artifacts exposes the artifact manager for read access by rendering code.
// Nil when the session was built without one.
func (s *Session) Artifacts() ArtifactManager {
	return s.artifacts
}

// VideoEnabled reports whether the deployment's video feature is on.
func (s *Session) VideoEnabled() bool {
	return s.videoEnabled
}

// Select switches the dashboard to the given job: handles for the previous
// selection are revoked, every in-flight fetch is invalidated by the epoch
// bump, and a fresh detail fetch is issued immediately.
func (s *Session) Select(ctx context.Context, jobID string) {
	previous := s.store.SelectedID()
	if previous != "" && previous != jobID && s.artifacts != nil {
		s.artifacts.RevokeJob(previous)
	}
	epoch := s.store.Select(jobID)
	s.emitState()
	s.fetchDetail(ctx, jobID, epoch)
	s.reconcilePolling()
}

// fetchDetail fetches one detail snapshot under the given epoch and applies
// it. A failed fetch keeps prior state and surfaces a transient message.
func (s *Session) fetchDetail(ctx context.Context, jobID string, epoch uint64) {
	job, err := s.client.GetJob(ctx, jobID)
	if err != nil {
		s.logger.Warn("detail fetch failed",
			logging.String("job_id", jobID), logging.Error(err))
		s.emitError("Could not load job details; showing last known state")
		return
	}
	s.applySnapshot(epoch, *job)
}

// applySnapshot pushes a detail snapshot into the store, reconciles artifact
// handles against the new stage statuses, and re-evaluates the polling
// decision. Snapshots from a superseded selection are discarded by the store.
func (s *Session) applySnapshot(epoch uint64, job api.Job) {
	previous, hadPrevious := s.store.Selected()
	if !s.store.ApplyDetail(epoch, job) {
		s.logger.Debug("discarded stale snapshot", logging.String("job_id", job.ID))
		return
	}
	if s.artifacts != nil {
		if revoked := s.artifacts.Sync(job); len(revoked) > 0 {
			for _, artifact := range revoked {
				s.logger.Info("revoked stale artifact handle",
					logging.String("job_id", job.ID), logging.String("artifact", string(artifact)))
			}
		}
		if s.autoResolve && hadPrevious && previous.ID == job.ID {
			s.resolveCompletions(previous, job)
		}
	}
	if s.notifier != nil && hadPrevious && previous.ID == job.ID {
		s.notifyTransitions(previous, job)
	}
	s.emitState()
	s.reconcilePolling()
}

// notifyTransitions pushes out-of-band notifications for snapshot-to-snapshot
// transitions. Pushes are fire-and-forget; a failed delivery only logs.
func (s *Session) notifyTransitions(previous, current api.Job) {
	type push func(ctx context.Context) error
	var pushes []push

	if current.AudioStatus == api.StatusCompleted && previous.AudioStatus != api.StatusCompleted {
		pushes = append(pushes, func(ctx context.Context) error {
			return s.notifier.NotifyStageCompleted(ctx, current.Topic, api.ArtifactAudio)
		})
	}
	if current.VideoStatus == api.StatusCompleted && previous.VideoStatus != api.StatusCompleted {
		pushes = append(pushes, func(ctx context.Context) error {
			return s.notifier.NotifyStageCompleted(ctx, current.Topic, api.ArtifactVideo)
		})
	}
	if current.Status == api.StatusCompleted && previous.Status != api.StatusCompleted {
		pushes = append(pushes, func(ctx context.Context) error {
			return s.notifier.NotifyJobCompleted(ctx, current.Topic)
		})
	}
	if current.Status == api.StatusFailed && previous.Status != api.StatusFailed {
		pushes = append(pushes, func(ctx context.Context) error {
			return s.notifier.NotifyJobFailed(ctx, current.Topic, "")
		})
	}
	if len(pushes) == 0 {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		for _, send := range pushes {
			if err := send(ctx); err != nil {
				s.logger.Warn("notification delivery failed",
					logging.String("job_id", current.ID), logging.Error(err))
			}
		}
	}()
}

// resolveCompletions reacts to stage transitions into completed by resolving
// fresh preview handles in the background.
func (s *Session) resolveCompletions(previous, current api.Job) {
	type transition struct {
		artifact api.ArtifactType
		before   api.JobStatus
		after    api.JobStatus
	}
	candidates := []transition{
		{api.ArtifactAudio, previous.AudioStatus, current.AudioStatus},
		{api.ArtifactVideo, previous.VideoStatus, current.VideoStatus},
	}
	for _, tr := range candidates {
		if tr.after != api.StatusCompleted || tr.before == api.StatusCompleted {
			continue
		}
		if tr.artifact == api.ArtifactVideo && !s.videoEnabled {
			continue
		}
		s.resolveHandle(current.ID, tr.artifact)
	}
}

func (s *Session) resolveHandle(jobID string, artifact api.ArtifactType) {
	key := resolveKey{jobID: jobID, artifact: artifact}
	s.mu.Lock()
	if s.closed || s.resolving[key] {
		s.mu.Unlock()
		return
	}
	s.resolving[key] = true
	s.mu.Unlock()

	// The epoch at launch ties the resolve to the current selection, the same
	// way detail fetches are tied; a selection change invalidates the result.
	epoch := s.store.Epoch()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.resolving, key)
			s.mu.Unlock()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		if _, err := s.artifacts.ResolveBinary(ctx, jobID, artifact); err != nil {
			// Not a failure banner: the artifact simply reads as unavailable
			// until a later resolve succeeds.
			s.logger.Warn("artifact resolve failed",
				logging.String("job_id", jobID),
				logging.String("artifact", string(artifact)),
				logging.Error(err))
			s.emitInfo(string(artifact) + " preview not available yet")
			return
		}
		if s.store.Epoch() != epoch || s.store.SelectedID() != jobID {
			// The selection moved while the download ran; the handle belongs
			// to a deselected job and must not outlive it.
			s.artifacts.RevokeJob(jobID)
			s.logger.Debug("discarded late artifact resolve",
				logging.String("job_id", jobID),
				logging.String("artifact", string(artifact)))
			return
		}
		s.emitInfo(string(artifact) + " preview ready")
		s.emitState()
	}()
}

// reconcilePolling recomputes the poll-loop decision from current state. It
// is level-triggered: called after every snapshot application rather than on
// individual transitions, so a stage flipping active between two evaluations
// cannot leave the loop stuck off.
func (s *Session) reconcilePolling() {
	selected, ok := s.store.Selected()
	desired := ok && !s.pollDisabled && stage.NeedsPolling(selected)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	running := s.pollCancel != nil
	switch {
	case desired && !running:
		ctx, cancel := context.WithCancel(context.Background())
		s.pollCancel = cancel
		s.wg.Add(1)
		go s.pollLoop(ctx)
		s.logger.Debug("poll loop started", logging.String("job_id", selected.ID))
	case !desired && running:
		s.pollCancel()
		s.pollCancel = nil
		s.logger.Debug("poll loop stopped")
	}
}

func (s *Session) pollLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pollTick(ctx)
		}
	}
}

// pollTick fetches the selected job's detail and refreshes the list so
// sibling summaries stay current. Failures log and continue; only stage
// stabilization or selection change stops the loop.
func (s *Session) pollTick(ctx context.Context) {
	jobID := s.store.SelectedID()
	if jobID == "" {
		return
	}
	epoch := s.store.Epoch()
	job, err := s.client.GetJob(ctx, jobID)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("poll tick failed", logging.String("job_id", jobID), logging.Error(err))
		return
	}
	s.applySnapshot(epoch, *job)

	items, err := s.client.ListJobs(ctx, s.listLimit)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("list refresh failed", logging.Error(err))
		return
	}
	s.store.ReplaceList(items)
	s.emitState()
}

// Close tears the session down: the poll loop is cancelled, background
// resolves are drained, artifact handles are revoked, and the event stream is
// closed.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.pollCancel != nil {
		s.pollCancel()
		s.pollCancel = nil
	}
	s.mu.Unlock()

	s.wg.Wait()
	var err error
	if s.artifacts != nil {
		err = s.artifacts.Close()
	}
	close(s.events)
	return err
}
