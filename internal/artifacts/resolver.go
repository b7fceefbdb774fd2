package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"showrunner/internal/api"
	"showrunner/internal/logging"
)

// ErrClosed is returned for operations on a closed resolver.
var ErrClosed = errors.New("artifact resolver closed")

// Fetcher is the slice of the pipeline client the resolver needs.
type Fetcher interface {
	FetchTextArtifact(ctx context.Context, jobID string, artifact api.ArtifactType) (string, error)
	FetchBinaryArtifact(ctx context.Context, jobID string, artifact api.ArtifactType, w io.Writer) (int64, error)
}

// Handle is a locally resolved, revocable reference to a binary artifact,
// bound to exactly one (job id, artifact type) pair. The resolver is its sole
// owner; everyone else treats it as read-only.
type Handle struct {
	JobID      string
	Type       api.ArtifactType
	Path       string
	Size       int64
	ResolvedAt time.Time
}

type handleKey struct {
	jobID    string
	artifact api.ArtifactType
}

// Resolver downloads binary artifacts into a private spool directory and
// manages handle lifecycle: one live handle per (job, type), revoked before
// replacement and whenever the owning stage regresses from completed.
type Resolver struct {
	mu      sync.Mutex
	fetcher Fetcher
	spool   string
	lock    *flock.Flock
	logger  *slog.Logger
	handles map[handleKey]*Handle
	closed  bool
}

// NewResolver creates a resolver spooling into dir. The directory is guarded
// with a file lock so a second showrunner process cannot clobber live
// handles.
func NewResolver(fetcher Fetcher, dir string, logger *slog.Logger) (*Resolver, error) {
	if fetcher == nil {
		return nil, errors.New("artifact resolver requires a fetcher")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create spool directory: %w", err)
	}
	lock := flock.New(filepath.Join(dir, ".spool.lock"))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire spool lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("spool directory %s is in use by another showrunner instance", dir)
	}
	return &Resolver{
		fetcher: fetcher,
		spool:   dir,
		lock:    lock,
		logger:  logger,
		handles: make(map[handleKey]*Handle),
	}, nil
}

// ResolveText fetches a text artifact and returns the decoded payload
// directly. Text artifacts carry no handle lifecycle.
func (r *Resolver) ResolveText(ctx context.Context, jobID string, artifact api.ArtifactType) (string, error) {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return "", ErrClosed
	}
	return r.fetcher.FetchTextArtifact(ctx, jobID, artifact)
}

// ResolveBinary downloads a binary artifact and returns its handle. Any
// previous handle for the same (job, type) pair is revoked first. A failed
// download leaves no handle behind: the partially written spool file is
// removed and the pair reads as absent.
func (r *Resolver) ResolveBinary(ctx context.Context, jobID string, artifact api.ArtifactType) (*Handle, error) {
	if !artifact.Binary() {
		return nil, fmt.Errorf("artifact %s is not binary", artifact)
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	key := handleKey{jobID: jobID, artifact: artifact}
	r.revokeLocked(key)
	r.mu.Unlock()

	path := filepath.Join(r.spool, uuid.NewString()+artifact.Extension())
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create spool file: %w", err)
	}

	size, err := r.fetcher.FetchBinaryArtifact(ctx, jobID, artifact, file)
	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		if removeErr := os.Remove(path); removeErr != nil {
			r.logger.Warn("failed to remove partial artifact",
				logging.String("path", path), logging.Error(removeErr))
		}
		return nil, err
	}

	handle := &Handle{
		JobID:      jobID,
		Type:       artifact,
		Path:       path,
		Size:       size,
		ResolvedAt: time.Now(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		_ = os.Remove(path)
		return nil, ErrClosed
	}
	// A concurrent resolve for the same pair may have installed a handle
	// while the download ran; the newest one wins and the loser is released.
	r.revokeLocked(key)
	r.handles[key] = handle
	return handle, nil
}

// Handle returns the live handle for the pair, if any.
func (r *Resolver) Handle(jobID string, artifact api.ArtifactType) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	handle, ok := r.handles[handleKey{jobID: jobID, artifact: artifact}]
	return handle, ok
}

// Revoke releases the handle for the pair. It reports whether a handle was
// actually live, so callers can verify exactly-once release.
func (r *Resolver) Revoke(jobID string, artifact api.ArtifactType) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.revokeLocked(handleKey{jobID: jobID, artifact: artifact})
}

// RevokeJob releases every handle owned by the job, e.g. on deselection.
func (r *Resolver) RevokeJob(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.handles {
		if key.jobID == jobID {
			r.revokeLocked(key)
		}
	}
}

// Sync reconciles handles with a fresh job snapshot: a handle whose stage
// status has moved away from completed (a rerender reset, a failure) is
// revoked so stale previews cannot outlive their artifact. It returns the
// artifact types revoked.
func (r *Resolver) Sync(job api.Job) []api.ArtifactType {
	r.mu.Lock()
	defer r.mu.Unlock()

	var revoked []api.ArtifactType
	for _, artifact := range []api.ArtifactType{api.ArtifactAudio, api.ArtifactVideo} {
		key := handleKey{jobID: job.ID, artifact: artifact}
		if _, ok := r.handles[key]; !ok {
			continue
		}
		if api.StageStatus(job, artifact) != api.StatusCompleted {
			r.revokeLocked(key)
			revoked = append(revoked, artifact)
		}
	}
	return revoked
}

// Close revokes all handles and releases the spool lock.
func (r *Resolver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	for key := range r.handles {
		r.revokeLocked(key)
	}
	if err := r.lock.Unlock(); err != nil {
		return fmt.Errorf("release spool lock: %w", err)
	}
	return nil
}

func (r *Resolver) revokeLocked(key handleKey) bool {
	handle, ok := r.handles[key]
	if !ok {
		return false
	}
	delete(r.handles, key)
	if err := os.Remove(handle.Path); err != nil && !os.IsNotExist(err) {
		r.logger.Warn("failed to remove revoked artifact",
			logging.String("path", handle.Path), logging.Error(err))
	}
	r.logger.Debug("artifact handle revoked",
		logging.String("job_id", key.jobID), logging.String("artifact", string(key.artifact)))
	return true
}
