package jobstore

import (
	"sync"

	"showrunner/internal/api"
)

// Store is the authoritative in-memory cache of the job list and the
// currently selected job's detail snapshot. All reads and writes other
// components perform go through it.
//
// Every selection change bumps an epoch. In-flight fetches capture the epoch
// at issue time and ApplyDetail discards results whose epoch no longer
// matches, so a response for a previously selected job can never overwrite
// the current selection's state.
type Store struct {
	mu       sync.RWMutex
	jobs     []api.Job
	selected *api.Job
	epoch    uint64
}

// New creates an empty store.
func New() *Store {
	return &Store{}
}

// ReplaceList atomically replaces the job list, preserving server order.
// Jobs absent from the new list are thereby evicted. The selection is left
// alone unless nothing is selected yet, in which case the first item becomes
// selected (auto-select most recent on first load) and its id plus the new
// epoch are returned so the caller can kick off a detail fetch.
func (s *Store) ReplaceList(items []api.Job) (autoSelected string, epoch uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs = make([]api.Job, len(items))
	copy(s.jobs, items)

	if s.selected == nil && len(s.jobs) > 0 {
		job := s.jobs[0]
		s.selected = &job
		s.epoch++
		return job.ID, s.epoch
	}
	return "", s.epoch
}

// Select changes the selection to the given id and invalidates every
// in-flight fetch by bumping the epoch. It seeds the detail snapshot from the
// list summary when available so the UI has something to show while the full
// detail fetch is in flight. Re-selecting the current id still bumps the
// epoch: the caller issues a fresh fetch either way.
func (s *Store) Select(id string) (epoch uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.epoch++
	if s.selected != nil && s.selected.ID == id {
		return s.epoch
	}
	s.selected = nil
	for _, job := range s.jobs {
		if job.ID == id {
			seed := job
			s.selected = &seed
			break
		}
	}
	if s.selected == nil {
		seed := api.Job{ID: id}
		s.selected = &seed
	}
	return s.epoch
}

// SeedSelection installs a freshly created job as the detail snapshot
// directly (no fetch needed), inserts it at the head of the list, and selects
// it.
func (s *Store) SeedSelection(job api.Job) (epoch uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	replaced := false
	for i := range s.jobs {
		if s.jobs[i].ID == job.ID {
			s.jobs[i] = job
			replaced = true
			break
		}
	}
	if !replaced {
		s.jobs = append([]api.Job{job}, s.jobs...)
	}
	seed := job
	s.selected = &seed
	s.epoch++
	return s.epoch
}

// ApplyDetail merges a full detail snapshot fetched under the given epoch.
// The snapshot replaces the selected detail wholesale (no field merge) and
// the matching list summary row is synced so list and detail never disagree.
// Stale snapshots (epoch moved on, or id mismatch) are discarded and false is
// returned.
func (s *Store) ApplyDetail(epoch uint64, job api.Job) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch {
		return false
	}
	if s.selected == nil || s.selected.ID != job.ID {
		return false
	}
	snapshot := job
	s.selected = &snapshot
	for i := range s.jobs {
		if s.jobs[i].ID == job.ID {
			s.jobs[i] = job
			break
		}
	}
	return true
}

// Selected returns the current detail snapshot, if any.
func (s *Store) Selected() (api.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected == nil {
		return api.Job{}, false
	}
	return *s.selected, true
}

// SelectedID returns the currently selected job id, or "".
func (s *Store) SelectedID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected == nil {
		return ""
	}
	return s.selected.ID
}

// Epoch returns the current selection epoch. Callers capture it before
// issuing a fetch and pass it back to ApplyDetail.
func (s *Store) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// Jobs returns a copy of the job list in server order.
func (s *Store) Jobs() []api.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]api.Job, len(s.jobs))
	copy(out, s.jobs)
	return out
}

// Len returns the number of cached jobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}
