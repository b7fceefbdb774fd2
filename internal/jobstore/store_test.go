package jobstore_test

import (
	"testing"

	"showrunner/internal/api"
	"showrunner/internal/jobstore"
)

func job(id string, status api.JobStatus) api.Job {
	return api.Job{ID: id, Topic: "topic " + id, Status: status}
}

func TestReplaceListAutoSelectsFirstOnce(t *testing.T) {
	store := jobstore.New()

	autoID, epoch := store.ReplaceList([]api.Job{job("b", api.StatusQueued), job("a", api.StatusCompleted)})
	if autoID != "b" {
		t.Fatalf("expected auto-selection of first item, got %q", autoID)
	}
	if got := store.SelectedID(); got != "b" {
		t.Fatalf("expected selection b, got %q", got)
	}
	if epoch != store.Epoch() {
		t.Fatalf("returned epoch %d does not match store epoch %d", epoch, store.Epoch())
	}

	// A later refresh must not move an existing selection.
	autoID, _ = store.ReplaceList([]api.Job{job("c", api.StatusQueued), job("b", api.StatusProcessing)})
	if autoID != "" {
		t.Fatalf("expected no auto-selection on refresh, got %q", autoID)
	}
	if got := store.SelectedID(); got != "b" {
		t.Fatalf("selection moved on refresh: %q", got)
	}
}

func TestReplaceListEvictsMissingJobs(t *testing.T) {
	store := jobstore.New()
	store.ReplaceList([]api.Job{job("a", api.StatusQueued), job("b", api.StatusQueued)})
	store.ReplaceList([]api.Job{job("b", api.StatusCompleted)})
	jobs := store.Jobs()
	if len(jobs) != 1 || jobs[0].ID != "b" {
		t.Fatalf("expected only b to survive, got %#v", jobs)
	}
}

func TestApplyDetailDiscardsStaleEpoch(t *testing.T) {
	store := jobstore.New()
	store.ReplaceList([]api.Job{job("a", api.StatusProcessing), job("b", api.StatusQueued)})

	// Fetch for a is issued under this epoch...
	staleEpoch := store.Epoch()

	// ...then the user selects b before the response lands.
	freshEpoch := store.Select("b")
	detailB := job("b", api.StatusProcessing)
	detailB.Script = "b script"
	if !store.ApplyDetail(freshEpoch, detailB) {
		t.Fatal("expected fresh apply for b to succeed")
	}

	// The late response for a must be discarded.
	detailA := job("a", api.StatusCompleted)
	detailA.Script = "a script"
	if store.ApplyDetail(staleEpoch, detailA) {
		t.Fatal("stale apply for a should have been rejected")
	}
	selected, ok := store.Selected()
	if !ok || selected.ID != "b" || selected.Script != "b script" {
		t.Fatalf("selection corrupted by stale apply: %#v", selected)
	}
}

func TestApplyDetailRejectsWrongJob(t *testing.T) {
	store := jobstore.New()
	epoch := store.Select("a")
	if store.ApplyDetail(epoch, job("z", api.StatusCompleted)) {
		t.Fatal("apply for non-selected job should be rejected")
	}
}

func TestApplyDetailSyncsListSummary(t *testing.T) {
	store := jobstore.New()
	store.ReplaceList([]api.Job{job("a", api.StatusProcessing)})
	epoch := store.Epoch()

	detail := job("a", api.StatusCompleted)
	detail.ScriptStatus = api.StatusCompleted
	if !store.ApplyDetail(epoch, detail) {
		t.Fatal("expected apply to succeed")
	}
	jobs := store.Jobs()
	if jobs[0].Status != api.StatusCompleted {
		t.Fatalf("list summary not synced: %#v", jobs[0])
	}
	selected, _ := store.Selected()
	if selected.Status != jobs[0].Status {
		t.Fatal("list and detail disagree on status")
	}
}

func TestApplyDetailReplacesWholesale(t *testing.T) {
	store := jobstore.New()
	epoch := store.Select("a")
	withScript := job("a", api.StatusCompleted)
	withScript.Script = "draft one"
	if !store.ApplyDetail(epoch, withScript) {
		t.Fatal("expected first apply to succeed")
	}

	// A later snapshot without the script must blank it, not merge.
	bare := job("a", api.StatusRerendering)
	if !store.ApplyDetail(epoch, bare) {
		t.Fatal("expected second apply to succeed")
	}
	selected, _ := store.Selected()
	if selected.Script != "" || selected.Status != api.StatusRerendering {
		t.Fatalf("expected wholesale replacement, got %#v", selected)
	}
}

func TestSelectSeedsFromListSummary(t *testing.T) {
	store := jobstore.New()
	store.ReplaceList([]api.Job{job("a", api.StatusQueued), job("b", api.StatusCompleted)})
	store.Select("b")
	selected, ok := store.Selected()
	if !ok || selected.Topic != "topic b" {
		t.Fatalf("expected selection seeded from summary, got %#v", selected)
	}
}

func TestSeedSelectionInsertsAtHead(t *testing.T) {
	store := jobstore.New()
	store.ReplaceList([]api.Job{job("old", api.StatusCompleted)})

	created := job("new", api.StatusQueued)
	created.ScriptStatus = api.StatusQueued
	epoch := store.SeedSelection(created)

	jobs := store.Jobs()
	if len(jobs) != 2 || jobs[0].ID != "new" {
		t.Fatalf("expected new job at head, got %#v", jobs)
	}
	if store.SelectedID() != "new" {
		t.Fatalf("expected new job selected, got %q", store.SelectedID())
	}
	if epoch != store.Epoch() {
		t.Fatal("SeedSelection must return the current epoch")
	}
}
