package artifacts_test

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"

	"showrunner/internal/api"
	"showrunner/internal/artifacts"
	"showrunner/internal/logging"
)

type fakeFetcher struct {
	text     map[api.ArtifactType]string
	binary   map[api.ArtifactType][]byte
	fail     map[api.ArtifactType]error
	fetches  int
	lastType api.ArtifactType
}

func (f *fakeFetcher) FetchTextArtifact(_ context.Context, _ string, artifact api.ArtifactType) (string, error) {
	if err := f.fail[artifact]; err != nil {
		return "", err
	}
	return f.text[artifact], nil
}

func (f *fakeFetcher) FetchBinaryArtifact(_ context.Context, _ string, artifact api.ArtifactType, w io.Writer) (int64, error) {
	f.fetches++
	f.lastType = artifact
	if err := f.fail[artifact]; err != nil {
		// Simulate a partial write before the failure.
		_, _ = w.Write([]byte("partial"))
		return 7, err
	}
	n, err := w.Write(f.binary[artifact])
	return int64(n), err
}

func newResolver(t *testing.T, fetcher *fakeFetcher) *artifacts.Resolver {
	t.Helper()
	resolver, err := artifacts.NewResolver(fetcher, t.TempDir(), logging.NewNop())
	if err != nil {
		t.Fatalf("NewResolver returned error: %v", err)
	}
	t.Cleanup(func() { _ = resolver.Close() })
	return resolver
}

func TestResolveBinaryCreatesHandle(t *testing.T) {
	fetcher := &fakeFetcher{binary: map[api.ArtifactType][]byte{api.ArtifactAudio: []byte("wav-bytes")}}
	resolver := newResolver(t, fetcher)

	handle, err := resolver.ResolveBinary(context.Background(), "job-1", api.ArtifactAudio)
	if err != nil {
		t.Fatalf("ResolveBinary returned error: %v", err)
	}
	if handle.Size != int64(len("wav-bytes")) {
		t.Fatalf("unexpected handle size %d", handle.Size)
	}
	data, err := os.ReadFile(handle.Path)
	if err != nil {
		t.Fatalf("read spool file: %v", err)
	}
	if string(data) != "wav-bytes" {
		t.Fatalf("unexpected spool contents %q", data)
	}
	if got, ok := resolver.Handle("job-1", api.ArtifactAudio); !ok || got.Path != handle.Path {
		t.Fatal("handle not registered")
	}
}

func TestResolveBinaryRevokesPreviousHandle(t *testing.T) {
	fetcher := &fakeFetcher{binary: map[api.ArtifactType][]byte{api.ArtifactAudio: []byte("v1")}}
	resolver := newResolver(t, fetcher)

	first, err := resolver.ResolveBinary(context.Background(), "job-1", api.ArtifactAudio)
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	fetcher.binary[api.ArtifactAudio] = []byte("v2")
	second, err := resolver.ResolveBinary(context.Background(), "job-1", api.ArtifactAudio)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if first.Path == second.Path {
		t.Fatal("expected a fresh spool file per resolve")
	}
	if _, err := os.Stat(first.Path); !os.IsNotExist(err) {
		t.Fatal("previous spool file should have been removed")
	}
}

func TestFailedFetchLeavesHandleAbsent(t *testing.T) {
	fetcher := &fakeFetcher{fail: map[api.ArtifactType]error{api.ArtifactVideo: errors.New("boom")}}
	resolver := newResolver(t, fetcher)

	if _, err := resolver.ResolveBinary(context.Background(), "job-1", api.ArtifactVideo); err == nil {
		t.Fatal("expected resolve error")
	}
	if _, ok := resolver.Handle("job-1", api.ArtifactVideo); ok {
		t.Fatal("failed fetch must leave no handle")
	}
}

func TestRevokeExactlyOnce(t *testing.T) {
	fetcher := &fakeFetcher{binary: map[api.ArtifactType][]byte{api.ArtifactAudio: []byte("wav")}}
	resolver := newResolver(t, fetcher)

	handle, err := resolver.ResolveBinary(context.Background(), "job-1", api.ArtifactAudio)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !resolver.Revoke("job-1", api.ArtifactAudio) {
		t.Fatal("first revoke should report a released handle")
	}
	if resolver.Revoke("job-1", api.ArtifactAudio) {
		t.Fatal("second revoke should be a no-op")
	}
	if _, err := os.Stat(handle.Path); !os.IsNotExist(err) {
		t.Fatal("spool file should be gone after revoke")
	}
}

func TestSyncRevokesOnStatusRegression(t *testing.T) {
	fetcher := &fakeFetcher{binary: map[api.ArtifactType][]byte{api.ArtifactAudio: []byte("wav")}}
	resolver := newResolver(t, fetcher)

	if _, err := resolver.ResolveBinary(context.Background(), "job-1", api.ArtifactAudio); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	// Audio still completed: nothing to do.
	steady := api.Job{ID: "job-1", AudioStatus: api.StatusCompleted}
	if revoked := resolver.Sync(steady); len(revoked) != 0 {
		t.Fatalf("unexpected revocations: %v", revoked)
	}

	// A rerender reset the stage; the stale preview must go, exactly once.
	reset := api.Job{ID: "job-1", AudioStatus: api.StatusNotRequested}
	revoked := resolver.Sync(reset)
	if len(revoked) != 1 || revoked[0] != api.ArtifactAudio {
		t.Fatalf("expected audio revocation, got %v", revoked)
	}
	if revoked := resolver.Sync(reset); len(revoked) != 0 {
		t.Fatalf("expected no double revoke, got %v", revoked)
	}
}

func TestRevokeJobReleasesAllHandles(t *testing.T) {
	fetcher := &fakeFetcher{binary: map[api.ArtifactType][]byte{
		api.ArtifactAudio: []byte("wav"),
		api.ArtifactVideo: []byte("mp4"),
	}}
	resolver := newResolver(t, fetcher)

	for _, artifact := range []api.ArtifactType{api.ArtifactAudio, api.ArtifactVideo} {
		if _, err := resolver.ResolveBinary(context.Background(), "job-1", artifact); err != nil {
			t.Fatalf("resolve %s: %v", artifact, err)
		}
	}
	resolver.RevokeJob("job-1")
	for _, artifact := range []api.ArtifactType{api.ArtifactAudio, api.ArtifactVideo} {
		if _, ok := resolver.Handle("job-1", artifact); ok {
			t.Fatalf("handle %s survived RevokeJob", artifact)
		}
	}
}

func TestResolveTextPassesThrough(t *testing.T) {
	fetcher := &fakeFetcher{text: map[api.ArtifactType]string{api.ArtifactScript: "the script"}}
	resolver := newResolver(t, fetcher)

	text, err := resolver.ResolveText(context.Background(), "job-1", api.ArtifactScript)
	if err != nil {
		t.Fatalf("ResolveText returned error: %v", err)
	}
	if text != "the script" {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestSpoolLockRejectsSecondInstance(t *testing.T) {
	fetcher := &fakeFetcher{}
	dir := t.TempDir()
	first, err := artifacts.NewResolver(fetcher, dir, logging.NewNop())
	if err != nil {
		t.Fatalf("first resolver: %v", err)
	}
	defer first.Close()

	if _, err := artifacts.NewResolver(fetcher, dir, logging.NewNop()); err == nil {
		t.Fatal("expected second resolver on same spool to fail")
	}

	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	second, err := artifacts.NewResolver(fetcher, dir, logging.NewNop())
	if err != nil {
		t.Fatalf("resolver after close: %v", err)
	}
	_ = second.Close()
}

func TestCloseRevokesEverything(t *testing.T) {
	fetcher := &fakeFetcher{binary: map[api.ArtifactType][]byte{api.ArtifactAudio: []byte("wav")}}
	resolver, err := artifacts.NewResolver(fetcher, t.TempDir(), logging.NewNop())
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	handle, err := resolver.ResolveBinary(context.Background(), "job-1", api.ArtifactAudio)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if err := resolver.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := os.Stat(handle.Path); !os.IsNotExist(err) {
		t.Fatal("spool file should be removed on close")
	}
	if _, err := resolver.ResolveBinary(context.Background(), "job-1", api.ArtifactAudio); !errors.Is(err, artifacts.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
