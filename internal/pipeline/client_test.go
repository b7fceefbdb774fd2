package pipeline_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"showrunner/internal/api"
	"showrunner/internal/pipeline"
)

func TestNewRequiresBaseURL(t *testing.T) {
	if _, err := pipeline.New("", "token"); err == nil {
		t.Fatal("expected error when base url missing")
	}
}

func TestCreateJobSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/jobs" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Fatalf("expected bearer token, got %q", got)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Fatal("expected X-Request-ID header")
		}
		var req api.CreateJobRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Topic != "Rise of AI" || req.Length != 180 {
			t.Fatalf("unexpected payload: %#v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"job-1","topic":"Rise of AI","style":"Documentary","length":180,"status":"queued","script_status":"queued","audio_status":"not_requested","video_status":"not_requested"}`))
	}))
	t.Cleanup(server.Close)

	client, err := pipeline.New(server.URL, "secret")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	job, err := client.CreateJob(context.Background(), api.CreateJobRequest{
		Topic:  "Rise of AI",
		Style:  "Documentary",
		Length: 180,
	})
	if err != nil {
		t.Fatalf("CreateJob returned error: %v", err)
	}
	if job.ID != "job-1" || job.Status != api.StatusQueued {
		t.Fatalf("unexpected job: %#v", job)
	}
}

func TestCreateJobValidatesLocally(t *testing.T) {
	client, err := pipeline.New("http://unused.invalid", "")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	cases := []api.CreateJobRequest{
		{Topic: "ab", Style: "Documentary", Length: 120},
		{Topic: "Rise of AI", Style: "x", Length: 120},
		{Topic: "Rise of AI", Style: "Documentary", Length: 30},
		{Topic: "Rise of AI", Style: "Documentary", Length: 120, ImagePrompts: json.RawMessage(`[not json`)},
	}
	for i, req := range cases {
		if _, err := client.CreateJob(context.Background(), req); !errors.Is(err, pipeline.ErrValidation) {
			t.Fatalf("case %d: expected ErrValidation, got %v", i, err)
		}
	}
}

func TestCreateJobValidationCountsRunes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"job-1","topic":"t","style":"s","length":120,"status":"queued","script_status":"queued","audio_status":"not_requested","video_status":"not_requested"}`))
	}))
	defer server.Close()

	client, err := pipeline.New(server.URL, "")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	// Two runes even though six bytes; must fail the 3-character minimum.
	if _, err := client.CreateJob(context.Background(), api.CreateJobRequest{
		Topic: "火山", Style: "Documentary", Length: 120,
	}); !errors.Is(err, pipeline.ErrValidation) {
		t.Fatalf("expected ErrValidation for two-rune topic, got %v", err)
	}

	// 200 runes but 600 bytes; must stay under the 255-character maximum.
	if _, err := client.CreateJob(context.Background(), api.CreateJobRequest{
		Topic: strings.Repeat("山", 200), Style: "Documentary", Length: 120,
	}); err != nil {
		t.Fatalf("expected 200-rune topic to pass validation, got %v", err)
	}
}

func TestListJobsSendsLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("limit"); got != "5" {
			t.Fatalf("expected limit=5, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[{"id":"a","status":"completed"},{"id":"b","status":"queued"}]}`))
	}))
	t.Cleanup(server.Close)

	client, err := pipeline.New(server.URL, "")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	items, err := client.ListJobs(context.Background(), 5)
	if err != nil {
		t.Fatalf("ListJobs returned error: %v", err)
	}
	if len(items) != 2 || items[0].ID != "a" {
		t.Fatalf("unexpected items: %#v", items)
	}
}

func TestGetJobNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"Job not found"}`))
	}))
	t.Cleanup(server.Close)

	client, err := pipeline.New(server.URL, "")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	_, err = client.GetJob(context.Background(), "missing")
	if !errors.Is(err, pipeline.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRequestAudioGuardRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"detail":"Script must be generated first"}`))
	}))
	t.Cleanup(server.Close)

	client, err := pipeline.New(server.URL, "")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	_, err = client.RequestAudio(context.Background(), "job-1", "")
	if !errors.Is(err, pipeline.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestRequestAudioSendsVoice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("voice"); got != "af_bella" {
			t.Fatalf("expected voice=af_bella, got %q", got)
		}
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"id":"job-1","status":"completed","audio_status":"queued"}`))
	}))
	t.Cleanup(server.Close)

	client, err := pipeline.New(server.URL, "")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	job, err := client.RequestAudio(context.Background(), "job-1", "af_bella")
	if err != nil {
		t.Fatalf("RequestAudio returned error: %v", err)
	}
	if job.AudioStatus != api.StatusQueued {
		t.Fatalf("unexpected audio status: %s", job.AudioStatus)
	}
}

func TestUpdateJobRejectsEmptyPatch(t *testing.T) {
	client, err := pipeline.New("http://unused.invalid", "")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, err := client.UpdateJob(context.Background(), "job-1", api.UpdateJobRequest{}); !errors.Is(err, pipeline.ErrValidation) {
		t.Fatalf("expected ErrValidation for empty patch, got %v", err)
	}
}

func TestUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(server.Close)

	client, err := pipeline.New(server.URL, "wrong")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, err := client.ListJobs(context.Background(), 0); !errors.Is(err, pipeline.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestNetworkFailureIsTransport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client, err := pipeline.New(server.URL, "")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	_, err = client.ListJobs(context.Background(), 0)
	if !errors.Is(err, pipeline.ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	if !pipeline.IsRetryable(err) {
		t.Fatal("transport failures should be retryable")
	}
}

func TestFetchTextArtifact(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/jobs/job-1/artifact/script" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte("A long time ago..."))
	}))
	t.Cleanup(server.Close)

	client, err := pipeline.New(server.URL, "")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	text, err := client.FetchTextArtifact(context.Background(), "job-1", api.ArtifactScript)
	if err != nil {
		t.Fatalf("FetchTextArtifact returned error: %v", err)
	}
	if text != "A long time ago..." {
		t.Fatalf("unexpected artifact text: %q", text)
	}
}

func TestFetchTextArtifactRejectsBinaryType(t *testing.T) {
	client, err := pipeline.New("http://unused.invalid", "")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, err := client.FetchTextArtifact(context.Background(), "job-1", api.ArtifactAudio); !errors.Is(err, pipeline.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestFetchBinaryArtifactStreams(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB, 0xCD}, 2048)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/jobs/job-1/artifact/audio" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write(payload)
	}))
	t.Cleanup(server.Close)

	client, err := pipeline.New(server.URL, "")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	var buf bytes.Buffer
	n, err := client.FetchBinaryArtifact(context.Background(), "job-1", api.ArtifactAudio, &buf)
	if err != nil {
		t.Fatalf("FetchBinaryArtifact returned error: %v", err)
	}
	if n != int64(len(payload)) || !bytes.Equal(buf.Bytes(), payload) {
		t.Fatalf("unexpected download: %d bytes", n)
	}
}

func TestFetchArtifactNotReady(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"Artifact not found"}`))
	}))
	t.Cleanup(server.Close)

	client, err := pipeline.New(server.URL, "")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	var buf bytes.Buffer
	if _, err := client.FetchBinaryArtifact(context.Background(), "job-1", api.ArtifactVideo, &buf); !errors.Is(err, pipeline.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if buf.Len() != 0 {
		t.Fatal("expected no bytes written for unavailable artifact")
	}
}
