package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"showrunner/internal/api"
	"showrunner/internal/testsupport"
)

type cliTestEnv struct {
	server     *testsupport.PipelineServer
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	server := testsupport.NewPipelineServer(t, "test-token")

	configPath := filepath.Join(base, "config.toml")
	content := fmt.Sprintf(
		"[api]\nbase_url = %q\ntoken = %q\n\n[artifacts]\nspool_dir = %q\n",
		server.URL(),
		"test-token",
		filepath.Join(base, "artifacts"),
	)
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	return &cliTestEnv{
		server:     server,
		configPath: configPath,
		baseDir:    base,
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}

func seedJob(env *cliTestEnv, id, topic string, script api.JobStatus) api.Job {
	now := time.Now().UTC()
	job := api.Job{
		ID:           id,
		Topic:        topic,
		Style:        "informative",
		Length:       300,
		Status:       api.StatusProcessing,
		ScriptStatus: script,
		AudioStatus:  api.StatusNotRequested,
		VideoStatus:  api.StatusNotRequested,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if script == api.StatusCompleted {
		job.Script = "Once upon a time in the render farm."
	}
	env.server.Seed(job)
	return job
}

func TestCLIListShowsSeededJobs(t *testing.T) {
	env := setupCLITestEnv(t)
	seedJob(env, "job-aaaa-1", "Volcanoes of Iceland", api.StatusCompleted)
	seedJob(env, "job-bbbb-2", "Deep sea anglerfish", api.StatusProcessing)

	out, _, err := runCLI(t, []string{"list"}, env.configPath)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	requireContains(t, out, "Volcanoes of Iceland")
	requireContains(t, out, "Deep sea anglerfish")
}

func TestCLIListEmpty(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"list"}, env.configPath)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	requireContains(t, out, "No jobs found")
}

func TestCLICreateAndShow(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"create", "A brief history of lighthouses"}, env.configPath)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	requireContains(t, out, "Created job")
	requireContains(t, out, "A brief history of lighthouses")

	listOut, _, err := runCLI(t, []string{"list", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	requireContains(t, listOut, "A brief history of lighthouses")
}

func TestCLIShowReportsLengthInSeconds(t *testing.T) {
	env := setupCLITestEnv(t)
	seedJob(env, "job-len", "Tidal power stations", api.StatusCompleted)

	out, _, err := runCLI(t, []string{"show", "job-len"}, env.configPath)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	// Length is the desired runtime in seconds, not a word count.
	requireContains(t, out, "Length:  300 seconds")
}

func TestCLIShowUnknownJob(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"show", "missing"}, env.configPath)
	if err == nil {
		t.Fatal("expected error for unknown job")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not-found error, got: %v", err)
	}
}

func TestCLIAudioGuardedByScriptStage(t *testing.T) {
	env := setupCLITestEnv(t)
	seedJob(env, "job-pending", "Pending script", api.StatusProcessing)
	seedJob(env, "job-ready", "Ready script", api.StatusCompleted)

	_, _, err := runCLI(t, []string{"audio", "job-pending"}, env.configPath)
	if err == nil {
		t.Fatal("expected audio request to be blocked while script is processing")
	}
	requireContains(t, err.Error(), "audio not available")

	out, _, err := runCLI(t, []string{"audio", "job-ready"}, env.configPath)
	if err != nil {
		t.Fatalf("audio: %v", err)
	}
	requireContains(t, out, "Audio generation Queued")

	job, ok := env.server.Job("job-ready")
	if !ok || job.AudioStatus != api.StatusQueued {
		t.Fatalf("expected audio status queued on server, got %+v", job)
	}
}

func TestCLIRerenderResetsStages(t *testing.T) {
	env := setupCLITestEnv(t)
	job := seedJob(env, "job-done", "Finished job", api.StatusCompleted)
	job.AudioStatus = api.StatusCompleted
	job.VideoStatus = api.StatusCompleted
	job.VideoURL = "https://cdn.example/final.mp4"
	env.server.Seed(job)

	out, _, err := runCLI(t, []string{"rerender", "job-done"}, env.configPath)
	if err != nil {
		t.Fatalf("rerender: %v", err)
	}
	requireContains(t, out, "Rerender started")

	updated, _ := env.server.Job("job-done")
	if updated.AudioStatus != api.StatusNotRequested || updated.VideoStatus != api.StatusNotRequested {
		t.Fatalf("expected stage reset after rerender, got %+v", updated)
	}
	if updated.VideoURL != "" {
		t.Fatalf("expected video URL cleared after rerender, got %q", updated.VideoURL)
	}
}

func TestCLIArtifactPrintsText(t *testing.T) {
	env := setupCLITestEnv(t)
	seedJob(env, "job-script", "Scripted job", api.StatusCompleted)
	env.server.SetArtifact("job-script", api.ArtifactScript, []byte("INT. STUDIO - DAY\n"))

	out, _, err := runCLI(t, []string{"artifact", "job-script", "script"}, env.configPath)
	if err != nil {
		t.Fatalf("artifact: %v", err)
	}
	requireContains(t, out, "INT. STUDIO - DAY")
}

func TestCLIArtifactDownloadsBinary(t *testing.T) {
	env := setupCLITestEnv(t)
	seedJob(env, "job-audio", "Narrated job", api.StatusCompleted)
	env.server.SetArtifact("job-audio", api.ArtifactAudio, []byte("RIFFfakewav"))

	target := filepath.Join(env.baseDir, "narration.wav")
	out, _, err := runCLI(t, []string{"artifact", "job-audio", "audio", "--output", target}, env.configPath)
	if err != nil {
		t.Fatalf("artifact: %v", err)
	}
	requireContains(t, out, "Wrote "+target)

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read download: %v", err)
	}
	if string(data) != "RIFFfakewav" {
		t.Fatalf("unexpected artifact bytes: %q", data)
	}
}

func TestCLIEditSavesAndRerenders(t *testing.T) {
	env := setupCLITestEnv(t)
	seedJob(env, "job-edit", "Editable job", api.StatusCompleted)

	scriptPath := filepath.Join(env.baseDir, "edited.txt")
	if err := os.WriteFile(scriptPath, []byte("Edited narration body."), 0o644); err != nil {
		t.Fatalf("write script file: %v", err)
	}

	out, _, err := runCLI(t, []string{"edit", "job-edit", "--script", scriptPath}, env.configPath)
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	requireContains(t, out, "Edits saved and rerender started")

	job, _ := env.server.Job("job-edit")
	if job.AudioStatus != api.StatusNotRequested {
		t.Fatalf("expected rerender to reset audio, got %s", job.AudioStatus)
	}
}

func TestCLIEditRequiresAField(t *testing.T) {
	env := setupCLITestEnv(t)
	seedJob(env, "job-edit", "Editable job", api.StatusCompleted)

	_, _, err := runCLI(t, []string{"edit", "job-edit"}, env.configPath)
	if err == nil {
		t.Fatal("expected error when no edit flags are passed")
	}
	requireContains(t, err.Error(), "nothing to save")
}
