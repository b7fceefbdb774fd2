package testsupport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"showrunner/internal/api"
)

// PipelineServer is an in-memory stand-in for the generation pipeline API,
// mirroring its routes, guard conditions, and status resets.
type PipelineServer struct {
	token string

	mu          sync.Mutex
	jobs        map[string]api.Job
	order       []string
	artifacts   map[string]map[api.ArtifactType][]byte
	enableVideo bool

	server *httptest.Server
}

// NewPipelineServer starts a fake pipeline requiring the given bearer token
// (empty disables the auth check). The server is shut down via t.Cleanup.
func NewPipelineServer(t testing.TB, token string) *PipelineServer {
	t.Helper()
	p := &PipelineServer{
		token:       token,
		jobs:        make(map[string]api.Job),
		artifacts:   make(map[string]map[api.ArtifactType][]byte),
		enableVideo: true,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /jobs", p.handleCreate)
	mux.HandleFunc("GET /jobs", p.handleList)
	mux.HandleFunc("GET /jobs/{id}", p.handleGet)
	mux.HandleFunc("PATCH /jobs/{id}", p.handlePatch)
	mux.HandleFunc("POST /jobs/{id}/rerender", p.handleRerender)
	mux.HandleFunc("POST /jobs/{id}/audio", p.handleAudio)
	mux.HandleFunc("POST /jobs/{id}/video", p.handleVideo)
	mux.HandleFunc("GET /jobs/{id}/artifact/{type}", p.handleArtifact)

	p.server = httptest.NewServer(p.withAuth(mux))
	t.Cleanup(p.server.Close)
	return p
}

// URL returns the server's base URL.
func (p *PipelineServer) URL() string {
	return p.server.URL
}

// Seed installs a job directly.
func (p *PipelineServer) Seed(job api.Job) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.jobs[job.ID]; !ok {
		p.order = append([]string{job.ID}, p.order...)
	}
	p.jobs[job.ID] = job
}

// Job returns the current state of a seeded job.
func (p *PipelineServer) Job(id string) (api.Job, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	job, ok := p.jobs[id]
	return job, ok
}

// SetArtifact installs artifact bytes served for the pair.
func (p *PipelineServer) SetArtifact(jobID string, artifact api.ArtifactType, data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.artifacts[jobID] == nil {
		p.artifacts[jobID] = make(map[api.ArtifactType][]byte)
	}
	p.artifacts[jobID][artifact] = data
}

// DisableVideo makes video requests fail like a deployment without image
// generation.
func (p *PipelineServer) DisableVideo() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enableVideo = false
}

func (p *PipelineServer) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p.token != "" && r.Header.Get("Authorization") != "Bearer "+p.token {
			writeDetail(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (p *PipelineServer) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req api.CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}
	now := time.Now().UTC()
	job := api.Job{
		ID:           uuid.NewString(),
		Topic:        req.Topic,
		Style:        req.Style,
		Length:       req.Length,
		Status:       api.StatusQueued,
		ScriptStatus: api.StatusQueued,
		AudioStatus:  api.StatusNotRequested,
		VideoStatus:  api.StatusNotRequested,
		ImagePrompts: req.ImagePrompts,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	p.Seed(job)
	writeJSON(w, http.StatusCreated, job)
}

func (p *PipelineServer) handleList(w http.ResponseWriter, r *http.Request) {
	limit := -1
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeDetail(w, http.StatusUnprocessableEntity, "Invalid limit")
			return
		}
		limit = parsed
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if limit < 0 {
		limit = len(p.order)
	}
	items := make([]api.Job, 0, len(p.order))
	for _, id := range p.order {
		if len(items) == limit {
			break
		}
		items = append(items, p.jobs[id])
	}
	writeJSON(w, http.StatusOK, api.JobList{Items: items})
}

func (p *PipelineServer) handleGet(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	job, ok := p.jobs[r.PathValue("id")]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (p *PipelineServer) handlePatch(w http.ResponseWriter, r *http.Request) {
	var req api.UpdateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}
	if req.Empty() {
		writeDetail(w, http.StatusBadRequest, "No changes provided")
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	job, ok := p.jobs[r.PathValue("id")]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Job not found")
		return
	}
	if req.Script != nil {
		job.Script = *req.Script
	}
	if req.Transcript != nil {
		job.Transcript = *req.Transcript
	}
	if len(req.ImagePrompts) > 0 {
		job.ImagePrompts = req.ImagePrompts
	}
	job.UpdatedAt = time.Now().UTC()
	p.jobs[job.ID] = job
	writeJSON(w, http.StatusOK, job)
}

func (p *PipelineServer) handleRerender(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	job, ok := p.jobs[r.PathValue("id")]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Job not found")
		return
	}
	job.Status = api.StatusQueued
	job.ScriptStatus = api.StatusQueued
	job.AudioStatus = api.StatusNotRequested
	job.VideoStatus = api.StatusNotRequested
	job.AudioPath = ""
	job.VideoURL = ""
	job.FramesPath = ""
	job.Transcript = ""
	p.jobs[job.ID] = job
	writeJSON(w, http.StatusAccepted, api.MessageResponse{Message: "Script regeneration started"})
}

func (p *PipelineServer) handleAudio(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	job, ok := p.jobs[r.PathValue("id")]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Job not found")
		return
	}
	if job.ScriptStatus != api.StatusCompleted {
		writeDetail(w, http.StatusBadRequest, "Script must be generated first")
		return
	}
	job.AudioStatus = api.StatusQueued
	p.jobs[job.ID] = job
	writeJSON(w, http.StatusAccepted, job)
}

func (p *PipelineServer) handleVideo(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.enableVideo {
		writeDetail(w, http.StatusBadRequest, "Image generation disabled")
		return
	}
	job, ok := p.jobs[r.PathValue("id")]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Job not found")
		return
	}
	if job.AudioStatus != api.StatusCompleted {
		writeDetail(w, http.StatusBadRequest, "Audio must be generated first")
		return
	}
	job.VideoStatus = api.StatusQueued
	p.jobs[job.ID] = job
	writeJSON(w, http.StatusAccepted, job)
}

func (p *PipelineServer) handleArtifact(w http.ResponseWriter, r *http.Request) {
	artifact, err := api.ParseArtifactType(r.PathValue("type"))
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid artifact type")
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	jobID := r.PathValue("id")
	if _, ok := p.jobs[jobID]; !ok {
		writeDetail(w, http.StatusNotFound, "Job not found")
		return
	}
	data, ok := p.artifacts[jobID][artifact]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Artifact not found")
		return
	}
	switch artifact {
	case api.ArtifactAudio:
		w.Header().Set("Content-Type", "audio/wav")
	case api.ArtifactVideo:
		w.Header().Set("Content-Type", "video/mp4")
	default:
		w.Header().Set("Content-Type", "text/plain")
	}
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"detail":%q}`, strings.TrimSpace(detail))
}
