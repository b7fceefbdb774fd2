package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"showrunner/internal/api"
)

// DefaultListLimit matches the server default for GET /jobs.
const DefaultListLimit = 20

// Client talks to the generation pipeline REST API using bearer-token auth.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout adjusts the default request timeout. Artifact downloads reuse
// the same client, so deployments serving long videos may need to raise it.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// New creates a pipeline client.
func New(baseURL, token string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("pipeline base url required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse pipeline base url: %w", err)
	}
	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      strings.TrimSpace(token),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// CreateJob submits creation parameters and returns the full created job.
func (c *Client) CreateJob(ctx context.Context, req api.CreateJobRequest) (*api.Job, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}
	var job api.Job
	if err := c.doJSON(ctx, http.MethodPost, "/jobs", nil, req, &job, http.StatusCreated); err != nil {
		return nil, err
	}
	return &job, nil
}

// ListJobs fetches up to limit job summaries in server order. A limit <= 0
// falls back to the server default.
func (c *Client) ListJobs(ctx context.Context, limit int) ([]api.Job, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	var list api.JobList
	if err := c.doJSON(ctx, http.MethodGet, "/jobs", params, nil, &list, http.StatusOK); err != nil {
		return nil, err
	}
	return list.Items, nil
}

// GetJob fetches the full detail snapshot for one job.
func (c *Client) GetJob(ctx context.Context, jobID string) (*api.Job, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, Wrap(ErrValidation, "get job", "job id must not be empty", nil)
	}
	var job api.Job
	if err := c.doJSON(ctx, http.MethodGet, "/jobs/"+url.PathEscape(jobID), nil, nil, &job, http.StatusOK); err != nil {
		return nil, err
	}
	return &job, nil
}

// UpdateJob persists edited artifacts and returns the refreshed job.
func (c *Client) UpdateJob(ctx context.Context, jobID string, req api.UpdateJobRequest) (*api.Job, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, Wrap(ErrValidation, "update job", "job id must not be empty", nil)
	}
	if req.Empty() {
		return nil, Wrap(ErrValidation, "update job", "no changes provided", nil)
	}
	if err := validateImagePrompts(req.ImagePrompts); err != nil {
		return nil, err
	}
	var job api.Job
	if err := c.doJSON(ctx, http.MethodPatch, "/jobs/"+url.PathEscape(jobID), nil, req, &job, http.StatusOK); err != nil {
		return nil, err
	}
	return &job, nil
}

// Rerender asks the pipeline to regenerate the job from its current script
// inputs. The server resets audio/video stages back to not_requested.
func (c *Client) Rerender(ctx context.Context, jobID string) error {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return Wrap(ErrValidation, "rerender", "job id must not be empty", nil)
	}
	var msg api.MessageResponse
	return c.doJSON(ctx, http.MethodPost, "/jobs/"+url.PathEscape(jobID)+"/rerender", nil, nil, &msg, http.StatusAccepted)
}

// RequestAudio queues the TTS stage. voice is optional; empty selects the
// server default.
func (c *Client) RequestAudio(ctx context.Context, jobID, voice string) (*api.Job, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, Wrap(ErrValidation, "request audio", "job id must not be empty", nil)
	}
	params := url.Values{}
	if voice = strings.TrimSpace(voice); voice != "" {
		params.Set("voice", voice)
	}
	var job api.Job
	if err := c.doJSON(ctx, http.MethodPost, "/jobs/"+url.PathEscape(jobID)+"/audio", params, nil, &job, http.StatusAccepted); err != nil {
		return nil, err
	}
	return &job, nil
}

// RequestVideo queues the render stage.
func (c *Client) RequestVideo(ctx context.Context, jobID string) (*api.Job, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, Wrap(ErrValidation, "request video", "job id must not be empty", nil)
	}
	var job api.Job
	if err := c.doJSON(ctx, http.MethodPost, "/jobs/"+url.PathEscape(jobID)+"/video", nil, nil, &job, http.StatusAccepted); err != nil {
		return nil, err
	}
	return &job, nil
}

// FetchTextArtifact retrieves a text-decoded artifact (script, transcript, or
// the frames listing).
func (c *Client) FetchTextArtifact(ctx context.Context, jobID string, artifact api.ArtifactType) (string, error) {
	if artifact.Binary() {
		return "", Wrap(ErrValidation, "fetch artifact", fmt.Sprintf("%s is a binary artifact", artifact), nil)
	}
	resp, err := c.openArtifact(ctx, jobID, artifact)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", Wrap(ErrTransport, "fetch artifact", string(artifact), err)
	}
	return string(data), nil
}

// FetchBinaryArtifact streams a binary artifact (audio or video) into w and
// returns the byte count.
func (c *Client) FetchBinaryArtifact(ctx context.Context, jobID string, artifact api.ArtifactType, w io.Writer) (int64, error) {
	if !artifact.Binary() {
		return 0, Wrap(ErrValidation, "fetch artifact", fmt.Sprintf("%s is not a binary artifact", artifact), nil)
	}
	resp, err := c.openArtifact(ctx, jobID, artifact)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, Wrap(ErrTransport, "fetch artifact", string(artifact), err)
	}
	return n, nil
}

func (c *Client) openArtifact(ctx context.Context, jobID string, artifact api.ArtifactType) (*http.Response, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, Wrap(ErrValidation, "fetch artifact", "job id must not be empty", nil)
	}
	path := "/jobs/" + url.PathEscape(jobID) + "/artifact/" + url.PathEscape(string(artifact))
	req, err := c.newRequest(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return nil, Wrap(ErrTransport, "fetch artifact", fmt.Sprintf("%s (latency=%v)", artifact, latency), err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, c.statusError("fetch artifact "+string(artifact), resp)
	}
	return resp, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, params url.Values, body, out any, wantStatus int) error {
	req, err := c.newRequest(ctx, method, path, params, body)
	if err != nil {
		return err
	}
	operation := method + " " + path

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return Wrap(ErrTransport, operation, fmt.Sprintf("latency=%v", latency), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return c.statusError(operation, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return Wrap(ErrTransport, operation, "decode response", err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, params url.Values, body any) (*http.Request, error) {
	endpoint, err := url.Parse(c.baseURL + path)
	if err != nil {
		return nil, Wrap(ErrTransport, method+" "+path, "parse url", err)
	}
	if len(params) > 0 {
		endpoint.RawQuery = params.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, Wrap(ErrValidation, method+" "+path, "encode request body", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return nil, Wrap(ErrTransport, method+" "+path, "build request", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) statusError(operation string, resp *http.Response) error {
	detail := decodeErrorDetail(resp.Body)
	message := fmt.Sprintf("server returned %d", resp.StatusCode)
	if detail != "" {
		message = fmt.Sprintf("server returned %d: %s", resp.StatusCode, detail)
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return Wrap(ErrUnauthorized, operation, message, nil)
	case http.StatusNotFound:
		return Wrap(ErrNotFound, operation, message, nil)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return Wrap(ErrValidation, operation, message, nil)
	default:
		return Wrap(ErrTransport, operation, message, nil)
	}
}

// decodeErrorDetail pulls the pipeline's {"detail": "..."} error body when
// present. Failures to decode are ignored; the status code alone suffices.
func decodeErrorDetail(r io.Reader) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(io.LimitReader(r, 4096)).Decode(&payload); err != nil {
		return ""
	}
	return strings.TrimSpace(payload.Detail)
}

const (
	minParamLength   = 3
	maxParamLength   = 255
	minLengthSeconds = 31
)

func validateCreate(req api.CreateJobRequest) error {
	// The server counts characters, not bytes, so multibyte topics must be
	// measured in runes.
	topic := utf8.RuneCountInString(strings.TrimSpace(req.Topic))
	if topic < minParamLength || topic > maxParamLength {
		return Wrap(ErrValidation, "create job", fmt.Sprintf("topic must be %d-%d characters", minParamLength, maxParamLength), nil)
	}
	style := utf8.RuneCountInString(strings.TrimSpace(req.Style))
	if style < minParamLength || style > maxParamLength {
		return Wrap(ErrValidation, "create job", fmt.Sprintf("style must be %d-%d characters", minParamLength, maxParamLength), nil)
	}
	if req.Length < minLengthSeconds {
		return Wrap(ErrValidation, "create job", fmt.Sprintf("length must be at least %d seconds", minLengthSeconds), nil)
	}
	return validateImagePrompts(req.ImagePrompts)
}

// validateImagePrompts rejects malformed structured payloads before they
// reach the network. The server expects a JSON object.
func validateImagePrompts(raw json.RawMessage) error {
	if len(raw) == 0 {
		return nil
	}
	var prompts map[string]any
	if err := json.Unmarshal(raw, &prompts); err != nil {
		return Wrap(ErrValidation, "image prompts", "must be a JSON object", err)
	}
	return nil
}
