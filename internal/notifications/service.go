package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"showrunner/internal/api"
)

const userAgent = "Showrunner/0.1.0"

// Service pushes job lifecycle notifications to the user's phone or desktop.
// Implementations must be safe for concurrent use.
type Service interface {
	NotifyStageCompleted(ctx context.Context, topic string, stage api.ArtifactType) error
	NotifyJobCompleted(ctx context.Context, topic string) error
	NotifyJobFailed(ctx context.Context, topic, detail string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when an endpoint is
// configured. When no endpoint is configured, a noop implementation is
// returned.
func NewService(endpoint string, timeout time.Duration) Service {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return noopService{}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyStageCompleted(ctx context.Context, topic string, stage api.ArtifactType) error {
	topic = strings.TrimSpace(topic)
	data := payload{
		title:   fmt.Sprintf("Showrunner - %s Ready", stageLabel(stage)),
		message: fmt.Sprintf("%s is ready for: %s", stageLabel(stage), topic),
		tags:    []string{"showrunner", string(stage), "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobCompleted(ctx context.Context, topic string) error {
	topic = strings.TrimSpace(topic)
	data := payload{
		title:    "Showrunner - Complete",
		message:  fmt.Sprintf("Ready to publish: %s", topic),
		tags:     []string{"showrunner", "job", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, topic, detail string) error {
	topic = strings.TrimSpace(topic)
	var builder strings.Builder
	builder.WriteString("Generation failed: ")
	builder.WriteString(topic)
	if detail = strings.TrimSpace(detail); detail != "" {
		builder.WriteString("\n")
		builder.WriteString(detail)
	}
	data := payload{
		title:    "Showrunner - Failed",
		message:  builder.String(),
		tags:     []string{"showrunner", "job", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:   "Showrunner - Test",
		message: "Notifications are working",
		tags:    []string{"showrunner", "test"},
	}
	return n.send(ctx, data)
}

func stageLabel(stage api.ArtifactType) string {
	switch stage {
	case api.ArtifactAudio:
		return "Audio"
	case api.ArtifactVideo:
		return "Video"
	case api.ArtifactScript:
		return "Script"
	default:
		return stageCaser.String(string(stage))
	}
}

var stageCaser = cases.Title(language.English)

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyStageCompleted(context.Context, string, api.ArtifactType) error { return nil }
func (noopService) NotifyJobCompleted(context.Context, string) error                     { return nil }
func (noopService) NotifyJobFailed(context.Context, string, string) error                { return nil }
func (noopService) TestNotification(context.Context) error                               { return nil }
