package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"clipforge/internal/config"
)

const userAgent = "Clipforge/0.1.0"

// Service defines the notification surface exposed to the daemon.
type Service interface {
	NotifyRecordingStarted(ctx context.Context) error
	NotifyRecordingFinished(ctx context.Context, path string, elapsed time.Duration) error
	NotifyReplaySaved(ctx context.Context, path string) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:  topic,
		client:    &http.Client{Timeout: timeout},
		recording: cfg.Notifications.Recording,
		replay:    cfg.Notifications.Replay,
		errors:    cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint  string
	client    *http.Client
	recording bool
	replay    bool
	errors    bool
}

func (n *ntfyService) NotifyRecordingStarted(ctx context.Context) error {
	if !n.recording {
		return nil
	}
	return n.send(ctx, payload{
		title:   "Clipforge - Recording",
		message: "Recording started",
		tags:    []string{"clipforge", "recording", "started"},
	})
}

func (n *ntfyService) NotifyRecordingFinished(ctx context.Context, path string, elapsed time.Duration) error {
	if !n.recording {
		return nil
	}
	elapsed = elapsed.Round(time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	return n.send(ctx, payload{
		title:   "Clipforge - Recording Saved",
		message: fmt.Sprintf("Recording saved after %s: %s", elapsed, filepath.Base(path)),
		tags:    []string{"clipforge", "recording", "completed"},
	})
}

func (n *ntfyService) NotifyReplaySaved(ctx context.Context, path string) error {
	if !n.replay {
		return nil
	}
	return n.send(ctx, payload{
		title:   "Clipforge - Replay Saved",
		message: fmt.Sprintf("Replay clip saved: %s", filepath.Base(path)),
		tags:    []string{"clipforge", "replay", "saved"},
	})
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}
	return n.send(ctx, payload{
		title:    "Clipforge - Error",
		message:  builder.String(),
		tags:     []string{"clipforge", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "Clipforge - Test",
		message:  "Notification system test",
		tags:     []string{"clipforge", "test"},
		priority: "low",
	})
}

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

func (noopService) NotifyRecordingStarted(context.Context) error                        { return nil }
func (noopService) NotifyRecordingFinished(context.Context, string, time.Duration) error { return nil }
func (noopService) NotifyReplaySaved(context.Context, string) error                     { return nil }
func (noopService) NotifyError(context.Context, error, string) error                    { return nil }
func (noopService) TestNotification(context.Context) error                              { return nil }
