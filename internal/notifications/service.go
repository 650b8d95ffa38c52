package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"autoxdcc/internal/config"
)

const userAgent = "autoxdcc/0.1"

// Event names a notification kind.
type Event string

const (
	EventDownloadCompleted Event = "download_completed"
	EventDownloadFailed    Event = "download_failed"
	EventUntrustedOffer    Event = "untrusted_offer"
	EventPacklistError     Event = "packlist_error"
	EventTest              Event = "test"
)

// Payload carries the event fields; missing keys render as empty text.
type Payload map[string]string

// Service publishes events to the operator.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
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
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[Event]bool{
			EventDownloadCompleted: cfg.Notifications.Completed,
			EventDownloadFailed:    cfg.Notifications.Failed,
			EventUntrustedOffer:    cfg.Notifications.Untrusted,
			EventPacklistError:     cfg.Notifications.Failed,
			EventTest:              true,
		},
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
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, data Payload) error {
	if !n.enabled[event] {
		return nil
	}
	msg, ok := render(event, data)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func render(event Event, data Payload) (payload, bool) {
	get := func(key string) string { return strings.TrimSpace(data[key]) }

	switch event {
	case EventDownloadCompleted:
		message := fmt.Sprintf("Downloaded: %s", get("filename"))
		if size := get("size"); size != "" {
			message += fmt.Sprintf(" (%s)", size)
		}
		if dest := get("destination"); dest != "" {
			message += "\nSaved to: " + dest
		}
		return payload{
			title:   "autoxdcc - Download Complete",
			message: message,
			tags:    []string{"autoxdcc", get("packlist"), "completed"},
		}, true
	case EventDownloadFailed:
		reason := get("reason")
		if reason == "" {
			reason = "unknown"
		}
		return payload{
			title:    "autoxdcc - Download Failed",
			message:  fmt.Sprintf("Failed: %s\nReason: %s", get("filename"), reason),
			tags:     []string{"autoxdcc", get("packlist"), "failed"},
			priority: "high",
		}, true
	case EventUntrustedOffer:
		return payload{
			title:    "autoxdcc - Untrusted Offer",
			message:  fmt.Sprintf("Refused %s from untrusted bot %s", get("filename"), get("bot")),
			tags:     []string{"autoxdcc", get("packlist"), "untrusted"},
			priority: "high",
		}, true
	case EventPacklistError:
		var builder strings.Builder
		builder.WriteString("Error")
		if name := get("packlist"); name != "" {
			builder.WriteString(" with ")
			builder.WriteString(name)
		}
		builder.WriteString(": ")
		if msg := get("error"); msg != "" {
			builder.WriteString(msg)
		} else {
			builder.WriteString("unknown")
		}
		return payload{
			title:    "autoxdcc - Error",
			message:  builder.String(),
			tags:     []string{"autoxdcc", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return payload{
			title:    "autoxdcc - Test",
			message:  "Notification system test",
			tags:     []string{"autoxdcc", "test"},
			priority: "low",
		}, true
	default:
		return payload{}, false
	}
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
	if tags := compactTags(data.tags); len(tags) > 0 {
		req.Header.Set("Tags", strings.Join(tags, ","))
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

func compactTags(tags []string) []string {
	out := tags[:0:0]
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
