package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"autoxdcc/internal/fileutil"
	"autoxdcc/internal/logging"
	"autoxdcc/internal/services"
)

const (
	defaultHTTPTimeout  = 10 * time.Second
	defaultHTTPAttempts = 3
	botNamePlaceholder  = "{bot_name}"
	userAgent           = "autoxdcc/0.1"
	maxBodyBytes        = 32 << 20
)

// HTTPOptions configures an HTTP source.
type HTTPOptions struct {
	URL string
	// QueryTemplate is a query string such as "bot={bot_name}" merged into
	// URL after interpolation.
	QueryTemplate string
	Timeout       time.Duration
	Attempts      int
	SnapshotPath  string
	Client        *http.Client
	Logger        *slog.Logger
}

// HTTP fetches a packlist from a web endpoint.
type HTTP struct {
	url          string
	template     string
	attempts     int
	snapshotPath string
	client       *http.Client
	logger       *slog.Logger
}

// NewHTTP builds an HTTP source.
func NewHTTP(opts HTTPOptions) *HTTP {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	attempts := opts.Attempts
	if attempts <= 0 {
		attempts = defaultHTTPAttempts
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &HTTP{
		url:          strings.TrimSpace(opts.URL),
		template:     strings.TrimSpace(opts.QueryTemplate),
		attempts:     attempts,
		snapshotPath: opts.SnapshotPath,
		client:       client,
		logger:       logging.NewComponentLogger(opts.Logger, "source"),
	}
}

// RequestURL returns the URL fetched for botHint.
func (h *HTTP) RequestURL(botHint string) (string, error) {
	u, err := url.Parse(h.url)
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "source", "parse url", h.url, err)
	}
	if h.template == "" {
		return u.String(), nil
	}
	extra, err := url.ParseQuery(strings.ReplaceAll(h.template, botNamePlaceholder, botHint))
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "source", "parse query template", h.template, err)
	}
	query := u.Query()
	for key, values := range extra {
		for _, value := range values {
			query.Add(key, value)
		}
	}
	u.RawQuery = query.Encode()
	return u.String(), nil
}

// FetchContent implements Source.
func (h *HTTP) FetchContent(ctx context.Context, botHint string, forceFresh bool) ([]string, error) {
	if !forceFresh {
		lines, ok, err := readSnapshot(h.snapshotPath)
		if err != nil {
			h.logger.Debug("snapshot unreadable, fetching", logging.Error(err))
		} else if ok {
			return lines, nil
		}
	}

	target, err := h.RequestURL(botHint)
	if err != nil {
		return nil, err
	}

	var body []byte
	for attempt := 1; attempt <= h.attempts; attempt++ {
		body, err = h.get(ctx, target)
		if err == nil {
			break
		}
		if ctx.Err() != nil || !services.Retryable(err) {
			return nil, err
		}
		h.logger.Debug("packlist fetch attempt failed",
			logging.Int("attempt", attempt),
			logging.Int("attempts", h.attempts),
			logging.Error(err),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch %s after %d attempts: %w", h.url, h.attempts, err)
	}

	lines, err := fileutil.SplitLines(bytes.NewReader(body))
	if err != nil {
		return nil, services.Wrap(services.ErrRemote, "source", "read packlist", "", err)
	}
	if err := writeSnapshot(h.snapshotPath, body); err != nil {
		logging.WarnWithContext(h.logger, "packlist snapshot not saved", "snapshot_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "offline status views will show older content"),
			logging.String(logging.FieldErrorHint, "check that state_dir is writable"),
		)
	}
	return lines, nil
}

func (h *HTTP) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "source", "build request", "", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, services.Wrap(services.ErrRemote, "source", "fetch",
			fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))), nil)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, classifyTransportError(err)
	}
	return body, nil
}

func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return services.Wrap(services.ErrTimeout, "source", "fetch", "request timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return services.Wrap(services.ErrTransient, "source", "fetch", "connection failed", err)
}
