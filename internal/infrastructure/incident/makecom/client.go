// Package makecom files incident tickets through a Make.com scenario that
// fronts Jira. The webhook receives the full analysis so the scenario can
// set priority and compose the ticket without calling back.
package makecom

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pyroguard/sentinel/internal/core/domain"
	"github.com/pyroguard/sentinel/internal/infrastructure/resilience"
	"github.com/pyroguard/sentinel/internal/infrastructure/transport"
)

const (
	defaultJiraBaseURL = "https://pyroguard.atlassian.net"
	userAgent          = "PyroGuard Sentinel v1.0"
)

type Client struct {
	webhookURL  string
	jiraBaseURL string
	httpClient  *http.Client
	executor    *resilience.Executor
	logger      *slog.Logger
	now         func() time.Time
}

type Options struct {
	JiraBaseURL        string
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
	Logger             *slog.Logger
	Now                func() time.Time
}

func New(webhookURL string, options Options) *Client {
	jiraBaseURL := options.JiraBaseURL
	if jiraBaseURL == "" {
		jiraBaseURL = defaultJiraBaseURL
	}
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := options.Now
	if now == nil {
		now = time.Now
	}
	return &Client{
		webhookURL:  webhookURL,
		jiraBaseURL: strings.TrimRight(jiraBaseURL, "/"),
		httpClient:  &http.Client{Timeout: timeout},
		executor:    options.ResilienceExecutor,
		logger:      logger,
		now:         now,
	}
}

// DispatchIncident posts the analysis to the webhook and returns the ticket
// URL the scenario reports. An empty return with nil error means the webhook
// accepted the incident but did not name a ticket; the caller substitutes an
// estimated reference.
func (c *Client) DispatchIncident(ctx context.Context, analysis *domain.Analysis) (string, error) {
	if c.webhookURL == "" {
		return "", fmt.Errorf("webhook url not configured")
	}

	payload := buildPayload(analysis, c.now().UTC())
	var responseBody []byte
	call := func(callCtx context.Context) error {
		var err error
		responseBody, err = c.post(callCtx, payload)
		return err
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "makecom.webhook", call, transport.ClassifyHTTPError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", transport.WrapTemporary("makecom webhook", err)
	}

	ticket := c.extractTicketURL(responseBody)
	c.logger.Info("incident dispatched",
		"analysis_id", analysis.ID,
		"ticket", ticket,
	)
	return ticket, nil
}

// Probe implements the health check used by the system-status endpoint.
func (c *Client) Probe(ctx context.Context) error {
	if c.webhookURL == "" {
		return fmt.Errorf("webhook url not configured")
	}
	payload := map[string]any{
		"test":      true,
		"message":   "PyroGuard Sentinel webhook connectivity test",
		"timestamp": c.now().UTC().Format(time.RFC3339),
	}
	_, err := c.post(ctx, payload)
	return err
}

func (c *Client) post(ctx context.Context, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webhook request: %w", err)
	}
	defer resp.Body.Close()

	responseBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 300 {
		return nil, &transport.HTTPStatusError{
			Operation:  "makecom.webhook",
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(responseBody),
		}
	}
	return responseBody, nil
}

// ticketURLKeys are the response fields Make.com scenarios commonly use to
// report the created issue.
var ticketURLKeys = []string{
	"jira_ticket_url",
	"ticket_url",
	"issue_url",
	"jira_url",
	"url",
	"key",
	"issue_key",
}

// extractTicketURL tolerates non-JSON bodies since Make.com replies with a
// bare "Accepted" unless the scenario adds a webhook response step.
func (c *Client) extractTicketURL(body []byte) string {
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return ""
	}

	for _, key := range ticketURLKeys {
		value, ok := fields[key].(string)
		if !ok || value == "" {
			continue
		}
		if strings.HasPrefix(value, "PYRO-") && !strings.Contains(value, "atlassian.net") {
			return c.jiraBaseURL + "/browse/" + value
		}
		if strings.Contains(value, "atlassian.net") || strings.Contains(value, "jira") {
			return value
		}
	}
	return ""
}
