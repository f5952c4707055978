// Package slack pages staff about level 1 triage assessments via incoming
// webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/linnemanlabs/edtriage/internal/triage"
)

const httpTimeout = 10 * time.Second

// Notifier sends triage pages to a Slack webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
}

// New creates a new Slack notifier. If webhookURL is empty, Send is a no-op.
func New(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
	}
}

// Send posts a triage record to the configured Slack webhook.
// If no webhook URL is configured, it returns nil immediately.
func (n *Notifier) Send(ctx context.Context, rec *triage.Record) error {
	if n.webhookURL == "" {
		return nil
	}

	msg := buildMessage(rec)

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func buildMessage(rec *triage.Record) map[string]any {
	return map[string]any{
		"blocks": []map[string]any{
			headerBlock(rec),
			{"type": "divider"},
			fieldsBlock(rec),
			{"type": "divider"},
			recommendationsBlock(rec),
			{"type": "divider"},
			contextBlock(rec),
		},
	}
}

func headerBlock(rec *triage.Record) map[string]any {
	text := fmt.Sprintf("\U0001f534 Level 1 Triage: patient %s", rec.PatientID)

	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": text,
		},
	}
}

func fieldsBlock(rec *triage.Record) map[string]any {
	fields := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Facility:* %s", rec.FacilityID),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Level:* %s", rec.Result.Level),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Priority score:* %d", rec.Result.PriorityScore),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Complaint:* %s", rec.ChiefComplaint),
		},
	}

	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func recommendationsBlock(rec *triage.Record) map[string]any {
	text := strings.Join(rec.Result.Recommendations, "\n• ")
	if text == "" {
		text = "_No recommendations available._"
	} else {
		text = "• " + text
	}

	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Recommendations*\n\n%s", text),
		},
	}
}

func contextBlock(rec *triage.Record) map[string]any {
	elements := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("edtriage • triage %s • %s", rec.ID, rec.CreatedAt.UTC().Format("2006-01-02 15:04 UTC")),
		},
	}

	return map[string]any{
		"type":     "context",
		"elements": elements,
	}
}
