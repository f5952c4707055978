// Package aiservice implements the external triage assessor against the AI
// assessment service's HTTP API. Calls go through a circuit breaker so a
// struggling service is skipped quickly instead of burning the full timeout
// on every submission.
package aiservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/edtriage/internal/triage"
)

// Client calls the AI assessment service. It implements triage.Assessor.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     log.Logger
}

// New creates a client for the AI assessment service at baseURL. The HTTP
// client carries no timeout of its own; the engine bounds each call through
// the request context.
func New(baseURL string, logger log.Logger) *Client {
	if logger == nil {
		logger = log.Nop()
	}

	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{},
		logger:     logger,
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "aiservice",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn(context.Background(), "assessor breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return c
}

// Assess sends the submission to the assessment service and returns its
// classification. An open breaker fails immediately without a network call.
func (c *Client) Assess(ctx context.Context, req *triage.AssessorRequest) (*triage.Result, error) {
	out, err := c.breaker.Execute(func() (any, error) {
		return c.assess(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return out.(*triage.Result), nil
}

func (c *Client) assess(ctx context.Context, req *triage.AssessorRequest) (*triage.Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/triage/assess", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("aiservice error %d: %s", resp.StatusCode, string(respBody))
	}

	var out triage.Result
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return &out, nil
}
