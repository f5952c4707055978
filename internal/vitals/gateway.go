// Package vitals calls the video vital-sign extraction endpoint of the AI
// assessment service. Extraction is best effort: any failure yields nil and
// the submission continues with whatever vitals were entered manually.
package vitals

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/edtriage/internal/triage"
)

// DefaultTimeout bounds one extraction call. Video analysis is slower than a
// text assessment, so it gets a longer leash.
const DefaultTimeout = 30 * time.Second

// Gateway extracts vital signs from patient video. It implements
// triage.VitalsExtractor.
type Gateway struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	logger     log.Logger
}

// New creates a Gateway against the AI service at baseURL. A non-positive
// timeout falls back to DefaultTimeout.
func New(baseURL string, timeout time.Duration, logger log.Logger) *Gateway {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Gateway{
		baseURL:    baseURL,
		timeout:    timeout,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// Extract uploads the video and returns the extracted vital signs, or nil if
// extraction failed or found nothing.
func (g *Gateway) Extract(ctx context.Context, video []byte) *triage.VitalSigns {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	vs, err := g.extract(ctx, video)
	if err != nil {
		g.logger.Warn(ctx, "vital sign extraction failed, continuing without", "error", err.Error())
		return nil
	}
	return vs
}

func (g *Gateway) extract(ctx context.Context, video []byte) (*triage.VitalSigns, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("video", "recording.webm")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(video); err != nil {
		return nil, fmt.Errorf("write video: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.baseURL+"/api/vital-signs/extract", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("extraction error %d: %s", resp.StatusCode, string(respBody))
	}

	var out struct {
		VitalSigns *triage.VitalSigns `json:"vitalSigns"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return out.VitalSigns, nil
}
