package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// AnalysisIDHeader carries the record id so receivers can drop retried
// deliveries.
const AnalysisIDHeader = "X-AdAware-Analysis-ID"

// webhookEvent is the receiver-facing payload. The full result and the ad
// text stay out of it; receivers fetch details from /v1/history/:id.
type webhookEvent struct {
	Event      string    `json:"event"`
	AnalysisID string    `json:"analysis_id"`
	Timestamp  time.Time `json:"timestamp"`
	Client     string    `json:"client,omitempty"`
	Domain     string    `json:"domain,omitempty"`
	FinalLabel string    `json:"final_label"`
	RiskScore  float64   `json:"risk_score"`
}

// errPermanent marks responses that retrying cannot fix.
var errPermanent = errors.New("permanent")

// WebhookSink notifies an HTTP endpoint about each analysis. 5xx responses
// and transport errors are retried; 4xx responses are not.
type WebhookSink struct {
	url      string
	headers  http.Header
	client   *http.Client
	backoffs []time.Duration
}

func NewWebhookSink(url string, headers map[string]string, timeout time.Duration) (*WebhookSink, error) {
	if url == "" {
		return nil, fmt.Errorf("webhook sink: empty url")
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	hdr := http.Header{}
	for k, v := range headers {
		hdr.Set(k, v)
	}
	hdr.Set("Content-Type", "application/json")
	return &WebhookSink{
		url:      url,
		headers:  hdr,
		client:   &http.Client{Timeout: timeout},
		backoffs: []time.Duration{100 * time.Millisecond, 400 * time.Millisecond},
	}, nil
}

func (s *WebhookSink) Name() string { return "webhook:" + s.url }

func (s *WebhookSink) Deliver(ctx context.Context, rec *Record) error {
	if rec == nil {
		return nil
	}
	body, err := json.Marshal(webhookEvent{
		Event:      "analysis.completed",
		AnalysisID: rec.ID,
		Timestamp:  rec.Timestamp,
		Client:     rec.Client,
		Domain:     rec.Domain,
		FinalLabel: rec.FinalLabel,
		RiskScore:  rec.RiskScore,
	})
	if err != nil {
		return fmt.Errorf("webhook sink: encode %s: %w", rec.ID, err)
	}

	err = s.post(ctx, rec.ID, body)
	for _, wait := range s.backoffs {
		if err == nil || errors.Is(err, errPermanent) {
			break
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
		err = s.post(ctx, rec.ID, body)
	}
	return err
}

func (s *WebhookSink) post(ctx context.Context, id string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook sink: %w", err)
	}
	req.Header = s.headers.Clone()
	req.Header.Set(AnalysisIDHeader, id)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook sink: %w", err)
	}
	defer resp.Body.Close()
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 200))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
		return fmt.Errorf("webhook sink: status %d %q: %w", resp.StatusCode, msg, errPermanent)
	default:
		return fmt.Errorf("webhook sink: status %d %q", resp.StatusCode, msg)
	}
}

func (s *WebhookSink) Close(context.Context) error { return nil }
