package opinion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/straja-ai/adaware/internal/signals"
)

// ErrDisabled is returned when no provider is configured.
var ErrDisabled = errors.New("opinion provider disabled")

// Provider is an upstream model that returns a raw JSON opinion.
type Provider interface {
	Name() string
	Complete(ctx context.Context, system, user string) ([]byte, error)
}

// ClassicSnapshot is the deterministic verdict shown to the model.
type ClassicSnapshot struct {
	Label       string   `json:"label"`
	Credibility float64  `json:"credibility"`
	RiskLevel   string   `json:"risk_level"`
	RiskSignals []string `json:"risk_signals,omitempty"`
	Rules       []string `json:"rule_triggers,omitempty"`
	Advisories  []string `json:"health_advisories,omitempty"`
}

// Request is the context sent for one opinion.
type Request struct {
	Text       string                    `json:"ocr_text"`
	Vision     *signals.VisionFacts      `json:"vision,omitempty"`
	Quality    *signals.ImageQuality     `json:"image_quality,omitempty"`
	NLP        signals.NLPFacts          `json:"nlp"`
	Catalog    *signals.CatalogMatch     `json:"catalog,omitempty"`
	Domain     *signals.DomainReputation `json:"domain,omitempty"`
	Similarity *float64                  `json:"image_text_similarity,omitempty"`
	Classic    ClassicSnapshot           `json:"classic"`
}

// Config controls the opinion client.
type Config struct {
	Timeout    time.Duration
	RatePerSec float64
	Burst      int
}

// Client bounds provider calls with a timeout and a rate limit, then
// validates the payload.
type Client struct {
	provider Provider
	limiter  *rate.Limiter
	timeout  time.Duration
}

// NewClient wraps provider. A nil provider yields a client that always
// returns ErrDisabled.
func NewClient(provider Provider, cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	var limiter *rate.Limiter
	if cfg.RatePerSec > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}
	return &Client{provider: provider, limiter: limiter, timeout: timeout}
}

// Enabled reports whether a provider is wired.
func (c *Client) Enabled() bool { return c != nil && c.provider != nil }

// ProviderName returns the upstream name or "none".
func (c *Client) ProviderName() string {
	if !c.Enabled() {
		return "none"
	}
	return c.provider.Name()
}

// Opine asks the provider for an overlay. The call never outlives the
// configured timeout or ctx.
func (c *Client) Opine(ctx context.Context, req Request) (*Overlay, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	user, err := UserPrompt(req)
	if err != nil {
		return nil, err
	}
	raw, err := c.provider.Complete(ctx, SystemPrompt, user)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			return nil, fmt.Errorf("call %s: %w (%v)", c.provider.Name(), ctxErr, err)
		}
		return nil, fmt.Errorf("call %s: %w", c.provider.Name(), err)
	}
	return Decode(raw)
}

// UserPrompt renders the request context.
func UserPrompt(req Request) (string, error) {
	data, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode opinion request: %w", err)
	}
	return "Analyze this ad data:\n" + string(data), nil
}

// SystemPrompt describes the expected response schema.
const SystemPrompt = `You evaluate online ads and product promotions for safety, truthfulness and quality.

You receive a JSON analysis of one ad: extracted text, vision facts, sentiment, catalog and domain signals, and the deterministic classic verdict.

Return one JSON object and nothing else:
{
  "summary": "plain text for the end user, 2-3 short paragraphs",
  "label_llm": "safe | low-risk | moderate-risk | high-risk | scam-suspected",
  "sub_labels": ["health-claim", "financial-promise", "urgency", ...],
  "evidence_spans": [{"text": "exact phrase from the text", "kind": "risky_phrase | emotional_trigger | policy_rule", "reason": "short explanation"}],
  "credibility_llm": 0-100 (100 is fully trustworthy),
  "risk_level": "low | medium | high",
  "risk_signals_extra": ["additional risk strings"],
  "product_info_updates": {"product_name": "", "brand_name": "", "category": "", "detected_price": ""},
  "fusion_reasoning": {"overall_consistency": "consistent | partially_consistent | inconsistent", "consistency_score": 0-1, "reasoning": ""},
  "explanation_refined": {"bullets": ["3-5 short bullets"], "short_takeaway": "one sentence"}
}`
