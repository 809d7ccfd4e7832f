package opinion

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/straja-ai/adaware/internal/evidence"
	"github.com/straja-ai/adaware/internal/risk"
)

const fullPayload = `{
  "summary": "Looks risky.",
  "label_llm": "scam-suspected",
  "sub_labels": ["urgency", 3],
  "evidence_spans": [{"text": "win cash", "kind": "risky_phrase", "reason": "bait"}, {"kind": "policy_rule"}],
  "credibility_llm": 20,
  "risk_level": "HIGH",
  "risk_signals_extra": [" Too good to be true ", "", 7],
  "product_info_updates": {"brand_name": "Acme", "detected_price": 12},
  "fusion_reasoning": {"overall_consistency": "inconsistent", "consistency_score": 0.1, "reasoning": "mismatch"},
  "explanation_refined": {"bullets": ["a", "b"], "short_takeaway": "Avoid."}
}`

func TestDecodeFullPayload(t *testing.T) {
	o, err := Decode([]byte(fullPayload))
	require.NoError(t, err)
	assert.Equal(t, "scam-suspected", o.Label)
	require.NotNil(t, o.Credibility)
	assert.Equal(t, 20.0, *o.Credibility)
	assert.Equal(t, risk.High, o.RiskLevel)
	assert.Equal(t, []string{"Too good to be true"}, o.RiskSignalsExtra)
	assert.Equal(t, []string{"urgency"}, o.SubLabels)
	require.Len(t, o.EvidenceSpans, 1)
	assert.Equal(t, evidence.KindRiskyPhrase, o.EvidenceSpans[0].Kind)
	assert.Equal(t, -1, o.EvidenceSpans[0].Start)
	assert.Equal(t, map[string]string{"brand_name": "Acme"}, o.ProductInfo)
	require.NotNil(t, o.Consistency)
	assert.Equal(t, "inconsistent", o.Consistency.Overall)
	assert.Equal(t, []string{"a", "b"}, o.Bullets)
	assert.Equal(t, "Avoid.", o.Takeaway)
	assert.Equal(t, "Looks risky.", o.Summary)
	assert.NotEmpty(t, o.Issues)
	assert.False(t, o.Empty())
}

func TestDecodeDropsMalformedFields(t *testing.T) {
	o, err := Decode([]byte(`{"label_llm": 5, "credibility_llm": "high", "risk_level": "severe", "risk_signals_extra": "nope"}`))
	require.NoError(t, err)
	assert.Empty(t, o.Label)
	assert.Nil(t, o.Credibility)
	assert.Equal(t, risk.Level(""), o.RiskLevel)
	assert.Nil(t, o.RiskSignalsExtra)
	assert.Len(t, o.Issues, 4)
	assert.True(t, o.Empty())
}

func TestDecodeCredibilityRange(t *testing.T) {
	o, err := Decode([]byte(`{"credibility": 140}`))
	require.NoError(t, err)
	assert.Nil(t, o.Credibility)
	assert.Equal(t, []string{"credibility: out of range"}, o.Issues)

	o, err = Decode([]byte("```json\n{\"credibility\": 0}\n```"))
	require.NoError(t, err)
	require.NotNil(t, o.Credibility)
	assert.Equal(t, 0.0, *o.Credibility)
}

func TestDecodeConsistencyLabel(t *testing.T) {
	o, err := Decode([]byte(`{"fusion_reasoning": {"overall_consistency": "mostly fine", "consistency_score": 0.4}}`))
	require.NoError(t, err)
	require.NotNil(t, o.Consistency)
	assert.Empty(t, o.Consistency.Overall)
	require.NotNil(t, o.Consistency.Score)
	assert.Equal(t, 0.4, *o.Consistency.Score)
	assert.Equal(t, []string{"overall_consistency: unknown value"}, o.Issues)

	o, err = Decode([]byte(`{"fusion_reasoning": {"overall_consistency": " Partially_Consistent "}}`))
	require.NoError(t, err)
	assert.Equal(t, "partially_consistent", o.Consistency.Overall)
	assert.Empty(t, o.Issues)
}

func TestDecodeRejectsNonObjects(t *testing.T) {
	for _, raw := range []string{"", "[]", "null", "not json", `"str"`} {
		_, err := Decode([]byte(raw))
		assert.ErrorIs(t, err, ErrMalformed, raw)
	}
}

func TestClientDisabled(t *testing.T) {
	c := NewClient(nil, Config{})
	assert.False(t, c.Enabled())
	assert.Equal(t, "none", c.ProviderName())
	_, err := c.Opine(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestClientTimeout(t *testing.T) {
	fake := &FakeProvider{Response: `{}`, Delay: time.Second}
	c := NewClient(fake, Config{Timeout: 20 * time.Millisecond})

	start := time.Now()
	_, err := c.Opine(context.Background(), Request{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestClientProviderError(t *testing.T) {
	fake := &FakeProvider{Err: errors.New("upstream 500")}
	c := NewClient(fake, Config{Timeout: time.Second})
	_, err := c.Opine(context.Background(), Request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "call fake")
	assert.Equal(t, int64(1), fake.Calls())
}

func TestClientRateLimitHonoursContext(t *testing.T) {
	fake := NewFake(`{"label": "generic"}`)
	c := NewClient(fake, Config{Timeout: 50 * time.Millisecond, RatePerSec: 0.001, Burst: 1})

	o, err := c.Opine(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "generic", o.Label)

	// the bucket is empty and refills far beyond the timeout
	_, err = c.Opine(context.Background(), Request{})
	require.Error(t, err)
	assert.Equal(t, int64(1), fake.Calls())
}

func TestUserPromptCarriesClassicVerdict(t *testing.T) {
	p, err := UserPrompt(Request{Text: "win cash", Classic: ClassicSnapshot{Label: "scam_like", Credibility: 10}})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p, "Analyze this ad data:\n"))
	assert.Contains(t, p, `"label": "scam_like"`)
}

func TestOpenAIProvider(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"{\"label_llm\":\"safe\",\"credibility_llm\":88}"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	p, err := NewOpenAI("sk-test", srv.URL, "gpt-test")
	require.NoError(t, err)
	c := NewClient(p, Config{Timeout: 2 * time.Second})

	o, err := c.Opine(context.Background(), Request{Text: "Nike shoes"})
	require.NoError(t, err)
	assert.Equal(t, "safe", o.Label)
	require.NotNil(t, o.Credibility)
	assert.Equal(t, 88.0, *o.Credibility)
	assert.Equal(t, "gpt-test", gotBody["model"])
	assert.Equal(t, "openai", c.ProviderName())

	_, err = NewOpenAI(" ", "", "")
	assert.Error(t, err)
}
