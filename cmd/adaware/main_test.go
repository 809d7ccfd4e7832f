package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/straja-ai/adaware/internal/auth"
	"github.com/straja-ai/adaware/internal/config"
	"github.com/straja-ai/adaware/internal/engine"
	"github.com/straja-ai/adaware/internal/explain"
	"github.com/straja-ai/adaware/internal/history"
	"github.com/straja-ai/adaware/internal/rules"
	"github.com/straja-ai/adaware/internal/signals"
	"github.com/straja-ai/adaware/internal/verdict"
)

func resetFlags(t *testing.T) {
	t.Helper()
	analyzeText, analyzePageURL = "", ""
	t.Cleanup(func() { analyzeText, analyzePageURL = "", "" })
}

func TestReadBundleFromFileWithOverrides(t *testing.T) {
	resetFlags(t)
	path := filepath.Join(t.TempDir(), "ad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"text":"Limited offer","ocr_confidence":0.9}`), 0o600))

	analyzePageURL = "https://shop.example.com/deal"
	b, err := readBundle(nil, []string{path})
	require.NoError(t, err)
	assert.Equal(t, "Limited offer", b.Text)
	assert.Equal(t, 0.9, b.OCRConfidence)
	assert.Equal(t, "https://shop.example.com/deal", b.PageURL)
}

func TestReadBundleFromStdin(t *testing.T) {
	resetFlags(t)
	b, err := readBundle(strings.NewReader(`{"text":"hello"}`), []string{"-"})
	require.NoError(t, err)
	assert.Equal(t, "hello", b.Text)
}

func TestReadBundleRequiresContent(t *testing.T) {
	resetFlags(t)
	_, err := readBundle(nil, nil)
	require.Error(t, err)
}

func TestBuildAppDefaultsRecordsHistory(t *testing.T) {
	cfg := config.Default()
	cfg.History.Sinks = []config.SinkConfig{{Type: "file_jsonl", Path: filepath.Join(t.TempDir(), "history.jsonl")}}

	a, err := buildApp(context.Background(), cfg, true)
	require.NoError(t, err)
	require.NotNil(t, a.store)
	require.NotNil(t, a.emitter)
	assert.False(t, a.engine.OpinionEnabled())

	res, err := a.engine.Evaluate(context.Background(), signals.Bundle{Text: "Congratulations! You won a free iPhone, claim now"}, engine.Options{})
	require.NoError(t, err)
	assert.Equal(t, engine.OpinionDisabled, res.OpinionStatus)

	a.close(context.Background())

	rec, err := a.store.Get(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, res.ID, rec.ID)

	_, err = a.store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, history.ErrNotFound)
}

func TestBuildAppWithoutKeyDisablesOpinion(t *testing.T) {
	t.Setenv("ADAWARE_MISSING_KEY", "")
	cfg := config.Default()
	cfg.Opinion.Provider = "openai"
	cfg.Opinion.APIKeyEnv = "ADAWARE_MISSING_KEY"

	a, err := buildApp(context.Background(), cfg, false)
	require.NoError(t, err)
	defer a.close(context.Background())
	assert.False(t, a.engine.OpinionEnabled())
	assert.Nil(t, a.store)
}

func TestWriteResult(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeResult(&buf, &engine.Result{ID: "a1", OpinionStatus: engine.OpinionSkipped}, false))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "a1", got["analysis_id"])
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
}

func TestRenderReport(t *testing.T) {
	res := &engine.Result{
		ID:            "a1",
		OpinionStatus: engine.OpinionDisabled,
		Verdict:       verdict.Verdict{Label: verdict.HighRisk, RiskScore: 0.9, Legitimacy: 12},
		Rules:         []rules.Trigger{{RuleID: "S1", Severity: rules.SeverityHigh, Description: "Scam bait"}},
		Explanation:   explain.Explanation{Takeaway: "Avoid.", Bullets: []string{"Prize bait"}, WorthIt: explain.WorthNo},
	}
	out := renderReport(res)
	for _, want := range []string{"HIGH_RISK", "risk 0.90", "Avoid.", "Prize bait", "S1", "Worth it: no", "analysis a1"} {
		assert.Contains(t, out, want)
	}
	assert.False(t, isTerminal(&bytes.Buffer{}))
}

func TestHashKeyCommand(t *testing.T) {
	var out bytes.Buffer
	hashKeyCmd.SetIn(strings.NewReader("team-key\n"))
	hashKeyCmd.SetOut(&out)
	require.NoError(t, hashKeyCmd.RunE(hashKeyCmd, nil))

	a, err := auth.NewFromConfig(config.SecurityConfig{
		Enabled: true,
		Clients: []config.ClientConfig{{ID: "team", APIKeyHashes: []string{strings.TrimSpace(out.String())}}},
	})
	require.NoError(t, err)
	c, ok := a.Lookup("team-key")
	require.True(t, ok)
	assert.Equal(t, "team", c.ID)
}
