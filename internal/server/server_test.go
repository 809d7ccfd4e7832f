package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/straja-ai/adaware/internal/auth"
	"github.com/straja-ai/adaware/internal/config"
	"github.com/straja-ai/adaware/internal/engine"
	"github.com/straja-ai/adaware/internal/history"
	"github.com/straja-ai/adaware/internal/telemetry"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// storeRecorder saves synchronously so handlers can read back immediately.
type storeRecorder struct{ store history.Store }

func (r storeRecorder) Emit(rec *history.Record) {
	_ = r.store.Save(context.Background(), *rec)
}

type fixture struct {
	srv   *Server
	store *history.MemoryStore
}

func newFixture(t *testing.T, mutate func(*config.Config)) fixture {
	t.Helper()
	cfg := config.Default()
	cfg.Security = config.SecurityConfig{Enabled: true, Clients: []config.ClientConfig{{ID: "dash", APIKeys: []string{"test-key"}}}}
	if mutate != nil {
		mutate(cfg)
	}
	authz, err := auth.NewFromConfig(cfg.Security)
	require.NoError(t, err)

	store := history.NewMemoryStore(100)
	eng := engine.New(engine.Deps{History: storeRecorder{store}, CacheTTL: cfg.Cache.TTL, CacheSize: cfg.Cache.MaxEntries})
	return fixture{srv: New(cfg, eng, store, authz, telemetry.Noop()), store: store}
}

func (f fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *bytes.Reader
	switch b := body.(type) {
	case nil:
		rdr = bytes.NewReader(nil)
	case string:
		rdr = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		rdr = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer test-key")
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode(t, rec)
	assert.Equal(t, false, body["success"])
	e, ok := body["error"].(map[string]any)
	require.True(t, ok, rec.Body.String())
	return e["code"].(string)
}

func TestHealthzNeedsNoKey(t *testing.T) {
	f := newFixture(t, nil)
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestAnalyzeRequiresKey(t *testing.T) {
	f := newFixture(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/v1/analyze", strings.NewReader(`{"text":"hi"}`))
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", errorCode(t, rec))

	req = httptest.NewRequest(http.MethodPost, "/v1/analyze", strings.NewReader(`{"text":"hi"}`))
	req.Header.Set("X-API-Key", "test-key")
	rec = httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAnalyzeScamAd(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodPost, "/v1/analyze", map[string]any{
		"text":        "Win cash now! Lottery winner, act now",
		"page_url":    "http://free-prize-win-cash-now.xyz/claim",
		"use_opinion": true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	result := body["result"].(map[string]any)
	v := result["verdict"].(map[string]any)
	assert.Equal(t, "HIGH_RISK", v["final_label"])
	assert.Equal(t, "disabled", result["opinion_status"])
	domain := result["domain"].(map[string]any)
	assert.NotEmpty(t, domain["flags"])
	assert.NotEmpty(t, result["analysis_id"])
}

func TestAnalyzeValidation(t *testing.T) {
	f := newFixture(t, nil)
	cases := []struct {
		name string
		body any
	}{
		{"malformed json", `{"text":`},
		{"similarity out of range", map[string]any{"text": "ok", "similarity": 1.5}},
		{"bad page url", map[string]any{"text": "ok", "page_url": "not a url"}},
		{"nothing to analyze", map[string]any{"text": "   "}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/v1/analyze", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "invalid_request", errorCode(t, rec))
		})
	}
}

func TestAnalyzeBodyLimit(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Server.MaxBodyBytes = 64 })
	rec := f.do(t, http.MethodPost, "/v1/analyze", map[string]any{"text": strings.Repeat("a", 200)})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "body_too_large", errorCode(t, rec))
}

func TestHistoryFeedbackAndStats(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodPost, "/v1/analyze", map[string]any{"text": "Nike running shoes"})
	require.Equal(t, http.StatusOK, rec.Code)
	id := decode(t, rec)["result"].(map[string]any)["analysis_id"].(string)

	rec = f.do(t, http.MethodGet, "/v1/history?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	items := decode(t, rec)["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "dash", items[0].(map[string]any)["client"])

	rec = f.do(t, http.MethodGet, "/v1/history/"+id, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/history/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", errorCode(t, rec))

	rec = f.do(t, http.MethodGet, "/v1/history?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/feedback", map[string]any{"analysis_id": id, "user_label": "dodgy", "is_correct": false})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/feedback", map[string]any{"analysis_id": id})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "is_correct is required")

	rec = f.do(t, http.MethodPost, "/v1/feedback", map[string]any{"analysis_id": "nope", "is_correct": true})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/feedback", map[string]any{"analysis_id": id, "user_label": "high_risk", "is_correct": false})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/v1/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	stats := body["stats"].(map[string]any)
	assert.EqualValues(t, 1, stats["total_analyses"])
	assert.EqualValues(t, 1, stats["feedback_count"])
	assert.EqualValues(t, 1, stats["incorrect"])
	assert.Contains(t, body, "cache")
}

func TestHistoryDisabled(t *testing.T) {
	cfg := config.Default()
	authz, err := auth.NewFromConfig(cfg.Security)
	require.NoError(t, err)
	srv := New(cfg, engine.New(engine.Deps{}), nil, authz, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/history", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "history_disabled", errorCode(t, rec))
}

func TestMetricsEndpoint(t *testing.T) {
	tel, err := telemetry.NewProvider(context.Background(), telemetry.Config{Enabled: true, Exporter: "prometheus"})
	require.NoError(t, err)
	defer tel.Shutdown(context.Background())

	cfg := config.Default()
	authz, err := auth.NewFromConfig(cfg.Security)
	require.NoError(t, err)
	eng := engine.New(engine.Deps{Telemetry: tel})
	srv := New(cfg, eng, history.NewMemoryStore(10), authz, tel)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/analyze", strings.NewReader(`{"text":"Flash sale, buy now"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "adaware_evaluations_total")
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, "/v2/nothing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", errorCode(t, rec))
}
