package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/straja-ai/adaware/internal/catalog"
	"github.com/straja-ai/adaware/internal/config"
	"github.com/straja-ai/adaware/internal/engine"
	"github.com/straja-ai/adaware/internal/history"
	"github.com/straja-ai/adaware/internal/lexicon"
	"github.com/straja-ai/adaware/internal/logger"
	"github.com/straja-ai/adaware/internal/nlp"
	"github.com/straja-ai/adaware/internal/opinion"
	"github.com/straja-ai/adaware/internal/redact"
	"github.com/straja-ai/adaware/internal/telemetry"
)

var version = "dev"

// app holds everything built from config plus the closers to run on exit.
type app struct {
	cfg     *config.Config
	tel     *telemetry.Provider
	engine  *engine.Engine
	store   history.Store
	emitter *history.Emitter
	closers []func(context.Context)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := logger.InitLogger(cfg.Logging.Level, cfg.Logging.File); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, nil
}

func buildApp(ctx context.Context, cfg *config.Config, withHistory bool) (*app, error) {
	a := &app{cfg: cfg}
	ok := false
	defer func() {
		if !ok {
			a.close(context.Background())
		}
	}()

	tel, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:  cfg.Telemetry.Enabled,
		Exporter: cfg.Telemetry.Exporter,
		Endpoint: cfg.Telemetry.Endpoint,
		Protocol: cfg.Telemetry.Protocol,
		Service:  cfg.Telemetry.Service,
		Version:  version,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	a.tel = tel
	a.closers = append(a.closers, tel.Shutdown)

	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}

	deps := engine.Deps{
		Thresholds:     cfg.Scoring,
		Lexicon:        lexicon.New(cfg.Lexicon),
		Catalog:        cat,
		TrustedDomains: cfg.Reputation.TrustedDomains,
		Telemetry:      tel,
		CacheTTL:       cfg.Cache.TTL,
		CacheSize:      cfg.Cache.MaxEntries,
	}

	if dir := strings.TrimSpace(cfg.NLP.ModelDir); dir != "" {
		model, err := nlp.LoadONNXSentiment(dir)
		if err != nil {
			logger.Log.Warnf("sentiment model unavailable, using lexicon sentiment: %v", err)
		} else {
			deps.Sentiment = model
			a.closers = append(a.closers, func(context.Context) { _ = model.Close() })
		}
	}

	provider, err := buildOpinionProvider(ctx, cfg.Opinion)
	if err != nil {
		logger.Log.Warnf("opinion provider disabled: %s", redact.String(err.Error()))
	} else if provider != nil {
		if c, isCloser := provider.(io.Closer); isCloser {
			a.closers = append(a.closers, func(context.Context) { _ = c.Close() })
		}
		deps.Opinion = opinion.NewClient(provider, opinion.Config{
			Timeout:    cfg.Opinion.Timeout,
			RatePerSec: cfg.Opinion.RatePerSec,
			Burst:      cfg.Opinion.Burst,
		})
		logger.Log.Infof("opinion provider %s enabled (model %s)", provider.Name(), cfg.Opinion.Model)
	}

	if withHistory {
		if err := a.buildHistory(ctx); err != nil {
			return nil, err
		}
		if a.emitter != nil {
			deps.History = a.emitter
		}
	}

	a.engine = engine.New(deps)
	ok = true
	return a, nil
}

func buildOpinionProvider(ctx context.Context, oc config.OpinionConfig) (opinion.Provider, error) {
	name := strings.ToLower(strings.TrimSpace(oc.Provider))
	if name == "" || name == "none" {
		return nil, nil
	}
	key := oc.ResolvedAPIKey()
	if key == "" {
		return nil, fmt.Errorf("%s: no api key (set %s or opinion.api_key)", name, oc.APIKeyEnv)
	}
	switch name {
	case "openai":
		return opinion.NewOpenAI(key, oc.BaseURL, oc.Model)
	case "gemini":
		return opinion.NewGemini(ctx, key, oc.Model)
	default:
		return nil, fmt.Errorf("unknown opinion provider %q", oc.Provider)
	}
}

func (a *app) buildHistory(ctx context.Context) error {
	hc := a.cfg.History
	switch strings.ToLower(hc.Backend) {
	case "none":
	case "postgres":
		dsn := hc.ResolvedDSN()
		if dsn == "" {
			return errors.New("history: postgres backend needs a dsn")
		}
		store, err := history.OpenPostgres(ctx, dsn)
		if err != nil {
			return fmt.Errorf("history: %w", err)
		}
		a.store = store
	case "badger":
		store, err := history.OpenBadger(hc.Path)
		if err != nil {
			return fmt.Errorf("history: %w", err)
		}
		a.store = store
	default:
		a.store = history.NewMemoryStore(hc.MaxRecords)
	}
	if a.store != nil {
		store := a.store
		a.closers = append(a.closers, func(context.Context) { _ = store.Close() })
	}

	var sinks []history.Sink
	if a.store != nil {
		sinks = append(sinks, history.StoreSink{Store: a.store, Label: hc.Backend})
	}
	for _, sc := range hc.Sinks {
		switch strings.ToLower(sc.Type) {
		case "file_jsonl":
			s, err := history.NewFileSink(sc.Path)
			if err != nil {
				return fmt.Errorf("history sink %s: %w", sc.Path, err)
			}
			sinks = append(sinks, s)
		case "webhook":
			s, err := history.NewWebhookSink(sc.URL, sc.Headers, sc.Timeout)
			if err != nil {
				return fmt.Errorf("history sink webhook: %w", err)
			}
			sinks = append(sinks, s)
		case "s3":
			s, err := history.NewS3Sink(ctx, history.S3Config{
				Bucket:   sc.Bucket,
				Prefix:   sc.Prefix,
				Region:   sc.Region,
				Endpoint: sc.Endpoint,
			})
			if err != nil {
				return fmt.Errorf("history sink s3: %w", err)
			}
			sinks = append(sinks, s)
		}
	}
	if len(sinks) == 0 {
		return nil
	}

	tel := a.tel
	a.emitter = history.NewEmitter(history.EmitterConfig{
		QueueSize: hc.QueueSize,
		Workers:   hc.Workers,
		OnDrop:    func() { tel.RecordHistoryDropped(context.Background()) },
	}, sinks...)
	em := a.emitter
	// emitter drains into the store, so it must close before the store
	a.closers = append(a.closers, func(ctx context.Context) { em.Close(ctx) })
	return nil
}

// close runs closers in reverse order of creation.
func (a *app) close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i](ctx)
	}
	a.closers = nil
}
