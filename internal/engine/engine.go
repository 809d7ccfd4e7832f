package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"github.com/straja-ai/adaware/internal/cache"
	"github.com/straja-ai/adaware/internal/catalog"
	"github.com/straja-ai/adaware/internal/evidence"
	"github.com/straja-ai/adaware/internal/explain"
	"github.com/straja-ai/adaware/internal/fusion"
	"github.com/straja-ai/adaware/internal/history"
	"github.com/straja-ai/adaware/internal/lexicon"
	"github.com/straja-ai/adaware/internal/logger"
	"github.com/straja-ai/adaware/internal/nlp"
	"github.com/straja-ai/adaware/internal/opinion"
	"github.com/straja-ai/adaware/internal/reputation"
	"github.com/straja-ai/adaware/internal/rules"
	"github.com/straja-ai/adaware/internal/scoring"
	"github.com/straja-ai/adaware/internal/signals"
	"github.com/straja-ai/adaware/internal/telemetry"
	"github.com/straja-ai/adaware/internal/verdict"
)

// Opiner is the external opinion source. *opinion.Client satisfies it.
type Opiner interface {
	Enabled() bool
	ProviderName() string
	Opine(ctx context.Context, req opinion.Request) (*opinion.Overlay, error)
}

// Recorder receives finished analyses. *history.Emitter satisfies it.
type Recorder interface {
	Emit(rec *history.Record)
}

// Deps wires the engine's collaborators. Zero values fall back to the
// built-in vocabulary, catalog and thresholds with opinion and history off.
type Deps struct {
	Thresholds     scoring.Thresholds
	Lexicon        *lexicon.Set
	Catalog        *catalog.Catalog
	TrustedDomains []string
	Sentiment      nlp.SentimentModel
	Opinion        Opiner
	History        Recorder
	Telemetry      *telemetry.Provider
	CacheTTL       time.Duration
	CacheSize      int
}

// Options tune a single evaluation.
type Options struct {
	UseOpinion bool
	ClientID   string
}

// Engine runs the fusion and scoring pipeline.
type Engine struct {
	th         scoring.Thresholds
	catalog    atomic.Pointer[catalog.Catalog]
	trusted    []string
	analyzer   *nlp.Analyzer
	rules      *rules.Engine
	extractor  *evidence.Extractor
	classifier *scoring.Classifier
	merger     *fusion.Merger
	builder    *verdict.Builder
	composer   *explain.Composer
	opinion    Opiner
	history    Recorder
	tel        *telemetry.Provider

	cache *cache.LRU[Result]
	group singleflight.Group
}

// New builds an engine from deps.
func New(deps Deps) *Engine {
	set := deps.Lexicon
	if set == nil {
		set = lexicon.Default()
	}
	cat := deps.Catalog
	if cat == nil {
		cat = catalog.Default()
	}
	tel := deps.Telemetry
	if tel == nil {
		tel = telemetry.Noop()
	}
	th := deps.Thresholds.WithDefaults()
	e := &Engine{
		th:         th,
		trusted:    deps.TrustedDomains,
		analyzer:   nlp.NewAnalyzer(set, deps.Sentiment),
		rules:      rules.New(set),
		extractor:  evidence.NewExtractor(set),
		classifier: scoring.NewClassifier(set),
		merger:     fusion.NewMerger(th),
		builder:    verdict.NewBuilder(th),
		composer:   explain.NewComposer(set),
		opinion:    deps.Opinion,
		history:    deps.History,
		tel:        tel,
		cache:      cache.New(deps.CacheTTL, deps.CacheSize, cloneResult),
	}
	e.catalog.Store(cat)
	return e
}

// SetCatalog swaps the brand catalog used by later evaluations and drops
// cached results that were scored against the previous one.
func (e *Engine) SetCatalog(c *catalog.Catalog) {
	if c == nil {
		return
	}
	e.catalog.Store(c)
	e.cache.Purge()
	logger.Log.Infof("engine: catalog replaced (%d brands)", c.Len())
}

// OpinionEnabled reports whether an opinion provider is wired.
func (e *Engine) OpinionEnabled() bool {
	return e.opinion != nil && e.opinion.Enabled()
}

// CacheStats returns entries and hit rate of the result cache.
func (e *Engine) CacheStats() (int, float64) {
	return e.cache.Len(), e.cache.HitRate()
}

// Evaluate scores one ad. Identical concurrent requests share a single
// computation; a canceled ctx returns early without caching anything.
func (e *Engine) Evaluate(ctx context.Context, b signals.Bundle, opts Options) (*Result, error) {
	b = b.Finite()
	useOpinion := opts.UseOpinion && e.OpinionEnabled()
	key, err := fingerprint(b, useOpinion)
	if err != nil {
		return nil, err
	}

	if r, ok := e.cache.Get(key); ok {
		e.tel.RecordCacheLookup(ctx, true)
		r.Cached = true
		return &r, nil
	}
	e.tel.RecordCacheLookup(ctx, false)

	// a follower whose leader was canceled retries once as leader
	for attempt := 0; attempt < 2; attempt++ {
		ch := e.group.DoChan(key, func() (any, error) {
			return e.compute(ctx, key, b, opts)
		})
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-ch:
			if res.Err != nil {
				if isContextErr(res.Err) && ctx.Err() == nil {
					continue
				}
				return nil, res.Err
			}
			r := res.Val.(Result)
			if res.Shared {
				r = cloneResult(r)
			}
			return &r, nil
		}
	}
	r, err := e.compute(ctx, key, b, opts)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (e *Engine) compute(ctx context.Context, key string, b signals.Bundle, opts Options) (Result, error) {
	start := time.Now()
	ctx, span := e.tel.Tracer().Start(ctx, "engine.evaluate")
	defer span.End()

	r := e.classic(b)
	r.Fingerprint = key

	classicProfile := e.classicInput(r)
	op, status := e.ask(ctx, b, r, opts)
	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, "canceled")
		return Result{}, err
	}
	r.Opinion, r.OpinionStatus = op, status

	r.Profile = e.merger.Merge(classicProfile, op)
	if op != nil {
		for _, s := range op.EvidenceSpans {
			r.Evidence = append(r.Evidence, evidence.Anchor(r.Text, s))
		}
		r.Evidence = evidence.Dedupe(r.Evidence)
	}
	r.Consistency = e.merger.Consistency(b.Similarity, b.Quality, op)
	r.Verdict = e.builder.Build(r.Profile, r.Rules, r.Classic.HealthAdvisory)

	view := b
	view.NLP = &r.NLP
	view.Catalog = r.Catalog
	r.Explanation = e.composer.Compose(r.Profile, r.Verdict, view, r.Consistency, op)
	r.ProductInfo = productInfo(b.Vision, r.Catalog, op)

	r.ID = uuid.NewString()
	r.Timestamp = time.Now().UTC()
	if r.Evidence == nil {
		r.Evidence = []evidence.Span{}
	}
	if r.Rules == nil {
		r.Rules = []rules.Trigger{}
	}

	e.cache.Set(key, r)
	e.record(r, b, opts.ClientID)

	span.SetAttributes(telemetry.SafeAttributes(map[string]interface{}{
		"adaware.label":          string(r.Verdict.Label),
		"adaware.classic_label":  r.Classic.Label,
		"adaware.credibility":    r.Profile.CredibilityFinal,
		"adaware.opinion_status": r.OpinionStatus,
		"adaware.rule_ids":       ruleIDs(r.Rules),
		"adaware.spans":          len(r.Evidence),
	})...)
	e.tel.RecordEvaluation(ctx, string(r.Verdict.Label), r.Verdict.Source, r.OpinionStatus, opts.ClientID, float64(time.Since(start).Microseconds())/1000)

	logger.Log.WithFields(logrus.Fields{
		"analysis_id": r.ID,
		"label":       r.Verdict.Label,
		"credibility": r.Profile.CredibilityFinal,
		"opinion":     r.OpinionStatus,
		"rules":       len(r.Rules),
	}).Debug("evaluation complete")
	return r, nil
}

// classic runs every deterministic stage. Missing collaborator output is
// filled from the local fallbacks.
func (e *Engine) classic(b signals.Bundle) Result {
	text := b.NormalizedText()
	r := Result{Text: text}

	if b.NLP != nil {
		r.NLP = *b.NLP
	} else {
		r.NLP = e.analyzer.Analyze(text)
	}

	r.Catalog = b.Catalog
	if r.Catalog == nil {
		brand := ""
		if b.Vision != nil {
			brand = b.Vision.Brand
		}
		r.Catalog = e.catalog.Load().Lookup(brand, text)
	}

	r.Domain = b.Domain
	if r.Domain == nil && strings.TrimSpace(b.PageURL) != "" {
		rep := reputation.Check(b.PageURL)
		r.Domain = &rep
	}

	r.Rules = e.rules.Evaluate(text)
	spans, tags := e.extractor.Extract(text)
	r.Evidence = spans

	c := &r.Classic
	c.Label, c.Probability = e.classifier.PredictLabel(text)
	c.OCRQuality = scoring.OCRQuality(b)
	c.Confidence = scoring.ModelConfidence(b.Vision.OK(), c.OCRQuality, r.Catalog != nil, b.Similarity)
	c.DomainTrust = reputation.Trust(r.Domain, e.trusted)

	catalogTrust := ""
	if r.Catalog != nil {
		catalogTrust = scoring.NormalizeCatalogTrust(r.Catalog.TrustBaseline)
	}
	c.Legitimacy = e.th.Legitimacy(c.Label, catalogTrust, c.DomainTrust, r.NLP.Sentiment.Score, len(r.NLP.StrongPhrases))
	c.RiskLevel = e.th.InferRiskLevel(c.Label, c.Legitimacy)
	c.Authenticity = scoring.Authenticity(c.Confidence, b.Similarity)
	c.URLTrust = scoring.URLTrust(text)
	c.Subcategories = scoring.Subcategories(tags, r.Rules)
	c.HealthAdvisory = scoring.HealthAdvisories(text, r.Catalog)
	return r
}

func (e *Engine) classicInput(r Result) fusion.Classic {
	cred := r.Classic.Legitimacy
	return fusion.Classic{
		Label:       r.Classic.Label,
		Credibility: &cred,
		RiskLevel:   r.Classic.RiskLevel,
		RiskSignals: e.th.RiskSignals(r.Classic.Label, cred, r.NLP.StrongPhrases, r.Text),
		Reasons:     scoring.TrustReasons(r.NLP, r.Classic.Authenticity, r.Rules),
	}
}

// ask calls the opinion provider. Any failure degrades to classic-only.
func (e *Engine) ask(ctx context.Context, b signals.Bundle, r Result, opts Options) (*opinion.Overlay, string) {
	if !e.OpinionEnabled() {
		return nil, OpinionDisabled
	}
	if !opts.UseOpinion {
		return nil, OpinionSkipped
	}

	req := opinion.Request{
		Text:       r.Text,
		Vision:     b.Vision,
		Quality:    b.Quality,
		NLP:        r.NLP,
		Catalog:    r.Catalog,
		Domain:     r.Domain,
		Similarity: b.Similarity,
		Classic: opinion.ClassicSnapshot{
			Label:       r.Classic.Label,
			Credibility: r.Classic.Legitimacy,
			RiskLevel:   string(r.Classic.RiskLevel),
			RiskSignals: e.th.RiskSignals(r.Classic.Label, r.Classic.Legitimacy, r.NLP.StrongPhrases, r.Text),
			Rules:       ruleIDs(r.Rules),
			Advisories:  r.Classic.HealthAdvisory,
		},
	}

	ctx, span := e.tel.Tracer().Start(ctx, "engine.opinion")
	defer span.End()
	start := time.Now()
	op, err := e.opinion.Opine(ctx, req)
	status := opinionStatus(err)
	e.tel.RecordOpinion(ctx, e.opinion.ProviderName(), status, float64(time.Since(start).Microseconds())/1000)
	if err != nil {
		span.SetStatus(codes.Error, status)
		logger.Log.WithFields(logrus.Fields{
			"provider": e.opinion.ProviderName(),
			"status":   status,
		}).Warnf("opinion unavailable, continuing classic-only: %v", err)
		return nil, status
	}
	if len(op.Issues) > 0 {
		logger.Log.WithField("provider", e.opinion.ProviderName()).
			Warnf("opinion fields dropped: %s", strings.Join(op.Issues, "; "))
	}
	return op, status
}

func opinionStatus(err error) string {
	switch {
	case err == nil:
		return OpinionOK
	case errors.Is(err, opinion.ErrDisabled):
		return OpinionDisabled
	case errors.Is(err, context.DeadlineExceeded):
		return OpinionTimeout
	case errors.Is(err, opinion.ErrMalformed):
		return OpinionMalformed
	default:
		return OpinionError
	}
}

func (e *Engine) record(r Result, b signals.Bundle, clientID string) {
	if e.history == nil {
		return
	}
	payload, err := json.Marshal(r)
	if err != nil {
		logger.Log.Warnf("history: marshal result %s: %v", r.ID, err)
		return
	}
	domain := ""
	if r.Domain != nil {
		domain = r.Domain.Domain
	}
	e.history.Emit(&history.Record{
		ID:          r.ID,
		Timestamp:   r.Timestamp,
		Client:      clientID,
		URL:         b.PageURL,
		Domain:      domain,
		FinalLabel:  string(r.Verdict.Label),
		RiskScore:   r.Verdict.RiskScore,
		Snippet:     history.Snippet(r.Text),
		Fingerprint: r.Fingerprint,
		Result:      payload,
	})
}

// productInfo layers vision facts over the catalog entry, then applies the
// opinion's updates.
func productInfo(v *signals.VisionFacts, m *signals.CatalogMatch, op *opinion.Overlay) map[string]string {
	info := map[string]string{}
	set := func(k, val string) {
		if val = strings.TrimSpace(val); val != "" {
			info[k] = val
		}
	}
	if m != nil {
		set("brand_name", m.PrimaryName())
		set("category", m.Category)
		set("price_range", m.PriceRange)
	}
	if v != nil {
		set("brand_name", v.Brand)
		set("product_name", v.ProductName)
		set("category", v.Category)
		set("visual_description", v.Description)
	}
	if op != nil {
		for k, val := range op.ProductInfo {
			set(k, val)
		}
	}
	return info
}

func fingerprint(b signals.Bundle, useOpinion bool) (string, error) {
	b.Text = b.NormalizedText()
	data, err := json.Marshal(b)
	if err != nil {
		return "", fmt.Errorf("fingerprint bundle: %w", err)
	}
	return cache.Fingerprint(string(data), strconv.FormatBool(useOpinion)), nil
}

func ruleIDs(triggers []rules.Trigger) []string {
	out := make([]string, 0, len(triggers))
	for _, t := range triggers {
		out = append(out, t.RuleID)
	}
	return out
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
