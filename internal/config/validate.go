package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Validate checks the loaded config for required fields and safe values.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	if strings.TrimSpace(cfg.Server.Addr) == "" {
		return errors.New("server.addr must be set")
	}

	if err := validateSecurityConfig(cfg.Security); err != nil {
		return err
	}
	if err := validateOpinionConfig(cfg.Opinion); err != nil {
		return err
	}
	if err := validateTelemetryConfig(cfg.Telemetry); err != nil {
		return err
	}
	if err := validateScoringConfig(cfg); err != nil {
		return err
	}
	if cfg.Catalog.Watch && strings.TrimSpace(cfg.Catalog.Path) == "" {
		return errors.New("catalog.watch needs catalog.path")
	}
	if err := validateHistoryConfig(cfg.History); err != nil {
		return err
	}
	return nil
}

func validateSecurityConfig(s SecurityConfig) error {
	if !s.Enabled {
		return nil
	}
	if len(s.Clients) == 0 {
		return errors.New("security enabled but no clients configured")
	}
	seen := make(map[string]string)
	for _, c := range s.Clients {
		if strings.TrimSpace(c.ID) == "" {
			return errors.New("client id must be set")
		}
		if len(c.APIKeys) == 0 && len(c.APIKeyHashes) == 0 {
			return fmt.Errorf("client %q must define api_keys or api_key_hashes", c.ID)
		}
		for _, k := range c.APIKeys {
			k = strings.TrimSpace(k)
			if k == "" {
				return fmt.Errorf("client %q has an empty api key", c.ID)
			}
			if other, dup := seen[k]; dup {
				return fmt.Errorf("api key reused by clients %q and %q", other, c.ID)
			}
			seen[k] = c.ID
		}
	}
	return nil
}

func validateOpinionConfig(o OpinionConfig) error {
	switch strings.ToLower(strings.TrimSpace(o.Provider)) {
	case "", "none":
		return nil
	case "openai", "gemini":
	default:
		return fmt.Errorf("opinion.provider must be none, openai or gemini, got %q", o.Provider)
	}
	if strings.TrimSpace(o.APIKeyEnv) == "" && strings.TrimSpace(o.APIKey) == "" {
		return fmt.Errorf("opinion provider %q missing api key (env or api_key)", o.Provider)
	}
	if o.BaseURL != "" {
		u, err := url.Parse(o.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.New("opinion.base_url is invalid")
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return errors.New("opinion.base_url must be http or https")
		}
		if err := blockPrivateHost(u.Host, o.AllowPrivateNetworks); err != nil {
			return fmt.Errorf("opinion.base_url blocked: %w", err)
		}
	}
	return nil
}

func validateTelemetryConfig(t TelemetryConfig) error {
	if !t.Enabled {
		return nil
	}
	switch strings.ToLower(strings.TrimSpace(t.Exporter)) {
	case "prometheus":
		return nil
	case "otlp":
	default:
		return fmt.Errorf("telemetry.exporter must be otlp or prometheus, got %q", t.Exporter)
	}
	if strings.TrimSpace(t.Endpoint) == "" {
		return errors.New("telemetry otlp exporter enabled but endpoint is empty")
	}
	if t.Protocol != "" {
		switch strings.ToLower(strings.TrimSpace(t.Protocol)) {
		case "grpc", "http":
		default:
			return fmt.Errorf("telemetry.protocol must be grpc or http, got %q", t.Protocol)
		}
	}
	return nil
}

func validateScoringConfig(cfg *Config) error {
	th := cfg.Scoring
	if th.HighRiskCredibility >= th.MediumRiskCredibility {
		return fmt.Errorf("scoring.high_risk_credibility (%v) must be below medium_risk_credibility (%v)",
			th.HighRiskCredibility, th.MediumRiskCredibility)
	}
	if th.ModerateLegitimacy >= th.SafeLegitimacy {
		return fmt.Errorf("scoring.moderate_legitimacy (%v) must be below safe_legitimacy (%v)",
			th.ModerateLegitimacy, th.SafeLegitimacy)
	}
	if th.PartialSimilarity >= th.ConsistentSimilarity {
		return errors.New("scoring.partial_similarity must be below consistent_similarity")
	}
	if th.OpinionWeight < 0 || th.OpinionWeight > 1 {
		return fmt.Errorf("scoring.opinion_weight must be within [0,1], got %v", th.OpinionWeight)
	}
	if th.UrgencySoftLimit > th.UrgencyHardLimit {
		return errors.New("scoring.urgency_soft_limit must not exceed urgency_hard_limit")
	}
	return nil
}

func validateHistoryConfig(h HistoryConfig) error {
	switch strings.ToLower(strings.TrimSpace(h.Backend)) {
	case "", "memory", "none":
	case "postgres":
		if strings.TrimSpace(h.DSN) == "" && strings.TrimSpace(h.DSNEnv) == "" {
			return errors.New("history.backend postgres requires dsn or dsn_env")
		}
	case "badger":
		if strings.TrimSpace(h.Path) == "" {
			return errors.New("history.backend badger requires path")
		}
	default:
		return fmt.Errorf("history.backend must be memory, postgres, badger or none, got %q", h.Backend)
	}
	for i, s := range h.Sinks {
		switch strings.ToLower(strings.TrimSpace(s.Type)) {
		case "file_jsonl":
			if strings.TrimSpace(s.Path) == "" {
				return fmt.Errorf("history sink %d (file_jsonl) missing path", i)
			}
		case "webhook":
			if strings.TrimSpace(s.URL) == "" {
				return fmt.Errorf("history sink %d (webhook) missing url", i)
			}
			u, err := url.Parse(s.URL)
			if err != nil || u.Scheme == "" || u.Host == "" {
				return fmt.Errorf("history sink %d (webhook) has invalid url", i)
			}
			if u.Scheme != "http" && u.Scheme != "https" {
				return fmt.Errorf("history sink %d (webhook) url must be http or https", i)
			}
		case "s3":
			if strings.TrimSpace(s.Bucket) == "" {
				return fmt.Errorf("history sink %d (s3) missing bucket", i)
			}
		default:
			return fmt.Errorf("history sink %d has unknown type %q", i, s.Type)
		}
	}
	return nil
}

func blockPrivateHost(hostport string, allowPrivate bool) error {
	if allowPrivate {
		return nil
	}
	host := hostport
	if strings.Contains(hostport, "]") || strings.Contains(hostport, ":") {
		h, _, err := net.SplitHostPort(hostport)
		if err == nil {
			host = h
		}
	}
	if strings.EqualFold(strings.TrimSpace(host), "localhost") {
		return errors.New("private network host localhost blocked for SSRF safety")
	}
	if ip := net.ParseIP(host); ip != nil && isPrivateIP(ip) {
		return fmt.Errorf("private network IP %s blocked for SSRF safety", ip.String())
	}
	return nil
}

var privateBlocks = []*net.IPNet{
	{IP: net.ParseIP("127.0.0.0"), Mask: net.CIDRMask(8, 32)},
	{IP: net.ParseIP("10.0.0.0"), Mask: net.CIDRMask(8, 32)},
	{IP: net.ParseIP("172.16.0.0"), Mask: net.CIDRMask(12, 32)},
	{IP: net.ParseIP("192.168.0.0"), Mask: net.CIDRMask(16, 32)},
	{IP: net.ParseIP("169.254.0.0"), Mask: net.CIDRMask(16, 32)},
	{IP: net.ParseIP("::1"), Mask: net.CIDRMask(128, 128)},
	{IP: net.ParseIP("fc00::"), Mask: net.CIDRMask(7, 128)},
	{IP: net.ParseIP("fe80::"), Mask: net.CIDRMask(10, 128)},
}

func isPrivateIP(ip net.IP) bool {
	for _, block := range privateBlocks {
		if block.Contains(ip) {
			return true
		}
	}
	return false
}
