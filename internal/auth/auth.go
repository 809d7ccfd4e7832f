package auth

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/straja-ai/adaware/internal/config"
)

// Anonymous is the client used when key checking is disabled.
var Anonymous = Client{ID: "anonymous", AllowOpinion: true}

// Client is the runtime representation of an API caller.
type Client struct {
	ID           string
	AllowOpinion bool
}

type hashedKey struct {
	hash []byte
	cli  Client
}

// Auth maps API keys to clients. Keys may be configured in clear or as
// bcrypt hashes; a hashed key is verified once and then remembered.
type Auth struct {
	enabled     bool
	apiKeyToCli map[string]Client
	hashed      []hashedKey

	mu       sync.RWMutex
	verified map[string]Client
}

// NewFromConfig builds an Auth instance from the security section.
func NewFromConfig(cfg config.SecurityConfig) (*Auth, error) {
	a := &Auth{
		enabled:     cfg.Enabled,
		apiKeyToCli: make(map[string]Client),
		verified:    make(map[string]Client),
	}

	for _, c := range cfg.Clients {
		if c.ID == "" {
			return nil, fmt.Errorf("client with empty id in config")
		}
		cli := Client{ID: c.ID, AllowOpinion: c.AllowOpinion == nil || *c.AllowOpinion}
		for _, key := range c.APIKeys {
			key = strings.TrimSpace(key)
			if key == "" {
				continue
			}
			if _, exists := a.apiKeyToCli[key]; exists {
				return nil, fmt.Errorf("api key assigned to multiple clients (second: %q)", c.ID)
			}
			a.apiKeyToCli[key] = cli
		}
		for _, h := range c.APIKeyHashes {
			h = strings.TrimSpace(h)
			if _, err := bcrypt.Cost([]byte(h)); err != nil {
				return nil, fmt.Errorf("client %q: invalid api key hash: %w", c.ID, err)
			}
			a.hashed = append(a.hashed, hashedKey{hash: []byte(h), cli: cli})
		}
	}
	return a, nil
}

// HashKey returns the bcrypt hash to put under api_key_hashes.
func HashKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("empty api key")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Enabled reports whether requests must carry a known key.
func (a *Auth) Enabled() bool {
	return a != nil && a.enabled
}

// Lookup returns the client for a given API key, if any.
func (a *Auth) Lookup(apiKey string) (Client, bool) {
	if a == nil || apiKey == "" {
		return Client{}, false
	}
	if c, ok := a.apiKeyToCli[apiKey]; ok {
		return c, true
	}
	if len(a.hashed) == 0 {
		return Client{}, false
	}

	a.mu.RLock()
	c, ok := a.verified[apiKey]
	a.mu.RUnlock()
	if ok {
		return c, true
	}
	// bcrypt silently truncates at 72 bytes
	if len(apiKey) > 72 {
		return Client{}, false
	}
	for _, hk := range a.hashed {
		if bcrypt.CompareHashAndPassword(hk.hash, []byte(apiKey)) == nil {
			a.mu.Lock()
			a.verified[apiKey] = hk.cli
			a.mu.Unlock()
			return hk.cli, true
		}
	}
	return Client{}, false
}

// Authenticate resolves the caller of r. With checking disabled every
// request maps to Anonymous.
func (a *Auth) Authenticate(r *http.Request) (Client, bool) {
	if !a.Enabled() {
		return Anonymous, true
	}
	key := KeyFromRequest(r)
	if key == "" {
		return Client{}, false
	}
	return a.Lookup(key)
}

// KeyFromRequest reads a bearer token or the X-API-Key header.
func KeyFromRequest(r *http.Request) string {
	if h := strings.TrimSpace(r.Header.Get("Authorization")); h != "" {
		if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
			return strings.TrimSpace(h[7:])
		}
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}
