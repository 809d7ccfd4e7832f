package auth

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/straja-ai/adaware/internal/config"
)

func securityConfig() config.SecurityConfig {
	no := false
	return config.SecurityConfig{
		Enabled: true,
		Clients: []config.ClientConfig{
			{ID: "dashboard", APIKeys: []string{"dash-key"}},
			{ID: "batch", APIKeys: []string{"batch-key", " "}, AllowOpinion: &no},
		},
	}
}

func TestLookup(t *testing.T) {
	a, err := NewFromConfig(securityConfig())
	require.NoError(t, err)

	c, ok := a.Lookup("dash-key")
	require.True(t, ok)
	assert.Equal(t, "dashboard", c.ID)
	assert.True(t, c.AllowOpinion)

	c, ok = a.Lookup("batch-key")
	require.True(t, ok)
	assert.False(t, c.AllowOpinion)

	_, ok = a.Lookup("")
	assert.False(t, ok)
}

func TestDuplicateKeyRejected(t *testing.T) {
	cfg := securityConfig()
	cfg.Clients[1].APIKeys = []string{"dash-key"}
	_, err := NewFromConfig(cfg)
	assert.Error(t, err)
}

func TestAuthenticate(t *testing.T) {
	a, err := NewFromConfig(securityConfig())
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/v1/analyze", nil)
	_, ok := a.Authenticate(req)
	assert.False(t, ok, "missing key must be rejected")

	req.Header.Set("Authorization", "Bearer dash-key")
	c, ok := a.Authenticate(req)
	require.True(t, ok)
	assert.Equal(t, "dashboard", c.ID)

	req = httptest.NewRequest("POST", "/v1/analyze", nil)
	req.Header.Set("X-API-Key", "batch-key")
	c, ok = a.Authenticate(req)
	require.True(t, ok)
	assert.Equal(t, "batch", c.ID)

	req.Header.Set("X-API-Key", "wrong")
	_, ok = a.Authenticate(req)
	assert.False(t, ok)
}

func TestAuthenticateDisabled(t *testing.T) {
	a, err := NewFromConfig(config.SecurityConfig{})
	require.NoError(t, err)
	c, ok := a.Authenticate(httptest.NewRequest("GET", "/v1/history", nil))
	require.True(t, ok)
	assert.Equal(t, Anonymous, c)
}

func TestHashedKeys(t *testing.T) {
	hash, err := HashKey("partner-secret")
	require.NoError(t, err)

	a, err := NewFromConfig(config.SecurityConfig{
		Enabled: true,
		Clients: []config.ClientConfig{{ID: "partner", APIKeyHashes: []string{hash}}},
	})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		c, ok := a.Lookup("partner-secret")
		require.True(t, ok)
		assert.Equal(t, "partner", c.ID)
	}
	_, ok := a.Lookup("partner-secreT")
	assert.False(t, ok)

	_, err = NewFromConfig(config.SecurityConfig{Clients: []config.ClientConfig{{ID: "x", APIKeyHashes: []string{"plain"}}}})
	assert.Error(t, err)

	_, err = HashKey(" ")
	assert.Error(t, err)
}
