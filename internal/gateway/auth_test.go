package gateway

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jarvislabs/jarvis/internal/config"
)

func TestResolveAuth_FromConfig(t *testing.T) {
	auth := ResolveAuth(config.GatewayAuth{Token: "my-token"})
	assert.Equal(t, "my-token", auth.Token)
	assert.True(t, auth.Enabled())
	assert.Equal(t, "token", auth.Mode())
}

func TestResolveAuth_EnvFallback(t *testing.T) {
	t.Setenv("JARVIS_GATEWAY_TOKEN", "env-token")
	auth := ResolveAuth(config.GatewayAuth{})
	assert.Equal(t, "env-token", auth.Token)
}

func TestResolveAuth_ConfigWinsOverEnv(t *testing.T) {
	t.Setenv("JARVIS_GATEWAY_TOKEN", "env-token")
	auth := ResolveAuth(config.GatewayAuth{Token: "cfg-token"})
	assert.Equal(t, "cfg-token", auth.Token)
}

func TestResolveAuth_Disabled(t *testing.T) {
	auth := ResolveAuth(config.GatewayAuth{})
	assert.False(t, auth.Enabled())
	assert.Equal(t, "none", auth.Mode())
	assert.True(t, auth.Authorize(""))
	assert.True(t, auth.Authorize("anything"))
}

func TestAuthorize(t *testing.T) {
	auth := ResolvedAuth{Token: "secret"}
	assert.True(t, auth.Authorize("secret"))
	assert.False(t, auth.Authorize("wrong"))
	assert.False(t, auth.Authorize(""))
	assert.False(t, auth.Authorize("secret2"))
}

func TestRequestToken(t *testing.T) {
	r := httptest.NewRequest("GET", "/status", nil)
	r.Header.Set("Authorization", "Bearer abc123")
	assert.Equal(t, "abc123", requestToken(r))

	r2 := httptest.NewRequest("GET", "/ws?token=query-token", nil)
	assert.Equal(t, "query-token", requestToken(r2))

	// Header wins over query parameter.
	r3 := httptest.NewRequest("GET", "/ws?token=query-token", nil)
	r3.Header.Set("Authorization", "Bearer header-token")
	assert.Equal(t, "header-token", requestToken(r3))

	r4 := httptest.NewRequest("GET", "/status", nil)
	assert.Empty(t, requestToken(r4))
}

func TestSafeEqual(t *testing.T) {
	assert.True(t, safeEqual("abc", "abc"))
	assert.False(t, safeEqual("abc", "abd"))
	assert.False(t, safeEqual("abc", "abcd"))
	assert.False(t, safeEqual("", "a"))
	assert.True(t, safeEqual("", ""))
}
