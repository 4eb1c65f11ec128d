package gateway

import (
	"crypto/subtle"
	"net/http"
	"os"
	"strings"

	"github.com/jarvislabs/jarvis/internal/config"
)

// ResolvedAuth holds the resolved bearer-token configuration. An empty
// token disables auth entirely for local-only deployments.
type ResolvedAuth struct {
	Token string
}

// ResolveAuth resolves the gateway token from config and environment.
// Precedence: config value, then JARVIS_GATEWAY_TOKEN, then disabled.
func ResolveAuth(cfg config.GatewayAuth) ResolvedAuth {
	token := cfg.Token
	if token == "" {
		token = os.Getenv("JARVIS_GATEWAY_TOKEN")
	}
	return ResolvedAuth{Token: token}
}

// Enabled reports whether requests must carry a token.
func (a ResolvedAuth) Enabled() bool { return a.Token != "" }

// Mode returns a loggable description of the auth setup.
func (a ResolvedAuth) Mode() string {
	if a.Enabled() {
		return "token"
	}
	return "none"
}

// Authorize checks a presented token.
func (a ResolvedAuth) Authorize(token string) bool {
	if !a.Enabled() {
		return true
	}
	return safeEqual(token, a.Token)
}

// requestToken extracts the bearer token from an HTTP request. The
// Authorization header wins; WebSocket dialers that cannot set headers
// may use the token query parameter instead.
func requestToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// safeEqual performs a constant-time string comparison to prevent timing attacks.
// It avoids early-return on length mismatch to prevent leaking secret length via timing.
func safeEqual(a, b string) bool {
	lenMatch := subtle.ConstantTimeEq(int32(len(a)), int32(len(b)))
	cmp := subtle.ConstantTimeCompare([]byte(a), []byte(b))
	return subtle.ConstantTimeSelect(lenMatch, cmp, 0) == 1
}
