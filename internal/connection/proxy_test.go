package connection

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProxySettings_URLFor(t *testing.T) {
	p := NewProxySettings("http://plain-proxy:3128", "http://tls-proxy:3128", "internal.example.com")

	tests := []struct {
		target string
		want   string
	}{
		{"ws://feed.example.com:80/WebSocket", "http://plain-proxy:3128"},
		{"wss://feed.example.com:443/WebSocket", "http://tls-proxy:3128"},
		{"tcp://feed.example.com:14002", "http://tls-proxy:3128"},
		{"wss://internal.example.com:443/WebSocket", ""},
		{"wss://a.internal.example.com:443/WebSocket", ""},
		// Loopback is never proxied
		{"wss://127.0.0.1:443/WebSocket", ""},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			u, err := url.Parse(tt.target)
			require.NoError(t, err)

			got, err := p.URLFor(u)
			require.NoError(t, err)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestProxySettings_Nil(t *testing.T) {
	var p *ProxySettings

	got, err := p.URLFor(&url.URL{Scheme: "wss", Host: "feed.example.com:443"})
	assert.NoError(t, err)
	assert.Nil(t, got)
	assert.Nil(t, p.HTTPProxyFunc())
	assert.Equal(t, "direct", p.String())
}

func TestProxySettings_HTTPProxyFunc(t *testing.T) {
	p := NewProxySettings("", "http://tls-proxy:3128", "")
	fn := p.HTTPProxyFunc()
	require.NotNil(t, fn)

	// The websocket dialer hands over an https request for wss targets
	req, err := http.NewRequest(http.MethodGet, "https://feed.example.com:443/WebSocket", nil)
	require.NoError(t, err)

	got, err := fn(req)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "tls-proxy:3128", got.Host)
}

func TestProxyFromEnvironment(t *testing.T) {
	for _, key := range []string{"HTTP_PROXY", "HTTPS_PROXY", "NO_PROXY", "http_proxy", "https_proxy", "no_proxy", "REQUEST_METHOD"} {
		t.Setenv(key, "")
	}
	assert.Nil(t, ProxyFromEnvironment())

	t.Setenv("HTTPS_PROXY", "socks5://gateway:1080")
	t.Setenv("NO_PROXY", "feed.local")

	p := ProxyFromEnvironment()
	require.NotNil(t, p)

	got, err := p.URLFor(&url.URL{Scheme: "tcp", Host: "feed.example.com:14002"})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "socks5", got.Scheme)

	got, err = p.URLFor(&url.URL{Scheme: "tcp", Host: "feed.local:14002"})
	require.NoError(t, err)
	assert.Nil(t, got)
}
