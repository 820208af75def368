package connection

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/streamfeed/internal/endpoint"
)

func wsEndpoint(host string, port int, path string) endpoint.Info {
	scheme := endpoint.SchemePlain
	if port == 443 {
		scheme = endpoint.SchemeSecure
	}
	return endpoint.Info{
		Scheme:    scheme,
		Host:      host,
		Port:      port,
		Path:      path,
		Transport: endpoint.TransportWebSocket,
	}
}

func threeEndpoints() []endpoint.Info {
	return []endpoint.Info{
		wsEndpoint("a.example.com", 443, ""),
		wsEndpoint("b.example.com", 443, "stream"),
		wsEndpoint("c.example.com", 8080, ""),
	}
}

func TestNewConfig_Validation(t *testing.T) {
	tests := []struct {
		name      string
		endpoints []endpoint.Info
		field     string
	}{
		{"empty", nil, "endpoints"},
		{"missing host", []endpoint.Info{wsEndpoint("", 443, "")}, "endpoints[0].host"},
		{"bad port", []endpoint.Info{wsEndpoint("a", 0, "")}, "endpoints[0].port"},
		{
			"mixed transports",
			[]endpoint.Info{
				wsEndpoint("a", 443, ""),
				{Host: "b", Port: 14002, Transport: endpoint.TransportTCP},
			},
			"endpoints[1].transport",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConfig(tt.endpoints)
			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr), "expected ConfigError, got %v", err)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestConfig_RoundRobin(t *testing.T) {
	cfg, err := NewConfig(threeEndpoints())
	require.NoError(t, err)

	var hosts []string
	for i := 0; i < 7; i++ {
		hosts = append(hosts, cfg.Current().Host)
		cfg.Advance()
	}

	assert.Equal(t, []string{
		"a.example.com", "b.example.com", "c.example.com",
		"a.example.com", "b.example.com", "c.example.com",
		"a.example.com",
	}, hosts)

	cfg.Reset()
	assert.Equal(t, 0, cfg.Cursor())
	assert.Equal(t, "a.example.com", cfg.Current().Host)
}

func TestConfig_URL(t *testing.T) {
	cfg, err := NewConfig(threeEndpoints())
	require.NoError(t, err)

	assert.Equal(t, "wss://a.example.com:443/WebSocket", cfg.URL())
	cfg.Advance()
	assert.Equal(t, "wss://b.example.com:443/stream", cfg.URL())
	cfg.Advance()
	assert.Equal(t, "ws://c.example.com:8080/WebSocket", cfg.URL())

	custom, err := NewConfig(threeEndpoints()[:1], WithDefaultPath("feed"))
	require.NoError(t, err)
	assert.Equal(t, "wss://a.example.com:443/feed", custom.URL())

	tcp, err := NewConfig([]endpoint.Info{{Host: "10.0.0.1", Port: 14002, Transport: endpoint.TransportTCP}})
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:14002", tcp.URL())
	assert.Equal(t, endpoint.TransportTCP, tcp.Transport())
}

func TestConfig_ReconnectDelay(t *testing.T) {
	cfg, err := NewConfig(threeEndpoints(), WithBaseDelay(100*time.Millisecond))
	require.NoError(t, err)

	var prev time.Duration
	for i := 0; i < cfg.Len(); i++ {
		d := cfg.ReconnectDelay()
		assert.Equal(t, time.Duration(i)*100*time.Millisecond, d)
		assert.GreaterOrEqual(t, d, prev)
		prev = d
		cfg.Advance()
	}

	cfg.Reset()
	assert.Zero(t, cfg.ReconnectDelay())
}

func TestConfig_TargetIsolation(t *testing.T) {
	h := http.Header{}
	h.Set("X-Session-Id", "abc")
	proxy := NewProxySettings("", "http://proxy.internal:3128", "")

	cfg, err := NewConfig(threeEndpoints(),
		WithHeader(h),
		WithProtocols("tr_json2"),
		WithProxy(proxy),
	)
	require.NoError(t, err)

	// Later changes to the caller's header do not leak in
	h.Set("X-Session-Id", "changed")

	target := cfg.Target()
	assert.Equal(t, "wss://a.example.com:443/WebSocket", target.URL)
	assert.Equal(t, "abc", target.Header.Get("X-Session-Id"))
	assert.Equal(t, []string{"tr_json2"}, target.Protocols)
	assert.Same(t, proxy, target.Proxy)

	target.Header.Set("X-Session-Id", "mutated")
	assert.Equal(t, "abc", cfg.Header().Get("X-Session-Id"))

	eps := cfg.Endpoints()
	eps[0].Host = "mutated"
	assert.Equal(t, "a.example.com", cfg.Current().Host)
}
