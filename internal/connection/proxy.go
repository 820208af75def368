package connection

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"

	"golang.org/x/net/http/httpproxy"
	"golang.org/x/net/proxy"
)

// ProxySettings selects a proxy per target URL. HTTP and HTTPS entries
// follow the usual HTTP_PROXY/HTTPS_PROXY/NO_PROXY semantics; websocket
// targets map ws to the HTTP entry and wss to the HTTPS entry. TCP targets
// are looked up as HTTPS and must resolve to a socks5 proxy.
type ProxySettings struct {
	cfg      httpproxy.Config
	proxyFor func(*url.URL) (*url.URL, error)
}

// NewProxySettings builds settings from explicit values. Empty values
// disable proxying for that scheme.
func NewProxySettings(httpProxy, httpsProxy, noProxy string) *ProxySettings {
	return newProxySettings(httpproxy.Config{
		HTTPProxy:  httpProxy,
		HTTPSProxy: httpsProxy,
		NoProxy:    noProxy,
	})
}

// ProxyFromEnvironment reads HTTP_PROXY, HTTPS_PROXY and NO_PROXY (or their
// lowercase forms). It returns nil when none are set.
func ProxyFromEnvironment() *ProxySettings {
	cfg := httpproxy.FromEnvironment()
	if cfg.HTTPProxy == "" && cfg.HTTPSProxy == "" {
		return nil
	}
	return newProxySettings(*cfg)
}

func newProxySettings(cfg httpproxy.Config) *ProxySettings {
	return &ProxySettings{
		cfg:      cfg,
		proxyFor: cfg.ProxyFunc(),
	}
}

func (p *ProxySettings) String() string {
	if p == nil {
		return "direct"
	}
	return fmt.Sprintf("http=%q https=%q no_proxy=%q", p.cfg.HTTPProxy, p.cfg.HTTPSProxy, p.cfg.NoProxy)
}

// URLFor returns the proxy for target, or nil for a direct connection.
func (p *ProxySettings) URLFor(target *url.URL) (*url.URL, error) {
	if p == nil || target == nil {
		return nil, nil
	}
	u := *target
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	case "", "tcp":
		u.Scheme = "https"
	}
	return p.proxyFor(&u)
}

// HTTPProxyFunc adapts the settings to websocket.Dialer.Proxy.
func (p *ProxySettings) HTTPProxyFunc() func(*http.Request) (*url.URL, error) {
	if p == nil {
		return nil
	}
	return func(req *http.Request) (*url.URL, error) {
		return p.URLFor(req.URL)
	}
}

// ContextDialer is the dialing surface shared by net.Dialer and the socks5
// dialer.
type ContextDialer interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

// TCPDialer returns a dialer for a raw TCP connection to addr (host:port),
// routed through a socks5 proxy when one applies.
func (p *ProxySettings) TCPDialer(addr string, forward *net.Dialer) (ContextDialer, error) {
	proxyURL, err := p.URLFor(&url.URL{Scheme: "tcp", Host: addr})
	if err != nil {
		return nil, fmt.Errorf("select proxy for %s: %w", addr, err)
	}
	if proxyURL == nil {
		return forward, nil
	}

	switch proxyURL.Scheme {
	case "socks5", "socks5h":
	default:
		return nil, fmt.Errorf("tcp transport cannot use %s proxy %s", proxyURL.Scheme, proxyURL.Redacted())
	}

	d, err := proxy.FromURL(proxyURL, forward)
	if err != nil {
		return nil, fmt.Errorf("socks5 proxy %s: %w", proxyURL.Redacted(), err)
	}
	cd, ok := d.(ContextDialer)
	if !ok {
		return nil, fmt.Errorf("socks5 proxy %s: dialer does not support context", proxyURL.Redacted())
	}
	return cd, nil
}
