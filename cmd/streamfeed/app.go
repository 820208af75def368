package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"

	"github.com/rickgao/streamfeed/internal/auth"
	"github.com/rickgao/streamfeed/internal/config"
	"github.com/rickgao/streamfeed/internal/connection"
	"github.com/rickgao/streamfeed/internal/discovery"
	"github.com/rickgao/streamfeed/internal/endpoint"
	"github.com/rickgao/streamfeed/internal/logging"
	"github.com/rickgao/streamfeed/internal/metrics"
	"github.com/rickgao/streamfeed/internal/version"
)

// app holds what every subcommand needs.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	closeLog io.Closer
	registry *prometheus.Registry
}

func newApp(path string) (*app, error) {
	cfg, err := config.LoadAndValidate(path)
	if err != nil {
		return nil, eris.Wrapf(err, "load config %s", path)
	}

	logger, closer, err := logging.New(cfg.Logging, os.Stderr)
	if err != nil {
		return nil, eris.Wrap(err, "set up logging")
	}
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"service", cfg.Stream.Service,
		"transport", cfg.Stream.Transport,
		"version", version.Version,
		"commit", version.Commit,
	)

	return &app{
		cfg:      cfg,
		logger:   logger,
		closeLog: closer,
		registry: prometheus.NewRegistry(),
	}, nil
}

func (a *app) Close() {
	a.closeLog.Close()
}

// resolver builds the endpoint resolver with its discovery client.
func (a *app) resolver() (*endpoint.Resolver, error) {
	transport, err := endpoint.ParseTransport(a.cfg.Stream.Transport)
	if err != nil {
		return nil, err
	}

	dm, err := metrics.NewDiscoveryMetrics(a.registry)
	if err != nil {
		return nil, eris.Wrap(err, "register discovery metrics")
	}

	d := a.cfg.Discovery
	client := discovery.NewClient(
		discovery.WithLogger(a.logger),
		discovery.WithTimeout(d.Timeout),
		discovery.WithRetries(d.MaxRetries, d.RetryBackoff),
		discovery.WithHeader("User-Agent", version.UserAgent()),
		discovery.WithObserver(dm.Observe),
	)

	return endpoint.NewResolver(endpoint.ResolverConfig{
		DirectURLs:     a.cfg.Stream.DirectURLs,
		DiscoveryRoot:  d.Root,
		DiscoveryPaths: d.Paths,
		Transport:      transport,
		Tier:           a.cfg.Stream.Tier,
		Locations:      a.cfg.Stream.Locations,
		CacheTTL:       d.CacheTTL,
		CacheSize:      d.CacheSize,
	}, client, a.logger), nil
}

// session builds the login collaborator. Credentials are optional.
var _ connection.RequestTracker = (*auth.Session)(nil)

func (a *app) session() (*auth.Session, error) {
	var creds *auth.Credentials
	if a.cfg.Auth.KeyID != "" {
		var err error
		creds, err = auth.LoadCredentials(a.cfg.Auth.KeyID, a.cfg.Auth.PrivateKeyPath)
		if err != nil {
			return nil, eris.Wrap(err, "load credentials")
		}
	}
	return auth.NewSession(auth.SessionConfig{
		User:          a.cfg.Auth.User,
		ApplicationID: a.cfg.Auth.ApplicationID,
		Position:      a.cfg.Auth.Position,
		SessionHeader: a.cfg.Stream.SessionHeader,
	}, creds)
}

// proxy returns explicit proxy settings, falling back to the environment
// when enabled. Nil means direct.
func (a *app) proxy() *connection.ProxySettings {
	p := a.cfg.Stream.Proxy
	if p.HTTP != "" || p.HTTPS != "" {
		return connection.NewProxySettings(p.HTTP, p.HTTPS, p.NoProxy)
	}
	if p.FromEnv {
		return connection.ProxyFromEnvironment()
	}
	return nil
}

// newConnection builds a StreamConnection over the resolved endpoints.
func (a *app) newConnection(endpoints []endpoint.Info, session *auth.Session, handler connection.MessageHandler) (*connection.StreamConnection, error) {
	s := a.cfg.Stream
	transport, err := endpoint.ParseTransport(s.Transport)
	if err != nil {
		return nil, err
	}
	for i := range endpoints {
		if endpoints[i].Transport == "" {
			endpoints[i].Transport = transport
		}
	}

	proxy := a.proxy()
	cc, err := connection.NewConfig(endpoints,
		connection.WithProtocols(s.Protocols...),
		connection.WithHeader(session.Header()),
		connection.WithProxy(proxy),
		connection.WithBaseDelay(s.CursorDelay),
		connection.WithDefaultPath(s.Path),
	)
	if err != nil {
		return nil, eris.Wrap(err, "build connection config")
	}

	sm, err := metrics.NewStreamMetrics(a.registry, s.Service)
	if err != nil {
		return nil, eris.Wrap(err, "register stream metrics")
	}

	factory := connection.DefaultTransportFactory(connection.TransportOptions{
		HandshakeTimeout: s.HandshakeTimeout,
		WriteTimeout:     s.WriteTimeout,
		PingInterval:     s.PingInterval,
		PingTimeout:      s.PingTimeout,
		ReadLimit:        s.ReadLimit,
		Logger:           a.logger,
	})

	a.logger.Info("connection configured",
		"endpoints", cc.Len(),
		"first", cc.URL(),
		"proxy", proxy.String(),
	)

	return connection.NewStreamConnection(cc, session, factory, connection.Options{
		AutoReconnect: s.Reconnect(),
		ServerMode:    s.ServerMode,
		MaxAttempts:   s.MaxAttempts,
		RetryBase:     s.ReconnectBaseDelay,
		RetryMax:      s.ReconnectMaxDelay,
		Multiplier:    s.ReconnectMultiplier,
		LinearBackoff: s.LinearBackoff,
		LoginTimeout:  s.LoginTimeout,
		QueueSize:     s.QueueSize,
		Handler:       handler,
		Observer:      sm,
		Logger:        a.logger,
	})
}

// runResolve prints the endpoints the configured service resolves to.
func runResolve(path string, out io.Writer) error {
	a, err := newApp(path)
	if err != nil {
		return err
	}
	defer a.Close()

	r, err := a.resolver()
	if err != nil {
		return eris.Wrap(err, "build resolver")
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Discovery.Timeout*2)
	defer cancel()

	endpoints, err := r.Resolve(ctx, a.cfg.Stream.Service)
	if err != nil {
		return eris.Wrapf(err, "resolve %s", a.cfg.Stream.Service)
	}

	for i, ep := range endpoints {
		location := ep.Location
		if location == "" {
			location = "-"
		}
		fmt.Fprintf(out, "%d\t%s\t%s\t%s\n", i+1, ep.String(), ep.Transport, location)
	}
	return nil
}
