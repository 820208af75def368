package endpoint

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/rickgao/streamfeed/internal/discovery"
)

// Discoverer fetches the raw service list from a discovery URL.
type Discoverer interface {
	Discover(ctx context.Context, rawURL string, params url.Values) (*discovery.Response, error)
}

// ResolverConfig configures a Resolver.
type ResolverConfig struct {
	// DirectURLs maps a service key to a static URL that bypasses discovery.
	DirectURLs map[string]string

	// DiscoveryRoot is joined with DiscoveryPaths[key] to form the lookup URL.
	DiscoveryRoot  string
	DiscoveryPaths map[string]string

	Transport Transport
	Tier      *int     // nil = no tier filtering
	Locations []string // preferred location prefixes, most preferred first

	CacheTTL  time.Duration // 0 disables caching of discovery results
	CacheSize int
}

// Resolver turns service keys into ordered endpoint lists.
type Resolver struct {
	cfg        ResolverConfig
	discoverer Discoverer
	logger     *slog.Logger

	group singleflight.Group
	cache *expirable.LRU[string, []Info]
}

// NewResolver creates a Resolver. discoverer may be nil when every key has a
// direct URL.
func NewResolver(cfg ResolverConfig, discoverer Discoverer, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Transport == "" {
		cfg.Transport = TransportWebSocket
	}

	r := &Resolver{
		cfg:        cfg,
		discoverer: discoverer,
		logger:     logger,
	}
	if cfg.CacheTTL > 0 {
		r.cache = expirable.NewLRU[string, []Info](cfg.CacheSize, nil, cfg.CacheTTL)
	}
	return r
}

// Resolve returns the endpoints for key, most preferred first. The result is
// never empty; failures are reported as *ResolutionError.
func (r *Resolver) Resolve(ctx context.Context, key string) ([]Info, error) {
	if raw, ok := r.cfg.DirectURLs[key]; ok && raw != "" {
		info, err := parseDirect(raw, r.cfg.Transport)
		if err != nil {
			return nil, &ResolutionError{Key: key, Reason: ReasonInvalidURL, Err: err}
		}
		r.logger.Debug("using direct endpoint", "key", key, "endpoint", info.String())
		return []Info{info}, nil
	}

	if r.cache != nil {
		if infos, ok := r.cache.Get(key); ok {
			return clone(infos), nil
		}
	}

	// The shared lookup is detached from any one caller; each caller waits
	// on its own context.
	ch := r.group.DoChan(key, func() (any, error) {
		return r.discover(context.WithoutCancel(ctx), key)
	})
	select {
	case <-ctx.Done():
		return nil, &ResolutionError{Key: key, Reason: ReasonCancelled, Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			r.logger.Debug("shared discovery result", "key", key)
		}
		return clone(res.Val.([]Info)), nil
	}
}

// Invalidate drops any cached discovery result for key.
func (r *Resolver) Invalidate(key string) {
	if r.cache != nil {
		r.cache.Remove(key)
	}
}

// DiscoveryURL returns the lookup URL used for key.
func (r *Resolver) DiscoveryURL(key string) (string, error) {
	path, ok := r.cfg.DiscoveryPaths[key]
	if !ok || path == "" || r.cfg.DiscoveryRoot == "" {
		return "", ErrUnknownService
	}
	return url.JoinPath(r.cfg.DiscoveryRoot, path)
}

func (r *Resolver) discover(ctx context.Context, key string) ([]Info, error) {
	lookup, err := r.DiscoveryURL(key)
	if err != nil {
		return nil, &ResolutionError{Key: key, Reason: ReasonNoPath, Err: err}
	}
	if r.discoverer == nil {
		return nil, &ResolutionError{Key: key, Reason: ReasonNoPath, Err: ErrUnknownService}
	}

	params := url.Values{}
	if r.cfg.Tier != nil {
		params.Set("tier", strconv.Itoa(*r.cfg.Tier))
	}

	resp, err := r.discoverer.Discover(ctx, lookup, params)
	if err != nil {
		return nil, &ResolutionError{Key: key, Reason: ReasonDiscovery, Err: err}
	}

	infos := fromServices(resp.Services, r.cfg.Transport, r.cfg.Tier)
	infos = filterLocations(infos, r.cfg.Locations)
	if len(infos) == 0 {
		r.logger.Warn("discovery returned no usable endpoints",
			"key", key,
			"services", len(resp.Services),
			"transport", r.cfg.Transport,
		)
		return nil, &ResolutionError{Key: key, Reason: ReasonNoEndpoints, Err: ErrNoEndpoints}
	}

	r.logger.Info("resolved endpoints",
		"key", key,
		"count", len(infos),
		"first", infos[0].String(),
	)

	if r.cache != nil {
		r.cache.Add(key, infos)
	}
	return infos, nil
}

func clone(infos []Info) []Info {
	return append([]Info(nil), infos...)
}
