package endpoint

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/rickgao/streamfeed/internal/discovery"
)

// fromServices converts discovery services into endpoints, dropping those
// with a different transport or a tier range that excludes tier.
func fromServices(services []discovery.Service, transport Transport, tier *int) []Info {
	out := make([]Info, 0, len(services))
	for _, svc := range services {
		t, err := ParseTransport(svc.Transport)
		if err != nil || t != transport {
			continue
		}
		if tier != nil {
			if min, max, ok := svc.TierRange(); ok && (*tier < min || *tier > max) {
				continue
			}
		}

		host, path, _ := strings.Cut(svc.Endpoint, "/")
		if host == "" || svc.Port <= 0 {
			continue
		}

		info := Info{
			Host:        host,
			Port:        svc.Port,
			Path:        path,
			DataFormats: append([]string(nil), svc.DataFormat...),
			Location:    svc.Location,
			Transport:   t,
		}
		if t == TransportWebSocket {
			info.Scheme = schemeForPort(svc.Port)
		}
		out = append(out, info)
	}
	return out
}

// filterLocations keeps endpoints whose location starts with one of the
// preferred locations. Endpoints matching an earlier preference come first;
// response order is kept within each preference.
func filterLocations(infos []Info, locations []string) []Info {
	if len(locations) == 0 {
		return infos
	}

	taken := make([]bool, len(infos))
	out := make([]Info, 0, len(infos))
	for _, loc := range locations {
		loc = strings.TrimSpace(loc)
		if loc == "" {
			continue
		}
		for i, info := range infos {
			if !taken[i] && strings.HasPrefix(info.Location, loc) {
				taken[i] = true
				out = append(out, info)
			}
		}
	}
	return out
}

// parseDirect turns a statically configured URL into a single endpoint.
func parseDirect(raw string, transport Transport) (Info, error) {
	raw = strings.TrimSpace(raw)

	if transport == TransportTCP {
		raw = strings.TrimPrefix(raw, "tcp://")
		host, portStr, err := net.SplitHostPort(raw)
		if err != nil {
			return Info{}, err
		}
		port, err := strconv.Atoi(portStr)
		if err != nil || port <= 0 {
			return Info{}, &url.Error{Op: "parse", URL: raw, Err: strconv.ErrSyntax}
		}
		return Info{Host: host, Port: port, Transport: TransportTCP}, nil
	}

	if !strings.Contains(raw, "://") {
		raw = "//" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Info{}, err
	}
	if u.Hostname() == "" {
		return Info{}, fmt.Errorf("direct url %q: missing host", raw)
	}

	scheme := strings.ToLower(u.Scheme)
	switch scheme {
	case "https":
		scheme = SchemeSecure
	case "http":
		scheme = SchemePlain
	case "", SchemeSecure, SchemePlain:
	default:
		return Info{}, fmt.Errorf("direct url %q: unsupported scheme %q", raw, u.Scheme)
	}

	port := 0
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil || port <= 0 {
			return Info{}, &url.Error{Op: "parse", URL: raw, Err: strconv.ErrSyntax}
		}
	}

	switch {
	case scheme == "" && port == 0:
		scheme, port = SchemeSecure, securePort
	case scheme == "":
		scheme = schemeForPort(port)
	case port == 0 && scheme == SchemeSecure:
		port = securePort
	case port == 0:
		port = plainPort
	}

	return Info{
		Scheme:    scheme,
		Host:      u.Hostname(),
		Port:      port,
		Path:      strings.TrimPrefix(u.Path, "/"),
		Transport: TransportWebSocket,
	}, nil
}
