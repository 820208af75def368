package endpoint

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Transport identifies the wire mechanism used to reach an endpoint.
type Transport string

const (
	TransportWebSocket Transport = "websocket"
	TransportTCP       Transport = "tcp"
)

// Websocket schemes. Discovery payloads carry no scheme, so it is derived
// from the port.
const (
	SchemeSecure = "wss"
	SchemePlain  = "ws"

	securePort = 443
	plainPort  = 80
)

// ParseTransport converts a configuration or discovery value to a Transport.
func ParseTransport(s string) (Transport, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(TransportWebSocket), "ws":
		return TransportWebSocket, nil
	case string(TransportTCP), "rssl", "socket":
		return TransportTCP, nil
	}
	return "", fmt.Errorf("unknown transport %q", s)
}

func (t Transport) String() string { return string(t) }

// Info is one resolvable streaming endpoint. Values are never mutated after
// resolution.
type Info struct {
	Scheme      string
	Host        string
	Port        int
	Path        string
	DataFormats []string
	Location    string
	Transport   Transport
}

// Address returns host:port.
func (i Info) Address() string {
	return net.JoinHostPort(i.Host, strconv.Itoa(i.Port))
}

// Secure reports whether the endpoint uses TLS.
func (i Info) Secure() bool {
	return i.Scheme == SchemeSecure
}

func (i Info) String() string {
	if i.Transport == TransportTCP {
		return i.Address()
	}
	s := i.Scheme + "://" + i.Address()
	if i.Path != "" {
		s += "/" + i.Path
	}
	return s
}

func schemeForPort(port int) string {
	if port == securePort {
		return SchemeSecure
	}
	return SchemePlain
}
