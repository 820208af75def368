package discovery

// Response is the document returned by a discovery service.
type Response struct {
	Services []Service `json:"services"`
}

// Service is one advertised streaming endpoint.
type Service struct {
	Endpoint   string   `json:"endpoint"` // "host" or "host/path/..."
	Port       int      `json:"port"`
	Transport  string   `json:"transport"` // "websocket" or "tcp"
	DataFormat []string `json:"dataFormat"`
	Location   string   `json:"location"`
	Tier       []int    `json:"tier,omitempty"` // [min, max], absent = any tier
}

// TierRange returns the inclusive tier range advertised by the service.
// ok is false when the service does not restrict tiers.
func (s Service) TierRange() (min, max int, ok bool) {
	switch len(s.Tier) {
	case 0:
		return 0, 0, false
	case 1:
		return s.Tier[0], s.Tier[0], true
	default:
		return s.Tier[0], s.Tier[1], true
	}
}
