package connection

import (
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
)

// Connection defaults.
const (
	DefaultLoginTimeout = 10 * time.Second
	DefaultQueueSize    = 100000
)

// Observer receives connection metrics. Implementations must be safe for
// concurrent use.
type Observer interface {
	ObserveTransition(from, to State)
	ObserveRefusedTransition(from State)
	ObserveReceived()
	ObserveDropped()
	ObserveReconnect()
	ObserveProtocolError()
	ObserveHandlerError()
	ObserveQueueDepth(depth int)
}

type nopObserver struct{}

func (nopObserver) ObserveTransition(State, State) {}
func (nopObserver) ObserveRefusedTransition(State) {}
func (nopObserver) ObserveReceived()               {}
func (nopObserver) ObserveDropped()                {}
func (nopObserver) ObserveReconnect()              {}
func (nopObserver) ObserveProtocolError()          {}
func (nopObserver) ObserveHandlerError()           {}
func (nopObserver) ObserveQueueDepth(int)          {}

// Options configures a StreamConnection.
type Options struct {
	AutoReconnect bool
	// ServerMode retries forever regardless of MaxAttempts.
	ServerMode bool
	// MaxAttempts is the failure budget per candidate endpoint.
	MaxAttempts   int
	RetryBase     time.Duration
	RetryMax      time.Duration
	Multiplier    float64
	LinearBackoff bool

	LoginTimeout time.Duration
	QueueSize    int
	MaxListeners int

	Handler  MessageHandler
	Clock    clock.Clock
	Observer Observer
	Logger   *slog.Logger
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		AutoReconnect: true,
		MaxAttempts:   DefaultMaxAttempts,
		RetryBase:     DefaultRetryBase,
		RetryMax:      DefaultRetryMax,
		Multiplier:    DefaultMultiplier,
		LoginTimeout:  DefaultLoginTimeout,
		QueueSize:     DefaultQueueSize,
		MaxListeners:  DefaultMaxListeners,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = d.MaxAttempts
	}
	if o.RetryBase < 0 {
		o.RetryBase = 0
	}
	if o.RetryMax <= 0 {
		o.RetryMax = d.RetryMax
	}
	if o.Multiplier <= 0 {
		o.Multiplier = d.Multiplier
	}
	if o.LoginTimeout <= 0 {
		o.LoginTimeout = d.LoginTimeout
	}
	if o.QueueSize <= 0 {
		o.QueueSize = d.QueueSize
	}
	if o.MaxListeners <= 0 {
		o.MaxListeners = d.MaxListeners
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	if o.Observer == nil {
		o.Observer = nopObserver{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

func (o Options) policy() *ReconnectPolicy {
	p := NewReconnectPolicy(o.MaxAttempts, o.ServerMode)
	p.BaseDelay = o.RetryBase
	p.MaxDelay = o.RetryMax
	p.Multiplier = o.Multiplier
	p.Linear = o.LinearBackoff
	return p
}
