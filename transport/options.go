package transport

import (
	"time"

	"github.com/rs/zerolog"
)

// Options configures a Transport before Start is called, the way the
// teacher's config package builds small plain option structs passed into
// dialers and servers.
type Options struct {
	// Authority is the default HTTP/2 :authority pseudo-header value,
	// used for every stream that doesn't set AuthorityOverrideMetadataKey.
	Authority string

	Negotiator Negotiator

	InitialWindowSize     int32
	MaxConcurrentStreams  uint32
	MaxMessageSize        int
	MaxHeaderListSize     uint32

	// KeepaliveTime, when non-zero, drives a background PING on this
	// interval; KeepaliveTimeout bounds how long the transport waits for
	// the ACK before tearing the connection down, and falls back to
	// KeepaliveTime when zero. A zero KeepaliveTime disables keepalive
	// entirely (§5 supplemented feature).
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration

	Logger zerolog.Logger
}

func (o *Options) setDefaults() {
	if o.Negotiator == nil {
		o.Negotiator = PlaintextNegotiator{}
	}
	if o.InitialWindowSize <= 0 {
		o.InitialWindowSize = DefaultInitialWindowSize
	}
	if o.MaxConcurrentStreams == 0 {
		o.MaxConcurrentStreams = 100
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 4 << 20
	}
	if o.MaxHeaderListSize == 0 {
		o.MaxHeaderListSize = 16 << 20
	}
}
