package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
)

// ConnectionSpec names the cipher/protocol list a TLSNegotiator is willing
// to offer, mirroring the spec's "ConnectionSpec" vocabulary for §6 TLS.
type ConnectionSpec struct {
	MinVersion   uint16
	CipherSuites []uint16
}

// DefaultConnectionSpec matches what the teacher's own TLS dialing code
// configures: TLS 1.3 minimum, ALPN negotiated to h2.
var DefaultConnectionSpec = ConnectionSpec{MinVersion: tls.VersionTLS13}

// TLSNegotiator upgrades the raw socket via a TLS handshake before sending
// the connection preface. The SNI / verification hostname is derived from
// the authority string; unlike the legacy OkHttp/Netty transports this
// does not silently fall back to the raw authority on a parse failure
// (§9 Open Question) — a malformed authority is a configuration error the
// caller should see.
type TLSNegotiator struct {
	Spec       ConnectionSpec
	ServerName string // derived from authority by NewTLSNegotiator
	Config     *tls.Config
}

// NewTLSNegotiator builds a negotiator for authority (host[:port]) using
// base as a starting tls.Config (nil for defaults). The authority must
// parse as a valid host; see TLSNegotiator's doc comment.
func NewTLSNegotiator(authority string, base *tls.Config, spec ConnectionSpec) (*TLSNegotiator, error) {
	host, _, err := net.SplitHostPort(authority)
	if err != nil {
		host = authority
		if _, _, err2 := net.SplitHostPort(authority + ":443"); err2 != nil {
			return nil, fmt.Errorf("invalid authority %q for TLS SNI: %w", authority, err)
		}
	}
	if host == "" {
		return nil, fmt.Errorf("invalid authority %q: empty host", authority)
	}

	cfg := base.Clone()
	if cfg == nil {
		cfg = &tls.Config{}
	}
	cfg.ServerName = host
	cfg.MinVersion = spec.MinVersion
	if len(spec.CipherSuites) > 0 {
		cfg.CipherSuites = spec.CipherSuites
	}
	if len(cfg.NextProtos) == 0 {
		cfg.NextProtos = []string{"h2"}
	}

	return &TLSNegotiator{Spec: spec, ServerName: host, Config: cfg}, nil
}

func (n *TLSNegotiator) Negotiate(ctx context.Context, raw net.Conn) (net.Conn, error) {
	tlsConn := tls.Client(raw, n.Config)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return nil, fmt.Errorf("tls handshake failed: %w", err)
	}
	if cs := tlsConn.ConnectionState(); cs.NegotiatedProtocol != "" && cs.NegotiatedProtocol != "h2" {
		tlsConn.Close()
		return nil, fmt.Errorf("tls negotiated protocol %q, want h2", cs.NegotiatedProtocol)
	}
	if err := writeClientPreface(tlsConn); err != nil {
		return nil, err
	}
	return tlsConn, nil
}
