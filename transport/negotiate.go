package transport

import (
	"context"
	"net"
)

// clientPreface is the fixed connection preface every HTTP/2 client must
// send before anything else, per RFC 7540 §3.5.
const clientPreface = "PRI * HTTP/2.0\r\n\r\nSM\r\n\r\n"

// Negotiator is Component H: the abstract "bring a raw socket to
// HTTP/2-ready" step. Implementations differ in how they get there
// (plaintext, TLS handshake, HTTP/1.1 Upgrade) but all must have written
// the connection preface before returning successfully, so the caller can
// immediately wrap the result in a frame codec and send initial SETTINGS.
type Negotiator interface {
	Negotiate(ctx context.Context, raw net.Conn) (net.Conn, error)
}

func writeClientPreface(conn net.Conn) error {
	_, err := conn.Write([]byte(clientPreface))
	return err
}
