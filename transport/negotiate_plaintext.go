package transport

import (
	"context"
	"net"
)

// PlaintextNegotiator is the no-TLS variant: it only has to emit the
// connection preface over the raw TCP socket.
type PlaintextNegotiator struct{}

func (PlaintextNegotiator) Negotiate(_ context.Context, raw net.Conn) (net.Conn, error) {
	if err := writeClientPreface(raw); err != nil {
		return nil, err
	}
	return raw, nil
}
