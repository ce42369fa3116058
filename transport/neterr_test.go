package transport

import (
	"errors"
	"io"
	"net"
	"testing"
)

func TestIsGracefulClose(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "EOF", err: io.EOF, want: true},
		{name: "EOF text only, not wrapped", err: errors.New("read: " + io.EOF.Error()), want: false},
		{name: "net.ErrClosed", err: net.ErrClosed, want: true},
		{name: "wrapped net.ErrClosed", err: &net.OpError{Op: "read", Err: net.ErrClosed}, want: true},
		{name: "tls close_notify failure", err: errors.New(closeNotifyFailure), want: true},
		{name: "unrelated error", err: errors.New("connection reset by peer"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isGracefulClose(tt.err); got != tt.want {
				t.Errorf("isGracefulClose(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
