package transport

import (
	"fmt"

	"golang.org/x/net/http2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// errCodeToStatus is the exact ErrorCode -> Status mapping from the error
// taxonomy: each HTTP/2 error code a peer can send in RST_STREAM or GOAWAY
// maps to one gRPC-flavored status.
func errCodeToStatus(code http2.ErrCode) *status.Status {
	switch code {
	case http2.ErrCodeNo:
		return status.New(codes.Internal, "No error: A GRPC status of OK should have been sent")
	case http2.ErrCodeProtocol:
		return status.New(codes.Internal, "Protocol error")
	case http2.ErrCodeInternal:
		return status.New(codes.Internal, "Internal error")
	case http2.ErrCodeFlowControl:
		return status.New(codes.Internal, "Flow control error")
	case http2.ErrCodeStreamClosed:
		return status.New(codes.Internal, "Stream closed")
	case http2.ErrCodeFrameSize:
		return status.New(codes.Internal, "Frame too large")
	case http2.ErrCodeRefusedStream:
		return status.New(codes.Unavailable, "Refused stream")
	case http2.ErrCodeCancel:
		return status.New(codes.Canceled, "Cancelled")
	case http2.ErrCodeCompression:
		return status.New(codes.Internal, "Compression error")
	case http2.ErrCodeConnect:
		return status.New(codes.Internal, "Connect error")
	case http2.ErrCodeEnhanceYourCalm:
		return status.New(codes.ResourceExhausted, "Enhance your calm")
	case http2.ErrCodeInadequateSecurity:
		return status.New(codes.PermissionDenied, "Inadequate security")
	default:
		return status.New(codes.Unknown, fmt.Sprintf("Unknown http2 error code: %d", code))
	}
}

// withDebugData appends peer-supplied GOAWAY debug data to a status message
// when present, matching both original client transports' handling of
// GOAWAY(debugData).
func withDebugData(s *status.Status, debugData []byte) *status.Status {
	if len(debugData) == 0 {
		return s
	}
	return status.New(s.Code(), fmt.Sprintf("%s: %s", s.Message(), string(debugData)))
}

var (
	errTransportShuttingDown = status.New(codes.Unavailable, "Transport stopped")
	errStreamIdsExhausted    = status.New(codes.Internal, "Stream ids exhausted")
	errConnectionClosed      = status.New(codes.Unavailable, "Connection closed")
)
