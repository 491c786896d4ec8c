package api

import (
	"context"
	"errors"

	"github.com/matheus3301/wprelay/internal/relay"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// toStatus maps relay errors onto gRPC status codes.
func toStatus(op string, err error) error {
	if err == nil {
		return nil
	}
	code := codes.Internal
	switch {
	case errors.Is(err, relay.ErrChatNotFound):
		code = codes.NotFound
	case errors.Is(err, relay.ErrNotRunning),
		errors.Is(err, relay.ErrHeadless),
		errors.Is(err, relay.ErrNoWindow),
		errors.Is(err, relay.ErrNoMessages):
		code = codes.FailedPrecondition
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	}
	return grpcstatus.Errorf(code, "%s: %v", op, err)
}
