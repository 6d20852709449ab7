package bridge

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/banshee-data/toporegion/internal/engine"
)

var codeMap = []struct {
	err  error
	code codes.Code
}{
	{engine.ErrNameCollision, codes.AlreadyExists},
	{engine.ErrNotFound, codes.NotFound},
	{engine.ErrShape, codes.InvalidArgument},
	{engine.ErrUnsupported, codes.Unimplemented},
	{context.Canceled, codes.Canceled},
	{context.DeadlineExceeded, codes.DeadlineExceeded},
}

// toStatus converts a session error into a gRPC status error.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	for _, m := range codeMap {
		if errors.Is(err, m.err) {
			return status.Error(m.code, err.Error())
		}
	}
	return status.Error(codes.Internal, err.Error())
}

// fromStatus converts a gRPC status error back into an error wrapping the
// matching engine sentinel, so callers can keep using errors.Is.
func fromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	for _, m := range codeMap {
		if st.Code() == m.code {
			return fmt.Errorf("%w: %s", m.err, st.Message())
		}
	}
	return err
}
