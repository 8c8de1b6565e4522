package server

import (
	"context"
	"log/slog"
	"runtime/debug"

	"google.golang.org/grpc"

	"github.com/joseph-ayodele/legal-simplifier/internal/common"
)

// RecoveryInterceptor turns handler panics into Internal errors so one bad
// request cannot stop the server.
func RecoveryInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("grpc.panic", "method", info.FullMethod, "panic", r, "stack", string(debug.Stack()))
				resp, err = nil, common.InternalErrorf("internal error in %s", info.FullMethod)
			}
		}()
		return handler(ctx, req)
	}
}
