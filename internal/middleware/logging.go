package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"
)

// LoggingInterceptor returns a Connect interceptor that logs every RPC call.
// It logs the procedure name, caller, ledger scope, duration, and any error
// codes/messages. Client errors are logged at warn level, server errors at
// error level.
func LoggingInterceptor(logger *slog.Logger) connect.UnaryInterceptorFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			procedure := req.Spec().Procedure

			resp, err := next(ctx, req)

			attrs := []any{
				"procedure", procedure,
				"user_id", GetUserID(ctx), // empty if pre-auth
				"scope", GetScope(ctx),
				"duration_ms", time.Since(start).Milliseconds(),
			}

			if err == nil {
				logger.Info("RPC ok", attrs...)
				return resp, nil
			}

			var connectErr *connect.Error
			if errors.As(err, &connectErr) {
				attrs = append(attrs, "code", connectErr.Code(), "error", connectErr.Message())
				if serverSide(connectErr.Code()) {
					logger.Error("RPC error", attrs...)
				} else {
					logger.Warn("RPC error", attrs...)
				}
			} else {
				logger.Error("RPC error", append(attrs, "error", err)...)
			}
			return resp, err
		}
	}
}

func serverSide(code connect.Code) bool {
	switch code {
	case connect.CodeInternal, connect.CodeUnavailable, connect.CodeDataLoss, connect.CodeUnknown:
		return true
	}
	return false
}
