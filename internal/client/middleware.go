package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danmuck/lvctl/internal/observability"
	"github.com/danmuck/lvctl/internal/protocol/schema"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Invoker performs one request/response exchange.
type Invoker func(ctx context.Context, req schema.Request) (schema.Response, error)

// Middleware wraps an Invoker. Middleware listed first in Config runs
// outermost.
type Middleware func(next Invoker) Invoker

// Outcome classifies a finished call for logs and metrics.
func Outcome(resp schema.Response, err error) string {
	switch {
	case err == nil && resp.Faulted():
		return observability.OutcomeFault
	case err == nil:
		return observability.OutcomeOK
	case errors.Is(err, ErrConnectionBusy):
		return observability.OutcomeBusy
	case errors.Is(err, ErrCallTimedOut):
		return observability.OutcomeTimeout
	default:
		return observability.OutcomeFailed
	}
}

// LoggingMiddleware logs every call at debug, faults at warn and failures at
// error.
func LoggingMiddleware(logger zerolog.Logger) Middleware {
	return func(next Invoker) Invoker {
		return func(ctx context.Context, req schema.Request) (schema.Response, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			outcome := Outcome(resp, err)

			event := logger.Debug()
			switch outcome {
			case observability.OutcomeFault:
				event = logger.Warn().Str("fault", resp.Fault.String())
			case observability.OutcomeOK:
			default:
				event = logger.Error().Err(err)
			}
			event.
				Str("command", string(req.Command)).
				Str("request_id", req.RequestID).
				Str("vi_path", req.VIPath).
				Str("outcome", outcome).
				Dur("duration", time.Since(start)).
				Msg("client call")
			return resp, err
		}
	}
}

// MetricsMiddleware records call counts and durations by command and outcome.
func MetricsMiddleware() Middleware {
	return func(next Invoker) Invoker {
		return func(ctx context.Context, req schema.Request) (schema.Response, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			observability.RecordCall(string(req.Command), Outcome(resp, err), time.Since(start))
			return resp, err
		}
	}
}

// RateLimitMiddleware waits for a token before each call. Waiting honors ctx;
// a wait that cannot finish in time fails without touching the connection.
func RateLimitMiddleware(limiter *rate.Limiter) Middleware {
	return func(next Invoker) Invoker {
		return func(ctx context.Context, req schema.Request) (schema.Response, error) {
			if err := limiter.Wait(ctx); err != nil {
				if ctx.Err() == nil {
					if _, ok := ctx.Deadline(); ok {
						// The limiter refuses waits that would outlast the deadline.
						return schema.Response{}, fmt.Errorf("%w: %w: %v", ErrCallFailed, ErrCallTimedOut, err)
					}
				}
				return schema.Response{}, contextFailure(err)
			}
			return next(ctx, req)
		}
	}
}
