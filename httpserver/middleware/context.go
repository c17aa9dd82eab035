/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"context"
	"time"

	"github.com/acronis/go-admitgate/log"
)

type ctxKey int

const (
	ctxKeyRequestID ctxKey = iota
	ctxKeyLogger
	ctxKeyRequestStartTime
	ctxKeyClientIdentity
	ctxKeyLoggingParams
)

// valueFromContext returns the zero T when the key is absent or holds another type.
func valueFromContext[T any](ctx context.Context, key ctxKey) T {
	v, _ := ctx.Value(key).(T)
	return v
}

// NewContextWithRequestID returns a copy of ctx carrying the request id.
func NewContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, requestID)
}

// GetRequestIDFromContext returns the request id or "".
func GetRequestIDFromContext(ctx context.Context) string {
	return valueFromContext[string](ctx, ctxKeyRequestID)
}

// NewContextWithLogger returns a copy of ctx carrying the request-scoped logger.
func NewContextWithLogger(ctx context.Context, logger log.FieldLogger) context.Context {
	return context.WithValue(ctx, ctxKeyLogger, logger)
}

// GetLoggerFromContext returns the request-scoped logger or nil.
func GetLoggerFromContext(ctx context.Context) log.FieldLogger {
	return valueFromContext[log.FieldLogger](ctx, ctxKeyLogger)
}

func NewContextWithRequestStartTime(ctx context.Context, startTime time.Time) context.Context {
	return context.WithValue(ctx, ctxKeyRequestStartTime, startTime)
}

func GetRequestStartTimeFromContext(ctx context.Context) time.Time {
	return valueFromContext[time.Time](ctx, ctxKeyRequestStartTime)
}

// NewContextWithClientIdentity returns a copy of ctx carrying the identity the request was admitted under.
func NewContextWithClientIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, ctxKeyClientIdentity, identity)
}

// GetClientIdentityFromContext returns the client identity or "".
func GetClientIdentityFromContext(ctx context.Context) string {
	return valueFromContext[string](ctx, ctxKeyClientIdentity)
}

func NewContextWithLoggingParams(ctx context.Context, loggingParams *LoggingParams) context.Context {
	return context.WithValue(ctx, ctxKeyLoggingParams, loggingParams)
}

func GetLoggingParamsFromContext(ctx context.Context) *LoggingParams {
	return valueFromContext[*LoggingParams](ctx, ctxKeyLoggingParams)
}
