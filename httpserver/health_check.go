/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package httpserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/acronis/go-admitgate/httpserver/middleware"
	"github.com/acronis/go-admitgate/log"
	"github.com/acronis/go-admitgate/restapi"
)

// StatusClientClosedRequest is the nginx status for a request the client dropped before the response was written.
const StatusClientClosedRequest = 499

// HealthCheckComponentName names a checked dependency ("store").
type HealthCheckComponentName = string

// HealthCheckStatus is the state of one component.
type HealthCheckStatus int

// Health-check statuses.
const (
	HealthCheckStatusOK HealthCheckStatus = iota
	HealthCheckStatusFail
)

// HealthCheckResult maps components to their states.
type HealthCheckResult = map[HealthCheckComponentName]HealthCheckStatus

// HealthCheck checks the service dependencies.
// In admitgate it reports whether the durable store answers; admission itself never depends on it.
type HealthCheck = func(ctx context.Context) (HealthCheckResult, error)

type healthCheckResponseData struct {
	Components map[string]bool `json:"components"`
}

func newHealthCheckResponseData(res HealthCheckResult) (data healthCheckResponseData, healthy bool) {
	data.Components = make(map[string]bool, len(res))
	healthy = true
	for name, status := range res {
		ok := status == HealthCheckStatusOK
		data.Components[name] = ok
		healthy = healthy && ok
	}
	return data, healthy
}

// HealthCheckHandler serves /healthz.
// It answers 200 when every component is fine and 503 when at least one is not.
type HealthCheckHandler struct {
	check HealthCheck
}

// NewHealthCheckHandler creates a HealthCheckHandler. A nil fn reports no components.
func NewHealthCheckHandler(fn HealthCheck) *HealthCheckHandler {
	if fn == nil {
		fn = noComponentsHealthCheck
	}
	return &HealthCheckHandler{check: fn}
}

func noComponentsHealthCheck(ctx context.Context) (HealthCheckResult, error) {
	return HealthCheckResult{}, ctx.Err()
}

func (h *HealthCheckHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := middleware.GetLoggerFromContext(ctx)

	res, err := h.check(ctx)
	switch {
	case err != nil:
		if logger != nil {
			logger.Error("error while checking health", log.Error(err))
		}
		rw.WriteHeader(statusForHealthCheckErr(err))
		return
	case errors.Is(ctx.Err(), context.Canceled):
		rw.WriteHeader(StatusClientClosedRequest)
		return
	}

	data, healthy := newHealthCheckResponseData(res)
	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	restapi.RespondCodeAndJSON(rw, status, data, logger)
}

func statusForHealthCheckErr(err error) int {
	if errors.Is(err, context.Canceled) {
		return StatusClientClosedRequest
	}
	return http.StatusInternalServerError
}
