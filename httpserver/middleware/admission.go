/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/vasayxtx/go-glob"

	"github.com/acronis/go-admitgate/admission"
	"github.com/acronis/go-admitgate/log"
	"github.com/acronis/go-admitgate/restapi"
)

// AdmissionErrCode is an error code that is used in a response body
// if the request is rejected by the admission middleware.
var AdmissionErrCode = restapi.ErrCodeTooManyRequests

// AdmissionIdentityLogFieldKey is the name of the logged field that contains the client identity.
const AdmissionIdentityLogFieldKey = "client_identity"

const headerRetryAfter = "Retry-After"

// AdmissionChecker decides whether the request of the given client should be admitted.
// *admission.Checker implements it.
type AdmissionChecker interface {
	Check(ctx context.Context, identity string, now time.Time) admission.Decision
}

// AdmissionParams contains data that relates to the rejected request.
type AdmissionParams struct {
	ErrDomain  string
	Identity   string
	Decision   admission.Decision
	InstanceID string
}

// AdmissionOnRejectFunc is a function that is called for rejecting HTTP request when one of the stages is exceeded.
type AdmissionOnRejectFunc func(
	rw http.ResponseWriter, r *http.Request, params AdmissionParams, next http.Handler, logger log.FieldLogger)

// AdmissionOpts represents an options for the Admission middleware.
type AdmissionOpts struct {
	// GetIdentity resolves the client identity. GetClientIdentity is used by default.
	GetIdentity GetClientIdentityFunc

	// BypassIdentities is a list of glob patterns ("10.0.*", "*.internal").
	// Requests with a matching identity are served without being counted.
	BypassIdentities []string

	DryRun bool

	// InstanceID is reported in the debug section of the error body.
	InstanceID string

	OnReject         AdmissionOnRejectFunc
	OnRejectInDryRun AdmissionOnRejectFunc

	NowFunc func() time.Time
}

type admissionHandler struct {
	next        http.Handler
	checker     AdmissionChecker
	errDomain   string
	getIdentity GetClientIdentityFunc
	bypass      []func(s string) bool
	instanceID  string
	onReject    AdmissionOnRejectFunc
	now         func() time.Time
}

// Admission is a middleware that admits HTTP requests through the multi-stage sliding-window checker.
func Admission(checker AdmissionChecker, errDomain string) func(next http.Handler) http.Handler {
	return AdmissionWithOpts(checker, errDomain, AdmissionOpts{})
}

// AdmissionWithOpts is a configurable version of the Admission middleware.
func AdmissionWithOpts(checker AdmissionChecker, errDomain string, opts AdmissionOpts) func(next http.Handler) http.Handler {
	getIdentity := opts.GetIdentity
	if getIdentity == nil {
		getIdentity = GetClientIdentity
	}
	now := opts.NowFunc
	if now == nil {
		now = time.Now
	}
	bypass := make([]func(s string) bool, 0, len(opts.BypassIdentities))
	for _, pattern := range opts.BypassIdentities {
		bypass = append(bypass, glob.Compile(pattern))
	}
	return func(next http.Handler) http.Handler {
		return &admissionHandler{
			next:        next,
			checker:     checker,
			errDomain:   errDomain,
			getIdentity: getIdentity,
			bypass:      bypass,
			instanceID:  opts.InstanceID,
			onReject:    makeAdmissionOnRejectFunc(opts),
			now:         now,
		}
	}
}

func (h *admissionHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	identity := h.getIdentity(r)
	r = r.WithContext(NewContextWithClientIdentity(r.Context(), identity))
	lp := GetLoggingParamsFromContext(r.Context())
	if lp != nil {
		lp.ExtendFields(log.String(AdmissionIdentityLogFieldKey, identity))
	}

	if h.isBypassed(identity) {
		h.next.ServeHTTP(rw, r)
		return
	}

	decision := h.checker.Check(r.Context(), identity, h.now())
	if !decision.Blocked {
		h.next.ServeHTTP(rw, r)
		return
	}
	if lp != nil {
		lp.ExtendFields(log.String("violated_stage", decision.ViolatedStage.String()))
	}

	params := AdmissionParams{ErrDomain: h.errDomain, Identity: identity, Decision: decision, InstanceID: h.instanceID}
	h.onReject(rw, r, params, h.next, GetLoggerFromContext(r.Context()))
}

func (h *admissionHandler) isBypassed(identity string) bool {
	for i := range h.bypass {
		if h.bypass[i](identity) {
			return true
		}
	}
	return false
}

// DefaultAdmissionOnReject responds with 429 status code, Retry-After header and the error in the restapi format.
func DefaultAdmissionOnReject(
	rw http.ResponseWriter, r *http.Request, params AdmissionParams, next http.Handler, logger log.FieldLogger,
) {
	stage := params.Decision.ViolatedStage
	retryAfter := durationInCeilSeconds(params.Decision.RetryAfter())
	windowSecs := durationInCeilSeconds(stage.Window)

	if logger != nil {
		logger = logger.With(
			log.String(AdmissionIdentityLogFieldKey, params.Identity),
			log.String("violated_stage", stage.String()),
			log.String("user_agent", r.UserAgent()),
		)
	}

	rw.Header().Set(headerRetryAfter, strconv.Itoa(retryAfter))
	apiErr := restapi.NewError(params.ErrDomain, AdmissionErrCode,
		fmt.Sprintf("Rate limit exceeded: %d requests per %d seconds", stage.Limit, windowSecs))
	apiErr.AddContext("retryAfter", retryAfter).
		AddContext("limit", stage.Limit).
		AddContext("window", windowSecs)
	if params.InstanceID != "" {
		apiErr.AddDebug("instance", params.InstanceID)
	}
	restapi.RespondError(rw, http.StatusTooManyRequests, apiErr, logger)
}

// DefaultAdmissionOnRejectInDryRun logs the rejection and serves the request.
func DefaultAdmissionOnRejectInDryRun(
	rw http.ResponseWriter, r *http.Request, params AdmissionParams, next http.Handler, logger log.FieldLogger,
) {
	if logger != nil {
		logger.Warn("rate limit exceeded, serving will be continued because of dry run mode",
			log.String(AdmissionIdentityLogFieldKey, params.Identity),
			log.String("violated_stage", params.Decision.ViolatedStage.String()),
		)
	}
	next.ServeHTTP(rw, r)
}

func makeAdmissionOnRejectFunc(opts AdmissionOpts) AdmissionOnRejectFunc {
	if opts.DryRun {
		if opts.OnRejectInDryRun != nil {
			return opts.OnRejectInDryRun
		}
		return DefaultAdmissionOnRejectInDryRun
	}
	if opts.OnReject != nil {
		return opts.OnReject
	}
	return DefaultAdmissionOnReject
}

func durationInCeilSeconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}
