/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package restapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/acronis/go-admitgate/log"
)

// ContentTypeAppJSON represents MIME media type for JSON.
const ContentTypeAppJSON = "application/json"

// encodeJSON marshals v without HTML escaping and without the trailing newline json.Encoder adds.
func encodeJSON(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

// RespondJSON writes respData as JSON with 200 status code.
func RespondJSON(rw http.ResponseWriter, respData interface{}, logger log.FieldLogger) {
	RespondCodeAndJSON(rw, http.StatusOK, respData, logger)
}

// RespondCodeAndJSON writes respData as JSON with the given status code.
// Content-Type is set to application/json unless the handler has set it already.
// A nil respData produces an empty body.
func RespondCodeAndJSON(rw http.ResponseWriter, statusCode int, respData interface{}, logger log.FieldLogger) {
	if respData == nil {
		rw.WriteHeader(statusCode)
		return
	}

	body, err := encodeJSON(respData)
	if err != nil {
		logError(logger, "error while marshaling json for response body", err)
		rw.WriteHeader(http.StatusInternalServerError)
		return
	}

	if rw.Header().Get("Content-Type") == "" {
		rw.Header().Set("Content-Type", ContentTypeAppJSON)
	}
	rw.WriteHeader(statusCode)
	if _, err = rw.Write(body); err != nil {
		logError(logger, "error while writing response body", err)
	}
}

func logError(logger log.FieldLogger, msg string, err error) {
	if logger != nil {
		logger.Error(msg, log.Error(err))
	}
}

// ErrorResponseData is the body of an error response: {"error": {"domain": ..., "code": ...}}.
type ErrorResponseData struct {
	Err *Error `json:"error"`
}

func (e *ErrorResponseData) Error() string {
	return fmt.Sprintf("HTTP error occurs: %v", e.Err)
}

// RespondError writes err with the given status code.
// The error is logged at warn level for 4xx codes and at error level for 5xx ones,
// and counted by ResponseErrorsMetrics when they are registered.
func RespondError(rw http.ResponseWriter, httpStatusCode int, err *Error, logger log.FieldLogger) {
	if logger != nil {
		logFn := logger.Warn
		if httpStatusCode >= http.StatusInternalServerError {
			logFn = logger.Error
		}
		logFn("error in response", errorLogFields(err)...)
	}
	if m := responseErrorsMetrics.Load(); m != nil {
		m.incResponseError(err.Domain, err.Code)
	}
	RespondCodeAndJSON(rw, httpStatusCode, ErrorResponseData{err}, logger)
}

// RespondInternalError writes the generic internal error with 500 status code.
func RespondInternalError(rw http.ResponseWriter, domain string, logger log.FieldLogger) {
	RespondError(rw, http.StatusInternalServerError, NewInternalError(domain), logger)
}

func errorLogFields(err *Error) []log.Field {
	fields := []log.Field{log.String("error_code", err.Code), log.String("error_message", err.Message)}
	if len(err.Context) == 0 {
		return fields
	}
	pairs := make([]string, 0, len(err.Context))
	for k, v := range err.Context {
		pairs = append(pairs, fmt.Sprintf("%s: %v", k, v))
	}
	sort.Strings(pairs)
	return append(fields, log.Strings("error_context", pairs))
}
