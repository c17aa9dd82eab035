/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/stretchr/testify/require"
)

const contentTypeAppJSON = "application/json"

// ErrorResponse is a decoded error from the response body.
type ErrorResponse struct {
	Domain  string                 `json:"domain"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context"`
	Debug   map[string]interface{} `json:"debug"`
}

type wrappedErrorResponse struct {
	Error ErrorResponse `json:"error"`
}

// RequireErrorInRecorder asserts that passing httptest.ResponseRecorder contains the error and returns it.
func RequireErrorInRecorder(
	t require.TestingT, resp *httptest.ResponseRecorder, wantHTTPCode int, wantErrDomain, wantErrCode string,
) ErrorResponse {
	markHelper(t)
	return requireErrorInResponse(t, resp.Code, resp.Header(), resp.Body, wantHTTPCode, wantErrDomain, wantErrCode)
}

// RequireErrorInResponse asserts that passing http.Response contains the error and returns it.
func RequireErrorInResponse(
	t require.TestingT, resp *http.Response, wantHTTPCode int, wantErrDomain, wantErrCode string,
) ErrorResponse {
	markHelper(t)
	return requireErrorInResponse(t, resp.StatusCode, resp.Header, resp.Body, wantHTTPCode, wantErrDomain, wantErrCode)
}

func requireErrorInResponse(
	t require.TestingT, code int, header http.Header, body io.Reader, wantHTTPCode int, wantErrDomain, wantErrCode string,
) ErrorResponse {
	markHelper(t)
	require.Equal(t, wantHTTPCode, code)
	require.Equal(t, contentTypeAppJSON, header.Get("Content-Type"))
	var wrapped wrappedErrorResponse
	require.NoError(t, json.NewDecoder(body).Decode(&wrapped))
	require.Equal(t, wantErrDomain, wrapped.Error.Domain)
	require.Equal(t, wantErrCode, wrapped.Error.Code)
	return wrapped.Error
}

// RequireJSONInResponse asserts that passing http.Response contains the data in json format.
func RequireJSONInResponse(t require.TestingT, resp *http.Response, want, dest interface{}) {
	markHelper(t)
	require.Equal(t, contentTypeAppJSON, resp.Header.Get("Content-Type"))
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
	require.Equal(t, want, dest)
}

// RequireEmptyBodyInRecorder asserts that passing httptest.ResponseRecorder contains empty body.
func RequireEmptyBodyInRecorder(t require.TestingT, resp *httptest.ResponseRecorder) {
	markHelper(t)
	require.Equal(t, 0, resp.Body.Len())
}
