/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package testutil

import (
	"github.com/stretchr/testify/require"
)

type tHelper interface {
	Helper()
}

func markHelper(t require.TestingT) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
}

// RequireNoErrorInChannel fails the test if the buffered channel holds a non-nil error.
// An empty channel passes without blocking.
func RequireNoErrorInChannel(t require.TestingT, c <-chan error, msgAndArgs ...interface{}) {
	markHelper(t)
	select {
	case err := <-c:
		require.NoError(t, err, msgAndArgs...)
	default:
	}
}
