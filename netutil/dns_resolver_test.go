/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package netutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewCustomDNSResolver_RoundRobin(t *testing.T) {
	addrs := []string{"127.0.0.1:5301", "127.0.0.1:5302"}
	resolver := NewCustomDNSResolver(addrs, time.Second)
	require.True(t, resolver.PreferGo)

	var got []string
	for i := 0; i < 4; i++ {
		conn, err := resolver.Dial(context.Background(), "udp", "ignored:53")
		require.NoError(t, err)
		got = append(got, conn.RemoteAddr().String())
		require.NoError(t, conn.Close())
	}
	require.Equal(t, []string{addrs[1], addrs[0], addrs[1], addrs[0]}, got)
}
