/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package netutil

import (
	"context"
	"net"
	"sync/atomic"
	"time"
)

// NewCustomDNSResolver creates a net.Resolver that sends queries to addrs in round-robin order.
// redisstore uses it when the "dnsServers" option is set.
//
// Example of usage with go-redis:
//
//	resolver := netutil.NewCustomDNSResolver([]string{"10.0.0.2:53", "10.0.0.3:53"}, 2*time.Second)
//	dialer := &net.Dialer{Timeout: 2 * time.Second, Resolver: &resolver}
//	client := redis.NewClient(&redis.Options{
//		Addr:   "redis.service.consul:6379",
//		Dialer: func(ctx context.Context, network, addr string) (net.Conn, error) {
//			return dialer.DialContext(ctx, network, addr)
//		},
//	})
func NewCustomDNSResolver(addrs []string, timeout time.Duration) net.Resolver {
	var (
		idx      = uint32(0)
		addrsLen = uint32(len(addrs)) //nolint:gosec // address count is reasonable
	)

	return net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
			d := net.Dialer{Timeout: timeout}

			addr := addrs[atomic.AddUint32(&idx, 1)%addrsLen]

			return d.DialContext(ctx, "udp", addr)
		},
	}
}
