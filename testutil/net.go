/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package testutil

import (
	"fmt"
	"net"
	"time"
)

// GetLocalAddrWithFreeTCPPort returns a loopback address with a port that was free a moment ago.
// It panics if no port can be reserved.
func GetLocalAddrWithFreeTCPPort() string {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		panic(err)
	}
	defer func() {
		if closeErr := ln.Close(); closeErr != nil {
			panic(closeErr)
		}
	}()
	return ln.Addr().String()
}

// WaitListeningServer polls addr until a TCP connection succeeds or timeout passes.
func WaitListeningServer(addr string, timeout time.Duration) error {
	const pollInterval = 10 * time.Millisecond
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	deadline := time.After(timeout)
	for {
		conn, err := net.DialTimeout("tcp", addr, time.Second)
		if err == nil {
			return conn.Close()
		}
		select {
		case <-deadline:
			return fmt.Errorf("server is not listening on %s after %s: %w", addr, timeout, err)
		case <-ticker.C:
		}
	}
}
