//go:build !unix

package server

import "net"

// SO_REUSEPORT is not available; reusePort is ignored.
func listenConfig(reusePort bool) net.ListenConfig {
	return net.ListenConfig{}
}
