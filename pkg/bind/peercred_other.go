//go:build !linux

package bind

import "net"

// peerCredsFromConn is a no-op stub on platforms without SO_PEERCRED;
// the daemon only ever runs on Linux in production, but this keeps the
// package buildable elsewhere for development.
func peerCredsFromConn(conn net.Conn) (peerCreds, error) {
	return peerCreds{}, nil
}
